// Package errors defines the error kinds parari surfaces to operators.
//
// Sentinel errors cover conditions callers branch on. Typed errors carry the
// context an operator needs (paths, exit codes, agent names) and unwrap to
// their cause so errors.Is keeps working through them.
//
//	var mergeErr *errors.MergeError
//	if errors.As(err, &mergeErr) {
//		fmt.Println(mergeErr.Paths)
//	}
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions so callers only import this package.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

var (
	// ErrNotGitRepository indicates the target directory is not inside a git repository.
	ErrNotGitRepository = New("not a git repository")
	// ErrWorktreeExists indicates a worktree path or branch is already taken.
	ErrWorktreeExists = New("worktree already exists")
	// ErrNoExecutors indicates no agent is available to run.
	ErrNoExecutors = New("no executors available")
	// ErrCancelled indicates the operator cancelled the run.
	ErrCancelled = New("cancelled")
	// ErrEmptyPrompt indicates editor capture produced no prompt.
	ErrEmptyPrompt = New("empty prompt")
	// ErrNotApplicable indicates apply was requested for a slot that did not succeed.
	ErrNotApplicable = New("agent result cannot be applied")
	// ErrBaseDiverged indicates the primary branch moved since the run started.
	ErrBaseDiverged = New("base branch has diverged")
	// ErrMergeConflict indicates git reported conflicting paths.
	ErrMergeConflict = New("merge conflict")
	// ErrDirtyWorkingTree indicates uncommitted changes overlap the agent's changes.
	ErrDirtyWorkingTree = New("uncommitted changes in working tree")
)

// FilesystemError reports a worktree create or remove failure.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }

// NewFilesystemError wraps err with the failing operation and path.
func NewFilesystemError(op, path string, err error) *FilesystemError {
	return &FilesystemError{Op: op, Path: path, Err: err}
}

// ExecutorUnavailableError reports an agent program that could not be started.
type ExecutorUnavailableError struct {
	Agent  string
	Binary string
	Err    error
}

func (e *ExecutorUnavailableError) Error() string {
	return fmt.Sprintf("executor %s unavailable: %s: %v", e.Agent, e.Binary, e.Err)
}

func (e *ExecutorUnavailableError) Unwrap() error { return e.Err }

// ExecutionFailedError reports an agent program that ran and failed.
type ExecutionFailedError struct {
	Agent    string
	ExitCode int
	// Stderr holds the last lines the program wrote to standard error.
	Stderr string
	Err    error
}

func (e *ExecutionFailedError) Error() string {
	msg := fmt.Sprintf("executor %s failed with exit code %d", e.Agent, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *ExecutionFailedError) Unwrap() error { return e.Err }

// MergeReason classifies a MergeError.
type MergeReason string

const (
	MergeNotApplicable MergeReason = "not-applicable"
	MergeDiverged      MergeReason = "diverged"
	MergeDirty         MergeReason = "dirty"
	MergeConflict      MergeReason = "conflict"
	MergeFailed        MergeReason = "failed"
)

// MergeError reports an apply that did not land. Paths lists the files the
// operator needs to look at in the primary working tree.
type MergeError struct {
	Agent  string
	Reason MergeReason
	Paths  []string
	Err    error
}

func (e *MergeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "apply %s: %s", e.Agent, e.Reason)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if len(e.Paths) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(e.Paths, ", "))
	}
	return b.String()
}

func (e *MergeError) Unwrap() error { return e.Err }

// InterfaceError reports a fatal terminal rendering failure.
type InterfaceError struct {
	Err error
}

func (e *InterfaceError) Error() string {
	return fmt.Sprintf("interface: %v", e.Err)
}

func (e *InterfaceError) Unwrap() error { return e.Err }
