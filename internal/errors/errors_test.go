package errors

import (
	"fmt"
	"testing"
)

func TestTypedErrorsUnwrap(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"filesystem", NewFilesystemError("create worktree", "/tmp/x", ErrWorktreeExists), ErrWorktreeExists},
		{"unavailable", &ExecutorUnavailableError{Agent: "claude", Binary: "claude", Err: ErrNoExecutors}, ErrNoExecutors},
		{"merge", &MergeError{Agent: "claude", Reason: MergeConflict, Err: ErrMergeConflict}, ErrMergeConflict},
		{"interface", &InterfaceError{Err: ErrCancelled}, ErrCancelled},
		{"wrapped", fmt.Errorf("outer: %w", &MergeError{Reason: MergeDiverged, Err: ErrBaseDiverged}), ErrBaseDiverged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !Is(tt.err, tt.target) {
				t.Errorf("Is(%v, %v) = false, want true", tt.err, tt.target)
			}
		})
	}
}

func TestMergeError_Message(t *testing.T) {
	err := &MergeError{
		Agent:  "gemini",
		Reason: MergeConflict,
		Paths:  []string{"a.go", "b.go"},
		Err:    ErrMergeConflict,
	}
	want := "apply gemini: conflict: merge conflict (a.go, b.go)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	var target *MergeError
	if !As(fmt.Errorf("wrap: %w", err), &target) || target.Agent != "gemini" {
		t.Errorf("As did not recover MergeError, got %+v", target)
	}
}

func TestExecutionFailedError_Message(t *testing.T) {
	err := &ExecutionFailedError{Agent: "codex", ExitCode: 2, Stderr: "boom\n"}
	want := "executor codex failed with exit code 2: boom"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
