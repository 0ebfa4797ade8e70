// Package exec runs external agent programs in their own process group.
//
// Every command is started as a process group leader so that cancelling it
// reaches any helpers it spawned. Cancellation sends SIGTERM to the group,
// waits a bounded grace period, then sends SIGKILL.
package exec

import (
	"context"
	"time"
)

// DefaultGrace is how long a cancelled command may take to exit before it is killed.
const DefaultGrace = 5 * time.Second

// Command describes one program invocation.
type Command struct {
	Name string
	Args []string
	// Dir is the working directory.
	Dir string
	// Env is appended to the current environment.
	Env []string
	// Grace overrides DefaultGrace when positive.
	Grace time.Duration
}

// Line is one line of output.
type Line struct {
	Stderr bool
	Text   string
}

// Result describes how a command ended.
type Result struct {
	// ExitCode is the process exit status, or -1 if it was killed by a signal.
	ExitCode int
	// Cancelled is true when the context ended before the command did.
	Cancelled bool
	Duration  time.Duration
}

// CommandRunner defines the interface for running external commands.
// This abstraction allows substituting command execution in tests.
type CommandRunner interface {
	// LookPath resolves a program name the same way the shell would.
	LookPath(name string) (string, error)

	// Stream runs the command, calling emit for every output line, and waits
	// for it to exit. Lines from one stream arrive in order; emit may be
	// called from two goroutines at once. The returned error is non-nil only
	// if the program could not be started.
	Stream(ctx context.Context, c Command, emit func(Line)) (Result, error)
}
