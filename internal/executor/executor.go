// Package executor runs one agent program against one worktree.
//
// Every agent family implements Executor; the coordinator only ever sees the
// interface. CommandExecutor covers any CLI agent that takes the prompt as
// an argument, and Fake is a scripted stand-in for tests.
package executor

import (
	"context"

	"github.com/ShayCichocki/parari/pkg/models"
)

// Outcome is the terminal result of one Run.
type Outcome struct {
	// Status is Succeeded, Failed or Cancelled.
	Status models.AgentStatus
	// Reason qualifies Failed and Cancelled (models.Reason*).
	Reason string
	// ExitCode is the program's exit status, or -1 if it never exited normally.
	ExitCode int
	// Err carries the typed error for a failure.
	Err error
}

// Executor runs an agent program.
type Executor interface {
	// Name returns the agent identity. Names are unique within a run.
	Name() string

	// Available returns nil if the program can be launched.
	Available() error

	// Run executes the agent in dir with prompt, sending each output line to
	// out in the order the program produced it. It blocks until the program
	// has exited and all output has been sent. It never closes out.
	Run(ctx context.Context, dir, prompt string, out chan<- models.LogLine) Outcome
}

func succeeded() Outcome {
	return Outcome{Status: models.AgentStatusSucceeded}
}

func cancelled(exitCode int) Outcome {
	return Outcome{Status: models.AgentStatusCancelled, Reason: models.ReasonCancelled, ExitCode: exitCode}
}

func failed(reason string, exitCode int, err error) Outcome {
	return Outcome{Status: models.AgentStatusFailed, Reason: reason, ExitCode: exitCode, Err: err}
}
