package exec

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// pipeDrain bounds how long output copying may continue after the process exits,
// in case a detached grandchild still holds the pipes open.
const pipeDrain = 2 * time.Second

// StartError reports a program that could not be launched.
type StartError struct {
	Name string
	Err  error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("start %s: %v", e.Name, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// ExecRunner implements CommandRunner using os/exec.
type ExecRunner struct{}

// NewRunner creates a new ExecRunner.
func NewRunner() *ExecRunner {
	return &ExecRunner{}
}

// LookPath resolves a program name on PATH.
func (r *ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Stream runs the command in its own process group and streams its output.
func (r *ExecRunner) Stream(ctx context.Context, c Command, emit func(Line)) (Result, error) {
	grace := c.Grace
	if grace <= 0 {
		grace = DefaultGrace
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	setProcessGroup(cmd)
	cmd.Cancel = func() error {
		return signalGroup(cmd.Process, false)
	}
	cmd.WaitDelay = grace + pipeDrain

	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	start := time.Now()
	if err := cmd.Start(); err != nil {
		stdoutW.Close()
		stderrW.Close()
		return Result{ExitCode: -1}, &StartError{Name: c.Name, Err: err}
	}

	var readers sync.WaitGroup
	readers.Add(2)
	go scanLines(&readers, stdoutR, false, emit)
	go scanLines(&readers, stderrR, true, emit)

	exited := make(chan struct{})
	killed := make(chan struct{})
	go func() {
		defer close(killed)
		select {
		case <-ctx.Done():
			timer := time.NewTimer(grace)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-exited:
			}
			// Sweep anything left in the group, including helpers that ignored SIGTERM.
			_ = signalGroup(cmd.Process, true)
		case <-exited:
		}
	}()

	waitErr := cmd.Wait()
	close(exited)
	<-killed

	stdoutW.Close()
	stderrW.Close()
	readers.Wait()

	res := Result{
		ExitCode:  exitCode(cmd, waitErr),
		Cancelled: ctx.Err() != nil,
		Duration:  time.Since(start),
	}
	return res, nil
}

// exitCode extracts the exit status from a finished command.
func exitCode(cmd *exec.Cmd, waitErr error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return exitErr.ExitCode()
	}
	if waitErr != nil {
		return -1
	}
	return 0
}

// scanLines forwards each line from r to emit.
func scanLines(wg *sync.WaitGroup, r io.ReadCloser, stderr bool, emit func(Line)) {
	defer wg.Done()
	defer r.Close()

	scanner := bufio.NewScanner(r)
	// Agents print long JSON and diff lines.
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if emit != nil {
			emit(Line{Stderr: stderr, Text: scanner.Text()})
		}
	}
	// Keep the writer unblocked if the scanner gave up on an oversized line.
	_, _ = io.Copy(io.Discard, r)
}

// Verify ExecRunner implements CommandRunner at compile time.
var _ CommandRunner = (*ExecRunner)(nil)
