package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ShayCichocki/parari/internal/errors"
	"github.com/ShayCichocki/parari/pkg/models"
)

// FileOp is a filesystem change a Fake makes in its worktree.
type FileOp int

const (
	// FileWrite creates or overwrites a file.
	FileWrite FileOp = iota
	// FileDelete removes a file.
	FileDelete
)

// FileAction is one scripted filesystem change.
type FileAction struct {
	Op      FileOp
	Path    string
	Content string
}

// Call records one invocation of a Fake.
type Call struct {
	Dir    string
	Prompt string
}

// Fake is a scripted Executor for tests. It applies its file actions, emits
// its output lines and exits with its configured code.
type Fake struct {
	name        string
	stdout      []string
	stderr      []string
	actions     []FileAction
	exitCode    int
	delay       time.Duration
	block       bool
	unavailable bool

	mu      sync.Mutex
	calls   []Call
	started chan struct{}
	once    sync.Once
}

// NewFake creates a fake executor that succeeds without output.
func NewFake(name string) *Fake {
	return &Fake{name: name, started: make(chan struct{})}
}

// WithOutput adds stdout lines.
func (f *Fake) WithOutput(lines ...string) *Fake {
	f.stdout = append(f.stdout, lines...)
	return f
}

// WithStderr adds stderr lines, emitted after stdout.
func (f *Fake) WithStderr(lines ...string) *Fake {
	f.stderr = append(f.stderr, lines...)
	return f
}

// WithFile writes path (relative to the worktree) with content.
func (f *Fake) WithFile(path, content string) *Fake {
	f.actions = append(f.actions, FileAction{Op: FileWrite, Path: path, Content: content})
	return f
}

// WithDelete removes path (relative to the worktree).
func (f *Fake) WithDelete(path string) *Fake {
	f.actions = append(f.actions, FileAction{Op: FileDelete, Path: path})
	return f
}

// WithExitCode sets the exit code.
func (f *Fake) WithExitCode(code int) *Fake {
	f.exitCode = code
	return f
}

// WithDelay waits d before each output line.
func (f *Fake) WithDelay(d time.Duration) *Fake {
	f.delay = d
	return f
}

// Blocking makes Run wait for cancellation after emitting its output.
func (f *Fake) Blocking() *Fake {
	f.block = true
	return f
}

// Unavailable makes the fake report that its program is missing.
func (f *Fake) Unavailable() *Fake {
	f.unavailable = true
	return f
}

// Name returns the agent name.
func (f *Fake) Name() string {
	return f.name
}

// Available reports whether the fake was marked unavailable.
func (f *Fake) Available() error {
	if f.unavailable {
		return &errors.ExecutorUnavailableError{Agent: f.name, Binary: f.name, Err: os.ErrNotExist}
	}
	return nil
}

// Started is closed when Run is first entered.
func (f *Fake) Started() <-chan struct{} {
	return f.started
}

// Calls returns every invocation so far.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Run plays the script.
func (f *Fake) Run(ctx context.Context, dir, prompt string, out chan<- models.LogLine) Outcome {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Dir: dir, Prompt: prompt})
	f.mu.Unlock()
	f.once.Do(func() { close(f.started) })

	if err := f.Available(); err != nil {
		return failed(models.ReasonUnavailable, -1, err)
	}
	if ctx.Err() != nil {
		return cancelled(-1)
	}

	for _, a := range f.actions {
		if err := apply(dir, a); err != nil {
			out <- models.LogLine{Stream: models.StreamStderr, Text: err.Error(), At: time.Now()}
			return failed(models.ReasonExitCode, 1, &errors.ExecutionFailedError{Agent: f.name, ExitCode: 1, Stderr: err.Error(), Err: err})
		}
	}

	emit := func(stream models.Stream, lines []string) bool {
		for _, l := range lines {
			if f.delay > 0 {
				select {
				case <-ctx.Done():
					return false
				case <-time.After(f.delay):
				}
			}
			out <- models.LogLine{Stream: stream, Text: l, At: time.Now()}
		}
		return true
	}
	if !emit(models.StreamStdout, f.stdout) || !emit(models.StreamStderr, f.stderr) {
		return cancelled(-1)
	}

	if f.block {
		<-ctx.Done()
		return cancelled(-1)
	}
	if ctx.Err() != nil {
		return cancelled(-1)
	}
	if f.exitCode != 0 {
		return failed(models.ReasonExitCode, f.exitCode, &errors.ExecutionFailedError{
			Agent:    f.name,
			ExitCode: f.exitCode,
			Stderr:   lastLine(f.stderr),
		})
	}
	return succeeded()
}

func apply(dir string, a FileAction) error {
	path := filepath.Join(dir, a.Path)
	switch a.Op {
	case FileWrite:
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		return os.WriteFile(path, []byte(a.Content), 0644)
	case FileDelete:
		return os.Remove(path)
	default:
		return fmt.Errorf("unknown file op %d", a.Op)
	}
}

func lastLine(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}

var _ Executor = (*Fake)(nil)
