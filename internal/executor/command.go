package executor

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ShayCichocki/parari/internal/errors"
	iexec "github.com/ShayCichocki/parari/internal/exec"
	"github.com/ShayCichocki/parari/pkg/models"
)

// PromptPlaceholder is replaced by the prompt in argument templates.
// If no argument contains it, the prompt is appended as the last argument.
const PromptPlaceholder = "{prompt}"

// stderrTail is how many trailing stderr lines a failure keeps.
const stderrTail = 20

// CommandExecutor runs a CLI agent that takes its prompt as an argument.
type CommandExecutor struct {
	name   string
	binary string
	args   []string
	env    []string
	grace  time.Duration
	runner iexec.CommandRunner
}

// CommandOption configures a CommandExecutor.
type CommandOption func(*CommandExecutor)

// WithGrace sets how long a cancelled agent may take to exit before it is killed.
func WithGrace(d time.Duration) CommandOption {
	return func(e *CommandExecutor) { e.grace = d }
}

// WithEnv appends KEY=VALUE pairs to the agent's environment.
func WithEnv(env ...string) CommandOption {
	return func(e *CommandExecutor) { e.env = append(e.env, env...) }
}

// WithCommandRunner overrides process execution (for testing).
func WithCommandRunner(r iexec.CommandRunner) CommandOption {
	return func(e *CommandExecutor) { e.runner = r }
}

// NewCommand creates an executor named name that runs binary with args.
func NewCommand(name, binary string, args []string, opts ...CommandOption) *CommandExecutor {
	e := &CommandExecutor{
		name:   name,
		binary: binary,
		args:   append([]string(nil), args...),
		runner: iexec.NewRunner(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Claude returns the executor for Anthropic's claude CLI.
func Claude(opts ...CommandOption) *CommandExecutor {
	return NewCommand("claude", "claude", []string{"--print", "--dangerously-skip-permissions", PromptPlaceholder}, opts...)
}

// Gemini returns the executor for Google's gemini CLI.
func Gemini(opts ...CommandOption) *CommandExecutor {
	return NewCommand("gemini", "gemini", []string{"--yolo", PromptPlaceholder}, opts...)
}

// Codex returns the executor for OpenAI's codex CLI.
func Codex(opts ...CommandOption) *CommandExecutor {
	return NewCommand("codex", "codex", []string{"--full-auto", "exec", PromptPlaceholder}, opts...)
}

// Name returns the agent name.
func (e *CommandExecutor) Name() string {
	return e.name
}

// Available returns nil if the binary is on PATH.
func (e *CommandExecutor) Available() error {
	if _, err := e.runner.LookPath(e.binary); err != nil {
		return &errors.ExecutorUnavailableError{Agent: e.name, Binary: e.binary, Err: err}
	}
	return nil
}

// Args returns the argument list for prompt.
func (e *CommandExecutor) Args(prompt string) []string {
	args := make([]string, 0, len(e.args)+1)
	substituted := false
	for _, a := range e.args {
		if strings.Contains(a, PromptPlaceholder) {
			a = strings.ReplaceAll(a, PromptPlaceholder, prompt)
			substituted = true
		}
		args = append(args, a)
	}
	if !substituted {
		args = append(args, prompt)
	}
	return args
}

// Run launches the agent and streams its output until it exits.
func (e *CommandExecutor) Run(ctx context.Context, dir, prompt string, out chan<- models.LogLine) Outcome {
	if ctx.Err() != nil {
		return cancelled(-1)
	}

	path, err := e.runner.LookPath(e.binary)
	if err != nil {
		return failed(models.ReasonUnavailable, -1,
			&errors.ExecutorUnavailableError{Agent: e.name, Binary: e.binary, Err: err})
	}

	var mu sync.Mutex
	var tail []string
	emit := func(l iexec.Line) {
		stream := models.StreamStdout
		if l.Stderr {
			stream = models.StreamStderr
			mu.Lock()
			tail = append(tail, l.Text)
			if len(tail) > stderrTail {
				tail = tail[len(tail)-stderrTail:]
			}
			mu.Unlock()
		}
		out <- models.LogLine{Stream: stream, Text: l.Text, At: time.Now()}
	}

	res, err := e.runner.Stream(ctx, iexec.Command{
		Name:  path,
		Args:  e.Args(prompt),
		Dir:   dir,
		Env:   e.env,
		Grace: e.grace,
	}, emit)
	if err != nil {
		if ctx.Err() != nil {
			return cancelled(-1)
		}
		return failed(models.ReasonUnavailable, -1,
			&errors.ExecutorUnavailableError{Agent: e.name, Binary: e.binary, Err: err})
	}

	if res.Cancelled {
		return cancelled(res.ExitCode)
	}
	if res.ExitCode == 0 {
		return succeeded()
	}

	mu.Lock()
	stderr := strings.Join(tail, "\n")
	mu.Unlock()
	return failed(models.ReasonExitCode, res.ExitCode, &errors.ExecutionFailedError{
		Agent:    e.name,
		ExitCode: res.ExitCode,
		Stderr:   stderr,
	})
}

// Verify CommandExecutor implements Executor at compile time.
var _ Executor = (*CommandExecutor)(nil)
