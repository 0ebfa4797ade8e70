package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/parari/internal/errors"
	iexec "github.com/ShayCichocki/parari/internal/exec"
	"github.com/ShayCichocki/parari/pkg/models"
)

// stubRunner replays canned output instead of starting a process.
type stubRunner struct {
	missing  bool
	startErr error
	lines    []iexec.Line
	result   iexec.Result
	waitCtx  bool

	got iexec.Command
}

func (s *stubRunner) LookPath(name string) (string, error) {
	if s.missing {
		return "", os.ErrNotExist
	}
	return "/usr/bin/" + name, nil
}

func (s *stubRunner) Stream(ctx context.Context, c iexec.Command, emit func(iexec.Line)) (iexec.Result, error) {
	s.got = c
	if s.startErr != nil {
		return iexec.Result{ExitCode: -1}, s.startErr
	}
	for _, l := range s.lines {
		emit(l)
	}
	if s.waitCtx {
		<-ctx.Done()
		return iexec.Result{ExitCode: -1, Cancelled: true}, nil
	}
	return s.result, nil
}

func collect(t *testing.T, e Executor, ctx context.Context, dir, prompt string) (Outcome, []models.LogLine) {
	t.Helper()
	out := make(chan models.LogLine)
	done := make(chan Outcome, 1)
	go func() {
		done <- e.Run(ctx, dir, prompt, out)
		close(out)
	}()
	var lines []models.LogLine
	for l := range out {
		lines = append(lines, l)
	}
	return <-done, lines
}

func TestCommandExecutor_Args(t *testing.T) {
	tests := []struct {
		name string
		exec *CommandExecutor
		want []string
	}{
		{"claude", Claude(), []string{"--print", "--dangerously-skip-permissions", "fix it"}},
		{"gemini", Gemini(), []string{"--yolo", "fix it"}},
		{"codex", Codex(), []string{"--full-auto", "exec", "fix it"}},
		{"appended", NewCommand("aider", "aider", []string{"--yes"}), []string{"--yes", "fix it"}},
		{"embedded", NewCommand("x", "x", []string{"--message={prompt}"}), []string{"--message=fix it"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.exec.Args("fix it"))
		})
	}
}

func TestCommandExecutor_Success(t *testing.T) {
	stub := &stubRunner{
		lines: []iexec.Line{{Text: "working"}, {Stderr: true, Text: "note"}, {Text: "done"}},
	}
	e := Claude(WithCommandRunner(stub), WithEnv("FOO=1"), WithGrace(time.Second))

	outcome, lines := collect(t, e, context.Background(), "/tmp/wt", "do it")

	assert.Equal(t, models.AgentStatusSucceeded, outcome.Status)
	assert.NoError(t, outcome.Err)
	require.Len(t, lines, 3)
	assert.Equal(t, "working", lines[0].Text)
	assert.Equal(t, models.StreamStderr, lines[1].Stream)
	assert.Equal(t, "done", lines[2].Text)

	assert.Equal(t, "/usr/bin/claude", stub.got.Name)
	assert.Equal(t, "/tmp/wt", stub.got.Dir)
	assert.Equal(t, []string{"FOO=1"}, stub.got.Env)
	assert.Equal(t, time.Second, stub.got.Grace)
}

func TestCommandExecutor_NonZeroExit(t *testing.T) {
	stub := &stubRunner{
		lines:  []iexec.Line{{Stderr: true, Text: "boom"}},
		result: iexec.Result{ExitCode: 2},
	}
	outcome, _ := collect(t, Gemini(WithCommandRunner(stub)), context.Background(), t.TempDir(), "p")

	assert.Equal(t, models.AgentStatusFailed, outcome.Status)
	assert.Equal(t, models.ReasonExitCode, outcome.Reason)
	assert.Equal(t, 2, outcome.ExitCode)

	var execErr *errors.ExecutionFailedError
	require.True(t, errors.As(outcome.Err, &execErr))
	assert.Equal(t, 2, execErr.ExitCode)
	assert.Equal(t, "boom", execErr.Stderr)
}

func TestCommandExecutor_Unavailable(t *testing.T) {
	t.Run("not on path", func(t *testing.T) {
		e := Codex(WithCommandRunner(&stubRunner{missing: true}))
		require.Error(t, e.Available())

		outcome, lines := collect(t, e, context.Background(), t.TempDir(), "p")
		assert.Equal(t, models.AgentStatusFailed, outcome.Status)
		assert.Equal(t, models.ReasonUnavailable, outcome.Reason)
		assert.Empty(t, lines)

		var unavailable *errors.ExecutorUnavailableError
		assert.True(t, errors.As(outcome.Err, &unavailable))
	})

	t.Run("start fails", func(t *testing.T) {
		e := Codex(WithCommandRunner(&stubRunner{startErr: &iexec.StartError{Name: "codex", Err: os.ErrPermission}}))
		outcome, _ := collect(t, e, context.Background(), t.TempDir(), "p")
		assert.Equal(t, models.ReasonUnavailable, outcome.Reason)
	})
}

func TestCommandExecutor_Cancelled(t *testing.T) {
	t.Run("before start", func(t *testing.T) {
		stub := &stubRunner{}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		outcome, _ := collect(t, Claude(WithCommandRunner(stub)), ctx, t.TempDir(), "p")
		assert.Equal(t, models.AgentStatusCancelled, outcome.Status)
		assert.Empty(t, stub.got.Name, "process must not be started")
	})

	t.Run("while running", func(t *testing.T) {
		stub := &stubRunner{waitCtx: true, lines: []iexec.Line{{Text: "started"}}}
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(20*time.Millisecond, cancel)

		outcome, lines := collect(t, Claude(WithCommandRunner(stub)), ctx, t.TempDir(), "p")
		assert.Equal(t, models.AgentStatusCancelled, outcome.Status)
		assert.Equal(t, models.ReasonCancelled, outcome.Reason)
		assert.Len(t, lines, 1)
	})
}

func TestCommandExecutor_RealProcess(t *testing.T) {
	if _, err := iexec.NewRunner().LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	e := NewCommand("shell", "sh", []string{"-c", "echo hi; echo \"$0\" > out.txt", PromptPlaceholder})
	dir := t.TempDir()

	outcome, lines := collect(t, e, context.Background(), dir, "prompt-text")
	require.Equal(t, models.AgentStatusSucceeded, outcome.Status, "err: %v", outcome.Err)
	require.Len(t, lines, 1)
	assert.Equal(t, "hi", lines[0].Text)

	data, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "prompt-text\n", string(data))
}

func TestFake(t *testing.T) {
	t.Run("files and output", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "old.txt"), []byte("x"), 0644))

		f := NewFake("claude").
			WithFile("src/new.go", "package src\n").
			WithDelete("old.txt").
			WithOutput("a", "b")

		outcome, lines := collect(t, f, context.Background(), dir, "prompt")
		assert.Equal(t, models.AgentStatusSucceeded, outcome.Status)
		assert.Len(t, lines, 2)
		assert.FileExists(t, filepath.Join(dir, "src", "new.go"))
		assert.NoFileExists(t, filepath.Join(dir, "old.txt"))
		assert.Equal(t, []Call{{Dir: dir, Prompt: "prompt"}}, f.Calls())
	})

	t.Run("exit code", func(t *testing.T) {
		f := NewFake("codex").WithStderr("bad").WithExitCode(1)
		outcome, _ := collect(t, f, context.Background(), t.TempDir(), "p")
		assert.Equal(t, models.AgentStatusFailed, outcome.Status)
		assert.Equal(t, 1, outcome.ExitCode)
	})

	t.Run("blocking", func(t *testing.T) {
		f := NewFake("gemini").Blocking()
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			<-f.Started()
			cancel()
		}()
		outcome, _ := collect(t, f, ctx, t.TempDir(), "p")
		assert.Equal(t, models.AgentStatusCancelled, outcome.Status)
	})

	t.Run("unavailable", func(t *testing.T) {
		f := NewFake("ghost").Unavailable()
		assert.Error(t, f.Available())
		outcome, _ := collect(t, f, context.Background(), t.TempDir(), "p")
		assert.Equal(t, models.ReasonUnavailable, outcome.Reason)
	})
}

func TestRegistry(t *testing.T) {
	r := Builtin()
	assert.Equal(t, []string{"claude", "gemini", "codex"}, r.Names())

	got, err := r.Select([]string{"Codex", "claude", "codex", " "})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "codex", got[0].Name())
	assert.Equal(t, "claude", got[1].Name())

	_, err = r.Select([]string{"claude", "cursor"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cursor")

	r.Register(NewFake("Aider"))
	e, ok := r.Get("aider")
	require.True(t, ok)
	assert.Equal(t, "Aider", e.Name())
	assert.Len(t, r.All(), 4)
}

func TestAvailable(t *testing.T) {
	execs := []Executor{NewFake("a"), NewFake("b").Unavailable(), NewFake("c")}
	got := Available(execs)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Name())
	assert.Equal(t, "c", got[1].Name())
}
