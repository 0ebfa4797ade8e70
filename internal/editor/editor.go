// Package editor captures a prompt by opening the operator's editor on a
// temporary file.
package editor

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/kballard/go-shellquote"

	perrors "github.com/ShayCichocki/parari/internal/errors"
)

// Fallback is used when neither config nor the environment names an editor.
const Fallback = "vi"

// Template is the initial content of the prompt file.
const Template = "\n" +
	"# Enter your prompt above this line.\n" +
	"# Lines starting with '#' will be ignored.\n" +
	"# Save and exit the editor to continue.\n" +
	"# Leave empty to cancel.\n"

// Resolve picks the editor command: configured, then $VISUAL, then $EDITOR,
// then vi.
func Resolve(configured string) string {
	for _, candidate := range []string{configured, os.Getenv("VISUAL"), os.Getenv("EDITOR")} {
		if strings.TrimSpace(candidate) != "" {
			return candidate
		}
	}
	return Fallback
}

// Editor runs an editor command against a prompt file.
type Editor struct {
	argv    []string
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
	tempDir string
}

// Option configures an Editor.
type Option func(*Editor)

// WithIO overrides the editor's terminal streams.
func WithIO(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(e *Editor) {
		e.stdin = stdin
		e.stdout = stdout
		e.stderr = stderr
	}
}

// WithTempDir places the prompt file in dir instead of os.TempDir().
func WithTempDir(dir string) Option {
	return func(e *Editor) { e.tempDir = dir }
}

// New splits command with shell quoting rules, so "code --wait" and
// quoted paths with spaces both work.
func New(command string, opts ...Option) (*Editor, error) {
	argv, err := shellquote.Split(command)
	if err != nil {
		return nil, fmt.Errorf("parse editor command %q: %w", command, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty editor command")
	}

	e := &Editor{
		argv:   argv,
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Argv returns the split editor command.
func (e *Editor) Argv() []string {
	return append([]string(nil), e.argv...)
}

// Capture opens the editor on a fresh prompt file and returns what the
// operator wrote. It returns ErrEmptyPrompt when nothing but comments remain.
func (e *Editor) Capture(ctx context.Context) (string, error) {
	f, err := os.CreateTemp(e.tempDir, "parari-prompt-*.md")
	if err != nil {
		return "", fmt.Errorf("create prompt file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.WriteString(Template); err != nil {
		f.Close()
		return "", fmt.Errorf("write prompt file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close prompt file: %w", err)
	}

	args := append(e.argv[1:len(e.argv):len(e.argv)], path)
	cmd := exec.CommandContext(ctx, e.argv[0], args...)
	cmd.Stdin = e.stdin
	cmd.Stdout = e.stdout
	cmd.Stderr = e.stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", perrors.ErrCancelled
		}
		return "", fmt.Errorf("editor %q: %w", shellquote.Join(e.argv...), err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read prompt file: %w", err)
	}
	return Parse(string(content))
}

// Parse drops comment lines and trims the remainder.
func Parse(content string) (string, error) {
	var kept []string
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, "#") {
			continue
		}
		kept = append(kept, strings.TrimRight(line, "\r"))
	}

	prompt := strings.TrimSpace(strings.Join(kept, "\n"))
	if prompt == "" {
		return "", perrors.ErrEmptyPrompt
	}
	return prompt, nil
}
