package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/parari/internal/config"
	perrors "github.com/ShayCichocki/parari/internal/errors"
	"github.com/ShayCichocki/parari/internal/git"
)

// exitInterrupted is the conventional status for a run stopped by SIGINT.
const exitInterrupted = 130

var (
	configPath string
	directory  string
	verbose    bool

	rootFlags runFlags
)

var rootCmd = &cobra.Command{
	Use:   "parari [prompt]",
	Short: "Run coding agents in parallel and apply the best result",
	Long: `Parari sends one prompt to several AI coding agents at once. Each agent
works in its own git worktree on a fresh branch, so none of them touch your
checkout. When they finish you compare logs and diffs side by side and apply
the one you want; everything else is cleaned up.

With no prompt argument, $VISUAL or $EDITOR (falling back to vi) is opened
to write one. Saving an empty file cancels.

Examples:
  parari "fix the flaky retry test"
  parari --claude-only "add a --json flag to status"
  parari --agents claude,codex --auto-select "bump the go version"
  parari --no-select "explain the cache layer"   # compare, apply nothing`,
	Args:          cobra.ArbitraryArgs,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE:          runRoot,
}

// exitError carries a specific process exit status.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// exitCode maps a command error to the process exit status. Operator
// cancellation is not a failure.
func exitCode(err error) int {
	var ee *exitError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &ee):
		return ee.code
	case errors.Is(err, perrors.ErrCancelled), errors.Is(err, perrors.ErrEmptyPrompt):
		return 0
	default:
		return 1
	}
}

// Execute runs the root command and returns the exit status.
func Execute() int {
	err := rootCmd.Execute()
	code := exitCode(err)
	switch {
	case err == nil:
	case code == 0 || code == exitInterrupted:
		fmt.Fprintln(os.Stderr, "Cancelled.")
	default:
		newPrinter(os.Stderr).failure(err)
	}
	return code
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default: user and project config)")
	pf.StringVarP(&directory, "directory", "C", ".", "Repository to run in")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	f := rootCmd.Flags()
	f.BoolVar(&rootFlags.claudeOnly, "claude-only", false, "Run only Claude")
	f.BoolVar(&rootFlags.geminiOnly, "gemini-only", false, "Run only Gemini")
	f.BoolVar(&rootFlags.codexOnly, "codex-only", false, "Run only Codex")
	f.StringSliceVar(&rootFlags.agents, "agents", nil, "Comma-separated agents to run (unavailable ones are shown as failed)")
	f.BoolVar(&rootFlags.noSelect, "no-select", false, "Print results without applying anything")
	f.BoolVar(&rootFlags.autoSelect, "auto-select", false, "Apply the succeeded agent with the most changes")

	rootCmd.MarkFlagsMutuallyExclusive("claude-only", "gemini-only", "codex-only", "agents")
	rootCmd.MarkFlagsMutuallyExclusive("no-select", "auto-select")

	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads --config if given, otherwise the layered user and project config.
func loadConfig(repoPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromPath(configPath)
	}
	return config.Load(repoPath)
}

// resolveRepo returns the top level of the repository containing dir.
func resolveRepo(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve directory: %w", err)
	}
	if !git.IsRepository(abs) {
		return "", fmt.Errorf("%s: %w", abs, perrors.ErrNotGitRepository)
	}
	top, err := git.NewRunner(abs).TopLevel()
	if err != nil {
		return "", fmt.Errorf("find repository root: %w", err)
	}
	return top, nil
}

// promptFromArgs joins positional arguments so unquoted prompts still work.
func promptFromArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
