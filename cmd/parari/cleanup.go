package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/parari/internal/logging"
	"github.com/ShayCichocki/parari/internal/worktree"
)

var (
	cleanupForce  bool
	cleanupDryRun bool
	cleanupAll    bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove worktrees left behind by interrupted runs",
	Long: `Clean up parari worktrees that no running parari process owns.

This command:
  - Lists parari worktrees for this repository (branches parari/<run>/<agent>)
  - Skips worktrees whose run is still alive, unless --all is given
  - Removes the rest, with their branches
  - Runs git worktree prune

Use this after a crash or a killed run.

Examples:
  parari cleanup              # Interactive cleanup with confirmation
  parari cleanup --force      # Skip confirmation prompt
  parari cleanup --dry-run    # Show what would be removed
  parari cleanup --all        # Include worktrees of runs still in progress`,
	Args: cobra.NoArgs,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().BoolVarP(&cleanupForce, "force", "f", false, "Skip confirmation prompt")
	cleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "Show what would be removed without removing")
	cleanupCmd.Flags().BoolVar(&cleanupAll, "all", false, "Also remove worktrees of runs that are still alive")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	repoPath, err := resolveRepo(directory)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(repoPath)
	if err != nil {
		return err
	}

	log := logging.NopLogger()
	if verbose {
		log = logging.NewConsoleLogger(os.Stderr, "debug")
	}

	db := openRegistry(cfg.State.Path, log)
	if db != nil {
		defer db.Close()
	}
	manager, err := newManager(cfg, repoPath, db, log)
	if err != nil {
		return fmt.Errorf("create worktree manager: %w", err)
	}

	active := liveRuns(db, repoPath, log)
	if cleanupAll {
		active = map[string]bool{}
	}

	orphans, err := manager.ListOrphans(active)
	if err != nil {
		return fmt.Errorf("list orphaned worktrees: %w", err)
	}
	return cleanupOrphans(cmd.OutOrStdout(), cmd.InOrStdin(), manager, orphans)
}

// cleanupOrphans reports orphans, confirms unless --force, and removes them.
func cleanupOrphans(w io.Writer, in io.Reader, manager *worktree.Manager, orphans []worktree.Orphan) error {
	out := newPrinter(w)
	if len(orphans) == 0 {
		fmt.Fprintln(w, "No orphaned worktrees found.")
		return nil
	}

	fmt.Fprintf(w, "Found %d orphaned worktree(s):\n", len(orphans))
	for _, o := range orphans {
		switch {
		case o.Untracked:
			fmt.Fprintf(w, "  - %s (not registered with git)\n", o.Path)
		default:
			fmt.Fprintf(w, "  - %s (branch: %s)\n", o.Path, o.Branch)
		}
	}
	fmt.Fprintln(w)

	if cleanupDryRun {
		fmt.Fprintln(w, "Dry run mode - no worktrees were removed.")
		return nil
	}

	if !cleanupForce {
		fmt.Fprint(w, "Remove these worktrees? [y/N] ")
		response, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("read confirmation: %w", err)
		}
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "y" && response != "yes" {
			fmt.Fprintln(w, "Worktree cleanup cancelled.")
			return nil
		}
	}

	var verboseCallback func(path string)
	if verbose {
		verboseCallback = func(path string) {
			fmt.Fprintf(w, "Removed: %s\n", path)
		}
	}

	removed := manager.CleanupOrphans(orphans, verboseCallback)
	if removed < len(orphans) {
		out.warn("Removed %d of %d orphaned worktree(s); rerun with -v for details.", removed, len(orphans))
		return nil
	}
	out.printStatus("✓", out.green, "Successfully removed %d orphaned worktree(s).", removed)
	return nil
}
