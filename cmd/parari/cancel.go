package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/parari/internal/control"
	iexec "github.com/ShayCichocki/parari/internal/exec"
	"github.com/ShayCichocki/parari/internal/state"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel [run-id]",
	Short: "Cancel a run in progress",
	Long: `Ask a running parari process to cancel. The run stops its agents,
removes its worktrees and exits.

Without a run ID the newest live run in this repository is cancelled.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCancel,
}

func runCancel(cmd *cobra.Command, args []string) error {
	repoPath, err := resolveRepo(directory)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(repoPath)
	if err != nil {
		return err
	}

	db, err := state.OpenAndMigrate(cfg.State.Path)
	if err != nil {
		return fmt.Errorf("open run registry: %w", err)
	}
	defer db.Close()

	var id string
	if len(args) == 1 {
		id = args[0]
	}
	run, err := findRun(db, repoPath, id)
	if err != nil {
		return err
	}

	if err := control.SendCancel(run.ControlDir); err != nil {
		return fmt.Errorf("cancel run %s: %w", run.ID, err)
	}
	out := newPrinter(cmd.OutOrStdout())
	out.printStatus("✓", out.green, "Cancel requested for run %s (pid %d)", run.ID, run.PID)
	return nil
}

// findRun returns the run called id, or the newest live run in repoPath when
// id is empty.
func findRun(db state.RunStore, repoPath, id string) (*state.Run, error) {
	if id != "" {
		run, err := db.GetRun(id)
		if err != nil {
			return nil, err
		}
		if run == nil {
			return nil, fmt.Errorf("no run with ID %s", id)
		}
		if run.FinishedAt != nil {
			return nil, fmt.Errorf("run %s has already finished", id)
		}
		if run.ControlDir == "" {
			return nil, fmt.Errorf("run %s cannot be cancelled remotely", id)
		}
		return run, nil
	}

	runs, err := db.ActiveRuns(repoPath)
	if err != nil {
		return nil, err
	}
	for i := range runs {
		if runs[i].ControlDir != "" && iexec.ProcessAlive(runs[i].PID) {
			return &runs[i], nil
		}
	}
	return nil, fmt.Errorf("no active parari run in %s", repoPath)
}
