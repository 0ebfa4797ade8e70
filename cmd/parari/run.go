package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ShayCichocki/parari/internal/config"
	"github.com/ShayCichocki/parari/internal/control"
	"github.com/ShayCichocki/parari/internal/coordinator"
	"github.com/ShayCichocki/parari/internal/editor"
	perrors "github.com/ShayCichocki/parari/internal/errors"
	"github.com/ShayCichocki/parari/internal/executor"
	iexec "github.com/ShayCichocki/parari/internal/exec"
	"github.com/ShayCichocki/parari/internal/git"
	"github.com/ShayCichocki/parari/internal/logging"
	"github.com/ShayCichocki/parari/internal/merge"
	"github.com/ShayCichocki/parari/internal/state"
	"github.com/ShayCichocki/parari/internal/tui"
	"github.com/ShayCichocki/parari/internal/worktree"
	"github.com/ShayCichocki/parari/pkg/models"
)

// runOptions is everything one run needs once flags and config are resolved.
type runOptions struct {
	cfg         *config.Config
	repoPath    string
	prompt      string
	executors   []executor.Executor
	interactive bool
	noSelect    bool
	autoSelect  bool
	verbose     bool
	// runsDir holds per-run control directories; empty selects ~/.parari/runs.
	runsDir string
	out     io.Writer
}

func runRoot(cmd *cobra.Command, args []string) error {
	repoPath, err := resolveRepo(directory)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(repoPath)
	if err != nil {
		return err
	}

	names, explicit := agentNames(rootFlags, cfg)
	execs, err := selectExecutors(buildRegistry(cfg), names, explicit)
	if err != nil {
		return err
	}

	prompt := promptFromArgs(args)
	if prompt == "" {
		ed, err := editor.New(editor.Resolve(cfg.Editor))
		if err != nil {
			return err
		}
		if prompt, err = ed.Capture(cmd.Context()); err != nil {
			return err
		}
	}

	return runPrompt(cmd.Context(), runOptions{
		cfg:         cfg,
		repoPath:    repoPath,
		prompt:      prompt,
		executors:   execs,
		interactive: !rootFlags.noSelect && !rootFlags.autoSelect && isTerminal(),
		noSelect:    rootFlags.noSelect,
		autoSelect:  rootFlags.autoSelect,
		verbose:     verbose,
		out:         os.Stdout,
	})
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// runPrompt runs one prompt across opts.executors, lets the operator (or the
// headless selection rules) pick a result and applies it. Every worktree the
// run created is removed before it returns.
func runPrompt(parent context.Context, opts runOptions) error {
	out := newPrinter(opts.out)

	log := openLogger(opts)
	defer log.Close()

	runID := coordinator.NewRunID()
	log = log.WithRun(runID)
	log.Info("run starting", "repo", opts.repoPath, "agents", len(opts.executors))

	db := openRegistry(opts.cfg.State.Path, log)
	if db != nil {
		defer db.Close()
	}

	manager, err := newManager(opts.cfg, opts.repoPath, db, log)
	if err != nil {
		return err
	}
	pruneOld(manager, db, opts.repoPath, opts.cfg.Worktrees.Max, log)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	watcher := openControl(opts.runsDir, runID, log)
	if watcher != nil {
		defer watcher.Remove()
	}
	if db != nil {
		run := &state.Run{ID: runID, RepoPath: opts.repoPath, PID: os.Getpid(), StartedAt: time.Now()}
		if watcher != nil {
			run.ControlDir = watcher.Dir()
		}
		if err := db.CreateRun(run); err != nil {
			log.Warn("record run failed", "error", err)
		}
		defer func() {
			if err := db.FinishRun(runID); err != nil {
				log.Warn("finish run failed", "error", err)
			}
		}()
	}

	var interrupted atomic.Bool
	stopSignals := watchSignals(ctx, cancel, watcher, &interrupted, log)
	defer stopSignals()

	coord := coordinator.New(manager,
		coordinator.WithRepo(git.NewRunner(opts.repoPath)),
		coordinator.WithRunID(runID),
		coordinator.WithLogger(log),
	)
	handle, err := coord.Start(ctx, coordinator.RunSet{Prompt: opts.prompt, Executors: opts.executors})
	if err != nil {
		return err
	}
	defer func() {
		if err := handle.Teardown(); err != nil {
			log.Warn("teardown incomplete", "error", err)
		}
	}()

	cancelled := func() error {
		cancelRun(handle, log)
		if interrupted.Load() {
			return &exitError{code: exitInterrupted, err: perrors.ErrCancelled}
		}
		return perrors.ErrCancelled
	}

	var agent string
	if opts.interactive {
		decision, err := tui.Run(ctx, handle)
		if err != nil {
			cancelRun(handle, log)
			return err
		}
		if decision.Action != tui.ActionApply {
			return cancelled()
		}
		agent = decision.Agent
	} else {
		out.header(opts.repoPath, handle.Agents())
		snap := followHeadless(ctx, handle, out)
		if ctx.Err() != nil {
			return cancelled()
		}
		out.summary(snap)
		if opts.noSelect || opts.verbose {
			out.results(snap)
		}

		var ok bool
		if agent, ok = pickHeadless(snap, opts.noSelect, opts.autoSelect); !ok {
			if !opts.noSelect && len(snap.Agents) > 1 {
				out.warn("Nothing applied. Run in a terminal to choose, or pass --auto-select.")
			}
			return nil
		}
	}

	applier := merge.NewApplier(opts.repoPath, merge.WithLogger(log))
	res, err := applier.Apply(ctx, handle, agent)
	if err != nil {
		return err
	}
	out.applied(res)
	return nil
}

// followHeadless prints each status change until every agent is terminal or
// ctx is cancelled.
func followHeadless(ctx context.Context, h *coordinator.Handle, out *printer) models.RunSnapshot {
	seen := make(map[string]models.AgentStatus)
	report := func() models.RunSnapshot {
		snap := h.Snapshot()
		for _, a := range snap.Agents {
			if seen[a.Agent] != a.Status {
				seen[a.Agent] = a.Status
				out.status(a)
			}
		}
		return snap
	}

	report()
	for {
		select {
		case <-h.Updates():
			report()
		case <-h.Done():
			return report()
		case <-ctx.Done():
			return h.Snapshot()
		}
	}
}

// pickHeadless chooses the agent to apply without an interface. A run with a
// single agent applies it when it succeeded.
func pickHeadless(snap models.RunSnapshot, noSelect, autoSelect bool) (string, bool) {
	switch {
	case noSelect:
		return "", false
	case autoSelect:
		return merge.AutoSelect(snap)
	case len(snap.Agents) == 1 && snap.Agents[0].Applicable():
		return snap.Agents[0].Agent, true
	default:
		return "", false
	}
}

// watchSignals cancels the run on SIGINT, SIGTERM or a cancel request from
// `parari cancel`. The returned func stops watching.
func watchSignals(ctx context.Context, cancel context.CancelFunc, w *control.Watcher, interrupted *atomic.Bool, log *logging.Logger) func() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var requests <-chan control.Signal
	if w != nil {
		requests = w.Signals()
	}

	stop := make(chan struct{})
	go func() {
		select {
		case sig := <-sigCh:
			log.Info("interrupted, cleaning up worktrees", "signal", sig.String())
			interrupted.Store(true)
			cancel()
		case <-requests:
			log.Info("cancel requested from another process")
			cancel()
		case <-ctx.Done():
		case <-stop:
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(stop)
	}
}

// openLogger returns the console logger for verbose headless runs, the file
// logger otherwise. Logging problems never stop a run.
func openLogger(opts runOptions) *logging.Logger {
	if opts.verbose && !opts.interactive {
		return logging.NewConsoleLogger(os.Stderr, "debug")
	}
	log, err := logging.NewFileLogger(opts.cfg.Log.Dir, opts.cfg.Log.Level)
	if err != nil {
		newPrinter(os.Stderr).warn("file logging disabled: %v", err)
		return logging.NopLogger()
	}
	return log
}

// openRegistry opens the worktree registry. A nil result means bookkeeping
// is unavailable and the run continues without it.
func openRegistry(path string, log *logging.Logger) *state.DB {
	db, err := state.OpenAndMigrate(path)
	if err != nil {
		log.Warn("worktree registry unavailable", "path", path, "error", err)
		return nil
	}
	return db
}

func newManager(cfg *config.Config, repoPath string, db *state.DB, log *logging.Logger) (*worktree.Manager, error) {
	opts := []worktree.Option{worktree.WithLogger(log)}
	if db != nil {
		opts = append(opts, worktree.WithRegistry(db))
	}
	return worktree.NewManager(cfg.Worktrees.Dir, repoPath, opts...)
}

// openControl creates the run's control directory. Without it the run cannot
// be cancelled from another shell, which is logged and tolerated.
func openControl(runsDir, runID string, log *logging.Logger) *control.Watcher {
	if runsDir == "" {
		dir, err := control.DefaultRunsDir()
		if err != nil {
			log.Warn("run control unavailable", "error", err)
			return nil
		}
		runsDir = dir
	}
	w, err := control.NewWatcher(control.RunDir(runsDir, runID), control.WithLogger(log))
	if err != nil {
		log.Warn("run control unavailable", "error", err)
		return nil
	}
	return w
}

// pruneOld trims worktrees left by earlier runs down to max, sparing runs
// whose process is still alive.
func pruneOld(m *worktree.Manager, db *state.DB, repoPath string, max int, log *logging.Logger) {
	removed, err := m.CleanupOld(max, liveRuns(db, repoPath, log))
	if err != nil {
		log.Warn("cleanup of old worktrees failed", "error", err)
		return
	}
	for _, p := range removed {
		log.Info("removed old worktree", "path", p)
	}
}

// liveRuns returns the IDs of unfinished runs whose process still exists.
// Runs whose process is gone are marked finished.
func liveRuns(db *state.DB, repoPath string, log *logging.Logger) map[string]bool {
	live := make(map[string]bool)
	if db == nil {
		return live
	}
	runs, err := db.ActiveRuns(repoPath)
	if err != nil {
		log.Warn("list active runs failed", "error", err)
		return live
	}
	for _, r := range runs {
		if iexec.ProcessAlive(r.PID) {
			live[r.ID] = true
			continue
		}
		if err := db.FinishRun(r.ID); err != nil {
			log.Warn("finish stale run failed", "run", r.ID, "error", err)
		}
		if r.ControlDir != "" {
			_ = os.RemoveAll(r.ControlDir)
		}
	}
	return live
}

// cancelRun stops every agent and logs worktrees that could not be removed.
func cancelRun(run interface{ Cancel() error }, log *logging.Logger) {
	if err := run.Cancel(); err != nil {
		log.Warn("cancel cleanup incomplete", "error", err)
	}
}
