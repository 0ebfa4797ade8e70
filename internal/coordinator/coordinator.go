// Package coordinator runs one prompt through several agents at once, each in
// its own worktree, and exposes the live state of the run.
package coordinator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"github.com/ShayCichocki/parari/internal/errors"
	"github.com/ShayCichocki/parari/internal/executor"
	"github.com/ShayCichocki/parari/internal/git"
	"github.com/ShayCichocki/parari/internal/logging"
	"github.com/ShayCichocki/parari/internal/worktree"
)

// lineBuffer is the capacity of each slot's executor output channel.
const lineBuffer = 256

// RunSet is the prompt and the agents that will attempt it.
// Membership is fixed once the run starts.
type RunSet struct {
	Prompt    string
	Executors []executor.Executor
}

// Validate checks that the run set has at least one executor and that agent
// names are non-empty and map to distinct worktrees.
func (rs RunSet) Validate() error {
	if len(rs.Executors) == 0 {
		return errors.ErrNoExecutors
	}
	seen := make(map[string]string, len(rs.Executors))
	for i, e := range rs.Executors {
		if e == nil {
			return fmt.Errorf("executor %d is nil", i)
		}
		name := e.Name()
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("executor %d has an empty name", i)
		}
		slug := worktree.Slug(name)
		if prev, ok := seen[slug]; ok {
			if prev == name {
				return fmt.Errorf("duplicate agent name %q", name)
			}
			return fmt.Errorf("agent names %q and %q share worktree name %q", prev, name, slug)
		}
		seen[slug] = name
	}
	return nil
}

// Coordinator starts runs against a worktree provider.
type Coordinator struct {
	worktrees  worktree.Provider
	repo       git.BranchOperations
	baseBranch string
	runID      string
	gitFor     func(dir string) git.Runner
	log        *logging.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithRepo sets the primary repository used to resolve the current branch.
func WithRepo(r git.BranchOperations) Option {
	return func(c *Coordinator) { c.repo = r }
}

// WithBaseBranch pins the branch worktrees start from instead of the current one.
func WithBaseBranch(branch string) Option {
	return func(c *Coordinator) { c.baseBranch = branch }
}

// WithRunID overrides the generated run ID.
func WithRunID(id string) Option {
	return func(c *Coordinator) { c.runID = id }
}

// WithGitFactory overrides how a git runner is built for a worktree (for testing).
func WithGitFactory(f func(dir string) git.Runner) Option {
	return func(c *Coordinator) { c.gitFor = f }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// New creates a Coordinator that allocates worktrees from worktrees.
func New(worktrees worktree.Provider, opts ...Option) *Coordinator {
	c := &Coordinator{
		worktrees: worktrees,
		gitFor:    func(dir string) git.Runner { return git.NewRunner(dir) },
		log:       logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewRunID returns a sortable run ID: a UTC timestamp with milliseconds
// followed by eight random hex digits. It never contains '-'.
func NewRunID() string {
	now := time.Now().UTC()
	return fmt.Sprintf("%s%03d%s", now.Format("20060102150405"), now.Nanosecond()/int(time.Millisecond), uuid.New().String()[:8])
}

// Start validates rs, creates every slot in the pending state and launches
// one goroutine per slot. It returns as soon as the goroutines are started.
func (c *Coordinator) Start(ctx context.Context, rs RunSet) (*Handle, error) {
	if err := rs.Validate(); err != nil {
		return nil, err
	}

	base := c.baseBranch
	if base == "" {
		if c.repo == nil {
			return nil, fmt.Errorf("no base branch: coordinator has no repository")
		}
		branch, err := c.repo.CurrentBranch()
		if err != nil {
			return nil, fmt.Errorf("resolve current branch: %w", err)
		}
		base = branch
	}

	runID := c.runID
	if runID == "" {
		runID = NewRunID()
	}

	runCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		coord:      c,
		runID:      runID,
		prompt:     rs.Prompt,
		baseBranch: base,
		cancel:     cancel,
		updates:    make(chan struct{}, 1),
		done:       make(chan struct{}),
		log:        c.log.WithRun(runID),
	}
	for _, e := range rs.Executors {
		h.slots = append(h.slots, newSlot(e))
	}

	h.log.Info("run started", "base_branch", base, "agents", len(h.slots))

	var wg conc.WaitGroup
	for _, s := range h.slots {
		wg.Go(func() { h.runSlot(runCtx, s) })
	}
	go func() {
		wg.Wait()
		close(h.done)
		h.notify()
		h.log.Info("run finished")
	}()

	return h, nil
}
