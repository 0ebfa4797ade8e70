// Package merge applies one agent's result to the primary working tree.
package merge

import (
	"context"
	"fmt"
	"sort"

	"github.com/ShayCichocki/parari/internal/errors"
	"github.com/ShayCichocki/parari/internal/git"
	"github.com/ShayCichocki/parari/internal/logging"
	"github.com/ShayCichocki/parari/internal/worktree"
	"github.com/ShayCichocki/parari/pkg/models"
)

// Run is the part of a run set apply needs. coordinator.Handle satisfies it.
type Run interface {
	// Slot returns a snapshot of the named agent.
	Slot(agent string) (models.AgentSnapshot, bool)
	// Worktree returns the named agent's worktree.
	Worktree(agent string) (*worktree.Worktree, bool)
	// Teardown removes every worktree in the run.
	Teardown() error
}

// Result represents the outcome of a successful apply.
type Result struct {
	// Agent is the agent whose work was applied.
	Agent string
	// Branch is the agent branch that was merged.
	Branch string
	// Merged is false when the agent made no changes and nothing was merged.
	Merged bool
	// ChangedFiles lists the files the merge changed.
	ChangedFiles []string
	// Diff contains the unified diff of the merge commit.
	Diff string
}

// MergeMessage returns the merge commit message for agent.
func MergeMessage(agent string) string {
	return fmt.Sprintf("parari: apply %s", agent)
}

// Applier merges agent branches into the primary working tree.
type Applier struct {
	git git.Runner
	log *logging.Logger
}

// Option configures an Applier.
type Option func(*Applier)

// WithRunner overrides the git runner (for testing).
func WithRunner(r git.Runner) Option {
	return func(a *Applier) { a.git = r }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(a *Applier) { a.log = l }
}

// NewApplier creates an Applier for the repository at repoPath.
func NewApplier(repoPath string, opts ...Option) *Applier {
	a := &Applier{
		git: git.NewRunner(repoPath),
		log: logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Apply merges agent's branch into the primary working tree.
//
// Only a succeeded slot can be applied; anything else is rejected before the
// primary tree or the run is touched. Once past that check the run is always
// torn down, whether the merge lands or not.
func (a *Applier) Apply(ctx context.Context, run Run, agent string) (*Result, error) {
	slot, ok := run.Slot(agent)
	if !ok {
		return nil, &errors.MergeError{Agent: agent, Reason: errors.MergeNotApplicable,
			Err: fmt.Errorf("%w: unknown agent", errors.ErrNotApplicable)}
	}
	if !slot.Applicable() {
		return nil, &errors.MergeError{Agent: agent, Reason: errors.MergeNotApplicable,
			Err: fmt.Errorf("%w: status is %s", errors.ErrNotApplicable, slot.Status)}
	}
	wt, ok := run.Worktree(agent)
	if !ok {
		return nil, &errors.MergeError{Agent: agent, Reason: errors.MergeNotApplicable,
			Err: fmt.Errorf("%w: no worktree", errors.ErrNotApplicable)}
	}

	log := a.log.WithRun(wt.RunID).WithAgent(agent)
	defer func() {
		if err := run.Teardown(); err != nil {
			log.Warn("teardown after apply failed", "error", err)
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	head, err := a.git.RevParse("HEAD")
	if err != nil {
		return nil, &errors.MergeError{Agent: agent, Reason: errors.MergeFailed, Err: err}
	}
	if head != wt.BaseCommit {
		log.Warn("base diverged", "base_commit", wt.BaseCommit, "head", head)
		return nil, &errors.MergeError{Agent: agent, Reason: errors.MergeDiverged,
			Err: fmt.Errorf("%w: HEAD is %s, run started at %s", errors.ErrBaseDiverged, short(head), short(wt.BaseCommit))}
	}

	var changed []string
	if slot.Diff != nil {
		changed = slot.Diff.ChangedFiles
	}
	dirty, err := a.git.DirtyFiles()
	if err != nil {
		return nil, &errors.MergeError{Agent: agent, Reason: errors.MergeFailed, Err: err}
	}
	if overlap := intersect(dirty, changed); len(overlap) > 0 {
		return nil, &errors.MergeError{Agent: agent, Reason: errors.MergeDirty, Paths: overlap,
			Err: errors.ErrDirtyWorkingTree}
	}

	res := &Result{Agent: agent, Branch: wt.Branch}
	if slot.Diff.Empty() {
		log.Info("nothing to apply")
		return res, nil
	}

	if err := a.git.MergeNoFFMessage(wt.Branch, MergeMessage(agent)); err != nil {
		conflicts, _ := a.git.ConflictedFiles()
		if abortErr := a.git.MergeAbort(); abortErr != nil {
			log.Error("merge abort failed", "error", abortErr)
		}
		if len(conflicts) > 0 {
			return nil, &errors.MergeError{Agent: agent, Reason: errors.MergeConflict, Paths: conflicts,
				Err: fmt.Errorf("%w: %v", errors.ErrMergeConflict, err)}
		}
		return nil, &errors.MergeError{Agent: agent, Reason: errors.MergeFailed, Err: err}
	}

	res.Merged = true
	res.ChangedFiles = append([]string(nil), changed...)
	res.Diff, _ = a.git.DiffBetween("HEAD^", "HEAD")
	log.Info("applied", "branch", wt.Branch, "files", len(changed))
	return res, nil
}

// AutoSelect picks the succeeded agent with the most changed files. Ties go
// to the earlier agent. It returns false if no agent succeeded.
func AutoSelect(snap models.RunSnapshot) (string, bool) {
	best, bestFiles := "", -1
	for _, a := range snap.Agents {
		if !a.Applicable() {
			continue
		}
		files := 0
		if a.Diff != nil {
			files = a.Diff.FilesChanged
		}
		if files > bestFiles {
			best, bestFiles = a.Agent, files
		}
	}
	return best, bestFiles >= 0
}

func intersect(a, b []string) []string {
	set := make(map[string]bool, len(b))
	for _, p := range b {
		set[p] = true
	}
	var out []string
	for _, p := range a {
		if set[p] {
			out = append(out, p)
			delete(set, p)
		}
	}
	sort.Strings(out)
	return out
}

func short(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
