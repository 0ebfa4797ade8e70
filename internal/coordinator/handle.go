package coordinator

import (
	"context"
	"fmt"
	"sync"

	"github.com/sourcegraph/conc/panics"
	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/parari/internal/executor"
	"github.com/ShayCichocki/parari/internal/logging"
	"github.com/ShayCichocki/parari/internal/result"
	"github.com/ShayCichocki/parari/internal/worktree"
	"github.com/ShayCichocki/parari/pkg/models"
)

// Handle is a running (or finished) run set.
type Handle struct {
	coord      *Coordinator
	runID      string
	prompt     string
	baseBranch string
	slots      []*slot
	log        *logging.Logger

	cancel  context.CancelFunc
	updates chan struct{}
	done    chan struct{}

	teardownMu sync.Mutex
	tornDown   bool
}

// RunID returns the run's identifier.
func (h *Handle) RunID() string { return h.runID }

// Prompt returns the prompt every agent received.
func (h *Handle) Prompt() string { return h.prompt }

// BaseBranch returns the branch every worktree started from.
func (h *Handle) BaseBranch() string { return h.baseBranch }

// Agents returns agent names in run order.
func (h *Handle) Agents() []string {
	names := make([]string, len(h.slots))
	for i, s := range h.slots {
		names[i] = s.name()
	}
	return names
}

// Snapshot copies the state of every slot. Each slot is read under its own
// lock, so the result may mix moments across slots but never within one.
func (h *Handle) Snapshot() models.RunSnapshot {
	snap := models.RunSnapshot{
		RunID:      h.runID,
		Prompt:     h.prompt,
		BaseBranch: h.baseBranch,
		Agents:     make([]models.AgentSnapshot, len(h.slots)),
	}
	for i, s := range h.slots {
		snap.Agents[i] = s.snapshot()
	}
	return snap
}

// Updates signals that some slot changed. Signals coalesce: a receiver that
// falls behind sees one pending signal, never a backlog.
func (h *Handle) Updates() <-chan struct{} {
	return h.updates
}

// Done is closed once every slot is terminal.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// AwaitAll blocks until every slot is terminal and returns the final snapshot.
func (h *Handle) AwaitAll(ctx context.Context) (models.RunSnapshot, error) {
	select {
	case <-h.done:
		return h.Snapshot(), nil
	case <-ctx.Done():
		return h.Snapshot(), ctx.Err()
	}
}

// Cancel stops every agent, waits for all slots to finish and removes every
// worktree. It blocks until cleanup is complete.
func (h *Handle) Cancel() error {
	h.log.Info("run cancel requested")
	h.cancel()
	<-h.done
	return h.Teardown()
}

// Teardown removes every worktree in the run. Agents still running are
// cancelled and waited for first. Once every removal has succeeded further
// calls are no-ops; after a failure the next call retries what is left.
func (h *Handle) Teardown() error {
	h.teardownMu.Lock()
	defer h.teardownMu.Unlock()
	if h.tornDown {
		return nil
	}

	h.cancel()
	<-h.done

	var g errgroup.Group
	for _, s := range h.slots {
		wt := s.worktree()
		if wt == nil {
			continue
		}
		g.Go(func() error {
			if err := h.coord.worktrees.Remove(wt); err != nil {
				h.log.WithAgent(s.name()).Warn("worktree removal failed", "path", wt.Path, "error", err)
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	h.tornDown = true
	h.log.Info("run torn down")
	return nil
}

// Worktree returns the named agent's worktree, if it has one.
func (h *Handle) Worktree(agent string) (*worktree.Worktree, bool) {
	s := h.find(agent)
	if s == nil {
		return nil, false
	}
	wt := s.worktree()
	return wt, wt != nil
}

// Slot returns a snapshot of the named agent.
func (h *Handle) Slot(agent string) (models.AgentSnapshot, bool) {
	s := h.find(agent)
	if s == nil {
		return models.AgentSnapshot{}, false
	}
	return s.snapshot(), true
}

func (h *Handle) find(agent string) *slot {
	for _, s := range h.slots {
		if s.name() == agent {
			return s
		}
	}
	return nil
}

func (h *Handle) notify() {
	select {
	case h.updates <- struct{}{}:
	default:
	}
}

// runSlot drives one slot to a terminal status. A panic anywhere in the slot
// fails that slot only.
func (h *Handle) runSlot(ctx context.Context, s *slot) {
	log := h.log.WithAgent(s.name())

	var pc panics.Catcher
	pc.Try(func() { h.execute(ctx, s, log) })
	if r := pc.Recovered(); r != nil {
		log.Error("agent panicked", "panic", r.Value)
		s.note(fmt.Sprintf("internal error: %v", r.Value))
		s.finish(models.AgentStatusFailed, models.ReasonPanic, -1, r.AsError(), nil)
	}
	h.notify()
}

func (h *Handle) execute(ctx context.Context, s *slot, log *logging.Logger) {
	if ctx.Err() != nil {
		s.finish(models.AgentStatusCancelled, models.ReasonCancelled, -1, nil, nil)
		return
	}

	if err := s.exec.Available(); err != nil {
		log.Warn("agent unavailable", "error", err)
		s.note(err.Error())
		s.finish(models.AgentStatusFailed, models.ReasonUnavailable, -1, err, nil)
		return
	}

	wt, err := h.coord.worktrees.Create(h.baseBranch, h.runID, s.name())
	if err != nil {
		log.Error("worktree creation failed", "error", err)
		s.note(fmt.Sprintf("worktree creation failed: %v", err))
		s.finish(models.AgentStatusFailed, models.ReasonWorktree, -1, err, nil)
		return
	}
	s.setWorktree(wt)
	h.notify()

	if ctx.Err() != nil {
		h.removeNow(s, wt, log)
		s.finish(models.AgentStatusCancelled, models.ReasonCancelled, -1, nil, nil)
		return
	}

	s.transition(models.AgentStatusRunning)
	h.notify()
	log.Info("agent started", "worktree", wt.Path)

	outcome := h.stream(ctx, s, wt.Path)

	if outcome.Status == models.AgentStatusCancelled {
		h.removeNow(s, wt, log)
		s.finish(models.AgentStatusCancelled, models.ReasonCancelled, outcome.ExitCode, nil, nil)
		log.Info("agent cancelled")
		return
	}

	// The commit is made before the slot turns terminal so an applicable
	// slot always has its branch ready to merge.
	diff, err := h.collect(s, wt)
	if err != nil {
		log.Error("recording result failed", "error", err)
		s.note(fmt.Sprintf("recording result failed: %v", err))
		if outcome.Status == models.AgentStatusSucceeded {
			outcome = executor.Outcome{Status: models.AgentStatusFailed, Reason: models.ReasonResult, ExitCode: outcome.ExitCode, Err: err}
		}
	}
	if outcome.Err != nil && outcome.Reason != models.ReasonResult {
		s.note(outcome.Err.Error())
	}

	s.finish(outcome.Status, outcome.Reason, outcome.ExitCode, outcome.Err, diff)
	log.Info("agent finished", "status", outcome.Status, "exit_code", outcome.ExitCode)
}

// stream runs the executor with a single consumer draining its output, so the
// slot's log keeps the order the agent produced.
func (h *Handle) stream(ctx context.Context, s *slot, dir string) executor.Outcome {
	out := make(chan models.LogLine, lineBuffer)
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		for l := range out {
			s.append(l)
			h.notify()
		}
	}()
	defer func() {
		close(out)
		<-consumed
	}()
	return s.exec.Run(ctx, dir, h.prompt, out)
}

func (h *Handle) collect(s *slot, wt *worktree.Worktree) (*models.DiffSummary, error) {
	runner := h.coord.gitFor(wt.Path)
	if _, err := result.Record(runner, s.name()); err != nil {
		return nil, err
	}
	return result.Summarize(runner, wt.BaseCommit)
}

func (h *Handle) removeNow(s *slot, wt *worktree.Worktree, log *logging.Logger) {
	if err := h.coord.worktrees.Remove(wt); err != nil {
		log.Warn("worktree removal failed", "path", wt.Path, "error", err)
		s.note(fmt.Sprintf("worktree removal failed: %v", err))
	}
}
