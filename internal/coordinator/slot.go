package coordinator

import (
	"sync"
	"time"

	"github.com/ShayCichocki/parari/internal/executor"
	"github.com/ShayCichocki/parari/internal/worktree"
	"github.com/ShayCichocki/parari/pkg/models"
)

// slot is one agent's place in a run. Each slot has its own lock; no lock is
// shared between slots.
type slot struct {
	exec executor.Executor

	mu       sync.Mutex
	status   models.AgentStatus
	reason   string
	exitCode int
	errMsg   string
	wt       *worktree.Worktree
	log      []models.LogLine
	diff     *models.DiffSummary
	started  time.Time
	finished time.Time
}

func newSlot(e executor.Executor) *slot {
	return &slot{exec: e, status: models.AgentStatusPending}
}

func (s *slot) name() string {
	return s.exec.Name()
}

// transition moves the slot to status to. It refuses moves the lifecycle does
// not allow, so a terminal slot never changes again.
func (s *slot) transition(to models.AgentStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitionLocked(to)
}

func (s *slot) transitionLocked(to models.AgentStatus) bool {
	if !models.CanTransition(s.status, to) {
		return false
	}
	s.status = to
	switch {
	case to == models.AgentStatusRunning:
		s.started = time.Now()
	case to.Terminal():
		s.finished = time.Now()
	}
	return true
}

// finish moves the slot to its terminal status together with the details.
func (s *slot) finish(status models.AgentStatus, reason string, exitCode int, err error, diff *models.DiffSummary) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.transitionLocked(status) {
		return false
	}
	s.reason = reason
	s.exitCode = exitCode
	if err != nil {
		s.errMsg = err.Error()
	}
	s.diff = diff
	return true
}

func (s *slot) append(l models.LogLine) {
	s.mu.Lock()
	s.log = append(s.log, l)
	s.mu.Unlock()
}

func (s *slot) note(text string) {
	s.append(models.LogLine{Stream: models.StreamSystem, Text: text, At: time.Now()})
}

func (s *slot) setWorktree(wt *worktree.Worktree) {
	s.mu.Lock()
	s.wt = wt
	s.mu.Unlock()
}

func (s *slot) worktree() *worktree.Worktree {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wt
}

// snapshot copies the slot under its lock.
func (s *slot) snapshot() models.AgentSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := models.AgentSnapshot{
		Agent:      s.name(),
		Status:     s.status,
		Reason:     s.reason,
		ExitCode:   s.exitCode,
		Error:      s.errMsg,
		Log:        append([]models.LogLine(nil), s.log...),
		StartedAt:  s.started,
		FinishedAt: s.finished,
	}
	if s.wt != nil {
		snap.WorktreePath = s.wt.Path
		snap.Branch = s.wt.Branch
	}
	if s.diff != nil {
		d := *s.diff
		d.ChangedFiles = append([]string(nil), s.diff.ChangedFiles...)
		snap.Diff = &d
	}
	return snap
}
