package state

import "io"

// RunStore records parari invocations.
type RunStore interface {
	CreateRun(r *Run) error
	FinishRun(id string) error
	GetRun(id string) (*Run, error)
	ActiveRuns(repoPath string) ([]Run, error)
}

// WorktreeStore records the worktrees each run created.
type WorktreeStore interface {
	RecordWorktree(w *WorktreeRecord) error
	MarkWorktreeRemoved(path string) error
	ListWorktrees(filter WorktreeFilter) ([]WorktreeRecord, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// Registry is the complete bookkeeping store.
type Registry interface {
	io.Closer
	Migrator
	RunStore
	WorktreeStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Registry      = (*DB)(nil)
	_ RunStore      = (*DB)(nil)
	_ WorktreeStore = (*DB)(nil)
)
