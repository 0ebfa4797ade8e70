package worktree

import (
	"os"
	"path/filepath"
	"strings"
)

// CleanupOld removes the oldest parari worktrees until at most max remain.
// Worktrees belonging to a run in protect are never removed.
// It returns the paths it removed.
func (m *Manager) CleanupOld(max int, protect map[string]bool) ([]string, error) {
	if max <= 0 {
		max = DefaultMax
	}

	managed, err := m.Managed()
	if err != nil {
		return nil, err
	}

	var removed []string
	excess := len(managed) - max
	for _, e := range managed {
		if excess <= 0 {
			break
		}
		runID := RunIDFromBranch(e.Branch)
		if runID == "" {
			runID = RunIDFromDir(e.Path)
		}
		if protect[runID] {
			continue
		}
		if err := m.removePath(e.Path, e.Branch); err != nil {
			m.log.Warn("cleanup old worktree failed", "path", e.Path, "error", err)
			continue
		}
		removed = append(removed, e.Path)
		excess--
	}
	return removed, nil
}

// Orphan is a worktree left behind by a run that is no longer alive.
type Orphan struct {
	Path   string
	Branch string
	RunID  string
	// Untracked is true for directories git no longer knows about.
	Untracked bool
}

// ListOrphans returns parari worktrees whose run is not in active.
// Directories in BaseDir that git has lost track of are included too.
func (m *Manager) ListOrphans(active map[string]bool) ([]Orphan, error) {
	m.gitMu.Lock()
	_ = m.git.WorktreePruneExpireNow() // Drop entries whose directories are already gone
	m.gitMu.Unlock()

	managed, err := m.Managed()
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(managed))
	var orphans []Orphan
	for _, e := range managed {
		known[e.Path] = true
		runID := RunIDFromBranch(e.Branch)
		if runID == "" {
			runID = RunIDFromDir(e.Path)
		}
		if active[runID] {
			continue
		}
		orphans = append(orphans, Orphan{Path: e.Path, Branch: e.Branch, RunID: runID})
	}

	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return orphans, nil
		}
		return nil, err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(m.baseDir, entry.Name())
		if known[path] {
			continue
		}
		runID := RunIDFromDir(path)
		if active[runID] {
			continue
		}
		// Another repository's worktree shares BaseDir; leave it to that repository.
		if belongsElsewhere(path) {
			continue
		}
		orphans = append(orphans, Orphan{Path: path, RunID: runID, Untracked: true})
	}

	return orphans, nil
}

// belongsElsewhere reports whether path is a live worktree of some repository.
// A worktree's .git file points at its admin directory; if that still exists
// the worktree is registered with a repository other than ours.
func belongsElsewhere(path string) bool {
	data, err := os.ReadFile(filepath.Join(path, ".git"))
	if err != nil {
		return false
	}
	admin, ok := strings.CutPrefix(strings.TrimSpace(string(data)), "gitdir: ")
	if !ok {
		return false
	}
	_, err = os.Stat(filepath.Clean(admin))
	return err == nil
}

// CleanupOrphans removes the given orphans and returns how many were removed.
// If verbose is non-nil it is called for each removed path.
func (m *Manager) CleanupOrphans(orphans []Orphan, verbose func(path string)) int {
	removed := 0
	for _, o := range orphans {
		if err := m.removePath(o.Path, o.Branch); err != nil {
			m.log.Warn("remove orphan failed", "path", o.Path, "error", err)
			continue
		}
		if verbose != nil {
			verbose(o.Path)
		}
		removed++
	}

	m.gitMu.Lock()
	_ = m.git.WorktreePruneExpireNow() // Ignore errors, worktrees already removed
	m.gitMu.Unlock()

	return removed
}
