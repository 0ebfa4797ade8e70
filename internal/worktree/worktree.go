// Package worktree manages the isolated git checkouts agents run in.
package worktree

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ShayCichocki/parari/internal/errors"
	"github.com/ShayCichocki/parari/internal/git"
	"github.com/ShayCichocki/parari/internal/logging"
	"github.com/ShayCichocki/parari/internal/state"
)

// BranchPrefix prefixes every branch parari creates.
const BranchPrefix = "parari/"

// DefaultMax is the default number of worktrees kept on disk.
const DefaultMax = 20

// Worktree is one agent's checkout.
type Worktree struct {
	Path       string    // Absolute path to the worktree directory
	Branch     string    // Branch checked out in the worktree
	Agent      string    // Agent that owns this worktree
	RunID      string    // Run the worktree belongs to
	BaseBranch string    // Branch the worktree was started from
	BaseCommit string    // Commit BaseBranch pointed at when the worktree was created
	CreatedAt  time.Time // When the worktree was created
}

// Provider creates and removes worktrees. The coordinator depends on this
// interface so tests can count or fail operations.
type Provider interface {
	// Create allocates a new checkout on a fresh branch started at baseBranch.
	Create(baseBranch, runID, agent string) (*Worktree, error)
	// Remove deletes the checkout and its branch. Removing twice is a no-op.
	Remove(wt *Worktree) error
}

// Verify Manager implements Provider at compile time.
var _ Provider = (*Manager)(nil)

// Stats counts worktree operations performed by a Manager.
type Stats struct {
	Created int
	Removed int
}

// Manager handles git worktree operations for agent isolation.
type Manager struct {
	baseDir  string // Directory worktrees are created in (e.g. ~/.parari/worktrees)
	repoPath string // Path to the primary working tree
	git      git.Runner
	registry state.WorktreeStore
	log      *logging.Logger

	// gitMu serialises git commands that touch shared refs and admin files.
	gitMu sync.Mutex

	// removeMu makes check-remove-record atomic per Manager.
	removeMu sync.Mutex

	mu      sync.Mutex
	removed map[string]bool
	stats   Stats
}

// Option configures a Manager.
type Option func(*Manager)

// WithRunner overrides the git runner (for testing).
func WithRunner(r git.Runner) Option {
	return func(m *Manager) { m.git = r }
}

// WithRegistry records created and removed worktrees in the state registry.
func WithRegistry(reg state.WorktreeStore) Option {
	return func(m *Manager) { m.registry = reg }
}

// WithLogger sets the logger used for best-effort failures.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// DefaultBaseDir returns ~/.parari/worktrees.
func DefaultBaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".parari", "worktrees"), nil
}

// NewManager creates a Manager for the repository at repoPath.
// An empty baseDir selects DefaultBaseDir.
func NewManager(baseDir, repoPath string, opts ...Option) (*Manager, error) {
	if baseDir == "" {
		dir, err := DefaultBaseDir()
		if err != nil {
			return nil, err
		}
		baseDir = dir
	}

	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve worktree directory: %w", err)
	}
	absRepo, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, fmt.Errorf("resolve repository path: %w", err)
	}
	if err := os.MkdirAll(absBase, 0755); err != nil {
		return nil, errors.NewFilesystemError("create worktree directory", absBase, err)
	}
	// git reports resolved paths, so compare against resolved ones.
	if resolved, err := filepath.EvalSymlinks(absBase); err == nil {
		absBase = resolved
	}
	if resolved, err := filepath.EvalSymlinks(absRepo); err == nil {
		absRepo = resolved
	}
	if absBase == absRepo {
		return nil, fmt.Errorf("worktree directory %s is the repository itself", absBase)
	}

	m := &Manager{
		baseDir:  absBase,
		repoPath: absRepo,
		git:      git.NewRunner(absRepo),
		removed:  make(map[string]bool),
		log:      logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// BaseDir returns the directory worktrees are created in.
func (m *Manager) BaseDir() string {
	return m.baseDir
}

// Stats returns the number of worktrees created and removed so far.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Slug makes an agent name safe for paths and branch names. Agents whose
// slugs collide would share a worktree.
func Slug(name string) string {
	s := unsafeChars.ReplaceAllString(strings.ToLower(name), "-")
	s = strings.Trim(s, "-.")
	if s == "" {
		return "agent"
	}
	return s
}

// BranchName returns the branch used for an agent in a run.
func BranchName(runID, agent string) string {
	return BranchPrefix + runID + "/" + Slug(agent)
}

// DirName returns the directory name used for an agent in a run.
// Run IDs start with a timestamp, so directory names sort oldest first.
func DirName(runID, agent string) string {
	return runID + "-" + Slug(agent)
}

// Create allocates a new worktree for agent on a fresh branch started at baseBranch.
// It fails with ErrWorktreeExists if the branch or directory is already taken.
func (m *Manager) Create(baseBranch, runID, agent string) (*Worktree, error) {
	branch := BranchName(runID, agent)
	path := filepath.Join(m.baseDir, DirName(runID, agent))

	m.gitMu.Lock()
	defer m.gitMu.Unlock()

	if _, err := os.Lstat(path); err == nil {
		return nil, errors.NewFilesystemError("create worktree", path, errors.ErrWorktreeExists)
	}

	exists, err := m.git.BranchExists(branch)
	if err != nil {
		return nil, errors.NewFilesystemError("create worktree", path, err)
	}
	if exists {
		return nil, errors.NewFilesystemError("create worktree", path,
			fmt.Errorf("branch %s: %w", branch, errors.ErrWorktreeExists))
	}

	base, err := m.git.RevParse(baseBranch)
	if err != nil {
		return nil, errors.NewFilesystemError("resolve base", baseBranch, err)
	}

	if err := m.git.WorktreeAddNewBranch(path, branch, base); err != nil {
		return nil, errors.NewFilesystemError("create worktree", path, err)
	}

	wt := &Worktree{
		Path:       path,
		Branch:     branch,
		Agent:      agent,
		RunID:      runID,
		BaseBranch: baseBranch,
		BaseCommit: base,
		CreatedAt:  time.Now(),
	}

	m.mu.Lock()
	m.stats.Created++
	m.mu.Unlock()

	if m.registry != nil {
		err := m.registry.RecordWorktree(&state.WorktreeRecord{
			Path:       wt.Path,
			Branch:     wt.Branch,
			Agent:      wt.Agent,
			RunID:      wt.RunID,
			RepoPath:   m.repoPath,
			BaseCommit: wt.BaseCommit,
			CreatedAt:  wt.CreatedAt,
		})
		if err != nil {
			m.log.Warn("record worktree failed", "path", wt.Path, "error", err)
		}
	}

	m.log.Debug("worktree created", "path", wt.Path, "branch", wt.Branch, "base", wt.BaseCommit)
	return wt, nil
}

// Remove deletes the worktree and its branch.
//
// Removal is best-effort: git failures fall back to deleting the directory
// and pruning git's bookkeeping, and branch deletion failures are only
// logged. An error is returned only if the directory is still on disk
// afterwards. Removing an already-removed worktree is a no-op.
func (m *Manager) Remove(wt *Worktree) error {
	if wt == nil {
		return nil
	}

	m.removeMu.Lock()
	defer m.removeMu.Unlock()

	m.mu.Lock()
	done := m.removed[wt.Path]
	m.mu.Unlock()
	if done {
		return nil
	}

	if err := m.removePath(wt.Path, wt.Branch); err != nil {
		m.log.Warn("worktree removal failed", "path", wt.Path, "error", err)
		return err
	}

	m.mu.Lock()
	m.removed[wt.Path] = true
	m.stats.Removed++
	m.mu.Unlock()
	m.log.Debug("worktree removed", "path", wt.Path)
	return nil
}

// removePath removes one worktree directory and branch.
func (m *Manager) removePath(path, branch string) error {
	m.gitMu.Lock()
	defer m.gitMu.Unlock()

	_ = m.git.WorktreeUnlock(path) // Ignore errors, it may not be locked

	var removeErr error
	if err := m.git.WorktreeRemove(path); err != nil {
		m.log.Warn("git worktree remove failed, deleting directory", "path", path, "error", err)
		removeErr = err
		if err := os.RemoveAll(path); err != nil {
			removeErr = err
		}
		if err := m.git.WorktreePruneExpireNow(); err != nil {
			m.log.Warn("worktree prune failed", "error", err)
		}
	}

	if branch != "" {
		if exists, _ := m.git.BranchExists(branch); exists {
			if err := m.git.DeleteBranch(branch); err != nil {
				m.log.Warn("delete branch failed", "branch", branch, "error", err)
			}
		}
	}

	if m.registry != nil {
		if err := m.registry.MarkWorktreeRemoved(path); err != nil {
			m.log.Warn("mark worktree removed failed", "path", path, "error", err)
		}
	}

	if _, err := os.Lstat(path); err == nil {
		if removeErr == nil {
			removeErr = fmt.Errorf("directory still present")
		}
		return errors.NewFilesystemError("remove worktree", path, removeErr)
	}
	return nil
}

// Managed lists parari worktrees of this repository that live under BaseDir,
// oldest first.
func (m *Manager) Managed() ([]git.WorktreeEntry, error) {
	m.gitMu.Lock()
	entries, err := m.git.WorktreeList()
	m.gitMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("list worktrees: %w", err)
	}

	var managed []git.WorktreeEntry
	for _, e := range entries {
		if m.isManaged(e) {
			managed = append(managed, e)
		}
	}
	sort.Slice(managed, func(i, j int) bool {
		return filepath.Base(managed[i].Path) < filepath.Base(managed[j].Path)
	})
	return managed, nil
}

// isManaged reports whether a git worktree entry was created by parari in BaseDir.
func (m *Manager) isManaged(e git.WorktreeEntry) bool {
	if e.Path == m.repoPath || filepath.Dir(e.Path) != m.baseDir {
		return false
	}
	return e.Branch == "" || strings.HasPrefix(e.Branch, BranchPrefix)
}

// RunIDFromBranch extracts the run ID from a parari branch name.
func RunIDFromBranch(branch string) string {
	rest, ok := strings.CutPrefix(branch, BranchPrefix)
	if !ok {
		return ""
	}
	runID, _, _ := strings.Cut(rest, "/")
	return runID
}

// RunIDFromDir extracts the run ID from a worktree directory name.
func RunIDFromDir(path string) string {
	runID, _, _ := strings.Cut(filepath.Base(path), "-")
	return runID
}
