// Package git provides an interface for the git operations parari needs.
package git

// FileStatus classifies one path in a name-status diff.
type FileStatus byte

const (
	FileAdded    FileStatus = 'A'
	FileModified FileStatus = 'M'
	FileDeleted  FileStatus = 'D'
	FileRenamed  FileStatus = 'R'
	FileCopied   FileStatus = 'C'
)

// FileChange is one entry of git diff --name-status.
type FileChange struct {
	Status FileStatus
	Path   string
	// OldPath is set for renames and copies.
	OldPath string
}

// BranchOperations defines the interface for git branch and ref operations.
type BranchOperations interface {
	// CurrentBranch returns the name of the current branch.
	CurrentBranch() (string, error)
	// BranchExists returns true if the branch exists.
	BranchExists(name string) (bool, error)
	// DeleteBranch deletes the specified branch (force delete).
	DeleteBranch(name string) error
	// RevParse resolves a ref to a full commit SHA.
	RevParse(ref string) (string, error)
	// TopLevel returns the absolute path of the working tree root.
	TopLevel() (string, error)
}

// DiffOperations defines the interface for git diff and status operations.
type DiffOperations interface {
	// Status returns the output of git status --porcelain.
	Status() (string, error)
	// HasChanges returns true if there are uncommitted changes.
	HasChanges() (bool, error)
	// DirtyFiles returns the paths with uncommitted changes, including untracked files.
	DirtyFiles() ([]string, error)
	// UntrackedFiles returns untracked paths, honouring .gitignore.
	UntrackedFiles() ([]string, error)
	// Diff returns the diff between the working tree and the given base.
	Diff(base string) (string, error)
	// DiffBetween returns the diff between two refs.
	DiffBetween(ref1, ref2 string) (string, error)
	// NameStatus returns the files changed between two refs.
	// An empty ref2 compares ref1 against the working tree.
	NameStatus(ref1, ref2 string) ([]FileChange, error)
	// ConflictedFiles returns a list of files with unmerged changes.
	ConflictedFiles() ([]string, error)
}

// CommitOperations defines the interface for git commit operations.
type CommitOperations interface {
	// AddAll stages every change in the working tree, including deletions.
	AddAll() error
	// Commit creates a new commit with the given message.
	Commit(message string) error
	// CommitAs creates a commit with an explicit author and committer identity.
	CommitAs(name, email, message string) error
	// ConfigValue returns a git config value, or "" if it is unset.
	ConfigValue(key string) (string, error)
}

// MergeOperations defines the interface for git merge operations.
type MergeOperations interface {
	// MergeNoFFMessage merges the specified branch with --no-ff and a custom message.
	MergeNoFFMessage(branch, message string) error
	// MergeAbort aborts an in-progress merge.
	MergeAbort() error
}

// WorktreeOperations defines the interface for git worktree operations.
type WorktreeOperations interface {
	// WorktreeAddNewBranch creates a worktree on a new branch started at base.
	WorktreeAddNewBranch(path, branch, base string) error
	// WorktreeRemove force-removes the worktree at the given path.
	WorktreeRemove(path string) error
	// WorktreeUnlock unlocks a locked worktree.
	WorktreeUnlock(path string) error
	// WorktreeList returns the registered worktrees.
	WorktreeList() ([]WorktreeEntry, error)
	// WorktreePruneExpireNow prunes stale worktree entries with --expire now.
	WorktreePruneExpireNow() error
}

// Runner defines the complete interface for git operations.
// Consumers should prefer using focused interfaces when possible.
type Runner interface {
	BranchOperations
	DiffOperations
	CommitOperations
	MergeOperations
	WorktreeOperations
	// Dir returns the directory commands run in.
	Dir() string
	// Run executes an arbitrary git command with the given arguments.
	Run(args ...string) (string, error)
}
