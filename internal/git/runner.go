// Package git provides an interface for the git operations parari needs.
package git

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"
)

// ExecRunner implements Runner by shelling out to the git binary.
type ExecRunner struct {
	dir string
}

// NewRunner creates a new git runner for the repository or worktree at dir.
func NewRunner(dir string) *ExecRunner {
	return &ExecRunner{dir: dir}
}

// IsRepository reports whether dir is inside a git working tree.
func IsRepository(dir string) bool {
	out, err := NewRunner(dir).run("rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}

// run executes a git command and returns its trimmed stdout.
// Stderr is kept out of the output and attached to the error instead.
func (r *ExecRunner) run(args ...string) (string, error) {
	out, err := r.raw(args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// raw executes a git command and returns stdout untouched.
func (r *ExecRunner) raw(args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.Command("git", args...)
	cmd.Dir = r.dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()+stdout.String()))
	}
	return stdout.String(), nil
}

// runSilent executes a git command and ignores output.
func (r *ExecRunner) runSilent(args ...string) error {
	_, err := r.raw(args...)
	return err
}

// lines splits trimmed output into non-empty lines.
func lines(out string) []string {
	if out == "" {
		return nil
	}
	var result []string
	for _, l := range strings.Split(out, "\n") {
		if l = strings.TrimRight(l, "\r"); l != "" {
			result = append(result, l)
		}
	}
	return result
}

// Dir returns the directory commands run in.
func (r *ExecRunner) Dir() string {
	return r.dir
}

// Run executes an arbitrary git command with the given arguments.
func (r *ExecRunner) Run(args ...string) (string, error) {
	return r.run(args...)
}

// CurrentBranch returns the name of the current branch.
func (r *ExecRunner) CurrentBranch() (string, error) {
	return r.run("rev-parse", "--abbrev-ref", "HEAD")
}

// BranchExists returns true if the branch exists.
func (r *ExecRunner) BranchExists(name string) (bool, error) {
	cmd := exec.Command("git", "show-ref", "--verify", "--quiet", "refs/heads/"+name)
	cmd.Dir = r.dir
	err := cmd.Run()
	if err != nil {
		// Exit code 1 means branch doesn't exist (not an error)
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return false, nil
		}
		return false, fmt.Errorf("check branch exists: %w", err)
	}
	return true, nil
}

// DeleteBranch deletes the specified branch.
func (r *ExecRunner) DeleteBranch(name string) error {
	return r.runSilent("branch", "-D", name)
}

// RevParse resolves a ref to a full commit SHA.
func (r *ExecRunner) RevParse(ref string) (string, error) {
	return r.run("rev-parse", "--verify", ref+"^{commit}")
}

// TopLevel returns the absolute path of the working tree root.
func (r *ExecRunner) TopLevel() (string, error) {
	return r.run("rev-parse", "--show-toplevel")
}

// Status returns the output of git status --porcelain.
func (r *ExecRunner) Status() (string, error) {
	out, err := r.raw("status", "--porcelain")
	return strings.TrimRight(out, "\n"), err
}

// HasChanges returns true if there are uncommitted changes.
func (r *ExecRunner) HasChanges() (bool, error) {
	status, err := r.Status()
	if err != nil {
		return false, err
	}
	return len(status) > 0, nil
}

// DirtyFiles returns the paths with uncommitted changes, including untracked files.
// Untracked directories are expanded to the files inside them.
// Renames contribute both their old and new paths.
func (r *ExecRunner) DirtyFiles() ([]string, error) {
	out, err := r.raw("status", "--porcelain", "--untracked-files=all")
	if err != nil {
		return nil, err
	}
	return parsePorcelainPaths(strings.TrimRight(out, "\n")), nil
}

// parsePorcelainPaths extracts paths from git status --porcelain (v1) output.
func parsePorcelainPaths(status string) []string {
	var paths []string
	for _, line := range lines(status) {
		if len(line) < 4 {
			continue
		}
		path := line[3:]
		if from, to, ok := strings.Cut(path, " -> "); ok {
			paths = append(paths, unquote(from), unquote(to))
			continue
		}
		paths = append(paths, unquote(path))
	}
	return paths
}

// unquote strips the C-style quoting git applies to unusual paths.
func unquote(path string) string {
	if len(path) >= 2 && path[0] == '"' && path[len(path)-1] == '"' {
		return path[1 : len(path)-1]
	}
	return path
}

// UntrackedFiles returns untracked paths, honouring .gitignore.
func (r *ExecRunner) UntrackedFiles() ([]string, error) {
	out, err := r.run("ls-files", "--others", "--exclude-standard")
	if err != nil {
		return nil, err
	}
	return lines(out), nil
}

// Diff returns the diff between the working tree and the given base.
func (r *ExecRunner) Diff(base string) (string, error) {
	return r.raw("diff", base)
}

// DiffBetween returns the diff between two refs.
func (r *ExecRunner) DiffBetween(ref1, ref2 string) (string, error) {
	return r.raw("diff", ref1, ref2)
}

// NameStatus returns the files changed between two refs.
// An empty ref2 compares ref1 against the working tree.
func (r *ExecRunner) NameStatus(ref1, ref2 string) ([]FileChange, error) {
	args := []string{"diff", "--name-status", "-M", ref1}
	if ref2 != "" {
		args = append(args, ref2)
	}
	out, err := r.run(args...)
	if err != nil {
		return nil, err
	}
	return parseNameStatus(out)
}

// parseNameStatus parses tab-separated git diff --name-status output.
func parseNameStatus(out string) ([]FileChange, error) {
	var changes []FileChange
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) < 2 || fields[0] == "" {
			continue
		}
		change := FileChange{Status: FileStatus(fields[0][0]), Path: fields[1]}
		if (change.Status == FileRenamed || change.Status == FileCopied) && len(fields) >= 3 {
			change.OldPath = fields[1]
			change.Path = fields[2]
		}
		changes = append(changes, change)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("parse name-status: %w", err)
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes, nil
}

// ConflictedFiles returns a list of files with unmerged changes.
func (r *ExecRunner) ConflictedFiles() ([]string, error) {
	out, err := r.run("diff", "--name-only", "--diff-filter=U")
	if err != nil {
		// If there are no conflicts, git may exit with code 0 but empty output
		return nil, nil
	}
	return lines(out), nil
}

// AddAll stages every change in the working tree, including deletions.
func (r *ExecRunner) AddAll() error {
	return r.runSilent("add", "--all")
}

// Commit creates a new commit with the given message.
func (r *ExecRunner) Commit(message string) error {
	return r.runSilent("commit", "--no-verify", "-m", message)
}

// CommitAs creates a commit with an explicit author and committer identity.
func (r *ExecRunner) CommitAs(name, email, message string) error {
	return r.runSilent("-c", "user.name="+name, "-c", "user.email="+email,
		"commit", "--no-verify", "-m", message)
}

// ConfigValue returns a git config value, or "" if it is unset.
func (r *ExecRunner) ConfigValue(key string) (string, error) {
	cmd := exec.Command("git", "config", "--get", key)
	cmd.Dir = r.dir
	out, err := cmd.Output()
	if err != nil {
		// Exit code 1 means the key is not set
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return "", nil
		}
		return "", fmt.Errorf("git config --get %s: %w", key, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// MergeNoFFMessage merges the specified branch with --no-ff and a custom message.
func (r *ExecRunner) MergeNoFFMessage(branch, message string) error {
	return r.runSilent("merge", "--no-ff", "--no-edit", "-m", message, branch)
}

// MergeAbort aborts an in-progress merge.
func (r *ExecRunner) MergeAbort() error {
	return r.runSilent("merge", "--abort")
}

// WorktreeAddNewBranch creates a worktree on a new branch started at base.
func (r *ExecRunner) WorktreeAddNewBranch(path, branch, base string) error {
	return r.runSilent("worktree", "add", "-b", branch, path, base)
}

// WorktreeRemove force-removes the worktree at the given path.
func (r *ExecRunner) WorktreeRemove(path string) error {
	return r.runSilent("worktree", "remove", "--force", path)
}

// WorktreeUnlock unlocks a locked worktree.
func (r *ExecRunner) WorktreeUnlock(path string) error {
	return r.runSilent("worktree", "unlock", path)
}

// WorktreeList returns the registered worktrees.
func (r *ExecRunner) WorktreeList() ([]WorktreeEntry, error) {
	out, err := r.run("worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}
	return ParseWorktreeList(out)
}

// WorktreePruneExpireNow prunes worktrees with --expire now.
func (r *ExecRunner) WorktreePruneExpireNow() error {
	return r.runSilent("worktree", "prune", "--expire", "now")
}

// Verify ExecRunner implements Runner at compile time.
var _ Runner = (*ExecRunner)(nil)
