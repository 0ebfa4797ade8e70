// Package result turns an agent's worktree into a reviewable outcome: the
// commit that apply merges, the diff summary, and the text the split view
// and headless output render.
package result

import (
	"fmt"
	"sort"

	"github.com/ShayCichocki/parari/internal/git"
	"github.com/ShayCichocki/parari/pkg/models"
)

// Fallback identity used when the repository has no user configured.
const (
	FallbackName  = "parari"
	FallbackEmail = "parari@localhost"
)

// CommitMessage returns the message Record uses for agent's work.
func CommitMessage(agent string) string {
	return fmt.Sprintf("parari: %s result", agent)
}

// Record stages everything the agent left in its worktree and commits it on
// the agent branch. It returns false without committing when the tree is clean.
func Record(runner git.Runner, agent string) (bool, error) {
	dirty, err := runner.HasChanges()
	if err != nil {
		return false, fmt.Errorf("check worktree status: %w", err)
	}
	if !dirty {
		return false, nil
	}

	if err := runner.AddAll(); err != nil {
		return false, fmt.Errorf("stage changes: %w", err)
	}

	email, err := runner.ConfigValue("user.email")
	if err != nil {
		return false, fmt.Errorf("read user.email: %w", err)
	}
	if email == "" {
		err = runner.CommitAs(FallbackName, FallbackEmail, CommitMessage(agent))
	} else {
		err = runner.Commit(CommitMessage(agent))
	}
	if err != nil {
		return false, fmt.Errorf("commit changes: %w", err)
	}
	return true, nil
}

// Summarize computes the agent's changes against baseCommit. Committed and
// uncommitted changes are both included; untracked files count as additions.
// It only reads the worktree.
func Summarize(runner git.Runner, baseCommit string) (*models.DiffSummary, error) {
	changes, err := runner.NameStatus(baseCommit, "")
	if err != nil {
		return nil, fmt.Errorf("list changes: %w", err)
	}
	untracked, err := runner.UntrackedFiles()
	if err != nil {
		return nil, fmt.Errorf("list untracked files: %w", err)
	}
	diff, err := runner.Diff(baseCommit)
	if err != nil {
		return nil, fmt.Errorf("diff against %s: %w", baseCommit, err)
	}

	summary := &models.DiffSummary{BaseCommit: baseCommit, Diff: diff}
	seen := make(map[string]bool)
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			summary.ChangedFiles = append(summary.ChangedFiles, path)
		}
	}

	for _, c := range changes {
		switch c.Status {
		case git.FileAdded, git.FileCopied:
			summary.FilesAdded++
		case git.FileDeleted:
			summary.FilesDeleted++
		default:
			summary.FilesModified++
		}
		if c.OldPath != "" && c.Status == git.FileRenamed {
			add(c.OldPath)
		}
		add(c.Path)
	}
	for _, path := range untracked {
		if seen[path] {
			continue
		}
		summary.FilesAdded++
		add(path)
	}

	sort.Strings(summary.ChangedFiles)
	summary.FilesChanged = summary.FilesAdded + summary.FilesModified + summary.FilesDeleted
	return summary, nil
}
