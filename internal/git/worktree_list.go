package git

import (
	"bufio"
	"fmt"
	"strings"
)

// WorktreeEntry is one record of git worktree list --porcelain.
type WorktreeEntry struct {
	Path     string
	Head     string
	Branch   string
	Bare     bool
	Detached bool
	Locked   bool
	Prunable bool
}

// ParseWorktreeList parses the output of 'git worktree list --porcelain'.
func ParseWorktreeList(output string) ([]WorktreeEntry, error) {
	var entries []WorktreeEntry
	var current *WorktreeEntry

	flush := func() {
		if current != nil {
			entries = append(entries, *current)
			current = nil
		}
	}

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		key, value, _ := strings.Cut(line, " ")

		switch {
		case line == "":
			flush()
		case key == "worktree":
			flush()
			current = &WorktreeEntry{Path: value}
		case current == nil:
			continue
		case key == "HEAD":
			current.Head = value
		case key == "branch":
			current.Branch = strings.TrimPrefix(value, "refs/heads/")
		case key == "bare":
			current.Bare = true
		case key == "detached":
			current.Detached = true
		case key == "locked":
			current.Locked = true
		case key == "prunable":
			current.Prunable = true
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("parse worktree list: %w", err)
	}
	return entries, nil
}
