package state

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Run is one parari invocation.
type Run struct {
	ID         string
	RepoPath   string
	PID        int
	ControlDir string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// WorktreeRecord is one worktree created by a run.
type WorktreeRecord struct {
	Path       string
	Branch     string
	Agent      string
	RunID      string
	RepoPath   string
	BaseCommit string
	CreatedAt  time.Time
	RemovedAt  *time.Time
}

// WorktreeFilter narrows ListWorktrees. Zero values match everything.
type WorktreeFilter struct {
	RepoPath string
	RunID    string
	// LiveOnly excludes worktrees already marked removed.
	LiveOnly bool
}

// CreateRun records the start of a run.
func (db *DB) CreateRun(r *Run) error {
	_, err := db.Exec(`
		INSERT INTO runs (id, repo_path, pid, control_dir, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, r.ID, r.RepoPath, r.PID, r.ControlDir, formatTime(r.StartedAt))
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// FinishRun marks a run as finished.
func (db *DB) FinishRun(id string) error {
	_, err := db.Exec(`UPDATE runs SET finished_at = ? WHERE id = ?`, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID. It returns nil if no such run exists.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.QueryRow(`
		SELECT id, repo_path, pid, control_dir, started_at, finished_at
		FROM runs WHERE id = ?
	`, id)

	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ActiveRuns returns unfinished runs for a repository, newest first.
// An empty repoPath matches every repository.
func (db *DB) ActiveRuns(repoPath string) ([]Run, error) {
	query := `
		SELECT id, repo_path, pid, control_dir, started_at, finished_at
		FROM runs WHERE finished_at IS NULL`
	var args []any
	if repoPath != "" {
		query += ` AND repo_path = ?`
		args = append(args, repoPath)
	}
	query += ` ORDER BY started_at DESC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list active runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var r Run
	var startedAt string
	var finishedAt sql.NullString
	if err := s.Scan(&r.ID, &r.RepoPath, &r.PID, &r.ControlDir, &startedAt, &finishedAt); err != nil {
		return nil, err
	}
	r.StartedAt, _ = parseTime(startedAt)
	r.FinishedAt = parseNullableTime(finishedAt)
	return &r, nil
}

// RecordWorktree inserts or replaces a worktree record.
func (db *DB) RecordWorktree(w *WorktreeRecord) error {
	_, err := db.Exec(`
		INSERT OR REPLACE INTO worktrees (path, branch, agent, run_id, repo_path, base_commit, created_at, removed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULL)
	`, w.Path, w.Branch, w.Agent, w.RunID, w.RepoPath, w.BaseCommit, formatTime(w.CreatedAt))
	if err != nil {
		return fmt.Errorf("record worktree: %w", err)
	}
	return nil
}

// MarkWorktreeRemoved stamps removed_at on a worktree record.
func (db *DB) MarkWorktreeRemoved(path string) error {
	_, err := db.Exec(`
		UPDATE worktrees SET removed_at = ? WHERE path = ? AND removed_at IS NULL
	`, formatTime(time.Now()), path)
	if err != nil {
		return fmt.Errorf("mark worktree removed: %w", err)
	}
	return nil
}

// ListWorktrees returns worktree records matching filter, oldest first.
func (db *DB) ListWorktrees(filter WorktreeFilter) ([]WorktreeRecord, error) {
	var where []string
	var args []any
	if filter.RepoPath != "" {
		where = append(where, "repo_path = ?")
		args = append(args, filter.RepoPath)
	}
	if filter.RunID != "" {
		where = append(where, "run_id = ?")
		args = append(args, filter.RunID)
	}
	if filter.LiveOnly {
		where = append(where, "removed_at IS NULL")
	}

	query := `SELECT path, branch, agent, run_id, repo_path, base_commit, created_at, removed_at FROM worktrees`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list worktrees: %w", err)
	}
	defer rows.Close()

	var records []WorktreeRecord
	for rows.Next() {
		var w WorktreeRecord
		var createdAt string
		var removedAt sql.NullString
		if err := rows.Scan(&w.Path, &w.Branch, &w.Agent, &w.RunID, &w.RepoPath, &w.BaseCommit, &createdAt, &removedAt); err != nil {
			return nil, fmt.Errorf("scan worktree: %w", err)
		}
		w.CreatedAt, _ = parseTime(createdAt)
		w.RemovedAt = parseNullableTime(removedAt)
		records = append(records, w)
	}
	return records, rows.Err()
}
