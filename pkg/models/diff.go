package models

// DiffSummary describes an agent's changes relative to the base commit
// captured when its worktree was created.
type DiffSummary struct {
	// BaseCommit is the commit the diff was computed against.
	BaseCommit string `json:"base_commit"`
	// FilesChanged is the sum of FilesAdded, FilesModified and FilesDeleted.
	FilesChanged int `json:"files_changed"`
	// FilesAdded counts new paths.
	FilesAdded int `json:"files_added"`
	// FilesModified counts changed or renamed paths.
	FilesModified int `json:"files_modified"`
	// FilesDeleted counts removed paths.
	FilesDeleted int `json:"files_deleted"`
	// ChangedFiles lists the touched paths in sorted order. A rename
	// contributes both its old and new path.
	ChangedFiles []string `json:"changed_files"`
	// Diff is the unified diff text.
	Diff string `json:"diff"`
}

// Empty returns true if the summary records no changes.
func (d *DiffSummary) Empty() bool {
	return d == nil || d.FilesChanged == 0
}
