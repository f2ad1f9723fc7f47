package model

import "time"

// RollbackOptions selects which snapshot to restore and how. When several
// selectors are set, resolution order is: SnapshotID, then the most recent
// snapshot for RecipeID, then the snapshot nearest to Timestamp, then the
// most recent snapshot overall.
type RollbackOptions struct {
	SnapshotID SnapshotID `json:"snapshot_id,omitempty"`
	RecipeID   string     `json:"recipe_id,omitempty"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
	// Files restricts the restore to a subset of the snapshot's paths,
	// leaving the rest of that snapshot's files untouched.
	Files []string `json:"files,omitempty"`
	// DryRun never writes to disk; the would-be changes are returned as
	// PreviewDiff for operator review.
	DryRun bool `json:"dry_run,omitempty"`
}

// RestoreError records one file that could not be restored.
type RestoreError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// RollbackResult reports a rollback. Success is true only if Errors is empty.
type RollbackResult struct {
	Success       bool           `json:"success"`
	SnapshotID    SnapshotID     `json:"snapshot_id"`
	FilesRestored int            `json:"files_restored"`
	FilesSkipped  int            `json:"files_skipped"`
	Errors        []RestoreError `json:"errors,omitempty"`
	PreviewDiff   string         `json:"preview_diff,omitempty"`
}
