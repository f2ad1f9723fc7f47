// Package gc prunes snapshots past the retention window.
package gc

import (
	"time"

	"github.com/remedy-project/remedy/internal/snapshot"
	"github.com/remedy-project/remedy/pkg/logging"
	"github.com/remedy-project/remedy/pkg/model"
)

// DefaultRetentionDays applies when configuration does not say otherwise.
const DefaultRetentionDays = 30

// Cleaner removes expired snapshots. Tagged snapshots are pinned and never
// removed regardless of age.
type Cleaner struct {
	store         *snapshot.Store
	retentionDays int
	logger        *logging.Logger
}

// NewCleaner creates a cleaner. retentionDays <= 0 selects the default.
func NewCleaner(store *snapshot.Store, retentionDays int, logger *logging.Logger) *Cleaner {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	if logger == nil {
		logger = logging.Global()
	}
	return &Cleaner{store: store, retentionDays: retentionDays, logger: logger}
}

// Result reports one cleanup run.
type Result struct {
	Deleted   int                `json:"deleted"`
	Pinned    int                `json:"pinned"`
	Candidate []model.SnapshotID `json:"candidates,omitempty"`
}

// Plan lists the snapshots a cleanup run would delete, without deleting.
func (c *Cleaner) Plan(now time.Time) (*Result, error) {
	cutoff := now.AddDate(0, 0, -c.retentionDays)

	entries, err := c.store.List()
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for _, e := range entries {
		if !e.CreatedAt.Before(cutoff) {
			continue
		}
		if len(e.Tags) > 0 {
			result.Pinned++
			continue
		}
		result.Candidate = append(result.Candidate, e.SnapshotID)
	}
	return result, nil
}

// Cleanup deletes every expired untagged snapshot and returns the count.
func (c *Cleaner) Cleanup(now time.Time) (*Result, error) {
	plan, err := c.Plan(now)
	if err != nil {
		return nil, err
	}

	deleted, err := c.store.Remove(plan.Candidate)
	plan.Deleted = deleted
	plan.Candidate = nil
	if err != nil {
		return plan, err
	}

	c.logger.Info("cleanup finished", map[string]any{
		"deleted":        deleted,
		"pinned":         plan.Pinned,
		"retention_days": c.retentionDays,
	})
	return plan, nil
}
