package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/remedy-project/remedy/pkg/errclass"
	"github.com/remedy-project/remedy/pkg/fsutil"
	"github.com/remedy-project/remedy/pkg/model"
)

// FilterOptions narrows snapshot listings. Zero values match everything.
type FilterOptions struct {
	RecipeID string
	HasTag   string
	Since    time.Time
	Until    time.Time
}

func (f FilterOptions) matches(e model.IndexEntry) bool {
	if f.RecipeID != "" && e.RecipeID != f.RecipeID {
		return false
	}
	if f.HasTag != "" {
		found := false
		for _, t := range e.Tags {
			if t == f.HasTag {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.Since.IsZero() && e.CreatedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && e.CreatedAt.After(f.Until) {
		return false
	}
	return true
}

// LoadIndex returns the current metadata index. A missing index file means
// an empty store, not an error.
func (s *Store) LoadIndex() (*model.Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadIndexLocked()
}

func (s *Store) loadIndexLocked() (*model.Index, error) {
	data, err := os.ReadFile(s.repo.IndexPath())
	if os.IsNotExist(err) {
		return &model.Index{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}

	var index model.Index
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, errclass.ErrSnapshotCorrupt.WithMessagef("index: %v", err)
	}
	return &index, nil
}

func (s *Store) saveIndexLocked(index *model.Index) error {
	index.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	if err := fsutil.AtomicWrite(s.repo.IndexPath(), data, 0644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

// List returns all snapshots newest first.
func (s *Store) List() ([]model.IndexEntry, error) {
	return s.Find(FilterOptions{})
}

// Find returns snapshots matching the filter, newest first.
func (s *Store) Find(opts FilterOptions) ([]model.IndexEntry, error) {
	index, err := s.LoadIndex()
	if err != nil {
		return nil, err
	}

	var entries []model.IndexEntry
	for _, e := range index.Snapshots {
		if opts.matches(e) {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, nil
}

// Resolve picks the snapshot a rollback request refers to. Selector
// precedence: explicit ID, then most recent for a recipe, then nearest to a
// timestamp, then the most recent snapshot overall.
func (s *Store) Resolve(opts model.RollbackOptions) (model.SnapshotID, error) {
	if opts.SnapshotID != "" {
		// Existence check happens when the descriptor loads.
		return opts.SnapshotID, nil
	}

	index, err := s.LoadIndex()
	if err != nil {
		return "", err
	}
	if len(index.Snapshots) == 0 {
		return "", errclass.ErrSnapshotNotFound.WithMessage("no snapshots recorded")
	}

	if opts.RecipeID != "" {
		var best *model.IndexEntry
		for i := range index.Snapshots {
			e := &index.Snapshots[i]
			if e.RecipeID != opts.RecipeID {
				continue
			}
			if best == nil || e.CreatedAt.After(best.CreatedAt) {
				best = e
			}
		}
		if best == nil {
			return "", errclass.ErrSnapshotNotFound.WithMessagef("no snapshot for recipe %s", opts.RecipeID)
		}
		return best.SnapshotID, nil
	}

	if opts.Timestamp != nil {
		var best *model.IndexEntry
		var bestDelta time.Duration
		for i := range index.Snapshots {
			e := &index.Snapshots[i]
			delta := e.CreatedAt.Sub(*opts.Timestamp)
			if delta < 0 {
				delta = -delta
			}
			if best == nil || delta < bestDelta {
				best, bestDelta = e, delta
			}
		}
		return best.SnapshotID, nil
	}

	var best *model.IndexEntry
	for i := range index.Snapshots {
		e := &index.Snapshots[i]
		if best == nil || e.CreatedAt.After(best.CreatedAt) {
			best = e
		}
	}
	return best.SnapshotID, nil
}

// Remove deletes snapshots and their payloads, rewriting the index once.
// Returns how many were actually removed. Unknown IDs are ignored.
func (s *Store) Remove(ids []model.SnapshotID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	doomed := make(map[model.SnapshotID]bool, len(ids))
	for _, id := range ids {
		doomed[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.loadIndexLocked()
	if err != nil {
		return 0, err
	}

	removed := 0
	kept := index.Snapshots[:0]
	for _, e := range index.Snapshots {
		if !doomed[e.SnapshotID] {
			kept = append(kept, e)
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.repo.SnapshotsDir(), string(e.SnapshotID))); err != nil {
			return removed, fmt.Errorf("remove snapshot %s: %w", e.SnapshotID, err)
		}
		removed++
	}
	index.Snapshots = kept

	// Head moves to the newest survivor.
	index.Head = ""
	var newest time.Time
	for _, e := range index.Snapshots {
		if e.CreatedAt.After(newest) {
			newest = e.CreatedAt
			index.Head = e.SnapshotID
		}
	}

	if err := s.saveIndexLocked(index); err != nil {
		return removed, err
	}
	return removed, nil
}

// Stats aggregates store-wide size and compression figures.
func (s *Store) Stats() (model.StoreStats, error) {
	index, err := s.LoadIndex()
	if err != nil {
		return model.StoreStats{}, err
	}

	stats := model.StoreStats{TotalSnapshots: len(index.Snapshots)}
	for _, e := range index.Snapshots {
		stats.TotalFiles += e.FileCount
		stats.TotalSize += e.SizeBytes

		created := e.CreatedAt
		if stats.OldestSnapshot == nil || created.Before(*stats.OldestSnapshot) {
			c := created
			stats.OldestSnapshot = &c
		}
		if stats.NewestSnapshot == nil || created.After(*stats.NewestSnapshot) {
			c := created
			stats.NewestSnapshot = &c
		}

		payloadDir := filepath.Join(s.repo.SnapshotsDir(), string(e.SnapshotID), "files")
		entries, err := os.ReadDir(payloadDir)
		if err != nil {
			continue
		}
		for _, de := range entries {
			if info, err := de.Info(); err == nil {
				stats.CompressedSize += info.Size()
			}
		}
	}

	if stats.TotalSize > 0 {
		stats.CompressionRatio = float64(stats.CompressedSize) / float64(stats.TotalSize)
	}
	return stats, nil
}
