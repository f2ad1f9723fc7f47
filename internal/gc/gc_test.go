package gc

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remedy-project/remedy/internal/compression"
	"github.com/remedy-project/remedy/internal/repo"
	"github.com/remedy-project/remedy/internal/snapshot"
	"github.com/remedy-project/remedy/pkg/model"
)

func newTestStore(t *testing.T) (*snapshot.Store, *repo.Repo) {
	t.Helper()
	root := t.TempDir()
	r, err := repo.Init(root)
	require.NoError(t, err)
	return snapshot.NewStore(r, compression.New(compression.LevelNone), nil), r
}

// backdate rewrites a snapshot's index entry to the given creation time.
func backdate(t *testing.T, r *repo.Repo, id model.SnapshotID, at time.Time) {
	t.Helper()
	data, err := os.ReadFile(r.IndexPath())
	require.NoError(t, err)
	var index model.Index
	require.NoError(t, json.Unmarshal(data, &index))
	for i := range index.Snapshots {
		if index.Snapshots[i].SnapshotID == id {
			index.Snapshots[i].CreatedAt = at
		}
	}
	out, err := json.Marshal(&index)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(r.IndexPath(), out, 0644))
}

func TestCleanupRemovesExpired(t *testing.T) {
	store, r := newTestStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(r.Root, "a.txt"), []byte("x\n"), 0644))

	old, err := store.Create("old-recipe", "", []string{"a.txt"}, nil)
	require.NoError(t, err)
	fresh, err := store.Create("fresh-recipe", "", []string{"a.txt"}, nil)
	require.NoError(t, err)

	now := time.Now()
	backdate(t, r, old, now.AddDate(0, 0, -45))

	cleaner := NewCleaner(store, 30, nil)
	result, err := cleaner.Cleanup(now)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Deleted)

	entries, err := store.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, fresh, entries[0].SnapshotID)
}

func TestCleanupKeepsTagged(t *testing.T) {
	store, r := newTestStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(r.Root, "a.txt"), []byte("x\n"), 0644))

	pinned, err := store.Create("pinned-recipe", "", []string{"a.txt"}, []string{"release"})
	require.NoError(t, err)

	now := time.Now()
	backdate(t, r, pinned, now.AddDate(0, 0, -90))

	cleaner := NewCleaner(store, 30, nil)
	result, err := cleaner.Cleanup(now)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Deleted)
	assert.Equal(t, 1, result.Pinned)

	entries, err := store.List()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestPlanDoesNotDelete(t *testing.T) {
	store, r := newTestStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(r.Root, "a.txt"), []byte("x\n"), 0644))

	old, err := store.Create("old-recipe", "", []string{"a.txt"}, nil)
	require.NoError(t, err)
	backdate(t, r, old, time.Now().AddDate(0, 0, -60))

	cleaner := NewCleaner(store, 0, nil) // default retention
	plan, err := cleaner.Plan(time.Now())
	require.NoError(t, err)
	require.Len(t, plan.Candidate, 1)
	assert.Equal(t, old, plan.Candidate[0])

	entries, err := store.List()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCleanupEmptyStore(t *testing.T) {
	store, _ := newTestStore(t)
	cleaner := NewCleaner(store, 30, nil)
	result, err := cleaner.Cleanup(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Deleted)
}
