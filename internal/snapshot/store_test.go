package snapshot

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remedy-project/remedy/internal/compression"
	"github.com/remedy-project/remedy/internal/repo"
	"github.com/remedy-project/remedy/pkg/errclass"
	"github.com/remedy-project/remedy/pkg/model"
)

func newTestStore(t *testing.T) (*Store, *repo.Repo) {
	t.Helper()
	root := t.TempDir()
	r, err := repo.Init(root)
	require.NoError(t, err)
	return NewStore(r, compression.New(compression.LevelDefault), nil), r
}

func writeFile(t *testing.T, r *repo.Repo, rel, content string) {
	t.Helper()
	abs := filepath.Join(r.Root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0644))
}

func TestCreateAndLoadDescriptor(t *testing.T) {
	store, r := newTestStore(t)
	writeFile(t, r, "src/app.go", "package app\n")
	writeFile(t, r, "config.yaml", "retries: 3\n")

	id, err := store.Create("recipe-1", "Fix retries", []string{"src/app.go", "config.yaml"}, nil)
	require.NoError(t, err)
	assert.Regexp(t, `^\d{13}-[0-9a-f]{8}$`, string(id))

	desc, err := store.LoadDescriptor(id)
	require.NoError(t, err)
	assert.Equal(t, "recipe-1", desc.RecipeID)
	assert.Equal(t, "Fix retries", desc.RecipeName)
	assert.Nil(t, desc.Parent)
	assert.True(t, desc.Compressed)
	require.Len(t, desc.Files, 2)

	for _, f := range desc.Files {
		assert.True(t, f.Existed)
		assert.NotEmpty(t, f.BeforeHash)
		assert.Empty(t, f.AfterHash)
	}
}

func TestCreateChainsParent(t *testing.T) {
	store, r := newTestStore(t)
	writeFile(t, r, "a.txt", "one\n")

	first, err := store.Create("r1", "", []string{"a.txt"}, nil)
	require.NoError(t, err)
	second, err := store.Create("r2", "", []string{"a.txt"}, nil)
	require.NoError(t, err)

	desc, err := store.LoadDescriptor(second)
	require.NoError(t, err)
	require.NotNil(t, desc.Parent)
	assert.Equal(t, first, *desc.Parent)

	index, err := store.LoadIndex()
	require.NoError(t, err)
	assert.Equal(t, second, index.Head)
	assert.Len(t, index.Snapshots, 2)
}

func TestCreateRecordsMissingFile(t *testing.T) {
	store, r := newTestStore(t)

	id, err := store.Create("r1", "", []string{"new-file.txt"}, nil)
	require.NoError(t, err)

	desc, err := store.LoadDescriptor(id)
	require.NoError(t, err)
	require.Len(t, desc.Files, 1)
	assert.False(t, desc.Files[0].Existed)
	assert.Equal(t, model.OpCreated, desc.Files[0].Operation)
	assert.Empty(t, desc.Files[0].BeforeHash)

	_, err = store.FileContent(id, "new-file.txt")
	assert.ErrorIs(t, err, errclass.ErrSnapshotNotFound)

	writeFile(t, r, "new-file.txt", "created by recipe\n")
	require.NoError(t, store.Update(id, []string{"new-file.txt"}))

	desc, err = store.LoadDescriptor(id)
	require.NoError(t, err)
	assert.Equal(t, model.OpCreated, desc.Files[0].Operation)
	assert.NotEmpty(t, desc.Files[0].AfterHash)
	assert.Contains(t, desc.Files[0].Diff, "created by recipe")
}

func TestUpdateStoresDiffOnlyWhenChanged(t *testing.T) {
	store, r := newTestStore(t)
	writeFile(t, r, "changed.txt", "before\n")
	writeFile(t, r, "same.txt", "stable\n")

	id, err := store.Create("r1", "", []string{"changed.txt", "same.txt"}, nil)
	require.NoError(t, err)

	writeFile(t, r, "changed.txt", "after\n")
	require.NoError(t, store.Update(id, nil))

	desc, err := store.LoadDescriptor(id)
	require.NoError(t, err)
	byPath := map[string]model.SnapshotFile{}
	for _, f := range desc.Files {
		byPath[f.Path] = f
	}

	assert.Contains(t, byPath["changed.txt"].Diff, "-before")
	assert.Contains(t, byPath["changed.txt"].Diff, "+after")
	assert.NotEqual(t, byPath["changed.txt"].BeforeHash, byPath["changed.txt"].AfterHash)

	assert.Empty(t, byPath["same.txt"].Diff)
	assert.Equal(t, byPath["same.txt"].BeforeHash, byPath["same.txt"].AfterHash)
}

func TestUpdateMarksDeletion(t *testing.T) {
	store, r := newTestStore(t)
	writeFile(t, r, "doomed.txt", "going away\n")

	id, err := store.Create("r1", "", []string{"doomed.txt"}, nil)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(r.Root, "doomed.txt")))
	require.NoError(t, store.Update(id, nil))

	desc, err := store.LoadDescriptor(id)
	require.NoError(t, err)
	assert.Equal(t, model.OpDeleted, desc.Files[0].Operation)

	// Before-content survives for restore.
	content, err := store.FileContent(id, "doomed.txt")
	require.NoError(t, err)
	assert.Equal(t, "going away\n", string(content))
}

func TestFileContentRoundTrip(t *testing.T) {
	store, r := newTestStore(t)
	writeFile(t, r, "data.txt", "payload content\n")

	id, err := store.Create("r1", "", []string{"data.txt"}, nil)
	require.NoError(t, err)

	writeFile(t, r, "data.txt", "overwritten\n")

	content, err := store.FileContent(id, "data.txt")
	require.NoError(t, err)
	assert.Equal(t, "payload content\n", string(content))
}

func TestLoadDescriptorDetectsTampering(t *testing.T) {
	store, r := newTestStore(t)
	writeFile(t, r, "a.txt", "x\n")

	id, err := store.Create("r1", "", []string{"a.txt"}, nil)
	require.NoError(t, err)

	// Flip the recipe ID without recomputing the checksum.
	descPath := filepath.Join(r.SnapshotsDir(), string(id), descriptorFile)
	data, err := os.ReadFile(descPath)
	require.NoError(t, err)
	tampered := strings.Replace(string(data), `"recipe_id": "r1"`, `"recipe_id": "evil"`, 1)
	require.NotEqual(t, string(data), tampered)
	require.NoError(t, os.WriteFile(descPath, []byte(tampered), 0644))

	_, err = store.LoadDescriptor(id)
	assert.ErrorIs(t, err, errclass.ErrSnapshotCorrupt)
}

func TestLoadDescriptorNotFound(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.LoadDescriptor("0000000000000-deadbeef")
	assert.ErrorIs(t, err, errclass.ErrSnapshotNotFound)
}

func TestFindFilters(t *testing.T) {
	store, r := newTestStore(t)
	writeFile(t, r, "a.txt", "x\n")

	_, err := store.Create("alpha", "", []string{"a.txt"}, []string{"keep"})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = store.Create("beta", "", []string{"a.txt"}, nil)
	require.NoError(t, err)

	byRecipe, err := store.Find(FilterOptions{RecipeID: "alpha"})
	require.NoError(t, err)
	require.Len(t, byRecipe, 1)
	assert.Equal(t, "alpha", byRecipe[0].RecipeID)

	byTag, err := store.Find(FilterOptions{HasTag: "keep"})
	require.NoError(t, err)
	require.Len(t, byTag, 1)
	assert.Equal(t, "alpha", byTag[0].RecipeID)

	all, err := store.List()
	require.NoError(t, err)
	require.Len(t, all, 2)
	// Newest first.
	assert.Equal(t, "beta", all[0].RecipeID)
}

func TestResolveSelectors(t *testing.T) {
	store, r := newTestStore(t)
	writeFile(t, r, "a.txt", "x\n")

	first, err := store.Create("alpha", "", []string{"a.txt"}, nil)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := store.Create("beta", "", []string{"a.txt"}, nil)
	require.NoError(t, err)

	id, err := store.Resolve(model.RollbackOptions{SnapshotID: first})
	require.NoError(t, err)
	assert.Equal(t, first, id)

	id, err = store.Resolve(model.RollbackOptions{RecipeID: "alpha"})
	require.NoError(t, err)
	assert.Equal(t, first, id)

	id, err = store.Resolve(model.RollbackOptions{})
	require.NoError(t, err)
	assert.Equal(t, second, id)

	_, err = store.Resolve(model.RollbackOptions{RecipeID: "nope"})
	assert.ErrorIs(t, err, errclass.ErrSnapshotNotFound)
}

func TestRemoveRewritesHead(t *testing.T) {
	store, r := newTestStore(t)
	writeFile(t, r, "a.txt", "x\n")

	first, err := store.Create("alpha", "", []string{"a.txt"}, nil)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := store.Create("beta", "", []string{"a.txt"}, nil)
	require.NoError(t, err)

	removed, err := store.Remove([]model.SnapshotID{second})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	index, err := store.LoadIndex()
	require.NoError(t, err)
	assert.Equal(t, first, index.Head)
	assert.Len(t, index.Snapshots, 1)

	_, err = store.LoadDescriptor(second)
	assert.ErrorIs(t, err, errclass.ErrSnapshotNotFound)
}

func TestStats(t *testing.T) {
	store, r := newTestStore(t)
	writeFile(t, r, "a.txt", "some compressible content some compressible content\n")

	_, err := store.Create("r1", "", []string{"a.txt"}, nil)
	require.NoError(t, err)

	stats, err := store.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalSnapshots)
	assert.Equal(t, 1, stats.TotalFiles)
	assert.Greater(t, stats.TotalSize, int64(0))
	assert.Greater(t, stats.CompressedSize, int64(0))
	assert.Greater(t, stats.CompressionRatio, 0.0)
	require.NotNil(t, stats.OldestSnapshot)
	require.NotNil(t, stats.NewestSnapshot)
}

func TestCreateRejectsEscapingPath(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Create("r1", "", []string{"../outside.txt"}, nil)
	assert.ErrorIs(t, err, errclass.ErrPathEscape)
}
