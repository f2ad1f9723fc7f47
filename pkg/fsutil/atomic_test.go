package fsutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/remedy-project/remedy/pkg/fsutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicWrite_CreatesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.json")

	err := fsutil.AtomicWrite(path, []byte(`{"head":""}`), 0644)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"head":""}`, string(data))
}

func TestAtomicWrite_ReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.json")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0644))

	err := fsutil.AtomicWrite(path, []byte("new"), 0644)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestAtomicWrite_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")
	require.NoError(t, fsutil.AtomicWrite(path, []byte("data"), 0644))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, "out.bin", entries[0].Name())
}

func TestRenameAndSync(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "a")
	newPath := filepath.Join(dir, "b")
	require.NoError(t, os.WriteFile(oldPath, []byte("x"), 0644))

	require.NoError(t, fsutil.RenameAndSync(oldPath, newPath))

	_, err := os.Stat(oldPath)
	assert.True(t, os.IsNotExist(err))
	data, err := os.ReadFile(newPath)
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}
