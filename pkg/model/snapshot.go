package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// SnapshotID is the unique identifier for a snapshot: <unix_ms>-<hash8>.
// The suffix is derived from the recipe ID and timestamp, so collisions are
// effectively impossible within a session.
type SnapshotID string

// NewSnapshotID derives a snapshot ID from a recipe ID and the current time.
func NewSnapshotID(recipeID string, now time.Time) SnapshotID {
	ts := now.UnixMilli()
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d", recipeID, ts)))
	return SnapshotID(fmt.Sprintf("%013d-%s", ts, hex.EncodeToString(sum[:4])))
}

// ShortID returns the first 8 characters for display.
func (id SnapshotID) ShortID() string {
	s := string(id)
	if len(s) >= 8 {
		return s[:8]
	}
	return s
}

// String returns the full snapshot ID as string.
func (id SnapshotID) String() string {
	return string(id)
}

// SnapshotFile records one file's before/after state within a snapshot.
type SnapshotFile struct {
	Path       string        `json:"path"`
	BeforeHash HashValue     `json:"before_hash"`
	AfterHash  HashValue     `json:"after_hash,omitempty"`
	Diff       string        `json:"diff,omitempty"`
	Operation  FileOperation `json:"operation"`
	SizeBytes  int64         `json:"size_bytes"`
	// Existed is false when the file was absent at snapshot time; a
	// rollback removes the file instead of restoring content.
	Existed bool `json:"existed"`
}

// Descriptor is the on-disk snapshot metadata. Immutable once finalized;
// Parent links form an append-only chain, never a cycle.
type Descriptor struct {
	SnapshotID         SnapshotID       `json:"snapshot_id"`
	Parent             *SnapshotID      `json:"parent,omitempty"`
	RecipeID           string           `json:"recipe_id"`
	RecipeName         string           `json:"recipe_name,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	Tags               []string         `json:"tags,omitempty"`
	Files              []SnapshotFile   `json:"files"`
	Compressed         bool             `json:"compressed"`
	TotalSizeBytes     int64            `json:"total_size_bytes"`
	Compression        *CompressionInfo `json:"compression,omitempty"`
	DescriptorChecksum HashValue        `json:"descriptor_checksum,omitempty"`
}

// CompressionInfo stores compression metadata for a snapshot's payloads.
type CompressionInfo struct {
	Type  string `json:"type"`
	Level int    `json:"level"`
}

// IndexEntry summarizes one snapshot in the metadata index.
type IndexEntry struct {
	SnapshotID SnapshotID `json:"snapshot_id"`
	RecipeID   string     `json:"recipe_id"`
	CreatedAt  time.Time  `json:"created_at"`
	Tags       []string   `json:"tags,omitempty"`
	FileCount  int        `json:"file_count"`
	SizeBytes  int64      `json:"size_bytes"`
}

// Index is the metadata index of all snapshots. It is an explicit object
// passed by handle into store operations and persisted with an atomic
// write-replace on every mutation; the head pointer preserves the
// single-writer append-only chain.
type Index struct {
	Head      SnapshotID   `json:"head,omitempty"`
	Snapshots []IndexEntry `json:"snapshots"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// StoreStats is read-only snapshot store reporting.
type StoreStats struct {
	TotalSnapshots   int        `json:"total_snapshots"`
	TotalFiles       int        `json:"total_files"`
	TotalSize        int64      `json:"total_size"`
	CompressedSize   int64      `json:"compressed_size"`
	CompressionRatio float64    `json:"compression_ratio"`
	OldestSnapshot   *time.Time `json:"oldest_snapshot,omitempty"`
	NewestSnapshot   *time.Time `json:"newest_snapshot,omitempty"`
}
