// Package snapshot implements the pre/post-mutation snapshot store.
//
// Each snapshot captures the content of a recipe's target files immediately
// before execution and is finalized with after-hashes and diffs immediately
// after. Payloads are stored compressed under a path-hash key; metadata
// lives in a single index updated by atomic write-replace, preserving the
// single-writer append-only chain.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/remedy-project/remedy/internal/compression"
	"github.com/remedy-project/remedy/internal/diff"
	"github.com/remedy-project/remedy/internal/integrity"
	"github.com/remedy-project/remedy/internal/repo"
	"github.com/remedy-project/remedy/pkg/errclass"
	"github.com/remedy-project/remedy/pkg/fsutil"
	"github.com/remedy-project/remedy/pkg/logging"
	"github.com/remedy-project/remedy/pkg/model"
	"github.com/remedy-project/remedy/pkg/pathutil"
)

// hashWorkers bounds the per-file read/hash/compress fan-out.
const hashWorkers = 8

const descriptorFile = "descriptor.json"

// Store manages snapshots for one repository.
type Store struct {
	repo       *repo.Repo
	compressor *compression.Compressor
	logger     *logging.Logger

	// mu serializes index read-modify-write; payload work runs outside it.
	mu sync.Mutex
}

// NewStore creates a snapshot store.
func NewStore(r *repo.Repo, comp *compression.Compressor, logger *logging.Logger) *Store {
	if comp == nil {
		comp = compression.New(compression.LevelDefault)
	}
	if logger == nil {
		logger = logging.Global()
	}
	return &Store{repo: r, compressor: comp, logger: logger}
}

type fileCapture struct {
	file    model.SnapshotFile
	payload []byte // compressed content, nil when the file did not exist
}

// Create captures the current content of files as a new snapshot and
// returns its ID. The snapshot's parent is the previous head, forming an
// append-only chain.
func (s *Store) Create(recipeID, recipeName string, files []string, tags []string) (model.SnapshotID, error) {
	for _, tag := range tags {
		if err := pathutil.ValidateTag(tag); err != nil {
			return "", err
		}
	}

	id := model.NewSnapshotID(recipeID, time.Now())
	snapDir := filepath.Join(s.repo.SnapshotsDir(), string(id))
	payloadDir := filepath.Join(snapDir, "files")
	if err := os.MkdirAll(payloadDir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	captures, err := s.captureAll(files)
	if err != nil {
		os.RemoveAll(snapDir)
		return "", err
	}

	var totalSize int64
	descFiles := make([]model.SnapshotFile, 0, len(captures))
	for _, c := range captures {
		if c.payload != nil {
			key := integrity.PathKey(c.file.Path)
			if err := os.WriteFile(filepath.Join(payloadDir, key), c.payload, 0644); err != nil {
				os.RemoveAll(snapDir)
				return "", fmt.Errorf("write payload for %s: %w", c.file.Path, err)
			}
		}
		totalSize += c.file.SizeBytes
		descFiles = append(descFiles, c.file)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.loadIndexLocked()
	if err != nil {
		os.RemoveAll(snapDir)
		return "", err
	}

	desc := &model.Descriptor{
		SnapshotID:     id,
		RecipeID:       recipeID,
		RecipeName:     recipeName,
		CreatedAt:      time.Now().UTC(),
		Tags:           tags,
		Files:          descFiles,
		Compressed:     s.compressor.IsEnabled(),
		TotalSizeBytes: totalSize,
	}
	if head := index.Head; head != "" {
		desc.Parent = &head
	}
	if s.compressor.IsEnabled() {
		desc.Compression = &model.CompressionInfo{
			Type:  string(s.compressor.Type),
			Level: int(s.compressor.Level),
		}
	}

	if err := s.writeDescriptorLocked(desc); err != nil {
		os.RemoveAll(snapDir)
		return "", err
	}

	index.Head = id
	index.Snapshots = append(index.Snapshots, model.IndexEntry{
		SnapshotID: id,
		RecipeID:   recipeID,
		CreatedAt:  desc.CreatedAt,
		Tags:       tags,
		FileCount:  len(descFiles),
		SizeBytes:  totalSize,
	})
	if err := s.saveIndexLocked(index); err != nil {
		os.RemoveAll(snapDir)
		return "", err
	}

	s.logger.Debug("snapshot created", map[string]any{
		"snapshot_id": string(id),
		"recipe_id":   recipeID,
		"files":       len(descFiles),
	})
	return id, nil
}

// captureAll reads, hashes and compresses files concurrently. The per-file
// work is independent I/O; only the assembled result is shared.
func (s *Store) captureAll(files []string) ([]fileCapture, error) {
	captures := make([]fileCapture, len(files))
	errs := make([]error, len(files))

	sem := make(chan struct{}, hashWorkers)
	var wg sync.WaitGroup
	for i, f := range files {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			captures[i], errs[i] = s.captureOne(path)
		}(i, f)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("capture %s: %w", files[i], err)
		}
	}
	return captures, nil
}

func (s *Store) captureOne(path string) (fileCapture, error) {
	rel := pathutil.Normalize(path)
	abs := filepath.Join(s.repo.Root, filepath.FromSlash(rel))
	if err := pathutil.ValidatePathSafety(s.repo.Root, abs); err != nil {
		return fileCapture{}, err
	}

	content, err := os.ReadFile(abs)
	if os.IsNotExist(err) {
		// Absent at snapshot time: record it so rollback knows to delete
		// whatever the recipe creates.
		return fileCapture{file: model.SnapshotFile{
			Path:      rel,
			Operation: model.OpCreated,
			Existed:   false,
		}}, nil
	}
	if err != nil {
		return fileCapture{}, fmt.Errorf("read: %w", err)
	}

	payload, err := s.compressor.Compress(content)
	if err != nil {
		return fileCapture{}, err
	}

	return fileCapture{
		file: model.SnapshotFile{
			Path:       rel,
			BeforeHash: integrity.HashBytes(content),
			Operation:  model.OpModified,
			SizeBytes:  int64(len(content)),
			Existed:    true,
		},
		payload: payload,
	}, nil
}

// Update finalizes a snapshot after mutation: after-hashes are recorded and,
// when content actually changed, a unified diff is stored. A no-op mutation
// (before and after hashes equal) stores no diff.
func (s *Store) Update(id model.SnapshotID, files []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	desc, err := s.loadDescriptorLocked(id)
	if err != nil {
		return err
	}

	requested := make(map[string]bool, len(files))
	for _, f := range files {
		requested[pathutil.Normalize(f)] = true
	}

	for i := range desc.Files {
		sf := &desc.Files[i]
		if len(files) > 0 && !requested[sf.Path] {
			continue
		}

		abs := filepath.Join(s.repo.Root, filepath.FromSlash(sf.Path))
		after, err := os.ReadFile(abs)
		if os.IsNotExist(err) {
			if sf.Existed {
				sf.Operation = model.OpDeleted
				sf.AfterHash = ""
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("read %s after mutation: %w", sf.Path, err)
		}

		sf.AfterHash = integrity.HashBytes(after)
		if !sf.Existed {
			sf.Operation = model.OpCreated
			text, err := diff.Unified(sf.Path, "", string(after))
			if err != nil {
				return err
			}
			sf.Diff = text
			continue
		}

		if sf.AfterHash == sf.BeforeHash {
			continue
		}

		before, err := s.fileContentLocked(desc, sf.Path)
		if err != nil {
			return err
		}
		text, err := diff.Unified(sf.Path, string(before), string(after))
		if err != nil {
			return err
		}
		sf.Operation = model.OpModified
		sf.Diff = text
	}

	return s.writeDescriptorLocked(desc)
}

// LoadDescriptor loads and integrity-checks a snapshot descriptor.
func (s *Store) LoadDescriptor(id model.SnapshotID) (*model.Descriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadDescriptorLocked(id)
}

func (s *Store) loadDescriptorLocked(id model.SnapshotID) (*model.Descriptor, error) {
	path := filepath.Join(s.repo.SnapshotsDir(), string(id), descriptorFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errclass.ErrSnapshotNotFound.WithMessagef("snapshot %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("read descriptor: %w", err)
	}

	var desc model.Descriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, errclass.ErrSnapshotCorrupt.WithMessagef("snapshot %s: %v", id, err)
	}

	ok, err := integrity.VerifyDescriptorChecksum(&desc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errclass.ErrSnapshotCorrupt.WithMessagef("snapshot %s: descriptor checksum mismatch", id)
	}
	return &desc, nil
}

func (s *Store) writeDescriptorLocked(desc *model.Descriptor) error {
	checksum, err := integrity.ComputeDescriptorChecksum(desc)
	if err != nil {
		return err
	}
	desc.DescriptorChecksum = checksum

	data, err := json.MarshalIndent(desc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal descriptor: %w", err)
	}
	path := filepath.Join(s.repo.SnapshotsDir(), string(desc.SnapshotID), descriptorFile)
	if err := fsutil.AtomicWrite(path, data, 0644); err != nil {
		return fmt.Errorf("write descriptor: %w", err)
	}
	return nil
}

// FileContent returns the captured "before" content of one file in a
// snapshot. Fails for files that did not exist at capture time.
func (s *Store) FileContent(id model.SnapshotID, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	desc, err := s.loadDescriptorLocked(id)
	if err != nil {
		return nil, err
	}
	return s.fileContentLocked(desc, pathutil.Normalize(path))
}

func (s *Store) fileContentLocked(desc *model.Descriptor, rel string) ([]byte, error) {
	var found *model.SnapshotFile
	for i := range desc.Files {
		if desc.Files[i].Path == rel {
			found = &desc.Files[i]
			break
		}
	}
	if found == nil {
		return nil, errclass.ErrSnapshotNotFound.WithMessagef("file %s not in snapshot %s", rel, desc.SnapshotID)
	}
	if !found.Existed {
		return nil, errclass.ErrSnapshotNotFound.WithMessagef("file %s had no content in snapshot %s", rel, desc.SnapshotID)
	}

	key := integrity.PathKey(rel)
	payload, err := os.ReadFile(filepath.Join(s.repo.SnapshotsDir(), string(desc.SnapshotID), "files", key))
	if err != nil {
		return nil, fmt.Errorf("read payload for %s: %w", rel, err)
	}

	var content []byte
	if desc.Compressed {
		content, err = compression.Decompress(payload)
		if err != nil {
			return nil, errclass.ErrSnapshotCorrupt.WithMessagef("payload for %s: %v", rel, err)
		}
	} else {
		content = payload
	}

	if integrity.HashBytes(content) != found.BeforeHash {
		return nil, errclass.ErrSnapshotCorrupt.WithMessagef("payload hash mismatch for %s", rel)
	}
	return content, nil
}
