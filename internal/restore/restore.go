// Package restore reverts files to the state captured by a snapshot.
//
// Restores are per-file and keep going after individual failures so one
// unwritable path cannot hold the rest of the rollback hostage. The result
// carries every per-file error; success means zero of them.
package restore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/remedy-project/remedy/internal/diff"
	"github.com/remedy-project/remedy/internal/snapshot"
	"github.com/remedy-project/remedy/pkg/errclass"
	"github.com/remedy-project/remedy/pkg/fsutil"
	"github.com/remedy-project/remedy/pkg/logging"
	"github.com/remedy-project/remedy/pkg/model"
	"github.com/remedy-project/remedy/pkg/pathutil"
)

// Restorer applies snapshot content back onto the working tree.
type Restorer struct {
	root   string
	store  *snapshot.Store
	logger *logging.Logger
}

// NewRestorer creates a restorer for the repo rooted at root.
func NewRestorer(root string, store *snapshot.Store, logger *logging.Logger) *Restorer {
	if logger == nil {
		logger = logging.Global()
	}
	return &Restorer{root: root, store: store, logger: logger}
}

// Rollback restores the snapshot selected by opts. With DryRun set nothing
// is written; the would-be changes come back as a unified preview diff.
func (r *Restorer) Rollback(opts model.RollbackOptions) (*model.RollbackResult, error) {
	id, err := r.store.Resolve(opts)
	if err != nil {
		return nil, err
	}

	desc, err := r.store.LoadDescriptor(id)
	if err != nil {
		return nil, err
	}

	requested := make(map[string]bool, len(opts.Files))
	for _, f := range opts.Files {
		requested[pathutil.Normalize(f)] = true
	}

	result := &model.RollbackResult{SnapshotID: id}
	var preview strings.Builder

	for _, sf := range desc.Files {
		if len(opts.Files) > 0 && !requested[sf.Path] {
			result.FilesSkipped++
			continue
		}

		changed, previewText, err := r.restoreFile(id, sf, opts.DryRun)
		if err != nil {
			result.Errors = append(result.Errors, model.RestoreError{
				Path:  sf.Path,
				Error: err.Error(),
			})
			// A failed file is also a skipped file.
			result.FilesSkipped++
			continue
		}
		if !changed {
			result.FilesSkipped++
			continue
		}
		result.FilesRestored++
		preview.WriteString(previewText)
	}

	result.Success = len(result.Errors) == 0
	if opts.DryRun {
		result.PreviewDiff = preview.String()
	}

	r.logger.Info("rollback finished", map[string]any{
		"snapshot_id": string(id),
		"restored":    result.FilesRestored,
		"skipped":     result.FilesSkipped,
		"errors":      len(result.Errors),
		"dry_run":     opts.DryRun,
	})
	return result, nil
}

// restoreFile brings one path back to its snapshot state. Returns false
// when the file is already there.
func (r *Restorer) restoreFile(id model.SnapshotID, sf model.SnapshotFile, dryRun bool) (bool, string, error) {
	abs := filepath.Join(r.root, filepath.FromSlash(sf.Path))
	if err := pathutil.ValidatePathSafety(r.root, abs); err != nil {
		return false, "", err
	}

	current, readErr := os.ReadFile(abs)
	exists := readErr == nil
	if readErr != nil && !os.IsNotExist(readErr) {
		return false, "", fmt.Errorf("read current content: %w", readErr)
	}

	// The file was absent before the mutation: restoring means deleting
	// whatever the recipe created.
	if !sf.Existed {
		if !exists {
			return false, "", nil
		}
		if dryRun {
			text, err := diff.Unified(sf.Path, string(current), "")
			if err != nil {
				return false, "", err
			}
			return true, text, nil
		}
		if err := os.Remove(abs); err != nil {
			return false, "", errclass.ErrRestoreFailed.WithMessagef("delete %s: %v", sf.Path, err)
		}
		return true, "", nil
	}

	want, err := r.store.FileContent(id, sf.Path)
	if err != nil {
		return false, "", err
	}

	if exists && string(current) == string(want) {
		return false, "", nil
	}

	if dryRun {
		text, err := diff.Unified(sf.Path, string(current), string(want))
		if err != nil {
			return false, "", err
		}
		return true, text, nil
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return false, "", errclass.ErrRestoreFailed.WithMessagef("create parent of %s: %v", sf.Path, err)
	}
	if err := fsutil.AtomicWrite(abs, want, 0644); err != nil {
		return false, "", errclass.ErrRestoreFailed.WithMessagef("write %s: %v", sf.Path, err)
	}
	return true, "", nil
}
