// Package repo manages the project-local remedy state directory.
package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/remedy-project/remedy/pkg/errclass"
	"github.com/remedy-project/remedy/pkg/fsutil"
)

const (
	FormatVersion     = 1
	StateDirName      = ".remedy"
	FormatVersionFile = "format_version"
	RepoIDFile        = "repo_id"
)

// Repo represents an initialized remedy repository: the mutated file tree
// plus its state directory.
type Repo struct {
	Root          string
	FormatVersion int
	RepoID        string
}

// StateDir returns the absolute path of the state directory.
func (r *Repo) StateDir() string {
	return filepath.Join(r.Root, StateDirName)
}

// SnapshotsDir returns the snapshot payload directory.
func (r *Repo) SnapshotsDir() string {
	return filepath.Join(r.StateDir(), "snapshots")
}

// IndexPath returns the path of the snapshot metadata index.
func (r *Repo) IndexPath() string {
	return filepath.Join(r.StateDir(), "index", "index.json")
}

// AttestLogPath returns the path of the write-once attestation log.
func (r *Repo) AttestLogPath() string {
	return filepath.Join(r.StateDir(), "attest", "attestation.jsonl")
}

// LocksDir returns the lock directory.
func (r *Repo) LocksDir() string {
	return filepath.Join(r.StateDir(), "locks")
}

// Init creates a new remedy state directory under root.
func Init(root string) (*Repo, error) {
	stateDir := filepath.Join(root, StateDirName)
	if _, err := os.Stat(filepath.Join(stateDir, FormatVersionFile)); err == nil {
		return nil, fmt.Errorf("remedy repository already initialized at %s", root)
	}

	dirs := []string{
		stateDir,
		filepath.Join(stateDir, "snapshots"),
		filepath.Join(stateDir, "index"),
		filepath.Join(stateDir, "attest"),
		filepath.Join(stateDir, "locks"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	if err := os.WriteFile(filepath.Join(stateDir, FormatVersionFile), []byte(strconv.Itoa(FormatVersion)+"\n"), 0644); err != nil {
		return nil, fmt.Errorf("write format_version: %w", err)
	}

	repoID := uuid.NewString()
	if err := os.WriteFile(filepath.Join(stateDir, RepoIDFile), []byte(repoID+"\n"), 0644); err != nil {
		return nil, fmt.Errorf("write repo_id: %w", err)
	}

	if err := fsutil.FsyncDir(root); err != nil {
		return nil, fmt.Errorf("fsync repo root: %w", err)
	}

	return &Repo{
		Root:          root,
		FormatVersion: FormatVersion,
		RepoID:        repoID,
	}, nil
}

// Discover walks up from cwd to find the repo root (directory containing .remedy/).
func Discover(cwd string) (*Repo, error) {
	path := cwd
	for {
		stateDir := filepath.Join(path, StateDirName)
		if info, err := os.Stat(stateDir); err == nil && info.IsDir() {
			version, err := readFormatVersion(stateDir)
			if err != nil {
				return nil, err
			}
			if version > FormatVersion {
				return nil, errclass.ErrFormatUnsupported.WithMessagef(
					"format version %d > supported %d", version, FormatVersion)
			}
			repoID, _ := readRepoID(stateDir)
			return &Repo{
				Root:          path,
				FormatVersion: version,
				RepoID:        repoID,
			}, nil
		}

		parent := filepath.Dir(path)
		if parent == path {
			return nil, errclass.ErrNotARepository.WithMessage(
				"no remedy repository found (no .remedy/ in parent directories)")
		}
		path = parent
	}
}

// Open returns the repo rooted exactly at root, without walking up.
func Open(root string) (*Repo, error) {
	stateDir := filepath.Join(root, StateDirName)
	info, err := os.Stat(stateDir)
	if err != nil || !info.IsDir() {
		return nil, errclass.ErrNotARepository.WithMessagef("no %s directory at %s", StateDirName, root)
	}
	version, err := readFormatVersion(stateDir)
	if err != nil {
		return nil, err
	}
	repoID, _ := readRepoID(stateDir)
	return &Repo{Root: root, FormatVersion: version, RepoID: repoID}, nil
}

func readFormatVersion(stateDir string) (int, error) {
	data, err := os.ReadFile(filepath.Join(stateDir, FormatVersionFile))
	if err != nil {
		return 0, fmt.Errorf("read format_version: %w", err)
	}
	version, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse format_version: %w", err)
	}
	return version, nil
}

func readRepoID(stateDir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(stateDir, RepoIDFile))
	if err != nil {
		return "", fmt.Errorf("read repo_id: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
