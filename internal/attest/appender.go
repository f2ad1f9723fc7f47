// Package attest maintains the hash-chained attestation log.
//
// Every recipe attempt appends exactly one JSONL record, whether it
// committed, rolled back or failed. Records are chained through PrevHash
// and RecordHash so edits and deletions are detectable after the fact.
package attest

import (
	"bufio"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/remedy-project/remedy/pkg/errclass"
	"github.com/remedy-project/remedy/pkg/jsonutil"
	"github.com/remedy-project/remedy/pkg/model"
)

// Appender appends attestation records to a JSONL file with a hash chain.
type Appender struct {
	path string
	mu   sync.Mutex
}

// NewAppender creates an appender for the log at path.
func NewAppender(path string) *Appender {
	return &Appender{path: path}
}

// Attest records one recipe attempt and returns the appended entry.
// beforeContent and afterContent are the concatenated contents of the
// modified files in filesModified order; their digests anchor the attempt to
// actual bytes rather than claims.
func (a *Appender) Attest(sessionID, recipeID string, filesModified []string, beforeContent, afterContent [][]byte, improved bool) (*model.AttestationEntry, error) {
	entry := &model.AttestationEntry{
		Timestamp:     time.Now().UTC(),
		SessionID:     sessionID,
		RecipeID:      recipeID,
		FilesModified: filesModified,
		BeforeHash:    digestContents(beforeContent),
		AfterHash:     digestContents(afterContent),
		Improved:      improved,
	}
	if err := a.Append(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Append adds entry to the log, filling in PrevHash and RecordHash.
func (a *Appender) Append(entry *model.AttestationEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(a.path), 0755); err != nil {
		return fmt.Errorf("create attest dir: %w", err)
	}

	file, err := os.OpenFile(a.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("open attestation log: %w", err)
	}
	defer file.Close()

	if err := lockFile(file); err != nil {
		return fmt.Errorf("lock attestation log: %w", err)
	}
	defer unlockFile(file)

	prevHash, err := lastRecordHash(file)
	if err != nil {
		return fmt.Errorf("read last record hash: %w", err)
	}
	entry.PrevHash = prevHash

	recordHash, err := computeRecordHash(entry)
	if err != nil {
		return err
	}
	entry.RecordHash = recordHash

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal attestation entry: %w", err)
	}

	if _, err := file.Seek(0, 2); err != nil {
		return fmt.Errorf("seek to end: %w", err)
	}
	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write attestation entry: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync attestation log: %w", err)
	}
	return nil
}

// ReadAll returns every entry in log order. A missing log is an empty log.
func (a *Appender) ReadAll() ([]model.AttestationEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	file, err := os.Open(a.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open attestation log: %w", err)
	}
	defer file.Close()

	var entries []model.AttestationEntry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var entry model.AttestationEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, errclass.ErrAttestChainBroken.WithMessagef("malformed entry: %v", err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan attestation log: %w", err)
	}
	return entries, nil
}

// Verify walks the whole chain and fails on the first broken link or
// recomputed hash mismatch. An absent log verifies trivially.
func (a *Appender) Verify() (int, error) {
	entries, err := a.ReadAll()
	if err != nil {
		return 0, err
	}

	var prev model.HashValue
	for i, entry := range entries {
		if entry.PrevHash != prev {
			return i, errclass.ErrAttestChainBroken.WithMessagef(
				"entry %d: prev_hash does not match preceding record", i)
		}
		expected, err := computeRecordHash(&entry)
		if err != nil {
			return i, err
		}
		if entry.RecordHash != expected {
			return i, errclass.ErrAttestChainBroken.WithMessagef(
				"entry %d: record_hash mismatch", i)
		}
		prev = entry.RecordHash
	}
	return len(entries), nil
}

func lastRecordHash(file *os.File) (model.HashValue, error) {
	if _, err := file.Seek(0, 0); err != nil {
		return "", fmt.Errorf("seek to start: %w", err)
	}

	var lastHash model.HashValue
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var entry model.AttestationEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue // skip malformed lines
		}
		lastHash = entry.RecordHash
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan attestation log: %w", err)
	}
	return lastHash, nil
}

func computeRecordHash(entry *model.AttestationEntry) (model.HashValue, error) {
	clone := *entry
	clone.RecordHash = ""

	data, err := jsonutil.CanonicalMarshal(&clone)
	if err != nil {
		return "", fmt.Errorf("canonical marshal: %w", err)
	}
	sum := sha256.Sum256(data)
	return model.HashValue(fmt.Sprintf("%x", sum)), nil
}

// digestContents hashes the concatenation of the given file contents.
func digestContents(contents [][]byte) model.HashValue {
	h := sha256.New()
	for _, c := range contents {
		h.Write(c)
	}
	return model.HashValue(fmt.Sprintf("%x", h.Sum(nil)))
}
