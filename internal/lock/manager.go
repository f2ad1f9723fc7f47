// Package lock provides the single-writer session lock for a repository.
//
// Recipes within a session are strictly sequential, and interleaved partial
// writes from two engine processes would make rollback ambiguous, so at most
// one session may hold the lock at a time.
package lock

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/remedy-project/remedy/pkg/errclass"
)

const (
	lockFileName  = "session.lock"
	guardFileName = "session.lock.guard"
)

// Record is the on-disk lock file content.
type Record struct {
	SessionID  string    `json:"session_id"`
	PID        int       `json:"pid"`
	Purpose    string    `json:"purpose,omitempty"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// IsExpired reports whether the lease has lapsed.
func (r *Record) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Manager handles session lock operations for one repository.
type Manager struct {
	locksDir string
	ttl      time.Duration
	mu       sync.Mutex
}

// NewManager creates a lock manager. A zero ttl uses the default lease of
// one hour, long enough for any realistic session.
func NewManager(locksDir string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Manager{locksDir: locksDir, ttl: ttl}
}

// Acquire attempts to take the session lock. A live lock held by another
// process yields E_LOCK_CONFLICT; an expired or orphaned lock is reclaimed.
func (m *Manager) Acquire(sessionID, purpose string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	guard, err := m.openGuard()
	if err != nil {
		return nil, err
	}
	defer closeGuard(guard)
	lockPath := m.lockPath()

	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lock: %w", err)
		}
		existing, readErr := m.readLock(lockPath)
		if readErr != nil {
			// Unreadable lock file; treat as orphaned and reclaim.
			existing = &Record{}
		}
		if readErr == nil && !existing.IsExpired(time.Now()) && processAlive(existing.PID) {
			return nil, errclass.ErrLockConflict.WithMessagef(
				"session %s (pid %d) holds the lock until %s",
				existing.SessionID, existing.PID, existing.ExpiresAt.Format(time.RFC3339))
		}
		if err := os.Remove(lockPath); err != nil {
			return nil, fmt.Errorf("reclaim stale lock: %w", err)
		}
		file, err = os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("create lock after reclaim: %w", err)
		}
	}
	defer file.Close()

	now := time.Now().UTC()
	rec := &Record{
		SessionID:  sessionID,
		PID:        os.Getpid(),
		Purpose:    purpose,
		AcquiredAt: now,
		ExpiresAt:  now.Add(m.ttl),
	}

	data, err := json.Marshal(rec)
	if err != nil {
		os.Remove(lockPath)
		return nil, fmt.Errorf("marshal lock record: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		os.Remove(lockPath)
		return nil, fmt.Errorf("write lock record: %w", err)
	}
	if err := file.Sync(); err != nil {
		os.Remove(lockPath)
		return nil, fmt.Errorf("sync lock record: %w", err)
	}

	return rec, nil
}

// Release removes the lock if held by the given session.
func (m *Manager) Release(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	guard, gerr := m.openGuard()
	if gerr != nil {
		return gerr
	}
	defer closeGuard(guard)

	lockPath := m.lockPath()
	rec, err := m.readLock(lockPath)
	if os.IsNotExist(err) {
		return errclass.ErrLockNotHeld.WithMessage("no lock file present")
	}
	if err != nil {
		return fmt.Errorf("read lock: %w", err)
	}
	if rec.SessionID != sessionID {
		return errclass.ErrLockNotHeld.WithMessagef(
			"lock held by session %s, not %s", rec.SessionID, sessionID)
	}
	if err := os.Remove(lockPath); err != nil {
		return fmt.Errorf("remove lock: %w", err)
	}
	return nil
}

// Current returns the current lock record, or nil if unlocked.
func (m *Manager) Current() (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.readLock(m.lockPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (m *Manager) lockPath() string {
	return filepath.Join(m.locksDir, lockFileName)
}

// openGuard takes an advisory lock on a guard file shared by every process
// touching the lock. The in-process mutex does not cover a second engine
// process deciding the same lock is stale, so reclaim and release run under
// the guard to keep one process from clobbering another's fresh lock.
func (m *Manager) openGuard() (*os.File, error) {
	if err := os.MkdirAll(m.locksDir, 0755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	guard, err := os.OpenFile(filepath.Join(m.locksDir, guardFileName), os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open lock guard: %w", err)
	}
	if err := lockFile(guard); err != nil {
		guard.Close()
		return nil, fmt.Errorf("lock guard: %w", err)
	}
	return guard, nil
}

func closeGuard(guard *os.File) {
	unlockFile(guard)
	guard.Close()
}

func (m *Manager) readLock(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse lock record: %w", err)
	}
	return &rec, nil
}
