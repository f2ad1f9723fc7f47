package lock_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/remedy-project/remedy/internal/lock"
	"github.com/remedy-project/remedy/pkg/errclass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireRelease(t *testing.T) {
	m := lock.NewManager(t.TempDir(), 0)

	rec, err := m.Acquire("session-1", "self-heal")
	require.NoError(t, err)
	assert.Equal(t, "session-1", rec.SessionID)
	assert.Greater(t, rec.PID, 0)

	require.NoError(t, m.Release("session-1"))

	current, err := m.Current()
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestAcquire_ConflictWhileHeld(t *testing.T) {
	m := lock.NewManager(t.TempDir(), 0)

	_, err := m.Acquire("session-1", "self-heal")
	require.NoError(t, err)

	_, err = m.Acquire("session-2", "self-heal")
	assert.True(t, errors.Is(err, errclass.ErrLockConflict))
}

func TestAcquire_ReclaimsExpiredLock(t *testing.T) {
	dir := t.TempDir()
	short := lock.NewManager(dir, time.Millisecond)

	_, err := short.Acquire("session-1", "self-heal")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	m := lock.NewManager(dir, 0)
	rec, err := m.Acquire("session-2", "self-heal")
	require.NoError(t, err)
	assert.Equal(t, "session-2", rec.SessionID)
}

func TestAcquire_ConcurrentManagersSingleWinner(t *testing.T) {
	dir := t.TempDir()
	short := lock.NewManager(dir, time.Millisecond)
	_, err := short.Acquire("stale", "self-heal")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	// Two managers share no in-process mutex, so reclaiming the expired lock
	// must serialize on the guard file instead.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m := lock.NewManager(dir, 0)
			_, errs[i] = m.Acquire(fmt.Sprintf("session-%d", i), "self-heal")
		}(i)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, errclass.ErrLockConflict):
			lost++
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, lost)
}

func TestRelease_WrongSession(t *testing.T) {
	m := lock.NewManager(t.TempDir(), 0)
	_, err := m.Acquire("session-1", "self-heal")
	require.NoError(t, err)

	err = m.Release("session-9")
	assert.True(t, errors.Is(err, errclass.ErrLockNotHeld))
}

func TestRelease_NotHeld(t *testing.T) {
	m := lock.NewManager(t.TempDir(), 0)
	err := m.Release("session-1")
	assert.True(t, errors.Is(err, errclass.ErrLockNotHeld))
}
