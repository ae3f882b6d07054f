package lock

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker_Exclusive(t *testing.T) {
	t.Parallel()

	locker := NewLocalLocker()
	key := ExecutionKey("exec-1")

	lease, err := locker.Acquire(t.Context(), key, time.Minute)
	require.NoError(t, err)

	_, err = locker.Acquire(t.Context(), key, time.Minute)
	require.ErrorIs(t, err, ErrNotAcquired)

	require.NoError(t, lease.Release(t.Context()))

	again, err := locker.Acquire(t.Context(), key, time.Minute)
	require.NoError(t, err)
	require.NoError(t, again.Release(t.Context()))
}

func TestLocalLocker_ExpiredLeaseCanBeTaken(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	locker := NewLocalLocker()
	locker.now = func() time.Time { return now }

	stale, err := locker.Acquire(t.Context(), "k", time.Second)
	require.NoError(t, err)

	now = now.Add(2 * time.Second)

	fresh, err := locker.Acquire(t.Context(), "k", time.Second)
	require.NoError(t, err)

	// Releasing the stale lease must not free the fresh one.
	require.NoError(t, stale.Release(t.Context()))

	_, err = locker.Acquire(t.Context(), "k", time.Second)
	require.ErrorIs(t, err, ErrNotAcquired)

	require.NoError(t, fresh.Release(t.Context()))
}

func TestLocalLocker_ConcurrentAcquire(t *testing.T) {
	t.Parallel()

	locker := NewLocalLocker()

	var (
		wg       sync.WaitGroup
		acquired atomic.Int32
	)

	for range 20 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if _, err := locker.Acquire(t.Context(), "shared", time.Minute); err == nil {
				acquired.Add(1)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(1), acquired.Load())
}
