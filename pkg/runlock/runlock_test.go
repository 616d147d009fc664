package runlock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker_Exclusive(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	lease, err := l.Acquire(ctx, "tenant-a", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "tenant-a", time.Minute)
	assert.ErrorIs(t, err, ErrHeld)

	_, err = l.Acquire(ctx, "tenant-b", time.Minute)
	assert.NoError(t, err, "keys are independent")

	require.NoError(t, l.Release(ctx, lease))
	_, err = l.Acquire(ctx, "tenant-a", time.Minute)
	assert.NoError(t, err)
}

func TestMemoryLocker_Expiry(t *testing.T) {
	l := NewMemoryLocker()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l.nowFn = func() time.Time { return now }
	ctx := context.Background()

	stale, err := l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	fresh, err := l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err, "expired lease can be taken over")

	// releasing the stale lease must not drop the new holder
	require.NoError(t, l.Release(ctx, stale))
	_, err = l.Acquire(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, ErrHeld)

	require.NoError(t, l.Release(ctx, fresh))
}

func TestMemoryLocker_Concurrent(t *testing.T) {
	l := NewMemoryLocker()
	var wins atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Acquire(context.Background(), "same", time.Minute); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}
