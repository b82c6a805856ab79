package lock_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PeymanNr/b2b-charge-service/internal/kv/memory"
	"github.com/PeymanNr/b2b-charge-service/internal/lock"
)

func TestManager_AcquireRelease(t *testing.T) {
	ctx := context.Background()
	m := lock.NewManager(memory.New(), time.Minute)

	lease, err := m.Acquire(ctx, "vendor:a", 50*time.Millisecond)
	require.NoError(t, err)

	// Held: a second acquisition times out.
	_, err = m.Acquire(ctx, "vendor:a", 20*time.Millisecond)
	assert.ErrorIs(t, err, lock.ErrTimeout)

	// Different key is free.
	other, err := m.Acquire(ctx, "vendor:b", 20*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lease.Release(ctx))

	// Released: acquirable again.
	lease, err = m.Acquire(ctx, "vendor:a", 20*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, lease.Release(ctx))
}

func TestManager_ContextCancelled(t *testing.T) {
	m := lock.NewManager(memory.New(), time.Minute)

	lease, err := m.Acquire(context.Background(), "vendor:a", time.Second)
	require.NoError(t, err)
	defer lease.Release(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = m.Acquire(ctx, "vendor:a", time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestManager_MutualExclusion(t *testing.T) {
	ctx := context.Background()
	m := lock.NewManager(memory.New(), time.Minute)
	key := lock.VendorKey(uuid.New())

	const workers = 16

	var (
		wg      sync.WaitGroup
		holders int
		peak    int
		mu      sync.Mutex
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			lease, err := m.Acquire(ctx, key, 5*time.Second)
			if !assert.NoError(t, err) {
				return
			}

			mu.Lock()
			holders++
			if holders > peak {
				peak = holders
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			holders--
			mu.Unlock()

			assert.NoError(t, lease.Release(ctx))
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, peak, "more than one holder inside the critical section")
}

func TestLease_StaleReleaseRefused(t *testing.T) {
	ctx := context.Background()
	m := lock.NewManager(memory.New(), 10*time.Millisecond)

	stale, err := m.Acquire(ctx, "vendor:a", 20*time.Millisecond)
	require.NoError(t, err)

	// Lease expires and another holder takes over.
	time.Sleep(20 * time.Millisecond)

	fresh, err := m.Acquire(ctx, "vendor:a", 20*time.Millisecond)
	require.NoError(t, err)

	// The stale holder must not free the successor's lock.
	assert.Error(t, stale.Release(ctx))
	assert.NoError(t, fresh.Release(ctx))
}
