// Package lock is a lease-based mutual-exclusion manager on top of the
// shared kv store. The lease auto-expires so a crashed holder cannot
// wedge a vendor indefinitely, and release is token-checked so an owner
// whose lease expired never deletes a successor's lock.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/PeymanNr/b2b-charge-service/internal/kv"
)

// ErrTimeout is returned when the lock could not be acquired within the
// caller's timeout. Nothing has been mutated; the request is retryable.
var ErrTimeout = errors.New("lock acquisition timed out")

const defaultPoll = 2 * time.Millisecond

type Manager struct {
	kv    kv.Store
	lease time.Duration
	poll  time.Duration
}

// NewManager creates a lock manager whose leases expire after lease.
// The lease must exceed the worst-case critical-section duration with
// margin; renewal is not supported.
func NewManager(store kv.Store, lease time.Duration) *Manager {
	return &Manager{kv: store, lease: lease, poll: defaultPoll}
}

// VendorKey is the conventional resource key serializing all mutations
// against one vendor.
func VendorKey(vendorID uuid.UUID) string {
	return "vendor:" + vendorID.String()
}

// Acquire blocks until the lock on key is held, the timeout elapses, or
// ctx is done. The returned lease must be released by the same holder.
func (m *Manager) Acquire(ctx context.Context, key string, timeout time.Duration) (*Lease, error) {
	token := []byte(uuid.NewString())
	lockKey := "lock:" + key
	deadline := time.Now().Add(timeout)

	for {
		ok, err := m.kv.SetNX(ctx, lockKey, token, m.lease)
		if err != nil {
			return nil, fmt.Errorf("acquiring lock %s: %w", key, err)
		}

		if ok {
			return &Lease{kv: m.kv, key: lockKey, token: token}, nil
		}

		if time.Now().After(deadline) {
			return nil, ErrTimeout
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.poll):
		}
	}
}

// Lease is a held lock scoped to one acquisition.
type Lease struct {
	kv    kv.Store
	key   string
	token []byte
}

// Release frees the lock if this lease still owns it. An expired lease
// that has been taken over elsewhere is left untouched.
func (l *Lease) Release(ctx context.Context) error {
	ok, err := l.kv.CompareAndDelete(ctx, l.key, l.token)
	if err != nil {
		return fmt.Errorf("releasing lock %s: %w", l.key, err)
	}

	if !ok {
		return fmt.Errorf("releasing lock %s: lease no longer held", l.key)
	}

	return nil
}
