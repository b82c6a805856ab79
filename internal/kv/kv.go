// Package kv defines the shared ephemeral key-value contract backing the
// idempotency guard, the double-spend guard, and the distributed lock
// manager. Any store with an atomic set-if-absent-with-TTL primitive
// satisfies it.
package kv

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("kv: key not found")

type Store interface {
	// SetNX stores value under key only if the key is absent (or its
	// previous value has expired). Returns true if the write happened.
	// A zero ttl means no expiry.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Set stores value under key unconditionally.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns the live value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// CompareAndDelete removes key only if its current value equals value.
	// Returns true if the key was removed.
	CompareAndDelete(ctx context.Context, key string, value []byte) (bool, error)
}
