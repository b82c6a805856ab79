// Package memory implements kv.Store as an in-process map. Suitable for
// tests and single-node deployments; expired entries are dropped lazily
// on access.
package memory

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/PeymanNr/b2b-charge-service/internal/kv"
)

type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func New() *Store {
	return &Store{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (s *Store) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	if e, ok := s.entries[key]; ok && !e.expired(now) {
		return false, nil
	}

	s.entries[key] = newEntry(value, ttl, now)

	return true, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = newEntry(value, ttl, s.now())

	return nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, kv.ErrNotFound
	}

	if e.expired(s.now()) {
		delete(s.entries, key)
		return nil, kv.ErrNotFound
	}

	out := make([]byte, len(e.value))
	copy(out, e.value)

	return out, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)

	return nil
}

func (s *Store) CompareAndDelete(_ context.Context, key string, value []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.expired(s.now()) || !bytes.Equal(e.value, value) {
		return false, nil
	}

	delete(s.entries, key)

	return true, nil
}

func newEntry(value []byte, ttl time.Duration, now time.Time) entry {
	e := entry{value: make([]byte, len(value))}
	copy(e.value, value)

	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}

	return e
}
