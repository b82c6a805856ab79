package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PeymanNr/b2b-charge-service/internal/kv"
)

// newTestStore returns a store with a manually advanced clock.
func newTestStore() (*Store, *time.Time) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := New()
	s.now = func() time.Time { return now }

	return s, &now
}

func TestStore_SetNX(t *testing.T) {
	ctx := context.Background()
	s, now := newTestStore()

	ok, err := s.SetNX(ctx, "k", []byte("a"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.SetNX(ctx, "k", []byte("b"), time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), got)

	// Expired entries are claimable again.
	*now = now.Add(2 * time.Minute)

	ok, err = s.SetNX(ctx, "k", []byte("b"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_GetExpiry(t *testing.T) {
	ctx := context.Background()
	s, now := newTestStore()

	require.NoError(t, s.Set(ctx, "ttl", []byte("v"), time.Second))
	require.NoError(t, s.Set(ctx, "forever", []byte("v"), 0))

	*now = now.Add(time.Hour)

	_, err := s.Get(ctx, "ttl")
	assert.ErrorIs(t, err, kv.ErrNotFound)

	_, err = s.Get(ctx, "forever")
	assert.NoError(t, err)
}

func TestStore_GetMissing(t *testing.T) {
	s, _ := newTestStore()

	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	require.NoError(t, s.Set(ctx, "k", []byte("abc"), 0))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)

	got[0] = 'x'

	again, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestStore_CompareAndDelete(t *testing.T) {
	ctx := context.Background()
	s, now := newTestStore()

	require.NoError(t, s.Set(ctx, "k", []byte("token"), time.Minute))

	ok, err := s.CompareAndDelete(ctx, "k", []byte("other"))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.CompareAndDelete(ctx, "k", []byte("token"))
	require.NoError(t, err)
	assert.True(t, ok)

	// Second delete has nothing to match.
	ok, err = s.CompareAndDelete(ctx, "k", []byte("token"))
	require.NoError(t, err)
	assert.False(t, ok)

	// An expired entry never matches.
	require.NoError(t, s.Set(ctx, "e", []byte("token"), time.Second))
	*now = now.Add(time.Minute)

	ok, err = s.CompareAndDelete(ctx, "e", []byte("token"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, s.Delete(ctx, "k"))

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, kv.ErrNotFound)

	// Deleting a missing key is not an error.
	assert.NoError(t, s.Delete(ctx, "k"))
}
