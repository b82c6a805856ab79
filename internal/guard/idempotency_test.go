package guard_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PeymanNr/b2b-charge-service/internal/guard"
	"github.com/PeymanNr/b2b-charge-service/internal/kv"
	"github.com/PeymanNr/b2b-charge-service/internal/kv/memory"
)

func TestIdempotency_BeginClaimsOnce(t *testing.T) {
	ctx := context.Background()
	idem := guard.NewIdempotency(memory.New(), time.Hour, time.Minute)

	prior, claimed, err := idem.Begin(ctx, "key-1")
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Nil(t, prior)

	// Same key while the claim is held.
	_, _, err = idem.Begin(ctx, "key-1")
	assert.ErrorIs(t, err, guard.ErrInFlight)

	// Unrelated keys are independent.
	_, claimed, err = idem.Begin(ctx, "key-2")
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestIdempotency_RecordServesRetries(t *testing.T) {
	ctx := context.Background()
	idem := guard.NewIdempotency(memory.New(), time.Hour, time.Minute)

	_, claimed, err := idem.Begin(ctx, "key")
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, idem.Record(ctx, "key", []byte(`{"ok":true}`)))

	prior, claimed, err := idem.Begin(ctx, "key")
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, []byte(`{"ok":true}`), prior)
}

// hookStore delays one SetNX so a test can interleave another caller's
// writes between a guard's result lookup and its claim attempt.
type hookStore struct {
	kv.Store
	beforeSetNX func()
}

func (s *hookStore) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if s.beforeSetNX != nil {
		fn := s.beforeSetNX
		s.beforeSetNX = nil
		fn()
	}

	return s.Store.SetNX(ctx, key, value, ttl)
}

func TestIdempotency_BeginServesResultRecordedDuringClaimRace(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	winner := guard.NewIdempotency(store, 50*time.Millisecond, time.Hour)

	hooked := &hookStore{Store: store}
	retrier := guard.NewIdempotency(hooked, 50*time.Millisecond, time.Hour)

	_, claimed, err := winner.Begin(ctx, "key")
	require.NoError(t, err)
	require.True(t, claimed)

	// The retry's result lookup misses while the winner still holds the
	// claim; the winner then records and releases before the retry's
	// claim attempt lands.
	hooked.beforeSetNX = func() {
		require.NoError(t, winner.Record(ctx, "key", []byte(`{"ok":true}`)))
	}

	prior, claimed, err := retrier.Begin(ctx, "key")
	require.NoError(t, err)
	assert.False(t, claimed, "retry must not win a claim for a completed operation")
	assert.Equal(t, []byte(`{"ok":true}`), prior)

	// A later retry gets the stored result unchanged.
	prior, claimed, err = winner.Begin(ctx, "key")
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, []byte(`{"ok":true}`), prior)

	// The claim the retry briefly held was surrendered: once the result
	// expires, a fresh operation claims immediately instead of waiting
	// out the hour-long claim TTL.
	time.Sleep(100 * time.Millisecond)

	_, claimed, err = winner.Begin(ctx, "key")
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestIdempotency_AbandonReleasesClaim(t *testing.T) {
	ctx := context.Background()
	idem := guard.NewIdempotency(memory.New(), time.Hour, time.Minute)

	_, claimed, err := idem.Begin(ctx, "key")
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, idem.Abandon(ctx, "key"))

	// A retry after a terminal failure claims fresh, with no stored result.
	prior, claimed, err := idem.Begin(ctx, "key")
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Nil(t, prior)
}

func TestIdempotency_ClaimExpires(t *testing.T) {
	ctx := context.Background()
	idem := guard.NewIdempotency(memory.New(), time.Hour, 10*time.Millisecond)

	_, claimed, err := idem.Begin(ctx, "key")
	require.NoError(t, err)
	require.True(t, claimed)

	// A crashed worker never records or abandons; the claim TTL unblocks
	// the retry.
	time.Sleep(20 * time.Millisecond)

	_, claimed, err = idem.Begin(ctx, "key")
	require.NoError(t, err)
	assert.True(t, claimed)
}
