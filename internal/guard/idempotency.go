// Package guard provides the two ephemeral protections in front of the
// ledger: idempotency deduplication of retried requests and a short-lived
// double-spend marker for logically identical concurrent spends.
package guard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PeymanNr/b2b-charge-service/internal/kv"
)

// ErrInFlight is returned by Begin when another caller holds the claim
// for the same key but has not recorded a result yet.
var ErrInFlight = errors.New("operation with this idempotency key is in flight")

// Idempotency deduplicates mutation requests by key. Exactly one caller
// per key wins the in-flight claim and proceeds to mutate; once it records
// the outcome, retries receive that stored result without reapplying.
//
// The in-flight claim carries a shorter expiry than the stored result, so
// a worker that crashes between claiming and recording does not block
// retries past the claim TTL.
type Idempotency struct {
	kv          kv.Store
	resultTTL   time.Duration
	inflightTTL time.Duration
}

func NewIdempotency(store kv.Store, resultTTL, inflightTTL time.Duration) *Idempotency {
	return &Idempotency{kv: store, resultTTL: resultTTL, inflightTTL: inflightTTL}
}

func resultKey(key string) string   { return "idem:result:" + key }
func inflightKey(key string) string { return "idem:claim:" + key }

// Begin checks for a prior result and otherwise claims the key.
// It returns (prior, false, nil) when the operation already completed,
// (nil, true, nil) when the caller won the claim and must proceed, and
// (nil, false, ErrInFlight) when another caller holds the claim.
func (g *Idempotency) Begin(ctx context.Context, key string) (prior []byte, claimed bool, err error) {
	prior, err = g.kv.Get(ctx, resultKey(key))
	if err == nil {
		return prior, false, nil
	}

	if !errors.Is(err, kv.ErrNotFound) {
		return nil, false, fmt.Errorf("idempotency lookup: %w", err)
	}

	ok, err := g.kv.SetNX(ctx, inflightKey(key), []byte("1"), g.inflightTTL)
	if err != nil {
		return nil, false, fmt.Errorf("idempotency claim: %w", err)
	}

	if ok {
		// Record stores the result before releasing the claim, so a claim
		// won here can belong to an operation that just completed: re-check
		// the result and surrender the claim rather than reapply.
		prior, err = g.kv.Get(ctx, resultKey(key))
		if err == nil {
			if aerr := g.Abandon(ctx, key); aerr != nil {
				return nil, false, aerr
			}

			return prior, false, nil
		}

		if !errors.Is(err, kv.ErrNotFound) {
			return nil, false, fmt.Errorf("idempotency lookup: %w", err)
		}

		return nil, true, nil
	}

	// Lost the claim race; the winner may have recorded a result already.
	prior, err = g.kv.Get(ctx, resultKey(key))
	if err == nil {
		return prior, false, nil
	}

	if !errors.Is(err, kv.ErrNotFound) {
		return nil, false, fmt.Errorf("idempotency lookup: %w", err)
	}

	return nil, false, ErrInFlight
}

// Record durably stores the outcome for key and drops the in-flight claim.
// Only successful outcomes are recorded; terminal failures Abandon instead,
// so a corrected retry is not pinned to the old failure.
func (g *Idempotency) Record(ctx context.Context, key string, result []byte) error {
	if err := g.kv.Set(ctx, resultKey(key), result, g.resultTTL); err != nil {
		return fmt.Errorf("idempotency record: %w", err)
	}

	if err := g.kv.Delete(ctx, inflightKey(key)); err != nil {
		return fmt.Errorf("idempotency claim cleanup: %w", err)
	}

	return nil
}

// Abandon releases the in-flight claim without recording a result.
func (g *Idempotency) Abandon(ctx context.Context, key string) error {
	if err := g.kv.Delete(ctx, inflightKey(key)); err != nil {
		return fmt.Errorf("idempotency abandon: %w", err)
	}

	return nil
}
