package guard

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/PeymanNr/b2b-charge-service/internal/kv"
)

// DoubleSpend holds a marker per (vendor, business key) while a spend is
// in flight, rejecting a second concurrent attempt at the same logical
// spend even when the two requests carry different idempotency keys.
// The marker TTL bounds the blast radius of a crashed worker.
type DoubleSpend struct {
	kv  kv.Store
	ttl time.Duration
}

func NewDoubleSpend(store kv.Store, ttl time.Duration) *DoubleSpend {
	return &DoubleSpend{kv: store, ttl: ttl}
}

// BusinessKey fingerprints the logical spend: same phone number and
// amount hash to the same marker.
func BusinessKey(phoneNumber string, amount decimal.Decimal) string {
	sum := sha256.Sum256([]byte(phoneNumber + "_" + amount.String()))
	return hex.EncodeToString(sum[:])
}

func markerKey(vendorID uuid.UUID, businessKey string) string {
	return "spend:" + vendorID.String() + ":" + businessKey
}

// TryMark atomically claims the marker. A false return means an identical
// spend is already in flight and the caller must not touch the ledger.
func (g *DoubleSpend) TryMark(ctx context.Context, vendorID uuid.UUID, businessKey string) (bool, error) {
	ok, err := g.kv.SetNX(ctx, markerKey(vendorID, businessKey), []byte("1"), g.ttl)
	if err != nil {
		return false, fmt.Errorf("double-spend mark: %w", err)
	}

	return ok, nil
}

// Release removes the marker once the spend has settled, successfully or not.
func (g *DoubleSpend) Release(ctx context.Context, vendorID uuid.UUID, businessKey string) error {
	if err := g.kv.Delete(ctx, markerKey(vendorID, businessKey)); err != nil {
		return fmt.Errorf("double-spend release: %w", err)
	}

	return nil
}
