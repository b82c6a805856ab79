package vendors

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("vendor not found")

// Vendor holds a credit balance that is spent on charge sales.
// Balance is never negative; Version increments on every balance
// mutation and serves as the optimistic-concurrency token.
type Vendor struct {
	ID         uuid.UUID
	Name       string
	Balance    decimal.Decimal
	DailyLimit *decimal.Decimal // nil means no daily cap
	Version    int64
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
