package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/PeymanNr/b2b-charge-service/internal/vendors"
)

// Type classifies a ledger transaction.
type Type string

const (
	TypeCredit     Type = "CREDIT"
	TypeChargeSale Type = "CHARGE_SALE"
	// TypeAdjustment records a stored-balance correction written by
	// reconciliation. It realigns the stored balance with the log and
	// therefore contributes nothing to a replay fold.
	TypeAdjustment Type = "ADJUSTMENT"
)

// Status is the lifecycle state of a transaction record. The log is
// append-only: a SUCCESS row is never mutated; cancelling one means
// appending a compensating row with status REVERSED.
type Status string

const (
	StatusSuccess  Status = "SUCCESS"
	StatusFailed   Status = "FAILED"
	StatusReversed Status = "REVERSED"
)

// Transaction is one immutable entry in a vendor's transaction log.
// Seq is assigned by the store at commit time and defines log order.
type Transaction struct {
	ID              uuid.UUID
	Seq             int64
	VendorID        uuid.UUID
	Type            Type
	Status          Status
	Amount          decimal.Decimal // always positive; sign comes from Type
	PhoneNumber     string          // charge sales only
	CreditRequestID *uuid.UUID      // credit applications only
	BalanceBefore   decimal.Decimal
	BalanceAfter    decimal.Decimal
	IdempotencyKey  string
	Description     string
	CreatedAt       time.Time
}

// SignedAmount is the transaction's contribution to a balance replay.
func (t *Transaction) SignedAmount() decimal.Decimal {
	var d decimal.Decimal

	switch t.Type {
	case TypeCredit:
		d = t.Amount
	case TypeChargeSale:
		d = t.Amount.Neg()
	case TypeAdjustment:
		return decimal.Zero
	}

	// A REVERSED entry cancels its referent: the pair folds to zero.
	if t.Status == StatusReversed {
		return d.Neg()
	}

	return d
}

// CommitResult reports the outcome of an atomic balance mutation.
type CommitResult int

const (
	CommitOK CommitResult = iota
	CommitVersionConflict
	CommitInsufficientBalance
)

// ErrCreditNotApplicable is returned by CommitMutation when the credit
// request named in Mutation.MarkCreditApplied is no longer in APPROVED
// state; the whole commit is rolled back.
var ErrCreditNotApplicable = errors.New("credit request not in approved state")

// Mutation describes one atomic balance change plus its transaction record.
// The store applies the balance delta, stamps Transaction.Seq and
// Transaction.CreatedAt, appends the record, and increments the vendor
// version, all together or not at all.
type Mutation struct {
	VendorID        uuid.UUID
	ExpectedVersion int64
	Delta           decimal.Decimal // signed; resulting balance must stay >= 0
	Transaction     *Transaction
	// MarkCreditApplied, when set, transitions the credit request
	// APPROVED -> APPLIED within the same commit.
	MarkCreditApplied *uuid.UUID
}

//go:generate mockgen -source=ledger.go -destination=store_mock.go -package=ledger

// Store is the durable, versioned ledger: vendor balances plus the
// append-only transaction log.
type Store interface {
	// ReadVendor returns the vendor's current balance and version.
	ReadVendor(ctx context.Context, vendorID uuid.UUID) (*vendors.Vendor, error)

	// ReadTransactions returns the vendor's transactions with Seq > sinceSeq,
	// in log order.
	ReadTransactions(ctx context.Context, vendorID uuid.UUID, sinceSeq int64) ([]*Transaction, error)

	// CommitMutation atomically applies the balance delta and appends the
	// transaction record. The version check and the non-negative balance
	// check are enforced server-side; on failure nothing is persisted.
	CommitMutation(ctx context.Context, m Mutation) (CommitResult, error)

	// DailySpent sums the vendor's SUCCESS charge-sale amounts for the UTC
	// calendar day containing at.
	DailySpent(ctx context.Context, vendorID uuid.UUID, at time.Time) (decimal.Decimal, error)
}
