// Package engine orchestrates every vendor balance mutation: idempotency
// deduplication, the double-spend marker, the distributed vendor lock,
// invariant checks, and the atomic ledger commit with bounded retries
// under version contention.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/PeymanNr/b2b-charge-service/internal/credit"
	"github.com/PeymanNr/b2b-charge-service/internal/guard"
	"github.com/PeymanNr/b2b-charge-service/internal/ledger"
	"github.com/PeymanNr/b2b-charge-service/internal/lock"
	"github.com/PeymanNr/b2b-charge-service/internal/vendors"
)

// Result is the transaction summary returned to the caller and stored as
// the idempotency outcome, so a retried request gets the identical answer.
type Result struct {
	TransactionID uuid.UUID       `json:"transaction_id"`
	VendorID      uuid.UUID       `json:"vendor_id"`
	Type          ledger.Type     `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	CreatedAt     time.Time       `json:"created_at"`
}

type Config struct {
	LockTimeout       time.Duration
	CommitAttempts    int
	RetryBackoff      time.Duration
	EnforceDailyLimit bool
}

type Engine struct {
	store   ledger.Store
	credits credit.Repository
	idem    *guard.Idempotency
	spend   *guard.DoubleSpend
	locks   *lock.Manager
	cfg     Config
}

func New(store ledger.Store, credits credit.Repository, idem *guard.Idempotency, spend *guard.DoubleSpend, locks *lock.Manager, cfg Config) *Engine {
	if cfg.CommitAttempts <= 0 {
		cfg.CommitAttempts = 3
	}

	return &Engine{store: store, credits: credits, idem: idem, spend: spend, locks: locks, cfg: cfg}
}

// SellCharge debits the vendor balance for a phone charge and appends the
// CHARGE_SALE transaction record atomically.
func (e *Engine) SellCharge(ctx context.Context, vendorID uuid.UUID, phoneNumber string, amount decimal.Decimal, idempotencyKey string) (*Result, error) {
	if !amount.IsPositive() {
		return nil, ErrAmountNotPositive
	}

	prior, err := e.begin(ctx, idempotencyKey)
	if err != nil || prior != nil {
		return prior, err
	}

	businessKey := guard.BusinessKey(phoneNumber, amount)

	marked, err := e.spend.TryMark(ctx, vendorID, businessKey)
	if err != nil {
		e.abandon(ctx, idempotencyKey)
		return nil, err
	}

	if !marked {
		slog.Warn("double-spend attempt rejected", "vendor_id", vendorID, "phone_number", phoneNumber)
		e.abandon(ctx, idempotencyKey)

		return nil, ErrConcurrentDuplicate
	}

	lease, err := e.locks.Acquire(ctx, lock.VendorKey(vendorID), e.cfg.LockTimeout)
	if err != nil {
		e.releaseSpend(ctx, vendorID, businessKey)
		e.abandon(ctx, idempotencyKey)

		if errors.Is(err, lock.ErrTimeout) {
			slog.Warn("vendor lock timeout", "vendor_id", vendorID)
			return nil, ErrLockTimeout
		}

		return nil, err
	}

	res, err := e.commitChargeSale(ctx, vendorID, phoneNumber, amount, idempotencyKey)
	if err != nil {
		e.releaseSpend(ctx, vendorID, businessKey)
		e.abandon(ctx, idempotencyKey)
		e.releaseLease(ctx, lease)

		return nil, err
	}

	e.record(ctx, idempotencyKey, res)
	e.releaseSpend(ctx, vendorID, businessKey)
	e.releaseLease(ctx, lease)

	return res, nil
}

// ApplyCredit applies an APPROVED credit request to the vendor balance
// exactly once, marking the request APPLIED within the same commit.
func (e *Engine) ApplyCredit(ctx context.Context, vendorID, creditRequestID uuid.UUID, idempotencyKey string) (*Result, error) {
	prior, err := e.begin(ctx, idempotencyKey)
	if err != nil || prior != nil {
		return prior, err
	}

	lease, err := e.locks.Acquire(ctx, lock.VendorKey(vendorID), e.cfg.LockTimeout)
	if err != nil {
		e.abandon(ctx, idempotencyKey)

		if errors.Is(err, lock.ErrTimeout) {
			slog.Warn("vendor lock timeout", "vendor_id", vendorID)
			return nil, ErrLockTimeout
		}

		return nil, err
	}

	res, err := e.commitCreditApply(ctx, vendorID, creditRequestID, idempotencyKey)
	if err != nil {
		e.abandon(ctx, idempotencyKey)
		e.releaseLease(ctx, lease)

		return nil, err
	}

	e.record(ctx, idempotencyKey, res)
	e.releaseLease(ctx, lease)

	return res, nil
}

// GetBalance returns the vendor's current stored balance and version.
func (e *Engine) GetBalance(ctx context.Context, vendorID uuid.UUID) (*vendors.Vendor, error) {
	return e.store.ReadVendor(ctx, vendorID)
}

func (e *Engine) commitChargeSale(ctx context.Context, vendorID uuid.UUID, phoneNumber string, amount decimal.Decimal, idempotencyKey string) (*Result, error) {
	for attempt := 0; attempt < e.cfg.CommitAttempts; attempt++ {
		if err := e.backoff(ctx, attempt); err != nil {
			return nil, err
		}

		v, err := e.store.ReadVendor(ctx, vendorID)
		if err != nil {
			return nil, err
		}

		if !v.Active {
			return nil, fmt.Errorf("%w: vendor is inactive", ErrInvalidState)
		}

		if v.Balance.LessThan(amount) {
			return nil, ErrInsufficientBalance
		}

		if e.cfg.EnforceDailyLimit && v.DailyLimit != nil {
			spent, err := e.store.DailySpent(ctx, vendorID, time.Now().UTC())
			if err != nil {
				return nil, err
			}

			if spent.Add(amount).GreaterThan(*v.DailyLimit) {
				return nil, ErrDailyLimitExceeded
			}
		}

		txn := &ledger.Transaction{
			ID:             uuid.New(),
			VendorID:       vendorID,
			Type:           ledger.TypeChargeSale,
			Status:         ledger.StatusSuccess,
			Amount:         amount,
			PhoneNumber:    phoneNumber,
			BalanceBefore:  v.Balance,
			BalanceAfter:   v.Balance.Sub(amount),
			IdempotencyKey: idempotencyKey,
			Description:    "phone charge " + phoneNumber,
		}

		outcome, err := e.store.CommitMutation(ctx, ledger.Mutation{
			VendorID:        vendorID,
			ExpectedVersion: v.Version,
			Delta:           amount.Neg(),
			Transaction:     txn,
		})
		if err != nil {
			return nil, err
		}

		switch outcome {
		case ledger.CommitOK:
			return resultFrom(txn), nil
		case ledger.CommitInsufficientBalance:
			return nil, ErrInsufficientBalance
		case ledger.CommitVersionConflict:
			continue
		}
	}

	return nil, ErrContentionExceeded
}

func (e *Engine) commitCreditApply(ctx context.Context, vendorID, creditRequestID uuid.UUID, idempotencyKey string) (*Result, error) {
	req, err := e.credits.GetByID(ctx, creditRequestID)
	if err != nil {
		return nil, err
	}

	if req.VendorID != vendorID {
		return nil, fmt.Errorf("%w: credit request belongs to another vendor", ErrInvalidState)
	}

	if req.Status != credit.StatusApproved {
		return nil, fmt.Errorf("%w: credit request is %s", ErrInvalidState, req.Status)
	}

	for attempt := 0; attempt < e.cfg.CommitAttempts; attempt++ {
		if err := e.backoff(ctx, attempt); err != nil {
			return nil, err
		}

		v, err := e.store.ReadVendor(ctx, vendorID)
		if err != nil {
			return nil, err
		}

		if !v.Active {
			return nil, fmt.Errorf("%w: vendor is inactive", ErrInvalidState)
		}

		txn := &ledger.Transaction{
			ID:              uuid.New(),
			VendorID:        vendorID,
			Type:            ledger.TypeCredit,
			Status:          ledger.StatusSuccess,
			Amount:          req.Amount,
			CreditRequestID: &req.ID,
			BalanceBefore:   v.Balance,
			BalanceAfter:    v.Balance.Add(req.Amount),
			IdempotencyKey:  idempotencyKey,
			Description:     "credit request applied",
		}

		outcome, err := e.store.CommitMutation(ctx, ledger.Mutation{
			VendorID:          vendorID,
			ExpectedVersion:   v.Version,
			Delta:             req.Amount,
			Transaction:       txn,
			MarkCreditApplied: &req.ID,
		})
		if err != nil {
			if errors.Is(err, ledger.ErrCreditNotApplicable) {
				return nil, fmt.Errorf("%w: credit request no longer approved", ErrInvalidState)
			}

			return nil, err
		}

		switch outcome {
		case ledger.CommitOK:
			return resultFrom(txn), nil
		case ledger.CommitInsufficientBalance:
			return nil, ErrInsufficientBalance
		case ledger.CommitVersionConflict:
			continue
		}
	}

	return nil, ErrContentionExceeded
}

func (e *Engine) backoff(ctx context.Context, attempt int) error {
	if attempt == 0 || e.cfg.RetryBackoff <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(e.cfg.RetryBackoff * time.Duration(attempt)):
		return nil
	}
}

// begin runs the idempotency check. A (nil, nil) return means the caller
// won the in-flight claim and must proceed to mutate.
func (e *Engine) begin(ctx context.Context, key string) (*Result, error) {
	prior, _, err := e.idem.Begin(ctx, key)
	if err != nil {
		if errors.Is(err, guard.ErrInFlight) {
			return nil, ErrOperationInFlight
		}

		return nil, err
	}

	if prior != nil {
		var res Result
		if err := json.Unmarshal(prior, &res); err != nil {
			return nil, fmt.Errorf("decoding stored idempotency result: %w", err)
		}

		return &res, nil
	}

	return nil, nil
}

// record stores the idempotency outcome. It runs before the lock release
// on every success path so a concurrent retry can never reapply a
// completed operation. If the store write fails the in-flight claim is
// kept: immediate retries stay blocked until it expires, which is the
// safe side of the trade.
func (e *Engine) record(ctx context.Context, key string, res *Result) {
	data, err := json.Marshal(res)
	if err == nil {
		err = e.idem.Record(ctx, key, data)
	}

	if err != nil {
		slog.Error("failed to record idempotency result", "error", err, "transaction_id", res.TransactionID)
	}
}

func (e *Engine) abandon(ctx context.Context, key string) {
	if err := e.idem.Abandon(ctx, key); err != nil {
		slog.Error("failed to release idempotency claim", "error", err)
	}
}

func (e *Engine) releaseSpend(ctx context.Context, vendorID uuid.UUID, businessKey string) {
	if err := e.spend.Release(ctx, vendorID, businessKey); err != nil {
		slog.Error("failed to release double-spend marker", "error", err, "vendor_id", vendorID)
	}
}

func (e *Engine) releaseLease(ctx context.Context, lease *lock.Lease) {
	if err := lease.Release(ctx); err != nil {
		slog.Error("failed to release vendor lock", "error", err)
	}
}

func resultFrom(t *ledger.Transaction) *Result {
	return &Result{
		TransactionID: t.ID,
		VendorID:      t.VendorID,
		Type:          t.Type,
		Amount:        t.Amount,
		BalanceBefore: t.BalanceBefore,
		BalanceAfter:  t.BalanceAfter,
		CreatedAt:     t.CreatedAt,
	}
}
