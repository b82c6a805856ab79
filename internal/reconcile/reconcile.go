// Package reconcile replays a vendor's transaction log to recompute the
// balance it implies, compares that against the stored balance, and
// classifies the discrepancy. Scans are lock-free: the vendor version is
// snapshotted before and after reading the log, and a scan that raced a
// live mutation is discarded and retried instead of reporting false drift.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/PeymanNr/b2b-charge-service/internal/ledger"
)

// ErrVendorBusy is returned when the vendor kept mutating across every
// scan attempt. The caller should retry later; no discrepancy is implied.
var ErrVendorBusy = errors.New("vendor mutated during every reconciliation scan")

type Classification string

const (
	Verified         Classification = "VERIFIED"
	MinorDiscrepancy Classification = "MINOR_DISCREPANCY"
	Critical         Classification = "CRITICAL"
)

// Report is the structured outcome of one vendor reconciliation.
// Discrepancy is stored minus computed.
type Report struct {
	VendorID        uuid.UUID       `json:"vendor_id"`
	StoredBalance   decimal.Decimal `json:"stored_balance"`
	ComputedBalance decimal.Decimal `json:"computed_balance"`
	Discrepancy     decimal.Decimal `json:"discrepancy"`
	Classification  Classification  `json:"classification"`
	Transactions    int             `json:"transactions"`
	Fixed           bool            `json:"fixed"`
	CheckedAt       time.Time       `json:"checked_at"`
}

type Engine struct {
	store          ledger.Store
	minorThreshold decimal.Decimal
	maxScans       int
}

func New(store ledger.Store, minorThreshold decimal.Decimal) *Engine {
	return &Engine{store: store, minorThreshold: minorThreshold, maxScans: 5}
}

// Reconcile recomputes the vendor's balance from its log. With fix set,
// a MINOR_DISCREPANCY is corrected by committing an ADJUSTMENT record
// that realigns the stored balance with the computed one; the commit
// reuses the version snapshotted during the scan, so a concurrent live
// mutation fails the fix and triggers a rescan. CRITICAL findings are
// never auto-fixed.
func (e *Engine) Reconcile(ctx context.Context, vendorID uuid.UUID, fix bool) (*Report, error) {
	for attempt := 0; attempt < e.maxScans; attempt++ {
		before, err := e.store.ReadVendor(ctx, vendorID)
		if err != nil {
			return nil, err
		}

		txs, err := e.store.ReadTransactions(ctx, vendorID, 0)
		if err != nil {
			return nil, err
		}

		after, err := e.store.ReadVendor(ctx, vendorID)
		if err != nil {
			return nil, err
		}

		if before.Version != after.Version {
			continue
		}

		computed := Fold(txs)
		report := &Report{
			VendorID:        vendorID,
			StoredBalance:   before.Balance,
			ComputedBalance: computed,
			Discrepancy:     before.Balance.Sub(computed),
			Transactions:    len(txs),
			CheckedAt:       time.Now().UTC(),
		}
		report.Classification = e.classify(report.Discrepancy)

		if report.Classification == Verified {
			return report, nil
		}

		slog.Warn("balance discrepancy detected",
			"vendor_id", vendorID,
			"stored", report.StoredBalance,
			"computed", report.ComputedBalance,
			"classification", report.Classification,
		)

		if !fix || report.Classification != MinorDiscrepancy {
			return report, nil
		}

		fixed, err := e.applyFix(ctx, before.Version, report)
		if err != nil {
			return nil, err
		}

		if !fixed {
			// Lost the version race to a live mutation; rescan.
			continue
		}

		report.Fixed = true

		return report, nil
	}

	return nil, ErrVendorBusy
}

// Fold replays the log from a genesis balance of zero. Only the signed
// amounts of settled entries count; ADJUSTMENT records realign the stored
// balance rather than move value and fold to zero.
func Fold(txs []*ledger.Transaction) decimal.Decimal {
	total := decimal.Zero

	for _, t := range txs {
		if t.Status == ledger.StatusFailed {
			continue
		}

		total = total.Add(t.SignedAmount())
	}

	return total
}

func (e *Engine) classify(discrepancy decimal.Decimal) Classification {
	switch {
	case discrepancy.IsZero():
		return Verified
	case discrepancy.Abs().LessThanOrEqual(e.minorThreshold):
		return MinorDiscrepancy
	default:
		return Critical
	}
}

func (e *Engine) applyFix(ctx context.Context, expectedVersion int64, report *Report) (bool, error) {
	delta := report.ComputedBalance.Sub(report.StoredBalance)

	txn := &ledger.Transaction{
		ID:            uuid.New(),
		VendorID:      report.VendorID,
		Type:          ledger.TypeAdjustment,
		Status:        ledger.StatusSuccess,
		Amount:        delta.Abs(),
		BalanceBefore: report.StoredBalance,
		BalanceAfter:  report.ComputedBalance,
		Description:   "reconciliation balance correction",
	}

	outcome, err := e.store.CommitMutation(ctx, ledger.Mutation{
		VendorID:        report.VendorID,
		ExpectedVersion: expectedVersion,
		Delta:           delta,
		Transaction:     txn,
	})
	if err != nil {
		return false, fmt.Errorf("committing balance correction: %w", err)
	}

	switch outcome {
	case ledger.CommitOK:
		slog.Info("stored balance corrected",
			"vendor_id", report.VendorID,
			"from", report.StoredBalance,
			"to", report.ComputedBalance,
		)

		return true, nil
	case ledger.CommitVersionConflict:
		return false, nil
	default:
		return false, fmt.Errorf("unexpected correction outcome %d", outcome)
	}
}

// VendorLister enumerates the vendors a sweep covers.
type VendorLister interface {
	ListVendorIDs(ctx context.Context) ([]uuid.UUID, error)
}

// Summary aggregates a reconcile-all sweep.
type Summary struct {
	Total      int             `json:"total"`
	Verified   int             `json:"verified"`
	Minor      int             `json:"minor"`
	Critical   int             `json:"critical"`
	Skipped    int             `json:"skipped"`
	Fixed      int             `json:"fixed"`
	TotalDrift decimal.Decimal `json:"total_drift"`
	Reports    []*Report       `json:"reports"`
}

// ReconcileAll scans every vendor with bounded parallelism. Vendors that
// stayed busy across all scan attempts are counted as skipped, not failed.
func (e *Engine) ReconcileAll(ctx context.Context, lister VendorLister, fix bool, concurrency int) (*Summary, error) {
	ids, err := lister.ListVendorIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing vendors: %w", err)
	}

	if concurrency <= 0 {
		concurrency = 4
	}

	reports := make([]*Report, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			report, err := e.Reconcile(gctx, id, fix)
			if err != nil {
				if errors.Is(err, ErrVendorBusy) {
					return nil // counted as skipped below
				}

				return err
			}

			reports[i] = report

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := &Summary{Total: len(ids), TotalDrift: decimal.Zero}

	for _, r := range reports {
		if r == nil {
			summary.Skipped++
			continue
		}

		summary.Reports = append(summary.Reports, r)

		switch r.Classification {
		case Verified:
			summary.Verified++
		case MinorDiscrepancy:
			summary.Minor++
		case Critical:
			summary.Critical++
		}

		if r.Fixed {
			summary.Fixed++
		}

		summary.TotalDrift = summary.TotalDrift.Add(r.Discrepancy.Abs())
	}

	return summary, nil
}
