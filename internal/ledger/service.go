package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service exposes read-side views over the transaction log: per-vendor
// history with filters and credit/sale totals.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

type HistoryFilter struct {
	Type      *Type
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
}

// History returns the vendor's transactions, newest first.
func (s *Service) History(ctx context.Context, vendorID uuid.UUID, filter HistoryFilter) ([]*Transaction, error) {
	txs, err := s.store.ReadTransactions(ctx, vendorID, 0)
	if err != nil {
		return nil, err
	}

	out := make([]*Transaction, 0, len(txs))

	for i := len(txs) - 1; i >= 0; i-- {
		t := txs[i]

		if filter.Type != nil && t.Type != *filter.Type {
			continue
		}

		if filter.StartDate != nil && t.CreatedAt.Before(*filter.StartDate) {
			continue
		}

		if filter.EndDate != nil && t.CreatedAt.After(*filter.EndDate) {
			continue
		}

		out = append(out, t)

		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}

	return out, nil
}

type Summary struct {
	TotalCredits decimal.Decimal
	CreditCount  int
	TotalSales   decimal.Decimal
	SaleCount    int
	Net          decimal.Decimal
}

// Summary totals the vendor's successful credits and charge sales.
func (s *Service) Summary(ctx context.Context, vendorID uuid.UUID) (*Summary, error) {
	txs, err := s.store.ReadTransactions(ctx, vendorID, 0)
	if err != nil {
		return nil, err
	}

	sum := &Summary{
		TotalCredits: decimal.Zero,
		TotalSales:   decimal.Zero,
	}

	for _, t := range txs {
		if t.Status != StatusSuccess {
			continue
		}

		switch t.Type {
		case TypeCredit:
			sum.TotalCredits = sum.TotalCredits.Add(t.Amount)
			sum.CreditCount++
		case TypeChargeSale:
			sum.TotalSales = sum.TotalSales.Add(t.Amount)
			sum.SaleCount++
		}
	}

	sum.Net = sum.TotalCredits.Sub(sum.TotalSales)

	return sum, nil
}
