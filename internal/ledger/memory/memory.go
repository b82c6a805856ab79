// Package memory implements the ledger store, the credit-request
// repository, and vendor listing in process memory. It enforces the same
// contract as the Postgres store (version compare-and-swap, non-negative
// balance, seq-ordered append-only log) and backs tests and local runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/PeymanNr/b2b-charge-service/internal/credit"
	"github.com/PeymanNr/b2b-charge-service/internal/ledger"
	"github.com/PeymanNr/b2b-charge-service/internal/vendors"
)

type Store struct {
	mu      sync.Mutex
	vendors map[uuid.UUID]*vendors.Vendor
	log     map[uuid.UUID][]*ledger.Transaction
	credits map[uuid.UUID]*credit.Request
	seq     int64
}

func New() *Store {
	return &Store{
		vendors: make(map[uuid.UUID]*vendors.Vendor),
		log:     make(map[uuid.UUID][]*ledger.Transaction),
		credits: make(map[uuid.UUID]*credit.Request),
	}
}

// PutVendor registers a vendor. Version starts at 1 when unset.
func (s *Store) PutVendor(v *vendors.Vendor) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}

	if v.Version == 0 {
		v.Version = 1
	}

	now := time.Now()
	v.CreatedAt = now
	v.UpdatedAt = now

	s.vendors[v.ID] = v
}

// OverwriteBalance replaces the stored balance without touching the
// version or the log. It exists so reconciliation tests can inject drift.
func (s *Store) OverwriteBalance(vendorID uuid.UUID, balance decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.vendors[vendorID]; ok {
		v.Balance = balance
	}
}

// AppendTransaction appends a pre-built record to the log, stamping seq.
// Intended for seeding test fixtures; the mutation path is CommitMutation.
func (s *Store) AppendTransaction(t *ledger.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	t.Seq = s.seq

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	s.log[t.VendorID] = append(s.log[t.VendorID], t)
}

func cloneVendor(v *vendors.Vendor) *vendors.Vendor {
	out := *v

	if v.DailyLimit != nil {
		limit := *v.DailyLimit
		out.DailyLimit = &limit
	}

	return &out
}

func (s *Store) ReadVendor(_ context.Context, vendorID uuid.UUID) (*vendors.Vendor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vendors[vendorID]
	if !ok {
		return nil, vendors.ErrNotFound
	}

	return cloneVendor(v), nil
}

func (s *Store) ReadTransactions(_ context.Context, vendorID uuid.UUID, sinceSeq int64) ([]*ledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*ledger.Transaction

	for _, t := range s.log[vendorID] {
		if t.Seq > sinceSeq {
			c := *t
			out = append(out, &c)
		}
	}

	return out, nil
}

func (s *Store) CommitMutation(_ context.Context, m ledger.Mutation) (ledger.CommitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vendors[m.VendorID]
	if !ok {
		return 0, vendors.ErrNotFound
	}

	if v.Version != m.ExpectedVersion {
		return ledger.CommitVersionConflict, nil
	}

	newBalance := v.Balance.Add(m.Delta)
	if newBalance.IsNegative() {
		return ledger.CommitInsufficientBalance, nil
	}

	if m.MarkCreditApplied != nil {
		req, ok := s.credits[*m.MarkCreditApplied]
		if !ok || req.Status != credit.StatusApproved {
			return 0, ledger.ErrCreditNotApplicable
		}

		req.Status = credit.StatusApplied
		req.UpdatedAt = time.Now()
	}

	v.Balance = newBalance
	v.Version++
	v.UpdatedAt = time.Now()

	s.seq++
	m.Transaction.Seq = s.seq
	m.Transaction.CreatedAt = time.Now().UTC()

	s.log[m.VendorID] = append(s.log[m.VendorID], m.Transaction)

	return ledger.CommitOK, nil
}

func (s *Store) DailySpent(_ context.Context, vendorID uuid.UUID, at time.Time) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	day := at.UTC().Truncate(24 * time.Hour)
	next := day.Add(24 * time.Hour)
	total := decimal.Zero

	for _, t := range s.log[vendorID] {
		if t.Type != ledger.TypeChargeSale || t.Status != ledger.StatusSuccess {
			continue
		}

		if t.CreatedAt.Before(day) || !t.CreatedAt.Before(next) {
			continue
		}

		total = total.Add(t.Amount)
	}

	return total, nil
}

func (s *Store) ListVendorIDs(_ context.Context) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]uuid.UUID, 0, len(s.vendors))
	for id := range s.vendors {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	return ids, nil
}

// credit.Repository implementation, guarded by the same mutex so the
// APPROVED -> APPLIED transition in CommitMutation stays atomic with the
// balance change.

func (s *Store) Create(_ context.Context, req *credit.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	req.CreatedAt = now
	req.UpdatedAt = now

	c := *req
	s.credits[req.ID] = &c

	return nil
}

func (s *Store) GetByID(_ context.Context, id uuid.UUID) (*credit.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.credits[id]
	if !ok {
		return nil, credit.ErrNotFound
	}

	c := *req

	return &c, nil
}

func (s *Store) Transition(_ context.Context, id uuid.UUID, from, to credit.Status, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.credits[id]
	if !ok || req.Status != from {
		return false, nil
	}

	req.Status = to
	req.RejectionReason = reason
	req.UpdatedAt = time.Now()

	return true, nil
}

func (s *Store) ListByVendor(_ context.Context, vendorID uuid.UUID) ([]*credit.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*credit.Request

	for _, req := range s.credits {
		if req.VendorID == vendorID {
			c := *req
			out = append(out, &c)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	return out, nil
}
