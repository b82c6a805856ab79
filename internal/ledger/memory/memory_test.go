package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PeymanNr/b2b-charge-service/internal/credit"
	"github.com/PeymanNr/b2b-charge-service/internal/ledger"
	"github.com/PeymanNr/b2b-charge-service/internal/ledger/memory"
	"github.com/PeymanNr/b2b-charge-service/internal/vendors"
)

func seedVendor(s *memory.Store, balance int64) uuid.UUID {
	v := &vendors.Vendor{
		Name:    "test vendor",
		Balance: decimal.NewFromInt(balance),
		Active:  true,
	}
	s.PutVendor(v)

	return v.ID
}

func TestStore_CommitMutation(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	vendorID := seedVendor(s, 1000)

	mutation := func(version int64, delta int64) ledger.Mutation {
		return ledger.Mutation{
			VendorID:        vendorID,
			ExpectedVersion: version,
			Delta:           decimal.NewFromInt(delta),
			Transaction: &ledger.Transaction{
				ID:       uuid.New(),
				VendorID: vendorID,
				Type:     ledger.TypeChargeSale,
				Status:   ledger.StatusSuccess,
				Amount:   decimal.NewFromInt(-delta),
			},
		}
	}

	outcome, err := s.CommitMutation(ctx, mutation(1, -400))
	require.NoError(t, err)
	assert.Equal(t, ledger.CommitOK, outcome)

	v, err := s.ReadVendor(ctx, vendorID)
	require.NoError(t, err)
	assert.True(t, v.Balance.Equal(decimal.NewFromInt(600)))
	assert.Equal(t, int64(2), v.Version)

	// Stale version is refused without side effects.
	outcome, err = s.CommitMutation(ctx, mutation(1, -100))
	require.NoError(t, err)
	assert.Equal(t, ledger.CommitVersionConflict, outcome)

	// Overdraft is refused without side effects.
	outcome, err = s.CommitMutation(ctx, mutation(2, -700))
	require.NoError(t, err)
	assert.Equal(t, ledger.CommitInsufficientBalance, outcome)

	v, err = s.ReadVendor(ctx, vendorID)
	require.NoError(t, err)
	assert.True(t, v.Balance.Equal(decimal.NewFromInt(600)))
	assert.Equal(t, int64(2), v.Version)

	txs, err := s.ReadTransactions(ctx, vendorID, 0)
	require.NoError(t, err)
	assert.Len(t, txs, 1, "refused commits must not append to the log")
}

func TestStore_CommitMutationUnknownVendor(t *testing.T) {
	s := memory.New()

	_, err := s.CommitMutation(context.Background(), ledger.Mutation{
		VendorID:    uuid.New(),
		Transaction: &ledger.Transaction{},
	})
	assert.ErrorIs(t, err, vendors.ErrNotFound)
}

func TestStore_SeqOrder(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	vendorID := seedVendor(s, 0)

	for i := 0; i < 5; i++ {
		outcome, err := s.CommitMutation(ctx, ledger.Mutation{
			VendorID:        vendorID,
			ExpectedVersion: int64(i + 1),
			Delta:           decimal.NewFromInt(10),
			Transaction: &ledger.Transaction{
				ID:       uuid.New(),
				VendorID: vendorID,
				Type:     ledger.TypeCredit,
				Status:   ledger.StatusSuccess,
				Amount:   decimal.NewFromInt(10),
			},
		})
		require.NoError(t, err)
		require.Equal(t, ledger.CommitOK, outcome)
	}

	txs, err := s.ReadTransactions(ctx, vendorID, 0)
	require.NoError(t, err)
	require.Len(t, txs, 5)

	for i := 1; i < len(txs); i++ {
		assert.Greater(t, txs[i].Seq, txs[i-1].Seq)
	}

	// sinceSeq filters already-seen entries.
	rest, err := s.ReadTransactions(ctx, vendorID, txs[2].Seq)
	require.NoError(t, err)
	assert.Len(t, rest, 2)
}

func TestStore_CommitMarksCreditApplied(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	vendorID := seedVendor(s, 0)

	req := &credit.Request{
		ID:       uuid.New(),
		VendorID: vendorID,
		Amount:   decimal.NewFromInt(500),
		Status:   credit.StatusApproved,
	}
	require.NoError(t, s.Create(ctx, req))

	commit := ledger.Mutation{
		VendorID:          vendorID,
		ExpectedVersion:   1,
		Delta:             req.Amount,
		MarkCreditApplied: &req.ID,
		Transaction: &ledger.Transaction{
			ID:              uuid.New(),
			VendorID:        vendorID,
			Type:            ledger.TypeCredit,
			Status:          ledger.StatusSuccess,
			Amount:          req.Amount,
			CreditRequestID: &req.ID,
		},
	}

	outcome, err := s.CommitMutation(ctx, commit)
	require.NoError(t, err)
	assert.Equal(t, ledger.CommitOK, outcome)

	stored, err := s.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, credit.StatusApplied, stored.Status)

	// A second apply of the same request fails atomically: no balance
	// change, no log entry.
	commit.ExpectedVersion = 2
	commit.Transaction = &ledger.Transaction{
		ID:       uuid.New(),
		VendorID: vendorID,
		Type:     ledger.TypeCredit,
		Status:   ledger.StatusSuccess,
		Amount:   req.Amount,
	}

	_, err = s.CommitMutation(ctx, commit)
	assert.ErrorIs(t, err, ledger.ErrCreditNotApplicable)

	v, err := s.ReadVendor(ctx, vendorID)
	require.NoError(t, err)
	assert.True(t, v.Balance.Equal(decimal.NewFromInt(500)))
}

func TestStore_DailySpent(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	vendorID := seedVendor(s, 0)

	now := time.Now().UTC()

	add := func(typ ledger.Type, status ledger.Status, amount int64, at time.Time) {
		s.AppendTransaction(&ledger.Transaction{
			VendorID:  vendorID,
			Type:      typ,
			Status:    status,
			Amount:    decimal.NewFromInt(amount),
			CreatedAt: at,
		})
	}

	add(ledger.TypeChargeSale, ledger.StatusSuccess, 100, now)
	add(ledger.TypeChargeSale, ledger.StatusSuccess, 50, now)
	add(ledger.TypeChargeSale, ledger.StatusFailed, 999, now)
	add(ledger.TypeCredit, ledger.StatusSuccess, 999, now)
	add(ledger.TypeChargeSale, ledger.StatusSuccess, 999, now.Add(-48*time.Hour))

	spent, err := s.DailySpent(ctx, vendorID, now)
	require.NoError(t, err)
	assert.True(t, spent.Equal(decimal.NewFromInt(150)), "got %s", spent)
}

func TestStore_Transition(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	req := &credit.Request{
		ID:       uuid.New(),
		VendorID: uuid.New(),
		Amount:   decimal.NewFromInt(10),
		Status:   credit.StatusPending,
	}
	require.NoError(t, s.Create(ctx, req))

	ok, err := s.Transition(ctx, req.ID, credit.StatusPending, credit.StatusApproved, "")
	require.NoError(t, err)
	assert.True(t, ok)

	// Already approved; the same transition no longer matches.
	ok, err = s.Transition(ctx, req.ID, credit.StatusPending, credit.StatusApproved, "")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Transition(ctx, uuid.New(), credit.StatusPending, credit.StatusApproved, "")
	require.NoError(t, err)
	assert.False(t, ok)
}
