// Package postgres implements the durable ledger store. CommitMutation
// runs inside one database transaction: the vendor row is locked with
// SELECT ... FOR UPDATE as the first concurrency layer, the version
// compare-and-swap and the non-negative balance check are enforced in the
// UPDATE itself as the second, and the transaction record is appended in
// the same commit.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/PeymanNr/b2b-charge-service/internal/credit"
	"github.com/PeymanNr/b2b-charge-service/internal/ledger"
	"github.com/PeymanNr/b2b-charge-service/internal/vendors"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) ReadVendor(ctx context.Context, vendorID uuid.UUID) (*vendors.Vendor, error) {
	query := `
		SELECT id, name, balance, daily_limit, version, active, created_at, updated_at
		FROM vendors WHERE id = $1
	`

	return scanVendor(s.pool.QueryRow(ctx, query, vendorID))
}

func scanVendor(row pgx.Row) (*vendors.Vendor, error) {
	var v vendors.Vendor

	var limit decimal.NullDecimal

	err := row.Scan(
		&v.ID, &v.Name, &v.Balance, &limit, &v.Version, &v.Active,
		&v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, vendors.ErrNotFound
		}

		return nil, fmt.Errorf("reading vendor: %w", err)
	}

	if limit.Valid {
		v.DailyLimit = &limit.Decimal
	}

	return &v, nil
}

const transactionColumns = `
	id, seq, vendor_id, type, status, amount, phone_number, credit_request_id,
	balance_before, balance_after, idempotency_key, description, created_at
`

func scanTransaction(row pgx.Row) (*ledger.Transaction, error) {
	var t ledger.Transaction

	var typ, status string

	if err := row.Scan(
		&t.ID, &t.Seq, &t.VendorID, &typ, &status, &t.Amount, &t.PhoneNumber,
		&t.CreditRequestID, &t.BalanceBefore, &t.BalanceAfter,
		&t.IdempotencyKey, &t.Description, &t.CreatedAt,
	); err != nil {
		return nil, err
	}

	t.Type = ledger.Type(typ)
	t.Status = ledger.Status(status)

	return &t, nil
}

func (s *Store) ReadTransactions(ctx context.Context, vendorID uuid.UUID, sinceSeq int64) ([]*ledger.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions WHERE vendor_id = $1 AND seq > $2 ORDER BY seq`

	rows, err := s.pool.Query(ctx, query, vendorID, sinceSeq)
	if err != nil {
		return nil, fmt.Errorf("reading transactions: %w", err)
	}
	defer rows.Close()

	var txs []*ledger.Transaction

	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}

		txs = append(txs, t)
	}

	return txs, rows.Err()
}

func (s *Store) CommitMutation(ctx context.Context, m ledger.Mutation) (ledger.CommitResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning commit: %w", err)
	}
	defer tx.Rollback(ctx)

	// Row lock first: serializes against other committers on this vendor
	// even when the distributed lock is unavailable.
	var version int64

	var balance decimal.Decimal

	err = tx.QueryRow(ctx,
		`SELECT version, balance FROM vendors WHERE id = $1 FOR UPDATE`,
		m.VendorID,
	).Scan(&version, &balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, vendors.ErrNotFound
		}

		return 0, fmt.Errorf("locking vendor row: %w", err)
	}

	if version != m.ExpectedVersion {
		return ledger.CommitVersionConflict, nil
	}

	newBalance := balance.Add(m.Delta)
	if newBalance.IsNegative() {
		return ledger.CommitInsufficientBalance, nil
	}

	tag, err := tx.Exec(ctx, `
		UPDATE vendors
		SET balance = $2, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $3 AND $2 >= 0
	`, m.VendorID, newBalance, m.ExpectedVersion)
	if err != nil {
		return 0, fmt.Errorf("updating balance: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ledger.CommitVersionConflict, nil
	}

	t := m.Transaction

	err = tx.QueryRow(ctx, `
		INSERT INTO transactions (
			id, vendor_id, type, status, amount, phone_number, credit_request_id,
			balance_before, balance_after, idempotency_key, description, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		RETURNING seq, created_at
	`,
		t.ID, t.VendorID, string(t.Type), string(t.Status), t.Amount,
		t.PhoneNumber, t.CreditRequestID, t.BalanceBefore, t.BalanceAfter,
		t.IdempotencyKey, t.Description,
	).Scan(&t.Seq, &t.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("appending transaction: %w", err)
	}

	if m.MarkCreditApplied != nil {
		tag, err := tx.Exec(ctx, `
			UPDATE credit_requests SET status = $2, updated_at = NOW()
			WHERE id = $1 AND status = $3
		`, *m.MarkCreditApplied, string(credit.StatusApplied), string(credit.StatusApproved))
		if err != nil {
			return 0, fmt.Errorf("marking credit applied: %w", err)
		}

		if tag.RowsAffected() == 0 {
			return 0, ledger.ErrCreditNotApplicable
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing mutation: %w", err)
	}

	return ledger.CommitOK, nil
}

func (s *Store) DailySpent(ctx context.Context, vendorID uuid.UUID, at time.Time) (decimal.Decimal, error) {
	day := at.UTC().Truncate(24 * time.Hour)

	query := `
		SELECT COALESCE(SUM(amount), 0) FROM transactions
		WHERE vendor_id = $1 AND type = $2 AND status = $3
		  AND created_at >= $4 AND created_at < $5
	`

	var total decimal.Decimal

	err := s.pool.QueryRow(ctx, query,
		vendorID, string(ledger.TypeChargeSale), string(ledger.StatusSuccess),
		day, day.Add(24*time.Hour),
	).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("summing daily spend: %w", err)
	}

	return total, nil
}
