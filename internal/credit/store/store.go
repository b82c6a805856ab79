package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PeymanNr/b2b-charge-service/internal/credit"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const requestColumns = `id, vendor_id, amount, status, rejection_reason, created_at, updated_at`

func scanRequest(row pgx.Row) (*credit.Request, error) {
	var req credit.Request

	var status, reason string

	if err := row.Scan(
		&req.ID, &req.VendorID, &req.Amount, &status, &reason,
		&req.CreatedAt, &req.UpdatedAt,
	); err != nil {
		return nil, err
	}

	req.Status = credit.Status(status)
	req.RejectionReason = reason

	return &req, nil
}

func (s *Store) Create(ctx context.Context, req *credit.Request) error {
	query := `
		INSERT INTO credit_requests (id, vendor_id, amount, status, rejection_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, '', NOW(), NOW())
		RETURNING created_at, updated_at
	`

	err := s.pool.QueryRow(ctx, query, req.ID, req.VendorID, req.Amount, string(req.Status)).
		Scan(&req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating credit request: %w", err)
	}

	return nil
}

func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*credit.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM credit_requests WHERE id = $1`

	req, err := scanRequest(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, credit.ErrNotFound
		}

		return nil, fmt.Errorf("getting credit request: %w", err)
	}

	return req, nil
}

func (s *Store) Transition(ctx context.Context, id uuid.UUID, from, to credit.Status, reason string) (bool, error) {
	query := `
		UPDATE credit_requests
		SET status = $3, rejection_reason = $4, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`

	tag, err := s.pool.Exec(ctx, query, id, string(from), string(to), reason)
	if err != nil {
		return false, fmt.Errorf("transitioning credit request: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

func (s *Store) ListByVendor(ctx context.Context, vendorID uuid.UUID) ([]*credit.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM credit_requests WHERE vendor_id = $1 ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, vendorID)
	if err != nil {
		return nil, fmt.Errorf("listing credit requests: %w", err)
	}
	defer rows.Close()

	var reqs []*credit.Request

	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning credit request: %w", err)
		}

		reqs = append(reqs, req)
	}

	return reqs, rows.Err()
}
