package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/PeymanNr/b2b-charge-service/internal/vendors"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const vendorColumns = `id, name, balance, daily_limit, version, active, created_at, updated_at`

func scanVendor(row pgx.Row) (*vendors.Vendor, error) {
	var v vendors.Vendor

	var limit decimal.NullDecimal

	if err := row.Scan(
		&v.ID, &v.Name, &v.Balance, &limit, &v.Version, &v.Active,
		&v.CreatedAt, &v.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if limit.Valid {
		v.DailyLimit = &limit.Decimal
	}

	return &v, nil
}

func (s *Store) Create(ctx context.Context, v *vendors.Vendor) error {
	query := `
		INSERT INTO vendors (id, name, balance, daily_limit, version, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 1, $5, NOW(), NOW())
		RETURNING version, created_at, updated_at
	`

	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}

	var limit decimal.NullDecimal
	if v.DailyLimit != nil {
		limit = decimal.NewNullDecimal(*v.DailyLimit)
	}

	err := s.pool.QueryRow(ctx, query, v.ID, v.Name, v.Balance, limit, v.Active).
		Scan(&v.Version, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating vendor: %w", err)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*vendors.Vendor, error) {
	query := `SELECT ` + vendorColumns + ` FROM vendors WHERE id = $1`

	v, err := scanVendor(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, vendors.ErrNotFound
		}

		return nil, fmt.Errorf("getting vendor: %w", err)
	}

	return v, nil
}

func (s *Store) ListVendorIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM vendors ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("listing vendors: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning vendor id: %w", err)
		}

		ids = append(ids, id)
	}

	return ids, rows.Err()
}
