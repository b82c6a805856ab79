// Package postgres implements kv.Store on a Postgres table with expiry
// sweeping, so the guards and the lock manager share the ledger's
// database instead of requiring a separate cache service.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PeymanNr/b2b-charge-service/internal/kv"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func expiresAt(ttl time.Duration) *time.Time {
	if ttl <= 0 {
		return nil
	}

	t := time.Now().UTC().Add(ttl)

	return &t
}

func (s *Store) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	// The conditional upsert claims the key atomically: it succeeds on a
	// fresh insert or when the existing row has expired, and affects zero
	// rows while a live entry holds the key.
	query := `
		INSERT INTO kv_entries (key, value, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at
		WHERE kv_entries.expires_at IS NOT NULL AND kv_entries.expires_at <= NOW()
	`

	tag, err := s.pool.Exec(ctx, query, key, value, expiresAt(ttl))
	if err != nil {
		return false, fmt.Errorf("kv setnx: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	query := `
		INSERT INTO kv_entries (key, value, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at
	`

	if _, err := s.pool.Exec(ctx, query, key, value, expiresAt(ttl)); err != nil {
		return fmt.Errorf("kv set: %w", err)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	query := `
		SELECT value FROM kv_entries
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > NOW())
	`

	var value []byte

	err := s.pool.QueryRow(ctx, query, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, kv.ErrNotFound
		}

		return nil, fmt.Errorf("kv get: %w", err)
	}

	return value, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM kv_entries WHERE key = $1`, key); err != nil {
		return fmt.Errorf("kv delete: %w", err)
	}

	return nil
}

func (s *Store) CompareAndDelete(ctx context.Context, key string, value []byte) (bool, error) {
	query := `
		DELETE FROM kv_entries
		WHERE key = $1 AND value = $2 AND (expires_at IS NULL OR expires_at > NOW())
	`

	tag, err := s.pool.Exec(ctx, query, key, value)
	if err != nil {
		return false, fmt.Errorf("kv compare-and-delete: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// Sweep removes expired rows. Run it periodically; reads already ignore
// expired entries, so sweeping is purely housekeeping.
func (s *Store) Sweep(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM kv_entries WHERE expires_at IS NOT NULL AND expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("kv sweep: %w", err)
	}

	return tag.RowsAffected(), nil
}
