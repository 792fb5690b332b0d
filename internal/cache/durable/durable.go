// Package durable implements the durable tier (C3): generic cache-key
// storage backed by Postgres, plus the typed customer and mapping tables
// that are the system's source of truth. Queries are raw SQL executed
// through pgx, following the pool's own query style rather than a
// generated query layer.
package durable

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pool is the subset of *pgxpool.Pool's surface this package needs. Tests
// substitute github.com/pashagolub/pgxmock against the same interface.
type pool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
}

// Store wraps a pgxpool.Pool for both the generic storage_cache table used
// by the unified storage engine (C4) and the typed customer/mapping tables
// used directly by the domain store (C5).
type Store struct {
	pool pool
}

// New wraps pool.
func New(p *pgxpool.Pool) *Store {
	return &Store{pool: p}
}

// NewWithPool builds a Store against any implementation of the pool
// interface, primarily for tests that substitute pgxmock.
func NewWithPool(p pool) *Store {
	return &Store{pool: p}
}

// Get returns the raw JSON bytes stored under key, if present and not
// expired. An expired row is treated as absent but is not deleted inline
// (the periodic sweep reclaims it).
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	var expiresAt *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT data, expires_at FROM storage_cache WHERE cache_key = $1`,
		key,
	).Scan(&data, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("durable: get %q: %w", key, err)
	}
	if expiresAt != nil && expiresAt.Before(time.Now()) {
		return nil, false, nil
	}
	return data, true, nil
}

// Set upserts key with value and an optional expiry. ttl == 0 means no expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expiresAt = &t
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO storage_cache (cache_key, data, expires_at, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (cache_key) DO UPDATE
		 SET data = EXCLUDED.data, expires_at = EXCLUDED.expires_at, updated_at = now()`,
		key, value, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("durable: set %q: %w", key, err)
	}
	return nil
}

// Delete removes key, if present.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM storage_cache WHERE cache_key = $1`, key)
	if err != nil {
		return fmt.Errorf("durable: delete %q: %w", key, err)
	}
	return nil
}

// Sweep deletes every expired cache row and returns the count removed.
// Run periodically by the worker-mode sweep scheduler (spec §4.6/§C).
func (s *Store) Sweep(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM storage_cache WHERE expires_at IS NOT NULL AND expires_at < now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("durable: sweep: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Ping verifies the pool can reach Postgres right now.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
