// Package postgres implements storage.Repository backed by PostgreSQL.
//
// The records table uses a composite primary key (store, id) that mirrors
// the key space used by the BBolt and in-memory backends. Envelope fields
// are stored as individual columns to avoid JSON serialisation overhead
// and to leverage native BYTEA storage for nonce and ciphertext data.
//
// This backend exists for deployments that sync device credential state
// through a shared database; single-device installs should prefer BBolt.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jmcleod/gatekey/storage"
)

// Store implements storage.Repository backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Repository = (*Store)(nil)

// NewRepository returns a Repository backed by the given pgx connection pool.
func NewRepository(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// NewRepositoryFromDSN creates a connection pool from a DSN string, ensures
// the schema exists, and returns a new Repository.
func NewRepositoryFromDSN(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return NewRepository(pool), nil
}

// Pool returns the underlying connection pool.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Close closes the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Put(store, id string, envelope *storage.Envelope) error {
	_, err := s.pool.Exec(context.Background(),
		`INSERT INTO records (store, id, ver, scheme, nonce, ciphertext)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (store, id)
		 DO UPDATE SET ver = $3, scheme = $4, nonce = $5, ciphertext = $6`,
		store, id, envelope.Ver, envelope.Scheme, envelope.Nonce, envelope.Ciphertext)
	return err
}

func (s *Store) Get(store, id string) (*storage.Envelope, error) {
	var env storage.Envelope
	err := s.pool.QueryRow(context.Background(),
		`SELECT ver, scheme, nonce, ciphertext
		 FROM records WHERE store = $1 AND id = $2`,
		store, id).Scan(&env.Ver, &env.Scheme, &env.Nonce, &env.Ciphertext)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFoundError(context.Background(), s.pool, store, id)
	}
	if err != nil {
		return nil, err
	}
	return &env, nil
}

func (s *Store) Delete(store, id string) error {
	tag, err := s.pool.Exec(context.Background(),
		`DELETE FROM records WHERE store = $1 AND id = $2`, store, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFoundError(context.Background(), s.pool, store, id)
	}
	return nil
}

// querier abstracts both *pgxpool.Pool and pgx.Tx for shared queries.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// notFoundError determines whether a missing record is due to a missing
// store namespace or a missing record within an existing namespace. This
// preserves the BBolt semantic of distinguishing ErrStoreNotFound from
// ErrNotFound.
func notFoundError(ctx context.Context, q querier, store, id string) error {
	var exists bool
	_ = q.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM records WHERE store = $1 LIMIT 1)`,
		store).Scan(&exists)
	if !exists {
		return fmt.Errorf("%s: %w", store, storage.ErrStoreNotFound)
	}
	return fmt.Errorf("%s: %w", id, storage.ErrNotFound)
}
