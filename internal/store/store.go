// Package store is the Model Store Gateway (spec §4.1): typed CRUD and
// query access for every entity in the data model, backed directly by
// pgx — the teacher's sqlc-generated internal/db package is not part of
// this module, so queries here are hand-written SQL with manual scanning,
// kept in the same per-entity-file shape as the teacher's pkg/*/store.go.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dnscp/dnscp/internal/apperrors"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, letting every query
// method run either directly against the pool or inside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides database operations for every entity owned by C1.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool returns the underlying connection pool for read-only callers that
// don't need transactional scope (it satisfies DBTX directly).
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// WithTx runs fn inside a single database transaction, committing on a nil
// return and rolling back otherwise. Every C1 mutation that touches more
// than one table goes through this (spec §4.1 "Every mutation runs inside
// a store transaction").
func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.KindStoreUnavailable, "beginning transaction", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return apperrors.Wrap(apperrors.KindStoreUnavailable, "committing transaction", err)
	}
	return nil
}

// Begin opens a transaction the caller commits or rolls back itself. Used
// by the Projection Engine, which must hold the store transaction open
// across the write/reload/verify steps and only commit once the resolver
// has accepted the new configuration (spec §4.5 step 7).
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStoreUnavailable, "beginning transaction", err)
	}
	return tx, nil
}

// Postgres error codes this package distinguishes (see
// https://www.postgresql.org/docs/current/errcodes-appendix.html).
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// mapErr translates a pgx/postgres error into the typed taxonomy C1 is
// required to return (spec §4.1 "Failure").
func mapErr(err error, entity, field string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NotFound(entity, field)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return apperrors.Conflict(field, "already exists")
		case pgForeignKeyViolation:
			return apperrors.Referential(field, entity)
		}
	}
	return apperrors.Wrap(apperrors.KindStoreUnavailable, fmt.Sprintf("querying %s", entity), err)
}
