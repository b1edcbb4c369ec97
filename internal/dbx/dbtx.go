// Package dbx holds the database helpers shared by repositories: the DBTX
// interface satisfied by both *sql.DB and *sql.Tx, and transaction runners.
package dbx

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of database/sql used by the repositories.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn inside a transaction. It commits when fn returns nil and
// rolls back on error or panic; panics are rethrown after the rollback.
// Repositories used inside fn must be bound to tx.
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	return fn(ctx, tx)
}

// SQLSTATE codes Postgres uses when a transaction lost a conflict and may
// simply be run again.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// IsTxConflict reports whether err is a serialization failure or a deadlock.
func IsTxConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
}

// WithTxRetry is WithTx that reruns the whole transaction, up to attempts
// times, while it fails with a conflict. fn must not keep state between runs.
func WithTxRetry(ctx context.Context, db *sql.DB, opts *sql.TxOptions, attempts int, fn func(ctx context.Context, tx DBTX) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = WithTx(ctx, db, opts, fn); !IsTxConflict(err) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return err
}
