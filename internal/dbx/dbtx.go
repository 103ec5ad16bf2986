// Package dbx provides the small DB abstractions shared by repositories and
// the connection pool: a query interface satisfied by *sql.DB and *sql.Tx,
// and a helper that finishes a unit of work on an open transaction.
package dbx

import (
	"context"
	"database/sql"
)

// DBTX is the subset of database/sql used by repositories.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Tx is an open transaction that can be finished exactly once.
type Tx interface {
	DBTX
	Commit() error
	Rollback() error
}

// Run executes fn on tx, then commits on success or rolls back on error or
// panic. Panics are rethrown after the rollback. When both fn and the
// rollback fail, fn's error is returned.
//
//	err := dbx.Run(ctx, tx, func(ctx context.Context, q dbx.DBTX) error {
//	    _, err := q.ExecContext(ctx, "UPDATE ...")
//	    return err
//	})
func Run(ctx context.Context, tx Tx, fn func(ctx context.Context, q DBTX) error) (err error) {
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

	err = fn(ctx, tx)
	return err
}

// WithTx begins a transaction on db and hands it to Run.
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, q DBTX) error) error {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}
	return Run(ctx, tx, fn)
}
