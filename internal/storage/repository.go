package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"finledger/internal/services"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn runs ledger queries against a database handle or an open transaction.
type conn struct {
	q querier
	d dialect
}

func (c conn) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := c.q.ExecContext(ctx, c.d.rebind(query), args...)
	return res, classify(err)
}

func (c conn) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := c.q.QueryContext(ctx, c.d.rebind(query), args...)
	return rows, classify(err)
}

func (c conn) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.q.QueryRowContext(ctx, c.d.rebind(query), args...)
}

// Repository is the durable ledger store. It serves unlocked reads directly
// and runs every write inside InTx.
type Repository struct {
	conn
	db      *sql.DB
	closers []func()
}

var _ services.Store = (*Repository)(nil)

func newRepository(db *sql.DB, d dialect) *Repository {
	return &Repository{conn: conn{q: db, d: d}, db: db}
}

// Backend names the SQL dialect in use.
func (r *Repository) Backend() string {
	return r.d.name
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	var err error
	if r.db != nil {
		err = r.db.Close()
	}
	for _, c := range r.closers {
		c()
	}
	return err
}

// InTx runs fn inside one database transaction. The transaction commits when
// fn returns nil and rolls back otherwise, so a failure at any step leaves no
// partial state behind.
func (r *Repository) InTx(ctx context.Context, fn func(ctx context.Context, tx services.Tx) error) (err error) {
	sqlTx, err := r.db.BeginTx(ctx, r.d.txOptions)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", classify(err))
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				slog.WarnContext(ctx, "Rollback failed", "error", rbErr, "backend", r.d.name)
			}
		}
	}()

	if err = fn(ctx, &ledgerTx{conn: conn{q: sqlTx, d: r.d}}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", classify(err))
	}
	return nil
}

// ledgerTx exposes the locked write primitives of one open transaction.
type ledgerTx struct {
	conn
}

var _ services.Tx = (*ledgerTx)(nil)
