package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"finledger/internal/core"
)

// classify maps driver errors onto the ledger error classes. Lock contention
// and serialization failures become core.ErrConcurrency so callers can retry;
// unique violations become core.ErrConflict.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		switch {
		case code&0xff == sqlite3.SQLITE_BUSY, code&0xff == sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%w: %v", core.ErrConcurrency, err)
		case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE, code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %v", core.ErrConflict, err)
		}
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return fmt.Errorf("%w: %v", core.ErrConcurrency, err)
		case "23505":
			return fmt.Errorf("%w: %v", core.ErrConflict, err)
		}
	}
	return err
}

// notFound turns sql.ErrNoRows into a not-found error for the named entity.
func notFound(err error, entity string, id int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.NotFoundf("%s %d", entity, id)
	}
	return classify(err)
}
