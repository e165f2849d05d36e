package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqlitePragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"

// OpenSQLite opens (creating if needed) the database file at dbPath and
// applies pending migrations. Every transaction it starts is BEGIN IMMEDIATE,
// so concurrent writers queue on the database lock instead of failing at
// commit time.
func OpenSQLite(ctx context.Context, dbPath string) (*Repository, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	// separate connection for migrations so closing the driver leaves the
	// main pool intact
	migrateDB, err := sql.Open("sqlite", dbPath+"?"+sqlitePragmas)
	if err != nil {
		return nil, fmt.Errorf("open migration database: %w", err)
	}
	if err := runMigrations(migrateDB, sqliteDialect); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath+"?"+sqlitePragmas+"&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return newRepository(db, sqliteDialect), nil
}
