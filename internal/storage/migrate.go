package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// runMigrations applies the embedded schema for the dialect. The migration
// driver takes ownership of db and closes it.
func runMigrations(db *sql.DB, d dialect) error {
	var (
		driver database.Driver
		err    error
	)
	switch d.name {
	case sqliteDialect.name:
		driver, err = sqlite.WithInstance(db, &sqlite.Config{})
	case postgresDialect.name:
		driver, err = migratepgx.WithInstance(db, &migratepgx.Config{})
	default:
		return fmt.Errorf("no migrations for backend %q", d.name)
	}
	if err != nil {
		db.Close()
		return fmt.Errorf("create %s migration driver: %w", d.name, err)
	}

	src, err := iofs.New(migrationsFS, "migrations/"+d.name)
	if err != nil {
		driver.Close()
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, d.name, driver)
	if err != nil {
		src.Close()
		driver.Close()
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
