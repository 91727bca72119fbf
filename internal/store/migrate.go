package store

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationsFS embed.FS

// MigrationStatus holds information about database migration state.
type MigrationStatus struct {
	Version uint
	Dirty   bool
}

// Migrate applies all pending migrations for the DB's dialect.
func (d *DB) Migrate() (MigrationStatus, error) {
	m, err := d.migrator()
	if err != nil {
		return MigrationStatus{}, err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return MigrationStatus{}, fmt.Errorf("apply migrations: %w", err)
	}
	return status(m)
}

// SchemaVersion reports the applied schema version without changing it.
func (d *DB) SchemaVersion() (MigrationStatus, error) {
	m, err := d.migrator()
	if err != nil {
		return MigrationStatus{}, err
	}
	return status(m)
}

func status(m *migrate.Migrate) (MigrationStatus, error) {
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return MigrationStatus{}, fmt.Errorf("read migration version: %w", err)
	}
	return MigrationStatus{Version: version, Dirty: dirty}, nil
}

// migrator builds a migrate instance over the shared *sql.DB. It is never
// closed: closing the driver would close d.Client as well.
func (d *DB) migrator() (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations/"+string(d.Dialect))
	if err != nil {
		return nil, fmt.Errorf("load migrations: %w", err)
	}

	var driver database.Driver
	switch d.Dialect {
	case Postgres:
		driver, err = migratepgx.WithInstance(d.Client, &migratepgx.Config{})
	default:
		driver, err = sqlite3.WithInstance(d.Client, &sqlite3.Config{})
	}
	if err != nil {
		return nil, fmt.Errorf("migration driver: %w", err)
	}

	return migrate.NewWithInstance("iofs", source, string(d.Dialect), driver)
}
