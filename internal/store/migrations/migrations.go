package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed files/*.sql
var migrationFiles embed.FS

// CheckStatus verifies that the database schema is at the latest version.
// Returns an error describing any version mismatch or a dirty state.
func CheckStatus(db *sql.DB) error {
	m, err := newMigrate(db)
	if err != nil {
		return fmt.Errorf("creating migrate instance: %w", err)
	}
	// m is not closed here: closing it would close the db connection,
	// which the caller owns.

	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return fmt.Errorf("database has no schema version (needs migration)")
		}
		return fmt.Errorf("reading database version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database is in dirty state at version %d (a migration failed previously)", version)
	}

	sourceDriver, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return fmt.Errorf("reading migration files: %w", err)
	}
	defer sourceDriver.Close()

	latest, err := latestVersion(sourceDriver)
	if err != nil {
		return fmt.Errorf("determining latest version: %w", err)
	}

	switch {
	case version < latest:
		return fmt.Errorf("database is at version %d but latest is %d", version, latest)
	case version > latest:
		return fmt.Errorf("database version %d is ahead of binary version %d (binary needs update)", version, latest)
	}
	return nil
}

// Up runs all pending migrations to bring the database to the latest version.
func Up(db *sql.DB) error {
	m, err := newMigrate(db)
	if err != nil {
		return fmt.Errorf("creating migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	sourceDriver, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return nil, fmt.Errorf("creating source driver: %w", err)
	}

	dbDriver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		sourceDriver.Close()
		return nil, fmt.Errorf("creating database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", dbDriver)
	if err != nil {
		sourceDriver.Close()
		return nil, fmt.Errorf("creating migrate instance: %w", err)
	}
	return m, nil
}

// latestVersion returns the highest version available in the source.
func latestVersion(src source.Driver) (uint, error) {
	version, err := src.First()
	if err != nil {
		return 0, err
	}

	for {
		next, err := src.Next(version)
		if err != nil {
			// Any error from Next means the end was reached.
			return version, nil
		}
		version = next
	}
}
