package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// MigrationManager applies the embedded schema migrations.
type MigrationManager struct {
	migrate *migrate.Migrate
}

// NewMigrationManager creates a migration manager for the given driver and DSN.
func NewMigrationManager(driver, dsn string) (*MigrationManager, error) {
	var databaseURL string
	switch driver {
	case DriverSQLite:
		path := filepath.ToSlash(dsn)
		if filepath.IsAbs(dsn) && path[0] != '/' {
			path = "/" + path
		}
		databaseURL = "sqlite://" + path
	case DriverPostgres:
		databaseURL = dsn
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	dir, err := fs.Sub(migrationsFS, "migrations/"+driver)
	if err != nil {
		return nil, fmt.Errorf("%w: access migrations: %w", ErrMigration, err)
	}
	src, err := iofs.New(dir, ".")
	if err != nil {
		return nil, fmt.Errorf("%w: create source driver: %w", ErrMigration, err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: create migration instance: %w", ErrMigration, err)
	}
	return &MigrationManager{migrate: m}, nil
}

// Up applies all pending migrations.
func (mm *MigrationManager) Up() error {
	if err := mm.migrate.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%w: apply: %w", ErrMigration, err)
	}
	return nil
}

// Down rolls back every migration.
func (mm *MigrationManager) Down() error {
	if err := mm.migrate.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%w: rollback: %w", ErrMigration, err)
	}
	return nil
}

// Steps applies n migrations; negative n rolls back.
func (mm *MigrationManager) Steps(n int) error {
	if err := mm.migrate.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%w: %d steps: %w", ErrMigration, n, err)
	}
	return nil
}

// Version returns the current schema version and dirty state.
// Version 0 means no migration has been applied.
func (mm *MigrationManager) Version() (version uint, dirty bool, err error) {
	version, dirty, err = mm.migrate.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, fmt.Errorf("%w: version: %w", ErrMigration, err)
	}
	return version, dirty, nil
}

// Close releases the source and database handles.
func (mm *MigrationManager) Close() error {
	srcErr, dbErr := mm.migrate.Close()
	if srcErr != nil {
		return fmt.Errorf("failed to close source: %w", srcErr)
	}
	if dbErr != nil {
		return fmt.Errorf("failed to close database: %w", dbErr)
	}
	return nil
}

// Migrate runs all pending migrations and closes the manager.
func Migrate(driver, dsn string) error {
	mm, err := NewMigrationManager(driver, dsn)
	if err != nil {
		return err
	}
	upErr := mm.Up()
	closeErr := mm.Close()
	return errors.Join(upErr, closeErr)
}

// ApplySchema executes the embedded up migrations directly on db.
// It serves databases the migrate driver cannot reach, such as sqlite ":memory:".
func ApplySchema(ctx context.Context, db *sqlx.DB, driver string) error {
	dir := "migrations/" + driver
	entries, err := fs.ReadDir(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrUnsupportedDriver, driver, err)
	}
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".up.sql") {
			continue
		}
		stmt, err := fs.ReadFile(migrationsFS, dir+"/"+e.Name())
		if err != nil {
			return fmt.Errorf("%w: read %s: %w", ErrMigration, e.Name(), err)
		}
		if _, err := db.ExecContext(ctx, string(stmt)); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrMigration, e.Name(), err)
		}
	}
	return nil
}
