package sqlite

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrateUp applies all pending migrations to the database file at path.
func MigrateUp(path string, logger zerolog.Logger) error {
	m, err := newMigrator(path)
	if err != nil {
		return err
	}
	defer closeMigrator(m, logger)

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// MigrateDown rolls back the given number of migrations.
func MigrateDown(path string, steps int, logger zerolog.Logger) error {
	if steps <= 0 {
		return fmt.Errorf("migrate down: steps must be > 0")
	}
	m, err := newMigrator(path)
	if err != nil {
		return err
	}
	defer closeMigrator(m, logger)

	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

// newMigrator opens its own connection: the migrate driver closes whatever
// database it is handed.
func newMigrator(path string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("init migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, "sqlite3://"+path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("init migrator: %w", err)
	}
	return m, nil
}

func closeMigrator(m *migrate.Migrate, logger zerolog.Logger) {
	sourceErr, dbErr := m.Close()
	if sourceErr != nil {
		logger.Warn().Err(sourceErr).Msg("failed to close migration source")
	}
	if dbErr != nil {
		logger.Warn().Err(dbErr).Msg("failed to close migration database")
	}
}
