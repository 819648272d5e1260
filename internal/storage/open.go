package storage

import (
	"context"
	"fmt"

	"github.com/Togather-Foundation/agenda/internal/config"
	"github.com/Togather-Foundation/agenda/internal/storage/postgres"
	"github.com/Togather-Foundation/agenda/internal/storage/sqlite"
	"github.com/rs/zerolog"
)

// Open connects to the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Repository, error) {
	switch cfg.Driver {
	case config.DriverSQLite, "":
		return sqlite.Open(ctx, cfg.Path, cfg.MaxConnections, cfg.MaxIdle)
	case config.DriverPostgres:
		return postgres.Open(ctx, cfg.URL, cfg.MaxConnections)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// MigrateUp applies the embedded migrations of the configured backend.
func MigrateUp(cfg config.DatabaseConfig, logger zerolog.Logger) error {
	switch cfg.Driver {
	case config.DriverSQLite, "":
		return sqlite.MigrateUp(cfg.Path, logger)
	case config.DriverPostgres:
		return postgres.MigrateUp(cfg.URL, logger)
	default:
		return fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// MigrateDown rolls back steps migrations of the configured backend.
func MigrateDown(cfg config.DatabaseConfig, steps int, logger zerolog.Logger) error {
	switch cfg.Driver {
	case config.DriverSQLite, "":
		return sqlite.MigrateDown(cfg.Path, steps, logger)
	case config.DriverPostgres:
		return postgres.MigrateDown(cfg.URL, steps, logger)
	default:
		return fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
