package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Togather-Foundation/agenda/internal/config"
	"github.com/Togather-Foundation/agenda/internal/storage"
)

func newMigrateCommand(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
		Long: `Manage the schema of the configured database (DATABASE_DRIVER).

Examples:
  # Apply all pending migrations
  server migrate up

  # Roll back the most recent migration
  server migrate down --steps 1`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(global)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			logger := config.NewLogger(cfg.Logging)

			if err := storage.MigrateUp(cfg.Database, logger); err != nil {
				return err
			}
			logger.Info().Str("driver", cfg.Database.Driver).Msg("migrations applied")
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps <= 0 {
				return fmt.Errorf("--steps must be positive, got %d", steps)
			}
			cfg, err := loadConfig(global)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			logger := config.NewLogger(cfg.Logging)

			if err := storage.MigrateDown(cfg.Database, steps, logger); err != nil {
				return err
			}
			logger.Info().Int("steps", steps).Msg("migrations rolled back")
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", steps)
			return nil
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	cmd.AddCommand(down)

	return cmd
}
