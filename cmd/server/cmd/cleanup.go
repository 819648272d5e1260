package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Togather-Foundation/agenda/internal/auth"
	"github.com/Togather-Foundation/agenda/internal/config"
	"github.com/Togather-Foundation/agenda/internal/metrics"
	"github.com/Togather-Foundation/agenda/internal/session"
	"github.com/Togather-Foundation/agenda/internal/storage"
)

func newCleanupCommand(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired sessions",
		Long: `Remove session rows whose expiry has passed.

Expired sessions are already ignored on lookup; this command only
reclaims the storage. Run it periodically, for example from cron:

  server cleanup`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(global)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			logger := config.NewLogger(cfg.Logging)

			n, err := purgeExpiredSessions(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			logger.Info().Int64("deleted", n).Msg("expired sessions purged")
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d expired session(s)\n", n)
			return nil
		},
	}
}

// purgeExpiredSessions deletes sessions that have already expired.
func purgeExpiredSessions(ctx context.Context, cfg config.Config, logger zerolog.Logger) (int64, error) {
	keys, err := auth.DeriveKeys([]byte(cfg.Session.Secret))
	if err != nil {
		return 0, fmt.Errorf("derive keys: %w", err)
	}

	store, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		return 0, fmt.Errorf("database connection failed: %w", err)
	}
	defer func() { _ = store.Close() }()

	sessions := session.NewManager(store.Sessions(), session.Options{
		CookieName: cfg.Session.CookieName,
		TTL:        cfg.Session.TTL,
		Secure:     cfg.Session.Secure,
		HashKey:    keys.SessionHash,
		BlockKey:   keys.SessionBlock,
	}, logger)

	n, err := sessions.DeleteExpired(ctx)
	if err != nil {
		return 0, err
	}
	metrics.SessionsPurged.Add(float64(n))
	return n, nil
}
