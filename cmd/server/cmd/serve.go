package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Togather-Foundation/agenda/internal/api"
	"github.com/Togather-Foundation/agenda/internal/config"
	"github.com/Togather-Foundation/agenda/internal/metrics"
	"github.com/Togather-Foundation/agenda/internal/storage"
	"github.com/Togather-Foundation/agenda/internal/telemetry"
)

const (
	openTimeout     = 10 * time.Second
	shutdownTimeout = 10 * time.Second
)

// serveOptions override the loaded configuration.
type serveOptions struct {
	host        string
	port        int
	skipMigrate bool
}

func (o serveOptions) apply(cfg *config.Config) {
	if o.host != "" {
		cfg.Server.Host = o.host
	}
	if o.port != 0 {
		cfg.Server.Port = o.port
	}
}

func newServeCommand(global *globalOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Agenda HTTP server",
		Long: `Start the Agenda HTTP server and begin accepting requests.

The server will:
- Load configuration from environment variables (or --config file if provided)
- Apply pending database migrations unless --skip-migrate is set
- Serve the HTML pages, health probes and Prometheus metrics
- Handle graceful shutdown on SIGINT/SIGTERM

Examples:
  # Start with default configuration (from env vars)
  server serve

  # Start on a specific host and port
  server serve --host 127.0.0.1 --port 9090

  # Start with debug logging
  server serve --log-level debug

  # Start with custom config file
  server serve --config /etc/agenda/config.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(global)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			opts.apply(&cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg, !opts.skipMigrate)
		},
	}

	cmd.Flags().StringVar(&opts.host, "host", "", "server host address (default: 0.0.0.0)")
	cmd.Flags().IntVar(&opts.port, "port", 0, "server port (default: 8080)")
	cmd.Flags().BoolVar(&opts.skipMigrate, "skip-migrate", false, "do not apply database migrations on startup")

	return cmd
}

// runServer serves until ctx is cancelled, then drains in-flight requests.
func runServer(ctx context.Context, cfg config.Config, migrate bool) error {
	logger := config.NewLogger(cfg.Logging)
	logger.Info().
		Str("version", Version).
		Str("environment", cfg.Environment).
		Str("driver", cfg.Database.Driver).
		Msg("starting agenda server")

	metrics.Init(Version, GitCommit, BuildDate)

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown error")
		}
	}()

	if migrate {
		if err := storage.MigrateUp(cfg.Database, logger); err != nil {
			return fmt.Errorf("database migration failed: %w", err)
		}
		logger.Info().Msg("database migrations applied")
	}

	openCtx, cancel := context.WithTimeout(ctx, openTimeout)
	store, err := storage.Open(openCtx, cfg.Database)
	cancel()
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("database close error")
		}
	}()

	stats := store.StatsCollector()
	if err := metrics.Registry.Register(stats); err != nil {
		logger.Warn().Err(err).Msg("database stats collector not registered")
	} else {
		defer metrics.Registry.Unregister(stats)
	}

	handler, err := api.NewRouter(api.Dependencies{
		Config: cfg,
		Store:  store,
		Logger: logger,
		Build:  api.BuildInfo{Version: Version, GitCommit: GitCommit, BuildDate: BuildDate},
	})
	if err != nil {
		return fmt.Errorf("router: %w", err)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           handler,
		ReadTimeout:       10 * time.Second, // Total time to read request
		WriteTimeout:      30 * time.Second, // Total time to write response
		ReadHeaderTimeout: 5 * time.Second,  // Time to read headers
		MaxHeaderBytes:    1 << 20,          // 1 MB max header size
	}

	return serve(ctx, server, logger)
}

// serve runs server until ctx is done or the listener fails.
func serve(ctx context.Context, server *http.Server, logger zerolog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		logger.Info().Msg("server stopped")
		return nil
	})

	return g.Wait()
}
