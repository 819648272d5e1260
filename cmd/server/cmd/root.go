package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Togather-Foundation/agenda/internal/config"
)

// globalOptions hold the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

// newRootCommand builds the command tree. Commands are constructed fresh on
// every call so flag state never leaks between executions.
func newRootCommand() *cobra.Command {
	opts := &globalOptions{}
	serveCmd := newServeCommand(opts)

	rootCmd := &cobra.Command{
		Use:   "server",
		Short: "Agenda server - multi-user event scheduling",
		Long: `Agenda is a small web application where people register, sign in and
keep a private list of dated events.

The server supports:
- Account registration and password sign-in
- Cookie sessions with flash messages
- Creating, editing and deleting events, visible only to their owner
- SQLite or PostgreSQL storage with embedded migrations`,
		SilenceErrors: true,
		SilenceUsage:  true,
		// Run the serve command by default if no subcommand is specified
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveCmd.RunE(cmd, args)
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file path (optional, uses env vars by default)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error) (default: info)")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format (json, console) (default: json)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(newMigrateCommand(opts))
	rootCmd.AddCommand(newCleanupCommand(opts))
	rootCmd.AddCommand(newHealthcheckCommand())
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the optional config file and environment, then applies the
// logging flags on top.
func loadConfig(opts *globalOptions) (config.Config, error) {
	cfg, err := config.LoadFile(opts.configPath)
	if err != nil {
		return config.Config{}, err
	}

	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.Logging.Format = opts.logFormat
	}

	return cfg, nil
}
