/*
main.go - Application entry point

PURPOSE:
  Command-line front end for the capacity engine. Serves the HTTP API and
  answers one-off availability and feasibility questions from the shell.

COMMANDS:
  serve                                   Run the HTTP API
  migrate                                 Apply database migrations
  availability <user> --start --end       Per-day capacity breakdown
  can-handle <user> --start --end --hours Single-user feasibility
  team-check --users a,b --start --end --hours [--strategy]

CONFIGURATION:
  capacity.yaml in the working or home directory, or --config. Flags given
  on the command line override the file.

EXAMPLES:
  capacity serve --port 3000
  capacity --dsn ":memory:" availability alice --start 2025-03-10 --end 2025-03-14
  capacity --db-driver postgres --dsn postgres://localhost/capacity migrate

SEE ALSO:
  - internal/config: file format and defaults
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/warp/capacity-engine/api"
	"github.com/warp/capacity-engine/capacity"
	"github.com/warp/capacity-engine/internal/config"
	"github.com/warp/capacity-engine/internal/logging"
	"github.com/warp/capacity-engine/metrics"
)

// App holds the application dependencies
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	store     api.Store
	migrator  func(context.Context) error
	closeFunc func()
	engine    *capacity.Engine
	ctx       context.Context
}

var (
	configPath string
	app        *App
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "capacity",
		Short:        "Capacity engine - can this person take on more work?",
		Long:         `Computes per-day availability from capacity profiles, exceptions and committed tasks, and checks whether users can absorb new work.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp(cmd.Flags())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app == nil {
				return
			}
			if app.closeFunc != nil {
				app.closeFunc()
			}
			if app.logger != nil {
				app.logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to capacity.yaml")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("db-driver", "", "Database driver (sqlite, postgres)")
	rootCmd.PersistentFlags().String("dsn", "", "Database path or connection string")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(availabilityCmd())
	rootCmd.AddCommand(canHandleCmd())
	rootCmd.AddCommand(teamCheckCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initApp sets up config, logger, store and engine
func initApp(flags *pflag.FlagSet) error {
	app = &App{ctx: context.Background()}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := applyFlagOverrides(cfg, flags); err != nil {
		return err
	}
	app.cfg = cfg

	app.logger, err = logging.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.logger.Debug("Configuration loaded",
		zap.String("driver", cfg.Database.Driver),
		zap.Duration("cache_ttl", cfg.Engine.CacheTTL),
		zap.Int("recurring_exceptions", len(cfg.RecurringExceptions)))

	app.store, app.migrator, app.closeFunc, err = openStore(app.ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Database.Driver, err)
	}

	opts, err := cfg.EngineOptions()
	if err != nil {
		return err
	}
	opts = append(opts, capacity.WithLogger(app.logger), capacity.WithMetrics(metrics.Default))
	app.engine = capacity.NewEngine(capacity.StoresFrom(app.store), opts...)
	return nil
}

// applyFlagOverrides copies explicitly set flags over the file config.
func applyFlagOverrides(cfg *config.Config, flags *pflag.FlagSet) error {
	var err error
	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "log-level":
			cfg.Log.Level = f.Value.String()
		case "db-driver":
			cfg.Database.Driver = f.Value.String()
		case "dsn":
			cfg.Database.DSN = f.Value.String()
		case "port":
			cfg.Server.Port, err = strconv.Atoi(f.Value.String())
		}
	})
	if err != nil {
		return fmt.Errorf("invalid --port: %w", err)
	}
	return config.Validate(cfg)
}
