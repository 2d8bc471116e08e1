// Package cli provides the command-line interface for the dividend recovery tool.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"dividend-recovery/internal/config"
	"dividend-recovery/internal/logging"
	"dividend-recovery/internal/marketdata"
	"dividend-recovery/internal/store"
	"dividend-recovery/pkg/utils"
)

// Version information
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
)

// annotationConfigOptional marks commands that still run when the config fails to load.
const annotationConfigOptional = "config-optional"

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	// Set when the config failed to load and defaults are in use.
	configErr error

	source marketdata.Source
	cache  *store.CachedSource
	store  store.HistoryStore
	now    func() time.Time
}

func newApp() *App {
	return &App{
		Config: config.Default(),
		Logger: zerolog.Nop(),
		now:    time.Now,
	}
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(newApp())
}

// Execute runs the CLI with ctx. The history cache is released however the
// command exits; cobra skips post-run hooks once RunE fails.
func Execute(ctx context.Context) error {
	app := newApp()
	return run(ctx, app, newRootCmd(app))
}

func run(ctx context.Context, app *App, cmd *cobra.Command) (err error) {
	defer func() {
		if cerr := app.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return cmd.ExecuteContext(ctx)
}

func newRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "divrec",
		Short: "Dividend recovery - how fast do prices win back a dividend",
		Long: `divrec measures how many trading days it takes a stock's closing price to
recover a fraction of each dividend it pays, relative to the pre-dividend close,
and averages those days per calendar year.

Day counts are 0-indexed from the first close in each ex-date window.
A target that is never reached inside the window is shown as N/A and left out
of the averages.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setup(cmd)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/dividend-recovery)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newAnalyzeCmd(app))
	rootCmd.AddCommand(newEventCmd(app))
	rootCmd.AddCommand(newFetchCmd(app))
	rootCmd.AddCommand(newCacheCmd(app))
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// setup loads configuration and builds the logger before a command runs.
func (a *App) setup(cmd *cobra.Command) error {
	dir, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(dir)
	if err != nil {
		if cmd.Annotations[annotationConfigOptional] != "true" {
			return err
		}
		a.configErr = err
	} else {
		a.Config = cfg
	}

	logCfg := a.Config.LogConfig()
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		logCfg.Level = "debug"
	}
	a.Logger = logging.NewLoggerWithConfig(logCfg)
	a.Logger.Debug().Str("config_dir", a.Config.Dir).Str("command", cmd.CommandPath()).Msg("Configuration loaded")
	return nil
}

// Source returns the configured market data source, wrapped in the history cache
// when caching is enabled. It is built on first use.
func (a *App) Source() (marketdata.Source, error) {
	if a.source != nil {
		return a.source, nil
	}

	var upstream marketdata.Source
	switch a.Config.Data.Source {
	case marketdata.SourceCSV:
		upstream = marketdata.NewCSVSource(a.Config.Data.CSVDir, &a.Logger)
	case marketdata.SourceYahoo:
		retry := utils.DefaultRetryConfig()
		retry.MaxAttempts = a.Config.Data.MaxAttempts
		upstream = marketdata.NewYahooSource(marketdata.YahooConfig{
			Timeout:           a.Config.Data.RequestTimeout,
			RequestsPerSecond: a.Config.Data.RequestsPerSecond,
			Retry:             retry,
			Logger:            &a.Logger,
		})
	default:
		return nil, fmt.Errorf("unknown data source: %s", a.Config.Data.Source)
	}
	a.source = upstream

	if !a.Config.Data.CacheEnabled {
		return a.source, nil
	}
	hs, err := a.HistoryStore()
	if err != nil {
		a.Logger.Warn().Err(err).Msg("History cache unavailable, fetching without it")
		return a.source, nil
	}
	a.cache = store.NewCachedSource(upstream, hs, store.CacheConfig{
		TTL:        a.Config.Data.CacheTTL,
		ServeStale: true,
		Logger:     &a.Logger,
		Now:        a.now,
	})
	a.source = a.cache
	return a.source, nil
}

// HistoryStore opens the SQLite history cache on first use.
func (a *App) HistoryStore() (store.HistoryStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	s, err := store.NewSQLiteStore(a.Config.Data.CachePath)
	if err != nil {
		return nil, err
	}
	a.Logger.Debug().Str("path", a.Config.Data.CachePath).Msg("SQLite store initialized")
	a.store = s
	return s, nil
}

// Close releases the history cache.
func (a *App) Close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	a.cache = nil
	a.source = nil
	return err
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Annotations: map[string]string{annotationConfigOptional: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("divrec v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}
