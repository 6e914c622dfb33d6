package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"fundledger/internal/dispatch"
	applog "fundledger/internal/log"
)

// Version is set at build time.
var Version = "dev"

type rootOptions struct {
	envFile string
	year    string
	backend string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:     "fundledger",
		Short:   "Municipal fund budget tracking",
		Version: Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "load environment from this file instead of .env")
	rootCmd.PersistentFlags().StringVar(&opts.year, "year", "", `fiscal year label, e.g. "FY 2025" (overrides FISCAL_YEAR)`)
	rootCmd.PersistentFlags().StringVar(&opts.backend, "backend", "", "data backend, memory or sqlite (overrides DATA_BACKEND)")

	rootCmd.AddCommand(
		newRefreshCommand(opts),
		newReportCommand(opts),
		newTreeCommand(opts),
		newImportCommand(opts),
		newUpdateAccountCommand(opts),
		newWatchCommand(opts),
		newSheetsLoginCommand(opts),
	)

	return rootCmd
}

// openApp loads configuration and builds the app for one command run.
func (o *rootOptions) openApp(ctx context.Context, dispatcher dispatch.Dispatcher) (*App, error) {
	if err := LoadEnvFile(o.envFile); err != nil {
		return nil, err
	}

	bootstrap := SetupLogger("info")
	cfg, err := LoadAndValidateConfig(bootstrap)
	if err != nil {
		return nil, err
	}
	if o.year != "" {
		cfg.FiscalYear = o.year
	}
	if o.backend != "" {
		cfg.DataBackend = o.backend
	}

	logger := SetupLogger(cfg.LogLevel)
	app, err := NewApp(ctx, cfg, logger, dispatcher)
	if err != nil {
		logger.Failure(ctx, "Failed to start", err)
		return nil, fmt.Errorf("start: %w", err)
	}
	return app, nil
}

func closeApp(app *App) {
	if err := app.Close(); err != nil {
		app.Logger.Warn("Cleanup failed", applog.FieldError, err)
	}
}
