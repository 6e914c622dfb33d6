package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"fundledger/internal/cache"
	"fundledger/internal/core"
	"fundledger/internal/dispatch"
	apphttp "fundledger/internal/http"
	applog "fundledger/internal/log"
	"fundledger/internal/services"
	"fundledger/internal/worker"
)

func newWatchCommand(opts *rootOptions) *cobra.Command {
	var httpAddr string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the fiscal year loaded and follow changes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loop := dispatch.NewLoop(64)
			app, err := opts.openApp(cmd.Context(), loop)
			if err != nil {
				return err
			}
			defer closeApp(app)
			if httpAddr != "" {
				app.Config.HTTPAddr = httpAddr
			}

			ctx, stop := ShutdownContext(cmd.Context(), app.Logger)
			defer stop()
			return runWatch(ctx, app, loop)
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http", "", "serve the status API on this address (overrides HTTP_ADDR)")
	return cmd
}

// runWatch owns the dispatch loop, the refresh schedule, cache cleanup, the
// status API and the broker consumer until ctx ends.
func runWatch(ctx context.Context, app *App, loop *dispatch.Loop) error {
	logger := app.Logger.WithComponent(applog.ComponentWorker)
	label := app.FiscalYearLabel()

	manager := cache.NewManager(app.Logger.WithComponent(applog.ComponentCache).Logger)
	manager.Register(app.Cache)
	manager.StartCleanup(app.Config.CacheCleanupInterval)
	defer manager.Stop()

	unsubscribe := app.View.Subscribe(func(s core.BudgetSnapshot) {
		logger.Info("Snapshot applied",
			applog.FieldFiscalYear, s.FiscalYear,
			"accounts", len(s.Accounts),
			"over_budget", len(services.OverBudget(s.Accounts)))
	})
	defer unsubscribe()

	handler := worker.NewEventHandler(app.View, app.Enterprises, app.Source, label, app.Logger)
	defer handler.Register(app.Messaging.Bus)()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		loop.Run(ctx)
		return nil
	})

	scheduler := worker.NewRefreshScheduler(app.View, label, app.Config.RefreshInterval, app.Logger)
	g.Go(func() error { return scheduler.Run(ctx) })

	if addr := app.Config.HTTPAddr; addr != "" {
		srv := apphttp.NewServer(apphttp.Options{
			Addr:              addr,
			Label:             label,
			RequestsPerMinute: app.Config.HTTPRateLimit,
			CacheSize:         app.Cache.Size,
		}, app.View, app.Import, app.Logger)
		g.Go(func() error { return srv.Run(ctx) })
	}

	if consume := app.Messaging.Consume; consume != nil {
		bus := app.Messaging.Bus
		g.Go(func() error {
			if err := consume(ctx, bus.Publish); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	logger.InfoContext(ctx, "Watching budget", applog.FieldFiscalYear, label)
	err := g.Wait()
	logger.Info("Watch stopped")
	return err
}
