package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fundledger/internal/backend"
	"fundledger/internal/cache"
	"fundledger/internal/config"
	"fundledger/internal/core"
	"fundledger/internal/dispatch"
	"fundledger/internal/importer/excel"
	applog "fundledger/internal/log"
	"fundledger/internal/ports"
	"fundledger/internal/services"
	gsheet "fundledger/internal/sheets/google"
)

// App is one wired budget process.
type App struct {
	Config      *config.Config
	Logger      *applog.Logger
	Backend     backend.Backend
	Messaging   *backend.Messaging
	Cache       *cache.LRUCache[[]core.EnterpriseRecord]
	Enterprises *services.CachedEnterpriseSource
	View        *services.BudgetView
	Import      *services.ImportFlow

	// Source is stamped on every message this process publishes.
	Source string

	cleanups []backend.CleanupFunc
}

// NewApp builds storage, messaging and services from cfg. State changes of
// the view and import flow run through dispatcher; nil runs them inline.
func NewApp(ctx context.Context, cfg *config.Config, logger *applog.Logger, dispatcher dispatch.Dispatcher) (*App, error) {
	if dispatcher == nil {
		dispatcher = dispatch.Immediate{}
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}

	factory := backend.NewFactory(logger)
	res, err := factory.CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}
	app := &App{
		Config:  cfg,
		Logger:  logger,
		Backend: res.Backend,
		Source:  uuid.NewString(),
	}
	app.cleanups = append(app.cleanups, res.Cleanup)

	msg, err := factory.CreateMessaging(ctx, bcfg)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Messaging = msg
	app.cleanups = append(app.cleanups, msg.Cleanup)

	app.Cache = cache.NewLRUCache[[]core.EnterpriseRecord](cfg.CacheSize, cfg.EnterpriseCacheTTL)
	app.Enterprises = services.NewCachedEnterpriseSource(res.Backend, app.Cache, cfg.EnterpriseCacheTTL,
		logger.WithComponent(applog.ComponentCache))

	app.View = services.NewBudgetView(res.Backend, app.Enterprises,
		services.WithPublisher(msg.Publisher),
		services.WithDispatcher(dispatcher),
		services.WithLogger(logger.WithComponent(applog.ComponentBudget)),
		services.WithSource(app.Source))

	importer := excel.New(res.Backend, res.Backend, logger.WithComponent(applog.ComponentImport))
	app.Import = services.NewImportFlow(importer, msg.Publisher, dispatcher, logger.WithComponent(applog.ComponentImport))
	app.Import.SetSource(app.Source)

	return app, nil
}

// FiscalYearLabel is the configured label, defaulting to the current year.
func (a *App) FiscalYearLabel() string {
	if a.Config.FiscalYear != "" {
		return a.Config.FiscalYear
	}
	return core.FormatFiscalYear(time.Now().Year())
}

// ReportPublisher connects to Google Sheets. It fails when no spreadsheet is
// configured.
func (a *App) ReportPublisher(ctx context.Context) (ports.ReportPublisher, error) {
	if !a.Config.PublishingEnabled() {
		return nil, errors.New("report publishing needs GOOGLE_SPREADSHEET_ID")
	}
	w, err := gsheet.NewReportWriter(ctx, gsheet.Options{
		SpreadsheetID:   a.Config.GoogleSpreadsheetID,
		SheetBase:       a.Config.GoogleReportSheetName,
		CredentialsJSON: a.Config.GoogleServiceAccountJSON,
		CredentialsFile: a.Config.GoogleServiceAccountFile,
		OAuthClientJSON: a.Config.GoogleOAuthClientJSON,
		OAuthClientFile: a.Config.GoogleOAuthClientFile,
		OAuthTokenJSON:  a.Config.GoogleOAuthTokenJSON,
		OAuthTokenFile:  a.Config.GoogleOAuthTokenFile,
	}, a.Logger.WithComponent(applog.ComponentSheets))
	if err != nil {
		return nil, fmt.Errorf("connect to Google Sheets: %w", err)
	}
	return w, nil
}

// Close releases resources in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		if a.cleanups[i] == nil {
			continue
		}
		if err := a.cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.cleanups = nil
	return errors.Join(errs...)
}
