// Package worker runs the background loops of a long-lived budget process.
package worker

import (
	"context"
	"time"

	applog "fundledger/internal/log"
)

// Refresher reloads a budget view for a fiscal-year label.
type Refresher interface {
	Refresh(ctx context.Context, label string) error
}

// RefreshScheduler refreshes a view on a fixed interval. A tick that lands
// while a refresh is still running is absorbed by the view's busy flag.
type RefreshScheduler struct {
	view     Refresher
	label    string
	interval time.Duration
	logger   *applog.Logger
}

func NewRefreshScheduler(view Refresher, label string, interval time.Duration, logger *applog.Logger) *RefreshScheduler {
	if logger == nil {
		logger = applog.Discard()
	}
	return &RefreshScheduler{
		view:     view,
		label:    label,
		interval: interval,
		logger:   logger.WithComponent(applog.ComponentScheduler),
	}
}

// Run refreshes once immediately, then on every tick until ctx is done.
func (s *RefreshScheduler) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Refresh scheduler started",
		"interval", s.interval.String(),
		applog.FieldFiscalYear, s.label)

	s.refresh(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "Refresh scheduler stopped")
			return nil
		case <-ticker.C:
			s.refresh(ctx)
		}
	}
}

func (s *RefreshScheduler) refresh(ctx context.Context) {
	if err := s.view.Refresh(ctx, s.label); err != nil {
		// the view keeps its last snapshot; the next tick tries again
		s.logger.Failure(ctx, "Scheduled refresh failed", err)
	}
}
