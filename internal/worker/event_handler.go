package worker

import (
	"context"
	"time"

	"fundledger/internal/core"
	"fundledger/internal/events"
	applog "fundledger/internal/log"
)

// Invalidator drops cached enterprise data.
type Invalidator interface {
	Invalidate()
}

// EventHandler keeps a view current with changes announced by other
// components or processes. Messages stamped with the view's own source are
// ignored, as are refresh notifications, so two processes never bounce
// refreshes off each other.
type EventHandler struct {
	view        Refresher
	invalidator Invalidator
	self        string
	label       string
	now         func() time.Time
	logger      *applog.Logger
}

func NewEventHandler(view Refresher, invalidator Invalidator, self, label string, logger *applog.Logger) *EventHandler {
	if logger == nil {
		logger = applog.Discard()
	}
	return &EventHandler{
		view:        view,
		invalidator: invalidator,
		self:        self,
		label:       label,
		now:         time.Now,
		logger:      logger.WithComponent(applog.ComponentWorker),
	}
}

// Register subscribes the handler to every kind on bus.
func (h *EventHandler) Register(bus *events.Bus) (unsubscribe func()) {
	return bus.SubscribeAll(h.Handle)
}

// Handle applies one message.
func (h *EventHandler) Handle(ctx context.Context, msg events.Message) error {
	if msg.Source != "" && msg.Source == h.self {
		return nil
	}

	logger := h.logger.With(
		applog.FieldMessageKind, msg.Kind,
		applog.FieldMessageID, msg.ID)

	switch msg.Kind {
	case events.KindEnterpriseChanged:
		if h.invalidator != nil {
			h.invalidator.Invalidate()
		}
		logger.InfoContext(ctx, "Enterprises changed, refreshing")
		return h.view.Refresh(ctx, h.label)

	case events.KindBudgetUpdated:
		year := core.ParseFiscalYear(h.label, h.now())
		if msg.FiscalYear != 0 && msg.FiscalYear != year {
			logger.DebugContext(ctx, "Budget update for another year, ignoring",
				applog.FieldFiscalYear, msg.FiscalYear)
			return nil
		}
		logger.InfoContext(ctx, "Budget updated elsewhere, refreshing",
			applog.FieldFiscalYear, year)
		return h.view.Refresh(ctx, h.label)

	default:
		logger.DebugContext(ctx, "Message ignored")
		return nil
	}
}
