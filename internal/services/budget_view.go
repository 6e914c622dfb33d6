package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"fundledger/internal/core"
	"fundledger/internal/dispatch"
	"fundledger/internal/events"
	applog "fundledger/internal/log"
	"fundledger/internal/ports"
)

// BudgetView holds the budget state shown for one fiscal year and keeps it
// in step with the repositories. State changes are applied through the
// dispatcher; reads are safe from any goroutine.
type BudgetView struct {
	budgets     ports.BudgetRepository
	enterprises EnterpriseSource
	publisher   events.Publisher
	dispatcher  dispatch.Dispatcher
	logger      *applog.Logger
	source      string
	now         func() time.Time

	busy atomic.Bool

	mu        sync.RWMutex
	snapshot  core.BudgetSnapshot
	saves     uint64 // bumped by every applied SaveAccount
	errMsg    string
	observers map[int]func(core.BudgetSnapshot)
	nextObs   int
}

// refreshAttempts bounds how often Refresh reloads after its data was
// overtaken by a concurrent SaveAccount.
const refreshAttempts = 3

// BudgetViewOption configures a BudgetView.
type BudgetViewOption func(*BudgetView)

func WithPublisher(p events.Publisher) BudgetViewOption {
	return func(v *BudgetView) { v.publisher = p }
}

func WithDispatcher(d dispatch.Dispatcher) BudgetViewOption {
	return func(v *BudgetView) { v.dispatcher = d }
}

func WithLogger(l *applog.Logger) BudgetViewOption {
	return func(v *BudgetView) { v.logger = l }
}

// WithSource sets the id stamped on published messages.
func WithSource(id string) BudgetViewOption {
	return func(v *BudgetView) { v.source = id }
}

func WithClock(now func() time.Time) BudgetViewOption {
	return func(v *BudgetView) { v.now = now }
}

func NewBudgetView(budgets ports.BudgetRepository, enterprises EnterpriseSource, opts ...BudgetViewOption) *BudgetView {
	v := &BudgetView{
		budgets:     budgets,
		enterprises: enterprises,
		publisher:   events.Discard,
		dispatcher:  dispatch.Immediate{},
		logger:      applog.Discard(),
		source:      uuid.NewString(),
		now:         time.Now,
		observers:   make(map[int]func(core.BudgetSnapshot)),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Refresh reloads budget entries and enterprises for the fiscal year named
// by label and recomputes every aggregate. A call made while another refresh
// is running returns nil without doing anything. On failure the previous
// snapshot is kept and ErrorMessage reports the problem.
func (v *BudgetView) Refresh(ctx context.Context, label string) error {
	if !v.busy.CompareAndSwap(false, true) {
		v.logger.DebugContext(ctx, "Refresh already in progress, skipping")
		return nil
	}
	defer v.busy.Store(false)

	start := time.Now()
	year := core.ParseFiscalYear(label, v.now())
	fetchCtx := context.WithoutCancel(ctx)

	var snap core.BudgetSnapshot
	for attempt := 1; ; attempt++ {
		saves := v.saveCount()

		entries, err := v.budgets.GetByFiscalYear(fetchCtx, year)
		if err != nil {
			return v.fail(ctx, year, fmt.Errorf("get budget entries for %d: %w", year, err))
		}

		records, err := v.enterprises.Enterprises(fetchCtx)
		if err != nil {
			return v.fail(ctx, year, err)
		}

		snap = BuildSnapshot(year, entries, records)
		snap.RefreshedAt = v.now()
		if v.apply(snap, saves) {
			break
		}
		if attempt == refreshAttempts {
			v.logger.WarnContext(ctx, "Refresh kept overtaken by account saves, keeping current data",
				applog.FieldFiscalYear, year)
			return nil
		}
		v.logger.DebugContext(ctx, "Account saved during refresh, reloading",
			applog.FieldFiscalYear, year)
	}

	if err := v.publisher.Publish(ctx, events.NewDataRefreshed(v.source, year)); err != nil {
		v.logger.WarnContext(ctx, "Failed to publish refresh notification",
			applog.FieldFiscalYear, year,
			applog.FieldError, err)
	}

	v.logger.InfoContext(ctx, "Budget refreshed",
		applog.FieldFiscalYear, year,
		"accounts", len(snap.Accounts),
		"enterprises", len(snap.Enterprises),
		applog.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

// RefreshAsync runs Refresh on a new goroutine and delivers its result.
func (v *BudgetView) RefreshAsync(ctx context.Context, label string) <-chan error {
	out := make(chan error, 1)
	go func() {
		out <- v.Refresh(ctx, label)
		close(out)
	}()
	return out
}

// SaveAccount validates an edited account, writes it back and recomputes the
// aggregates of the current snapshot.
func (v *BudgetView) SaveAccount(ctx context.Context, account core.BudgetAccount) error {
	entry := account.Entry()
	if err := entry.Validate(); err != nil {
		v.setError("Invalid account: " + err.Error())
		return err
	}
	if err := v.budgets.Update(context.WithoutCancel(ctx), entry); err != nil {
		err = fmt.Errorf("update account %d: %w", entry.ID, err)
		v.setError("Failed to save account: " + err.Error())
		v.logger.Failure(ctx, "Account update failed", err, applog.NewFields().
			WithAccount(entry.ID, entry.AccountNumber, entry.FiscalYear).ToSlice()...)
		return err
	}

	v.dispatcher.Dispatch(func() {
		v.mu.Lock()
		snap := v.snapshot
		accounts := make([]core.BudgetAccount, len(snap.Accounts))
		copy(accounts, snap.Accounts)
		for i := range accounts {
			if accounts[i].ID == entry.ID {
				accounts[i] = core.NewBudgetAccount(entry)
			}
		}
		snap.Accounts = accounts
		snap.Totals = ComputeTotals(accounts)
		snap.Distribution = ComputeDistribution(accounts)
		snap.Comparison = ComputeComparison(accounts)
		v.snapshot = snap
		v.saves++
		v.errMsg = ""
		observers := v.observerList()
		v.mu.Unlock()

		for _, fn := range observers {
			fn(snap)
		}
	})

	if err := v.publisher.Publish(ctx, events.NewBudgetUpdated(v.source, entry.FiscalYear, entry.ID)); err != nil {
		v.logger.WarnContext(ctx, "Failed to publish budget update",
			applog.FieldAccountID, entry.ID,
			applog.FieldError, err)
	}

	v.logger.InfoContext(ctx, "Account saved", applog.NewFields().
		WithOperation(applog.OpUpdate).
		WithAccount(entry.ID, entry.AccountNumber, entry.FiscalYear).ToSlice()...)
	return nil
}

// Hierarchy returns the account tree for the fiscal year named by label.
func (v *BudgetView) Hierarchy(ctx context.Context, label string) ([]*core.BudgetNode, error) {
	year := core.ParseFiscalYear(label, v.now())
	entries, err := v.budgets.GetHierarchy(context.WithoutCancel(ctx), year)
	if err != nil {
		return nil, fmt.Errorf("get hierarchy for %d: %w", year, err)
	}
	return core.BuildTree(entries), nil
}

// OpenEnterprise asks listeners to navigate to the named enterprise.
func (v *BudgetView) OpenEnterprise(ctx context.Context, name string) error {
	snap := v.Snapshot()
	for _, e := range snap.Enterprises {
		if e.Name == name {
			msg := events.NewNavigationRequest(v.source, "enterprise", map[string]string{
				"name":        name,
				"fiscal_year": core.FormatFiscalYear(snap.FiscalYear),
			})
			return v.publisher.Publish(ctx, msg)
		}
	}
	return fmt.Errorf("enterprise %q: %w", name, ports.ErrNotFound)
}

// Subscribe registers fn to receive every applied snapshot.
func (v *BudgetView) Subscribe(fn func(core.BudgetSnapshot)) (unsubscribe func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.nextObs++
	id := v.nextObs
	v.observers[id] = fn
	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		delete(v.observers, id)
	}
}

func (v *BudgetView) Snapshot() core.BudgetSnapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.snapshot
}

// ErrorMessage is the user-facing message of the last failure, or empty.
func (v *BudgetView) ErrorMessage() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.errMsg
}

func (v *BudgetView) IsLoading() bool {
	return v.busy.Load()
}

// Source is the id stamped on messages this view publishes.
func (v *BudgetView) Source() string {
	return v.source
}

func (v *BudgetView) saveCount() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.saves
}

// apply installs snap unless an account was saved after the data behind it
// was read. It reports whether snap was installed.
func (v *BudgetView) apply(snap core.BudgetSnapshot, saves uint64) bool {
	applied := false
	v.dispatcher.Dispatch(func() {
		v.mu.Lock()
		if v.saves != saves {
			v.mu.Unlock()
			return
		}
		applied = true
		v.snapshot = snap
		v.errMsg = ""
		observers := v.observerList()
		v.mu.Unlock()

		for _, fn := range observers {
			fn(snap)
		}
	})
	return applied
}

func (v *BudgetView) fail(ctx context.Context, year int, err error) error {
	v.setError("Failed to load budget data: " + err.Error())
	v.logger.Failure(ctx, "Budget refresh failed", err, applog.FieldFiscalYear, year)
	return err
}

func (v *BudgetView) setError(msg string) {
	v.dispatcher.Dispatch(func() {
		v.mu.Lock()
		v.errMsg = msg
		v.mu.Unlock()
	})
}

// observerList copies the observers in registration order. Callers hold mu.
func (v *BudgetView) observerList() []func(core.BudgetSnapshot) {
	out := make([]func(core.BudgetSnapshot), 0, len(v.observers))
	for id := 1; id <= v.nextObs; id++ {
		if fn, ok := v.observers[id]; ok {
			out = append(out, fn)
		}
	}
	return out
}
