package services

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"fundledger/internal/core"
	"fundledger/internal/events"
	"fundledger/internal/ports"
)

type fakeBudgetRepo struct {
	mu      sync.Mutex
	entries map[int][]core.BudgetEntry
	err     error
	calls   atomic.Int32
	years   []int
	updated []core.BudgetEntry

	// when set, GetByFiscalYear signals entered and waits for release
	entered chan struct{}
	release chan struct{}
}

func (r *fakeBudgetRepo) GetByFiscalYear(ctx context.Context, year int) ([]core.BudgetEntry, error) {
	r.calls.Add(1)
	if r.entered != nil {
		r.entered <- struct{}{}
		<-r.release
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.years = append(r.years, year)
	if r.err != nil {
		return nil, r.err
	}
	return append([]core.BudgetEntry(nil), r.entries[year]...), nil
}

func (r *fakeBudgetRepo) GetHierarchy(ctx context.Context, year int) ([]core.BudgetEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return core.OrderHierarchy(r.entries[year]), nil
}

func (r *fakeBudgetRepo) Update(ctx context.Context, entry core.BudgetEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	list := r.entries[entry.FiscalYear]
	for i := range list {
		if list[i].ID == entry.ID {
			list[i] = entry
			r.updated = append(r.updated, entry)
			return nil
		}
	}
	return ports.ErrNotFound
}

func (r *fakeBudgetRepo) setErr(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

type fakeEnterpriseRepo struct {
	mu      sync.Mutex
	records []core.EnterpriseRecord
	err     error
	calls   atomic.Int32
	release chan struct{}
	// buffered; receives once per call without blocking
	entered chan struct{}
}

func (r *fakeEnterpriseRepo) GetAll(ctx context.Context) ([]core.EnterpriseRecord, error) {
	r.calls.Add(1)
	if r.entered != nil {
		select {
		case r.entered <- struct{}{}:
		default:
		}
	}
	if r.release != nil {
		<-r.release
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return append([]core.EnterpriseRecord(nil), r.records...), nil
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []events.Message
	err  error
}

func (p *recordingPublisher) Publish(ctx context.Context, msg events.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

func (p *recordingPublisher) kinds() []events.Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Kind, len(p.msgs))
	for i, m := range p.msgs {
		out[i] = m.Kind
	}
	return out
}

func (p *recordingPublisher) messages() []events.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Message(nil), p.msgs...)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func entry(id int64, year int, number string, fund core.FundType, budgeted, actual string) core.BudgetEntry {
	return core.BudgetEntry{
		ID:            id,
		FiscalYear:    year,
		AccountNumber: number,
		Description:   "Account " + number,
		Fund:          fund,
		Budgeted:      dec(budgeted),
		Actual:        dec(actual),
	}
}

func account(fund core.FundType, budgeted, actual string) core.BudgetAccount {
	return core.NewBudgetAccount(entry(0, 2025, "100", fund, budgeted, actual))
}

func enterprise(name string, citizens int, revenue, expenses string) core.EnterpriseRecord {
	return core.EnterpriseRecord{
		Name:            name,
		CitizenCount:    citizens,
		CurrentRate:     dec("45.00"),
		MonthlyRevenue:  dec(revenue),
		MonthlyExpenses: dec(expenses),
		BreakEvenRate:   dec("40.00"),
	}
}
