package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"fundledger/internal/core"
	"fundledger/internal/ports"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

var (
	_ ports.BudgetRepository     = (*SQLiteRepository)(nil)
	_ ports.EnterpriseRepository = (*SQLiteRepository)(nil)
	_ ports.BudgetWriter         = (*SQLiteRepository)(nil)
	_ ports.EnterpriseWriter     = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// one writer keeps sqlite from returning SQLITE_BUSY inside transactions
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := Migrate(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	slog.Debug("Budget schema ready", "path", dbPath, "schema_version", version)

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

// SchemaVersion reports the applied budget schema migration.
func (r *SQLiteRepository) SchemaVersion() (uint, error) {
	return Migrate(r.db)
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// GetAll implements ports.EnterpriseRepository
func (r *SQLiteRepository) GetAll(ctx context.Context) ([]core.EnterpriseRecord, error) {
	rows, err := r.queries.ListEnterprises(ctx)
	if err != nil {
		return nil, fmt.Errorf("list enterprises: %w", err)
	}
	out := make([]core.EnterpriseRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := enterpriseFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// GetByFiscalYear implements ports.BudgetRepository
func (r *SQLiteRepository) GetByFiscalYear(ctx context.Context, year int) ([]core.BudgetEntry, error) {
	rows, err := r.queries.ListBudgetEntriesByYear(ctx, int64(year))
	if err != nil {
		return nil, fmt.Errorf("list budget entries for %d: %w", year, err)
	}
	out := make([]core.BudgetEntry, 0, len(rows))
	for _, row := range rows {
		e, err := entryFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// GetHierarchy implements ports.BudgetRepository
func (r *SQLiteRepository) GetHierarchy(ctx context.Context, year int) ([]core.BudgetEntry, error) {
	entries, err := r.GetByFiscalYear(ctx, year)
	if err != nil {
		return nil, err
	}
	return core.OrderHierarchy(entries), nil
}

// Update implements ports.BudgetRepository
func (r *SQLiteRepository) Update(ctx context.Context, e core.BudgetEntry) error {
	var parent sql.NullInt64
	if e.ParentID != nil {
		parent = sql.NullInt64{Int64: *e.ParentID, Valid: true}
	}
	n, err := r.queries.UpdateBudgetEntry(ctx, UpdateBudgetEntryParams{
		AccountNumber: e.AccountNumber,
		Description:   e.Description,
		Fund:          string(e.Fund),
		Budgeted:      e.Budgeted.String(),
		Actual:        e.Actual.String(),
		ParentID:      parent,
		ID:            e.ID,
	})
	if err != nil {
		return fmt.Errorf("update budget entry %d: %w", e.ID, err)
	}
	if n == 0 {
		return ports.ErrNotFound
	}

	slog.InfoContext(ctx, "Budget entry updated",
		"id", e.ID,
		"account_number", e.AccountNumber,
		"fiscal_year", e.FiscalYear)
	return nil
}

// ImportBudget implements ports.BudgetWriter. Lines are upserted by account
// number, then parent links are resolved within the year.
func (r *SQLiteRepository) ImportBudget(ctx context.Context, year int, lines []core.BudgetLine, replace bool) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	if replace {
		if err := q.DeleteBudgetEntriesByYear(ctx, int64(year)); err != nil {
			return 0, fmt.Errorf("delete entries for %d: %w", year, err)
		}
	}

	for _, l := range lines {
		e := l.Entry
		if err := q.UpsertBudgetEntry(ctx, UpsertBudgetEntryParams{
			FiscalYear:    int64(year),
			AccountNumber: e.AccountNumber,
			Description:   e.Description,
			Fund:          string(e.Fund),
			Budgeted:      e.Budgeted.String(),
			Actual:        e.Actual.String(),
		}); err != nil {
			return 0, fmt.Errorf("insert account %s: %w", e.AccountNumber, err)
		}
	}

	for _, l := range lines {
		if l.ParentAccountNumber == "" {
			continue
		}
		if err := q.SetParentByAccountNumber(ctx, SetParentParams{
			ParentAccountNumber: l.ParentAccountNumber,
			FiscalYear:          int64(year),
			AccountNumber:       l.Entry.AccountNumber,
		}); err != nil {
			return 0, fmt.Errorf("link account %s to %s: %w", l.Entry.AccountNumber, l.ParentAccountNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}

	slog.InfoContext(ctx, "Budget lines imported",
		"fiscal_year", year,
		"count", len(lines),
		"replace", replace)
	return len(lines), nil
}

// UpsertEnterprises implements ports.EnterpriseWriter
func (r *SQLiteRepository) UpsertEnterprises(ctx context.Context, records []core.EnterpriseRecord) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	for _, rec := range records {
		if err := q.UpsertEnterprise(ctx, UpsertEnterpriseParams{
			Name:            rec.Name,
			CitizenCount:    int64(rec.CitizenCount),
			CurrentRate:     rec.CurrentRate.String(),
			MonthlyRevenue:  rec.MonthlyRevenue.String(),
			MonthlyExpenses: rec.MonthlyExpenses.String(),
			BreakEvenRate:   rec.BreakEvenRate.String(),
		}); err != nil {
			return 0, fmt.Errorf("upsert enterprise %q: %w", rec.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit enterprises: %w", err)
	}
	return len(records), nil
}

// FiscalYears lists the years that have budget entries.
func (r *SQLiteRepository) FiscalYears(ctx context.Context) ([]int, error) {
	years, err := r.queries.ListFiscalYears(ctx)
	if err != nil {
		return nil, fmt.Errorf("list fiscal years: %w", err)
	}
	out := make([]int, len(years))
	for i, y := range years {
		out[i] = int(y)
	}
	return out, nil
}

func enterpriseFromRow(row Enterprise) (core.EnterpriseRecord, error) {
	rec := core.EnterpriseRecord{
		ID:           row.ID,
		Name:         row.Name,
		CitizenCount: int(row.CitizenCount),
	}
	var err error
	if rec.CurrentRate, err = parseStored(row.CurrentRate); err != nil {
		return rec, fmt.Errorf("enterprise %q current_rate: %w", row.Name, err)
	}
	if rec.MonthlyRevenue, err = parseStored(row.MonthlyRevenue); err != nil {
		return rec, fmt.Errorf("enterprise %q monthly_revenue: %w", row.Name, err)
	}
	if rec.MonthlyExpenses, err = parseStored(row.MonthlyExpenses); err != nil {
		return rec, fmt.Errorf("enterprise %q monthly_expenses: %w", row.Name, err)
	}
	if rec.BreakEvenRate, err = parseStored(row.BreakEvenRate); err != nil {
		return rec, fmt.Errorf("enterprise %q break_even_rate: %w", row.Name, err)
	}
	return rec, nil
}

func entryFromRow(row BudgetEntry) (core.BudgetEntry, error) {
	e := core.BudgetEntry{
		ID:            row.ID,
		FiscalYear:    int(row.FiscalYear),
		AccountNumber: row.AccountNumber,
		Description:   row.Description,
		Fund:          core.FundType(row.Fund),
	}
	if row.ParentID.Valid {
		p := row.ParentID.Int64
		e.ParentID = &p
	}
	var err error
	if e.Budgeted, err = parseStored(row.Budgeted); err != nil {
		return e, fmt.Errorf("account %s budgeted: %w", row.AccountNumber, err)
	}
	if e.Actual, err = parseStored(row.Actual); err != nil {
		return e, fmt.Errorf("account %s actual: %w", row.AccountNumber, err)
	}
	return e, nil
}

var errBadDecimal = errors.New("stored value is not a decimal")

func parseStored(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", errBadDecimal, s)
	}
	return d, nil
}
