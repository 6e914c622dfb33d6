package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Enterprise is a row of the enterprises table.
type Enterprise struct {
	ID              int64
	Name            string
	CitizenCount    int64
	CurrentRate     string
	MonthlyRevenue  string
	MonthlyExpenses string
	BreakEvenRate   string
}

// BudgetEntry is a row of the budget_entries table.
type BudgetEntry struct {
	ID            int64
	FiscalYear    int64
	AccountNumber string
	Description   string
	Fund          string
	Budgeted      string
	Actual        string
	ParentID      sql.NullInt64
}

const listEnterprises = `
SELECT id, name, citizen_count, current_rate, monthly_revenue, monthly_expenses, break_even_rate
FROM enterprises
ORDER BY name
`

func (q *Queries) ListEnterprises(ctx context.Context) ([]Enterprise, error) {
	rows, err := q.db.QueryContext(ctx, listEnterprises)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Enterprise
	for rows.Next() {
		var i Enterprise
		if err := rows.Scan(&i.ID, &i.Name, &i.CitizenCount, &i.CurrentRate,
			&i.MonthlyRevenue, &i.MonthlyExpenses, &i.BreakEvenRate); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const upsertEnterprise = `
INSERT INTO enterprises (name, citizen_count, current_rate, monthly_revenue, monthly_expenses, break_even_rate)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
    citizen_count = excluded.citizen_count,
    current_rate = excluded.current_rate,
    monthly_revenue = excluded.monthly_revenue,
    monthly_expenses = excluded.monthly_expenses,
    break_even_rate = excluded.break_even_rate,
    updated_at = CURRENT_TIMESTAMP
`

type UpsertEnterpriseParams struct {
	Name            string
	CitizenCount    int64
	CurrentRate     string
	MonthlyRevenue  string
	MonthlyExpenses string
	BreakEvenRate   string
}

func (q *Queries) UpsertEnterprise(ctx context.Context, arg UpsertEnterpriseParams) error {
	_, err := q.db.ExecContext(ctx, upsertEnterprise,
		arg.Name, arg.CitizenCount, arg.CurrentRate,
		arg.MonthlyRevenue, arg.MonthlyExpenses, arg.BreakEvenRate)
	return err
}

const budgetColumns = `id, fiscal_year, account_number, description, fund, budgeted, actual, parent_id`

const listBudgetEntriesByYear = `
SELECT ` + budgetColumns + `
FROM budget_entries
WHERE fiscal_year = ?
ORDER BY account_number
`

func (q *Queries) ListBudgetEntriesByYear(ctx context.Context, fiscalYear int64) ([]BudgetEntry, error) {
	rows, err := q.db.QueryContext(ctx, listBudgetEntriesByYear, fiscalYear)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []BudgetEntry
	for rows.Next() {
		var i BudgetEntry
		if err := rows.Scan(&i.ID, &i.FiscalYear, &i.AccountNumber, &i.Description,
			&i.Fund, &i.Budgeted, &i.Actual, &i.ParentID); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const updateBudgetEntry = `
UPDATE budget_entries
SET account_number = ?, description = ?, fund = ?, budgeted = ?, actual = ?, parent_id = ?,
    updated_at = CURRENT_TIMESTAMP
WHERE id = ?
`

type UpdateBudgetEntryParams struct {
	AccountNumber string
	Description   string
	Fund          string
	Budgeted      string
	Actual        string
	ParentID      sql.NullInt64
	ID            int64
}

func (q *Queries) UpdateBudgetEntry(ctx context.Context, arg UpdateBudgetEntryParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateBudgetEntry,
		arg.AccountNumber, arg.Description, arg.Fund, arg.Budgeted, arg.Actual, arg.ParentID, arg.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteBudgetEntriesByYear = `DELETE FROM budget_entries WHERE fiscal_year = ?`

func (q *Queries) DeleteBudgetEntriesByYear(ctx context.Context, fiscalYear int64) error {
	_, err := q.db.ExecContext(ctx, deleteBudgetEntriesByYear, fiscalYear)
	return err
}

const upsertBudgetEntry = `
INSERT INTO budget_entries (fiscal_year, account_number, description, fund, budgeted, actual)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(fiscal_year, account_number) DO UPDATE SET
    description = excluded.description,
    fund = excluded.fund,
    budgeted = excluded.budgeted,
    actual = excluded.actual,
    updated_at = CURRENT_TIMESTAMP
`

type UpsertBudgetEntryParams struct {
	FiscalYear    int64
	AccountNumber string
	Description   string
	Fund          string
	Budgeted      string
	Actual        string
}

func (q *Queries) UpsertBudgetEntry(ctx context.Context, arg UpsertBudgetEntryParams) error {
	_, err := q.db.ExecContext(ctx, upsertBudgetEntry,
		arg.FiscalYear, arg.AccountNumber, arg.Description, arg.Fund, arg.Budgeted, arg.Actual)
	return err
}

const setParentByAccountNumber = `
UPDATE budget_entries
SET parent_id = (
    SELECT p.id FROM budget_entries p
    WHERE p.fiscal_year = budget_entries.fiscal_year AND p.account_number = ?
)
WHERE fiscal_year = ? AND account_number = ?
`

type SetParentParams struct {
	ParentAccountNumber string
	FiscalYear          int64
	AccountNumber       string
}

func (q *Queries) SetParentByAccountNumber(ctx context.Context, arg SetParentParams) error {
	_, err := q.db.ExecContext(ctx, setParentByAccountNumber,
		arg.ParentAccountNumber, arg.FiscalYear, arg.AccountNumber)
	return err
}

const countBudgetEntries = `SELECT COUNT(*) FROM budget_entries WHERE fiscal_year = ?`

func (q *Queries) CountBudgetEntries(ctx context.Context, fiscalYear int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countBudgetEntries, fiscalYear).Scan(&n)
	return n, err
}

const listFiscalYears = `SELECT DISTINCT fiscal_year FROM budget_entries ORDER BY fiscal_year`

func (q *Queries) ListFiscalYears(ctx context.Context) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, listFiscalYears)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var years []int64
	for rows.Next() {
		var y int64
		if err := rows.Scan(&y); err != nil {
			return nil, err
		}
		years = append(years, y)
	}
	return years, rows.Err()
}
