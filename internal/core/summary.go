package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// BudgetAccount is the display projection of a BudgetEntry.
type BudgetAccount struct {
	ID            int64
	FiscalYear    int
	AccountNumber string
	Description   string
	Fund          FundType
	Budgeted      decimal.Decimal
	Actual        decimal.Decimal
	ParentID      *int64
	OverBudget    bool
}

// NewBudgetAccount projects e and derives the over-budget flag.
func NewBudgetAccount(e BudgetEntry) BudgetAccount {
	return BudgetAccount{
		ID:            e.ID,
		FiscalYear:    e.FiscalYear,
		AccountNumber: e.AccountNumber,
		Description:   e.Description,
		Fund:          e.Fund,
		Budgeted:      e.Budgeted,
		Actual:        e.Actual,
		ParentID:      e.ParentID,
		OverBudget:    e.Actual.GreaterThan(e.Budgeted),
	}
}

// Variance is budgeted minus actual.
func (a BudgetAccount) Variance() decimal.Decimal {
	return a.Budgeted.Sub(a.Actual)
}

// Entry converts the account back to its persisted form.
func (a BudgetAccount) Entry() BudgetEntry {
	return BudgetEntry{
		ID:            a.ID,
		FiscalYear:    a.FiscalYear,
		AccountNumber: a.AccountNumber,
		Description:   a.Description,
		Fund:          a.Fund,
		Budgeted:      a.Budgeted,
		Actual:        a.Actual,
		ParentID:      a.ParentID,
	}
}

// EnterpriseRow is the display projection of an EnterpriseRecord.
type EnterpriseRow struct {
	Name            string
	CitizenCount    int
	CurrentRate     decimal.Decimal
	MonthlyRevenue  decimal.Decimal
	MonthlyExpenses decimal.Decimal
	MonthlyBalance  decimal.Decimal
	BreakEvenRate   decimal.Decimal
	Deficit         bool
}

func NewEnterpriseRow(r EnterpriseRecord) EnterpriseRow {
	balance := r.MonthlyBalance()
	return EnterpriseRow{
		Name:            r.Name,
		CitizenCount:    r.CitizenCount,
		CurrentRate:     r.CurrentRate,
		MonthlyRevenue:  r.MonthlyRevenue,
		MonthlyExpenses: r.MonthlyExpenses,
		MonthlyBalance:  balance,
		BreakEvenRate:   r.BreakEvenRate,
		Deficit:         balance.IsNegative(),
	}
}

// AggregateTotals summarises a set of budget accounts.
type AggregateTotals struct {
	TotalBudget decimal.Decimal
	TotalActual decimal.Decimal
	Variance    decimal.Decimal // TotalBudget - TotalActual
}

// EnterpriseTotals summarises a set of enterprise records.
type EnterpriseTotals struct {
	TotalRevenue  decimal.Decimal
	TotalExpenses decimal.Decimal
	NetBalance    decimal.Decimal
	TotalCitizens int
}

// FundBucket is one slice of the fund distribution.
type FundBucket struct {
	Fund         FundType
	Budgeted     decimal.Decimal
	Actual       decimal.Decimal
	AccountCount int
	Share        float64 // fraction of the total budget, 0..1
}

// FundComparison compares budget and actual for one fund.
type FundComparison struct {
	Fund        FundType
	Budgeted    decimal.Decimal
	Actual      decimal.Decimal
	Variance    decimal.Decimal
	Utilization float64 // Actual / Budgeted, 0 when nothing is budgeted
}

// BudgetSnapshot is everything a budget view displays for one fiscal year.
type BudgetSnapshot struct {
	FiscalYear       int
	Accounts         []BudgetAccount
	Enterprises      []EnterpriseRow
	Totals           AggregateTotals
	EnterpriseTotals EnterpriseTotals
	Distribution     []FundBucket
	Comparison       []FundComparison
	RefreshedAt      time.Time
}

// IsEmpty reports whether the snapshot was never populated.
func (s BudgetSnapshot) IsEmpty() bool {
	return s.RefreshedAt.IsZero()
}

// BudgetReport is a tabular rendering of a snapshot, shared by the text
// formatter and the spreadsheet publisher.
type BudgetReport struct {
	Title       string
	FiscalYear  int
	GeneratedAt time.Time
	Sections    []ReportSection
}

type ReportSection struct {
	Name   string
	Header []string
	Rows   [][]string
}
