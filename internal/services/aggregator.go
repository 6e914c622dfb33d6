package services

import (
	"sort"

	"github.com/shopspring/decimal"

	"fundledger/internal/core"
)

// ComputeTotals sums budgeted and actual amounts. Variance is always exactly
// TotalBudget - TotalActual.
func ComputeTotals(accounts []core.BudgetAccount) core.AggregateTotals {
	budget, actual := decimal.Zero, decimal.Zero
	for _, a := range accounts {
		budget = budget.Add(a.Budgeted)
		actual = actual.Add(a.Actual)
	}
	return core.AggregateTotals{
		TotalBudget: budget,
		TotalActual: actual,
		Variance:    budget.Sub(actual),
	}
}

// ComputeDistribution groups accounts by fund. Each bucket's Share is its
// budget as a fraction of the total budget; every share is 0 when nothing is
// budgeted.
func ComputeDistribution(accounts []core.BudgetAccount) []core.FundBucket {
	groups := groupByFund(accounts)
	total := ComputeTotals(accounts).TotalBudget

	buckets := make([]core.FundBucket, 0, len(groups))
	for _, g := range groups {
		b := core.FundBucket{
			Fund:         g.fund,
			Budgeted:     g.budgeted,
			Actual:       g.actual,
			AccountCount: g.count,
		}
		if total.IsPositive() {
			b.Share = g.budgeted.Div(total).InexactFloat64()
		}
		buckets = append(buckets, b)
	}
	return buckets
}

// ComputeComparison returns budget against actual per fund.
func ComputeComparison(accounts []core.BudgetAccount) []core.FundComparison {
	groups := groupByFund(accounts)
	out := make([]core.FundComparison, 0, len(groups))
	for _, g := range groups {
		c := core.FundComparison{
			Fund:     g.fund,
			Budgeted: g.budgeted,
			Actual:   g.actual,
			Variance: g.budgeted.Sub(g.actual),
		}
		if g.budgeted.IsPositive() {
			c.Utilization = g.actual.Div(g.budgeted).InexactFloat64()
		}
		out = append(out, c)
	}
	return out
}

// SummarizeEnterprises totals revenue, expenses, balance and citizens.
func SummarizeEnterprises(records []core.EnterpriseRecord) core.EnterpriseTotals {
	t := core.EnterpriseTotals{
		TotalRevenue:  decimal.Zero,
		TotalExpenses: decimal.Zero,
	}
	for _, r := range records {
		t.TotalRevenue = t.TotalRevenue.Add(r.MonthlyRevenue)
		t.TotalExpenses = t.TotalExpenses.Add(r.MonthlyExpenses)
		t.TotalCitizens += r.CitizenCount
	}
	t.NetBalance = t.TotalRevenue.Sub(t.TotalExpenses)
	return t
}

// ProjectAccounts converts entries to display accounts, preserving order.
func ProjectAccounts(entries []core.BudgetEntry) []core.BudgetAccount {
	out := make([]core.BudgetAccount, len(entries))
	for i, e := range entries {
		out[i] = core.NewBudgetAccount(e)
	}
	return out
}

// ProjectEnterprises converts records to display rows, preserving order.
func ProjectEnterprises(records []core.EnterpriseRecord) []core.EnterpriseRow {
	out := make([]core.EnterpriseRow, len(records))
	for i, r := range records {
		out[i] = core.NewEnterpriseRow(r)
	}
	return out
}

// OverBudget returns the accounts whose actual exceeds the budget.
func OverBudget(accounts []core.BudgetAccount) []core.BudgetAccount {
	var out []core.BudgetAccount
	for _, a := range accounts {
		if a.OverBudget {
			out = append(out, a)
		}
	}
	return out
}

// BuildSnapshot recomputes every aggregate for a fiscal year.
func BuildSnapshot(year int, entries []core.BudgetEntry, records []core.EnterpriseRecord) core.BudgetSnapshot {
	accounts := ProjectAccounts(entries)
	return core.BudgetSnapshot{
		FiscalYear:       year,
		Accounts:         accounts,
		Enterprises:      ProjectEnterprises(records),
		Totals:           ComputeTotals(accounts),
		EnterpriseTotals: SummarizeEnterprises(records),
		Distribution:     ComputeDistribution(accounts),
		Comparison:       ComputeComparison(accounts),
	}
}

type fundGroup struct {
	fund     core.FundType
	budgeted decimal.Decimal
	actual   decimal.Decimal
	count    int
}

func groupByFund(accounts []core.BudgetAccount) []*fundGroup {
	byFund := make(map[core.FundType]*fundGroup)
	var groups []*fundGroup
	for _, a := range accounts {
		g, ok := byFund[a.Fund]
		if !ok {
			g = &fundGroup{fund: a.Fund, budgeted: decimal.Zero, actual: decimal.Zero}
			byFund[a.Fund] = g
			groups = append(groups, g)
		}
		g.budgeted = g.budgeted.Add(a.Budgeted)
		g.actual = g.actual.Add(a.Actual)
		g.count++
	}
	sort.SliceStable(groups, func(i, j int) bool {
		ri, rj := groups[i].fund.Rank(), groups[j].fund.Rank()
		if ri != rj {
			return ri < rj
		}
		return groups[i].fund < groups[j].fund
	})
	return groups
}
