package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"fundledger/internal/core"
	applog "fundledger/internal/log"
)

type snapshotResponse struct {
	FiscalYear  string             `json:"fiscal_year"`
	RefreshedAt *time.Time         `json:"refreshed_at,omitempty"`
	Loading     bool               `json:"loading"`
	Error       string             `json:"error,omitempty"`
	Totals      totalsResponse     `json:"totals"`
	Enterprise  enterpriseTotals   `json:"enterprise_totals"`
	Accounts    []accountResponse  `json:"accounts"`
	Enterprises []enterpriseRow    `json:"enterprises"`
	Funds       []fundBucketResult `json:"funds"`
}

type totalsResponse struct {
	Budgeted string `json:"budgeted"`
	Actual   string `json:"actual"`
	Variance string `json:"variance"`
}

type enterpriseTotals struct {
	Revenue  string `json:"revenue"`
	Expenses string `json:"expenses"`
	Net      string `json:"net_balance"`
	Citizens int    `json:"citizens"`
}

type accountResponse struct {
	ID            int64  `json:"id"`
	AccountNumber string `json:"account_number"`
	Description   string `json:"description"`
	Fund          string `json:"fund"`
	Budgeted      string `json:"budgeted"`
	Actual        string `json:"actual"`
	Variance      string `json:"variance"`
	ParentID      *int64 `json:"parent_id,omitempty"`
	OverBudget    bool   `json:"over_budget"`
}

type enterpriseRow struct {
	Name          string `json:"name"`
	Citizens      int    `json:"citizens"`
	CurrentRate   string `json:"current_rate"`
	Revenue       string `json:"monthly_revenue"`
	Expenses      string `json:"monthly_expenses"`
	Balance       string `json:"monthly_balance"`
	BreakEvenRate string `json:"break_even_rate"`
	Deficit       bool   `json:"deficit"`
}

type fundBucketResult struct {
	Fund        string  `json:"fund"`
	Accounts    int     `json:"accounts"`
	Budgeted    string  `json:"budgeted"`
	Actual      string  `json:"actual"`
	Share       float64 `json:"share"`
	Utilization float64 `json:"utilization"`
}

type hierarchyNode struct {
	accountResponse
	Children []hierarchyNode `json:"children,omitempty"`
}

type importResponse struct {
	RunID      string   `json:"run_id,omitempty"`
	Progress   int      `json:"progress"`
	Running    bool     `json:"running"`
	Cancelled  bool     `json:"cancelled"`
	ErrorCount int      `json:"error_count"`
	Lines      []string `json:"lines"`
}

func amount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func newSnapshotResponse(s core.BudgetSnapshot, loading bool, errMsg string) snapshotResponse {
	resp := snapshotResponse{
		FiscalYear: core.FormatFiscalYear(s.FiscalYear),
		Loading:    loading,
		Error:      errMsg,
		Totals: totalsResponse{
			Budgeted: amount(s.Totals.TotalBudget),
			Actual:   amount(s.Totals.TotalActual),
			Variance: amount(s.Totals.Variance),
		},
		Enterprise: enterpriseTotals{
			Revenue:  amount(s.EnterpriseTotals.TotalRevenue),
			Expenses: amount(s.EnterpriseTotals.TotalExpenses),
			Net:      amount(s.EnterpriseTotals.NetBalance),
			Citizens: s.EnterpriseTotals.TotalCitizens,
		},
		Accounts:    make([]accountResponse, 0, len(s.Accounts)),
		Enterprises: make([]enterpriseRow, 0, len(s.Enterprises)),
		Funds:       make([]fundBucketResult, 0, len(s.Distribution)),
	}
	if !s.RefreshedAt.IsZero() {
		t := s.RefreshedAt
		resp.RefreshedAt = &t
	}
	for _, a := range s.Accounts {
		resp.Accounts = append(resp.Accounts, newAccountResponse(a))
	}
	for _, e := range s.Enterprises {
		resp.Enterprises = append(resp.Enterprises, enterpriseRow{
			Name:          e.Name,
			Citizens:      e.CitizenCount,
			CurrentRate:   amount(e.CurrentRate),
			Revenue:       amount(e.MonthlyRevenue),
			Expenses:      amount(e.MonthlyExpenses),
			Balance:       amount(e.MonthlyBalance),
			BreakEvenRate: amount(e.BreakEvenRate),
			Deficit:       e.Deficit,
		})
	}
	for i, b := range s.Distribution {
		f := fundBucketResult{
			Fund:     b.Fund.Label(),
			Accounts: b.AccountCount,
			Budgeted: amount(b.Budgeted),
			Actual:   amount(b.Actual),
			Share:    b.Share,
		}
		if i < len(s.Comparison) && s.Comparison[i].Fund == b.Fund {
			f.Utilization = s.Comparison[i].Utilization
		}
		resp.Funds = append(resp.Funds, f)
	}
	return resp
}

func newAccountResponse(a core.BudgetAccount) accountResponse {
	return accountResponse{
		ID:            a.ID,
		AccountNumber: a.AccountNumber,
		Description:   a.Description,
		Fund:          a.Fund.Label(),
		Budgeted:      amount(a.Budgeted),
		Actual:        amount(a.Actual),
		Variance:      amount(a.Variance()),
		ParentID:      a.ParentID,
		OverBudget:    a.OverBudget,
	}
}

func newHierarchy(nodes []*core.BudgetNode) []hierarchyNode {
	out := make([]hierarchyNode, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, hierarchyNode{
			accountResponse: newAccountResponse(core.NewBudgetAccount(n.Entry)),
			Children:        newHierarchy(n.Children),
		})
	}
	return out
}

// writeJSON encodes v with status. Encoding failures are logged; the status
// line has already been sent.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		applog.FromContext(r.Context()).Failure(r.Context(), "Failed to encode response", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, map[string]string{"error": msg})
}
