package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	GeneralFund         FundType = "general"
	EnterpriseFund      FundType = "enterprise"
	SpecialRevenueFund  FundType = "special_revenue"
	CapitalProjectsFund FundType = "capital_projects"
	DebtServiceFund     FundType = "debt_service"
	InternalServiceFund FundType = "internal_service"
)

type (
	FundType string

	// EnterpriseRecord is a snapshot of one enterprise's monthly financials.
	EnterpriseRecord struct {
		ID              int64
		Name            string
		CitizenCount    int
		CurrentRate     decimal.Decimal
		MonthlyRevenue  decimal.Decimal
		MonthlyExpenses decimal.Decimal
		BreakEvenRate   decimal.Decimal
	}

	// BudgetEntry is a persisted budget line for one fiscal year.
	BudgetEntry struct {
		ID            int64
		FiscalYear    int
		AccountNumber string
		Description   string
		Fund          FundType
		Budgeted      decimal.Decimal
		Actual        decimal.Decimal
		ParentID      *int64 // nil for top-level accounts
	}

	// BudgetLine is an entry read from an import source. The parent is named
	// by account number because ids are assigned on write.
	BudgetLine struct {
		Entry               BudgetEntry
		ParentAccountNumber string
	}
)

var (
	ErrInvalidFundType    = errors.New("invalid fund type")
	ErrEmptyAccountNumber = errors.New("empty account number")
	ErrEmptyDescription   = errors.New("empty description")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrNegativeAmount     = errors.New("amount cannot be negative")
	ErrEmptyName          = errors.New("empty enterprise name")
)

var fundOrder = []FundType{
	GeneralFund,
	EnterpriseFund,
	SpecialRevenueFund,
	CapitalProjectsFund,
	DebtServiceFund,
	InternalServiceFund,
}

var fundLabels = map[FundType]string{
	GeneralFund:         "General Fund",
	EnterpriseFund:      "Enterprise Fund",
	SpecialRevenueFund:  "Special Revenue Fund",
	CapitalProjectsFund: "Capital Projects Fund",
	DebtServiceFund:     "Debt Service Fund",
	InternalServiceFund: "Internal Service Fund",
}

// FundTypes returns every fund type in display order.
func FundTypes() []FundType {
	return append([]FundType(nil), fundOrder...)
}

func (f FundType) IsValid() bool {
	_, ok := fundLabels[f]
	return ok
}

// Label returns the display name, or the raw value for unknown funds.
func (f FundType) Label() string {
	if l, ok := fundLabels[f]; ok {
		return l
	}
	return string(f)
}

// Rank is the position of f in display order. Unknown funds sort last.
func (f FundType) Rank() int {
	for i, ft := range fundOrder {
		if ft == f {
			return i
		}
	}
	return len(fundOrder)
}

// ParseFundType accepts either the stored value ("special_revenue") or the
// display label ("Special Revenue Fund"), case-insensitively.
func ParseFundType(s string) (FundType, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return "", ErrInvalidFundType
	}
	norm := strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	if ft := FundType(norm); ft.IsValid() {
		return ft, nil
	}
	trimmed := strings.TrimSuffix(norm, "_fund")
	if ft := FundType(trimmed); ft.IsValid() {
		return ft, nil
	}
	return "", ErrInvalidFundType
}

// MonthlyBalance is revenue minus expenses.
func (e EnterpriseRecord) MonthlyBalance() decimal.Decimal {
	return e.MonthlyRevenue.Sub(e.MonthlyExpenses)
}

func (e EnterpriseRecord) Validate() error {
	v := ValidationErrors{}
	if strings.TrimSpace(e.Name) == "" {
		v.Add("name", ErrEmptyName.Error())
	}
	if e.CitizenCount < 0 {
		v.Add("citizen_count", "citizen count cannot be negative")
	}
	if e.MonthlyRevenue.IsNegative() {
		v.Add("monthly_revenue", ErrNegativeAmount.Error())
	}
	if e.MonthlyExpenses.IsNegative() {
		v.Add("monthly_expenses", ErrNegativeAmount.Error())
	}
	return v.Err()
}

// HasParent reports whether the entry sits below another account.
func (b BudgetEntry) HasParent() bool {
	return b.ParentID != nil
}

func (b BudgetEntry) Validate() error {
	v := ValidationErrors{}
	if strings.TrimSpace(b.AccountNumber) == "" {
		v.Add("account_number", ErrEmptyAccountNumber.Error())
	}
	if strings.TrimSpace(b.Description) == "" {
		v.Add("description", ErrEmptyDescription.Error())
	} else if len(b.Description) > 200 {
		v.Add("description", "description too long (max 200 characters)")
	}
	if !b.Fund.IsValid() {
		v.Add("fund", ErrInvalidFundType.Error())
	}
	if b.Budgeted.IsNegative() {
		v.Add("budgeted", ErrNegativeAmount.Error())
	}
	if b.Actual.IsNegative() {
		v.Add("actual", ErrNegativeAmount.Error())
	}
	if b.ParentID != nil && *b.ParentID == b.ID && b.ID != 0 {
		v.Add("parent_id", "account cannot be its own parent")
	}
	return v.Err()
}
