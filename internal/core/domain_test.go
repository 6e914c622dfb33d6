package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseFundType(t *testing.T) {
	cases := []struct {
		in   string
		want FundType
		ok   bool
	}{
		{"general", GeneralFund, true},
		{"General Fund", GeneralFund, true},
		{"  ENTERPRISE ", EnterpriseFund, true},
		{"special-revenue", SpecialRevenueFund, true},
		{"Capital Projects Fund", CapitalProjectsFund, true},
		{"debt_service", DebtServiceFund, true},
		{"pension", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseFundType(tc.in)
		if tc.ok {
			if err != nil || got != tc.want {
				t.Fatalf("%q expected %q, got %q (err=%v)", tc.in, tc.want, got, err)
			}
		} else if !errors.Is(err, ErrInvalidFundType) {
			t.Fatalf("%q expected ErrInvalidFundType, got %v", tc.in, err)
		}
	}
}

func TestFundTypeRank(t *testing.T) {
	if GeneralFund.Rank() != 0 {
		t.Fatalf("general fund should sort first, got %d", GeneralFund.Rank())
	}
	if FundType("other").Rank() != len(FundTypes()) {
		t.Fatalf("unknown fund should sort last")
	}
	if FundType("other").Label() != "other" {
		t.Fatalf("unknown fund label should be its raw value")
	}
}

func TestEnterpriseMonthlyBalance(t *testing.T) {
	r := EnterpriseRecord{
		Name:            "Water",
		MonthlyRevenue:  decimal.RequireFromString("1200.50"),
		MonthlyExpenses: decimal.RequireFromString("1300.25"),
	}
	if got := r.MonthlyBalance().StringFixed(2); got != "-99.75" {
		t.Fatalf("expected -99.75, got %s", got)
	}
	if !NewEnterpriseRow(r).Deficit {
		t.Fatalf("negative balance should be flagged as deficit")
	}
}

func TestBudgetEntryValidate(t *testing.T) {
	good := BudgetEntry{
		AccountNumber: "410.100",
		Description:   "Salaries",
		Fund:          GeneralFund,
		Budgeted:      decimal.NewFromInt(1000),
		Actual:        decimal.NewFromInt(900),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bad := BudgetEntry{
		Description: strings.Repeat("x", 201),
		Fund:        "pension",
		Budgeted:    decimal.NewFromInt(-1),
	}
	err := bad.Validate()
	var verr ValidationErrors
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	for _, field := range []string{"account_number", "description", "fund", "budgeted"} {
		if !verr.Has(field) {
			t.Errorf("expected error for field %s, got %v", field, verr)
		}
	}
	if verr.Has("actual") {
		t.Errorf("actual is zero and should be valid")
	}
}

func TestBudgetEntryValidate_SelfParent(t *testing.T) {
	id := int64(7)
	e := BudgetEntry{ID: 7, AccountNumber: "1", Description: "d", Fund: GeneralFund, ParentID: &id}
	err := e.Validate()
	if err == nil || !strings.Contains(err.Error(), "parent_id") {
		t.Fatalf("expected parent_id error, got %v", err)
	}
}

func TestBudgetAccountProjection(t *testing.T) {
	e := BudgetEntry{
		ID:       3,
		Fund:     EnterpriseFund,
		Budgeted: decimal.NewFromInt(500),
		Actual:   decimal.NewFromInt(650),
	}
	a := NewBudgetAccount(e)
	if !a.OverBudget {
		t.Fatalf("actual above budget should be over budget")
	}
	if got := a.Variance().String(); got != "-150" {
		t.Fatalf("expected variance -150, got %s", got)
	}
	if a.Entry().ID != e.ID || !a.Entry().Actual.Equal(e.Actual) {
		t.Fatalf("round trip lost data: %+v", a.Entry())
	}

	e.Actual = decimal.NewFromInt(500)
	if NewBudgetAccount(e).OverBudget {
		t.Fatalf("actual equal to budget is not over budget")
	}
}

func TestValidationErrorsError(t *testing.T) {
	v := ValidationErrors{}
	if v.Err() != nil {
		t.Fatalf("empty validation should be nil error")
	}
	v.Add("b", "second")
	v.Add("a", "first")
	v.Add("a", "ignored")
	want := "validation failed: a: first; b: second"
	if v.Error() != want {
		t.Fatalf("expected %q, got %q", want, v.Error())
	}
}
