package excel

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"fundledger/internal/core"
	"fundledger/internal/memory"
	"fundledger/internal/ports"
)

type sheetData struct {
	name string
	rows [][]any
}

func writeWorkbook(t *testing.T, sheets ...sheetData) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", s.name))
		} else {
			_, err := f.NewSheet(s.name)
			require.NoError(t, err)
		}
		for r, row := range s.rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			values := row
			require.NoError(t, f.SetSheetRow(s.name, cell, &values))
		}
	}

	path := filepath.Join(t.TempDir(), "budget.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

var budgetHeader = []any{"Fiscal Year", "Account Number", "Description", "Fund", "Budgeted", "Actual", "Parent Account"}

func TestImporter_RoundTrip(t *testing.T) {
	path := writeWorkbook(t,
		sheetData{"Budget", [][]any{
			budgetHeader,
			{"FY 2025", "100", "Administration", "General Fund", 1200.5, 900, ""},
			{2025, "110", "Salaries", "general", 800, 850.25, "100"},
			{},
			{2024, "100", "Administration", "General", "1,000.00", "1000", ""},
			{2025, "200", "Water operations", "Enterprise Fund", 5000, 4200, ""},
		}},
		sheetData{"Enterprises", [][]any{
			{"Name", "Citizens", "Current Rate", "Monthly Revenue", "Monthly Expenses", "Break-even Rate"},
			{"Water", 1200, 45.5, 54600, 50000, 41.67},
			{"Sewer", 1100, 30, 33000, 35000, 31.82},
		}},
	)

	store := memory.New()
	summary, err := New(store, store, nil).Import(context.Background(), path, ports.ImportRequest{})
	require.NoError(t, err)

	assert.Equal(t, []int{2024, 2025}, summary.FiscalYears)
	assert.Equal(t, 4, summary.BudgetLines)
	assert.Equal(t, 2, summary.EnterpriseCount)
	assert.Zero(t, summary.SkippedRows)

	ctx := context.Background()
	fy25, _ := store.GetByFiscalYear(ctx, 2025)
	require.Len(t, fy25, 3)
	assert.True(t, fy25[0].Budgeted.Equal(decimal.RequireFromString("1200.50")))
	assert.Equal(t, core.EnterpriseFund, fy25[2].Fund)
	require.NotNil(t, fy25[1].ParentID)
	assert.Equal(t, fy25[0].ID, *fy25[1].ParentID)

	fy24, _ := store.GetByFiscalYear(ctx, 2024)
	require.Len(t, fy24, 1)
	assert.True(t, fy24[0].Budgeted.Equal(decimal.NewFromInt(1000)))

	enterprises, _ := store.GetAll(ctx)
	require.Len(t, enterprises, 2)
	assert.Equal(t, "Sewer", enterprises[0].Name)
	assert.True(t, enterprises[1].BreakEvenRate.Equal(decimal.RequireFromString("41.67")))
}

func TestImporter_NewPeriodUsesRequestYear(t *testing.T) {
	path := writeWorkbook(t, sheetData{"Budget", [][]any{
		budgetHeader,
		{2024, "100", "Administration", "general", 10, 0, ""},
		{2023, "200", "Parks", "general", 20, 0, ""},
	}})

	store := memory.New()
	_, err := store.ImportBudget(context.Background(), 2026, []core.BudgetLine{
		{Entry: core.BudgetEntry{AccountNumber: "999", Description: "Old", Fund: core.GeneralFund}},
	}, false)
	require.NoError(t, err)

	summary, err := New(store, store, nil).Import(context.Background(), path, ports.ImportRequest{
		FiscalYear:      2026,
		CreateNewPeriod: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2026}, summary.FiscalYears)

	fy26, _ := store.GetByFiscalYear(context.Background(), 2026)
	require.Len(t, fy26, 2)
	assert.Equal(t, "100", fy26[0].AccountNumber)
}

func TestImporter_SkipsInvalidRows(t *testing.T) {
	path := writeWorkbook(t, sheetData{"Budget", [][]any{
		{"Account", "Description", "Fund", "Budget", "Actual"},
		{"100", "Administration", "general", 10, 5},
		{"", "No account", "general", 10, 5},
		{"300", "Bad fund", "pension", 10, 5},
		{"400", "Negative", "general", -10, 5},
		{"100", "Administration (revised)", "general", 12, 5},
	}})

	store := memory.New()
	summary, err := New(store, store, nil).Import(context.Background(), path, ports.ImportRequest{FiscalYear: 2025})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.BudgetLines)
	assert.Equal(t, 4, summary.SkippedRows)
	fy25, _ := store.GetByFiscalYear(context.Background(), 2025)
	require.Len(t, fy25, 1)
	assert.Equal(t, "Administration (revised)", fy25[0].Description)
}

func TestImporter_Errors(t *testing.T) {
	noYear := writeWorkbook(t, sheetData{"Budget", [][]any{
		{"Account Number", "Description", "Fund", "Budgeted"},
		{"100", "Administration", "general", 10},
	}})
	missing := writeWorkbook(t, sheetData{"Budget", [][]any{
		{"Account Number", "Notes"},
		{"100", "x"},
	}})
	empty := writeWorkbook(t, sheetData{"Budget", [][]any{
		{"Account Number", "Description", "Fund", "Budgeted"},
	}})

	tests := []struct {
		name string
		path string
		req  ports.ImportRequest
		want error
	}{
		{"no fiscal year", noYear, ports.ImportRequest{}, ErrNoFiscalYear},
		{"missing columns", missing, ports.ImportRequest{FiscalYear: 2025}, ErrMissingColumns},
		{"header only", empty, ports.ImportRequest{FiscalYear: 2025}, ErrNoRows},
		{"unknown sheet", noYear, ports.ImportRequest{FiscalYear: 2025, SheetName: "Capital"}, ErrSheetNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.New()
			_, err := New(store, store, nil).Import(context.Background(), tt.path, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestImporter_NotAWorkbook(t *testing.T) {
	store := memory.New()
	_, err := New(store, store, nil).Import(context.Background(), filepath.Join(t.TempDir(), "nope.xlsx"), ports.ImportRequest{FiscalYear: 2025})
	require.Error(t, err)
}

type failingWriter struct{}

func (failingWriter) ImportBudget(context.Context, int, []core.BudgetLine, bool) (int, error) {
	return 0, errors.New("disk full")
}

func TestImporter_WriterFailure(t *testing.T) {
	path := writeWorkbook(t, sheetData{"Budget", [][]any{
		{"Account Number", "Description", "Fund", "Budgeted"},
		{"100", "Administration", "general", 10},
	}})

	_, err := New(failingWriter{}, memory.New(), nil).Import(context.Background(), path, ports.ImportRequest{FiscalYear: 2025})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Contains(t, err.Error(), fmt.Sprint(2025))
}

func TestNormalizeHeader(t *testing.T) {
	assert.Equal(t, "account number", normalizeHeader("  Account_Number "))
	assert.Equal(t, "account no", normalizeHeader("Account No."))
	assert.Equal(t, "break-even rate", normalizeHeader("Break-Even  Rate"))
}
