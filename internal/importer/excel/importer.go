// Package excel imports budget workbooks.
//
// The budget sheet needs a header row naming at least Account Number,
// Description, Fund and Budgeted. Actual, Parent Account and Fiscal Year are
// optional. An optional "Enterprises" sheet carries enterprise records.
package excel

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"fundledger/internal/core"
	applog "fundledger/internal/log"
	"fundledger/internal/ports"
)

// EnterpriseSheet is the sheet name read for enterprise records.
const EnterpriseSheet = "Enterprises"

var (
	ErrSheetNotFound  = errors.New("sheet not found")
	ErrMissingColumns = errors.New("missing required columns")
	ErrNoFiscalYear   = errors.New("no fiscal year in workbook or request")
	ErrNoRows         = errors.New("no budget rows")
)

type column int

const (
	colAccount column = iota
	colDescription
	colFund
	colBudgeted
	colActual
	colParent
	colYear
)

var budgetHeaders = map[string]column{
	"account number": colAccount,
	"account":        colAccount,
	"account no":     colAccount,
	"description":    colDescription,
	"fund":           colFund,
	"fund type":      colFund,
	"budgeted":       colBudgeted,
	"budget":         colBudgeted,
	"actual":         colActual,
	"actuals":        colActual,
	"parent account": colParent,
	"parent":         colParent,
	"fiscal year":    colYear,
	"year":           colYear,
}

var requiredBudget = map[column]string{
	colAccount:     "Account Number",
	colDescription: "Description",
	colFund:        "Fund",
	colBudgeted:    "Budgeted",
}

const (
	entName column = iota
	entCitizens
	entRate
	entRevenue
	entExpenses
	entBreakEven
)

var enterpriseHeaders = map[string]column{
	"name":             entName,
	"enterprise":       entName,
	"citizens":         entCitizens,
	"citizen count":    entCitizens,
	"current rate":     entRate,
	"rate":             entRate,
	"monthly revenue":  entRevenue,
	"revenue":          entRevenue,
	"monthly expenses": entExpenses,
	"expenses":         entExpenses,
	"break even rate":  entBreakEven,
	"break-even rate":  entBreakEven,
	"break-even":       entBreakEven,
}

// Importer reads a workbook and writes what it finds through the writers.
type Importer struct {
	budgets     ports.BudgetWriter
	enterprises ports.EnterpriseWriter
	logger      *applog.Logger
}

var _ ports.Importer = (*Importer)(nil)

func New(budgets ports.BudgetWriter, enterprises ports.EnterpriseWriter, logger *applog.Logger) *Importer {
	if logger == nil {
		logger = applog.Discard()
	}
	return &Importer{budgets: budgets, enterprises: enterprises, logger: logger}
}

// Import parses path and stores its budget lines grouped by fiscal year.
// Rows that fail validation are skipped and counted.
func (im *Importer) Import(ctx context.Context, path string, req ports.ImportRequest) (ports.ImportSummary, error) {
	var summary ports.ImportSummary

	f, err := excelize.OpenFile(path)
	if err != nil {
		return summary, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet, err := budgetSheet(f, req.SheetName)
	if err != nil {
		return summary, err
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return summary, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	byYear, skipped, err := im.parseBudget(ctx, rows, req)
	if err != nil {
		return summary, fmt.Errorf("sheet %q: %w", sheet, err)
	}
	summary.SkippedRows = skipped

	var records []core.EnterpriseRecord
	if entSheet := findSheet(f, EnterpriseSheet); entSheet != "" && entSheet != sheet {
		entRows, err := f.GetRows(entSheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return summary, fmt.Errorf("read sheet %q: %w", entSheet, err)
		}
		var entSkipped int
		records, entSkipped, err = im.parseEnterprises(ctx, entRows)
		if err != nil {
			return summary, fmt.Errorf("sheet %q: %w", entSheet, err)
		}
		summary.SkippedRows += entSkipped
	}

	if err := ctx.Err(); err != nil {
		return summary, err
	}

	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)

	replace := req.ReplaceExisting || req.CreateNewPeriod
	for _, y := range years {
		n, err := im.budgets.ImportBudget(ctx, y, byYear[y], replace)
		if err != nil {
			return summary, fmt.Errorf("store budget for %d: %w", y, err)
		}
		summary.BudgetLines += n
		summary.FiscalYears = append(summary.FiscalYears, y)
	}

	if len(records) > 0 {
		n, err := im.enterprises.UpsertEnterprises(ctx, records)
		if err != nil {
			return summary, fmt.Errorf("store enterprises: %w", err)
		}
		summary.EnterpriseCount = n
	}

	im.logger.InfoContext(ctx, "Workbook imported",
		applog.FieldFilePath, path,
		"sheet", sheet,
		"fiscal_years", summary.FiscalYears,
		"budget_lines", summary.BudgetLines,
		"enterprises", summary.EnterpriseCount,
		"skipped_rows", summary.SkippedRows)
	return summary, nil
}

func budgetSheet(f *excelize.File, name string) (string, error) {
	if name != "" {
		if s := findSheet(f, name); s != "" {
			return s, nil
		}
		return "", fmt.Errorf("%w: %q", ErrSheetNotFound, name)
	}
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", fmt.Errorf("%w: workbook has no sheets", ErrSheetNotFound)
	}
	return sheets[0], nil
}

func findSheet(f *excelize.File, name string) string {
	for _, s := range f.GetSheetList() {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return s
		}
	}
	return ""
}

// headerIndex maps each known column to its position in the first non-blank
// row and returns the index of the row after it.
func headerIndex(rows [][]string, known map[string]column) (map[column]int, int) {
	for i, row := range rows {
		if blank(row) {
			continue
		}
		idx := make(map[column]int)
		for j, cell := range row {
			key := normalizeHeader(cell)
			if c, ok := known[key]; ok {
				if _, seen := idx[c]; !seen {
					idx[c] = j
				}
			}
		}
		return idx, i + 1
	}
	return nil, len(rows)
}

func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("_", " ", ".", "", "#", "", "(", "", ")", "").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

func (im *Importer) parseBudget(ctx context.Context, rows [][]string, req ports.ImportRequest) (map[int][]core.BudgetLine, int, error) {
	idx, start := headerIndex(rows, budgetHeaders)
	if idx == nil {
		return nil, 0, ErrNoRows
	}
	var missing []string
	for c, name := range requiredBudget {
		if _, ok := idx[c]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, 0, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	_, hasYear := idx[colYear]
	if req.FiscalYear == 0 && (!hasYear || req.CreateNewPeriod) {
		return nil, 0, ErrNoFiscalYear
	}

	byYear := make(map[int][]core.BudgetLine)
	seen := make(map[int]map[string]int)
	skipped := 0
	for i := start; i < len(rows); i++ {
		row := rows[i]
		if blank(row) {
			continue
		}
		line, err := parseBudgetRow(row, idx, req)
		if err != nil {
			skipped++
			im.logger.WarnContext(ctx, "Skipping budget row",
				"row", i+1,
				applog.FieldError, err)
			continue
		}
		year := line.Entry.FiscalYear
		if seen[year] == nil {
			seen[year] = make(map[string]int)
		}
		// a repeated account number replaces the earlier row
		if pos, dup := seen[year][line.Entry.AccountNumber]; dup {
			byYear[year][pos] = line
			skipped++
			continue
		}
		seen[year][line.Entry.AccountNumber] = len(byYear[year])
		byYear[year] = append(byYear[year], line)
	}
	if len(byYear) == 0 {
		return nil, skipped, ErrNoRows
	}
	return byYear, skipped, nil
}

func parseBudgetRow(row []string, idx map[column]int, req ports.ImportRequest) (core.BudgetLine, error) {
	get := func(c column) string {
		j, ok := idx[c]
		if !ok || j >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[j])
	}

	year := req.FiscalYear
	if !req.CreateNewPeriod {
		if raw := get(colYear); raw != "" {
			y, err := parseYear(raw)
			if err != nil {
				return core.BudgetLine{}, err
			}
			year = y
		}
	}
	if year == 0 {
		return core.BudgetLine{}, ErrNoFiscalYear
	}

	fund, err := core.ParseFundType(get(colFund))
	if err != nil {
		return core.BudgetLine{}, fmt.Errorf("fund %q: %w", get(colFund), err)
	}
	budgeted, err := core.ParseAmount(get(colBudgeted))
	if err != nil {
		return core.BudgetLine{}, fmt.Errorf("budgeted: %w", err)
	}
	actual := decimal.Zero
	if raw := get(colActual); raw != "" {
		if actual, err = core.ParseAmount(raw); err != nil {
			return core.BudgetLine{}, fmt.Errorf("actual: %w", err)
		}
	}

	line := core.BudgetLine{
		Entry: core.BudgetEntry{
			FiscalYear:    year,
			AccountNumber: get(colAccount),
			Description:   get(colDescription),
			Fund:          fund,
			Budgeted:      budgeted,
			Actual:        actual,
		},
		ParentAccountNumber: get(colParent),
	}
	if line.ParentAccountNumber == line.Entry.AccountNumber {
		line.ParentAccountNumber = ""
	}
	if err := line.Entry.Validate(); err != nil {
		return core.BudgetLine{}, err
	}
	return line, nil
}

// parseYear accepts "2025", "FY 2025" and "FY2025".
func parseYear(s string) (int, error) {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && strings.EqualFold(s[:2], "fy") {
		s = strings.TrimSpace(s[2:])
	}
	y, err := strconv.Atoi(s)
	if err != nil || y <= 0 {
		return 0, fmt.Errorf("invalid fiscal year %q", s)
	}
	return y, nil
}

func (im *Importer) parseEnterprises(ctx context.Context, rows [][]string) ([]core.EnterpriseRecord, int, error) {
	idx, start := headerIndex(rows, enterpriseHeaders)
	if idx == nil {
		return nil, 0, nil
	}
	if _, ok := idx[entName]; !ok {
		return nil, 0, fmt.Errorf("%w: Name", ErrMissingColumns)
	}

	var out []core.EnterpriseRecord
	skipped := 0
	for i := start; i < len(rows); i++ {
		row := rows[i]
		if blank(row) {
			continue
		}
		rec, err := parseEnterpriseRow(row, idx)
		if err != nil {
			skipped++
			im.logger.WarnContext(ctx, "Skipping enterprise row",
				"row", i+1,
				applog.FieldError, err)
			continue
		}
		out = append(out, rec)
	}
	return out, skipped, nil
}

func parseEnterpriseRow(row []string, idx map[column]int) (core.EnterpriseRecord, error) {
	get := func(c column) string {
		j, ok := idx[c]
		if !ok || j >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[j])
	}
	rec := core.EnterpriseRecord{Name: get(entName)}

	if raw := get(entCitizens); raw != "" {
		n, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
		if err != nil {
			return rec, fmt.Errorf("citizens %q: %w", raw, err)
		}
		rec.CitizenCount = int(n)
	}

	amounts := []struct {
		col  column
		name string
		dst  *decimal.Decimal
	}{
		{entRate, "current rate", &rec.CurrentRate},
		{entRevenue, "monthly revenue", &rec.MonthlyRevenue},
		{entExpenses, "monthly expenses", &rec.MonthlyExpenses},
		{entBreakEven, "break-even rate", &rec.BreakEvenRate},
	}
	for _, a := range amounts {
		raw := get(a.col)
		if raw == "" {
			continue
		}
		d, err := core.ParseAmount(raw)
		if err != nil {
			return rec, fmt.Errorf("%s: %w", a.name, err)
		}
		*a.dst = d
	}
	return rec, rec.Validate()
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
