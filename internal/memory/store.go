// Package memory is an in-process store for budget entries and enterprises,
// used for local runs and tests.
package memory

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"fundledger/internal/core"
	"fundledger/internal/ports"
)

const (
	BudgetSeedFile     = "seed_budget.csv"
	EnterpriseSeedFile = "seed_enterprises.csv"
)

type Store struct {
	mu          sync.Mutex
	nextID      int64
	entries     map[int64]core.BudgetEntry
	enterprises map[string]core.EnterpriseRecord
}

var (
	_ ports.BudgetRepository     = (*Store)(nil)
	_ ports.EnterpriseRepository = (*Store)(nil)
	_ ports.BudgetWriter         = (*Store)(nil)
	_ ports.EnterpriseWriter     = (*Store)(nil)
)

func New() *Store {
	return &Store{
		entries:     make(map[int64]core.BudgetEntry),
		enterprises: make(map[string]core.EnterpriseRecord),
	}
}

// NewFromFiles seeds a store from the CSV files in base. Missing files leave
// the store empty; malformed ones are an error.
func NewFromFiles(base string) (*Store, error) {
	s := New()
	ctx := context.Background()

	// ids follow file order: years are imported in order of first appearance
	years, byYear, err := readBudgetSeed(filepath.Join(base, BudgetSeedFile))
	if err != nil {
		return nil, err
	}
	for _, y := range years {
		if _, err := s.ImportBudget(ctx, y, byYear[y], false); err != nil {
			return nil, err
		}
	}

	records, err := readEnterpriseSeed(filepath.Join(base, EnterpriseSeedFile))
	if err != nil {
		return nil, err
	}
	if _, err := s.UpsertEnterprises(ctx, records); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) GetAll(_ context.Context) ([]core.EnterpriseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.EnterpriseRecord, 0, len(s.enterprises))
	for _, r := range s.enterprises {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetByFiscalYear(_ context.Context, year int) ([]core.BudgetEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byYear(year), nil
}

func (s *Store) GetHierarchy(ctx context.Context, year int) ([]core.BudgetEntry, error) {
	entries, _ := s.GetByFiscalYear(ctx, year)
	return core.OrderHierarchy(entries), nil
}

func (s *Store) Update(_ context.Context, e core.BudgetEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[e.ID]; !ok {
		return ports.ErrNotFound
	}
	s.entries[e.ID] = e
	return nil
}

// ImportBudget upserts lines by account number within year.
func (s *Store) ImportBudget(_ context.Context, year int, lines []core.BudgetLine, replace bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if replace {
		for id, e := range s.entries {
			if e.FiscalYear == year {
				delete(s.entries, id)
			}
		}
	}

	ids := make(map[string]int64)
	for _, e := range s.entries {
		if e.FiscalYear == year {
			ids[e.AccountNumber] = e.ID
		}
	}
	for _, l := range lines {
		e := l.Entry
		e.FiscalYear = year
		e.ParentID = nil
		if id, ok := ids[e.AccountNumber]; ok {
			e.ID = id
		} else {
			s.nextID++
			e.ID = s.nextID
			ids[e.AccountNumber] = e.ID
		}
		s.entries[e.ID] = e
	}
	for _, l := range lines {
		if l.ParentAccountNumber == "" {
			continue
		}
		id := ids[l.Entry.AccountNumber]
		e := s.entries[id]
		if pid, ok := ids[l.ParentAccountNumber]; ok {
			e.ParentID = &pid
		}
		s.entries[id] = e
	}
	return len(lines), nil
}

func (s *Store) UpsertEnterprises(_ context.Context, records []core.EnterpriseRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if existing, ok := s.enterprises[r.Name]; ok {
			r.ID = existing.ID
		} else {
			r.ID = int64(len(s.enterprises) + 1)
		}
		s.enterprises[r.Name] = r
	}
	return len(records), nil
}

func (s *Store) Close() error { return nil }

func (s *Store) byYear(year int) []core.BudgetEntry {
	var out []core.BudgetEntry
	for _, e := range s.entries {
		if e.FiscalYear == year {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountNumber < out[j].AccountNumber })
	return out
}

// seed budget columns: fiscal_year, account_number, description, fund,
// budgeted, actual, parent_account
func readBudgetSeed(path string) ([]int, map[int][]core.BudgetLine, error) {
	rows, err := readCSV(path)
	if err != nil || rows == nil {
		return nil, nil, err
	}
	var years []int
	out := make(map[int][]core.BudgetLine)
	for i, row := range rows {
		if len(row) < 6 {
			return nil, nil, fmt.Errorf("%s line %d: want at least 6 columns, got %d", path, i+2, len(row))
		}
		year, err := strconv.Atoi(strings.TrimSpace(row[0]))
		if err != nil {
			return nil, nil, fmt.Errorf("%s line %d: fiscal year: %w", path, i+2, err)
		}
		fund, err := core.ParseFundType(row[3])
		if err != nil {
			return nil, nil, fmt.Errorf("%s line %d: %w", path, i+2, err)
		}
		budgeted, err := core.ParseAmount(row[4])
		if err != nil {
			return nil, nil, fmt.Errorf("%s line %d: budgeted: %w", path, i+2, err)
		}
		actual, err := core.ParseAmount(row[5])
		if err != nil {
			return nil, nil, fmt.Errorf("%s line %d: actual: %w", path, i+2, err)
		}
		l := core.BudgetLine{Entry: core.BudgetEntry{
			FiscalYear:    year,
			AccountNumber: strings.TrimSpace(row[1]),
			Description:   strings.TrimSpace(row[2]),
			Fund:          fund,
			Budgeted:      budgeted,
			Actual:        actual,
		}}
		if len(row) > 6 {
			l.ParentAccountNumber = strings.TrimSpace(row[6])
		}
		if _, seen := out[year]; !seen {
			years = append(years, year)
		}
		out[year] = append(out[year], l)
	}
	return years, out, nil
}

// seed enterprise columns: name, citizen_count, current_rate,
// monthly_revenue, monthly_expenses, break_even_rate
func readEnterpriseSeed(path string) ([]core.EnterpriseRecord, error) {
	rows, err := readCSV(path)
	if err != nil || rows == nil {
		return nil, err
	}
	out := make([]core.EnterpriseRecord, 0, len(rows))
	for i, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("%s line %d: want 6 columns, got %d", path, i+2, len(row))
		}
		citizens, err := strconv.Atoi(strings.TrimSpace(row[1]))
		if err != nil {
			return nil, fmt.Errorf("%s line %d: citizen count: %w", path, i+2, err)
		}
		r := core.EnterpriseRecord{Name: strings.TrimSpace(row[0]), CitizenCount: citizens}
		amounts := []*decimal.Decimal{&r.CurrentRate, &r.MonthlyRevenue, &r.MonthlyExpenses, &r.BreakEvenRate}
		for j, dst := range amounts {
			d, err := core.ParseAmount(row[2+j])
			if err != nil {
				return nil, fmt.Errorf("%s line %d column %d: %w", path, i+2, 3+j, err)
			}
			*dst = d
		}
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, i+2, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// readCSV returns the data rows after the header, or nil when the file does
// not exist.
func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comment = '#'
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	if _, err := r.Read(); err != nil {
		if err == io.EOF {
			return [][]string{}, nil
		}
		return nil, fmt.Errorf("read %s header: %w", path, err)
	}
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}
