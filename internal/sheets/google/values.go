package google

import (
	"fmt"
	"strconv"
	"strings"

	"fundledger/internal/core"
)

// reportValues lays the report out top to bottom: title, generation time,
// then each section's name, header and rows with a blank row between.
func reportValues(r core.BudgetReport) [][]any {
	values := [][]any{
		{r.Title},
		{"Generated", r.GeneratedAt.UTC().Format("2006-01-02 15:04:05")},
	}
	for _, s := range r.Sections {
		values = append(values, []any{}, []any{s.Name}, toRow(s.Header))
		for _, row := range s.Rows {
			values = append(values, toRow(row))
		}
	}
	return values
}

func toRow(cells []string) []any {
	out := make([]any, len(cells))
	for i, c := range cells {
		out[i] = c
	}
	return out
}

func width(values [][]any) int {
	w := 1
	for _, row := range values {
		if len(row) > w {
			w = len(row)
		}
	}
	return w
}

// columnName converts a 1-based column number to A1 letters.
func columnName(n int) string {
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
