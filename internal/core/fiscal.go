package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const fiscalYearPrefix = "FY"

// ParseFiscalYear extracts the year from a label such as "FY 2025" or
// "fy2025". Labels that do not parse to a positive year resolve to the
// calendar year of now.
func ParseFiscalYear(label string, now time.Time) int {
	s := strings.TrimSpace(label)
	if len(s) >= len(fiscalYearPrefix) && strings.EqualFold(s[:len(fiscalYearPrefix)], fiscalYearPrefix) {
		s = s[len(fiscalYearPrefix):]
	}
	s = strings.TrimSpace(s)
	year, err := strconv.Atoi(s)
	if err != nil || year <= 0 {
		return now.Year()
	}
	return year
}

// FormatFiscalYear renders the label ParseFiscalYear accepts.
func FormatFiscalYear(year int) string {
	return fmt.Sprintf("%s %d", fiscalYearPrefix, year)
}
