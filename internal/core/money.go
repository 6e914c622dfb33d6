// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from strings
// as they appear in workbooks and on the command line.
package core

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user-entered amount to a decimal rounded to cents.
//
// It accepts dot (12.34) and comma (12,34) decimal separators, an optional
// currency sign and comma thousands separators in complete groups of three.
// A comma followed by three digits is always a thousands separator. Rounding is half-up on the third decimal place. Negative values
// are rejected; zero is allowed because budget lines may be empty.
//
// Examples:
//
//	ParseAmount("12.34")     -> 12.34
//	ParseAmount("12,34")     -> 12.34
//	ParseAmount("$1,250.50") -> 1250.50
//	ParseAmount("1,250")     -> 1250.00
//	ParseAmount("1.250,50")  -> error
//	ParseAmount("12.345")    -> 12.35
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimPrefix(s, "€")
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "(") {
		return decimal.Zero, ErrNegativeAmount
	}
	s = strings.TrimPrefix(s, "+")

	s, ok := normalizeSeparators(s)
	if !ok {
		return decimal.Zero, ErrInvalidAmount
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if d.IsNegative() {
		return decimal.Zero, ErrNegativeAmount
	}
	return d.Round(2), nil
}

var (
	// 1,250 and 1,250,000: commas only between complete groups of three
	groupedInt = regexp.MustCompile(`^\d{1,3}(,\d{3})+$`)
	// 12,34 and 0,5
	commaDecimal = regexp.MustCompile(`^\d+,\d{1,2}$`)
)

// normalizeSeparators rewrites s into dot-decimal form without grouping.
// Mixed or ambiguous separator layouts such as 1.250,50 or 1,2,3 are
// rejected rather than guessed.
func normalizeSeparators(s string) (string, bool) {
	if strings.Count(s, ".") > 1 {
		return "", false
	}
	if !strings.Contains(s, ",") {
		return s, true
	}

	intPart, frac, hasDot := strings.Cut(s, ".")
	if hasDot && strings.Contains(frac, ",") {
		return "", false
	}
	if groupedInt.MatchString(intPart) {
		s = strings.ReplaceAll(intPart, ",", "")
		if hasDot {
			s += "." + frac
		}
		return s, true
	}
	if !hasDot && commaDecimal.MatchString(s) {
		return strings.Replace(s, ",", ".", 1), true
	}
	return "", false
}

// FormatAmount renders d with two decimals and thousands separators.
func FormatAmount(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + "." + frac
	if neg {
		return "-" + out
	}
	return out
}
