package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1.00", true},
		{"0", "0.00", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"$1,250.50", "1250.50", true},
		{"1.005", "1.01", true}, // half-up rounding
		{" 2.50 ", "2.50", true},
		{"+3", "3.00", true},
		{"-1", "", false},
		{"(5.00)", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
		{"1,250", "1250.00", true},
		{"1,250,000", "1250000.00", true},
		{"12,345.6", "12345.60", true},
		{"0,5", "0.50", true},
		{"1.250,50", "", false},
		{"1,2,3", "", false},
		{"1234,567", "", false},
		{"12,3456", "", false},
		{",50", "", false},
		{"1.250.000", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.StringFixed(2) != tc.out {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got.StringFixed(2), err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	cases := map[string]string{
		"0":          "0.00",
		"12.5":       "12.50",
		"1234":       "1,234.00",
		"1234567.89": "1,234,567.89",
		"-98765.4":   "-98,765.40",
	}
	for in, want := range cases {
		if got := FormatAmount(decimal.RequireFromString(in)); got != want {
			t.Errorf("FormatAmount(%s) = %s, want %s", in, got, want)
		}
	}
}
