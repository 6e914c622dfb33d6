package core

import (
	"testing"
	"time"
)

func TestParseFiscalYear(t *testing.T) {
	now := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		label string
		want  int
	}{
		{"FY 2025", 2025},
		{"FY2024", 2024},
		{"fy 2023", 2023},
		{"  FY   2030 ", 2030},
		{"2027", 2027},
		{"FY twenty", 2026},
		{"FY", 2026},
		{"", 2026},
		{"FY -5", 2026},
		{"FY 0", 2026},
		{"Fiscal 2025", 2026},
	}
	for _, tc := range cases {
		if got := ParseFiscalYear(tc.label, now); got != tc.want {
			t.Errorf("ParseFiscalYear(%q) = %d, want %d", tc.label, got, tc.want)
		}
	}
}

func TestFormatFiscalYearRoundTrip(t *testing.T) {
	label := FormatFiscalYear(2025)
	if label != "FY 2025" {
		t.Fatalf("unexpected label %q", label)
	}
	if ParseFiscalYear(label, time.Now()) != 2025 {
		t.Fatalf("label did not parse back")
	}
}
