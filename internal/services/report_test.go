package services

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundledger/internal/core"
)

func TestBuildReport(t *testing.T) {
	snap := BuildSnapshot(2025, []core.BudgetEntry{
		entry(1, 2025, "100", core.GeneralFund, "1500", "1600"),
		entry(2, 2025, "200", core.EnterpriseFund, "500", "100"),
	}, []core.EnterpriseRecord{enterprise("Water", 1200, "50000", "42000")})
	generated := time.Date(2025, 7, 1, 12, 30, 0, 0, time.UTC)

	report := BuildReport(snap, generated)

	assert.Equal(t, "Budget Report FY 2025", report.Title)
	assert.Equal(t, 2025, report.FiscalYear)
	assert.Equal(t, generated, report.GeneratedAt)
	require.Len(t, report.Sections, 4)

	names := make([]string, len(report.Sections))
	for i, s := range report.Sections {
		names[i] = s.Name
		for _, row := range s.Rows {
			assert.Len(t, row, len(s.Header), "section %s", s.Name)
		}
	}
	assert.Equal(t, []string{"Summary", "Enterprises", "Fund Distribution", "Over Budget Accounts"}, names)

	summary := report.Sections[0]
	assert.Equal(t, []string{"Total Budget", "2,000.00"}, summary.Rows[0])
	assert.Equal(t, []string{"Variance", "300.00"}, summary.Rows[2])

	funds := report.Sections[2]
	require.Len(t, funds.Rows, 2)
	assert.Equal(t, "75.0%", funds.Rows[0][5])
	assert.Equal(t, "25.0%", funds.Rows[1][5])
	assert.Equal(t, "20.0%", funds.Rows[1][6])

	over := report.Sections[3]
	require.Len(t, over.Rows, 1)
	assert.Equal(t, "100", over.Rows[0][0])
	assert.Equal(t, "-100.00", over.Rows[0][5])
}

func TestBuildReport_EmptySnapshot(t *testing.T) {
	report := BuildReport(core.BudgetSnapshot{FiscalYear: 2024}, time.Now())

	require.Len(t, report.Sections, 4)
	assert.Empty(t, report.Sections[1].Rows)
	assert.Empty(t, report.Sections[2].Rows)
	assert.Empty(t, report.Sections[3].Rows)
}

func TestFormatReport(t *testing.T) {
	snap := BuildSnapshot(2025, []core.BudgetEntry{
		entry(1, 2025, "100", core.GeneralFund, "1500", "1000"),
	}, nil)
	out := FormatReport(BuildReport(snap, time.Date(2025, 7, 1, 12, 30, 0, 0, time.UTC)))

	assert.Contains(t, out, "Budget Report FY 2025")
	assert.Contains(t, out, "Generated 2025-07-01 12:30")
	assert.Contains(t, out, "Total Budget")
	assert.Contains(t, out, "1,500.00")
	assert.Contains(t, out, "General Fund")
	assert.Contains(t, out, "(none)")
	assert.True(t, strings.Count(out, "╭") >= 2)
}

func TestRenderTable_WideCharactersStayAligned(t *testing.T) {
	out := renderTable(
		[]string{"Account", "Budgeted"},
		[][]string{
			{"水道事業", "1,000.00"},
			{"Café", "25.00"},
			{"Roads", "300.00"},
		})

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 6)
	want := lipgloss.Width(lines[0])
	for _, l := range lines {
		assert.Equal(t, want, lipgloss.Width(l), "line %q", l)
	}
	assert.Contains(t, out, "│ Roads    │")
	assert.Contains(t, out, "│    25.00 │")
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "0.0%", FormatPercent(0))
	assert.Equal(t, "33.3%", FormatPercent(1.0/3))
	assert.Equal(t, "100.0%", FormatPercent(1))
}
