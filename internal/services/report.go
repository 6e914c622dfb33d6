package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"fundledger/internal/core"
)

const reportTitle = "Budget Report"

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#3AA99F"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#575653"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#D14D41"))
)

// BuildReport lays out a snapshot as titled tables.
func BuildReport(s core.BudgetSnapshot, generatedAt time.Time) core.BudgetReport {
	over := OverBudget(s.Accounts)

	summary := core.ReportSection{
		Name:   "Summary",
		Header: []string{"Measure", "Value"},
		Rows: [][]string{
			{"Total Budget", core.FormatAmount(s.Totals.TotalBudget)},
			{"Total Actual", core.FormatAmount(s.Totals.TotalActual)},
			{"Variance", core.FormatAmount(s.Totals.Variance)},
			{"Accounts", strconv.Itoa(len(s.Accounts))},
			{"Over Budget", strconv.Itoa(len(over))},
			{"Enterprise Revenue", core.FormatAmount(s.EnterpriseTotals.TotalRevenue)},
			{"Enterprise Expenses", core.FormatAmount(s.EnterpriseTotals.TotalExpenses)},
			{"Net Balance", core.FormatAmount(s.EnterpriseTotals.NetBalance)},
			{"Citizens Served", strconv.Itoa(s.EnterpriseTotals.TotalCitizens)},
		},
	}

	enterprises := core.ReportSection{
		Name:   "Enterprises",
		Header: []string{"Enterprise", "Citizens", "Rate", "Revenue", "Expenses", "Balance", "Break-even"},
	}
	for _, e := range s.Enterprises {
		enterprises.Rows = append(enterprises.Rows, []string{
			e.Name,
			strconv.Itoa(e.CitizenCount),
			core.FormatAmount(e.CurrentRate),
			core.FormatAmount(e.MonthlyRevenue),
			core.FormatAmount(e.MonthlyExpenses),
			core.FormatAmount(e.MonthlyBalance),
			core.FormatAmount(e.BreakEvenRate),
		})
	}

	funds := core.ReportSection{
		Name:   "Fund Distribution",
		Header: []string{"Fund", "Accounts", "Budgeted", "Actual", "Variance", "Share", "Used"},
	}
	for i, b := range s.Distribution {
		used := 0.0
		variance := b.Budgeted.Sub(b.Actual)
		if i < len(s.Comparison) && s.Comparison[i].Fund == b.Fund {
			used = s.Comparison[i].Utilization
			variance = s.Comparison[i].Variance
		}
		funds.Rows = append(funds.Rows, []string{
			b.Fund.Label(),
			strconv.Itoa(b.AccountCount),
			core.FormatAmount(b.Budgeted),
			core.FormatAmount(b.Actual),
			core.FormatAmount(variance),
			FormatPercent(b.Share),
			FormatPercent(used),
		})
	}

	overSection := core.ReportSection{
		Name:   "Over Budget Accounts",
		Header: []string{"Account", "Description", "Fund", "Budgeted", "Actual", "Variance"},
	}
	for _, a := range over {
		overSection.Rows = append(overSection.Rows, []string{
			a.AccountNumber,
			a.Description,
			a.Fund.Label(),
			core.FormatAmount(a.Budgeted),
			core.FormatAmount(a.Actual),
			core.FormatAmount(a.Variance()),
		})
	}

	return core.BudgetReport{
		Title:       fmt.Sprintf("%s %s", reportTitle, core.FormatFiscalYear(s.FiscalYear)),
		FiscalYear:  s.FiscalYear,
		GeneratedAt: generatedAt,
		Sections:    []core.ReportSection{summary, enterprises, funds, overSection},
	}
}

// FormatPercent renders a fraction as a percentage with one decimal.
func FormatPercent(f float64) string {
	return fmt.Sprintf("%.1f%%", f*100)
}

// FormatReport renders a report as bordered plain-text tables.
func FormatReport(r core.BudgetReport) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(r.Title))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Generated " + r.GeneratedAt.Format("2006-01-02 15:04")))
	b.WriteString("\n\n")

	for _, s := range r.Sections {
		b.WriteString(headerStyle.Render(s.Name))
		b.WriteString("\n")
		if len(s.Rows) == 0 {
			b.WriteString(dimStyle.Render("  (none)"))
			b.WriteString("\n\n")
			continue
		}
		b.WriteString(renderTable(s.Header, s.Rows))
		b.WriteString("\n")
	}
	return b.String()
}

// FormatError renders a failure line in the report's style.
func FormatError(msg string) string {
	return warnStyle.Render(msg)
}

func renderTable(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}

	var b strings.Builder
	rule := func(left, mid, right string) {
		b.WriteString(dimStyle.Render(left))
		for i, w := range widths {
			b.WriteString(dimStyle.Render(strings.Repeat("─", w+2)))
			if i < len(widths)-1 {
				b.WriteString(dimStyle.Render(mid))
			}
		}
		b.WriteString(dimStyle.Render(right))
		b.WriteString("\n")
	}
	line := func(cells []string, style lipgloss.Style) {
		b.WriteString(dimStyle.Render("│"))
		for i, w := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			// first column left-aligned, numbers right-aligned
			align := lipgloss.Right
			if i == 0 {
				align = lipgloss.Left
			}
			b.WriteString(style.Padding(0, 1).Width(w + 2).Align(align).Render(cell))
			if i < len(widths)-1 {
				b.WriteString(dimStyle.Render("│"))
			}
		}
		b.WriteString(dimStyle.Render("│"))
		b.WriteString("\n")
	}

	rule("╭", "┬", "╮")
	line(header, headerStyle)
	rule("├", "┼", "┤")
	for _, row := range rows {
		line(row, lipgloss.NewStyle())
	}
	rule("╰", "┴", "╯")
	return b.String()
}
