package ports

import (
	"context"
	"errors"

	"fundledger/internal/core"
)

// ErrNotFound is returned when a repository has no row for the given id.
var ErrNotFound = errors.New("not found")

// Ports for outbound adapters.
type (
	EnterpriseRepository interface {
		GetAll(ctx context.Context) ([]core.EnterpriseRecord, error)
	}

	BudgetRepository interface {
		// GetByFiscalYear returns the entries for year ordered by account number.
		GetByFiscalYear(ctx context.Context, year int) ([]core.BudgetEntry, error)
		// GetHierarchy returns the entries for year with every parent
		// preceding its children.
		GetHierarchy(ctx context.Context, year int) ([]core.BudgetEntry, error)
		// Update writes back an edited entry. Returns ErrNotFound for an
		// unknown id.
		Update(ctx context.Context, entry core.BudgetEntry) error
	}

	// BudgetWriter stores imported budget lines for a fiscal year.
	BudgetWriter interface {
		// ImportBudget inserts lines under year. When replace is set the
		// year's existing entries are removed first.
		ImportBudget(ctx context.Context, year int, lines []core.BudgetLine, replace bool) (int, error)
	}

	EnterpriseWriter interface {
		// UpsertEnterprises inserts or updates records keyed by name.
		UpsertEnterprises(ctx context.Context, records []core.EnterpriseRecord) (int, error)
	}

	// Importer parses an external file and stores what it finds.
	Importer interface {
		Import(ctx context.Context, path string, req ImportRequest) (ImportSummary, error)
	}

	// ReportPublisher writes a formatted report to an external destination.
	ReportPublisher interface {
		PublishReport(ctx context.Context, report core.BudgetReport) (ref string, err error)
	}
)

// ImportRequest carries the validated import options to an Importer.
type ImportRequest struct {
	// FiscalYear is the target year. Zero means the workbook must name it.
	FiscalYear int
	// CreateNewPeriod writes every row under FiscalYear, ignoring any year
	// column, and starts the period from scratch.
	CreateNewPeriod bool
	// ReplaceExisting removes the entries of each imported year before
	// inserting.
	ReplaceExisting bool
	// SheetName selects the budget sheet. Empty picks the first sheet.
	SheetName string
}

// ImportSummary reports what an Importer stored.
type ImportSummary struct {
	FiscalYears     []int
	BudgetLines     int
	EnterpriseCount int
	SkippedRows     int
}
