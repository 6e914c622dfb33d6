package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"fundledger/internal/core"
	applog "fundledger/internal/log"
	"fundledger/internal/ports"
)

// DefaultSheetBase is the report tab name before the year prefix.
const DefaultSheetBase = "Budget Report"

// Options configure a ReportWriter. OAuth user credentials win when an
// OAuth client is set. Otherwise CredentialsJSON wins over CredentialsFile,
// and GOOGLE_APPLICATION_CREDENTIALS is the last fallback.
type Options struct {
	SpreadsheetID   string
	SheetBase       string
	CredentialsJSON string
	CredentialsFile string

	OAuthClientJSON string
	OAuthClientFile string
	OAuthTokenJSON  string
	OAuthTokenFile  string
}

// ReportWriter writes budget reports into a Google spreadsheet, one tab per
// fiscal year.
type ReportWriter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
	logger        *applog.Logger
}

var _ ports.ReportPublisher = (*ReportWriter)(nil)

func NewReportWriter(ctx context.Context, opts Options, logger *applog.Logger) (*ReportWriter, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if logger == nil {
		logger = applog.Discard()
	}
	svc, err := newSheetsService(ctx, opts, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewReportWriterWithService(svc, opts, logger), nil
}

// NewReportWriterWithService wraps an existing service.
func NewReportWriterWithService(svc *gsheet.Service, opts Options, logger *applog.Logger) *ReportWriter {
	if logger == nil {
		logger = applog.Discard()
	}
	base := strings.TrimSpace(opts.SheetBase)
	if base == "" {
		base = DefaultSheetBase
	}
	return &ReportWriter{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(opts.SpreadsheetID),
		sheetBase:     base,
		logger:        logger.WithComponent(applog.ComponentSheets),
	}
}

// newSheetsService initializes a Sheets service from OAuth user credentials
// or a service account.
func newSheetsService(ctx context.Context, opts Options, logger *applog.Logger) (*gsheet.Service, error) {
	ts, err := oauthTokenSource(ctx, opts)
	if err != nil {
		return nil, err
	}
	if ts != nil {
		logger.DebugContext(ctx, "Using OAuth user credentials")
		svc, err := gsheet.NewService(ctx, goption.WithTokenSource(ts))
		if err != nil {
			return nil, fmt.Errorf("create sheets service: %w", err)
		}
		return svc, nil
	}

	inline := strings.TrimSpace(opts.CredentialsJSON)
	file := strings.TrimSpace(opts.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case inline != "":
		logger.DebugContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(inline)
	case file != "":
		logger.DebugContext(ctx, "Reading credentials from file", applog.FieldFilePath, file)
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing credentials (set GOOGLE_OAUTH_CLIENT_JSON with a token, GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// SheetName is the tab a report for year is written to.
func (w *ReportWriter) SheetName(year int) string {
	return yearPrefixedName(w.sheetBase, year)
}

// PublishReport replaces the contents of the year's tab with report and
// returns the written range.
func (w *ReportWriter) PublishReport(ctx context.Context, report core.BudgetReport) (string, error) {
	if w.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	sheet := w.SheetName(report.FiscalYear)

	if err := w.ensureSheet(ctx, sheet); err != nil {
		return "", err
	}

	quoted := quoteSheet(sheet)
	if _, err := w.svc.Spreadsheets.Values.Clear(w.spreadsheetID, quoted, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear %s: %w", sheet, err)
	}

	values := reportValues(report)
	rng := fmt.Sprintf("%s!A1:%s%d", quoted, columnName(width(values)), len(values))
	resp, err := w.svc.Spreadsheets.Values.Update(w.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("write %s: %w", rng, err)
	}

	ref := rng
	if resp != nil && resp.UpdatedRange != "" {
		ref = resp.UpdatedRange
	}
	w.logger.InfoContext(ctx, "Report published",
		applog.FieldFiscalYear, report.FiscalYear,
		applog.FieldSheetsRef, ref,
		"rows", len(values))
	return ref, nil
}

func (w *ReportWriter) ensureSheet(ctx context.Context, sheet string) error {
	ss, err := w.svc.Spreadsheets.Get(w.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == sheet {
			return nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{Title: sheet},
			},
		}},
	}
	if _, err := w.svc.Spreadsheets.BatchUpdate(w.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", sheet, err)
	}
	w.logger.InfoContext(ctx, "Created report sheet", "sheet", sheet)
	return nil
}
