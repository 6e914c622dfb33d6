package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"fundledger/internal/core"
	"fundledger/internal/dispatch"
	"fundledger/internal/events"
	applog "fundledger/internal/log"
	"fundledger/internal/ports"
)

// ErrImportInProgress is returned by Run while another run is active.
var ErrImportInProgress = errors.New("import already in progress")

// Progress checkpoints reported by ImportFlow.
const (
	ProgressStarted          = 10
	ProgressFileValidated    = 20
	ProgressOptionsValidated = 30
	ProgressPreValidated     = 40
	ProgressImporting        = 50
	ProgressImported         = 90
	ProgressComplete         = 100
)

const (
	minFiscalYear = 1900
	maxFiscalYear = 2200
)

// ImportOptions are the user's choices for one import run.
type ImportOptions struct {
	FilePath        string
	CreateNewPeriod bool
	FiscalYear      int
	ReplaceExisting bool
	SheetName       string
}

// ImportStatus is the observable state of an import run.
type ImportStatus struct {
	RunID      string
	Progress   int
	Lines      []string
	ErrorCount int
	Cancelled  bool
	Running    bool
}

// ImportResult is returned by Run.
type ImportResult struct {
	Status  ImportStatus
	Summary ports.ImportSummary
}

// ImportFlow runs a workbook import through fixed validation stages and
// reports progress after each one.
type ImportFlow struct {
	importer   ports.Importer
	publisher  events.Publisher
	dispatcher dispatch.Dispatcher
	logger     *applog.Logger
	source     string

	busy      atomic.Bool
	cancelled atomic.Bool

	mu        sync.Mutex
	status    ImportStatus
	observers []func(ImportStatus)
}

func NewImportFlow(importer ports.Importer, publisher events.Publisher, dispatcher dispatch.Dispatcher, logger *applog.Logger) *ImportFlow {
	if publisher == nil {
		publisher = events.Discard
	}
	if dispatcher == nil {
		dispatcher = dispatch.Immediate{}
	}
	if logger == nil {
		logger = applog.Discard()
	}
	return &ImportFlow{
		importer:   importer,
		publisher:  publisher,
		dispatcher: dispatcher,
		logger:     logger,
		source:     uuid.NewString(),
	}
}

// SetSource sets the id stamped on published messages.
func (f *ImportFlow) SetSource(id string) {
	f.source = id
}

// OnProgress registers fn to receive the status after every change.
func (f *ImportFlow) OnProgress(fn func(ImportStatus)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observers = append(f.observers, fn)
}

// Status returns a copy of the current status.
func (f *ImportFlow) Status() ImportStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyStatus(f.status)
}

// Cancel asks the running import to stop at the next stage boundary. It
// does not interrupt an importer call that is already under way.
func (f *ImportFlow) Cancel() {
	if !f.busy.Load() {
		return
	}
	f.cancelled.Store(true)
	f.update(func(s *ImportStatus) {
		s.Cancelled = true
		s.Lines = append(s.Lines, "Cancellation requested")
	})
}

// Run executes the import stages in order. Any failing stage resets progress
// to zero, records the error count and stops the run.
func (f *ImportFlow) Run(ctx context.Context, opts ImportOptions) (ImportResult, error) {
	if !f.busy.CompareAndSwap(false, true) {
		return ImportResult{Status: f.Status()}, ErrImportInProgress
	}
	defer f.busy.Store(false)
	f.cancelled.Store(false)

	runID := uuid.NewString()
	logger := f.logger.With(applog.FieldRunID, runID, applog.FieldFilePath, opts.FilePath)
	f.update(func(s *ImportStatus) {
		*s = ImportStatus{RunID: runID, Running: true}
	})

	f.advance(ProgressStarted, "Starting import of "+opts.FilePath)

	if err := validateImportFile(opts.FilePath); err != nil {
		return f.abort(ctx, logger, "file validation", err, 1)
	}
	f.advance(ProgressFileValidated, "File validated")

	if verr := validateImportOptions(opts); verr != nil {
		return f.abort(ctx, logger, "option validation", verr, len(verr))
	}
	f.advance(ProgressOptionsValidated, "Options validated")

	if f.cancelled.Load() {
		return f.stopCancelled(ctx, logger)
	}
	// Reserved for checks that need the workbook contents before writing.
	f.advance(ProgressPreValidated, "Pre-validation complete")

	if f.cancelled.Load() {
		return f.stopCancelled(ctx, logger)
	}
	f.advance(ProgressImporting, "Importing data")

	// Once started, the importer runs to completion; Cancel and a cancelled
	// ctx only take effect between stages.
	importCtx := context.WithoutCancel(ctx)
	summary, err := f.importer.Import(importCtx, opts.FilePath, ports.ImportRequest{
		FiscalYear:      opts.FiscalYear,
		CreateNewPeriod: opts.CreateNewPeriod,
		ReplaceExisting: opts.ReplaceExisting,
		SheetName:       opts.SheetName,
	})
	if err != nil {
		return f.abort(ctx, logger, "import", err, 1)
	}
	f.advance(ProgressImported, fmt.Sprintf("Imported %d budget lines and %d enterprises",
		summary.BudgetLines, summary.EnterpriseCount))

	// Reserved for consistency checks against the stored data.
	f.advance(ProgressComplete, "Import complete")
	f.update(func(s *ImportStatus) { s.Running = false })

	f.notify(importCtx, logger, summary)

	logger.InfoContext(ctx, "Import finished",
		"budget_lines", summary.BudgetLines,
		"enterprises", summary.EnterpriseCount,
		"skipped_rows", summary.SkippedRows)

	return ImportResult{Status: f.Status(), Summary: summary}, nil
}

func (f *ImportFlow) notify(ctx context.Context, logger *applog.Logger, summary ports.ImportSummary) {
	var msgs []events.Message
	for _, year := range summary.FiscalYears {
		msgs = append(msgs, events.NewBudgetUpdated(f.source, year, 0))
	}
	if summary.EnterpriseCount > 0 {
		msgs = append(msgs, events.NewEnterpriseChanged(f.source))
	}
	for _, m := range msgs {
		if err := f.publisher.Publish(ctx, m); err != nil {
			logger.WarnContext(ctx, "Failed to publish import notification",
				applog.FieldMessageKind, m.Kind,
				applog.FieldError, err)
		}
	}
}

func (f *ImportFlow) advance(progress int, line string) {
	f.update(func(s *ImportStatus) {
		s.Progress = progress
		s.Lines = append(s.Lines, line)
	})
}

func (f *ImportFlow) abort(ctx context.Context, logger *applog.Logger, stage string, err error, count int) (ImportResult, error) {
	f.update(func(s *ImportStatus) {
		s.Progress = 0
		s.ErrorCount = count
		s.Running = false
		s.Lines = append(s.Lines, fmt.Sprintf("Import failed during %s: %v", stage, err))
	})
	logger.Failure(ctx, "Import failed", err, applog.FieldStage, stage)
	return ImportResult{Status: f.Status()}, fmt.Errorf("%s: %w", stage, err)
}

func (f *ImportFlow) stopCancelled(ctx context.Context, logger *applog.Logger) (ImportResult, error) {
	f.update(func(s *ImportStatus) {
		s.Progress = 0
		s.Running = false
		s.Lines = append(s.Lines, "Import cancelled")
	})
	logger.InfoContext(ctx, "Import cancelled")
	return ImportResult{Status: f.Status()}, context.Canceled
}

// update mutates the status under the lock and hands a copy to observers
// through the dispatcher.
func (f *ImportFlow) update(mutate func(*ImportStatus)) {
	f.mu.Lock()
	mutate(&f.status)
	snapshot := copyStatus(f.status)
	observers := slices.Clone(f.observers)
	f.mu.Unlock()

	if len(observers) == 0 {
		return
	}
	f.dispatcher.Dispatch(func() {
		for _, fn := range observers {
			fn(snapshot)
		}
	})
}

func copyStatus(s ImportStatus) ImportStatus {
	s.Lines = append([]string(nil), s.Lines...)
	return s
}

func validateImportFile(path string) error {
	if path == "" {
		return errors.New("no file selected")
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file does not exist: %s", path)
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file: %s", path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("file is empty: %s", path)
	}
	return nil
}

func validateImportOptions(opts ImportOptions) core.ValidationErrors {
	v := core.ValidationErrors{}
	if opts.CreateNewPeriod && opts.FiscalYear == 0 {
		v.Add("fiscal_year", "a new budget period requires a fiscal year")
	}
	if opts.FiscalYear != 0 && (opts.FiscalYear < minFiscalYear || opts.FiscalYear > maxFiscalYear) {
		v.Add("fiscal_year", fmt.Sprintf("fiscal year %d is out of range %d-%d", opts.FiscalYear, minFiscalYear, maxFiscalYear))
	}
	if len(v) == 0 {
		return nil
	}
	return v
}
