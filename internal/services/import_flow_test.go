package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundledger/internal/core"
	"fundledger/internal/events"
	"fundledger/internal/ports"
)

type fakeImporter struct {
	summary ports.ImportSummary
	err     error
	calls   atomic.Int32
	req     ports.ImportRequest
	entered chan struct{}
	release chan struct{}
	ctxErr  error
}

func (f *fakeImporter) Import(ctx context.Context, path string, req ports.ImportRequest) (ports.ImportSummary, error) {
	f.calls.Add(1)
	f.req = req
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	f.ctxErr = ctx.Err()
	return f.summary, f.err
}

func writeWorkbook(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "budget.xlsx")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

type progressRecorder struct {
	mu   sync.Mutex
	seen []int
}

func (r *progressRecorder) record(s ImportStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.seen) == 0 || r.seen[len(r.seen)-1] != s.Progress {
		r.seen = append(r.seen, s.Progress)
	}
}

func TestImportFlow_Success(t *testing.T) {
	importer := &fakeImporter{summary: ports.ImportSummary{
		FiscalYears:     []int{2025},
		BudgetLines:     12,
		EnterpriseCount: 3,
	}}
	pub := &recordingPublisher{}
	flow := NewImportFlow(importer, pub, nil, nil)
	flow.SetSource("importer-1")
	rec := &progressRecorder{}
	flow.OnProgress(rec.record)

	result, err := flow.Run(context.Background(), ImportOptions{
		FilePath:        writeWorkbook(t, "data"),
		FiscalYear:      2025,
		ReplaceExisting: true,
		SheetName:       "Budget",
	})
	require.NoError(t, err)

	assert.Equal(t, ProgressComplete, result.Status.Progress)
	assert.Zero(t, result.Status.ErrorCount)
	assert.False(t, result.Status.Running)
	assert.NotEmpty(t, result.Status.RunID)
	assert.Equal(t, 12, result.Summary.BudgetLines)
	assert.Equal(t, []int{0, 10, 20, 30, 40, 50, 90, 100}, rec.seen)
	assert.Contains(t, result.Status.Lines, "Imported 12 budget lines and 3 enterprises")
	assert.Equal(t, "Import complete", result.Status.Lines[len(result.Status.Lines)-1])

	assert.Equal(t, ports.ImportRequest{FiscalYear: 2025, ReplaceExisting: true, SheetName: "Budget"}, importer.req)

	msgs := pub.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, events.KindBudgetUpdated, msgs[0].Kind)
	assert.Equal(t, 2025, msgs[0].FiscalYear)
	assert.Equal(t, "importer-1", msgs[0].Source)
	assert.Equal(t, events.KindEnterpriseChanged, msgs[1].Kind)
}

func TestImportFlow_NoEnterprisesSkipsEnterpriseNotification(t *testing.T) {
	importer := &fakeImporter{summary: ports.ImportSummary{FiscalYears: []int{2024, 2025}, BudgetLines: 2}}
	pub := &recordingPublisher{}
	flow := NewImportFlow(importer, pub, nil, nil)

	_, err := flow.Run(context.Background(), ImportOptions{FilePath: writeWorkbook(t, "x")})
	require.NoError(t, err)
	assert.Equal(t, []events.Kind{events.KindBudgetUpdated, events.KindBudgetUpdated}, pub.kinds())
}

func TestImportFlow_FileValidation(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		path string
	}{
		{"no file", ""},
		{"missing", filepath.Join(dir, "missing.xlsx")},
		{"directory", dir},
		{"zero length", writeWorkbook(t, "")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			importer := &fakeImporter{}
			pub := &recordingPublisher{}
			flow := NewImportFlow(importer, pub, nil, nil)

			result, err := flow.Run(context.Background(), ImportOptions{FilePath: tt.path})
			require.Error(t, err)

			assert.Zero(t, importer.calls.Load())
			assert.Zero(t, result.Status.Progress)
			assert.Equal(t, 1, result.Status.ErrorCount)
			assert.False(t, result.Status.Running)
			assert.Contains(t, result.Status.Lines[len(result.Status.Lines)-1], "Import failed during file validation")
			assert.Empty(t, pub.messages())
		})
	}
}

func TestImportFlow_OptionValidation(t *testing.T) {
	tests := []struct {
		name string
		opts ImportOptions
	}{
		{"new period without year", ImportOptions{CreateNewPeriod: true}},
		{"year too early", ImportOptions{FiscalYear: 1800}},
		{"year too late", ImportOptions{FiscalYear: 3000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			importer := &fakeImporter{}
			flow := NewImportFlow(importer, nil, nil, nil)
			tt.opts.FilePath = writeWorkbook(t, "x")

			result, err := flow.Run(context.Background(), tt.opts)

			var verr core.ValidationErrors
			require.ErrorAs(t, err, &verr)
			assert.True(t, verr.Has("fiscal_year"))
			assert.Zero(t, importer.calls.Load())
			assert.Zero(t, result.Status.Progress)
			assert.Equal(t, 1, result.Status.ErrorCount)
		})
	}
}

func TestImportFlow_ImporterFailure(t *testing.T) {
	importer := &fakeImporter{err: errors.New("sheet \"Budget\" not found")}
	pub := &recordingPublisher{}
	flow := NewImportFlow(importer, pub, nil, nil)

	result, err := flow.Run(context.Background(), ImportOptions{FilePath: writeWorkbook(t, "x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sheet \"Budget\" not found")
	assert.Zero(t, result.Status.Progress)
	assert.Equal(t, 1, result.Status.ErrorCount)
	assert.Empty(t, pub.messages())
	assert.Equal(t, result.Status, flow.Status())
}

func TestImportFlow_CancelAtStageBoundary(t *testing.T) {
	importer := &fakeImporter{}
	flow := NewImportFlow(importer, nil, nil, nil)
	flow.OnProgress(func(s ImportStatus) {
		if s.Progress == ProgressOptionsValidated && !s.Cancelled {
			flow.Cancel()
		}
	})

	result, err := flow.Run(context.Background(), ImportOptions{FilePath: writeWorkbook(t, "x")})
	require.ErrorIs(t, err, context.Canceled)

	assert.Zero(t, importer.calls.Load())
	assert.Zero(t, result.Status.Progress)
	assert.True(t, result.Status.Cancelled)
	assert.Contains(t, result.Status.Lines, "Cancellation requested")
	assert.Equal(t, "Import cancelled", result.Status.Lines[len(result.Status.Lines)-1])
}

func TestImportFlow_CancelDuringImportLetsItFinish(t *testing.T) {
	importer := &fakeImporter{
		summary: ports.ImportSummary{FiscalYears: []int{2025}, BudgetLines: 1},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	flow := NewImportFlow(importer, nil, nil, nil)
	path := writeWorkbook(t, "x")

	type outcome struct {
		result ImportResult
		err    error
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan outcome, 1)
	go func() {
		r, err := flow.Run(ctx, ImportOptions{FilePath: path})
		done <- outcome{r, err}
	}()

	<-importer.entered
	flow.Cancel()
	cancel()
	close(importer.release)
	out := <-done

	require.NoError(t, out.err)
	assert.NoError(t, importer.ctxErr, "importer must not see the caller's cancellation")
	assert.Equal(t, int32(1), importer.calls.Load())
	assert.Equal(t, ProgressComplete, out.result.Status.Progress)
	assert.Zero(t, out.result.Status.ErrorCount)
	assert.True(t, out.result.Status.Cancelled)
}

func TestImportFlow_RejectsConcurrentRun(t *testing.T) {
	importer := &fakeImporter{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	flow := NewImportFlow(importer, nil, nil, nil)
	path := writeWorkbook(t, "x")

	done := make(chan error, 1)
	go func() {
		_, err := flow.Run(context.Background(), ImportOptions{FilePath: path})
		done <- err
	}()
	<-importer.entered

	_, err := flow.Run(context.Background(), ImportOptions{FilePath: path})
	assert.ErrorIs(t, err, ErrImportInProgress)

	close(importer.release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), importer.calls.Load())
}

func TestImportFlow_CancelWhenIdleIsNoop(t *testing.T) {
	flow := NewImportFlow(&fakeImporter{}, nil, nil, nil)
	flow.Cancel()

	s := flow.Status()
	assert.False(t, s.Cancelled)
	assert.Empty(t, s.Lines)

	_, err := flow.Run(context.Background(), ImportOptions{FilePath: writeWorkbook(t, "x")})
	require.NoError(t, err)
}
