package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"fundledger/internal/core"
	applog "fundledger/internal/log"
	"fundledger/internal/services"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Truncate(time.Second).String(),
	})
}

// handleReady reports ready once a snapshot has been applied.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	snap := s.budget.Snapshot()
	if snap.RefreshedAt.IsZero() {
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
			"status": "loading",
			"error":  s.budget.ErrorMessage(),
		})
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{
		"status":       "ready",
		"fiscal_year":  core.FormatFiscalYear(snap.FiscalYear),
		"refreshed_at": snap.RefreshedAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK,
		newSnapshotResponse(s.budget.Snapshot(), s.budget.IsLoading(), s.budget.ErrorMessage()))
}

// handleReport renders the text report of the current snapshot.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	snap := s.budget.Snapshot()
	if snap.RefreshedAt.IsZero() {
		writeError(w, r, http.StatusServiceUnavailable, "no budget data loaded yet")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, services.FormatReport(services.BuildReport(snap, time.Now())))
}

// handleHierarchy returns the account tree. ?year= overrides the followed
// fiscal year.
func (s *Server) handleHierarchy(w http.ResponseWriter, r *http.Request) {
	label := s.opts.Label
	if y := strings.TrimSpace(r.URL.Query().Get("year")); y != "" {
		label = y
	}
	nodes, err := s.budget.Hierarchy(r.Context(), label)
	if err != nil {
		applog.FromContext(r.Context()).Failure(r.Context(), "Hierarchy lookup failed", err)
		writeError(w, r, http.StatusInternalServerError, "failed to load hierarchy")
		return
	}
	writeJSON(w, r, http.StatusOK, newHierarchy(nodes))
}

func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	st := s.imports.Status()
	lines := st.Lines
	if lines == nil {
		lines = []string{}
	}
	writeJSON(w, r, http.StatusOK, importResponse{
		RunID:      st.RunID,
		Progress:   st.Progress,
		Running:    st.Running,
		Cancelled:  st.Cancelled,
		ErrorCount: st.ErrorCount,
		Lines:      lines,
	})
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snap := s.budget.Snapshot()
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	gauge := func(name, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %v\n", name, help, name, name, value)
	}
	gauge("fundledger_uptime_seconds", "Seconds since the server started.", int64(time.Since(s.started).Seconds()))
	gauge("fundledger_accounts", "Accounts in the current snapshot.", len(snap.Accounts))
	gauge("fundledger_over_budget_accounts", "Accounts whose actual exceeds the budget.", len(services.OverBudget(snap.Accounts)))
	gauge("fundledger_enterprises", "Enterprises in the current snapshot.", len(snap.Enterprises))
	var refreshed int64
	if !snap.RefreshedAt.IsZero() {
		refreshed = snap.RefreshedAt.Unix()
	}
	gauge("fundledger_last_refresh_timestamp_seconds", "Unix time of the last applied snapshot.", refreshed)
	gauge("fundledger_rate_limit_clients", "Clients tracked by the rate limiter.", s.limiter.ActiveClients())
	if s.opts.CacheSize != nil {
		gauge("fundledger_cache_entries", "Entries in the enterprise cache.", s.opts.CacheSize())
	}
	gauge("fundledger_import_progress", "Progress of the current or last import run.", s.imports.Status().Progress)
}
