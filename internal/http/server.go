// Package http serves a read-only JSON view of a running budget process.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"fundledger/internal/core"
	applog "fundledger/internal/log"
	"fundledger/internal/middleware/ratelimit"
	"fundledger/internal/middleware/security"
	"fundledger/internal/middleware/trace"
	"fundledger/internal/services"
)

// BudgetSource is the view state the server exposes.
type BudgetSource interface {
	Snapshot() core.BudgetSnapshot
	ErrorMessage() string
	IsLoading() bool
	Hierarchy(ctx context.Context, label string) ([]*core.BudgetNode, error)
}

// ImportSource reports the state of the import pipeline.
type ImportSource interface {
	Status() services.ImportStatus
}

// Options configure a Server. Label names the fiscal year the process
// follows. RequestsPerMinute caps each client; zero uses the limiter default.
type Options struct {
	Addr              string
	Label             string
	RequestsPerMinute int
	// CacheSize reports the number of cached entries for /metrics. Optional.
	CacheSize func() int
}

type Server struct {
	http.Server
	budget  BudgetSource
	imports ImportSource
	opts    Options
	logger  *applog.Logger

	limiter      *ratelimit.Limiter
	started      time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(opts Options, budget BudgetSource, imports ImportSource, logger *applog.Logger) *Server {
	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	s := &Server{
		budget:  budget,
		imports: imports,
		opts:    opts,
		logger:  logger,
		started: time.Now(),
		limiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RequestsPerMinute}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /api/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /api/report", s.handleReport)
	mux.HandleFunc("GET /api/hierarchy", s.handleHierarchy)
	mux.HandleFunc("GET /api/import", s.handleImportStatus)

	clientIP := security.NewClientIP()
	var h http.Handler = mux
	h = s.limiter.Middleware(clientIP.Extract)(h)
	h = security.Headers(security.DefaultHeadersConfig())(h)
	h = trace.NewMiddleware(logger, clientIP.Extract).Middleware(h)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Run serves until ctx is done, then shuts down within ten seconds.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoContext(ctx, "HTTP server listening", "addr", s.Addr)
		if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.limiter.Stop()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// Shutdown stops the server and the limiter's cleanup goroutine.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
