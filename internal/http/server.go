// Package http serves the expense API.
package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"expensetracker/internal/jobs"
	"expensetracker/internal/log"
	"expensetracker/internal/metrics"
	"expensetracker/internal/middleware/ratelimit"
	"expensetracker/internal/middleware/security"
	"expensetracker/internal/middleware/trace"
	"expensetracker/internal/services"
)

// Options wires the server's collaborators. Jobs, Metrics, Ping and Logger
// may be nil.
type Options struct {
	Expenses *services.ExpenseService
	Jobs     *jobs.Service
	Metrics  *metrics.Metrics
	Logger   *log.Logger

	// Ping reports whether the storage backend is reachable.
	Ping func(ctx context.Context) error

	RateLimitPerMinute int
	ShareBaseURL       string
}

type Server struct {
	http.Server

	expenses     *services.ExpenseService
	jobs         *jobs.Service
	metrics      *metrics.Metrics
	ping         func(ctx context.Context) error
	shareBaseURL string

	limiter      *ratelimit.Limiter
	stopLimiter  chan struct{}
	detector     *security.Detector
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, opts Options) *Server {
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		expenses:     opts.Expenses,
		jobs:         opts.Jobs,
		metrics:      opts.Metrics,
		ping:         opts.Ping,
		shareBaseURL: strings.TrimRight(opts.ShareBaseURL, "/"),
		limiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		stopLimiter:  make(chan struct{}),
		detector:     security.NewDetector(),
	}
	go s.limiter.Run(s.stopLimiter)

	logger := opts.Logger
	if logger == nil {
		logger = log.FromContext(context.Background())
	}

	var h http.Handler = s.metrics.Middleware(s.routes())
	h = s.limitWrites(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.detector.Middleware(h)
	h = trace.NewMiddleware(logger.WithComponent(log.ComponentHTTP), s.detector.ExtractClientIP).Middleware(h)
	s.Handler = h
	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	mux.HandleFunc("DELETE /api/expenses", s.handleClearExpenses)
	mux.HandleFunc("POST /api/expenses/sample", s.handleSeedSampleData)
	mux.HandleFunc("GET /api/expenses/{id}", s.handleGetExpense)
	mux.HandleFunc("PATCH /api/expenses/{id}", s.handleUpdateExpense)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteExpense)

	mux.HandleFunc("GET /api/categories", s.handleCategories)
	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/trend", s.handleTrend)
	mux.HandleFunc("GET /api/insights", s.handleInsights)

	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("GET /api/export/formats", s.handleExportFormats)
	mux.HandleFunc("GET /api/export/summary", s.handleExportSummary)
	mux.HandleFunc("GET /api/export/templates", s.handleListTemplates)
	mux.HandleFunc("GET /api/export/templates/{template}", s.handleTemplateExport)

	mux.HandleFunc("POST /api/export/jobs", s.handleSubmitJob)
	mux.HandleFunc("GET /api/export/jobs", s.handleListJobs)
	mux.HandleFunc("GET /api/export/jobs/{id}", s.handleGetJob)
	mux.HandleFunc("GET /shared/{token}", s.handleShared)
	mux.HandleFunc("GET /shared/{token}/qr", s.handleSharedQR)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		notFound(w, r, "route not found")
	})
	return mux
}

// limitWrites applies the per-client limit to every method that can change
// data.
func (s *Server) limitWrites(next http.Handler) http.Handler {
	limited := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(),
			"Rate limit exceeded",
			log.FieldClientIP, s.detector.ExtractClientIP(r),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w, r)
	})(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
		default:
			limited.ServeHTTP(w, r)
		}
	})
}

// Shutdown stops the rate limiter cleanup and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() { close(s.stopLimiter) })
	return s.Server.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ping(ctx); err != nil {
			serviceUnavailable(w, r, "storage not ready", err)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
