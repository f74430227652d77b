package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"quickaccounting/internal/core"
	"quickaccounting/internal/log"
	"quickaccounting/internal/middleware/trace"
	"quickaccounting/internal/services"
)

// Ledger is the set of operations the HTTP surface exposes.
type Ledger interface {
	AddTransaction(ctx context.Context, in services.TransactionInput) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
	Statistics(ctx context.Context, periodType, period string) (core.Statistics, error)
	Categories() (expense, income []string)
}

// ReadinessChecker reports whether a dependency can serve requests.
type ReadinessChecker interface {
	Ping(ctx context.Context) error
}

type Server struct {
	http.Server
	ledger Ledger
	ready  ReadinessChecker
	tracer *trace.Middleware
	events *log.StructuredLogger
}

// NewServer configures routes and middleware, returning a ready-to-run server.
// ready may be nil, in which case /readyz always succeeds.
func NewServer(addr string, ledger Ledger, ready ReadinessChecker, logger *log.Logger) *Server {
	s := &Server{
		ledger: ledger,
		ready:  ready,
		tracer: trace.NewMiddleware(logger, clientIP),
		events: log.NewStructuredLogger(logger),
	}

	r := chi.NewRouter()
	r.Use(s.tracer.Middleware)
	r.Use(log.Middleware(logger.WithComponent(log.ComponentHTTP)))
	r.Use(log.RequestIDMiddleware(trace.RequestIDFromRequest))
	r.Use(s.recoverPanic)
	r.Use(middleware.StripSlashes)

	r.NotFound(s.handleNotFound)
	r.MethodNotAllowed(s.handleMethodNotAllowed)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Post("/transaction", s.handleCreateTransaction)
	r.Delete("/transaction/{id}", s.handleDeleteTransaction)
	r.Get("/categories", s.handleCategories)
	r.Get("/statistics/{period_type}/{period}", s.handleStatistics)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(r, "quickaccounting"),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s
}

// Metrics exposes the request counters collected by the trace middleware.
func (s *Server) Metrics() trace.Metrics {
	return s.tracer.GetMetrics()
}
