package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ZeelJavia/txnzero/internal/adapter/http/handler"
	"github.com/ZeelJavia/txnzero/internal/adapter/http/middleware"
	"github.com/ZeelJavia/txnzero/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	AccountHandler   *handler.AccountHandler
	TransferHandler  *handler.TransferHandler
	StatementHandler *handler.StatementHandler
	ReconcileHandler *handler.ReconcileHandler
	HealthHandler    *handler.HealthHandler
	IdempotencyStore usecase.IdempotencyStore
	Logger           zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Metrics)
	r.Use(middleware.Recovery)
	r.Use(middleware.Caller)

	// Health and telemetry
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			idempotencyMiddleware := middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore)
			r.Use(idempotencyMiddleware.Wrap)
		}

		// Accounts
		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", cfg.AccountHandler.Create)
			r.Get("/", cfg.AccountHandler.List)
			r.Get("/{id}", cfg.AccountHandler.Get)
			r.Put("/{id}/freeze", cfg.AccountHandler.Freeze)
			r.Get("/{id}/balance", cfg.StatementHandler.Balance)
			r.Get("/{id}/statement", cfg.StatementHandler.Statement)
		})

		// Transfers
		r.Route("/transfers", func(r chi.Router) {
			r.Post("/", cfg.TransferHandler.Execute)
		})
		r.Get("/transactions/{id}", cfg.TransferHandler.Get)

		// Reconciliation
		r.Route("/reconcile", func(r chi.Router) {
			r.Post("/", cfg.ReconcileHandler.Run)
			r.Get("/balances", cfg.ReconcileHandler.VerifyBalances)
		})
	})

	return r
}
