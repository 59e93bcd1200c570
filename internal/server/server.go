// Package server implements the HTTP API for transfer history and metrics.
package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	streamline "github.com/eugener/streamline/internal"
	"github.com/eugener/streamline/internal/cache"
	"github.com/eugener/streamline/internal/storage"
	"github.com/eugener/streamline/internal/telemetry"
)

// ReadyChecker reports whether the system is ready to serve traffic.
type ReadyChecker func(ctx context.Context) error

// Deps holds all dependencies for the HTTP server.
type Deps struct {
	Store          storage.TransferStore                   // nil = history routes not mounted
	Cache          cache.Cache[*streamline.TransferRecord] // nil = no caching
	ReadyCheck     ReadyChecker                            // nil = always ready (for tests)
	Metrics        *telemetry.Metrics                      // nil = no request metrics
	MetricsHandler http.Handler                            // nil = no /metrics endpoint
}

// New creates an http.Handler with all routes and middleware wired.
func New(deps Deps) http.Handler {
	s := &server{deps: deps}

	r := chi.NewRouter()

	// Global middleware
	r.Use(s.recovery)
	r.Use(s.requestID)
	r.Use(s.logging)
	if deps.Metrics != nil {
		r.Use(metricsMiddleware(deps.Metrics))
	}

	// System endpoints
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	if deps.Store != nil {
		r.Get("/v1/transfers", s.handleListTransfers)
		r.Get("/v1/transfers/{id}", s.handleGetTransfer)
	}

	return r
}

type server struct {
	deps Deps
}
