// Package server exposes the retrieval service over JSON/HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/viant/ragcore/geo"
	"github.com/viant/ragcore/service"
)

// Option configures the Server.
type Option func(*Server)

// WithGeocoder sets the geocoder used to resolve free-text locations.
func WithGeocoder(geocoder *geo.Geocoder) Option {
	return func(s *Server) { s.geocoder = geocoder }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// Server wires HTTP routes to the retrieval service.
type Server struct {
	service  *service.Service
	config   service.ServerConfig
	geocoder *geo.Geocoder
	logger   *slog.Logger
	limiter  *ipRateLimiter
}

// New creates a Server around the given retrieval service.
func New(svc *service.Service, config service.ServerConfig, opts ...Option) *Server {
	s := &Server{
		service: svc,
		config:  config,
		logger:  slog.Default().With("component", "server"),
		limiter: newIPRateLimiter(config.RatePerSecond, config.RateBurst),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.geocoder == nil && config.GeocodeURL != "" {
		s.geocoder = geo.NewGeocoder(geo.WithBaseURL(config.GeocodeURL))
	}
	return s
}

// Router builds the chi router with middleware and routes registered.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(s.requestLogger)
	r.Use(s.rateLimit)

	r.Post("/search", s.handleSearch)
	r.Post("/search_geo", s.handleSearchGeo)
	r.Post("/ingest", s.handleIngest)
	r.Post("/ingest_batch", s.handleBatchIngest)
	r.Delete("/documents/{id}", s.handleDeleteDocument)
	r.Get("/documents/{id}", s.handleGetDocument)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.config.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	httpServer.SetKeepAlivesEnabled(false)
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}
