// Package server exposes the dashboard API over HTTP.
package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-errors/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/strrl/telescope-dashboard/pkg/config"
	"github.com/strrl/telescope-dashboard/pkg/querier"
)

// Server represents the HTTP API server
type Server struct {
	cfg     *config.Config
	querier *querier.Querier
	logger  *slog.Logger
	router  *http.ServeMux
	server  *http.Server
}

// NewServer builds the server and registers routes under cfg.Path. A
// disabled dashboard registers nothing and answers 404 to every request.
func NewServer(cfg *config.Config, q *querier.Querier, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		querier: q,
		logger:  logger,
		router:  http.NewServeMux(),
	}

	if cfg.Enabled {
		s.registerRoutes(NewGate(cfg, logger))
	} else {
		logger.Info("dashboard disabled, no routes registered")
	}

	stack, err := s.middlewares(cfg.Middleware)
	if err != nil {
		return nil, err
	}
	handler := otelhttp.NewHandler(chain(s.router, stack), "telescope-dashboard")

	s.server = &http.Server{
		Addr:              cfg.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Prefix is the URL path the API is mounted under, without a trailing slash.
func (s *Server) Prefix() string {
	if s.cfg.Path == "" {
		return ""
	}
	return "/" + s.cfg.Path
}

func (s *Server) registerRoutes(gate Gate) {
	p := s.Prefix()
	handle := func(pattern string, h http.HandlerFunc) {
		s.router.Handle(pattern, authorize(gate, h))
	}
	handle("POST "+p+"/api/entries", s.handleSearch)
	handle("GET "+p+"/api/entries/{uuid}", s.handleShow)
	handle("GET "+p+"/api/entries/{uuid}/detail", s.handleDetail)
	handle("GET "+p+"/api/filters/{type}", s.handleFilters)
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.server.Handler.ServeHTTP(w, r)
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return errors.Errorf("listen %s: %w", s.cfg.Listen, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("serving dashboard", "addr", ln.Addr().String(), "path", s.Prefix()+"/")
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Errorf("serve: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	if err := s.server.Shutdown(ctx); err != nil {
		return errors.Errorf("shutdown: %w", err)
	}
	return nil
}
