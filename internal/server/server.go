package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	apperrors "github.com/onecloud/onecloud/internal/errors"
	"github.com/onecloud/onecloud/internal/observability"
	"github.com/onecloud/onecloud/internal/server/handlers"
	servermw "github.com/onecloud/onecloud/internal/server/middleware"
)

// APIPrefix is where the sandbox API is mounted.
const APIPrefix = "/api"

// Server hosts the sandbox API plus health, version and metrics endpoints.
type Server struct {
	router *chi.Mux
	server *http.Server
	health *handlers.HealthManager
	host   string
	port   int

	api        http.Handler
	adminToken string
}

// Option configures a Server.
type Option func(*Server)

// WithAPI mounts h under APIPrefix.
func WithAPI(h http.Handler) Option {
	return func(s *Server) { s.api = h }
}

// WithHealthChecker adds a named readiness check.
func WithHealthChecker(name string, checker handlers.HealthChecker) Option {
	return func(s *Server) { s.health.RegisterChecker(name, checker) }
}

// WithAdminToken enables POST /admin/signal behind a bearer token.
func WithAdminToken(token string) Option {
	return func(s *Server) { s.adminToken = token }
}

// New creates a server bound to host:port. A zero port picks a free port on Start.
func New(host string, port int, opts ...Option) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)

	// RequestID first for correlation, Recovery innermost so metrics see the 500.
	r.Use(servermw.RequestID)
	r.Use(servermw.RequestMetrics)
	r.Use(servermw.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewNotFoundError("The requested resource was not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource"))
	})

	s := &Server{
		router: r,
		health: handlers.NewHealthManager(handlers.AppVersion),
		host:   host,
		port:   port,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.server = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.health.SetErrorResponder(HandleError)
	s.registerRoutes()
	return s
}

// Start listens on host:port and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", net.JoinHostPort(s.host, strconv.Itoa(s.port)))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln. It returns nil after a clean shutdown.
func (s *Server) Serve(ln net.Listener) error {
	if addr, ok := ln.Addr().(*net.TCPAddr); ok {
		s.port = addr.Port
	}

	if logger := observability.ServerLogger; logger != nil {
		logger.Info("Starting HTTP server",
			zap.String("addr", ln.Addr().String()),
			zap.String("api_prefix", APIPrefix))
	}

	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if logger := observability.ServerLogger; logger != nil {
		logger.Info("Shutting down HTTP server")
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the configured port, or the bound port once started.
func (s *Server) Port() int {
	return s.port
}
