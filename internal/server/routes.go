package server

import (
	"github.com/fulmenhq/gofulmen/signals"
	"go.uber.org/zap"

	"github.com/onecloud/onecloud/internal/observability"
	"github.com/onecloud/onecloud/internal/server/handlers"
)

func (s *Server) registerRoutes() {
	s.router.Get("/health", s.health.HealthHandler)
	s.router.Get("/health/live", s.health.LivenessHandler)
	s.router.Get("/health/ready", s.health.ReadinessHandler)

	s.router.Get("/version", handlers.VersionHandler)
	s.router.Get("/metrics", MetricsHandler)

	if s.api != nil {
		s.router.Mount(APIPrefix, s.api)
	}

	s.registerAdminEndpoint()
}

func (s *Server) registerAdminEndpoint() {
	logger := observability.ServerLogger
	if s.adminToken == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled (no ONECLOUD_ADMIN_TOKEN set)")
		}
		return
	}

	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: s.adminToken,
		RateLimit: 10, // per minute
		RateBurst: 5,
	})
	s.router.Post("/admin/signal", handler.ServeHTTP)

	if logger != nil {
		logger.Info("Admin signal endpoint enabled",
			zap.String("path", "/admin/signal"),
			zap.String("rate_limit", "10/min, burst 5"))
	}
}
