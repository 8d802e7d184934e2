// Package api provides the HTTP API for meteocache.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/meteocache/meteocache/internal/api/handler"
	"github.com/meteocache/meteocache/internal/api/middleware"
	"github.com/meteocache/meteocache/internal/api/response"
	"github.com/meteocache/meteocache/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	RequireTLS  bool

	// WeatherService serves /api/weather.
	WeatherService handler.ForecastService

	// Registry reports upstream provider health on /v1/ops/status (optional).
	Registry *resilience.Registry

	// AllowCacheInvalidation mounts DELETE /v1/ops/cache/forecast. Off by
	// default: every call forces the next read upstream.
	AllowCacheInvalidation bool

	// ReadinessChecks are run by /v1/ops/ready and /v1/ops/status (optional).
	ReadinessChecks map[string]handler.ReadinessCheck
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "meteocache-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))         // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))       // Panic recovery
	r.Use(chimiddleware.RealIP)                  // Real IP extraction
	r.Use(middleware.SecurityHeaders)            // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // TLS enforcement

	r.NotFound(response.NotFound)
	r.MethodNotAllowed(response.MethodNotAllowed)

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Registry, cfg.ReadinessChecks)
	weatherHandler := handler.NewWeatherHandler(cfg.WeatherService, cfg.Logger)

	r.Get("/api/weather", weatherHandler.GetForecast)

	// Ops endpoints
	r.Route("/v1/ops", func(r chi.Router) {
		r.Get("/health", opsHandler.HealthCheck)
		r.Get("/ready", opsHandler.ReadinessCheck)
		r.Get("/status", opsHandler.SystemStatus)
		if cfg.AllowCacheInvalidation {
			r.Delete("/cache/forecast", weatherHandler.InvalidateCache)
		}
	})

	return r
}
