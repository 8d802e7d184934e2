// Package main provides the entrypoint for the meteocache API server.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/meteocache/meteocache/internal/api"
	"github.com/meteocache/meteocache/internal/api/handler"
	"github.com/meteocache/meteocache/internal/api/middleware"
	"github.com/meteocache/meteocache/internal/cache"
	"github.com/meteocache/meteocache/internal/config"
	"github.com/meteocache/meteocache/internal/openmeteo"
	"github.com/meteocache/meteocache/internal/provider/resilience"
	"github.com/meteocache/meteocache/internal/telemetry"
	"github.com/meteocache/meteocache/internal/weather"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "meteocache-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	cfg, err := config.Load()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	log = log.Level(cfg.LogLevel)

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Env).
		Msg("starting meteocache API")

	// Initialize OpenTelemetry
	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.OTelEnabled,
		SampleRatio:    cfg.OTelSampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.OTelEnabled {
		log.Info().
			Str("otlp_endpoint", cfg.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics(tp.Meter)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	providerMetrics, err := telemetry.NewProviderMetrics(openmeteo.ProviderName, tp.Meter)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize provider metrics")
	}

	// Connect to the cache
	store, closeStore, err := cache.NewFromConfig[json.RawMessage](ctx, cache.Config{
		Driver:    cfg.Cache.Driver,
		RedisURL:  cfg.Cache.RedisURL,
		KeyPrefix: cfg.Cache.KeyPrefix,
		Logger:    log,
	})
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Cache.Driver).Msg("failed to initialize cache")
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Error().Err(err).Msg("failed to close cache")
		}
	}()
	log.Info().Str("driver", cfg.Cache.Driver).Msg("cache initialized")

	// Upstream client behind retries and a circuit breaker
	registry := resilience.NewRegistry()
	transport := resilience.NewClient(resilience.ClientConfig{
		Name:       openmeteo.ProviderName,
		Timeout:    cfg.OpenMeteo.Timeout,
		MaxRetries: cfg.OpenMeteo.MaxRetries,
		Registry:   registry,
		Logger:     log,
	})
	forecastClient := openmeteo.NewClient(openmeteo.ClientConfig{
		BaseURL:    cfg.OpenMeteo.BaseURL,
		HTTPClient: transport,
		Logger:     log,
	})

	location := weather.LocationAt(cfg.Forecast.Latitude, cfg.Forecast.Longitude)
	weatherService := weather.NewService(weather.ServiceConfig{
		Fetcher:  forecastClient,
		Store:    store,
		Location: &location,
		CacheKey: cfg.Forecast.CacheKey,
		CacheTTL: cfg.Forecast.CacheTTL,
		Logger:   log,
		Metrics:  providerMetrics,
	})
	log.Info().
		Str("cache_key", weatherService.CacheKey()).
		Dur("cache_ttl", cfg.Forecast.CacheTTL).
		Msg("weather service initialized")

	checks := map[string]handler.ReadinessCheck{}
	if pinger, ok := store.(cache.Pinger); ok {
		checks["cache"] = pinger.Ping
	}

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:                Version,
		BuildTime:              BuildTime,
		Logger:                 log,
		ServiceName:            serviceName,
		Metrics:                metrics,
		RequireTLS:             cfg.RequireTLS,
		AllowCacheInvalidation: cfg.AllowCacheInvalidation,
		WeatherService:         weatherService,
		Registry:               registry,
		ReadinessChecks:        checks,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
