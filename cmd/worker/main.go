// Package main provides the entrypoint for the meteocache refresh worker.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/meteocache/meteocache/internal/cache"
	"github.com/meteocache/meteocache/internal/config"
	"github.com/meteocache/meteocache/internal/openmeteo"
	"github.com/meteocache/meteocache/internal/provider/resilience"
	"github.com/meteocache/meteocache/internal/telemetry"
	"github.com/meteocache/meteocache/internal/weather"
	"github.com/meteocache/meteocache/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "meteocache-worker"

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
		Msg("starting meteocache worker")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	providerMetrics, err := telemetry.NewProviderMetrics(openmeteo.ProviderName, tp.Meter)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize provider metrics")
	}

	if cfg.Cache.Driver == cache.DriverMemory {
		log.Warn().Msg("memory cache driver: refreshes only warm this process")
	}

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

	transport := resilience.NewClient(resilience.ClientConfig{
		Name:       openmeteo.ProviderName,
		Timeout:    cfg.OpenMeteo.Timeout,
		MaxRetries: cfg.OpenMeteo.MaxRetries,
		Logger:     log,
	})
	location := weather.LocationAt(cfg.Forecast.Latitude, cfg.Forecast.Longitude)
	weatherService := weather.NewService(weather.ServiceConfig{
		Fetcher: openmeteo.NewClient(openmeteo.ClientConfig{
			BaseURL:    cfg.OpenMeteo.BaseURL,
			HTTPClient: transport,
			Logger:     log,
		}),
		Store:    store,
		Location: &location,
		CacheKey: cfg.Forecast.CacheKey,
		CacheTTL: cfg.Forecast.CacheTTL,
		Logger:   log,
		Metrics:  providerMetrics,
	})

	refreshJob := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.RefreshConfig{
			Timeout:  cfg.Refresh.Timeout,
			Interval: cfg.Refresh.Interval,
		},
		Service: weatherService,
		Logger:  log,
	})

	// Worker also exposes a health endpoint for Cloud Run
	mux := http.NewServeMux()
	mux.Handle("/health", worker.HealthHandler(refreshJob, Version))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	go refreshJob.Schedule(ctx)

	if cfg.PubSub.ProjectID != "" {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSub.ProjectID,
			SubscriptionName: cfg.PubSub.Subscription,
			RefreshJob:       refreshJob,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize pubsub handler")
		}
		defer func() {
			if err := handler.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close pubsub client")
			}
		}()

		go func() {
			if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub receive stopped")
			}
		}()
	} else {
		log.Warn().Msg("PUBSUB_PROJECT_ID not set, pubsub triggers disabled")
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
