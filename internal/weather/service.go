// Package weather serves the forecast for a fixed location through a
// cache-aside lookup in front of the Open-Meteo client.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/meteocache/meteocache/internal/cache"
	"github.com/meteocache/meteocache/internal/openmeteo"
	"github.com/meteocache/meteocache/internal/telemetry"
)

const operationForecast = "forecast"

const tracerName = "github.com/meteocache/meteocache/internal/weather"

// ForecastFetcher fetches a forecast from upstream.
type ForecastFetcher interface {
	FetchForecast(ctx context.Context, lat, lon openmeteo.Coordinates, opts *openmeteo.ForecastOptions) (json.RawMessage, error)
}

// ServiceConfig holds configuration for the weather service.
type ServiceConfig struct {
	// Fetcher is the upstream forecast source.
	Fetcher ForecastFetcher

	// Store caches forecasts (default: in-memory store).
	Store cache.Store[json.RawMessage]

	// Location to forecast (default: Berlin).
	Location *Location

	// CacheKey under which the forecast is stored (default: weather.berlin.forecast).
	CacheKey string

	// CacheTTL is how long a fetched forecast is served (default: 300s).
	CacheTTL time.Duration

	// Options sent upstream (default: DefaultOptions()).
	Options *openmeteo.ForecastOptions

	Logger zerolog.Logger

	// Metrics records cache hits, misses and fetch durations (optional).
	Metrics *telemetry.ProviderMetrics
}

// Service returns the cached forecast, fetching at most once per TTL window.
type Service struct {
	fetcher  ForecastFetcher
	store    cache.Store[json.RawMessage]
	location Location
	cacheKey string
	cacheTTL time.Duration
	options  *openmeteo.ForecastOptions
	logger   zerolog.Logger
	metrics  *telemetry.ProviderMetrics

	// fetches counts completed upstream fetches; it tells a caller that
	// waited on another caller's fetch apart from a real hit.
	fetches atomic.Uint64
}

// NewService creates a new weather service.
func NewService(cfg ServiceConfig) *Service {
	store := cfg.Store
	if store == nil {
		store = cache.NewMemoryStore[json.RawMessage](cache.MemoryConfig{Logger: cfg.Logger})
	}

	location := Berlin
	if cfg.Location != nil {
		location = *cfg.Location
	}

	cacheKey := cfg.CacheKey
	if cacheKey == "" {
		cacheKey = DefaultCacheKey
	}

	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = DefaultCacheTTL
	}

	options := cfg.Options
	if options == nil {
		options = DefaultOptions()
	}

	return &Service{
		fetcher:  cfg.Fetcher,
		store:    store,
		location: location,
		cacheKey: cacheKey,
		cacheTTL: cacheTTL,
		options:  options,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}
}

// GetForecast returns the forecast for the configured location. A live cache
// entry is returned without contacting upstream. On a miss the forecast is
// fetched, stored for the TTL and returned. Fetch errors are returned
// unchanged and leave the cache untouched.
//
// A caller that finds no entry but is served by a fetch another caller
// started is a shared miss: it is counted as a miss and its span carries
// cache.hit=false and cache.shared=true.
func (s *Service) GetForecast(ctx context.Context) (json.RawMessage, error) {
	ctx, span := telemetry.Tracer(tracerName).Start(ctx, "weather.GetForecast",
		trace.WithAttributes(attribute.String("cache.key", s.cacheKey)))
	defer span.End()

	fetchesBefore := s.fetches.Load()
	fetched := false

	data, err := s.store.GetOrCompute(ctx, s.cacheKey, s.cacheTTL, func(ctx context.Context) (json.RawMessage, error) {
		fetched = true
		return s.fetch(ctx)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "forecast unavailable")
		return nil, err
	}

	shared := !fetched && s.fetches.Load() != fetchesBefore
	hit := !fetched && !shared

	span.SetAttributes(
		attribute.Bool("cache.hit", hit),
		attribute.Bool("cache.shared", shared),
	)
	if hit {
		s.metrics.RecordCacheHit(operationForecast)
	} else {
		s.metrics.RecordCacheMiss(operationForecast)
	}

	return data, nil
}

// Invalidate drops the cached forecast and reports whether one was present.
func (s *Service) Invalidate(ctx context.Context) (bool, error) {
	deleted, err := s.store.Delete(ctx, s.cacheKey)
	if err != nil {
		return false, fmt.Errorf("invalidate %s: %w", s.cacheKey, err)
	}

	s.logger.Info().
		Str("cache_key", s.cacheKey).
		Bool("invalidated", deleted).
		Msg("forecast cache invalidated")

	return deleted, nil
}

// Location returns the configured forecast location.
func (s *Service) Location() Location {
	return s.location
}

// CacheKey returns the key the forecast is stored under.
func (s *Service) CacheKey() string {
	return s.cacheKey
}

func (s *Service) fetch(ctx context.Context) (json.RawMessage, error) {
	ctx, span := telemetry.Tracer(tracerName).Start(ctx, "weather.fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("provider", openmeteo.ProviderName),
			attribute.Float64("location.latitude", s.location.Latitude),
			attribute.Float64("location.longitude", s.location.Longitude),
		))
	defer span.End()

	s.logger.Debug().
		Str("location", s.location.Name).
		Float64("lat", s.location.Latitude).
		Float64("lon", s.location.Longitude).
		Msg("fetching forecast from provider")

	start := time.Now()
	data, err := s.fetcher.FetchForecast(ctx,
		openmeteo.Point(s.location.Latitude),
		openmeteo.Point(s.location.Longitude),
		s.options,
	)
	s.metrics.RecordRequest(operationForecast, time.Since(start), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		s.logger.Error().Err(err).
			Str("location", s.location.Name).
			Msg("failed to fetch forecast")
		return nil, err
	}

	s.fetches.Add(1)
	return data, nil
}
