// Package config loads service configuration from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/meteocache/meteocache/internal/cache"
)

// Config holds the configuration shared by the API server and the worker.
type Config struct {
	Port     string
	Env      string
	LogLevel zerolog.Level

	RequireTLS bool

	// AllowCacheInvalidation exposes the forecast invalidation ops route.
	AllowCacheInvalidation bool

	OTelEnabled     bool
	OTLPEndpoint    string
	OTelSampleRatio float64

	OpenMeteo OpenMeteoConfig
	Cache     CacheConfig
	Forecast  ForecastConfig
	PubSub    PubSubConfig
	Refresh   RefreshConfig
}

// OpenMeteoConfig configures the upstream client and its transport.
type OpenMeteoConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries uint64
}

// CacheConfig selects the cache backend.
type CacheConfig struct {
	Driver    string
	RedisURL  string
	KeyPrefix string
}

// ForecastConfig configures the served forecast.
type ForecastConfig struct {
	CacheKey  string
	CacheTTL  time.Duration
	Latitude  float64
	Longitude float64
}

// PubSubConfig configures the refresh trigger subscription.
type PubSubConfig struct {
	ProjectID    string
	Subscription string
}

// RefreshConfig configures the worker's forecast refresh.
type RefreshConfig struct {
	Interval time.Duration
	Timeout  time.Duration
}

// Load reads the given .env files (default: .env) into the process
// environment, without overriding variables that are already set, then builds
// a Config from the environment. Missing .env files are ignored. The returned
// error joins every malformed value.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	return FromEnv()
}

// FromEnv builds a Config from environment variables.
func FromEnv() (Config, error) {
	p := &parser{}

	cfg := Config{
		Port:                   getEnvOrDefault("APP_PORT", "8080"),
		Env:                    getEnvOrDefault("APP_ENV", "development"),
		LogLevel:               p.getLevel("LOG_LEVEL", zerolog.InfoLevel),
		RequireTLS:             p.getBool("REQUIRE_TLS", false),
		AllowCacheInvalidation: p.getBool("OPS_CACHE_INVALIDATION", false),
		OTelEnabled:            p.getBool("OTEL_ENABLED", false),
		OTLPEndpoint:           getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTelSampleRatio:        p.getFloat("OTEL_TRACES_SAMPLER_ARG", 1),
		OpenMeteo: OpenMeteoConfig{
			BaseURL:    getEnvOrDefault("OPEN_METEO_BASE_URL", "https://api.open-meteo.com/v1"),
			Timeout:    p.getDuration("OPEN_METEO_TIMEOUT", 10*time.Second),
			MaxRetries: p.getUint("OPEN_METEO_MAX_RETRIES", 3),
		},
		Cache: CacheConfig{
			Driver:    getEnvOrDefault("CACHE_DRIVER", cache.DriverMemory),
			RedisURL:  getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),
			KeyPrefix: getEnvOrDefault("CACHE_KEY_PREFIX", "meteocache:"),
		},
		Forecast: ForecastConfig{
			CacheKey:  getEnvOrDefault("FORECAST_CACHE_KEY", "weather.berlin.forecast"),
			CacheTTL:  p.getDuration("FORECAST_CACHE_TTL", 300*time.Second),
			Latitude:  p.getFloat("FORECAST_LATITUDE", 52.52),
			Longitude: p.getFloat("FORECAST_LONGITUDE", 13.41),
		},
		PubSub: PubSubConfig{
			ProjectID:    os.Getenv("PUBSUB_PROJECT_ID"),
			Subscription: getEnvOrDefault("PUBSUB_SUBSCRIPTION", "forecast-refresh"),
		},
		Refresh: RefreshConfig{
			Interval: p.getDuration("REFRESH_INTERVAL", 0),
			Timeout:  p.getDuration("REFRESH_TIMEOUT", 30*time.Second),
		},
	}

	if err := errors.Join(p.errs...); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports values that parse but cannot be used.
func (c Config) Validate() error {
	var errs []error

	if _, err := strconv.ParseUint(c.Port, 10, 16); err != nil {
		errs = append(errs, fmt.Errorf("APP_PORT: %q is not a port number", c.Port))
	}

	if u, err := url.Parse(c.OpenMeteo.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("OPEN_METEO_BASE_URL: %q is not an absolute URL", c.OpenMeteo.BaseURL))
	}
	if c.OpenMeteo.Timeout <= 0 {
		errs = append(errs, errors.New("OPEN_METEO_TIMEOUT: must be positive"))
	}

	switch c.Cache.Driver {
	case cache.DriverMemory:
	case cache.DriverRedis:
		if c.Cache.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL: required for the redis cache driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("CACHE_DRIVER: %q is not one of memory, redis", c.Cache.Driver))
	}

	if c.Forecast.CacheKey == "" {
		errs = append(errs, errors.New("FORECAST_CACHE_KEY: must not be empty"))
	}
	if c.Forecast.CacheTTL <= 0 {
		errs = append(errs, errors.New("FORECAST_CACHE_TTL: must be positive"))
	}
	if c.Forecast.Latitude < -90 || c.Forecast.Latitude > 90 {
		errs = append(errs, fmt.Errorf("FORECAST_LATITUDE: %v is outside -90..90", c.Forecast.Latitude))
	}
	if c.Forecast.Longitude < -180 || c.Forecast.Longitude > 180 {
		errs = append(errs, fmt.Errorf("FORECAST_LONGITUDE: %v is outside -180..180", c.Forecast.Longitude))
	}

	if c.Refresh.Interval < 0 {
		errs = append(errs, errors.New("REFRESH_INTERVAL: must not be negative"))
	}

	return errors.Join(errs...)
}

// IsProduction reports whether the service runs in production.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// parser collects errors while reading typed environment values.
type parser struct {
	errs []error
}

func (p *parser) getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// Bare integers are seconds
		secs, intErr := strconv.Atoi(v)
		if intErr != nil {
			p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
			return def
		}
		return time.Duration(secs) * time.Second
	}
	return d
}

func (p *parser) getFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func (p *parser) getUint(key string, def uint64) uint64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (p *parser) getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (p *parser) getLevel(key string, def zerolog.Level) zerolog.Level {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	lvl, err := zerolog.ParseLevel(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return lvl
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
