// Package cache provides get-or-compute caching with per-entry TTL over an
// in-process map or Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrUnavailable is returned when the backing store cannot be reached or
// rejects an operation. Errors from a compute function are never wrapped
// with it.
var ErrUnavailable = errors.New("cache unavailable")

// ComputeFunc produces the value for a key on a cache miss.
type ComputeFunc[V any] func(ctx context.Context) (V, error)

// Store is a keyed cache with get-or-compute semantics.
//
// GetOrCompute returns the live value under key. When there is none it
// calls compute, stores the result for ttl and returns it. If compute
// fails its error is returned unchanged and nothing is stored. Concurrent
// misses on the same key share a single compute call.
//
// Delete removes key and reports whether a live entry was present.
type Store[V any] interface {
	GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute ComputeFunc[V]) (V, error)
	Delete(ctx context.Context, key string) (bool, error)
}

// Pinger is implemented by stores that can report their reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Driver names accepted by NewFromConfig.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// Config selects and configures a store.
type Config struct {
	// Driver is DriverMemory or DriverRedis. Default: memory.
	Driver string

	// RedisURL is a redis:// or rediss:// URL, required for the redis driver.
	RedisURL string

	// KeyPrefix is prepended to every key in Redis.
	KeyPrefix string

	Logger zerolog.Logger
}

// NewFromConfig builds the store named by cfg.Driver. The returned close
// function releases the store's connections and is never nil.
func NewFromConfig[V any](ctx context.Context, cfg Config) (Store[V], func() error, error) {
	switch cfg.Driver {
	case "", DriverMemory:
		return NewMemoryStore[V](MemoryConfig{Logger: cfg.Logger}), func() error { return nil }, nil

	case DriverRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("%w: ping redis: %w", ErrUnavailable, err)
		}
		store := NewRedisStore[V](RedisConfig{
			Client:    client,
			KeyPrefix: cfg.KeyPrefix,
			Logger:    cfg.Logger,
		})
		return store, client.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}
}
