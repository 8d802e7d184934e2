package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// RedisConfig holds configuration for the Redis store.
type RedisConfig struct {
	Client *redis.Client

	// KeyPrefix is prepended to every key, e.g. "meteocache:".
	KeyPrefix string

	Logger zerolog.Logger
}

// RedisStore is a Store shared between processes. Values are stored as JSON
// with a Redis expiry equal to the TTL. Misses are coalesced per process;
// concurrent misses in different processes each compute and the last write wins.
type RedisStore[V any] struct {
	client *redis.Client
	prefix string
	logger zerolog.Logger
	group  singleflight.Group
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore[V any](cfg RedisConfig) *RedisStore[V] {
	return &RedisStore[V]{
		client: cfg.Client,
		prefix: cfg.KeyPrefix,
		logger: cfg.Logger,
	}
}

// GetOrCompute implements Store.
func (s *RedisStore[V]) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute ComputeFunc[V]) (V, error) {
	v, ok, err := s.get(ctx, key)
	if err != nil || ok {
		return v, err
	}

	return coalesce(ctx, &s.group, key, func(ctx context.Context) (V, error) {
		var zero V

		if v, ok, err := s.get(ctx, key); err != nil || ok {
			return v, err
		}

		v, err := compute(ctx)
		if err != nil {
			return zero, err
		}

		data, err := json.Marshal(v)
		if err != nil {
			return zero, fmt.Errorf("encode cache value %q: %w", key, err)
		}

		if err := s.client.Set(ctx, s.prefix+key, data, ttl).Err(); err != nil {
			return zero, fmt.Errorf("%w: set %q: %w", ErrUnavailable, key, err)
		}

		// Hand back the stored form so this caller sees what later hits will see
		var stored V
		if err := json.Unmarshal(data, &stored); err != nil {
			return zero, fmt.Errorf("decode cache value %q: %w", key, err)
		}
		return stored, nil
	})
}

// Delete implements Store.
func (s *RedisStore[V]) Delete(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Del(ctx, s.prefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: delete %q: %w", ErrUnavailable, key, err)
	}
	return n > 0, nil
}

// Ping checks that Redis is reachable.
func (s *RedisStore[V]) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: ping: %w", ErrUnavailable, err)
	}
	return nil
}

// get returns the decoded value under key. A value that no longer decodes
// into V is reported as a miss so it gets overwritten.
func (s *RedisStore[V]) get(ctx context.Context, key string) (V, bool, error) {
	var v V

	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return v, false, nil
	}
	if err != nil {
		return v, false, fmt.Errorf("%w: get %q: %w", ErrUnavailable, key, err)
	}

	if err := json.Unmarshal(data, &v); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("discarding undecodable cache entry")
		var zero V
		return zero, false, nil
	}

	return v, true, nil
}
