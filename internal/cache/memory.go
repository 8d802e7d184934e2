package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// MemoryConfig holds configuration for the in-memory store.
type MemoryConfig struct {
	// CleanupInterval is the minimum time between sweeps of expired entries.
	// Default: 5 minutes
	CleanupInterval time.Duration

	// Now returns the current time (optional, for tests).
	Now func() time.Time

	Logger zerolog.Logger
}

// MemoryStore is a process-local Store. Values are held as-is, so a hit
// returns exactly the value that was computed.
type MemoryStore[V any] struct {
	logger          zerolog.Logger
	now             func() time.Time
	cleanupInterval time.Duration
	group           singleflight.Group

	mu          sync.RWMutex
	entries     map[string]memoryEntry[V]
	lastCleanup time.Time
}

type memoryEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore[V any](cfg MemoryConfig) *MemoryStore[V] {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	cleanupInterval := cfg.CleanupInterval
	if cleanupInterval == 0 {
		cleanupInterval = 5 * time.Minute
	}

	return &MemoryStore[V]{
		logger:          cfg.Logger,
		now:             now,
		cleanupInterval: cleanupInterval,
		entries:         make(map[string]memoryEntry[V]),
		lastCleanup:     now(),
	}
}

// GetOrCompute implements Store.
func (s *MemoryStore[V]) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute ComputeFunc[V]) (V, error) {
	if v, ok := s.get(key); ok {
		return v, nil
	}

	return coalesce(ctx, &s.group, key, func(ctx context.Context) (V, error) {
		// Another caller may have filled the entry while we queued
		if v, ok := s.get(key); ok {
			return v, nil
		}

		v, err := compute(ctx)
		if err != nil {
			var zero V
			return zero, err
		}

		s.set(key, v, ttl)
		return v, nil
	})
}

// Delete implements Store.
func (s *MemoryStore[V]) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return false, nil
	}
	delete(s.entries, key)

	return s.now().Before(entry.expiresAt), nil
}

// Len returns the number of entries held, expired ones not yet swept included.
func (s *MemoryStore[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Ping always succeeds.
func (s *MemoryStore[V]) Ping(context.Context) error {
	return nil
}

func (s *MemoryStore[V]) get(key string) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	if !ok || !s.now().Before(entry.expiresAt) {
		var zero V
		return zero, false
	}
	return entry.value, true
}

func (s *MemoryStore[V]) set(key string, value V, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = memoryEntry[V]{
		value:     value,
		expiresAt: s.now().Add(ttl),
	}

	s.cleanupIfNeeded()
}

// cleanupIfNeeded removes expired entries if the cleanup interval has passed.
// Callers must hold s.mu.
func (s *MemoryStore[V]) cleanupIfNeeded() {
	now := s.now()
	if now.Sub(s.lastCleanup) < s.cleanupInterval {
		return
	}

	s.lastCleanup = now
	expired := 0

	for key, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, key)
			expired++
		}
	}

	if expired > 0 {
		s.logger.Debug().
			Int("expired_entries", expired).
			Msg("cleaned up expired cache entries")
	}
}

// sharedComputeTimeout bounds a coalesced compute once it no longer follows
// any caller's cancellation.
const sharedComputeTimeout = 2 * time.Minute

// coalesce runs fn once per key across concurrent callers. fn gets the first
// caller's context values but not its cancellation, so a caller that gives up
// does not fail the others. A caller whose context ends stops waiting with
// ctx.Err(); the shared call keeps running for the rest and still stores its
// result.
func coalesce[V any](ctx context.Context, group *singleflight.Group, key string, fn func(ctx context.Context) (V, error)) (V, error) {
	ch := group.DoChan(key, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedComputeTimeout)
		defer cancel()
		return fn(shared)
	})

	select {
	case res := <-ch:
		v, _ := res.Val.(V)
		return v, res.Err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}
