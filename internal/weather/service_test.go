package weather_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/meteocache/meteocache/internal/cache"
	"github.com/meteocache/meteocache/internal/openmeteo"
	"github.com/meteocache/meteocache/internal/weather"
)

const forecastBody = `{"latitude":52.52,"longitude":13.419998,"current":{"temperature_2m":21.4},"hourly":{"temperature_2m":[21.4]}}`

// mockFetcher is a mock forecast fetcher for testing.
type mockFetcher struct {
	mu        sync.Mutex
	callCount int
	lastLat   openmeteo.Coordinates
	lastLon   openmeteo.Coordinates
	lastOpts  *openmeteo.ForecastOptions
	body      json.RawMessage
	err       error
}

func newMockFetcher() *mockFetcher {
	return &mockFetcher{body: json.RawMessage(forecastBody)}
}

func (m *mockFetcher) FetchForecast(_ context.Context, lat, lon openmeteo.Coordinates, opts *openmeteo.ForecastOptions) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	m.lastLat, m.lastLon, m.lastOpts = lat, lon, opts

	if m.err != nil {
		return nil, m.err
	}
	return m.body, nil
}

func (m *mockFetcher) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

func (m *mockFetcher) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func newRedisBackedStore(t *testing.T) cache.Store[json.RawMessage] {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return cache.NewRedisStore[json.RawMessage](cache.RedisConfig{
		Client: client,
		Logger: zerolog.Nop(),
	})
}

// stores runs a test against every store implementation.
func stores(t *testing.T, fn func(t *testing.T, store cache.Store[json.RawMessage])) {
	t.Run("memory", func(t *testing.T) {
		fn(t, cache.NewMemoryStore[json.RawMessage](cache.MemoryConfig{Logger: zerolog.Nop()}))
	})
	t.Run("redis", func(t *testing.T) {
		fn(t, newRedisBackedStore(t))
	})
}

func TestService_GetForecast_CacheAside(t *testing.T) {
	stores(t, func(t *testing.T, store cache.Store[json.RawMessage]) {
		fetcher := newMockFetcher()
		svc := weather.NewService(weather.ServiceConfig{
			Fetcher: fetcher,
			Store:   store,
			Logger:  zerolog.Nop(),
		})
		ctx := context.Background()

		first, err := svc.GetForecast(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, fetcher.calls())
		assert.JSONEq(t, forecastBody, string(first))

		second, err := svc.GetForecast(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, fetcher.calls(), "hit must not call upstream")
		assert.Equal(t, string(first), string(second))
	})
}

func TestService_GetForecast_RequestsBerlin(t *testing.T) {
	fetcher := newMockFetcher()
	svc := weather.NewService(weather.ServiceConfig{Fetcher: fetcher, Logger: zerolog.Nop()})

	_, err := svc.GetForecast(context.Background())
	require.NoError(t, err)

	assert.Equal(t, openmeteo.Coordinates{52.52}, fetcher.lastLat)
	assert.Equal(t, openmeteo.Coordinates{13.41}, fetcher.lastLon)

	params := fetcher.lastOpts.Params()
	assert.Equal(t, openmeteo.QueryParams{
		"current":        "temperature_2m",
		"hourly":         "temperature_2m",
		"forecast_hours": "1",
	}, params)
}

func TestService_GetForecast_FailureNotCached(t *testing.T) {
	stores(t, func(t *testing.T, store cache.Store[json.RawMessage]) {
		fetcher := newMockFetcher()
		upstreamErr := &openmeteo.StatusError{StatusCode: 503}
		fetcher.setErr(upstreamErr)

		svc := weather.NewService(weather.ServiceConfig{
			Fetcher: fetcher,
			Store:   store,
			Logger:  zerolog.Nop(),
		})
		ctx := context.Background()

		data, err := svc.GetForecast(ctx)
		assert.Nil(t, data)
		assert.ErrorIs(t, err, openmeteo.ErrServerStatus)

		var statusErr *openmeteo.StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Same(t, upstreamErr, statusErr, "error propagates unchanged")

		deleted, err := svc.Invalidate(ctx)
		require.NoError(t, err)
		assert.False(t, deleted, "nothing was stored")

		fetcher.setErr(nil)
		_, err = svc.GetForecast(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, fetcher.calls())
	})
}

func TestService_Invalidate(t *testing.T) {
	stores(t, func(t *testing.T, store cache.Store[json.RawMessage]) {
		fetcher := newMockFetcher()
		svc := weather.NewService(weather.ServiceConfig{
			Fetcher: fetcher,
			Store:   store,
			Logger:  zerolog.Nop(),
		})
		ctx := context.Background()

		deleted, err := svc.Invalidate(ctx)
		require.NoError(t, err)
		assert.False(t, deleted)

		_, err = svc.GetForecast(ctx)
		require.NoError(t, err)

		deleted, err = svc.Invalidate(ctx)
		require.NoError(t, err)
		assert.True(t, deleted)

		_, err = svc.GetForecast(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, fetcher.calls(), "invalidate forces a refetch")
	})
}

func TestService_GetForecast_ExpiresAfterTTL(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store := cache.NewMemoryStore[json.RawMessage](cache.MemoryConfig{
		Now:    func() time.Time { return now },
		Logger: zerolog.Nop(),
	})
	fetcher := newMockFetcher()
	svc := weather.NewService(weather.ServiceConfig{
		Fetcher: fetcher,
		Store:   store,
		Logger:  zerolog.Nop(),
	})
	ctx := context.Background()

	_, err := svc.GetForecast(ctx)
	require.NoError(t, err)

	now = now.Add(299 * time.Second)
	_, err = svc.GetForecast(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls())

	now = now.Add(time.Second)
	_, err = svc.GetForecast(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.calls(), "300s default TTL elapsed")
}

func TestService_CustomLocationAndKey(t *testing.T) {
	store := cache.NewMemoryStore[json.RawMessage](cache.MemoryConfig{Logger: zerolog.Nop()})
	fetcher := newMockFetcher()
	paris := weather.Location{Name: "Paris", Latitude: 48.85, Longitude: 2.35}

	svc := weather.NewService(weather.ServiceConfig{
		Fetcher:  fetcher,
		Store:    store,
		Location: &paris,
		CacheKey: "weather.paris.forecast",
		Logger:   zerolog.Nop(),
	})

	_, err := svc.GetForecast(context.Background())
	require.NoError(t, err)

	assert.Equal(t, paris, svc.Location())
	assert.Equal(t, "weather.paris.forecast", svc.CacheKey())
	assert.Equal(t, openmeteo.Coordinates{48.85}, fetcher.lastLat)

	deleted, err := store.Delete(context.Background(), "weather.paris.forecast")
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestNewService_Defaults(t *testing.T) {
	svc := weather.NewService(weather.ServiceConfig{Fetcher: newMockFetcher(), Logger: zerolog.Nop()})

	assert.Equal(t, weather.Berlin, svc.Location())
	assert.Equal(t, "weather.berlin.forecast", svc.CacheKey())
}

func TestService_Invalidate_StoreUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := cache.NewRedisStore[json.RawMessage](cache.RedisConfig{Client: client, Logger: zerolog.Nop()})
	mr.Close()

	svc := weather.NewService(weather.ServiceConfig{
		Fetcher: newMockFetcher(),
		Store:   store,
		Logger:  zerolog.Nop(),
	})

	_, err := svc.Invalidate(context.Background())
	assert.ErrorIs(t, err, cache.ErrUnavailable)

	_, err = svc.GetForecast(context.Background())
	assert.ErrorIs(t, err, cache.ErrUnavailable)
}

func TestLocationAt(t *testing.T) {
	assert.Equal(t, weather.Berlin, weather.LocationAt(52.52, 13.41))

	paris := weather.LocationAt(48.8566, 2.3522)
	assert.Equal(t, "48.8566,2.3522", paris.Name)
	assert.Equal(t, 48.8566, paris.Latitude)
	assert.Equal(t, 2.3522, paris.Longitude)
}

func TestService_GetForecast_Spans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(noop.NewTracerProvider())
	})

	fetcher := newMockFetcher()
	svc := weather.NewService(weather.ServiceConfig{Fetcher: fetcher, Logger: zerolog.Nop()})

	_, err := svc.GetForecast(context.Background())
	require.NoError(t, err)
	_, err = svc.GetForecast(context.Background())
	require.NoError(t, err)

	var gets, fetches int
	var hits []bool
	for _, span := range sr.Ended() {
		switch span.Name() {
		case "weather.GetForecast":
			gets++
			for _, kv := range span.Attributes() {
				if kv.Key == "cache.hit" {
					hits = append(hits, kv.Value.AsBool())
				}
			}
		case "weather.fetch":
			fetches++
		}
	}

	assert.Equal(t, 2, gets)
	assert.Equal(t, 1, fetches)
	assert.Equal(t, []bool{false, true}, hits)
}

// gatedFetcher blocks every fetch until released.
type gatedFetcher struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedFetcher) FetchForecast(context.Context, openmeteo.Coordinates, openmeteo.Coordinates, *openmeteo.ForecastOptions) (json.RawMessage, error) {
	g.once.Do(func() { close(g.started) })
	<-g.release
	return json.RawMessage(forecastBody), nil
}

func TestService_GetForecast_SharedMissIsNotAHit(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(noop.NewTracerProvider())
	})

	fetcher := &gatedFetcher{started: make(chan struct{}), release: make(chan struct{})}
	svc := weather.NewService(weather.ServiceConfig{Fetcher: fetcher, Logger: zerolog.Nop()})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := svc.GetForecast(context.Background())
		assert.NoError(t, err)
	}()
	<-fetcher.started
	go func() {
		defer wg.Done()
		_, err := svc.GetForecast(context.Background())
		assert.NoError(t, err)
	}()

	// Let the second caller queue behind the in-flight fetch
	time.Sleep(50 * time.Millisecond)
	close(fetcher.release)
	wg.Wait()

	assert.Zero(t, countHits(sr.Ended()), "neither caller found a live entry")
	assert.Equal(t, 1, countTrue(sr.Ended(), "cache.shared"))

	// A later call is a real hit
	_, err := svc.GetForecast(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, countHits(sr.Ended()))
}

func countHits(spans []sdktrace.ReadOnlySpan) int {
	return countTrue(spans, "cache.hit")
}

// countTrue counts the spans on which the boolean attribute key is true.
func countTrue(spans []sdktrace.ReadOnlySpan, key string) int {
	n := 0
	for _, span := range spans {
		for _, kv := range span.Attributes() {
			if string(kv.Key) == key && kv.Value.AsBool() {
				n++
			}
		}
	}
	return n
}
