package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ForecastService is the part of the forecast service a refresh needs.
type ForecastService interface {
	GetForecast(ctx context.Context) (json.RawMessage, error)
	Invalidate(ctx context.Context) (bool, error)
}

// RefreshJob drops the cached forecast and fetches it again so the next
// reader is served a fresh entry.
type RefreshJob struct {
	config  RefreshConfig
	service ForecastService
	logger  zerolog.Logger

	metrics *RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	TotalRefreshes    int64
	SuccessfulRefresh int64
	FailedRefreshes   int64

	LastRefreshAt       time.Time
	LastRefreshDuration time.Duration
	TotalDuration       time.Duration
	LastError           string
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config  RefreshConfig
	Service ForecastService
	Logger  zerolog.Logger
}

// NewRefreshJob creates a new refresh job.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	return &RefreshJob{
		config:  cfg.Config.withDefaults(),
		service: cfg.Service,
		logger:  cfg.Logger,
		metrics: &RefreshMetrics{},
	}
}

// RefreshResult contains the result of a refresh.
type RefreshResult struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	// Invalidated reports whether a cached entry existed before the refresh.
	Invalidated bool
	// Warmed reports whether a fresh forecast was fetched and stored.
	Warmed bool

	Err error
}

// Run invalidates the cached forecast and re-warms it. A failed
// invalidation skips the re-warm.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	startTime := time.Now()
	result := &RefreshResult{StartTime: startTime}

	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	j.logger.Info().Msg("starting forecast refresh")

	invalidated, err := j.service.Invalidate(ctx)
	if err != nil {
		result.Err = fmt.Errorf("invalidating forecast: %w", err)
	} else {
		result.Invalidated = invalidated
		if _, err := j.service.GetForecast(ctx); err != nil {
			result.Err = fmt.Errorf("warming forecast: %w", err)
		} else {
			result.Warmed = true
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	if result.Err != nil {
		j.logger.Error().
			Err(result.Err).
			Dur("duration", result.Duration).
			Bool("invalidated", result.Invalidated).
			Msg("forecast refresh failed")
		return result
	}

	j.logger.Info().
		Dur("duration", result.Duration).
		Bool("invalidated", result.Invalidated).
		Msg("forecast refresh completed")

	return result
}

// Check reads the forecast through the cache, fetching it only when no
// entry is present.
func (j *RefreshJob) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	if _, err := j.service.GetForecast(ctx); err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	return nil
}

// Schedule runs the job every configured interval until ctx is done. It
// returns immediately when no interval is configured.
func (j *RefreshJob) Schedule(ctx context.Context) {
	if j.config.Interval == 0 {
		return
	}

	j.logger.Info().Dur("interval", j.config.Interval).Msg("scheduling forecast refresh")

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRefreshes++
	if result.Err != nil {
		j.metrics.FailedRefreshes++
		j.metrics.LastError = result.Err.Error()
	} else {
		j.metrics.SuccessfulRefresh++
		j.metrics.LastError = ""
	}
	j.metrics.LastRefreshAt = result.EndTime
	j.metrics.LastRefreshDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRefreshes:      j.metrics.TotalRefreshes,
		SuccessfulRefresh:   j.metrics.SuccessfulRefresh,
		FailedRefreshes:     j.metrics.FailedRefreshes,
		LastRefreshAt:       j.metrics.LastRefreshAt,
		LastRefreshDuration: j.metrics.LastRefreshDuration,
		TotalDuration:       j.metrics.TotalDuration,
		LastError:           j.metrics.LastError,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *RefreshJob) MetricsSnapshot() map[string]any {
	m := j.GetMetrics()
	return map[string]any{
		"total_refreshes":       m.TotalRefreshes,
		"successful_refreshes":  m.SuccessfulRefresh,
		"failed_refreshes":      m.FailedRefreshes,
		"last_refresh_at":       m.LastRefreshAt,
		"last_refresh_duration": m.LastRefreshDuration.String(),
		"total_duration":        m.TotalDuration.String(),
		"last_error":            m.LastError,
	}
}
