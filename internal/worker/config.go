// Package worker runs forecast cache refreshes outside the request path.
package worker

import (
	"time"
)

// Job types accepted on the refresh subscription.
const (
	JobForecastRefresh = "forecast_refresh"
	JobHealthCheck     = "health_check"
)

// RefreshConfig holds configuration for the forecast refresh job.
type RefreshConfig struct {
	// Timeout bounds a single refresh, invalidation and re-warm together.
	// Default: 30 seconds
	Timeout time.Duration

	// Interval triggers a refresh periodically when non-zero, independent of
	// Pub/Sub messages.
	// Default: 0 (disabled)
	Interval time.Duration
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Timeout: 30 * time.Second,
	}
}

func (c RefreshConfig) withDefaults() RefreshConfig {
	if c.Timeout <= 0 {
		c.Timeout = DefaultRefreshConfig().Timeout
	}
	if c.Interval < 0 {
		c.Interval = 0
	}
	return c
}
