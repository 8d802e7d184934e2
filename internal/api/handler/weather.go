package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/meteocache/meteocache/internal/api/models"
	"github.com/meteocache/meteocache/internal/api/response"
)

// ForecastService is the forecast source behind the weather endpoints.
type ForecastService interface {
	GetForecast(ctx context.Context) (json.RawMessage, error)
	Invalidate(ctx context.Context) (bool, error)
}

// WeatherHandler handles weather endpoints.
type WeatherHandler struct {
	service ForecastService
	logger  zerolog.Logger
}

// NewWeatherHandler creates a new WeatherHandler.
func NewWeatherHandler(service ForecastService, logger zerolog.Logger) *WeatherHandler {
	return &WeatherHandler{
		service: service,
		logger:  logger,
	}
}

// GetForecast handles GET /api/weather.
func (h *WeatherHandler) GetForecast(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.GetForecast(r.Context())
	if err != nil {
		requestLogger(r, &h.logger).Error().Err(err).Msg("failed to get forecast")
		response.InternalError(w, r)
		return
	}

	response.Success(w, r, data, nil)
}

// InvalidateCache handles DELETE /v1/ops/cache/forecast.
func (h *WeatherHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	invalidated, err := h.service.Invalidate(r.Context())
	if err != nil {
		requestLogger(r, &h.logger).Error().Err(err).Msg("failed to invalidate forecast cache")
		response.InternalError(w, r)
		return
	}

	response.Success(w, r, models.CacheInvalidation{Invalidated: invalidated}, nil)
}

// requestLogger returns the logger the request logging middleware attached
// to r, or fallback outside that middleware.
func requestLogger(r *http.Request, fallback *zerolog.Logger) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return fallback
}
