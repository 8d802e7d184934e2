package weather

import (
	"fmt"
	"time"

	"github.com/meteocache/meteocache/internal/openmeteo"
)

// Defaults for the served forecast.
const (
	DefaultCacheKey = "weather.berlin.forecast"
	DefaultCacheTTL = 300 * time.Second
)

// Location is a named point on the globe.
type Location struct {
	Name      string
	Latitude  float64
	Longitude float64
}

// Berlin is the default forecast location.
var Berlin = Location{Name: "Berlin", Latitude: 52.52, Longitude: 13.41}

// LocationAt returns Berlin for its coordinates, otherwise a location named
// after the coordinates.
func LocationAt(lat, lon float64) Location {
	if lat == Berlin.Latitude && lon == Berlin.Longitude {
		return Berlin
	}
	return Location{Name: fmt.Sprintf("%.4f,%.4f", lat, lon), Latitude: lat, Longitude: lon}
}

// DefaultOptions returns the options requested for the served forecast:
// the current and next-hour 2 m temperature.
func DefaultOptions() *openmeteo.ForecastOptions {
	return &openmeteo.ForecastOptions{
		Current:       []string{"temperature_2m"},
		Hourly:        []string{"temperature_2m"},
		ForecastHours: openmeteo.Int(1),
	}
}
