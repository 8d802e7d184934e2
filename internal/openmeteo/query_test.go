package openmeteo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meteocache/meteocache/internal/openmeteo"
)

func TestParams_ZeroOptionsIsEmpty(t *testing.T) {
	opts := &openmeteo.ForecastOptions{}
	assert.Empty(t, opts.Params())

	var nilOpts *openmeteo.ForecastOptions
	assert.Empty(t, nilOpts.Params())
}

func TestBuildQuery_CoordinatesOnly(t *testing.T) {
	params, err := openmeteo.BuildQuery(openmeteo.Point(52.52), openmeteo.Point(13.41), nil)
	require.NoError(t, err)

	assert.Equal(t, openmeteo.QueryParams{
		"latitude":  "52.52",
		"longitude": "13.41",
	}, params)
}

func TestBuildQuery_BerlinScenario(t *testing.T) {
	opts := &openmeteo.ForecastOptions{
		Current:       []string{"temperature_2m"},
		Hourly:        []string{"temperature_2m"},
		ForecastHours: openmeteo.Int(1),
	}

	params, err := openmeteo.BuildQuery(openmeteo.Point(52.52), openmeteo.Point(13.41), opts)
	require.NoError(t, err)

	assert.Equal(t, openmeteo.QueryParams{
		"latitude":       "52.52",
		"longitude":      "13.41",
		"current":        "temperature_2m",
		"hourly":         "temperature_2m",
		"forecast_hours": "1",
	}, params)
}

func TestBuildQuery_MultipleLocations(t *testing.T) {
	opts := &openmeteo.ForecastOptions{
		Elevation: []float64{100.5, 250.0},
	}

	params, err := openmeteo.BuildQuery(
		openmeteo.Coordinates{52.52, 48.85},
		openmeteo.Coordinates{13.41, 2.35},
		opts,
	)
	require.NoError(t, err)

	assert.Equal(t, "52.52,48.85", params["latitude"])
	assert.Equal(t, "13.41,2.35", params["longitude"])
	assert.Equal(t, "100.5,250", params["elevation"])
}

func TestParams_ListsKeepCallerOrder(t *testing.T) {
	opts := &openmeteo.ForecastOptions{
		Hourly:  []string{"temperature_2m", "relative_humidity_2m", "wind_speed_10m"},
		Daily:   []string{"weather_code", "sunrise"},
		Current: []string{"precipitation", "cloud_cover"},
		Models:  []string{"icon_seamless", "gfs_seamless"},
	}

	params := opts.Params()

	assert.Equal(t, "temperature_2m,relative_humidity_2m,wind_speed_10m", params["hourly"])
	assert.Equal(t, "weather_code,sunrise", params["daily"])
	assert.Equal(t, "precipitation,cloud_cover", params["current"])
	assert.Equal(t, "icon_seamless,gfs_seamless", params["models"])
}

func TestParams_EmptyListsOmitted(t *testing.T) {
	opts := &openmeteo.ForecastOptions{
		Hourly: []string{},
		Models: nil,
	}

	params := opts.Params()

	assert.NotContains(t, params, "hourly")
	assert.NotContains(t, params, "models")
}

func TestParams_ExplicitDefaultsAreSent(t *testing.T) {
	opts := &openmeteo.ForecastOptions{
		TemperatureUnit:   openmeteo.DefaultTemperatureUnit,
		WindSpeedUnit:     openmeteo.DefaultWindSpeedUnit,
		PrecipitationUnit: openmeteo.DefaultPrecipitationUnit,
		TimeFormat:        openmeteo.DefaultTimeFormat,
		CellSelection:     openmeteo.DefaultCellSelection,
	}

	assert.Equal(t, openmeteo.QueryParams{
		"temperature_unit":   "celsius",
		"wind_speed_unit":    "kmh",
		"precipitation_unit": "mm",
		"timeformat":         "iso8601",
		"cell_selection":     "land",
	}, opts.Params())
}

func TestParams_UnsetEnumsAbsent(t *testing.T) {
	opts := &openmeteo.ForecastOptions{Timezone: "Europe/Berlin"}

	params := opts.Params()

	assert.Equal(t, openmeteo.QueryParams{"timezone": "Europe/Berlin"}, params)
}

func TestParams_AllScalars(t *testing.T) {
	opts := &openmeteo.ForecastOptions{
		TemperatureUnit:    openmeteo.TemperatureFahrenheit,
		WindSpeedUnit:      openmeteo.WindSpeedKnots,
		PrecipitationUnit:  openmeteo.PrecipitationInch,
		TimeFormat:         openmeteo.TimeFormatUnixTime,
		CellSelection:      openmeteo.CellSelectionNearest,
		Timezone:           "auto",
		PastDays:           openmeteo.Int(0),
		ForecastDays:       openmeteo.Int(16),
		ForecastHours:      openmeteo.Int(24),
		ForecastMinutely15: openmeteo.Int(8),
		PastHours:          openmeteo.Int(6),
		PastMinutely15:     openmeteo.Int(4),
		StartDate:          "2024-06-01",
		EndDate:            "2024-06-07",
		StartHour:          "2024-06-01T00:00",
		EndHour:            "2024-06-01T12:00",
		StartMinutely15:    "2024-06-01T00:15",
		EndMinutely15:      "2024-06-01T01:45",
	}

	assert.Equal(t, openmeteo.QueryParams{
		"temperature_unit":     "fahrenheit",
		"wind_speed_unit":      "kn",
		"precipitation_unit":   "inch",
		"timeformat":           "unixtime",
		"cell_selection":       "nearest",
		"timezone":             "auto",
		"past_days":            "0",
		"forecast_days":        "16",
		"forecast_hours":       "24",
		"forecast_minutely_15": "8",
		"past_hours":           "6",
		"past_minutely_15":     "4",
		"start_date":           "2024-06-01",
		"end_date":             "2024-06-07",
		"start_hour":           "2024-06-01T00:00",
		"end_hour":             "2024-06-01T12:00",
		"start_minutely_15":    "2024-06-01T00:15",
		"end_minutely_15":      "2024-06-01T01:45",
	}, opts.Params())
}

func TestBuildQuery_Idempotent(t *testing.T) {
	opts := &openmeteo.ForecastOptions{
		Hourly:          []string{"temperature_2m", "rain"},
		Elevation:       []float64{38},
		TemperatureUnit: openmeteo.TemperatureFahrenheit,
		PastDays:        openmeteo.Int(3),
	}

	first, err := openmeteo.BuildQuery(openmeteo.Point(52.52), openmeteo.Point(13.41), opts)
	require.NoError(t, err)
	second, err := openmeteo.BuildQuery(openmeteo.Point(52.52), openmeteo.Point(13.41), opts)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, first.Encode(), second.Encode())
}

func TestQueryParams_Encode(t *testing.T) {
	params := openmeteo.QueryParams{
		"longitude": "13.41",
		"latitude":  "52.52",
		"hourly":    "temperature_2m,rain",
	}

	assert.Equal(t, "hourly=temperature_2m%2Crain&latitude=52.52&longitude=13.41", params.Encode())
}

func TestBuildQuery_Invalid(t *testing.T) {
	tests := []struct {
		name string
		lat  openmeteo.Coordinates
		lon  openmeteo.Coordinates
		opts *openmeteo.ForecastOptions
	}{
		{
			name: "missing latitude",
			lat:  nil,
			lon:  openmeteo.Point(13.41),
		},
		{
			name: "mismatched coordinate counts",
			lat:  openmeteo.Coordinates{52.52, 48.85},
			lon:  openmeteo.Point(13.41),
		},
		{
			name: "elevation count differs from locations",
			lat:  openmeteo.Coordinates{52.52, 48.85},
			lon:  openmeteo.Coordinates{13.41, 2.35},
			opts: &openmeteo.ForecastOptions{Elevation: []float64{1, 2, 3}},
		},
		{
			name: "unknown temperature unit",
			lat:  openmeteo.Point(52.52),
			lon:  openmeteo.Point(13.41),
			opts: &openmeteo.ForecastOptions{TemperatureUnit: "kelvin"},
		},
		{
			name: "unknown cell selection",
			lat:  openmeteo.Point(52.52),
			lon:  openmeteo.Point(13.41),
			opts: &openmeteo.ForecastOptions{CellSelection: "ocean"},
		},
		{
			name: "past days above limit",
			lat:  openmeteo.Point(52.52),
			lon:  openmeteo.Point(13.41),
			opts: &openmeteo.ForecastOptions{PastDays: openmeteo.Int(93)},
		},
		{
			name: "forecast days above limit",
			lat:  openmeteo.Point(52.52),
			lon:  openmeteo.Point(13.41),
			opts: &openmeteo.ForecastOptions{ForecastDays: openmeteo.Int(17)},
		},
		{
			name: "negative forecast hours",
			lat:  openmeteo.Point(52.52),
			lon:  openmeteo.Point(13.41),
			opts: &openmeteo.ForecastOptions{ForecastHours: openmeteo.Int(-1)},
		},
		{
			name: "malformed start date",
			lat:  openmeteo.Point(52.52),
			lon:  openmeteo.Point(13.41),
			opts: &openmeteo.ForecastOptions{StartDate: "01.06.2024"},
		},
		{
			name: "start hour without time",
			lat:  openmeteo.Point(52.52),
			lon:  openmeteo.Point(13.41),
			opts: &openmeteo.ForecastOptions{StartHour: "2024-06-01"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params, err := openmeteo.BuildQuery(tt.lat, tt.lon, tt.opts)
			require.Error(t, err)
			assert.ErrorIs(t, err, openmeteo.ErrInvalidOptions)
			assert.Nil(t, params)
		})
	}
}

func TestBuildQuery_SingleElevationForManyLocations(t *testing.T) {
	params, err := openmeteo.BuildQuery(
		openmeteo.Coordinates{52.52, 48.85},
		openmeteo.Coordinates{13.41, 2.35},
		&openmeteo.ForecastOptions{Elevation: []float64{34}},
	)
	require.NoError(t, err)

	assert.Equal(t, "34", params["elevation"])
}

func TestEnums_Valid(t *testing.T) {
	assert.True(t, openmeteo.TemperatureCelsius.Valid())
	assert.False(t, openmeteo.TemperatureUnit("").Valid())
	assert.True(t, openmeteo.WindSpeedMs.Valid())
	assert.False(t, openmeteo.WindSpeedUnit("knots").Valid())
	assert.True(t, openmeteo.PrecipitationInch.Valid())
	assert.False(t, openmeteo.PrecipitationUnit("cm").Valid())
	assert.True(t, openmeteo.TimeFormatUnixTime.Valid())
	assert.False(t, openmeteo.TimeFormat("rfc3339").Valid())
	assert.True(t, openmeteo.CellSelectionSea.Valid())
	assert.False(t, openmeteo.CellSelection("lake").Valid())
}
