package openmeteo

// Coordinates holds one or more latitude or longitude values.
// A single value requests one location; several values request a
// multi-location forecast whose results come back in the same order.
type Coordinates []float64

// Point returns single-location coordinates.
func Point(v float64) Coordinates {
	return Coordinates{v}
}

// TemperatureUnit selects the unit for temperature variables.
type TemperatureUnit string

const (
	TemperatureCelsius    TemperatureUnit = "celsius"
	TemperatureFahrenheit TemperatureUnit = "fahrenheit"

	DefaultTemperatureUnit = TemperatureCelsius
)

// Valid reports whether u is a known temperature unit.
func (u TemperatureUnit) Valid() bool {
	switch u {
	case TemperatureCelsius, TemperatureFahrenheit:
		return true
	default:
		return false
	}
}

// WindSpeedUnit selects the unit for wind speed variables.
type WindSpeedUnit string

const (
	WindSpeedKmh   WindSpeedUnit = "kmh"
	WindSpeedMs    WindSpeedUnit = "ms"
	WindSpeedMph   WindSpeedUnit = "mph"
	WindSpeedKnots WindSpeedUnit = "kn"

	DefaultWindSpeedUnit = WindSpeedKmh
)

// Valid reports whether u is a known wind speed unit.
func (u WindSpeedUnit) Valid() bool {
	switch u {
	case WindSpeedKmh, WindSpeedMs, WindSpeedMph, WindSpeedKnots:
		return true
	default:
		return false
	}
}

// PrecipitationUnit selects the unit for precipitation variables.
type PrecipitationUnit string

const (
	PrecipitationMillimeter PrecipitationUnit = "mm"
	PrecipitationInch       PrecipitationUnit = "inch"

	DefaultPrecipitationUnit = PrecipitationMillimeter
)

// Valid reports whether u is a known precipitation unit.
func (u PrecipitationUnit) Valid() bool {
	switch u {
	case PrecipitationMillimeter, PrecipitationInch:
		return true
	default:
		return false
	}
}

// TimeFormat selects how timestamps are rendered in the response.
type TimeFormat string

const (
	TimeFormatISO8601  TimeFormat = "iso8601"
	TimeFormatUnixTime TimeFormat = "unixtime"

	DefaultTimeFormat = TimeFormatISO8601
)

// Valid reports whether f is a known time format.
func (f TimeFormat) Valid() bool {
	switch f {
	case TimeFormatISO8601, TimeFormatUnixTime:
		return true
	default:
		return false
	}
}

// CellSelection controls how the model grid cell is picked for a coordinate.
type CellSelection string

const (
	CellSelectionLand    CellSelection = "land"
	CellSelectionSea     CellSelection = "sea"
	CellSelectionNearest CellSelection = "nearest"

	DefaultCellSelection = CellSelectionLand
)

// Valid reports whether s is a known cell selection mode.
func (s CellSelection) Valid() bool {
	switch s {
	case CellSelectionLand, CellSelectionSea, CellSelectionNearest:
		return true
	default:
		return false
	}
}

// ForecastOptions configures a forecast request.
//
// Every field is optional. The zero value of a field means "not set" and
// the field is left out of the request entirely, so the API applies its
// own default. Enum fields that are set are always sent, even when they
// equal the API default.
type ForecastOptions struct {
	// Elevation overrides the terrain elevation, in meters, for each location.
	Elevation []float64

	// Variable lists. Order is preserved on the wire and the API returns
	// the series in the same order.
	Hourly  []string
	Daily   []string
	Current []string

	TemperatureUnit   TemperatureUnit
	WindSpeedUnit     WindSpeedUnit
	PrecipitationUnit PrecipitationUnit
	TimeFormat        TimeFormat
	CellSelection     CellSelection

	// Timezone is an IANA name such as "Europe/Berlin", or "auto".
	Timezone string

	PastDays           *int // 0-92
	ForecastDays       *int // 0-16
	ForecastHours      *int
	ForecastMinutely15 *int
	PastHours          *int
	PastMinutely15     *int

	// Date range boundaries, formatted yyyy-mm-dd.
	StartDate string
	EndDate   string

	// Hourly and 15-minutely range boundaries, formatted yyyy-mm-ddThh:mm.
	StartHour       string
	EndHour         string
	StartMinutely15 string
	EndMinutely15   string

	// Models restricts the weather models used, in priority order.
	Models []string
}

// Int returns a pointer to v, for the optional count fields of ForecastOptions.
func Int(v int) *int {
	return &v
}
