package openmeteo

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Wire names of the forecast endpoint's query parameters.
const (
	ParamLatitude           = "latitude"
	ParamLongitude          = "longitude"
	ParamElevation          = "elevation"
	ParamHourly             = "hourly"
	ParamDaily              = "daily"
	ParamCurrent            = "current"
	ParamModels             = "models"
	ParamTemperatureUnit    = "temperature_unit"
	ParamWindSpeedUnit      = "wind_speed_unit"
	ParamPrecipitationUnit  = "precipitation_unit"
	ParamTimeFormat         = "timeformat"
	ParamTimezone           = "timezone"
	ParamPastDays           = "past_days"
	ParamForecastDays       = "forecast_days"
	ParamForecastHours      = "forecast_hours"
	ParamForecastMinutely15 = "forecast_minutely_15"
	ParamPastHours          = "past_hours"
	ParamPastMinutely15     = "past_minutely_15"
	ParamStartDate          = "start_date"
	ParamEndDate            = "end_date"
	ParamStartHour          = "start_hour"
	ParamEndHour            = "end_hour"
	ParamStartMinutely15    = "start_minutely_15"
	ParamEndMinutely15      = "end_minutely_15"
	ParamCellSelection      = "cell_selection"
)

// Limits enforced by the API on the day counts.
const (
	MaxPastDays     = 92
	MaxForecastDays = 16
)

const (
	dateLayout = "2006-01-02"
	hourLayout = "2006-01-02T15:04"
)

// QueryParams is the flat parameter set sent to the forecast endpoint.
// Every list-valued option is collapsed into one comma-joined string.
type QueryParams map[string]string

// Values converts p into url.Values for encoding.
func (p QueryParams) Values() url.Values {
	v := make(url.Values, len(p))
	for key, value := range p {
		v.Set(key, value)
	}
	return v
}

// Encode returns the URL-encoded query string, sorted by key.
func (p QueryParams) Encode() string {
	return p.Values().Encode()
}

// BuildQuery validates the coordinates and options and returns the query
// parameters for a forecast request. A nil opts sends coordinates only.
func BuildQuery(lat, lon Coordinates, opts *ForecastOptions) (QueryParams, error) {
	if err := validateCoordinates(lat, lon); err != nil {
		return nil, err
	}

	params := QueryParams{
		ParamLatitude:  joinFloats(lat),
		ParamLongitude: joinFloats(lon),
	}

	if opts == nil {
		return params, nil
	}

	if err := opts.Validate(len(lat)); err != nil {
		return nil, err
	}

	for key, value := range opts.Params() {
		params[key] = value
	}

	return params, nil
}

// Params returns the parameters described by o alone, without coordinates.
// Unset fields produce no key; a zero ForecastOptions yields an empty map.
func (o *ForecastOptions) Params() QueryParams {
	params := QueryParams{}
	if o == nil {
		return params
	}

	if len(o.Elevation) > 0 {
		params[ParamElevation] = joinFloats(o.Elevation)
	}

	setList(params, ParamHourly, o.Hourly)
	setList(params, ParamDaily, o.Daily)
	setList(params, ParamCurrent, o.Current)
	setList(params, ParamModels, o.Models)

	setString(params, ParamTemperatureUnit, string(o.TemperatureUnit))
	setString(params, ParamWindSpeedUnit, string(o.WindSpeedUnit))
	setString(params, ParamPrecipitationUnit, string(o.PrecipitationUnit))
	setString(params, ParamTimeFormat, string(o.TimeFormat))
	setString(params, ParamCellSelection, string(o.CellSelection))
	setString(params, ParamTimezone, o.Timezone)

	setInt(params, ParamPastDays, o.PastDays)
	setInt(params, ParamForecastDays, o.ForecastDays)
	setInt(params, ParamForecastHours, o.ForecastHours)
	setInt(params, ParamForecastMinutely15, o.ForecastMinutely15)
	setInt(params, ParamPastHours, o.PastHours)
	setInt(params, ParamPastMinutely15, o.PastMinutely15)

	setString(params, ParamStartDate, o.StartDate)
	setString(params, ParamEndDate, o.EndDate)
	setString(params, ParamStartHour, o.StartHour)
	setString(params, ParamEndHour, o.EndHour)
	setString(params, ParamStartMinutely15, o.StartMinutely15)
	setString(params, ParamEndMinutely15, o.EndMinutely15)

	return params
}

// Validate checks o against the API's documented value sets and ranges.
// locations is the number of coordinates the options will be sent with;
// an elevation list must either hold one value or one per location.
func (o *ForecastOptions) Validate(locations int) error {
	if o == nil {
		return nil
	}

	if n := len(o.Elevation); n > 1 && n != locations {
		return invalid("elevation has %d values for %d locations", n, locations)
	}

	if o.TemperatureUnit != "" && !o.TemperatureUnit.Valid() {
		return invalid("unknown %s %q", ParamTemperatureUnit, o.TemperatureUnit)
	}
	if o.WindSpeedUnit != "" && !o.WindSpeedUnit.Valid() {
		return invalid("unknown %s %q", ParamWindSpeedUnit, o.WindSpeedUnit)
	}
	if o.PrecipitationUnit != "" && !o.PrecipitationUnit.Valid() {
		return invalid("unknown %s %q", ParamPrecipitationUnit, o.PrecipitationUnit)
	}
	if o.TimeFormat != "" && !o.TimeFormat.Valid() {
		return invalid("unknown %s %q", ParamTimeFormat, o.TimeFormat)
	}
	if o.CellSelection != "" && !o.CellSelection.Valid() {
		return invalid("unknown %s %q", ParamCellSelection, o.CellSelection)
	}

	if err := checkRange(ParamPastDays, o.PastDays, MaxPastDays); err != nil {
		return err
	}
	if err := checkRange(ParamForecastDays, o.ForecastDays, MaxForecastDays); err != nil {
		return err
	}
	counts := []struct {
		name  string
		value *int
	}{
		{ParamForecastHours, o.ForecastHours},
		{ParamForecastMinutely15, o.ForecastMinutely15},
		{ParamPastHours, o.PastHours},
		{ParamPastMinutely15, o.PastMinutely15},
	}
	for _, c := range counts {
		if err := checkRange(c.name, c.value, -1); err != nil {
			return err
		}
	}

	boundaries := []struct {
		name, value, layout string
	}{
		{ParamStartDate, o.StartDate, dateLayout},
		{ParamEndDate, o.EndDate, dateLayout},
		{ParamStartHour, o.StartHour, hourLayout},
		{ParamEndHour, o.EndHour, hourLayout},
		{ParamStartMinutely15, o.StartMinutely15, hourLayout},
		{ParamEndMinutely15, o.EndMinutely15, hourLayout},
	}
	for _, b := range boundaries {
		if err := checkLayout(b.name, b.value, b.layout); err != nil {
			return err
		}
	}

	return nil
}

func validateCoordinates(lat, lon Coordinates) error {
	if len(lat) == 0 || len(lon) == 0 {
		return invalid("latitude and longitude are required")
	}
	if len(lat) != len(lon) {
		return invalid("%d latitudes but %d longitudes", len(lat), len(lon))
	}
	return nil
}

// checkRange rejects negative values and, when upper >= 0, values above upper.
func checkRange(name string, v *int, upper int) error {
	if v == nil {
		return nil
	}
	if *v < 0 || (upper >= 0 && *v > upper) {
		if upper >= 0 {
			return invalid("%s must be between 0 and %d, got %d", name, upper, *v)
		}
		return invalid("%s must not be negative, got %d", name, *v)
	}
	return nil
}

func checkLayout(name, v, layout string) error {
	if v == "" {
		return nil
	}
	if _, err := time.Parse(layout, v); err != nil {
		return invalid("%s %q does not match %s", name, v, layout)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidOptions, fmt.Sprintf(format, args...))
}

func joinFloats(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}

func setList(params QueryParams, key string, values []string) {
	if len(values) > 0 {
		params[key] = strings.Join(values, ",")
	}
}

func setString(params QueryParams, key, value string) {
	if value != "" {
		params[key] = value
	}
}

func setInt(params QueryParams, key string, value *int) {
	if value != nil {
		params[key] = strconv.Itoa(*value)
	}
}
