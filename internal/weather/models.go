package weather

import (
	"fmt"
	"strconv"
)

// Unit is the measurement system requested from the provider.
// It decides the scale of every temperature and speed field we return.
type Unit string

const (
	UnitMetric   Unit = "metric"
	UnitImperial Unit = "imperial"
)

// ParseUnit returns the unit for s, falling back to metric for anything unknown.
func ParseUnit(s string) Unit {
	if Unit(s) == UnitImperial {
		return UnitImperial
	}
	return UnitMetric
}

// Other returns the opposite unit.
func (u Unit) Other() Unit {
	if u == UnitImperial {
		return UnitMetric
	}
	return UnitImperial
}

// DefaultIcon is used when the provider omits a condition icon.
const DefaultIcon = "01d"

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (c Coordinates) String() string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lon, 'f', -1, 64)
}

// Location is the canonical place as reported by the provider.
type Location struct {
	Name    string  `json:"name"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// Key returns a canonical string key for this location.
func (l Location) Key() string {
	return l.Name + ":" + l.Country
}

// Query returns the "name,country" form accepted by the provider's q parameter.
func (l Location) Query() string {
	if l.Country == "" {
		return l.Name
	}
	return fmt.Sprintf("%s,%s", l.Name, l.Country)
}

// Coordinates returns the resolved coordinates of the location.
func (l Location) Coordinates() Coordinates {
	return Coordinates{Lat: l.Lat, Lon: l.Lon}
}

// CurrentSnapshot is the normalized current-weather view.
// Timestamps are epoch milliseconds.
type CurrentSnapshot struct {
	Location         Location `json:"location"`
	ObservedAtMs     int64    `json:"observedAtMs"`
	Temperature      *float64 `json:"temperature,omitempty"`
	Humidity         *float64 `json:"humidity,omitempty"`
	WindSpeed        *float64 `json:"windSpeed,omitempty"`
	ConditionCode    string   `json:"conditionCode"`
	ConditionText    string   `json:"conditionText"`
	SunriseMs        int64    `json:"sunriseMs"`
	SunsetMs         int64    `json:"sunsetMs"`
	UTCOffsetSeconds int      `json:"utcOffsetSeconds"`
	Precipitation    float64  `json:"precipitation"`

	// AirQualityIndex is filled in after the snapshot exists; nil means not known yet.
	AirQualityIndex *int `json:"airQualityIndex,omitempty"`
}

// DailyBucket summarizes one UTC calendar date of the forecast.
type DailyBucket struct {
	Date          string  `json:"date"` // YYYY-MM-DD
	Min           float64 `json:"min"`
	Max           float64 `json:"max"`
	ConditionCode string  `json:"conditionCode"`
	ConditionText string  `json:"conditionText"`
}

// HourlyPoint is one 3-hour forecast sample for the short preview.
type HourlyPoint struct {
	Time          string  `json:"time"` // HH:MM in the display zone
	Temperature   float64 `json:"temperature"`
	ConditionCode string  `json:"conditionCode"`
	ConditionText string  `json:"conditionText"`
}

// ForecastSample is a single normalized entry of the 3-hour forecast stream.
type ForecastSample struct {
	TimestampMs   int64
	Temperature   float64
	ConditionCode string
	ConditionText string
}

// Forecast is the aggregated view of a forecast stream.
type Forecast struct {
	Daily  []DailyBucket `json:"daily"`
	Hourly []HourlyPoint `json:"hourly"`
}

// AQILabel returns the human label of an air quality index.
func AQILabel(aqi *int) string {
	if aqi == nil {
		return "-"
	}
	switch *aqi {
	case 1:
		return "Good"
	case 2:
		return "Fair"
	case 3:
		return "Moderate"
	case 4:
		return "Poor"
	case 5:
		return "Very Poor"
	default:
		return "-"
	}
}

// IconURL returns the provider URL of a condition icon.
func IconURL(code string) string {
	if code == "" {
		code = DefaultIcon
	}
	return fmt.Sprintf("https://openweathermap.org/img/wn/%s@2x.png", code)
}
