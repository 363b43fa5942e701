package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-lookup/internal/weather"
)

// DefaultOpenWeatherBaseURL is the OpenWeatherMap 2.5 API root.
const DefaultOpenWeatherBaseURL = "https://api.openweathermap.org/data/2.5"

const (
	endpointCurrent    = "weather"
	endpointForecast   = "forecast"
	endpointAirQuality = "air_pollution"
)

// OpenWeatherProvider implements the weather.Provider interface for OpenWeatherMap.
type OpenWeatherProvider struct {
	name     string
	apiKey   string
	baseURL  string
	httpCfg  HTTPClientConfig
	circuits map[string]*gobreaker.CircuitBreaker
}

// OpenWeatherOption configures an OpenWeatherProvider.
type OpenWeatherOption func(*OpenWeatherProvider)

// WithBaseURL points the provider at another API root, e.g. a test server.
func WithBaseURL(u string) OpenWeatherOption {
	return func(p *OpenWeatherProvider) { p.baseURL = strings.TrimRight(u, "/") }
}

// WithBackoff enables retrying of transport errors, rate limits and server errors.
func WithBackoff(b BackoffConfig) OpenWeatherOption {
	return func(p *OpenWeatherProvider) { p.httpCfg.Backoff = b }
}

func NewOpenWeatherProvider(client *http.Client, apiKey string, opts ...OpenWeatherOption) *OpenWeatherProvider {
	p := &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: DefaultOpenWeatherBaseURL,
		httpCfg: HTTPClientConfig{
			Client: client,
			Backoff: BackoffConfig{
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuits: map[string]*gobreaker.CircuitBreaker{
			endpointCurrent:    newCircuitBreaker("openweather-current"),
			endpointForecast:   newCircuitBreaker("openweather-forecast"),
			endpointAirQuality: newCircuitBreaker("openweather-air-pollution"),
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

// Current fetches current weather by name, postal code or coordinates.
func (p *OpenWeatherProvider) Current(ctx context.Context, req weather.Request, unit weather.Unit) (weather.RawCurrent, error) {
	var payload weather.RawCurrent

	values := url.Values{}
	values.Set("units", string(unit))
	switch req.Kind {
	case weather.RequestByPostal:
		values.Set("zip", fmt.Sprintf("%s,%s", req.Postal, req.Country))
	case weather.RequestByCoords:
		setCoords(values, req.Coords)
	default:
		values.Set("q", req.Name)
	}

	err := p.get(ctx, endpointCurrent, values, &payload)
	return payload, err
}

// Forecast fetches the 5-day/3-hour forecast by name or coordinates.
func (p *OpenWeatherProvider) Forecast(ctx context.Context, req weather.Request, unit weather.Unit) (weather.RawForecast, error) {
	var payload weather.RawForecast

	values := url.Values{}
	values.Set("units", string(unit))
	switch req.Kind {
	case weather.RequestByCoords:
		setCoords(values, req.Coords)
	case weather.RequestByPostal:
		values.Set("zip", fmt.Sprintf("%s,%s", req.Postal, req.Country))
	default:
		values.Set("q", req.Name)
	}

	err := p.get(ctx, endpointForecast, values, &payload)
	return payload, err
}

// AirQuality fetches the air pollution index for coordinates.
func (p *OpenWeatherProvider) AirQuality(ctx context.Context, coords weather.Coordinates) (weather.RawAirQuality, error) {
	var payload weather.RawAirQuality

	values := url.Values{}
	setCoords(values, coords)

	err := p.get(ctx, endpointAirQuality, values, &payload)
	return payload, err
}

func (p *OpenWeatherProvider) get(ctx context.Context, endpoint string, values url.Values, out any) error {
	if p.apiKey == "" {
		return fmt.Errorf("openweather api key is not configured")
	}

	buildRequest := func() (*http.Request, error) {
		q := url.Values{}
		for k, v := range values {
			q[k] = v
		}
		q.Set("appid", p.apiKey)

		u := fmt.Sprintf("%s/%s?%s", p.baseURL, endpoint, q.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, endpoint, p.httpCfg, p.circuits[endpoint], buildRequest)
	if err != nil {
		return fmt.Errorf("openweather %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("openweather %s: decode response: %w", endpoint, err)
	}
	return nil
}

func setCoords(values url.Values, c weather.Coordinates) {
	values.Set("lat", strconv.FormatFloat(c.Lat, 'f', -1, 64))
	values.Set("lon", strconv.FormatFloat(c.Lon, 'f', -1, 64))
}
