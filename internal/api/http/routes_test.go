package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-lookup/internal/preferences"
	"github.com/i474232898/weather-lookup/internal/store"
	"github.com/i474232898/weather-lookup/internal/weather"
)

// stubProvider serves a fixed place for every request.
type stubProvider struct {
	err error
}

func (stubProvider) Name() string { return "stub" }

func (p stubProvider) Current(context.Context, weather.Request, weather.Unit) (weather.RawCurrent, error) {
	if p.err != nil {
		return weather.RawCurrent{}, p.err
	}
	var raw weather.RawCurrent
	body := `{"name":"Paris","dt":1714557600,"coord":{"lat":48.85,"lon":2.35},"sys":{"country":"FR"},"main":{"temp":17}}`
	err := json.Unmarshal([]byte(body), &raw)
	return raw, err
}

func (p stubProvider) Forecast(context.Context, weather.Request, weather.Unit) (weather.RawForecast, error) {
	var raw weather.RawForecast
	body := `{"list":[{"dt":1714521600,"main":{"temp":12}},{"dt":1714532400,"main":{"temp":15}}]}`
	err := json.Unmarshal([]byte(body), &raw)
	return raw, err
}

func (stubProvider) AirQuality(context.Context, weather.Coordinates) (weather.RawAirQuality, error) {
	return weather.RawAirQuality{}, errors.New("no air quality")
}

func newTestApp(t *testing.T, p weather.Provider) (*fiber.App, *weather.Service) {
	t.Helper()

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	svc := weather.NewService(p, preferences.New(store.NewMemoryStore()))
	RegisterRoutes(app, svc)
	t.Cleanup(svc.WaitIdle)
	return app, svc
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, weather.State) {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	var st weather.State
	_ = json.NewDecoder(resp.Body).Decode(&st)
	return resp, st
}

func TestSearchReturnsState(t *testing.T) {
	app, _ := newTestApp(t, stubProvider{})

	resp, st := doJSON(t, app, http.MethodPost, "/api/v1/search", `{"query":"Paris"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if st.Status != weather.StatusSuccess || st.Current == nil || st.Current.Location.Name != "Paris" {
		t.Fatalf("unexpected state %+v", st)
	}
	if len(st.Daily) != 1 || len(st.Hourly) != 2 {
		t.Fatalf("expected 1 day and 2 hours, got %d/%d", len(st.Daily), len(st.Hourly))
	}
}

func TestSearchBlankQueryIsUnprocessable(t *testing.T) {
	app, _ := newTestApp(t, stubProvider{})

	for _, body := range []string{`{"query":"   "}`, `{"query":""}`, `{}`} {
		resp, st := doJSON(t, app, http.MethodPost, "/api/v1/search", body)
		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Fatalf("%s: expected status %d, got %d", body, http.StatusUnprocessableEntity, resp.StatusCode)
		}
		if st.Error != "Please enter a city or zip." {
			t.Fatalf("%s: unexpected error message %q", body, st.Error)
		}
	}
}

func TestSearchMalformedBody(t *testing.T) {
	app, _ := newTestApp(t, stubProvider{})

	resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/search", `{"query":`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestFailedLookupIsReportedInState(t *testing.T) {
	pe := &weather.ProviderError{Endpoint: "weather", StatusCode: 404, Code: 404, Message: "city not found"}
	app, _ := newTestApp(t, stubProvider{err: pe})

	resp, st := doJSON(t, app, http.MethodPost, "/api/v1/search", `{"query":"Atlantis"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if st.Status != weather.StatusFailed || st.Error != "city not found" {
		t.Fatalf("unexpected state %+v", st)
	}
}

func TestLocationValidation(t *testing.T) {
	app, _ := newTestApp(t, stubProvider{})

	// Latitude out of range.
	resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/location", `{"lat":95,"lon":10}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}

	// Longitude without latitude.
	resp, _ = doJSON(t, app, http.MethodPost, "/api/v1/location", `{"lon":10}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestLocationWithCoordinates(t *testing.T) {
	app, _ := newTestApp(t, stubProvider{})

	resp, st := doJSON(t, app, http.MethodPost, "/api/v1/location", `{"lat":48.85,"lon":2.35}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if st.Status != weather.StatusSuccess {
		t.Fatalf("unexpected state %+v", st)
	}
}

func TestLocationWithoutLocator(t *testing.T) {
	app, _ := newTestApp(t, stubProvider{})

	resp, st := doJSON(t, app, http.MethodPost, "/api/v1/location", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if st.Status != weather.StatusFailed || st.Error != "Geolocation not supported" {
		t.Fatalf("unexpected state %+v", st)
	}
}

func TestToggleUnitAndClearError(t *testing.T) {
	app, _ := newTestApp(t, stubProvider{})

	_, st := doJSON(t, app, http.MethodPost, "/api/v1/unit/toggle", "")
	if st.Unit != weather.UnitImperial {
		t.Fatalf("expected imperial after toggle, got %s", st.Unit)
	}

	_, st = doJSON(t, app, http.MethodPost, "/api/v1/location", "")
	if st.Error == "" {
		t.Fatal("expected a geolocation error")
	}

	resp, st := doJSON(t, app, http.MethodDelete, "/api/v1/error", "")
	if resp.StatusCode != http.StatusOK || st.Error != "" {
		t.Fatalf("expected cleared error, got %d %+v", resp.StatusCode, st)
	}
}

func TestForecastEndpoints(t *testing.T) {
	app, _ := newTestApp(t, stubProvider{})

	// Before any lookup the lists are empty, not null.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/forecast/daily", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var daily []weather.DailyBucket
	if err := json.NewDecoder(resp.Body).Decode(&daily); err != nil || daily == nil {
		t.Fatalf("expected an empty list, got %v (%v)", daily, err)
	}

	doJSON(t, app, http.MethodPost, "/api/v1/search", `{"query":"Paris"}`)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/forecast/hourly", nil)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var hourly []weather.HourlyPoint
	if err := json.NewDecoder(resp.Body).Decode(&hourly); err != nil {
		t.Fatalf("decode hourly: %v", err)
	}
	if len(hourly) != 2 {
		t.Fatalf("expected 2 hourly points, got %d", len(hourly))
	}
}

func TestCurrentView(t *testing.T) {
	app, _ := newTestApp(t, stubProvider{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/current", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d before any lookup, got %d", http.StatusNotFound, resp.StatusCode)
	}

	doJSON(t, app, http.MethodPost, "/api/v1/search", `{"query":"Paris"}`)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/current", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var view map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view["iconUrl"] != "https://openweathermap.org/img/wn/01d@2x.png" {
		t.Errorf("unexpected icon url %v", view["iconUrl"])
	}
	if view["airQualityLabel"] != "-" {
		t.Errorf("expected unknown AQI label, got %v", view["airQualityLabel"])
	}
	if view["unit"] != "metric" {
		t.Errorf("expected metric unit, got %v", view["unit"])
	}
	if loc, ok := view["location"].(map[string]any); !ok || loc["name"] != "Paris" {
		t.Errorf("expected embedded snapshot fields, got %v", view["location"])
	}
}
