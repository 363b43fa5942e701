// Package geo provides one-shot device location sources.
package geo

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/weather-lookup/internal/common"
	"github.com/i474232898/weather-lookup/internal/weather"
)

// DefaultTimeout bounds a single location request.
const DefaultTimeout = 10 * time.Second

// Static always reports the same coordinates, e.g. a fixed installation site.
type Static struct {
	Coords weather.Coordinates
}

func (s Static) Locate(ctx context.Context) (weather.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return weather.Coordinates{}, weather.ErrGeoTimeout
	}
	return s.Coords, nil
}

// geocodeFunc matches geocoder.Geocoding.
type geocodeFunc func(geocoder.Address) (geocoder.Location, error)

// AddressLocator resolves a configured street address with the Google
// geocoding API. The result is reused for maxAge.
type AddressLocator struct {
	address geocoder.Address
	timeout time.Duration
	maxAge  time.Duration
	geocode geocodeFunc

	mu       sync.Mutex
	last     weather.Coordinates
	lastTime time.Time
}

var geocoderKeyOnce sync.Once

// NewAddressLocator creates a locator for address. The geocoder package keeps
// its API key globally, so the first key wins.
func NewAddressLocator(apiKey string, address geocoder.Address) *AddressLocator {
	geocoderKeyOnce.Do(func() {
		geocoder.ApiKey = apiKey
	})
	return &AddressLocator{
		address: address,
		timeout: DefaultTimeout,
		maxAge:  time.Minute,
		geocode: geocoder.Geocoding,
	}
}

// Locate geocodes the address once per maxAge.
// Denied API access maps to ErrGeoPermissionDenied and deadlines to ErrGeoTimeout.
func (l *AddressLocator) Locate(ctx context.Context) (weather.Coordinates, error) {
	l.mu.Lock()
	if !l.lastTime.IsZero() && time.Since(l.lastTime) < l.maxAge {
		c := l.last
		l.mu.Unlock()
		return c, nil
	}
	l.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	type result struct {
		loc geocoder.Location
		err error
	}
	done := make(chan result, 1)

	// geocoder has no context support; the goroutine finishes on its own after a timeout.
	go func() {
		loc, err := l.geocode(l.address)
		done <- result{loc: loc, err: err}
	}()

	select {
	case <-ctx.Done():
		return weather.Coordinates{}, weather.ErrGeoTimeout
	case r := <-done:
		if r.err != nil {
			return weather.Coordinates{}, classify(r.err)
		}
		c := weather.Coordinates{Lat: r.loc.Latitude, Lon: r.loc.Longitude}

		l.mu.Lock()
		l.last = c
		l.lastTime = time.Now()
		l.mu.Unlock()
		return c, nil
	}
}

func classify(err error) error {
	msg := err.Error()
	switch {
	case common.HasAny(msg, "REQUEST_DENIED", "OVER_DAILY_LIMIT", "API key"):
		log.Printf("ERROR: geocoder denied request: %v", err)
		return weather.ErrGeoPermissionDenied
	case errors.Is(err, context.DeadlineExceeded) || common.HasAny(msg, "timeout", "deadline"):
		return weather.ErrGeoTimeout
	default:
		log.Printf("ERROR: geocoder failed: %v", err)
		return weather.ErrGeoUnavailable
	}
}
