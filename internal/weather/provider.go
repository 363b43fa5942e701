package weather

import (
	"context"
)

// Provider abstracts the remote weather source. Implementations return raw
// payloads; normalization stays in this package so the provider can be
// swapped without touching aggregation.
type Provider interface {
	Name() string
	Current(ctx context.Context, req Request, unit Unit) (RawCurrent, error)
	Forecast(ctx context.Context, req Request, unit Unit) (RawForecast, error)
	AirQuality(ctx context.Context, coords Coordinates) (RawAirQuality, error)
}

// Locator is a one-shot device location source.
type Locator interface {
	Locate(ctx context.Context) (Coordinates, error)
}

// Preferences persists the unit and the last lookup between sessions.
type Preferences interface {
	Unit() Unit
	Toggle() (Unit, error)
	LastLookup() (LastLookup, bool)
	SaveLastLookup(l LastLookup) error
}

// Observer is notified with a copy of the state after every change.
type Observer interface {
	OnStateChange(State)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(State)

func (f ObserverFunc) OnStateChange(s State) { f(s) }
