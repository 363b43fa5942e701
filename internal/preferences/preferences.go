// Package preferences persists the unit preference and the last lookup
// on top of a key-value store.
package preferences

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/i474232898/weather-lookup/internal/store"
	"github.com/i474232898/weather-lookup/internal/weather"
)

const (
	KeyUnit       = "unitPreference"
	KeyLastLookup = "last"
)

// opTimeout bounds a single backend read or write.
const opTimeout = 3 * time.Second

// Store is the single writer of the unit preference. The unit is cached in
// memory so reads never touch the backend.
type Store struct {
	kv store.KV

	mu   sync.RWMutex
	unit weather.Unit
}

// New loads the saved unit from kv, defaulting to metric.
func New(kv store.KV) *Store {
	s := &Store{kv: kv, unit: weather.UnitMetric}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	v, err := kv.Get(ctx, KeyUnit)
	switch {
	case err == nil:
		s.unit = weather.ParseUnit(v)
	case !errors.Is(err, store.ErrNotFound):
		log.Printf("ERROR: preferences: failed to read unit, using %s: %v", s.unit, err)
	}
	return s
}

// Unit returns the active unit.
func (s *Store) Unit() weather.Unit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unit
}

// SetUnit makes u the active unit and persists it. The in-memory value
// changes even when persisting fails.
func (s *Store) SetUnit(u weather.Unit) error {
	s.mu.Lock()
	s.unit = u
	s.mu.Unlock()
	return s.saveUnit(u)
}

// Toggle switches between metric and imperial and returns the new unit.
func (s *Store) Toggle() (weather.Unit, error) {
	s.mu.Lock()
	s.unit = s.unit.Other()
	u := s.unit
	s.mu.Unlock()
	return u, s.saveUnit(u)
}

func (s *Store) saveUnit(u weather.Unit) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return s.kv.Set(ctx, KeyUnit, string(u))
}

// LastLookup returns the persisted last lookup, if any.
func (s *Store) LastLookup() (weather.LastLookup, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	v, err := s.kv.Get(ctx, KeyLastLookup)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("ERROR: preferences: failed to read last lookup: %v", err)
		}
		return weather.LastLookup{}, false
	}
	return weather.DecodeLastLookup(v)
}

// SaveLastLookup persists l for the next session.
func (s *Store) SaveLastLookup(l weather.LastLookup) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return s.kv.Set(ctx, KeyLastLookup, l.Encode())
}
