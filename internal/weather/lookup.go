package weather

import (
	"math"
	"strconv"
	"strings"
)

const (
	lastQueryPrefix  = "q:"
	lastCoordsPrefix = "geo:"
)

// LastLookup is the intent of the most recent lookup, kept so a restarted
// process can replay it. Exactly one of Query or Coords is set.
type LastLookup struct {
	Query  string
	Coords *Coordinates
}

// Encode renders the lookup as "q:<text>" or "geo:<lat>,<lon>".
func (l LastLookup) Encode() string {
	if l.Coords != nil {
		return lastCoordsPrefix + l.Coords.String()
	}
	return lastQueryPrefix + l.Query
}

// DecodeLastLookup parses a value produced by Encode.
func DecodeLastLookup(v string) (LastLookup, bool) {
	switch {
	case strings.HasPrefix(v, lastQueryPrefix):
		q := strings.TrimPrefix(v, lastQueryPrefix)
		if strings.TrimSpace(q) == "" {
			return LastLookup{}, false
		}
		return LastLookup{Query: q}, true

	case strings.HasPrefix(v, lastCoordsPrefix):
		parts := strings.Split(strings.TrimPrefix(v, lastCoordsPrefix), ",")
		if len(parts) != 2 {
			return LastLookup{}, false
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return LastLookup{}, false
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil || math.IsNaN(lat) || math.IsNaN(lon) {
			return LastLookup{}, false
		}
		return LastLookup{Coords: &Coordinates{Lat: lat, Lon: lon}}, true
	}

	return LastLookup{}, false
}
