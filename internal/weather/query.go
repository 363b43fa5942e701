package weather

import (
	"regexp"
	"strings"
)

// RequestKind says how a provider request identifies the place.
type RequestKind string

const (
	RequestByName   RequestKind = "name"
	RequestByPostal RequestKind = "postal"
	RequestByCoords RequestKind = "coords"
)

var postalCodePattern = regexp.MustCompile(`^\d{3,10}$`)

// Request describes a place in the form the provider accepts.
// It is not a Location: the provider's current-weather response is
// authoritative for the canonical name, country and coordinates.
type Request struct {
	Kind    RequestKind
	Name    string
	Postal  string
	Country string
	Coords  Coordinates
}

// ParseQuery classifies a free-form search text.
// A blank query is rejected with ErrEmptyQuery.
func ParseQuery(raw, defaultCountry string) (Request, error) {
	q := strings.TrimSpace(raw)
	if q == "" {
		return Request{}, ErrEmptyQuery
	}

	if postalCodePattern.MatchString(q) {
		return Request{
			Kind:    RequestByPostal,
			Postal:  q,
			Country: defaultCountry,
		}, nil
	}

	return Request{Kind: RequestByName, Name: q}, nil
}

// CoordinateRequest builds a request for an already resolved coordinate pair.
func CoordinateRequest(lat, lon float64) Request {
	return Request{Kind: RequestByCoords, Coords: Coordinates{Lat: lat, Lon: lon}}
}

// NameRequest builds a request for a "name" or "name,country" place string.
func NameRequest(name string) Request {
	return Request{Kind: RequestByName, Name: name}
}

func (r Request) String() string {
	switch r.Kind {
	case RequestByPostal:
		return r.Postal + "," + r.Country
	case RequestByCoords:
		return r.Coords.String()
	default:
		return r.Name
	}
}
