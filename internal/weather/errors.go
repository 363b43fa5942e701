package weather

import (
	"errors"
	"fmt"
)

// GenericErrorMessage is shown when an error carries no user-facing text.
const GenericErrorMessage = "Something went wrong. Please try again."

var (
	// ErrEmptyQuery is returned before any network call when the search text is blank.
	ErrEmptyQuery = &ValidationError{Message: "Please enter a city or zip."}

	// Geolocation failures.
	ErrGeoUnsupported      = &GeolocationError{Reason: "unsupported", Message: "Geolocation not supported"}
	ErrGeoPermissionDenied = &GeolocationError{Reason: "permission_denied", Message: "Location permission denied"}
	ErrGeoTimeout          = &GeolocationError{Reason: "timeout", Message: "Timed out while getting location"}
	ErrGeoUnavailable      = &GeolocationError{Reason: "unavailable", Message: "Location unavailable"}

	// errStaleLookup marks a completion that belongs to a lookup that is no longer current.
	errStaleLookup = errors.New("stale lookup")

	errNoProvider = errors.New("no weather provider configured")
)

// ValidationError is a user input problem detected before any network call.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// GeolocationError is a failed one-shot device location request.
type GeolocationError struct {
	Reason  string
	Message string
}

func (e *GeolocationError) Error() string {
	return e.Message
}

// ProviderError is a non-success response from the weather provider.
type ProviderError struct {
	Endpoint   string
	StatusCode int
	Code       int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: provider returned status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s: provider error (code %d): %s", e.Endpoint, e.Code, e.Message)
}

// UserMessage turns err into text that is safe to show to a user.
// Structured provider messages win; transport errors never leak.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var pe *ProviderError
	if errors.As(err, &pe) && pe.Message != "" {
		return pe.Message
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}

	var ge *GeolocationError
	if errors.As(err, &ge) {
		return ge.Message
	}

	return GenericErrorMessage
}
