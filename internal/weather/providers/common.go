package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-lookup/internal/weather"
)

// BackoffConfig controls exponential backoff behaviour.
// MaxRetries of zero disables retrying.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// HTTPClientConfig bundles HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client  *http.Client
	Backoff BackoffConfig
}

var (
	errRateLimited   = errors.New("rate limited")
	errServerError   = errors.New("server error")
	errCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

// maxErrorBody limits how much of an error response we read.
const maxErrorBody = 64 << 10

func newCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		// A 4xx answer means the provider is healthy and the request was wrong.
		IsSuccessful: func(err error) bool {
			var pe *weather.ProviderError
			if errors.As(err, &pe) {
				return pe.StatusCode < 500 && pe.StatusCode != http.StatusTooManyRequests
			}
			return err == nil
		},
	})
}

// doRequestWithResilience executes the HTTP request through the circuit breaker,
// retrying transport errors, rate limits and server errors with exponential backoff.
// Provider 4xx answers are returned immediately as *weather.ProviderError.
func doRequestWithResilience(
	ctx context.Context,
	endpoint string,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) (*http.Response, error) {
	if cfg.Client == nil {
		return nil, errNoHTTPClient
	}
	if cfg.Backoff.MaxRetries < 0 || (cfg.Backoff.MaxRetries > 0 && cfg.Backoff.InitialInterval <= 0) {
		return nil, errInvalidConfig
	}

	var attempt int

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := buildRequest()
		if err != nil {
			return nil, err
		}

		// Ensure the request obeys context cancellation.
		req = req.WithContext(ctx)

		result, err := cb.Execute(func() (interface{}, error) {
			resp, execErr := cfg.Client.Do(req)
			if execErr != nil {
				return nil, execErr
			}

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return nil, decodeProviderError(endpoint, resp)
			}

			return resp, nil
		})

		if err == nil {
			resp, ok := result.(*http.Response)
			if !ok {
				return nil, fmt.Errorf("unexpected result type from circuit breaker")
			}
			return resp, nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}

		if !retryable(err) || attempt >= cfg.Backoff.MaxRetries {
			return nil, err
		}

		delay := cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > cfg.Backoff.MaxInterval && cfg.Backoff.MaxInterval > 0 {
			delay = cfg.Backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		attempt++
	}
}

func retryable(err error) bool {
	var pe *weather.ProviderError
	if errors.As(err, &pe) {
		return errors.Is(err, errRateLimited) || errors.Is(err, errServerError)
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// statusError wraps a provider error with the transport class of its status.
type statusError struct {
	*weather.ProviderError
	class error
}

func (e *statusError) Unwrap() []error {
	return []error{e.ProviderError, e.class}
}

// decodeProviderError turns a non-2xx response into a ProviderError, reading
// the {"cod": ..., "message": ...} body when the provider sent one.
func decodeProviderError(endpoint string, resp *http.Response) error {
	defer resp.Body.Close()

	pe := &weather.ProviderError{
		Endpoint:   endpoint,
		StatusCode: resp.StatusCode,
		Code:       resp.StatusCode,
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload struct {
		Cod     json.RawMessage `json:"cod"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		pe.Message = payload.Message
		// cod is a number on some endpoints and a string on others.
		if code, err := strconv.Atoi(strings.Trim(string(payload.Cod), `"`)); err == nil {
			pe.Code = code
		}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &statusError{ProviderError: pe, class: errRateLimited}
	case resp.StatusCode >= 500:
		return &statusError{ProviderError: pe, class: errServerError}
	default:
		return pe
	}
}
