// Package transport provides http.RoundTripper middleware for outbound API clients.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/giftsbydivi/gifts-by-divi-sub000/pkg/config"
	"github.com/sony/gobreaker/v2"
)

// upstreamStatusError carries a response whose status counts as a system failure for the breaker.
type upstreamStatusError struct {
	resp *http.Response
}

func (e *upstreamStatusError) Error() string {
	return fmt.Sprintf("upstream responded with status %d", e.resp.StatusCode)
}

// circuitBreaker wraps every round trip in a gobreaker.CircuitBreaker.
type circuitBreaker struct {
	next http.RoundTripper
	cb   *gobreaker.CircuitBreaker[*http.Response]
}

// RoundTrip executes the request through the breaker. Failure statuses are handed back to the caller as responses;
// an open breaker surfaces as gobreaker.ErrOpenState without touching the network.
func (t *circuitBreaker) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.cb.Execute(func() (*http.Response, error) {
		resp, err := t.next.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		if isFailureStatus(resp.StatusCode) {
			return nil, &upstreamStatusError{resp: resp}
		}
		return resp, nil
	})
	var statusErr *upstreamStatusError
	if errors.As(err, &statusErr) {
		return statusErr.resp, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.cb.Name(), err)
	}
	return resp, nil
}

// NewCircuitBreaker wraps next with a breaker named name. Transport errors, 5xx and 429 responses count as failures;
// 4xx responses such as 404 do not, and neither does a caller cancelling its own request.
func NewCircuitBreaker(name string, cfg config.CircuitBreakerConfig, next http.RoundTripper) http.RoundTripper {
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > cfg.ConsecutiveFailures ||
				(counts.TotalSuccesses+counts.TotalFailures > cfg.ConsecutiveFailures &&
					float64(counts.TotalFailures)/float64(counts.TotalSuccesses+counts.TotalFailures)*100 > float64(cfg.ErrorRatePercent))
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			return errors.Is(err, context.Canceled)
		},
	}
	return &circuitBreaker{
		next: next,
		cb:   gobreaker.NewCircuitBreaker[*http.Response](st),
	}
}

func isFailureStatus(code int) bool {
	return code >= http.StatusInternalServerError || code == http.StatusTooManyRequests
}
