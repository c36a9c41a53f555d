package transport

import (
	"net/http"

	"github.com/giftsbydivi/gifts-by-divi-sub000/pkg/config"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewClient builds an *http.Client for an upstream API: tracing outermost, then the circuit breaker, then the
// per-request timeout closest to the wire.
func NewClient(name string, cfg config.HTTPClientConfig, cb config.CircuitBreakerConfig) *http.Client {
	var rt http.RoundTripper = http.DefaultTransport
	rt = NewTimeout(cfg.Timeout, rt)
	rt = NewCircuitBreaker(name, cb, rt)
	rt = otelhttp.NewTransport(rt)
	return &http.Client{Transport: rt}
}
