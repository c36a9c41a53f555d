package config

import (
	"fmt"
	"strings"
	"time"
)

// ResilienceConfig guards outbound calls to upstream APIs. Calls are never retried automatically; an open breaker
// fails fast until OpenTimeout elapses.
type ResilienceConfig struct {
	CircuitBreaker CircuitBreakerConfig `koanf:"circuitbreaker"`
}

// CircuitBreakerConfig trips after ConsecutiveFailures in a row, or once the failure share of the current window
// exceeds ErrorRatePercent. HalfOpenRequests trial requests are let through after OpenTimeout; zero means one.
type CircuitBreakerConfig struct {
	ConsecutiveFailures uint32        `koanf:"consecutivefailures"`
	ErrorRatePercent    int           `koanf:"errorratepercent"`
	OpenTimeout         time.Duration `koanf:"opentimeout"`
	HalfOpenRequests    uint32        `koanf:"halfopenrequests"`
}

// String returns a string representation of the ResilienceConfig.
func (c *ResilienceConfig) String() string {
	cb := c.CircuitBreaker
	var b strings.Builder
	b.WriteString("\n--- Circuit Breaker ---\n")
	b.WriteString(fmt.Sprintf("  trips after %d consecutive failures or %d%% errors\n", cb.ConsecutiveFailures, cb.ErrorRatePercent))
	b.WriteString(fmt.Sprintf("  stays open for %v, then lets %d trial requests through\n", cb.OpenTimeout, cb.HalfOpenRequests))
	return b.String()
}

func (c *ResilienceConfig) Validate() error {
	cb := c.CircuitBreaker
	switch {
	case cb.ConsecutiveFailures == 0:
		return fmt.Errorf("circuit breaker needs at least one consecutive failure to trip")
	case cb.ErrorRatePercent < 0 || cb.ErrorRatePercent > 100:
		return fmt.Errorf("circuit breaker error rate must be a percentage, got %d", cb.ErrorRatePercent)
	case cb.OpenTimeout <= 0:
		return fmt.Errorf("circuit breaker open timeout must be positive, got %v", cb.OpenTimeout)
	}
	return nil
}
