package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// HTTPClientConfig describes an upstream HTTP API.
type HTTPClientConfig struct {
	BaseURL string        `koanf:"baseurl"`
	Token   string        `koanf:"token"`
	Timeout time.Duration `koanf:"timeout"`
}

// String returns a string representation of the HTTP client configuration.
func (c *HTTPClientConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- HTTP Client ---\n")
	b.WriteString(fmt.Sprintf("  baseurl: %s\n", c.BaseURL))
	b.WriteString(fmt.Sprintf("  token: %s\n", maskSecret(c.Token)))
	b.WriteString(fmt.Sprintf("  timeout: %s\n", c.Timeout))
	return b.String()
}

func (c *HTTPClientConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("HTTP client base URL is not configured")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("HTTP client base URL is invalid: %s", c.BaseURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("HTTP client timeout is not configured")
	}
	return nil
}

func maskSecret(s string) string {
	if s == "" {
		return "<not configured>"
	}
	return "****"
}
