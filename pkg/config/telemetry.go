package config

import (
	"fmt"
	"strings"
	"time"
)

type TelemetryConfig struct {
	Traces TracesConfig `koanf:"traces"`
}

// TracesConfig controls span export. SampleRatio applies to root spans only; children follow their parent.
type TracesConfig struct {
	Enabled     bool           `koanf:"enabled"`
	SampleRatio float64        `koanf:"sampleratio"`
	OtlpHttp    OtlpHttpConfig `koanf:"otlphttp"`
}

type OtlpHttpConfig struct {
	Endpoint string        `koanf:"endpoint"`
	Insecure bool          `koanf:"insecure"`
	Timeout  time.Duration `koanf:"timeout"`
}

// String returns a string representation of the TelemetryConfig.
func (c *TelemetryConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Telemetry ---\n")
	if !c.Traces.Enabled {
		b.WriteString("  traces: disabled\n")
		return b.String()
	}
	scheme := "https"
	if c.Traces.OtlpHttp.Insecure {
		scheme = "http"
	}
	b.WriteString(fmt.Sprintf("  traces: %s://%s (timeout %v)\n", scheme, c.Traces.OtlpHttp.Endpoint, c.Traces.OtlpHttp.Timeout))
	b.WriteString(fmt.Sprintf("  sample ratio: %.2f\n", c.Traces.SampleRatio))
	return b.String()
}

func (c *TelemetryConfig) Validate() error {
	t := c.Traces
	if !t.Enabled {
		return nil
	}
	switch {
	case t.OtlpHttp.Endpoint == "":
		return fmt.Errorf("traces are enabled but no OTLP endpoint is configured")
	case t.OtlpHttp.Timeout <= 0:
		return fmt.Errorf("OTLP export timeout must be positive, got %v", t.OtlpHttp.Timeout)
	case t.SampleRatio < 0 || t.SampleRatio > 1:
		return fmt.Errorf("trace sample ratio must be within [0, 1], got %v", t.SampleRatio)
	}
	return nil
}
