package config

import (
	"fmt"
	"strings"
)

// AdminConfig controls the side listener that serves /metrics and /debug/pprof.
type AdminConfig struct {
	Addr    string `koanf:"addr"`
	Metrics bool   `koanf:"metrics"`
	PProf   bool   `koanf:"pprof"`
}

// Enabled reports whether the admin listener has anything to serve.
func (c *AdminConfig) Enabled() bool {
	return c.Metrics || c.PProf
}

// String returns a string representation of the admin listener configuration.
func (c *AdminConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Admin ---\n")
	b.WriteString(fmt.Sprintf("  addr: %s\n", c.Addr))
	b.WriteString(fmt.Sprintf("  metrics: %t\n", c.Metrics))
	b.WriteString(fmt.Sprintf("  pprof: %t\n", c.PProf))
	return b.String()
}

func (c *AdminConfig) Validate() error {
	if c.Enabled() && c.Addr == "" {
		return fmt.Errorf("admin listener is enabled but address is not configured")
	}
	return nil
}
