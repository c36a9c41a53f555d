package config

import (
	"fmt"
	"strings"
	"time"
)

// ShutdownConfig bounds graceful shutdown. Drain is the share of Timeout spent flushing queued notifications.
type ShutdownConfig struct {
	Timeout time.Duration `koanf:"timeout"`
	Drain   time.Duration `koanf:"drain"`
}

// String returns a string representation of the ShutdownConfig.
func (c *ShutdownConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Shutdown ---\n")
	b.WriteString(fmt.Sprintf("  timeout: %s\n", c.Timeout))
	b.WriteString(fmt.Sprintf("  drain: %s\n", c.Drain))
	return b.String()
}

func (c *ShutdownConfig) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("shutdown timeout is not configured")
	}
	if c.Drain < 0 || c.Drain > c.Timeout {
		return fmt.Errorf("shutdown drain must be between 0 and the shutdown timeout: %s", c.Drain)
	}
	return nil
}
