// Package config aggregates the storefront configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/giftsbydivi/gifts-by-divi-sub000/pkg/config"
	"github.com/giftsbydivi/gifts-by-divi-sub000/pkg/config/configloader"
)

var _ configloader.Validator = (*Config)(nil)

const (
	CatalogHTTP   = "http"
	CatalogMemory = "memory"

	StorageMemory   = "memory"
	StorageFile     = "file"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

type Config struct {
	HTTPServer config.HTTPConfig       `koanf:"server"`
	Log        config.LogConfig        `koanf:"log"`
	Admin      config.AdminConfig      `koanf:"admin"`
	Shutdown   config.ShutdownConfig   `koanf:"shutdown"`
	Telemetry  config.TelemetryConfig  `koanf:"telemetry"`
	Resilience config.ResilienceConfig `koanf:"resilience"`
	Catalog    CatalogConfig           `koanf:"catalog"`
	Storage    StorageConfig           `koanf:"storage"`
	Reconcile  ReconcileConfig         `koanf:"reconcile"`
	Notify     NotifyConfig            `koanf:"notify"`
}

// CatalogConfig selects where product data comes from. The memory source serves SeedFile.
type CatalogConfig struct {
	Source   string                  `koanf:"source"`
	SeedFile string                  `koanf:"seedfile"`
	HTTP     config.HTTPClientConfig `koanf:"http"`
}

func (c *CatalogConfig) Validate() error {
	switch c.Source {
	case CatalogHTTP:
		return c.HTTP.Validate()
	case CatalogMemory:
		return nil
	default:
		return fmt.Errorf("unknown catalog source %q, expected %q or %q", c.Source, CatalogHTTP, CatalogMemory)
	}
}

// StorageConfig selects the snapshot backend. Only the section of the chosen backend is validated.
type StorageConfig struct {
	Backend        string                `koanf:"backend"`
	Prefix         string                `koanf:"prefix"`
	PersistTimeout time.Duration         `koanf:"persisttimeout"`
	Dir            string                `koanf:"dir"`
	TTL            time.Duration         `koanf:"ttl"`
	IdleTimeout    time.Duration         `koanf:"idletimeout"`
	Redis          config.RedisConfig    `koanf:"redis"`
	Database       config.DatabaseConfig `koanf:"database"`
}

func (c *StorageConfig) Validate() error {
	if c.Prefix == "" {
		return fmt.Errorf("storage prefix is not configured")
	}
	if c.PersistTimeout <= 0 {
		return fmt.Errorf("storage persist timeout is not configured")
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("storage idle timeout must not be negative: %s", c.IdleTimeout)
	}
	switch c.Backend {
	case StorageMemory:
		return nil
	case StorageFile:
		if c.Dir == "" {
			return fmt.Errorf("file storage directory is not configured")
		}
		return nil
	case StorageRedis:
		if c.TTL < 0 {
			return fmt.Errorf("redis storage ttl must not be negative: %s", c.TTL)
		}
		return c.Redis.Validate()
	case StoragePostgres:
		return c.Database.Validate()
	default:
		return fmt.Errorf("unknown storage backend %q", c.Backend)
	}
}

// EvictAfter is how long an open cart may stay unused in memory. It never exceeds the redis ttl, so an expired
// cart is not brought back by a store that outlived it. Zero disables eviction.
func (c *StorageConfig) EvictAfter() time.Duration {
	if c.Backend == StorageRedis && c.TTL > 0 && (c.IdleTimeout <= 0 || c.TTL < c.IdleTimeout) {
		return c.TTL
	}
	return c.IdleTimeout
}

type ReconcileConfig struct {
	LookupTimeout  time.Duration `koanf:"lookuptimeout"`
	CacheTTL       time.Duration `koanf:"cachettl"`
	FailureTTL     time.Duration `koanf:"failurettl"`
	ResolveTimeout time.Duration `koanf:"resolvetimeout"`
}

func (c *ReconcileConfig) Validate() error {
	if c.LookupTimeout <= 0 {
		return fmt.Errorf("reconcile lookup timeout is not configured")
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("reconcile cache ttl must not be negative: %s", c.CacheTTL)
	}
	if c.FailureTTL < 0 {
		return fmt.Errorf("reconcile failure ttl must not be negative: %s", c.FailureTTL)
	}
	if c.ResolveTimeout <= 0 {
		return fmt.Errorf("reconcile resolve timeout is not configured")
	}
	return nil
}

// NotifyConfig configures the notification dispatcher. Events go to NATS only when NatsEnabled is set.
type NotifyConfig struct {
	QueueSize   int               `koanf:"queuesize"`
	SendTimeout time.Duration     `koanf:"sendtimeout"`
	NatsEnabled bool              `koanf:"natsenabled"`
	Nats        config.NATSConfig `koanf:"nats"`
}

func (c *NotifyConfig) Validate() error {
	if c.QueueSize <= 0 {
		return fmt.Errorf("notify queue size must be positive: %d", c.QueueSize)
	}
	if c.SendTimeout <= 0 {
		return fmt.Errorf("notify send timeout is not configured")
	}
	if c.NatsEnabled {
		return c.Nats.Validate()
	}
	return nil
}

// Defaults are the lowest priority configuration source.
func Defaults() map[string]any {
	return map[string]any{
		"server.port":               8080,
		"server.maxHeaderBytes":     1 << 20,
		"server.timeout.read":       "5s",
		"server.timeout.write":      "15s",
		"server.timeout.idle":       "120s",
		"server.timeout.readHeader": "2s",

		"log.level":        "info",
		"admin.addr":       ":9090",
		"admin.metrics":    true,
		"admin.pprof":      false,
		"shutdown.timeout": "15s",
		"shutdown.drain":   "5s",

		"resilience.circuitbreaker.consecutivefailures": 5,
		"resilience.circuitbreaker.errorratepercent":    50,
		"resilience.circuitbreaker.opentimeout":         "30s",
		"resilience.circuitbreaker.halfopenrequests":    3,
		"telemetry.traces.sampleratio":                  1.0,
		"telemetry.traces.otlphttp.timeout":             "5s",

		"catalog.source":       CatalogMemory,
		"catalog.seedfile":     "catalog.json",
		"catalog.http.timeout": "3s",

		"storage.backend":             StorageMemory,
		"storage.prefix":              "cart-storage",
		"storage.persisttimeout":      "3s",
		"storage.idletimeout":         "30m",
		"storage.dir":                 "data/carts",
		"storage.redis.timeout":       "3s",
		"storage.database.timeout":    "5s",
		"storage.database.migrations": "migrations",

		"reconcile.lookuptimeout":  "5s",
		"reconcile.cachettl":       "5m",
		"reconcile.failurettl":     "30s",
		"reconcile.resolvetimeout": "3s",

		"notify.queuesize":          256,
		"notify.sendtimeout":        "2s",
		"notify.natsenabled":        false,
		"notify.nats.timeout":       "5s",
		"notify.nats.stream":        "CART_EVENTS",
		"notify.nats.subjectprefix": "cart.events",
	}
}

func (c *Config) String() string {
	var b strings.Builder

	b.WriteString(c.HTTPServer.String())
	b.WriteString(c.Log.String())
	b.WriteString(c.Admin.String())
	b.WriteString(c.Shutdown.String())
	b.WriteString(c.Telemetry.String())
	b.WriteString(c.Resilience.String())

	b.WriteString("\n--- Catalog ---\n")
	b.WriteString(fmt.Sprintf("  catalog.source: %s\n", c.Catalog.Source))
	if c.Catalog.Source == CatalogMemory {
		b.WriteString(fmt.Sprintf("  catalog.seedfile: %s\n", c.Catalog.SeedFile))
	} else {
		b.WriteString(c.Catalog.HTTP.String())
	}

	b.WriteString("\n--- Storage ---\n")
	b.WriteString(fmt.Sprintf("  storage.backend: %s\n", c.Storage.Backend))
	b.WriteString(fmt.Sprintf("  storage.prefix: %s\n", c.Storage.Prefix))
	b.WriteString(fmt.Sprintf("  storage.persisttimeout: %s\n", c.Storage.PersistTimeout))
	b.WriteString(fmt.Sprintf("  storage.idletimeout: %s\n", c.Storage.IdleTimeout))
	switch c.Storage.Backend {
	case StorageFile:
		b.WriteString(fmt.Sprintf("  storage.dir: %s\n", c.Storage.Dir))
	case StorageRedis:
		b.WriteString(fmt.Sprintf("  storage.ttl: %s\n", c.Storage.TTL))
		b.WriteString(c.Storage.Redis.String())
	case StoragePostgres:
		b.WriteString(c.Storage.Database.String())
	}

	b.WriteString("\n--- Reconcile ---\n")
	b.WriteString(fmt.Sprintf("  reconcile.lookuptimeout: %s\n", c.Reconcile.LookupTimeout))
	b.WriteString(fmt.Sprintf("  reconcile.cachettl: %s\n", c.Reconcile.CacheTTL))
	b.WriteString(fmt.Sprintf("  reconcile.failurettl: %s\n", c.Reconcile.FailureTTL))
	b.WriteString(fmt.Sprintf("  reconcile.resolvetimeout: %s\n", c.Reconcile.ResolveTimeout))

	b.WriteString("\n--- Notify ---\n")
	b.WriteString(fmt.Sprintf("  notify.queuesize: %d\n", c.Notify.QueueSize))
	b.WriteString(fmt.Sprintf("  notify.sendtimeout: %s\n", c.Notify.SendTimeout))
	b.WriteString(fmt.Sprintf("  notify.natsenabled: %t\n", c.Notify.NatsEnabled))
	if c.Notify.NatsEnabled {
		b.WriteString(c.Notify.Nats.String())
	}

	return b.String()
}

// Validate checks if the configuration values are valid
func (c *Config) Validate() error {
	validators := []configloader.Validator{
		&c.HTTPServer,
		&c.Log,
		&c.Admin,
		&c.Shutdown,
		&c.Telemetry,
		&c.Resilience,
		&c.Catalog,
		&c.Storage,
		&c.Reconcile,
		&c.Notify,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}
