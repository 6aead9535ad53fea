// Package config reads process configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/getdevflow/core-sub003/core/es"
)

type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
	BackendNats     Backend = "nats"
)

// Lookup selects the kv store behind the read-model indexes.
type Lookup string

const (
	LookupMemory Lookup = "memory"
	LookupRedis  Lookup = "redis"
	LookupNats   Lookup = "nats"
)

type Config struct {
	Backend     Backend `env:"DEVFLOW_BACKEND" envDefault:"sqlite"`
	SQLitePath  string  `env:"DEVFLOW_SQLITE_PATH" envDefault:":memory:"`
	PostgresURL string  `env:"DEVFLOW_POSTGRES_URL"`
	PostgresMin int32   `env:"DEVFLOW_POSTGRES_MIN_CONNS" envDefault:"2"`
	PostgresMax int32   `env:"DEVFLOW_POSTGRES_MAX_CONNS" envDefault:"20"`
	NatsURL     string  `env:"NATS_URL" envDefault:"nats://127.0.0.1:4222"`

	Lookup        Lookup        `env:"DEVFLOW_LOOKUP" envDefault:"memory"`
	RedisAddr     string        `env:"DEVFLOW_REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	RedisPassword string        `env:"DEVFLOW_REDIS_PASSWORD"`
	RedisDB       int           `env:"DEVFLOW_REDIS_DB" envDefault:"0"`
	LookupCache   int           `env:"DEVFLOW_LOOKUP_CACHE" envDefault:"10000"`
	LookupTTL     time.Duration `env:"DEVFLOW_LOOKUP_TTL" envDefault:"0s"`

	Site        string     `env:"DEVFLOW_SITE" envDefault:"main"`
	LogLevel    slog.Level `env:"DEVFLOW_LOG_LEVEL" envDefault:"info"`
	MetricsAddr string     `env:"DEVFLOW_METRICS_ADDR" envDefault:":9090"`
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses and validates a Config.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendSQLite, BackendNats:
	case BackendPostgres:
		if c.PostgresURL == "" {
			return fmt.Errorf("config: DEVFLOW_POSTGRES_URL is required for backend %s", c.Backend)
		}
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	switch c.Lookup {
	case LookupMemory, LookupRedis, LookupNats:
	default:
		return fmt.Errorf("config: unknown lookup store %q", c.Lookup)
	}
	if c.LookupCache < 0 {
		return fmt.Errorf("config: negative lookup cache size %d", c.LookupCache)
	}
	if _, err := c.Tenant(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Tenant is the tenant of the configured site. The "main" site uses the
// unprefixed tables.
func (c Config) Tenant() (es.Tenant, error) {
	if c.Site == "" || c.Site == es.DefaultTenant().Site {
		return es.DefaultTenant(), nil
	}
	return es.NewTenant(c.Site)
}
