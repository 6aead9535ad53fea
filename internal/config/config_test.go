package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/getdevflow/core-sub003/core/es"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, BackendSQLite, cfg.Backend)
	require.Equal(t, LookupMemory, cfg.Lookup)
	require.Equal(t, slog.LevelInfo, cfg.LogLevel)
	require.Equal(t, int32(20), cfg.PostgresMax)

	tenant, err := cfg.Tenant()
	require.NoError(t, err)
	require.Equal(t, es.DefaultTenant(), tenant)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("DEVFLOW_BACKEND", "postgres")
	t.Setenv("DEVFLOW_POSTGRES_URL", "postgres://devflow@localhost/devflow")
	t.Setenv("DEVFLOW_LOOKUP", "redis")
	t.Setenv("DEVFLOW_LOOKUP_TTL", "5m")
	t.Setenv("DEVFLOW_SITE", "blog")
	t.Setenv("DEVFLOW_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, BackendPostgres, cfg.Backend)
	require.Equal(t, LookupRedis, cfg.Lookup)
	require.Equal(t, 5*time.Minute, cfg.LookupTTL)
	require.Equal(t, slog.LevelDebug, cfg.LogLevel)

	tenant, err := cfg.Tenant()
	require.NoError(t, err)
	require.Equal(t, "blog_", tenant.TablePrefix)
}

func TestLoad_Invalid(t *testing.T) {
	for name, vars := range map[string]map[string]string{
		"backend":       {"DEVFLOW_BACKEND": "mongo"},
		"postgres url":  {"DEVFLOW_BACKEND": "postgres"},
		"lookup":        {"DEVFLOW_LOOKUP": "memcached"},
		"site":          {"DEVFLOW_SITE": "no spaces"},
		"cache size":    {"DEVFLOW_LOOKUP_CACHE": "-1"},
		"not an int":    {"DEVFLOW_REDIS_DB": "zero"},
		"bad log level": {"DEVFLOW_LOG_LEVEL": "loud"},
	} {
		t.Run(name, func(t *testing.T) {
			for k, v := range vars {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestParseEnv_Prefix(t *testing.T) {
	var cfg struct {
		Port int `env:"DEVFLOW_TEST_PORT"`
	}
	t.Setenv("DEVFLOW_TEST_PORT", "not-an-int")
	require.ErrorContains(t, ParseEnv(&cfg), "parse env:")
}
