package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func validConfig() *Config {
	cfg := Load()
	cfg.JWTSecret = testSecret
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "./chains.json", cfg.ChainsFile)
	assert.Equal(t, 5, cfg.CircuitFailureThreshold)
	assert.Equal(t, 2, cfg.CircuitSuccessThreshold)
	assert.Equal(t, 30*time.Second, cfg.CircuitOpenTimeout)
	assert.Equal(t, "memory", cfg.CircuitStore)
	assert.Equal(t, "memory", cfg.CacheStore)
	assert.Equal(t, 100*time.Millisecond, cfg.RetryInitialBackoff)
	assert.Equal(t, 2.0, cfg.RetryBackoffFactor)
	assert.Equal(t, "sqlite", cfg.DatabaseType)
	assert.True(t, cfg.AuthEnabled)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CIRCUIT_FAILURE_THRESHOLD", "3")
	t.Setenv("CIRCUIT_OPEN_TIMEOUT", "45s")
	t.Setenv("RETRY_BACKOFF_FACTOR", "1.5")
	t.Setenv("CIRCUIT_STORE", "redis")
	t.Setenv("AUTH_ENABLED", "false")

	cfg := Load()
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 3, cfg.CircuitFailureThreshold)
	assert.Equal(t, 45*time.Second, cfg.CircuitOpenTimeout)
	assert.Equal(t, 1.5, cfg.RetryBackoffFactor)
	assert.Equal(t, "redis", cfg.CircuitStore)
	assert.False(t, cfg.AuthEnabled)
}

func TestLoad_UnparsableValuesFallBack(t *testing.T) {
	t.Setenv("CIRCUIT_FAILURE_THRESHOLD", "many")
	t.Setenv("CIRCUIT_OPEN_TIMEOUT", "soon")
	t.Setenv("RETRY_JITTER_FACTOR", "lots")

	cfg := Load()
	assert.Equal(t, 5, cfg.CircuitFailureThreshold)
	assert.Equal(t, 30*time.Second, cfg.CircuitOpenTimeout)
	assert.Equal(t, 0.2, cfg.RetryJitterFactor)
}

func TestValidate_ValidConfig(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_RequiresJWTSecretWhenAuthEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.JWTSecret = ""
	assert.Error(t, cfg.Validate())

	cfg.JWTSecret = "too-short"
	assert.Error(t, cfg.Validate())

	cfg.AuthEnabled = false
	assert.NoError(t, cfg.Validate())
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Port = "99999" }},
		{"empty chains file", func(c *Config) { c.ChainsFile = "" }},
		{"zero failure threshold", func(c *Config) { c.CircuitFailureThreshold = 0 }},
		{"zero success threshold", func(c *Config) { c.CircuitSuccessThreshold = 0 }},
		{"zero open timeout", func(c *Config) { c.CircuitOpenTimeout = 0 }},
		{"zero initial backoff", func(c *Config) { c.RetryInitialBackoff = 0 }},
		{"backoff factor below one", func(c *Config) { c.RetryBackoffFactor = 0.5 }},
		{"jitter above one", func(c *Config) { c.RetryJitterFactor = 1.5 }},
		{"unknown circuit store", func(c *Config) { c.CircuitStore = "etcd" }},
		{"unknown cache store", func(c *Config) { c.CacheStore = "memcached" }},
		{"unknown database type", func(c *Config) { c.DatabaseType = "mongodb" }},
		{"redis db out of range", func(c *Config) { c.RedisDB = "16" }},
		{"encryption key wrong length", func(c *Config) { c.EncryptionKey = "short" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_PostgresRequirements(t *testing.T) {
	cfg := validConfig()
	cfg.DatabaseType = "postgres"
	require.NoError(t, cfg.Validate())

	cfg.PostgresHost = ""
	assert.Error(t, cfg.Validate())
}

func TestValidate_RedisRequiredForRedisStores(t *testing.T) {
	cfg := validConfig()
	cfg.CircuitStore = "redis"
	cfg.RedisAddress = ""
	assert.Error(t, cfg.Validate())
}

func TestPostgresDSN(t *testing.T) {
	cfg := validConfig()
	cfg.PostgresHost = "db.internal"
	cfg.PostgresDB = "router"

	dsn := cfg.PostgresDSN()
	assert.Contains(t, dsn, "host=db.internal")
	assert.Contains(t, dsn, "dbname=router")
	assert.Contains(t, dsn, "sslmode=disable")
}
