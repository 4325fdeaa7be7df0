// Package config provides configuration management for the model router
// application. It handles loading configuration from environment variables
// with sensible defaults and validates the configuration to ensure the
// application starts safely.
//
// The package supports two circuit-state and cache stores (in-memory and
// Redis), two audit database backends (SQLite and PostgreSQL), optional
// RabbitMQ metrics publishing, JWT authentication, and encryption for
// backend credentials.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//   - CHAINS_FILE: Path to the routing chains JSON file (default: ./chains.json)
//   - REQUEST_TIMEOUT: Overall deadline per invocation, 0 disables (default: 0)
//
// Circuit Breaker Settings:
//   - CIRCUIT_FAILURE_THRESHOLD: Failures before a breaker opens (default: 5)
//   - CIRCUIT_SUCCESS_THRESHOLD: Probe successes before a breaker closes (default: 2)
//   - CIRCUIT_OPEN_TIMEOUT: Cooldown before an open breaker admits probes (default: 30s)
//   - CIRCUIT_STORE: Circuit state store - "memory" or "redis" (default: memory)
//
// Retry Settings:
//   - RETRY_INITIAL_BACKOFF: First backoff delay (default: 100ms)
//   - RETRY_BACKOFF_FACTOR: Backoff multiplier per attempt (default: 2.0)
//   - RETRY_MAX_BACKOFF: Backoff ceiling (default: 10s)
//   - RETRY_JITTER_FACTOR: Jitter fraction 0..1 applied to each delay (default: 0.2)
//   - SLOW_ATTEMPT_THRESHOLD: Latency above which an attempt is logged as slow (default: 5s)
//
// Response Cache:
//   - CACHE_STORE: Response cache store - "memory" or "redis" (default: memory)
//
// Redis Configuration:
//   - REDIS_ADDRESS: Redis server address (default: localhost:6379)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - REDIS_POOL_SIZE: Redis connection pool size (default: 10)
//
// Audit Database:
//   - DATABASE_TYPE: Audit database type - "sqlite" or "postgres" (default: sqlite)
//   - DATABASE_PATH: SQLite database file path (default: ./model_router.db)
//   - POSTGRES_HOST: PostgreSQL host (required if using PostgreSQL)
//   - POSTGRES_PORT: PostgreSQL port (default: 5432)
//   - POSTGRES_DB: PostgreSQL database name (required if using PostgreSQL)
//   - POSTGRES_USER: PostgreSQL username (required if using PostgreSQL)
//   - POSTGRES_PASSWORD: PostgreSQL password
//   - POSTGRES_SSL_MODE: PostgreSQL SSL mode (default: disable)
//   - AUDIT_RETENTION: How long audit rows are kept, 0 disables the sweep (default: 720h)
//   - AUDIT_SWEEP_SCHEDULE: Cron spec for the retention sweep (default: "0 3 * * *")
//
// Metrics:
//   - RABBITMQ_URL: RabbitMQ connection URL, empty disables the AMQP sink
//   - METRICS_QUEUE: AMQP queue for metrics events (default: model-metrics)
//
// Security Configuration:
//   - AUTH_ENABLED: Require JWT bearer tokens on the invoke API (default: true)
//   - JWT_SECRET: JWT signing secret (required when AUTH_ENABLED, minimum 32 characters)
//   - CONFIG_ENCRYPTION_KEY: Key for decrypting backend credentials (32 characters if provided)
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values for the model router application.
// All fields correspond to environment variables that can be set to override
// the default values.
//
// The configuration is loaded using the Load() function and should be
// validated using the Validate() method before use.
type Config struct {
	// Application settings
	Port           string        // Server port number
	LogLevel       string        // Logging level (debug, info, warn, error)
	ChainsFile     string        // Path to the routing chains JSON file
	RequestTimeout time.Duration // Overall deadline per invocation, 0 disables

	// Circuit breaker configuration
	CircuitFailureThreshold int           // Consecutive failures before a breaker opens
	CircuitSuccessThreshold int           // Probe successes before a breaker closes
	CircuitOpenTimeout      time.Duration // Cooldown before an open breaker admits probes
	CircuitStore            string        // Circuit state store: "memory" or "redis"

	// Retry and backoff configuration
	RetryInitialBackoff  time.Duration // First backoff delay
	RetryBackoffFactor   float64       // Backoff multiplier per attempt
	RetryMaxBackoff      time.Duration // Backoff ceiling
	RetryJitterFactor    float64       // Jitter fraction applied to each delay
	SlowAttemptThreshold time.Duration // Latency above which an attempt is logged as slow

	// Response cache configuration
	CacheStore string // Response cache store: "memory" or "redis"

	// Redis configuration for distributed state
	RedisAddress  string // Redis server address (host:port)
	RedisPassword string // Redis authentication password
	RedisDB       string // Redis database number (0-15)
	RedisPoolSize string // Redis connection pool size

	// Audit database configuration
	DatabaseType       string        // Audit database type: "sqlite" or "postgres"
	DatabasePath       string        // Path to SQLite database file
	PostgresHost       string        // PostgreSQL host address
	PostgresPort       string        // PostgreSQL port number
	PostgresDB         string        // PostgreSQL database name
	PostgresUser       string        // PostgreSQL username
	PostgresPassword   string        // PostgreSQL password
	PostgresSSLMode    string        // PostgreSQL SSL mode (disable, require, etc.)
	AuditRetention     time.Duration // How long audit rows are kept, 0 disables the sweep
	AuditSweepSchedule string        // Cron spec for the retention sweep

	// Metrics configuration
	RabbitMQURL  string // RabbitMQ connection URL, empty disables the AMQP sink
	MetricsQueue string // AMQP queue name for metrics events

	// JWT authentication configuration
	AuthEnabled bool   // Whether the invoke API requires bearer tokens
	JWTSecret   string // Secret key for JWT token signing

	// Encryption configuration
	EncryptionKey string // Key for decrypting backend credentials
}

// Load creates a new Config instance with values loaded from environment
// variables. If an environment variable is not set, the corresponding
// default value is used.
//
// This function does not validate the configuration - call Validate() on
// the returned Config to ensure all required values are properly set.
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		ChainsFile:     getEnv("CHAINS_FILE", "./chains.json"),
		RequestTimeout: getDurationEnv("REQUEST_TIMEOUT", 0),

		// Circuit breaker configuration
		CircuitFailureThreshold: getIntEnv("CIRCUIT_FAILURE_THRESHOLD", 5),
		CircuitSuccessThreshold: getIntEnv("CIRCUIT_SUCCESS_THRESHOLD", 2),
		CircuitOpenTimeout:      getDurationEnv("CIRCUIT_OPEN_TIMEOUT", 30*time.Second),
		CircuitStore:            getEnv("CIRCUIT_STORE", "memory"),

		// Retry configuration
		RetryInitialBackoff:  getDurationEnv("RETRY_INITIAL_BACKOFF", 100*time.Millisecond),
		RetryBackoffFactor:   getFloatEnv("RETRY_BACKOFF_FACTOR", 2.0),
		RetryMaxBackoff:      getDurationEnv("RETRY_MAX_BACKOFF", 10*time.Second),
		RetryJitterFactor:    getFloatEnv("RETRY_JITTER_FACTOR", 0.2),
		SlowAttemptThreshold: getDurationEnv("SLOW_ATTEMPT_THRESHOLD", 5*time.Second),

		// Response cache configuration
		CacheStore: getEnv("CACHE_STORE", "memory"),

		// Redis configuration
		RedisAddress:  getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnv("REDIS_DB", "0"),
		RedisPoolSize: getEnv("REDIS_POOL_SIZE", "10"),

		// Audit database configuration
		DatabaseType:       getEnv("DATABASE_TYPE", "sqlite"),
		DatabasePath:       getEnv("DATABASE_PATH", "./model_router.db"),
		PostgresHost:       getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:       getEnv("POSTGRES_PORT", "5432"),
		PostgresDB:         getEnv("POSTGRES_DB", "model_router"),
		PostgresUser:       getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword:   getEnv("POSTGRES_PASSWORD", ""),
		PostgresSSLMode:    getEnv("POSTGRES_SSL_MODE", "disable"),
		AuditRetention:     getDurationEnv("AUDIT_RETENTION", 720*time.Hour),
		AuditSweepSchedule: getEnv("AUDIT_SWEEP_SCHEDULE", "0 3 * * *"),

		// Metrics configuration
		RabbitMQURL:  getEnv("RABBITMQ_URL", ""),
		MetricsQueue: getEnv("METRICS_QUEUE", "model-metrics"),

		// JWT configuration
		AuthEnabled: getBoolEnv("AUTH_ENABLED", true),
		JWTSecret:   getEnv("JWT_SECRET", ""),

		// Encryption configuration
		EncryptionKey: getEnv("CONFIG_ENCRYPTION_KEY", ""),
	}
}

// getEnv retrieves an environment variable value or returns a default value
// if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnv retrieves a boolean environment variable value or returns a
// default value when the variable is unset or unparsable.
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getIntEnv retrieves an integer environment variable value or returns a
// default value when the variable is unset or unparsable.
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getFloatEnv retrieves a float environment variable value or returns a
// default value when the variable is unset or unparsable.
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getDurationEnv retrieves a duration environment variable value or returns
// a default value when the variable is unset or unparsable.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// PostgresDSN assembles the PostgreSQL connection string from the
// individual POSTGRES_* settings.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s dbname=%s user=%s password=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresUser,
		c.PostgresPassword, c.PostgresSSLMode)
}

// Validate performs comprehensive validation on the configuration to ensure
// all required fields are present and all values are valid.
//
// This method checks:
//   - Required fields (JWT_SECRET when AUTH_ENABLED)
//   - Field format validation (ports, store selectors, thresholds)
//   - Cross-field dependencies (PostgreSQL and Redis requirements)
//   - Security requirements (key lengths)
//
// The application should call this method after loading configuration and
// before starting to ensure safe operation.
func (c *Config) Validate() error {
	// Validate required security fields
	if c.AuthEnabled {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET environment variable is required when AUTH_ENABLED is true")
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters long for security")
		}
	}

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	if c.ChainsFile == "" {
		return fmt.Errorf("CHAINS_FILE must not be empty")
	}

	// Validate circuit breaker thresholds
	if c.CircuitFailureThreshold < 1 {
		return fmt.Errorf("CIRCUIT_FAILURE_THRESHOLD must be a positive number")
	}
	if c.CircuitSuccessThreshold < 1 {
		return fmt.Errorf("CIRCUIT_SUCCESS_THRESHOLD must be a positive number")
	}
	if c.CircuitOpenTimeout <= 0 {
		return fmt.Errorf("CIRCUIT_OPEN_TIMEOUT must be a positive duration")
	}

	// Validate retry configuration
	if c.RetryInitialBackoff <= 0 {
		return fmt.Errorf("RETRY_INITIAL_BACKOFF must be a positive duration")
	}
	if c.RetryBackoffFactor < 1 {
		return fmt.Errorf("RETRY_BACKOFF_FACTOR must be at least 1")
	}
	if c.RetryJitterFactor < 0 || c.RetryJitterFactor > 1 {
		return fmt.Errorf("RETRY_JITTER_FACTOR must be between 0 and 1")
	}

	// Validate store selectors
	switch c.CircuitStore {
	case "memory", "redis":
	default:
		return fmt.Errorf("CIRCUIT_STORE must be 'memory' or 'redis'")
	}
	switch c.CacheStore {
	case "memory", "redis":
	default:
		return fmt.Errorf("CACHE_STORE must be 'memory' or 'redis'")
	}

	// Validate database type
	switch c.DatabaseType {
	case "sqlite", "postgres", "postgresql":
		// Valid database types
	default:
		return fmt.Errorf("DATABASE_TYPE must be 'sqlite' or 'postgres'")
	}

	// Validate PostgreSQL config if using PostgreSQL
	if c.DatabaseType == "postgres" || c.DatabaseType == "postgresql" {
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required when using PostgreSQL")
		}
		if c.PostgresDB == "" {
			return fmt.Errorf("POSTGRES_DB is required when using PostgreSQL")
		}
		if c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_USER is required when using PostgreSQL")
		}
		if port, err := strconv.Atoi(c.PostgresPort); err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("POSTGRES_PORT must be a valid port number")
		}
	}

	// Validate Redis config when any Redis-backed store is selected
	if c.CircuitStore == "redis" || c.CacheStore == "redis" {
		if c.RedisAddress == "" {
			return fmt.Errorf("REDIS_ADDRESS is required when a redis store is selected")
		}
	}
	if c.RedisAddress != "" {
		if db, err := strconv.Atoi(c.RedisDB); err != nil || db < 0 || db > 15 {
			return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
		}
		if poolSize, err := strconv.Atoi(c.RedisPoolSize); err != nil || poolSize < 1 {
			return fmt.Errorf("REDIS_POOL_SIZE must be a positive number")
		}
	}

	// Validate encryption key if provided
	if c.EncryptionKey != "" && len(c.EncryptionKey) != 32 {
		return fmt.Errorf("CONFIG_ENCRYPTION_KEY must be exactly 32 characters (256 bits) when provided")
	}

	return nil
}
