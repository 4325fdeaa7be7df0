// Package app assembles the model router: configuration, routes, stores,
// the circuit registry, the retry executor, metrics sinks, and the HTTP
// surface.
package app

import (
	"context"
	"strconv"

	"model-router/internal/audit"
	"model-router/internal/auth"
	"model-router/internal/backends"
	"model-router/internal/chain"
	"model-router/internal/circuit"
	"model-router/internal/common/logging"
	"model-router/internal/config"
	"model-router/internal/crypto"
	"model-router/internal/metrics"
	"model-router/internal/orchestrator"
	"model-router/internal/redis"
	"model-router/internal/respcache"
	"model-router/internal/retry"
)

// App holds all the application dependencies
type App struct {
	Config       *config.Config
	Resolver     *chain.Resolver
	Registry     *circuit.Registry
	Orchestrator *orchestrator.Orchestrator
	Auth         *auth.Auth
	AuditStore   *audit.Store
	RedisClient  *redis.Client
	Encryptor    *crypto.CredentialEncryptor
	Logger       logging.Logger

	sink     metrics.Sink
	amqpSink *metrics.AMQPSink
}

// New creates a new application instance with all dependencies
func New(cfg *config.Config) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "app"}),
	}

	// Initialize components in order of dependency
	if err := app.initializeEncryption(); err != nil {
		return nil, err
	}

	routes, err := app.loadRoutes()
	if err != nil {
		return nil, err
	}
	app.Resolver = chain.NewResolver(routes)

	if err := app.initializeRedis(); err != nil {
		return nil, err
	}

	if err := app.initializeAudit(); err != nil {
		return nil, err
	}

	app.initializeSinks()
	app.initializeCircuit()

	if err := app.initializeAuth(); err != nil {
		return nil, err
	}

	app.initializeOrchestrator(routes)

	return app, nil
}

// initializeEncryption sets up the credential encryptor when a key is
// configured. Without a key, encrypted tokens in the routes file are a
// startup error surfaced by loadRoutes.
func (app *App) initializeEncryption() error {
	if app.Config.EncryptionKey == "" {
		app.Logger.Info("Credential encryption: Not configured")
		return nil
	}

	encryptor, err := crypto.NewCredentialEncryptor(app.Config.EncryptionKey)
	if err != nil {
		return err
	}
	app.Encryptor = encryptor
	app.Logger.Info("Credential encryption: Enabled")
	return nil
}

// initializeAuth sets up JWT validation for the invoke API
func (app *App) initializeAuth() error {
	if !app.Config.AuthEnabled {
		app.Logger.Warn("Authentication: Disabled")
		return nil
	}

	a, err := auth.New(app.Config.JWTSecret, 0, app.Logger)
	if err != nil {
		return err
	}
	app.Auth = a
	app.Logger.Info("Authentication: Enabled")
	return nil
}

// initializeRedis connects the shared Redis client when any Redis-backed
// store is selected
func (app *App) initializeRedis() error {
	if app.Config.CircuitStore != "redis" && app.Config.CacheStore != "redis" {
		app.Logger.Info("Redis: Not required (memory stores selected)")
		return nil
	}

	redisDB, _ := strconv.Atoi(app.Config.RedisDB)
	redisPoolSize, _ := strconv.Atoi(app.Config.RedisPoolSize)

	client, err := redis.NewClient(&redis.Config{
		Address:  app.Config.RedisAddress,
		Password: app.Config.RedisPassword,
		DB:       redisDB,
		PoolSize: redisPoolSize,
	})
	if err != nil {
		return err
	}

	app.RedisClient = client
	app.Logger.Info("Redis: Connected", logging.Field{Key: "address", Value: app.Config.RedisAddress})
	return nil
}

// initializeAudit opens the audit database and starts the retention sweep
func (app *App) initializeAudit() error {
	cfg := audit.Config{
		Driver:        "sqlite3",
		DSN:           app.Config.DatabasePath,
		Retention:     app.Config.AuditRetention,
		SweepSchedule: app.Config.AuditSweepSchedule,
	}
	if app.Config.DatabaseType == "postgres" || app.Config.DatabaseType == "postgresql" {
		cfg.Driver = "pgx"
		cfg.DSN = app.Config.PostgresDSN()
	}

	store, err := audit.Open(cfg, app.Logger)
	if err != nil {
		return err
	}
	if err := store.StartRetention(cfg.SweepSchedule); err != nil {
		store.Close()
		return err
	}

	app.AuditStore = store
	app.Logger.Info("Audit store: Connected", logging.Field{Key: "driver", Value: cfg.Driver})
	return nil
}

// initializeSinks composes the metrics fan-out: structured log, audit
// database, and optionally Redis streams and RabbitMQ
func (app *App) initializeSinks() {
	sinks := []metrics.Sink{
		metrics.NewLoggingSink(app.Logger),
		app.AuditStore,
	}

	if app.RedisClient != nil {
		sinks = append(sinks, metrics.NewRedisSink(app.RedisClient.Raw(), app.Logger))
	}

	if app.Config.RabbitMQURL != "" {
		amqpSink, err := metrics.NewAMQPSink(app.Config.RabbitMQURL, app.Config.MetricsQueue, app.Logger)
		if err != nil {
			// the broker is an optional consumer, never a startup dependency
			app.Logger.Warn("AMQP sink unavailable, continuing without it",
				logging.Field{Key: "error", Value: err.Error()})
		} else {
			app.amqpSink = amqpSink
			sinks = append(sinks, amqpSink)
			app.Logger.Info("AMQP sink: Connected", logging.Field{Key: "queue", Value: app.Config.MetricsQueue})
		}
	}

	app.sink = metrics.NewMultiSink(sinks...)
}

// initializeCircuit builds the breaker registry over the selected store and
// forwards its transitions to the metrics sink
func (app *App) initializeCircuit() {
	var store circuit.Store
	if app.Config.CircuitStore == "redis" {
		store = circuit.NewRedisStore(app.RedisClient.Raw())
		app.Logger.Info("Circuit store: Redis (shared across instances)")
	} else {
		store = circuit.NewMemoryStore()
		app.Logger.Info("Circuit store: In-memory")
	}

	registry := circuit.NewRegistry(store, circuit.Config{
		FailureThreshold: app.Config.CircuitFailureThreshold,
		SuccessThreshold: app.Config.CircuitSuccessThreshold,
		OpenTimeout:      app.Config.CircuitOpenTimeout,
	}, circuit.WithLogger(app.Logger))

	sink := app.sink
	registry.OnStateChange(func(change circuit.StateChange) {
		sink.EmitCircuitChange(context.Background(), metrics.CircuitStateChangeEvent{
			ID:           metrics.NewEventID(),
			BackendKey:   change.Key,
			FromState:    change.From.String(),
			ToState:      change.To.String(),
			FailureCount: change.Record.FailureCount,
			SuccessCount: change.Record.SuccessCount,
			Timestamp:    change.Record.LastTransition,
		})
	})

	app.Registry = registry
}

// initializeOrchestrator wires the retry executor, the response cache, and
// the chain walk
func (app *App) initializeOrchestrator(routes *chain.Routes) {
	invoker := backends.NewHTTPInvoker(backends.NewHTTPClient(), routes.Backends, app.Logger)

	executor := retry.NewExecutor(invoker, retry.Config{
		LatencyThreshold: app.Config.SlowAttemptThreshold,
		InitialBackoff:   app.Config.RetryInitialBackoff,
		BackoffFactor:    app.Config.RetryBackoffFactor,
		MaxBackoff:       app.Config.RetryMaxBackoff,
		JitterFactor:     app.Config.RetryJitterFactor,
	}, retry.WithLogger(app.Logger))

	var cacheStore respcache.Store
	if app.Config.CacheStore == "redis" {
		cacheStore = respcache.NewRedisStore(app.RedisClient.Raw())
		app.Logger.Info("Response cache: Redis")
	} else {
		cacheStore = respcache.NewLocalStore()
		app.Logger.Info("Response cache: In-memory")
	}
	cache := respcache.New(cacheStore, app.Logger)

	app.Orchestrator = orchestrator.New(app.Resolver, app.Registry, executor, cache,
		orchestrator.WithLogger(app.Logger),
		orchestrator.WithMetricsSink(app.sink),
		orchestrator.WithRequestTimeout(app.Config.RequestTimeout),
	)
}

// Cleanup releases all resources
func (app *App) Cleanup() {
	if app.AuditStore != nil {
		app.AuditStore.Close()
	}
	if app.amqpSink != nil {
		app.amqpSink.Close()
	}
	if app.RedisClient != nil {
		app.RedisClient.Close()
	}
}
