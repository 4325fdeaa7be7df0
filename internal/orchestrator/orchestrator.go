// Package orchestrator walks a use case's fallback chain for one request:
// cache lookup first, then each backend tier in level order, skipping
// backends whose circuit is open, until a tier serves or the chain is
// exhausted. The circuit breaker is driven with exactly one success or one
// failure per tier cycle regardless of how many attempts the cycle made.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"model-router/internal/chain"
	"model-router/internal/circuit"
	"model-router/internal/common/errors"
	"model-router/internal/common/logging"
	"model-router/internal/metrics"
	"model-router/internal/respcache"
	"model-router/internal/retry"
)

// Result is the outcome of one successful invocation
type Result struct {
	Payload json.RawMessage
	// TierKey names the backend that served, empty for a degraded serve
	TierKey string
	// Level is the rank of the serving tier, -1 for cache hits and
	// degraded serves
	Level int
	// CacheHit is true when the response came from the response cache
	CacheHit bool
	// Degraded is true when the sentinel fallback tier served
	Degraded bool
	// Attempts counts backend attempts across all tier cycles
	Attempts int
}

// Orchestrator coordinates the resolver, breaker registry, retry executor,
// response cache and metrics sink for each invocation
type Orchestrator struct {
	resolver *chain.Resolver
	registry *circuit.Registry
	executor *retry.Executor
	cache    *respcache.Cache
	sink     metrics.Sink
	logger   logging.Logger

	// requestTimeout bounds the whole chain walk, 0 disables
	requestTimeout time.Duration
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithLogger sets the orchestrator logger
func WithLogger(logger logging.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithRequestTimeout bounds every invocation end to end
func WithRequestTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.requestTimeout = d }
}

// WithMetricsSink sets the event sink
func WithMetricsSink(sink metrics.Sink) Option {
	return func(o *Orchestrator) { o.sink = sink }
}

// New creates an orchestrator over its collaborators. The cache may be nil
// when response caching is disabled.
func New(resolver *chain.Resolver, registry *circuit.Registry, executor *retry.Executor, cache *respcache.Cache, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		resolver: resolver,
		registry: registry,
		executor: executor,
		cache:    cache,
		logger:   logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "orchestrator"}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Invoke serves one request for useCase. The request must be a JSON object;
// structurally identical requests share a cache fingerprint.
//
// The walk is: response cache, then each tier by ascending level. A backend
// tier whose circuit is open is skipped without an attempt. A tier cycle
// that fails non-retryably aborts the remaining chain when the chain is
// configured to do so. Only a level-0 serve is written back to the cache.
func (o *Orchestrator) Invoke(ctx context.Context, useCase string, request json.RawMessage) (Result, error) {
	if o.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.requestTimeout)
		defer cancel()
	}

	fallbackChain, err := o.resolver.Resolve(useCase)
	if err != nil {
		return Result{}, err
	}

	fingerprint, err := respcache.Fingerprint(request)
	if err != nil {
		return Result{}, err
	}

	log := o.logger.WithFields(
		logging.Field{Key: "use_case", Value: useCase},
		logging.Field{Key: "fingerprint", Value: fingerprint[:12]},
	)

	if result, ok := o.fromCache(ctx, useCase, fingerprint, log); ok {
		return result, nil
	}

	attempts := 0
	var lastErr error
	for _, tier := range fallbackChain.Tiers {
		switch t := tier.(type) {
		case chain.CachedFallbackTier:
			return o.degraded(ctx, useCase, fallbackChain, attempts, log), nil

		case chain.BackendTier:
			outcome, skipped := o.runTier(ctx, useCase, t, request, log)
			if skipped {
				continue
			}
			attempts += outcome.Attempts

			if outcome.Success {
				if t.Level == 0 && o.cache != nil {
					o.cache.Put(ctx, fingerprint, outcome.Payload, respcache.Metadata{TierKey: t.Key})
				}
				return Result{
					Payload:  outcome.Payload,
					TierKey:  t.Key,
					Level:    t.Level,
					Attempts: attempts,
				}, nil
			}

			lastErr = outcome.Err
			if !outcome.Retryable && fallbackChain.AbortOnFatal {
				log.Warn("Fatal failure, aborting chain",
					logging.Field{Key: "backend", Value: t.Key},
					logging.Field{Key: "kind", Value: string(errors.GetKind(outcome.Err))},
				)
				return Result{}, errors.ExhaustedError(
					fmt.Sprintf("fatal failure aborted chain for use case %q", useCase), outcome.Err)
			}
		}
	}

	return Result{}, errors.ExhaustedError(
		fmt.Sprintf("all tiers exhausted for use case %q", useCase), lastErr)
}

// fromCache serves the request from the response cache when possible
func (o *Orchestrator) fromCache(ctx context.Context, useCase, fingerprint string, log logging.Logger) (Result, bool) {
	if o.cache == nil {
		return Result{}, false
	}

	entry, ok := o.cache.Lookup(ctx, fingerprint)
	if !ok {
		return Result{}, false
	}

	log.Debug("Serving from response cache", logging.Field{Key: "cached_tier", Value: entry.TierKey})
	o.emit(ctx, metrics.InvocationEvent{
		ID:        metrics.NewEventID(),
		UseCase:   useCase,
		TierKey:   entry.TierKey,
		Level:     -1,
		Success:   true,
		CacheHit:  true,
		Timestamp: time.Now(),
	})
	return Result{
		Payload:  entry.Payload,
		TierKey:  entry.TierKey,
		Level:    -1,
		CacheHit: true,
	}, true
}

// runTier runs one tier cycle and drives the breaker with exactly one
// success or failure. skipped is true when the open circuit suppressed the
// cycle entirely.
func (o *Orchestrator) runTier(ctx context.Context, useCase string, tier chain.BackendTier, request json.RawMessage, log logging.Logger) (retry.Outcome, bool) {
	state, err := o.registry.GetState(ctx, tier.Key)
	if err != nil {
		// a broken circuit store must not take the router down with it
		log.Warn("Circuit store unavailable, proceeding as closed",
			logging.Field{Key: "backend", Value: tier.Key},
			logging.Field{Key: "error", Value: err.Error()},
		)
		state = circuit.StateClosed
	}
	if state == circuit.StateOpen {
		log.Debug("Skipping backend with open circuit", logging.Field{Key: "backend", Value: tier.Key})
		return retry.Outcome{}, true
	}

	outcome := o.executor.Invoke(ctx, tier, request)

	if outcome.Success {
		if err := o.registry.RecordSuccess(ctx, tier.Key); err != nil {
			log.Warn("Failed to record circuit success",
				logging.Field{Key: "backend", Value: tier.Key},
				logging.Field{Key: "error", Value: err.Error()},
			)
		}
	} else {
		if err := o.registry.RecordFailure(ctx, tier.Key); err != nil {
			log.Warn("Failed to record circuit failure",
				logging.Field{Key: "backend", Value: tier.Key},
				logging.Field{Key: "error", Value: err.Error()},
			)
		}
	}

	event := metrics.InvocationEvent{
		ID:        metrics.NewEventID(),
		UseCase:   useCase,
		TierKey:   tier.Key,
		Level:     tier.Level,
		Success:   outcome.Success,
		Retryable: outcome.Retryable,
		Attempts:  outcome.Attempts,
		LatencyMs: outcome.Latency.Milliseconds(),
		Timestamp: time.Now(),
	}
	if outcome.Err != nil {
		event.ErrorKind = string(errors.GetKind(outcome.Err))
	}
	o.emit(ctx, event)

	return outcome, false
}

// degraded serves the sentinel tier's generic response without touching any
// backend or breaker
func (o *Orchestrator) degraded(ctx context.Context, useCase string, fallbackChain chain.Chain, attempts int, log logging.Logger) Result {
	message := fallbackChain.FallbackMessage
	if message == "" {
		message = chain.DefaultFallbackMessage
	}

	log.Warn("Serving degraded fallback response", logging.Field{Key: "attempts", Value: attempts})
	o.emit(ctx, metrics.InvocationEvent{
		ID:        metrics.NewEventID(),
		UseCase:   useCase,
		Level:     -1,
		Success:   true,
		Attempts:  attempts,
		Degraded:  true,
		Timestamp: time.Now(),
	})

	payload, _ := json.Marshal(map[string]string{"message": message})
	return Result{
		Payload:  payload,
		Level:    -1,
		Degraded: true,
		Attempts: attempts,
	}
}

func (o *Orchestrator) emit(ctx context.Context, event metrics.InvocationEvent) {
	if o.sink != nil {
		o.sink.EmitInvocation(ctx, event)
	}
}
