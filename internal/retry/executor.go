// Package retry invokes a single backend tier with bounded retries,
// per-attempt timeouts and exponential backoff. Failure classification is
// made on the enumerated error kind reported by the backend collaborator,
// never on error message contents.
package retry

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"math/rand"
	"time"

	"model-router/internal/chain"
	"model-router/internal/common/errors"
	"model-router/internal/common/logging"
)

// Invoker is the backend-invocation collaborator. It performs one remote
// call and returns the payload or a typed error carrying an errors.Kind.
type Invoker interface {
	Invoke(ctx context.Context, backendKey string, request json.RawMessage) (json.RawMessage, error)
}

// Outcome is the transient result of one tier cycle. It is produced per
// Invoke call and never persisted.
type Outcome struct {
	Success   bool
	Payload   json.RawMessage
	Err       error
	Retryable bool
	TierKey   string
	Level     int
	Attempts  int
	Latency   time.Duration
}

// Config tunes retry behavior shared by every tier
type Config struct {
	// LatencyThreshold triggers a warning when a single attempt is slower.
	// It never fails the attempt by itself.
	LatencyThreshold time.Duration
	// InitialBackoff is the delay before the first retry
	InitialBackoff time.Duration
	// BackoffFactor multiplies the delay after each retry
	BackoffFactor float64
	// MaxBackoff caps the exponential growth
	MaxBackoff time.Duration
	// JitterFactor adds randomness to delays (0.0-1.0)
	JitterFactor float64
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() Config {
	return Config{
		LatencyThreshold: 5 * time.Second,
		InitialBackoff:   time.Second,
		BackoffFactor:    2.0,
		MaxBackoff:       30 * time.Second,
		JitterFactor:     0.1,
	}
}

// Executor runs tier cycles against the backend collaborator
type Executor struct {
	invoker Invoker
	config  Config
	logger  logging.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// Option configures an Executor
type Option func(*Executor)

// WithLogger sets the executor logger
func WithLogger(logger logging.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// WithSleep injects the backoff sleep, for tests
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) { e.sleep = sleep }
}

// NewExecutor creates an executor over the given invoker
func NewExecutor(invoker Invoker, config Config, opts ...Option) *Executor {
	e := &Executor{
		invoker: invoker,
		config:  config,
		logger:  logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "retry_executor"}),
		sleep:   sleepWithContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Invoke runs one tier cycle: up to MaxRetries attempts, each bounded by
// the tier's per-attempt timeout. Retryable failures back off exponentially
// between attempts; a non-retryable failure or an exhausted budget ends the
// cycle. The executor never touches the circuit breaker — the caller records
// exactly one failure or success per cycle.
func (e *Executor) Invoke(ctx context.Context, tier chain.BackendTier, request json.RawMessage) Outcome {
	maxAttempts := tier.Retry.MaxRetries
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	outcome := Outcome{TierKey: tier.Key, Level: tier.Level}
	start := time.Now()
	delay := e.config.InitialBackoff

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		outcome.Attempts = attempt + 1

		payload, err := e.attempt(ctx, tier, request, attempt)
		if err == nil {
			outcome.Success = true
			outcome.Payload = payload
			outcome.Latency = time.Since(start)
			return outcome
		}
		lastErr = err

		if !errors.IsRetryable(err) {
			e.logger.Debug("Non-retryable failure, ending tier cycle",
				logging.Field{Key: "backend", Value: tier.Key},
				logging.Field{Key: "attempt", Value: attempt + 1},
				logging.Field{Key: "kind", Value: string(errors.GetKind(err))},
			)
			break
		}

		if attempt == maxAttempts-1 {
			break
		}

		if err := e.sleep(ctx, e.jittered(delay)); err != nil {
			lastErr = errors.BackendError("backoff interrupted", errors.KindTimeout, err)
			break
		}
		delay = time.Duration(float64(delay) * e.config.BackoffFactor)
		if delay > e.config.MaxBackoff {
			delay = e.config.MaxBackoff
		}
	}

	outcome.Err = lastErr
	outcome.Retryable = errors.IsRetryable(lastErr)
	outcome.Latency = time.Since(start)
	return outcome
}

// attempt performs one bounded call against the backend
func (e *Executor) attempt(ctx context.Context, tier chain.BackendTier, request json.RawMessage, attempt int) (json.RawMessage, error) {
	attemptCtx := ctx
	cancel := func() {}
	if tier.Retry.Timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, tier.Retry.Timeout)
	}
	defer cancel()

	start := time.Now()
	payload, err := e.invoker.Invoke(attemptCtx, tier.Key, request)
	latency := time.Since(start)

	if e.config.LatencyThreshold > 0 && latency > e.config.LatencyThreshold {
		e.logger.Warn("Slow backend attempt",
			logging.Field{Key: "backend", Value: tier.Key},
			logging.Field{Key: "attempt", Value: attempt + 1},
			logging.Field{Key: "latency_ms", Value: latency.Milliseconds()},
			logging.Field{Key: "threshold_ms", Value: e.config.LatencyThreshold.Milliseconds()},
		)
	}

	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) && !errors.IsType(err, errors.ErrTypeBackend) {
			err = errors.BackendError("attempt timed out", errors.KindTimeout, err).
				WithContext("backend", tier.Key)
		}
		return nil, err
	}
	return payload, nil
}

func (e *Executor) jittered(delay time.Duration) time.Duration {
	if e.config.JitterFactor <= 0 {
		return delay
	}
	jitter := time.Duration(float64(delay) * e.config.JitterFactor)
	if jitter <= 0 {
		return delay
	}
	return delay + time.Duration(rand.Int63n(int64(jitter)))
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
