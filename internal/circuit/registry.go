package circuit

import (
	"context"
	"time"

	"model-router/internal/common/logging"
)

// Config holds the thresholds shared by every breaker in the registry
type Config struct {
	// FailureThreshold is the failure count that trips a breaker open
	FailureThreshold int
	// SuccessThreshold is the probation success count that closes a breaker
	SuccessThreshold int
	// OpenTimeout is how long a breaker stays open before probation
	OpenTimeout time.Duration
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      60 * time.Second,
	}
}

// StateChange describes one breaker transition, for logging and metrics
type StateChange struct {
	Key    string
	From   State
	To     State
	Record Record
}

// Stats is a read-only snapshot of one breaker record
type Stats struct {
	Key            string    `json:"key"`
	State          string    `json:"state"`
	FailureCount   int       `json:"failure_count"`
	SuccessCount   int       `json:"success_count"`
	LastTransition time.Time `json:"last_transition,omitempty"`
}

// Registry owns the per-backend circuit records and their transitions.
// It is safe for concurrent use; the backing store serializes updates
// per key.
type Registry struct {
	store  Store
	config Config
	clock  func() time.Time
	logger logging.Logger

	onStateChange func(StateChange)
}

// Option configures a Registry
type Option func(*Registry)

// WithClock injects a time source, for tests
func WithClock(clock func() time.Time) Option {
	return func(r *Registry) { r.clock = clock }
}

// WithLogger sets the registry logger
func WithLogger(logger logging.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// NewRegistry creates a registry over the given store
func NewRegistry(store Store, config Config, opts ...Option) *Registry {
	r := &Registry{
		store:  store,
		config: config,
		clock:  time.Now,
		logger: logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "circuit_registry"}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnStateChange sets a callback invoked after every committed transition
func (r *Registry) OnStateChange(fn func(StateChange)) {
	r.onStateChange = fn
}

// GetState returns the current state for key, first applying any due
// auto-transition: a half-open breaker that collected enough probation
// successes closes; an open breaker whose cool-down elapsed moves to
// half-open. Repeated reads without intervening activity are stable.
func (r *Registry) GetState(ctx context.Context, key string) (State, error) {
	now := r.clock()

	var changes []StateChange
	rec, err := r.store.Update(ctx, key, func(rec Record) Record {
		changes = changes[:0] // the store may retry fn on contention
		switch {
		case rec.State == StateHalfOpen && rec.SuccessCount >= r.config.SuccessThreshold:
			rec = transition(rec, StateClosed, now, key, &changes)
		case rec.State == StateOpen && now.Sub(rec.LastTransition) > r.config.OpenTimeout:
			rec = transition(rec, StateHalfOpen, now, key, &changes)
		}
		return rec
	})
	if err != nil {
		return StateClosed, err
	}

	r.fire(changes)
	return rec.State, nil
}

// RecordFailure counts one failure cycle against key, tripping the breaker
// open once the failure threshold is reached. A half-open breaker keeps its
// pre-probation failure count, so a single probation failure re-trips the
// same threshold check and re-opens immediately.
func (r *Registry) RecordFailure(ctx context.Context, key string) error {
	now := r.clock()

	var changes []StateChange
	_, err := r.store.Update(ctx, key, func(rec Record) Record {
		changes = changes[:0] // the store may retry fn on contention
		rec.FailureCount++
		if rec.FailureCount >= r.config.FailureThreshold && rec.State != StateOpen {
			rec = transition(rec, StateOpen, now, key, &changes)
		}
		return rec
	})
	if err != nil {
		return err
	}

	r.fire(changes)
	return nil
}

// RecordSuccess counts one successful cycle for key. In half-open it
// advances probation; in closed it heals the failure tally. Open breakers
// are never invoked, so success while open does not occur.
func (r *Registry) RecordSuccess(ctx context.Context, key string) error {
	_, err := r.store.Update(ctx, key, func(rec Record) Record {
		switch rec.State {
		case StateHalfOpen:
			rec.SuccessCount++
		case StateClosed:
			rec.FailureCount = 0
		}
		return rec
	})
	return err
}

// Snapshot returns the current record for every known key, without
// applying auto-transitions
func (r *Registry) Snapshot(ctx context.Context) ([]Stats, error) {
	keys, err := r.store.Keys(ctx)
	if err != nil {
		return nil, err
	}

	stats := make([]Stats, 0, len(keys))
	for _, key := range keys {
		rec, ok, err := r.store.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		stats = append(stats, Stats{
			Key:            key,
			State:          rec.State.String(),
			FailureCount:   rec.FailureCount,
			SuccessCount:   rec.SuccessCount,
			LastTransition: rec.LastTransition,
		})
	}
	return stats, nil
}

// transition moves rec to newState and stamps the transition time.
// Counter resets are deliberately asymmetric: closing resets both counters,
// probation resets only the success counter, and opening resets nothing.
func transition(rec Record, newState State, now time.Time, key string, changes *[]StateChange) Record {
	from := rec.State
	rec.State = newState
	rec.LastTransition = now

	switch newState {
	case StateClosed:
		rec.FailureCount = 0
		rec.SuccessCount = 0
	case StateHalfOpen:
		rec.SuccessCount = 0
	}

	if from != newState {
		*changes = append(*changes, StateChange{Key: key, From: from, To: newState, Record: rec})
	}
	return rec
}

func (r *Registry) fire(changes []StateChange) {
	for _, change := range changes {
		r.logger.Warn("Circuit breaker state change",
			logging.Field{Key: "backend", Value: change.Key},
			logging.Field{Key: "from_state", Value: change.From.String()},
			logging.Field{Key: "to_state", Value: change.To.String()},
			logging.Field{Key: "failure_count", Value: change.Record.FailureCount},
		)
		if r.onStateChange != nil {
			r.onStateChange(change)
		}
	}
}
