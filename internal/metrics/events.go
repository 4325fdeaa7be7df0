// Package metrics emits invocation and circuit state-change events to
// fire-and-forget sinks. A sink failure is logged locally and never
// propagated to the request path.
package metrics

import (
	"time"

	"github.com/google/uuid"
)

// InvocationEvent records the outcome of one tier cycle or cache hit
type InvocationEvent struct {
	ID        string    `json:"id"`
	UseCase   string    `json:"use_case"`
	TierKey   string    `json:"tier_key,omitempty"`
	Level     int       `json:"level"`
	Success   bool      `json:"success"`
	ErrorKind string    `json:"error_kind,omitempty"`
	Retryable bool      `json:"retryable,omitempty"`
	Attempts  int       `json:"attempts"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Degraded  bool      `json:"degraded"`
	Timestamp time.Time `json:"timestamp"`
}

// CircuitStateChangeEvent records one breaker transition
type CircuitStateChangeEvent struct {
	ID           string    `json:"id"`
	BackendKey   string    `json:"backend_key"`
	FromState    string    `json:"from_state"`
	ToState      string    `json:"to_state"`
	FailureCount int       `json:"failure_count"`
	SuccessCount int       `json:"success_count"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewEventID returns a unique event identifier
func NewEventID() string {
	return uuid.NewString()
}
