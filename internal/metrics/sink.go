package metrics

import (
	"context"

	"model-router/internal/common/logging"
)

// Sink receives events fire-and-forget. Implementations must swallow their
// own failures; the caller never learns about them.
type Sink interface {
	EmitInvocation(ctx context.Context, event InvocationEvent)
	EmitCircuitChange(ctx context.Context, event CircuitStateChangeEvent)
}

// LoggingSink writes every event to the structured log
type LoggingSink struct {
	logger logging.Logger
}

// NewLoggingSink creates a sink over the given logger
func NewLoggingSink(logger logging.Logger) *LoggingSink {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &LoggingSink{logger: logger.WithFields(logging.Field{Key: "component", Value: "metrics"})}
}

// EmitInvocation logs one invocation event
func (s *LoggingSink) EmitInvocation(_ context.Context, event InvocationEvent) {
	fields := []logging.Field{
		{Key: "event_id", Value: event.ID},
		{Key: "use_case", Value: event.UseCase},
		{Key: "tier", Value: event.TierKey},
		{Key: "level", Value: event.Level},
		{Key: "success", Value: event.Success},
		{Key: "attempts", Value: event.Attempts},
		{Key: "latency_ms", Value: event.LatencyMs},
		{Key: "cache_hit", Value: event.CacheHit},
		{Key: "degraded", Value: event.Degraded},
	}
	if event.ErrorKind != "" {
		fields = append(fields, logging.Field{Key: "error_kind", Value: event.ErrorKind})
	}

	if event.Success {
		s.logger.Info("Invocation completed", fields...)
	} else {
		s.logger.Warn("Invocation failed", fields...)
	}
}

// EmitCircuitChange logs one circuit transition event
func (s *LoggingSink) EmitCircuitChange(_ context.Context, event CircuitStateChangeEvent) {
	s.logger.Warn("Circuit state changed",
		logging.Field{Key: "event_id", Value: event.ID},
		logging.Field{Key: "backend", Value: event.BackendKey},
		logging.Field{Key: "from_state", Value: event.FromState},
		logging.Field{Key: "to_state", Value: event.ToState},
		logging.Field{Key: "failure_count", Value: event.FailureCount},
	)
}

// MultiSink fans events out to several sinks
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink composes sinks; nil entries are skipped
func NewMultiSink(sinks ...Sink) *MultiSink {
	compact := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			compact = append(compact, s)
		}
	}
	return &MultiSink{sinks: compact}
}

// EmitInvocation forwards the event to every sink
func (m *MultiSink) EmitInvocation(ctx context.Context, event InvocationEvent) {
	for _, s := range m.sinks {
		s.EmitInvocation(ctx, event)
	}
}

// EmitCircuitChange forwards the event to every sink
func (m *MultiSink) EmitCircuitChange(ctx context.Context, event CircuitStateChangeEvent) {
	for _, s := range m.sinks {
		s.EmitCircuitChange(ctx, event)
	}
}
