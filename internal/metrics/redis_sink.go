package metrics

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"

	"model-router/internal/common/logging"
)

const (
	invocationStream = "metrics:invocations"
	circuitStream    = "metrics:circuit"

	// streamMaxLen caps stream growth; trimming is approximate
	streamMaxLen = 100000
)

// RedisSink appends events to capped Redis streams for downstream
// consumers
type RedisSink struct {
	client *redis.Client
	logger logging.Logger
}

// NewRedisSink creates a sink over the given Redis client
func NewRedisSink(client *redis.Client, logger logging.Logger) *RedisSink {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &RedisSink{
		client: client,
		logger: logger.WithFields(logging.Field{Key: "component", Value: "redis_sink"}),
	}
}

// EmitInvocation appends one invocation event to the invocation stream
func (s *RedisSink) EmitInvocation(ctx context.Context, event InvocationEvent) {
	s.add(ctx, invocationStream, event.ID, event)
}

// EmitCircuitChange appends one circuit event to the circuit stream
func (s *RedisSink) EmitCircuitChange(ctx context.Context, event CircuitStateChangeEvent) {
	s.add(ctx, circuitStream, event.ID, event)
}

func (s *RedisSink) add(ctx context.Context, stream, id string, event interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("Failed to encode metrics event", err, logging.Field{Key: "stream", Value: stream})
		return
	}

	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream:       stream,
		MaxLenApprox: streamMaxLen,
		Values:       map[string]interface{}{"id": id, "event": string(data)},
	}).Err()
	if err != nil {
		// fire and forget: losing a metrics write is acceptable
		s.logger.Warn("Failed to append metrics event",
			logging.Field{Key: "stream", Value: stream},
			logging.Field{Key: "error", Value: err.Error()},
		)
	}
}
