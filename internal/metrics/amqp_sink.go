package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"model-router/internal/common/logging"
)

// AMQPSink publishes events to a durable queue for downstream alerting
// pipelines
type AMQPSink struct {
	url    string
	queue  string
	logger logging.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewAMQPSink dials the broker and declares the queue
func NewAMQPSink(url, queue string, logger logging.Logger) (*AMQPSink, error) {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	s := &AMQPSink{
		url:    url,
		queue:  queue,
		logger: logger.WithFields(logging.Field{Key: "component", Value: "amqp_sink"}, logging.Field{Key: "queue", Value: queue}),
	}
	if err := s.connect(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *AMQPSink) connect() error {
	conn, err := amqp.Dial(s.url)
	if err != nil {
		return fmt.Errorf("failed to connect to AMQP broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open AMQP channel: %w", err)
	}

	if _, err := ch.QueueDeclare(s.queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("failed to declare queue %s: %w", s.queue, err)
	}

	s.conn = conn
	s.ch = ch
	return nil
}

// EmitInvocation publishes one invocation event
func (s *AMQPSink) EmitInvocation(_ context.Context, event InvocationEvent) {
	s.publish("invocation", event.ID, event)
}

// EmitCircuitChange publishes one circuit event
func (s *AMQPSink) EmitCircuitChange(_ context.Context, event CircuitStateChangeEvent) {
	s.publish("circuit_state_change", event.ID, event)
}

func (s *AMQPSink) publish(eventType, id string, event interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("Failed to encode metrics event", err, logging.Field{Key: "event_type", Value: eventType})
		return
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    id,
		Type:         eventType,
		Timestamp:    time.Now(),
		Body:         data,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ch != nil {
		err := s.ch.Publish("", s.queue, false, false, msg)
		if err == nil {
			return
		}
		// one reconnect attempt, then drop the event
		s.logger.Warn("AMQP publish failed, reconnecting", logging.Field{Key: "error", Value: err.Error()})
	}

	s.closeLocked()
	if err := s.connect(); err != nil {
		s.logger.Warn("AMQP reconnect failed, dropping event", logging.Field{Key: "error", Value: err.Error()})
		return
	}
	if err := s.ch.Publish("", s.queue, false, false, msg); err != nil {
		s.logger.Warn("AMQP publish failed after reconnect, dropping event", logging.Field{Key: "error", Value: err.Error()})
	}
}

// Close releases the broker connection
func (s *AMQPSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
	return nil
}

func (s *AMQPSink) closeLocked() {
	if s.ch != nil {
		s.ch.Close()
		s.ch = nil
	}
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}
