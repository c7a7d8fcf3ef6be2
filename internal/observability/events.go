package observability

import (
	"context"
	"sync"
	"time"
)

// EventEnvelope wraps operational events (websocket lifecycle, relay
// failures) published to the events exchange.
type EventEnvelope struct {
	EventType  string    `json:"event_type"`
	EventName  string    `json:"event_name"`
	RequestID  string    `json:"request_id,omitempty"`
	TraceID    string    `json:"trace_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// EventPublisher is satisfied by rabbitmq.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

var (
	publisherMu      sync.RWMutex
	defaultPublisher EventPublisher
)

func SetPublisher(p EventPublisher) {
	publisherMu.Lock()
	defer publisherMu.Unlock()
	defaultPublisher = p
}

// PublishEvent sends env to the configured publisher. Without one it is a
// no-op; failures are counted.
func PublishEvent(ctx context.Context, routingKey string, env EventEnvelope) error {
	publisherMu.RLock()
	p := defaultPublisher
	publisherMu.RUnlock()
	if p == nil {
		return nil
	}

	if env.OccurredAt.IsZero() {
		env.OccurredAt = time.Now().UTC()
	}
	if err := p.Publish(ctx, routingKey, env); err != nil {
		IncAMQPPublishError()
		return err
	}
	return nil
}
