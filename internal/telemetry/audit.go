package telemetry

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"social-chat/internal/logger"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// AuditEmitter publishes audit_log envelopes for user-visible state changes
// (ticket sends, deny toggles).
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	log         *zap.Logger
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	UserID        *string      `json:"user_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level  string         `json:"level"`
	Action string         `json:"action"`
	Text   string         `json:"text"`
	Fields map[string]any `json:"fields,omitempty"`
}

// AuditEvent is one audited action.
type AuditEvent struct {
	Level  string
	Action string
	Text   string
	UserID int64
	Fields map[string]any
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string, log *zap.Logger) *AuditEmitter {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		log:         log,
	}
}

// Emit publishes ev. The request id is taken from ctx; failures are only
// logged.
func (e *AuditEmitter) Emit(ctx context.Context, ev AuditEvent) {
	if e == nil || e.publisher == nil {
		return
	}
	if ev.Level == "" {
		ev.Level = "INFO"
	}

	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     logger.RequestID(ctx),
		Payload: AuditPayload{
			Level:  ev.Level,
			Action: ev.Action,
			Text:   ev.Text,
			Fields: ev.Fields,
		},
	}
	if ev.UserID != 0 {
		id := strconv.FormatInt(ev.UserID, 10)
		envelope.UserID = &id
	}

	log := logger.FromContext(ctx, e.log)
	log.Debug("audit emit", zap.String("action", ev.Action), zap.String("level", ev.Level))
	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
		log.Warn("audit publish failed", zap.String("action", ev.Action), zap.Error(err))
	}
}
