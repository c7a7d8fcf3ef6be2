package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-chat/internal/logger"
)

type recordingPublisher struct {
	routingKey string
	events     []AuditEnvelope
	err        error
}

func (p *recordingPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	p.routingKey = routingKey
	p.events = append(p.events, event.(AuditEnvelope))
	return p.err
}

func TestAuditEmitterEmit(t *testing.T) {
	pub := &recordingPublisher{}
	emitter := NewAuditEmitter(pub, "audit.chat", "social-chat", "test", nil)
	ctx := logger.WithRequestID(context.Background(), "req-9")

	emitter.Emit(ctx, AuditEvent{
		Action: "ticket.send",
		Text:   "express ticket sent",
		UserID: 7,
		Fields: map[string]any{"room_ref": "r1"},
	})

	require.Len(t, pub.events, 1)
	env := pub.events[0]
	assert.Equal(t, "audit.chat", pub.routingKey)
	assert.Equal(t, "audit_log", env.EventType)
	assert.Equal(t, "social-chat", env.Service)
	assert.Equal(t, "test", env.Environment)
	assert.Equal(t, "req-9", env.RequestID)
	require.NotNil(t, env.UserID)
	assert.Equal(t, "7", *env.UserID)
	assert.Equal(t, "INFO", env.Payload.Level)
	assert.Equal(t, "ticket.send", env.Payload.Action)
	assert.Equal(t, "r1", env.Payload.Fields["room_ref"])
}

func TestAuditEmitterAnonymousAndFailures(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("closed")}
	emitter := NewAuditEmitter(pub, "audit.chat", "social-chat", "test", nil)

	emitter.Emit(context.Background(), AuditEvent{Level: "WARN", Action: "chat.deny"})
	require.Len(t, pub.events, 1)
	assert.Nil(t, pub.events[0].UserID)
	assert.Equal(t, "WARN", pub.events[0].Payload.Level)

	var nilEmitter *AuditEmitter
	assert.NotPanics(t, func() { nilEmitter.Emit(context.Background(), AuditEvent{}) })
}
