package ws

import (
	"context"
	"time"

	"github.com/google/uuid"

	"social-chat/internal/observability"
)

const (
	wsKind       = "notifications"
	wsRoutingKey = "ws_events.notifications"
)

func newConnID() string {
	return uuid.NewString()
}

// publishWSEvent counts a connection lifecycle event and publishes it to the
// events exchange.
func publishWSEvent(ctx context.Context, info ConnInfo, event, reason string) {
	observability.IncWSEvent(wsKind, event)

	var duration int64
	if event != "ws_connect" {
		duration = time.Since(info.ConnectedAt).Milliseconds()
	}
	_ = observability.PublishEvent(ctx, wsRoutingKey, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		RequestID: info.RequestID,
		TraceID:   info.TraceID,
		Payload: map[string]any{
			"ws": map[string]any{
				"kind":        wsKind,
				"event":       event,
				"conn_id":     info.ConnID,
				"duration_ms": duration,
				"reason":      reason,
			},
			"identity": map[string]any{
				"user_id":   info.UserID,
				"device_id": info.DeviceID,
				"ip":        info.IP,
			},
		},
	})
}
