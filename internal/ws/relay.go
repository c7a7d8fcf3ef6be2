package ws

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"social-chat/internal/notify"
)

// Subscriber is satisfied by notify.RedisPubSub.
type Subscriber interface {
	Subscribe(ctx context.Context, pattern string, handler func(channel string, payload []byte)) error
}

// Frame is what a notification socket receives.
type Frame struct {
	Type     string          `json:"type"`
	ID       int64           `json:"id,omitempty"`
	Category notify.Category `json:"category"`
	Subject  string          `json:"subject"`
	Payload  json.RawMessage `json:"payload"`
	SentAt   time.Time       `json:"sentAt"`
}

// relayEvent mirrors notify.Event with the payload kept raw.
type relayEvent struct {
	ID       int64           `json:"id"`
	Targets  []int64         `json:"targets"`
	Category notify.Category `json:"category"`
	Subject  string          `json:"subject"`
	Payload  json.RawMessage `json:"payload"`
	SentAt   time.Time       `json:"sentAt"`
}

// Relay forwards notification events from pub/sub to connected sockets, so
// every instance delivers to the users connected to it.
type Relay struct {
	sub   Subscriber
	hub   *Hub
	log   *zap.Logger
	retry time.Duration
}

func NewRelay(sub Subscriber, hub *Hub, log *zap.Logger) *Relay {
	if log == nil {
		log = zap.NewNop()
	}
	return &Relay{sub: sub, hub: hub, log: log, retry: 2 * time.Second}
}

// Run subscribes to every notification channel until ctx is cancelled,
// resubscribing after failures.
func (r *Relay) Run(ctx context.Context) {
	for {
		err := r.sub.Subscribe(ctx, notify.ChannelPattern, r.Handle)
		if ctx.Err() != nil {
			return
		}
		r.log.Warn("notification relay subscription ended, retrying", zap.Error(err), zap.Duration("retry", r.retry))
		select {
		case <-ctx.Done():
			return
		case <-time.After(r.retry):
		}
	}
}

// Handle delivers one pub/sub message.
func (r *Relay) Handle(channel string, payload []byte) {
	var ev relayEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		r.log.Warn("drop malformed notification event", zap.String("channel", channel), zap.Error(err))
		return
	}
	if len(ev.Targets) == 0 {
		return
	}
	frame, err := json.Marshal(Frame{
		Type:     "notification",
		ID:       ev.ID,
		Category: ev.Category,
		Subject:  ev.Subject,
		Payload:  ev.Payload,
		SentAt:   ev.SentAt,
	})
	if err != nil {
		r.log.Warn("encode notification frame failed", zap.Error(err))
		return
	}
	r.hub.Deliver(ev.Targets, frame)
}
