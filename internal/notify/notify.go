// Package notify delivers notifications to users: a durable row, a realtime
// event on redis pub/sub and a mobile push through FCM.
package notify

import (
	"context"
	"errors"
	"time"
)

// Category groups notifications by what triggered them. It doubles as the
// pub/sub channel suffix and the FCM topic name.
type Category string

const (
	CategoryTicket Category = "ticket"
	CategoryPost   Category = "post"
	CategoryGroup  Category = "group"
	CategoryChat   Category = "chat"
	CategorySystem Category = "system"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryTicket, CategoryPost, CategoryGroup, CategoryChat, CategorySystem:
		return true
	}
	return false
}

// ChannelPrefix prefixes every notification channel on redis.
const ChannelPrefix = "noti:"

// ChannelPattern matches every notification channel.
const ChannelPattern = ChannelPrefix + "*"

// Channel returns the redis channel carrying events of c.
func Channel(c Category) string {
	return ChannelPrefix + string(c)
}

// Event is the realtime message published on redis.
type Event struct {
	ID       int64     `json:"id,omitempty"`
	Targets  []int64   `json:"targets"`
	Category Category  `json:"category"`
	Subject  string    `json:"subject"`
	Payload  Payload   `json:"payload"`
	SentAt   time.Time `json:"sentAt"`
}

// ErrTokenInvalid marks a push token the provider will never accept again.
var ErrTokenInvalid = errors.New("push token is no longer valid")

// Publisher publishes raw payloads on a pub/sub channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// PushGateway sends data messages to devices or topics.
type PushGateway interface {
	SendDevice(ctx context.Context, token string, data map[string]string) error
	SendTopic(ctx context.Context, topic string, data map[string]string) error
}
