package notify

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisPubSub publishes and consumes notification events over redis.
type RedisPubSub struct {
	client redis.UniversalClient
}

func NewRedisPubSub(client redis.UniversalClient) *RedisPubSub {
	return &RedisPubSub{client: client}
}

func (p *RedisPubSub) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.client.Publish(ctx, channel, payload).Err()
}

// Subscribe delivers every message matching pattern to handler until ctx is
// cancelled. It returns once the subscription fails.
func (p *RedisPubSub) Subscribe(ctx context.Context, pattern string, handler func(channel string, payload []byte)) error {
	sub := p.client.PSubscribe(ctx, pattern)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("psubscribe %s: %w", pattern, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			handler(msg.Channel, []byte(msg.Payload))
		}
	}
}
