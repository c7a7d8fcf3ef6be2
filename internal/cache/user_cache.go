package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"social-chat/internal/models"
	"social-chat/internal/repositories"
)

// UserCache is a read-through redis cache in front of the user directory.
// Entries are msgpack encoded. Misses are not cached so new users are
// visible immediately.
type UserCache struct {
	client redis.UniversalClient
	next   repositories.UserRepository
	ttl    time.Duration
	log    *zap.Logger
}

var _ repositories.UserRepository = (*UserCache)(nil)

func NewUserCache(client redis.UniversalClient, next repositories.UserRepository, ttl time.Duration, log *zap.Logger) *UserCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserCache{client: client, next: next, ttl: ttl, log: log}
}

func userIDKey(id int64) string    { return fmt.Sprintf("user:id:%d", id) }
func userRefKey(ref string) string { return "user:ref:" + ref }

// GetByID returns the user with the given id.
func (c *UserCache) GetByID(ctx context.Context, id int64) (models.User, error) {
	if u, ok := c.get(ctx, userIDKey(id)); ok {
		return u, nil
	}
	u, err := c.next.GetByID(ctx, id)
	if err != nil {
		return models.User{}, err
	}
	c.set(ctx, u)
	return u, nil
}

// GetByRef returns the user with the given public ref.
func (c *UserCache) GetByRef(ctx context.Context, ref string) (models.User, error) {
	if u, ok := c.get(ctx, userRefKey(ref)); ok {
		return u, nil
	}
	u, err := c.next.GetByRef(ctx, ref)
	if err != nil {
		return models.User{}, err
	}
	c.set(ctx, u)
	return u, nil
}

// Invalidate drops both cache entries of a user.
func (c *UserCache) Invalidate(ctx context.Context, u models.User) error {
	return c.client.Del(ctx, userIDKey(u.ID), userRefKey(u.Ref)).Err()
}

func (c *UserCache) get(ctx context.Context, key string) (models.User, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("user cache read failed", zap.String("key", key), zap.Error(err))
		}
		return models.User{}, false
	}
	var u models.User
	if err := msgpack.Unmarshal(raw, &u); err != nil {
		c.log.Warn("user cache decode failed", zap.String("key", key), zap.Error(err))
		return models.User{}, false
	}
	return u, true
}

func (c *UserCache) set(ctx context.Context, u models.User) {
	raw, err := msgpack.Marshal(u)
	if err != nil {
		c.log.Warn("user cache encode failed", zap.Int64("user_id", u.ID), zap.Error(err))
		return
	}
	_, err = c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, userIDKey(u.ID), raw, c.ttl)
		pipe.Set(ctx, userRefKey(u.Ref), raw, c.ttl)
		return nil
	})
	if err != nil {
		c.log.Warn("user cache write failed", zap.Int64("user_id", u.ID), zap.Error(err))
	}
}
