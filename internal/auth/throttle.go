package auth

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginThrottle limits login attempts per email.
type LoginThrottle interface {
	Allow(ctx context.Context, email string) (bool, error)
}

type counterClient interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RedisThrottle is a fixed-window attempt counter stored in Redis.
type RedisThrottle struct {
	client      counterClient
	maxAttempts int64
	window      time.Duration
}

// NewRedisThrottle returns a throttle allowing maxAttempts per window.
func NewRedisThrottle(client redis.Cmdable, maxAttempts int, window time.Duration) *RedisThrottle {
	return &RedisThrottle{client: client, maxAttempts: int64(maxAttempts), window: window}
}

// Allow counts an attempt and reports whether it is within the limit.
func (t *RedisThrottle) Allow(ctx context.Context, email string) (bool, error) {
	key := "login:attempts:" + strings.ToLower(strings.TrimSpace(email))
	count, err := t.client.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := t.client.Expire(ctx, key, t.window).Err(); err != nil {
			return false, err
		}
	}
	return count <= t.maxAttempts, nil
}

// NoopThrottle allows every attempt.
type NoopThrottle struct{}

// Allow always succeeds.
func (NoopThrottle) Allow(context.Context, string) (bool, error) { return true, nil }
