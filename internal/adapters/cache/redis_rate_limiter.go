package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/verilink/commerce-auth/internal/ports"
)

const rateLimitPrefix = "auth:ratelimit:"

// RedisRateLimiter is a fixed-window counter. The window key is created with
// its TTL (SET NX EX) and incremented in one MULTI block, so a counter can
// never outlive its window.
type RedisRateLimiter struct {
	client redis.Cmdable
	now    func() time.Time
}

func NewRedisRateLimiter(client redis.Cmdable) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, now: time.Now}
}

func (l *RedisRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (ports.RateLimitDecision, error) {
	redisKey := rateLimitPrefix + key

	var incr *redis.IntCmd
	var pttl *redis.DurationCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, redisKey, 0, window)
		incr = pipe.Incr(ctx, redisKey)
		pttl = pipe.PTTL(ctx, redisKey)
		return nil
	})
	if err != nil {
		return ports.RateLimitDecision{}, fmt.Errorf("rate limit window: %w", err)
	}

	count := incr.Val()
	ttl := pttl.Val()
	if ttl < 0 {
		// Counter left without a TTL by an older writer.
		if err := l.client.Expire(ctx, redisKey, window).Err(); err != nil {
			return ports.RateLimitDecision{}, fmt.Errorf("rate limit expire: %w", err)
		}
		ttl = window
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return ports.RateLimitDecision{
		Allowed:   count <= int64(limit),
		Remaining: remaining,
		ResetAt:   l.now().Add(ttl),
	}, nil
}
