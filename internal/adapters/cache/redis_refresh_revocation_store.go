package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedRefreshPrefix = "auth:revoked:refresh:"

// RedisRefreshRevocationStore keeps revoked refresh token ids until their natural expiry.
type RedisRefreshRevocationStore struct {
	client redis.Cmdable
	now    func() time.Time
}

func NewRedisRefreshRevocationStore(client redis.Cmdable) *RedisRefreshRevocationStore {
	return &RedisRefreshRevocationStore{client: client, now: time.Now}
}

func (s *RedisRefreshRevocationStore) MarkRevoked(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return errors.New("token id is required")
	}
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		// already dead on its own
		return nil
	}
	return s.client.Set(ctx, revokedRefreshPrefix+tokenID, "1", ttl).Err()
}

func (s *RedisRefreshRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedRefreshPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
