package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRefreshRevocationStore(t *testing.T) {
	t.Parallel()

	mr, client := newTestRedis(t)
	store := NewRedisRefreshRevocationStore(client)
	ctx := context.Background()

	revoked, err := store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.False(t, revoked)

	require.NoError(t, store.MarkRevoked(ctx, "jti-1", time.Now().Add(time.Hour)))
	revoked, err = store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.True(t, revoked)

	mr.FastForward(61 * time.Minute)
	revoked, err = store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.False(t, revoked, "revocation marker should expire with the token")
}

func TestRefreshRevocationStoreSkipsExpiredTokens(t *testing.T) {
	t.Parallel()

	mr, client := newTestRedis(t)
	store := NewRedisRefreshRevocationStore(client)

	require.NoError(t, store.MarkRevoked(context.Background(), "jti-old", time.Now().Add(-time.Minute)))
	require.False(t, mr.Exists(revokedRefreshPrefix+"jti-old"))
}

func TestRateLimiterFixedWindow(t *testing.T) {
	t.Parallel()

	mr, client := newTestRedis(t)
	limiter := NewRedisRateLimiter(client)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		d, err := limiter.Allow(ctx, "ip:10.0.0.1", 3, 15*time.Minute)
		require.NoError(t, err)
		require.True(t, d.Allowed, "hit %d", i)
		require.Equal(t, 3-i, d.Remaining)
	}

	d, err := limiter.Allow(ctx, "ip:10.0.0.1", 3, 15*time.Minute)
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Equal(t, 0, d.Remaining)

	other, err := limiter.Allow(ctx, "ip:10.0.0.2", 3, 15*time.Minute)
	require.NoError(t, err)
	require.True(t, other.Allowed, "keys are counted independently")

	mr.FastForward(16 * time.Minute)
	d, err = limiter.Allow(ctx, "ip:10.0.0.1", 3, 15*time.Minute)
	require.NoError(t, err)
	require.True(t, d.Allowed, "a new window starts after expiry")
}

func TestRateLimiterWindowAlwaysExpires(t *testing.T) {
	t.Parallel()

	mr, client := newTestRedis(t)
	limiter := NewRedisRateLimiter(client)
	ctx := context.Background()

	d, err := limiter.Allow(ctx, "ip:10.0.0.3", 2, time.Minute)
	require.NoError(t, err)
	require.True(t, d.Allowed)
	require.Equal(t, time.Minute, mr.TTL(rateLimitPrefix+"ip:10.0.0.3"))

	// a counter stranded without a TTL is given one on the next hit
	mr.Set(rateLimitPrefix+"ip:10.0.0.4", "50")
	d, err = limiter.Allow(ctx, "ip:10.0.0.4", 2, time.Minute)
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Equal(t, time.Minute, mr.TTL(rateLimitPrefix+"ip:10.0.0.4"))

	mr.FastForward(2 * time.Minute)
	d, err = limiter.Allow(ctx, "ip:10.0.0.4", 2, time.Minute)
	require.NoError(t, err)
	require.True(t, d.Allowed)
}

func TestConnectAcceptsURLAndAddress(t *testing.T) {
	t.Parallel()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	for _, target := range []string{mr.Addr(), "redis://" + mr.Addr() + "/0"} {
		client, err := Connect(context.Background(), target)
		require.NoError(t, err, target)
		require.NoError(t, client.Close())
	}

	_, err = Connect(context.Background(), "redis://%zz")
	require.Error(t, err)
}
