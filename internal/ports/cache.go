package ports

import (
	"context"
	"time"
)

// RefreshTokenRevocationStore keeps revoked refresh token ids until the token
// would have expired on its own.
type RefreshTokenRevocationStore interface {
	MarkRevoked(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// RateLimitDecision is the outcome of one rate limiter hit.
type RateLimitDecision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RateLimiter counts hits per key inside a fixed window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (RateLimitDecision, error)
}
