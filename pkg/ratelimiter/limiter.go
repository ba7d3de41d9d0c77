// Kunhua Huang 2026

package ratelimiter

import (
	"context"
	"errors"
)

var (
	// ErrRateLimitExceeded is reported to the peer as RESOURCE_EXHAUSTED.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrBurstExceeded     = errors.New("request larger than limiter burst")
)

// RateLimiter throttles the commands of a single session.
type RateLimiter interface {
	Allow(ctx context.Context) bool
	AllowN(ctx context.Context, n int) bool
	Wait(ctx context.Context) error
	Name() string
}

// Factory builds the limiter for a new session.
type Factory func() RateLimiter

// PerConnection gives every connection its own token bucket refilling
// perSecond commands per second up to burst.
func PerConnection(perSecond float64, burst int) *KeyedLimiter {
	return NewKeyedLimiter(func() RateLimiter {
		return NewTokenBucketLimiter(perSecond, burst)
	})
}
