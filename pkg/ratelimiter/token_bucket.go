// Kunhua Huang 2026

package ratelimiter

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

type TokenBucketLimiter struct {
	limiter *rate.Limiter
}

var _ RateLimiter = (*TokenBucketLimiter)(nil)

// NewTokenBucketLimiter refills perSecond tokens per second up to capacity.
// A non-positive perSecond allows everything.
func NewTokenBucketLimiter(perSecond float64, capacity int) RateLimiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if capacity <= 0 {
		capacity = 1
	}

	return &TokenBucketLimiter{
		limiter: rate.NewLimiter(limit, capacity),
	}
}

func (tb *TokenBucketLimiter) Allow(ctx context.Context) bool {
	return tb.AllowN(ctx, 1)
}

func (tb *TokenBucketLimiter) AllowN(ctx context.Context, n int) bool {
	if n <= 0 {
		return true
	}
	return tb.limiter.AllowN(time.Now(), n)
}

func (tb *TokenBucketLimiter) Wait(ctx context.Context) error {
	return tb.WaitN(ctx, 1)
}

func (tb *TokenBucketLimiter) WaitN(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}

	if tb.limiter.Limit() != rate.Inf && n > tb.limiter.Burst() {
		return ErrBurstExceeded
	}

	return tb.limiter.WaitN(ctx, n)
}

func (tb *TokenBucketLimiter) Name() string {
	return "token-bucket"
}
