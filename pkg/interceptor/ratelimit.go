//Kunhua Huang 2026

package interceptor

import (
	"context"

	"github.com/ecstasoy/editorbridge/pkg/protocol"
	"github.com/ecstasoy/editorbridge/pkg/ratelimiter"
)

// RateLimit applies a separate budget to every connection.
func RateLimit(limiter *ratelimiter.KeyedLimiter) Interceptor {
	return func(ctx context.Context, req *protocol.Request, invoker Invoker) ([]byte, error) {
		if !limiter.Allow(ctx, req.ConnID) {
			return nil, ratelimiter.ErrRateLimitExceeded
		}

		return invoker(ctx, req)
	}
}
