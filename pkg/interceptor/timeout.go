// Kunhua Huang 2026

package interceptor

import (
	"context"
	"time"

	"github.com/ecstasoy/editorbridge/pkg/protocol"
)

// Timeout bounds the handler's context. Handlers are expected to honour ctx,
// a handler that ignores it still runs to completion.
func Timeout(d time.Duration) Interceptor {
	return func(ctx context.Context, req *protocol.Request, invoker Invoker) ([]byte, error) {
		if d <= 0 {
			return invoker(ctx, req)
		}

		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		return invoker(ctx, req)
	}
}
