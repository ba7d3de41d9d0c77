// Kunhua Huang 2026

package interceptor

import (
	"context"

	"github.com/ecstasoy/editorbridge/pkg/protocol"
)

// Invoker runs a command and returns its raw result.
type Invoker func(ctx context.Context, req *protocol.Request) ([]byte, error)

// Interceptor wraps command execution. It must call next to continue.
type Interceptor func(ctx context.Context, req *protocol.Request, next Invoker) ([]byte, error)

// Wrap composes interceptors around invoker once. The first interceptor is
// the outermost.
func Wrap(invoker Invoker, interceptors ...Interceptor) Invoker {
	for i := len(interceptors) - 1; i >= 0; i-- {
		next, ic := invoker, interceptors[i]
		invoker = func(ctx context.Context, req *protocol.Request) ([]byte, error) {
			return ic(ctx, req, next)
		}
	}
	return invoker
}

// Chain folds interceptors into a single one.
func Chain(interceptors ...Interceptor) Interceptor {
	return func(ctx context.Context, req *protocol.Request, next Invoker) ([]byte, error) {
		return Wrap(next, interceptors...)(ctx, req)
	}
}
