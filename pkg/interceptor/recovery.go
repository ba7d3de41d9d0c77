// Kunhua Huang 2026

package interceptor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/ecstasoy/editorbridge/pkg/protocol"
)

var ErrPanic = errors.New("handler panicked")

// Recovery turns a panic below it into ErrPanic so the connection survives.
func Recovery(logger *slog.Logger) Interceptor {
	if logger == nil {
		logger = slog.Default()
	}

	return func(ctx context.Context, req *protocol.Request, invoker Invoker) (resp []byte, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					"command", req.Command,
					"conn", req.ConnID,
					"panic", r,
					"stack", string(debug.Stack()))
				err = fmt.Errorf("%w: %v", ErrPanic, r)
				resp = nil
			}
		}()

		return invoker(ctx, req)
	}
}
