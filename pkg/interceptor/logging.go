// Kunhua Huang 2026

package interceptor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ecstasoy/editorbridge/pkg/protocol"
)

func Logging(logger *slog.Logger) Interceptor {
	if logger == nil {
		logger = slog.Default()
	}

	return func(ctx context.Context, req *protocol.Request, invoker Invoker) ([]byte, error) {
		start := time.Now()

		logger.DebugContext(ctx, "command received",
			"command", req.Command,
			"conn", req.ConnID,
			"request_id", req.ID,
			"args_len", len(req.Args))

		resp, err := invoker(ctx, req)

		duration := time.Since(start)

		switch {
		case errors.Is(err, protocol.ErrUnknownCommand):
			logger.WarnContext(ctx, "unknown command",
				"command", req.Command, "conn", req.ConnID, "remote", req.RemoteAddr)
		case err != nil:
			logger.ErrorContext(ctx, "command failed",
				"command", req.Command, "conn", req.ConnID, "duration", duration, "error", err)
		default:
			logger.InfoContext(ctx, "command succeeded",
				"command", req.Command, "conn", req.ConnID, "duration", duration, "resp_len", len(resp))
		}

		return resp, err
	}
}
