// Kunhua Huang 2026

package interceptor

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ecstasoy/editorbridge/pkg/protocol"
)

// CommandObserver receives one observation per dispatched command.
type CommandObserver interface {
	ObserveCommand(command, status string, d time.Duration)
}

// Metrics reports every command to observer. known tells registered
// command names apart; anything else is labelled "unknown" because peers
// choose the name. A nil known trusts every name.
func Metrics(observer CommandObserver, known func(command string) bool) Interceptor {
	return func(ctx context.Context, req *protocol.Request, invoker Invoker) ([]byte, error) {
		start := time.Now()

		resp, err := invoker(ctx, req)

		command := strings.ToLower(req.Command)
		if known != nil && !known(command) {
			command = "unknown"
		}

		status := "ok"
		switch {
		case errors.Is(err, protocol.ErrUnknownCommand):
			command, status = "unknown", "unknown_command"
		case err != nil:
			status = "error"
		}

		observer.ObserveCommand(command, status, time.Since(start))

		return resp, err
	}
}
