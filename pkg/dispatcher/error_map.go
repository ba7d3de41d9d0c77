package dispatcher

import (
	"context"
	"errors"

	"github.com/ecstasoy/editorbridge/pkg/interceptor"
	"github.com/ecstasoy/editorbridge/pkg/protocol"
	"github.com/ecstasoy/editorbridge/pkg/ratelimiter"
)

func mapError(err error, command string) *protocol.Error {
	var perr *protocol.Error
	if errors.As(err, &perr) {
		return perr
	}

	if errors.Is(err, protocol.ErrUnknownCommand) {
		return protocol.Errorf(protocol.ErrorCodeUnknownCommand, "unknown command %q", command)
	}

	if errors.Is(err, ratelimiter.ErrRateLimitExceeded) {
		return protocol.NewError(protocol.ErrorCodeResourceExhausted, "rate limit exceeded")
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return protocol.Errorf(protocol.ErrorCodeDeadlineExceeded,
			"command %s exceeded its deadline", command)
	}

	if errors.Is(err, context.Canceled) {
		return protocol.Errorf(protocol.ErrorCodeCanceled, "command %s canceled", command)
	}

	if errors.Is(err, protocol.ErrUnavailable) {
		return protocol.Errorf(protocol.ErrorCodeUnavailable, "command %s cannot run: %v", command, err)
	}

	if errors.Is(err, interceptor.ErrPanic) {
		return protocol.Errorf(protocol.ErrorCodeHandlerFailure, "command %s panicked", command).
			WithDetails(err.Error())
	}

	return protocol.Errorf(protocol.ErrorCodeHandlerFailure, "command %s failed: %v", command, err)
}
