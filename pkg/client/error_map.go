// Kunhua Huang 2026

package client

import (
	"context"
	"fmt"

	"github.com/ecstasoy/editorbridge/pkg/protocol"
	"github.com/ecstasoy/editorbridge/pkg/ratelimiter"
)

// unmapError turns an error response back into a Go error. The result
// always unwraps to the *protocol.Error and, where one exists, to the
// matching sentinel.
func unmapError(resp *protocol.Response) error {
	if resp.IsSuccess() {
		return nil
	}

	err := resp.Error

	switch err.Code {
	case protocol.ErrorCodeUnknownCommand:
		return fmt.Errorf("%w: %w", protocol.ErrUnknownCommand, err)

	case protocol.ErrorCodeResourceExhausted:
		return fmt.Errorf("%w: %w", ratelimiter.ErrRateLimitExceeded, err)

	case protocol.ErrorCodeUnavailable:
		return fmt.Errorf("%w: %w", protocol.ErrUnavailable, err)

	case protocol.ErrorCodeDeadlineExceeded:
		return fmt.Errorf("%w: %w", context.DeadlineExceeded, err)

	case protocol.ErrorCodeCanceled:
		return fmt.Errorf("%w: %w", context.Canceled, err)

	case protocol.ErrorCodeMessageTooLarge:
		return fmt.Errorf("%w: %w", protocol.ErrMessageTooLarge, err)

	default:
		return err
	}
}
