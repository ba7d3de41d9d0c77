package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownCommand is returned when no handler is registered for a command.
	ErrUnknownCommand = errors.New("unknown command")
	ErrUnavailable    = errors.New("service unavailable")
)

// Error is the structured error carried back to the peer.
type Error struct {
	Code    int32  `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

const (
	ErrorCodeOK                = 0
	ErrorCodeCanceled          = 1
	ErrorCodeUnknown           = 2
	ErrorCodeInvalidArgument   = 3
	ErrorCodeDeadlineExceeded  = 4
	ErrorCodeUnknownCommand    = 5
	ErrorCodeResourceExhausted = 8
	ErrorCodeMessageTooLarge   = 9
	ErrorCodeHandlerFailure    = 13
	ErrorCodeUnavailable       = 14
)

var codeNames = map[int32]string{
	ErrorCodeOK:                "OK",
	ErrorCodeCanceled:          "CANCELED",
	ErrorCodeUnknown:           "UNKNOWN",
	ErrorCodeInvalidArgument:   "INVALID_ARGUMENT",
	ErrorCodeDeadlineExceeded:  "DEADLINE_EXCEEDED",
	ErrorCodeUnknownCommand:    "UNKNOWN_COMMAND",
	ErrorCodeResourceExhausted: "RESOURCE_EXHAUSTED",
	ErrorCodeMessageTooLarge:   "MESSAGE_TOO_LARGE",
	ErrorCodeHandlerFailure:    "HANDLER_FAILURE",
	ErrorCodeUnavailable:       "UNAVAILABLE",
}

// CodeName returns the wire name of code, e.g. "UNKNOWN_COMMAND".
func CodeName(code int32) string {
	if name, ok := codeNames[code]; ok {
		return name
	}
	return fmt.Sprintf("CODE_%d", code)
}

// CodeFromName is the inverse of CodeName.
func CodeFromName(name string) (int32, bool) {
	for code, n := range codeNames {
		if n == name {
			return code, true
		}
	}
	return ErrorCodeUnknown, false
}

func NewError(code int32, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

func Errorf(code int32, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

func (e *Error) WithDetails(details string) *Error {
	e.Details = details
	return e
}

func (e *Error) Kind() string {
	return CodeName(e.Code)
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Kind(), e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Kind(), e.Message)
}
