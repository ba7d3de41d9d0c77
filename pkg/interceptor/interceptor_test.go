package interceptor

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecstasoy/editorbridge/pkg/protocol"
	"github.com/ecstasoy/editorbridge/pkg/ratelimiter"
)

func echoInvoker(ctx context.Context, req *protocol.Request) ([]byte, error) {
	return req.Args, nil
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Interceptor {
		return func(ctx context.Context, req *protocol.Request, next Invoker) ([]byte, error) {
			order = append(order, name+">")
			resp, err := next(ctx, req)
			order = append(order, "<"+name)
			return resp, err
		}
	}

	invoke := Wrap(echoInvoker, mark("a"), Chain(mark("b"), mark("c")))
	resp, err := invoke(context.Background(), protocol.NewRequest("echo", []byte("x")))

	require.NoError(t, err)
	assert.Equal(t, []byte("x"), resp)
	assert.Equal(t, []string{"a>", "b>", "c>", "<c", "<b", "<a"}, order)
}

func TestWrapWithoutInterceptors(t *testing.T) {
	resp, err := Wrap(echoInvoker)(context.Background(), protocol.NewRequest("echo", []byte("y")))
	require.NoError(t, err)
	assert.Equal(t, []byte("y"), resp)
}

func TestRecovery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	panicking := func(ctx context.Context, req *protocol.Request) ([]byte, error) {
		panic("kaboom")
	}

	resp, err := Recovery(logger)(context.Background(), protocol.NewRequest("boom", nil), panicking)

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrPanic)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestLoggingPassesThrough(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := Logging(logger)(context.Background(), protocol.NewRequest("echo", nil), echoInvoker)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "command succeeded")

	failing := func(ctx context.Context, req *protocol.Request) ([]byte, error) {
		return nil, protocol.ErrUnknownCommand
	}
	_, err = Logging(logger)(context.Background(), protocol.NewRequest("nope", nil), failing)
	assert.ErrorIs(t, err, protocol.ErrUnknownCommand)
	assert.Contains(t, buf.String(), "unknown command")
}

type recordingObserver struct {
	mu   sync.Mutex
	seen []string
}

func (r *recordingObserver) ObserveCommand(command, status string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, command+":"+status)
}

func TestMetricsStatuses(t *testing.T) {
	obs := &recordingObserver{}
	m := Metrics(obs, nil)
	ctx := context.Background()

	_, _ = m(ctx, protocol.NewRequest("ECHO", nil), echoInvoker)
	_, _ = m(ctx, protocol.NewRequest("random-name", nil), func(ctx context.Context, req *protocol.Request) ([]byte, error) {
		return nil, protocol.ErrUnknownCommand
	})
	_, _ = m(ctx, protocol.NewRequest("spawn", nil), func(ctx context.Context, req *protocol.Request) ([]byte, error) {
		return nil, errors.New("failed")
	})

	assert.Equal(t, []string{"echo:ok", "unknown:unknown_command", "spawn:error"}, obs.seen)
}

func TestMetricsLabelsUnregisteredCommandsUnknown(t *testing.T) {
	obs := &recordingObserver{}
	known := func(command string) bool { return command == "echo" }

	limiter := ratelimiter.PerConnection(0.001, 1)
	invoke := Wrap(echoInvoker, Metrics(obs, known), RateLimit(limiter))
	ctx := context.Background()

	for _, name := range []string{"ECHO", "zz-1", "zz-2", "zz-3"} {
		req := protocol.NewRequest(name, nil)
		req.ConnID = "c1"
		_, _ = invoke(ctx, req)
	}

	assert.Equal(t, []string{"echo:ok", "unknown:error", "unknown:error", "unknown:error"}, obs.seen)
}

func TestRateLimitPerConnection(t *testing.T) {
	limiter := ratelimiter.NewKeyedLimiter(func() ratelimiter.RateLimiter {
		return ratelimiter.NewTokenBucketLimiter(0.001, 1)
	})
	rl := RateLimit(limiter)
	ctx := context.Background()

	req := protocol.NewRequest("echo", nil)
	req.ConnID = "conn-1"

	_, err := rl(ctx, req, echoInvoker)
	require.NoError(t, err)

	_, err = rl(ctx, req, echoInvoker)
	assert.ErrorIs(t, err, ratelimiter.ErrRateLimitExceeded)

	other := protocol.NewRequest("echo", nil)
	other.ConnID = "conn-2"
	_, err = rl(ctx, other, echoInvoker)
	assert.NoError(t, err)
}

func TestTimeoutSetsDeadline(t *testing.T) {
	var hasDeadline bool
	probe := func(ctx context.Context, req *protocol.Request) ([]byte, error) {
		_, hasDeadline = ctx.Deadline()
		return nil, nil
	}

	_, err := Timeout(time.Second)(context.Background(), protocol.NewRequest("x", nil), probe)
	require.NoError(t, err)
	assert.True(t, hasDeadline)

	_, err = Timeout(0)(context.Background(), protocol.NewRequest("x", nil), probe)
	require.NoError(t, err)
	assert.False(t, hasDeadline)
}
