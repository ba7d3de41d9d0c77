package dispatcher

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

	"github.com/ecstasoy/editorbridge/pkg/interceptor"
	"github.com/ecstasoy/editorbridge/pkg/protocol"
	"github.com/ecstasoy/editorbridge/pkg/ratelimiter"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func echo(ctx context.Context, req *protocol.Request) ([]byte, error) {
	return req.Args, nil
}

func TestRegistryRejectsEmptyAndNil(t *testing.T) {
	r := NewRegistry()

	assert.ErrorIs(t, r.RegisterFunc("", echo), ErrEmptyCommandName)
	assert.ErrorIs(t, r.RegisterFunc("   ", echo), ErrEmptyCommandName)
	assert.ErrorIs(t, r.Register("echo", nil), ErrNilHandler)
	assert.ErrorIs(t, r.RegisterFunc("echo", nil), ErrNilHandler)
	assert.Zero(t, r.Len())
}

func TestRegistryOverwriteAndCase(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterFunc("ECHO", echo))
	require.NoError(t, r.RegisterFunc("echo", func(ctx context.Context, req *protocol.Request) ([]byte, error) {
		return []byte("second"), nil
	}))

	assert.Equal(t, 1, r.Len())

	h, ok := r.Lookup("Echo")
	require.True(t, ok)
	out, err := h.ServeCommand(context.Background(), protocol.NewRequest("echo", nil))
	require.NoError(t, err)
	assert.Equal(t, "second", string(out))

	require.NoError(t, r.RegisterFunc("ping", echo))
	assert.Equal(t, []string{"echo", "ping"}, r.Commands())

	assert.True(t, r.Unregister("PING"))
	assert.False(t, r.Unregister("ping"))
}

func TestDispatchSuccess(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterFunc("ECHO", echo))

	req := protocol.NewRequest("ECHO", []byte("hello"))
	req.ID = 7

	resp := New(r, WithLogger(quietLogger())).Dispatch(context.Background(), req)

	require.True(t, resp.IsSuccess())
	assert.Equal(t, uint64(7), resp.ID)
	assert.Equal(t, []byte("hello"), resp.Data)
}

func TestDispatchUnknownCommand(t *testing.T) {
	resp := New(NewRegistry(), WithLogger(quietLogger())).
		Dispatch(context.Background(), protocol.NewRequest("PING", nil))

	require.True(t, resp.IsError())
	assert.Equal(t, int32(protocol.ErrorCodeUnknownCommand), resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "PING")
}

func TestDispatchHandlerErrors(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterFunc("fail", func(ctx context.Context, req *protocol.Request) ([]byte, error) {
		return nil, errors.New("disk on fire")
	}))
	require.NoError(t, r.RegisterFunc("domain", func(ctx context.Context, req *protocol.Request) ([]byte, error) {
		return nil, protocol.NewError(protocol.ErrorCodeInvalidArgument, "actor_class missing")
	}))
	require.NoError(t, r.RegisterFunc("panic", func(ctx context.Context, req *protocol.Request) ([]byte, error) {
		panic("nil map")
	}))
	require.NoError(t, r.RegisterFunc("slow", func(ctx context.Context, req *protocol.Request) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}))

	d := New(r, WithLogger(quietLogger()), WithInterceptors(interceptor.Timeout(20*time.Millisecond)))
	ctx := context.Background()

	tests := []struct {
		command string
		code    int32
	}{
		{"fail", protocol.ErrorCodeHandlerFailure},
		{"domain", protocol.ErrorCodeInvalidArgument},
		{"panic", protocol.ErrorCodeHandlerFailure},
		{"slow", protocol.ErrorCodeDeadlineExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			resp := d.Dispatch(ctx, protocol.NewRequest(tt.command, nil))
			require.True(t, resp.IsError())
			assert.Equal(t, tt.code, resp.Error.Code, resp.Error.Error())
		})
	}

	// the dispatcher keeps working after failures
	require.NoError(t, r.RegisterFunc("echo", echo))
	resp := d.Dispatch(ctx, protocol.NewRequest("echo", []byte("still alive")))
	assert.Equal(t, []byte("still alive"), resp.Data)
}

func TestDispatchRateLimited(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterFunc("echo", echo))

	limiter := ratelimiter.NewKeyedLimiter(func() ratelimiter.RateLimiter {
		return ratelimiter.NewTokenBucketLimiter(0.001, 1)
	})
	d := New(r, WithLogger(quietLogger()), WithInterceptors(interceptor.RateLimit(limiter)))

	req := protocol.NewRequest("echo", nil)
	req.ConnID = "c1"

	assert.True(t, d.Dispatch(context.Background(), req).IsSuccess())

	resp := d.Dispatch(context.Background(), req)
	require.True(t, resp.IsError())
	assert.Equal(t, int32(protocol.ErrorCodeResourceExhausted), resp.Error.Code)
}

type recordingExecutor struct {
	mu    sync.Mutex
	calls int
}

func (e *recordingExecutor) Execute(ctx context.Context, fn func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	return fn(ctx)
}

func TestDispatchUsesExecutor(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterFunc("echo", echo))

	exec := &recordingExecutor{}
	d := New(r, WithLogger(quietLogger()), WithExecutor(exec))

	resp := d.Dispatch(context.Background(), protocol.NewRequest("echo", []byte("x")))
	require.True(t, resp.IsSuccess())
	assert.Equal(t, 1, exec.calls)

	// unknown commands never reach the executor
	d.Dispatch(context.Background(), protocol.NewRequest("nope", nil))
	assert.Equal(t, 1, exec.calls)
}

func TestMapErrorUnavailable(t *testing.T) {
	perr := mapError(errors.Join(protocol.ErrUnavailable, errors.New("queue closed")), "spawn")
	assert.Equal(t, int32(protocol.ErrorCodeUnavailable), perr.Code)

	perr = mapError(context.Canceled, "spawn")
	assert.Equal(t, int32(protocol.ErrorCodeCanceled), perr.Code)
}
