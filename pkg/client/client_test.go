package client

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecstasoy/editorbridge/pkg/config"
	"github.com/ecstasoy/editorbridge/pkg/protocol"
	"github.com/ecstasoy/editorbridge/pkg/ratelimiter"
	"github.com/ecstasoy/editorbridge/pkg/registry/memory"
	"github.com/ecstasoy/editorbridge/pkg/server"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func startBridge(t *testing.T, mutate func(*config.Config), opts ...server.Option) *server.Server {
	t.Helper()

	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.ShutdownGracePeriod = config.Duration{Duration: time.Second}
	if mutate != nil {
		mutate(cfg)
	}

	s, err := server.New(cfg, append([]server.Option{server.WithLogger(quietLogger())}, opts...)...)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop() })

	return s
}

func dialBridge(t *testing.T, s *server.Server, opts ...Option) *Client {
	t.Helper()

	c, err := Dial(context.Background(), s.Addr().String(), append([]Option{WithTimeout(2 * time.Second)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return c
}

func TestCallEcho(t *testing.T) {
	s := startBridge(t, nil)
	c := dialBridge(t, s)

	out, err := c.Call(context.Background(), "ECHO", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))

	require.NoError(t, c.Ping(context.Background()))
	assert.Equal(t, s.Addr().String(), c.Endpoint())
	assert.Nil(t, c.Instance())
}

func TestCallEchoOfErrorLikeText(t *testing.T) {
	s := startBridge(t, nil)
	c := dialBridge(t, s)

	out, err := c.Call(context.Background(), "echo", []byte("ERR is the first word of this log line"))
	require.NoError(t, err)
	assert.Equal(t, "ERR is the first word of this log line", string(out))
}

func TestCallUnknownCommand(t *testing.T) {
	s := startBridge(t, nil)
	c := dialBridge(t, s)

	_, err := c.Call(context.Background(), "spawn", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, protocol.ErrUnknownCommand)

	var perr *protocol.Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, int32(protocol.ErrorCodeUnknownCommand), perr.Code)

	// the session survives an error response
	out, err := c.Call(context.Background(), "echo", []byte("again"))
	require.NoError(t, err)
	assert.Equal(t, "again", string(out))
}

func TestCallReconnectsAfterTimeout(t *testing.T) {
	s := startBridge(t, nil)
	require.NoError(t, s.RegisterHandlerFunc("slow", func(ctx context.Context, req *protocol.Request) ([]byte, error) {
		select {
		case <-time.After(300 * time.Millisecond):
		case <-ctx.Done():
		}
		return []byte("done"), nil
	}))
	c := dialBridge(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Call(ctx, "slow", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	out, err := c.Call(context.Background(), "echo", []byte("fresh"))
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(out), "the stale reply is not mistaken for this one")
}

func TestCallReplyTooLarge(t *testing.T) {
	s := startBridge(t, nil)
	c := dialBridge(t, s, WithMaxMessageSize(8), WithKeepAlive(0))

	_, err := c.Call(context.Background(), "echo", []byte("a reply longer than eight bytes"))
	assert.ErrorIs(t, err, protocol.ErrMessageTooLarge)
}

func TestCallJSONCodec(t *testing.T) {
	s := startBridge(t, func(cfg *config.Config) { cfg.Server.Codec = "json" })
	require.NoError(t, s.RegisterHandlerFunc("spawn", func(ctx context.Context, req *protocol.Request) ([]byte, error) {
		return []byte(`{"spawned":true}`), nil
	}))

	c := dialBridge(t, s, WithCodec(protocol.CodecTypeJSON, protocol.CompressTypeNone))

	var reply struct {
		Spawned bool `json:"spawned"`
	}
	require.NoError(t, c.CallJSON(context.Background(), "spawn", map[string]string{"actor_class": "Cube"}, &reply))
	assert.True(t, reply.Spawned)

	require.NoError(t, c.Ping(context.Background()))
}

func TestCallRateLimited(t *testing.T) {
	s := startBridge(t, func(cfg *config.Config) {
		cfg.RateLimit.Enabled = true
		cfg.RateLimit.PerSecond = 0.001
		cfg.RateLimit.Burst = 1
	})
	c := dialBridge(t, s)

	_, err := c.Call(context.Background(), "echo", []byte("a"))
	require.NoError(t, err)

	_, err = c.Call(context.Background(), "echo", []byte("b"))
	assert.ErrorIs(t, err, ratelimiter.ErrRateLimitExceeded)
}

func TestDialServiceUsesDiscovery(t *testing.T) {
	reg := memory.NewRegistry()
	s := startBridge(t, func(cfg *config.Config) {
		cfg.Server.Codec = "json"
		cfg.Registry.Type = "memory"
	}, server.WithRegistry(reg, 0))

	c, err := DialService(context.Background(), "editorbridge", WithDiscovery(reg), WithTimeout(2*time.Second))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	require.NotNil(t, c.Instance())
	assert.Equal(t, s.Addr().String(), c.Instance().Endpoint())

	// the codec advertised by the instance is picked up
	out, err := c.Call(context.Background(), "echo", []byte(`"hi"`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"command":"echo","args":"hi"}`, string(out))
}

func TestDialServiceErrors(t *testing.T) {
	_, err := DialService(context.Background(), "editorbridge")
	assert.ErrorIs(t, err, ErrDiscoveryRequired)

	_, err = DialService(context.Background(), "editorbridge", WithDiscovery(memory.NewRegistry()))
	assert.Error(t, err)
}

func TestUnmapError(t *testing.T) {
	tests := []struct {
		code int32
		want error
	}{
		{protocol.ErrorCodeUnavailable, protocol.ErrUnavailable},
		{protocol.ErrorCodeDeadlineExceeded, context.DeadlineExceeded},
		{protocol.ErrorCodeCanceled, context.Canceled},
		{protocol.ErrorCodeMessageTooLarge, protocol.ErrMessageTooLarge},
	}

	for _, tt := range tests {
		t.Run(protocol.CodeName(tt.code), func(t *testing.T) {
			err := unmapError(protocol.NewErrorResponse(1, protocol.NewError(tt.code, "x")))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	err := unmapError(protocol.NewErrorResponse(1, protocol.NewError(protocol.ErrorCodeHandlerFailure, "boom")))
	var perr *protocol.Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "boom", perr.Message)

	assert.NoError(t, unmapError(protocol.NewSuccessResponse(1, nil)))
}
