package tcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecstasoy/editorbridge/pkg/transport"
)

func TestClientSend(t *testing.T) {
	s := startServer(t, echoHandler)

	c := NewClient(s.Addr().String(), transport.WithReadTimeout(time.Second))
	_, err := c.Send(context.Background(), []byte("early"))
	assert.ErrorIs(t, err, ErrNotConnected)

	require.NoError(t, c.Dial(context.Background(), ""))
	assert.True(t, c.IsConnected())
	assert.Equal(t, s.Addr().String(), c.RemoteAddr().String())

	reply, err := c.Send(context.Background(), []byte("ECHO hello"))
	require.NoError(t, err)
	assert.Equal(t, "ECHO hello", string(reply))

	assert.Error(t, c.Dial(context.Background(), ""), "second dial")

	require.NoError(t, c.Close())
	assert.False(t, c.IsConnected())
	assert.NoError(t, c.Close())
}

func TestClientSendWithRetryDials(t *testing.T) {
	s := startServer(t, echoHandler)

	c := NewClient(s.Addr().String(), transport.WithRetry(2, 10*time.Millisecond))
	defer c.Close()

	reply, err := c.SendWithRetry(context.Background(), []byte("again"))
	require.NoError(t, err)
	assert.Equal(t, "again", string(reply))
	assert.True(t, c.IsConnected())
}

func TestClientSendWithRetryGivesUp(t *testing.T) {
	s := startServer(t, echoHandler)
	addr := s.Addr().String()
	require.NoError(t, s.Stop())

	c := NewClient(addr,
		transport.WithRetry(1, 5*time.Millisecond),
		transport.WithDialTimeout(200*time.Millisecond),
	)

	_, err := c.SendWithRetry(context.Background(), []byte("nobody home"))
	assert.Error(t, err)
	assert.False(t, c.IsConnected())
}

func TestClientSendCanceledDropsConnection(t *testing.T) {
	slow := func(ctx context.Context, peer transport.Peer, payload []byte) ([]byte, error) {
		select {
		case <-time.After(300 * time.Millisecond):
		case <-ctx.Done():
		}
		return payload, nil
	}
	s := startServer(t, slow)

	c := NewClient(s.Addr().String())
	require.NoError(t, c.Dial(context.Background(), ""))
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Send(ctx, []byte("late"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), err.Error())
	assert.False(t, c.IsConnected(), "a session with a pending reply is not reused")

	_, err = c.Send(context.Background(), []byte("next"))
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestContextErrorAttributesSocketTimeout(t *testing.T) {
	timeout := fmt.Errorf("read frame: %w", os.ErrDeadlineExceeded)

	// the socket deadline can fire just before ctx marks itself done
	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()
	assert.ErrorIs(t, contextError(ctx, timeout), context.DeadlineExceeded)

	// without a ctx deadline the timeout came from the client's own read timeout
	assert.Equal(t, timeout, contextError(context.Background(), timeout))

	canceled, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	assert.ErrorIs(t, contextError(canceled, errors.New("use of closed connection")), context.Canceled)

	plain := errors.New("connection reset")
	assert.Equal(t, plain, contextError(ctx, plain))
}
