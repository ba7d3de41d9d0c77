// Kunhua Huang 2026

package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/ecstasoy/editorbridge/pkg/protocol"
	"github.com/ecstasoy/editorbridge/pkg/transport"
)

var ErrNotConnected = errors.New("not connected, call Dial() first")

// Client sends framed payloads over one connection, one exchange at a time.
type Client struct {
	address   string
	opts      *transport.ClientOptions
	conn      net.Conn
	reader    *protocol.FrameReader
	connected bool
	mu        sync.RWMutex // protects connected, conn and reader
	sendMu    sync.Mutex   // serializes request/response exchanges
}

var _ transport.ClientTransport = (*Client)(nil)

func NewClient(address string, options ...transport.ClientOption) *Client {
	opts := transport.DefaultClientOptions()

	for _, o := range options {
		o(opts)
	}

	return &Client{
		address: address,
		opts:    opts,
	}
}

// Dial connects to address, or to the address given to NewClient when empty.
func (c *Client) Dial(ctx context.Context, address string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return fmt.Errorf("already connected to: %s", c.conn.RemoteAddr().String())
	}

	addr := address
	if addr == "" {
		addr = c.address
	}

	dialer := &net.Dialer{
		Timeout:   c.opts.DialTimeout,
		KeepAlive: c.opts.KeepAlivePeriod,
	}
	if !c.opts.KeepAlive {
		dialer.KeepAlive = -1
	}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial tcp %s failed: %w", addr, err)
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tcpConn.SetNoDelay(true); err != nil {
			_ = conn.Close()
			return fmt.Errorf("set no delay failed: %w", err)
		}
	}

	c.conn = conn
	c.reader = protocol.NewFrameReader(conn, c.opts.MaxMessageSize, c.opts.ReadBufferSize)
	c.connected = true
	c.address = addr

	return nil
}

// Send writes payload as one frame and returns the payload of the reply.
// Canceling ctx interrupts a blocked exchange. Any failure drops the
// connection, since a late reply would otherwise answer the next request.
func (c *Client) Send(ctx context.Context, payload []byte) ([]byte, error) {
	c.mu.RLock()
	if !c.connected || c.conn == nil {
		c.mu.RUnlock()
		return nil, ErrNotConnected
	}
	conn, reader := c.conn, c.reader
	c.mu.RUnlock()

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	reply, err := c.exchange(ctx, conn, reader, payload)
	if err != nil {
		c.drop(conn)
		return nil, contextError(ctx, err)
	}

	return reply, nil
}

// contextError attributes err to ctx when ctx caused it. A socket timeout
// under a ctx deadline counts even if ctx's own timer has not fired yet,
// since the socket deadline was taken from ctx.
func contextError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", ctxErr, err)
	}

	var ne net.Error
	if _, ok := ctx.Deadline(); ok && errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}

	return err
}

func (c *Client) exchange(ctx context.Context, conn net.Conn, reader *protocol.FrameReader, payload []byte) ([]byte, error) {
	if err := conn.SetWriteDeadline(c.deadline(ctx, c.opts.WriteTimeout)); err != nil {
		return nil, fmt.Errorf("set write deadline: %w", err)
	}
	if err := protocol.WriteFrame(conn, payload); err != nil {
		return nil, fmt.Errorf("write frame: %w", err)
	}

	if err := conn.SetReadDeadline(c.deadline(ctx, c.opts.ReadTimeout)); err != nil {
		return nil, fmt.Errorf("set read deadline: %w", err)
	}
	reply, err := reader.Next()
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}

	if err := conn.SetDeadline(time.Time{}); err != nil {
		return nil, fmt.Errorf("clear deadline: %w", err)
	}

	return reply, nil
}

// drop closes conn if it is still the current connection.
func (c *Client) drop(conn net.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != conn {
		return
	}

	_ = conn.Close()
	c.conn = nil
	c.reader = nil
	c.connected = false
}

func (c *Client) deadline(ctx context.Context, fallback time.Duration) time.Time {
	if deadline, ok := ctx.Deadline(); ok {
		return deadline
	}
	if fallback > 0 {
		return time.Now().Add(fallback)
	}
	return time.Time{}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}

	c.connected = false
	c.reader = nil

	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		if err != nil {
			return fmt.Errorf("close connection failed: %w", err)
		}
	}

	return nil
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *Client) LocalAddr() net.Addr {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.conn != nil {
		return c.conn.LocalAddr()
	}

	return nil
}

func (c *Client) RemoteAddr() net.Addr {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.conn != nil {
		return c.conn.RemoteAddr()
	}

	return nil
}

// SendWithRetry retries Send on failure, redialing in between. A payload may
// therefore be delivered more than once.
func (c *Client) SendWithRetry(ctx context.Context, payload []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		var err error
		if !c.IsConnected() {
			err = c.Dial(ctx, "")
		}

		if err == nil {
			var reply []byte
			if reply, err = c.Send(ctx, payload); err == nil {
				return reply, nil
			}
		}

		lastErr = err

		if attempt == c.opts.MaxRetries {
			break
		}

		select {
		case <-time.After(c.opts.RetryInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("send failed after %d retries: %w", c.opts.MaxRetries, lastErr)
}
