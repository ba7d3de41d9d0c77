// Kunhua Huang 2026

package tcp

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ecstasoy/editorbridge/pkg/protocol"
	"github.com/ecstasoy/editorbridge/pkg/transport"
)

type ConnState int32

const (
	ConnReading ConnState = iota
	ConnDispatching
	ConnWriting
	ConnClosing
)

func (s ConnState) String() string {
	switch s {
	case ConnReading:
		return "reading"
	case ConnDispatching:
		return "dispatching"
	case ConnWriting:
		return "writing"
	case ConnClosing:
		return "closing"
	default:
		return fmt.Sprintf("conn_state(%d)", int32(s))
	}
}

// Connection is one accepted control socket. Its serving goroutine owns the
// reader and all writes; the server only interrupts or closes it.
type Connection struct {
	id         string
	remoteAddr string
	conn       net.Conn
	reader     *protocol.FrameReader
	createdAt  time.Time

	state     atomic.Int32
	requests  atomic.Uint64
	closeOnce sync.Once
}

func newConnection(conn net.Conn, maxMessageSize uint32, readBufferSize int) *Connection {
	return &Connection{
		id:         uuid.NewString(),
		remoteAddr: conn.RemoteAddr().String(),
		conn:       conn,
		reader:     protocol.NewFrameReader(conn, maxMessageSize, readBufferSize),
		createdAt:  time.Now(),
	}
}

func (c *Connection) ID() string {
	return c.id
}

func (c *Connection) RemoteAddr() string {
	return c.remoteAddr
}

func (c *Connection) Peer() transport.Peer {
	return transport.Peer{ID: c.id, RemoteAddr: c.remoteAddr}
}

func (c *Connection) State() ConnState {
	return ConnState(c.state.Load())
}

func (c *Connection) Requests() uint64 {
	return c.requests.Load()
}

func (c *Connection) setState(s ConnState) {
	c.state.Store(int32(s))
}

func (c *Connection) tune(keepAlive time.Duration) {
	tcpConn, ok := c.conn.(*net.TCPConn)
	if !ok {
		return
	}

	if keepAlive > 0 {
		_ = tcpConn.SetKeepAlive(true)
		_ = tcpConn.SetKeepAlivePeriod(keepAlive)
	}
	_ = tcpConn.SetNoDelay(true)
}

// armRead sets the idle deadline for the next frame. Zero idle clears it.
func (c *Connection) armRead(idle time.Duration) error {
	var deadline time.Time
	if idle > 0 {
		deadline = time.Now().Add(idle)
	}
	return c.conn.SetReadDeadline(deadline)
}

// interrupt wakes a goroutine blocked in Read without closing the socket.
func (c *Connection) interrupt() {
	_ = c.conn.SetReadDeadline(time.Now())
}

func (c *Connection) writeFrame(payload []byte, timeout time.Duration) error {
	if timeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return fmt.Errorf("set write deadline failed: %w", err)
		}
	}
	return protocol.WriteFrame(c.conn, payload)
}

func (c *Connection) close() {
	c.closeOnce.Do(func() {
		c.setState(ConnClosing)
		_ = c.conn.Close()
	})
}
