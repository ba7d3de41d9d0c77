// Kunhua Huang 2026

package tcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ecstasoy/editorbridge/pkg/protocol"
	"github.com/ecstasoy/editorbridge/pkg/transport"
)

var (
	ErrAlreadyRunning  = errors.New("server already running")
	ErrShutdownTimeout = errors.New("shutdown grace period expired, connections force-closed")
)

const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second

	// forceCloseWait bounds how long Stop waits after closing sockets for
	// goroutines stuck in handlers.
	forceCloseWait = time.Second
)

// BindError reports that the listening address could not be bound.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type Server struct {
	address string
	opts    *transport.ServerOptions
	handler transport.Handler
	logger  *slog.Logger

	state atomic.Int32

	// lifecycleMu serializes Start and Stop.
	lifecycleMu sync.Mutex

	// mu guards run and run.conns. Never held across socket I/O.
	mu  sync.Mutex
	run *serverRun

	activeConnections   atomic.Int64
	totalConnections    atomic.Int64
	rejectedConnections atomic.Int64
}

// serverRun is everything that lives between one Start and the matching Stop.
type serverRun struct {
	listener   net.Listener
	ctx        context.Context
	cancel     context.CancelFunc
	acceptDone chan struct{}
	conns      map[string]*Connection
	wg         sync.WaitGroup
}

func NewServer(address string, handler transport.Handler, options ...transport.ServerOption) *Server {
	opts := transport.DefaultServerOptions()

	for _, o := range options {
		o(opts)
	}

	if opts.MaxConnections < 1 {
		opts.MaxConnections = 1
	}

	return &Server{
		address: address,
		opts:    opts,
		handler: handler,
		logger:  opts.Logger.With("component", "tcp-server"),
	}
}

// Start binds the listening socket and launches the accept loop. ctx only
// bounds the bind; the server then runs until Stop.
func (s *Server) Start(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if !s.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return ErrAlreadyRunning
	}

	listener, err := listen(ctx, s.address, s.opts.MaxConnections)
	if err != nil {
		s.state.Store(int32(StateStopped))
		return &BindError{Addr: s.address, Err: err}
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	run := &serverRun{
		listener:   listener,
		ctx:        runCtx,
		cancel:     cancel,
		acceptDone: make(chan struct{}),
		conns:      make(map[string]*Connection),
	}

	s.mu.Lock()
	s.run = run
	s.mu.Unlock()

	s.state.Store(int32(StateRunning))
	go s.acceptLoop(run)

	s.logger.Info("server listening",
		"addr", listener.Addr().String(),
		"max_connections", s.opts.MaxConnections,
	)

	return nil
}

// Stop closes the listener and every connection. It is a no-op unless the
// server is running. Connections get ShutdownGracePeriod to finish; after
// that their sockets are closed and ErrShutdownTimeout is returned. The
// server is stopped either way.
func (s *Server) Stop() error {
	return s.stop(nil)
}

// stop tears down expected, or whatever run is active when expected is nil.
func (s *Server) stop(expected *serverRun) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	s.mu.Lock()
	run := s.run
	s.mu.Unlock()

	if run == nil || (expected != nil && run != expected) {
		return nil
	}

	if !s.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return nil
	}

	s.logger.Info("server stopping", "addr", run.listener.Addr().String())

	run.cancel()
	if err := run.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.logger.Warn("close listener failed", "error", err)
	}
	<-run.acceptDone

	s.mu.Lock()
	for _, c := range run.conns {
		c.interrupt()
	}
	s.mu.Unlock()

	err := s.drain(run)

	s.mu.Lock()
	s.run = nil
	s.mu.Unlock()

	s.state.Store(int32(StateStopped))
	s.logger.Info("server stopped")

	return err
}

func (s *Server) drain(run *serverRun) error {
	done := make(chan struct{})
	go func() {
		run.wg.Wait()
		close(done)
	}()

	grace := time.NewTimer(s.opts.ShutdownGracePeriod)
	defer grace.Stop()

	select {
	case <-done:
		return nil
	case <-grace.C:
	}

	s.mu.Lock()
	remaining := len(run.conns)
	for _, c := range run.conns {
		c.close()
	}
	s.mu.Unlock()

	s.logger.Warn("shutdown grace period expired, closing connections",
		"grace", s.opts.ShutdownGracePeriod,
		"connections", remaining,
	)

	select {
	case <-done:
	case <-time.After(forceCloseWait):
		s.logger.Error("connections still busy after force close, abandoning them")
	}

	return ErrShutdownTimeout
}

func (s *Server) IsRunning() bool {
	return s.State() == StateRunning
}

func (s *Server) State() State {
	return State(s.state.Load())
}

// Addr returns the bound address, or nil when not running.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run != nil {
		return s.run.listener.Addr()
	}
	return nil
}

func (s *Server) acceptLoop(run *serverRun) {
	defer close(run.acceptDone)

	var backoff time.Duration
	for {
		conn, err := run.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || run.ctx.Err() != nil {
				return
			}

			s.opts.Observer.AcceptError(err)

			var ne net.Error
			if errors.As(err, &ne) && ne.Temporary() {
				backoff = nextBackoff(backoff)

				s.logger.Warn("accept failed, retrying", "error", err, "backoff", backoff)

				select {
				case <-time.After(backoff):
				case <-run.ctx.Done():
					return
				}
				continue
			}

			s.logger.Error("accept failed, stopping server", "error", err)
			go s.stop(run)
			return
		}

		backoff = 0
		s.admit(run, conn)
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return minAcceptBackoff
	}
	if d *= 2; d > maxAcceptBackoff {
		return maxAcceptBackoff
	}
	return d
}

// admit registers conn and starts serving it, or closes it right away when
// the server is at capacity.
func (s *Server) admit(run *serverRun, conn net.Conn) {
	remote := conn.RemoteAddr().String()

	s.mu.Lock()
	if len(run.conns) >= s.opts.MaxConnections {
		s.mu.Unlock()

		_ = conn.Close()
		s.rejectedConnections.Add(1)
		s.opts.Observer.ConnectionRejected(remote)
		s.logger.Warn("connection rejected, server at capacity",
			"remote", remote,
			"max_connections", s.opts.MaxConnections,
		)
		return
	}

	c := newConnection(conn, s.opts.MaxMessageSize, s.opts.ReadBufferSize)
	run.conns[c.ID()] = c
	run.wg.Add(1)
	s.mu.Unlock()

	s.activeConnections.Add(1)
	s.totalConnections.Add(1)
	s.opts.Observer.ConnectionOpened(c.ID(), remote)

	go s.serveConnection(run, c)
}

func (s *Server) serveConnection(run *serverRun, c *Connection) {
	logger := s.logger.With("conn_id", c.ID(), "remote", c.RemoteAddr())

	defer func() {
		c.close()

		s.mu.Lock()
		delete(run.conns, c.ID())
		s.mu.Unlock()

		s.activeConnections.Add(-1)
		s.opts.Observer.ConnectionClosed(c.ID())
		logger.Debug("connection closed", "requests", c.Requests())

		run.wg.Done()
	}()

	logger.Debug("connection opened")
	c.tune(s.opts.KeepAlive)

	for {
		if err := c.armRead(s.opts.IdleTimeout); err != nil {
			logger.Debug("set read deadline failed", "error", err)
			return
		}

		// checked after arming the deadline so an interrupt from Stop
		// cannot be overwritten
		if run.ctx.Err() != nil {
			return
		}

		c.setState(ConnReading)
		payload, err := c.reader.Next()
		if err != nil {
			s.handleReadError(run, c, logger, err)
			return
		}
		c.requests.Add(1)

		c.setState(ConnDispatching)
		reply, err := s.handler(run.ctx, c.Peer(), payload)
		if err != nil {
			logger.Warn("handler failed, closing connection", "error", err)
			return
		}

		c.setState(ConnWriting)
		if err := c.writeFrame(reply, s.opts.WriteTimeout); err != nil {
			logger.Debug("write failed", "error", err)
			return
		}
	}
}

func (s *Server) handleReadError(run *serverRun, c *Connection, logger *slog.Logger, err error) {
	var ne net.Error

	switch {
	case errors.Is(err, io.EOF):
		logger.Debug("peer closed connection")

	case run.ctx.Err() != nil:
		logger.Debug("connection closed by shutdown")

	case errors.Is(err, protocol.ErrMessageTooLarge):
		s.opts.Observer.FrameError("too_large")
		logger.Warn("frame exceeds size limit, closing connection", "error", err)

		if s.opts.ErrorReply != nil {
			if reply := s.opts.ErrorReply(err); reply != nil {
				_ = c.writeFrame(reply, s.opts.WriteTimeout)
			}
		}

	case errors.Is(err, protocol.ErrFraming):
		s.opts.Observer.FrameError("truncated")
		logger.Warn("malformed frame, closing connection", "error", err)

	case errors.As(err, &ne) && ne.Timeout():
		logger.Info("idle timeout, closing connection", "idle", s.opts.IdleTimeout)

	default:
		logger.Debug("read failed", "error", err)
	}
}

func (s *Server) Stats() ServerStats {
	stats := ServerStats{
		ActiveConnections:   s.activeConnections.Load(),
		TotalConnections:    s.totalConnections.Load(),
		RejectedConnections: s.rejectedConnections.Load(),
		State:               s.State(),
	}

	if addr := s.Addr(); addr != nil {
		stats.Address = addr.String()
	}

	return stats
}

type ServerStats struct {
	ActiveConnections   int64
	TotalConnections    int64
	RejectedConnections int64
	Address             string
	State               State
}
