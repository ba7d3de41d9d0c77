// Kunhua Huang 2026

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/ecstasoy/editorbridge/pkg/codec"
	"github.com/ecstasoy/editorbridge/pkg/config"
	"github.com/ecstasoy/editorbridge/pkg/dispatcher"
	"github.com/ecstasoy/editorbridge/pkg/handlers"
	"github.com/ecstasoy/editorbridge/pkg/hostqueue"
	"github.com/ecstasoy/editorbridge/pkg/interceptor"
	"github.com/ecstasoy/editorbridge/pkg/protocol"
	"github.com/ecstasoy/editorbridge/pkg/ratelimiter"
	"github.com/ecstasoy/editorbridge/pkg/registry"
	"github.com/ecstasoy/editorbridge/pkg/transport"
	"github.com/ecstasoy/editorbridge/pkg/transport/tcp"
)

const withdrawTimeout = 2 * time.Second

// Server is the bridge a host embeds: a TCP listener whose frames are decoded
// with the configured codec and dispatched to registered command handlers.
type Server struct {
	cfg    config.Config
	opts   *serverOptions
	logger *slog.Logger

	codec      codec.Codec
	dispatcher *dispatcher.Dispatcher
	transport  *tcp.Server
	limiter    *ratelimiter.KeyedLimiter
	hostQueue  *hostqueue.Queue
	sessions   *sessions

	announceMu sync.Mutex
	announcer  *registry.Announcer
}

func New(cfg *config.Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := defaultServerOptions()
	for _, o := range opts {
		o(options)
	}

	s := &Server{
		cfg:      cloneConfig(cfg),
		opts:     options,
		logger:   options.logger.With("component", "bridge"),
		sessions: newSessions(),
	}

	codecType, _ := protocol.ParseCodecType(s.cfg.Server.Codec)
	compressType, _ := protocol.ParseCompressType(s.cfg.Server.Compress)

	c, err := codec.New(codecType, compressType)
	if err != nil {
		return nil, fmt.Errorf("codec: %w", err)
	}
	s.codec = c

	s.hostQueue = options.hostQueue
	if s.hostQueue == nil && s.cfg.HostQueue.Enabled {
		s.hostQueue = hostqueue.New(options.logger.With("component", "host-queue"))
	}

	commands := dispatcher.NewRegistry()
	s.dispatcher = dispatcher.New(commands, s.dispatcherOptions(commands)...)

	if options.builtins {
		if err := handlers.RegisterBuiltins(s.dispatcher.Registry()); err != nil {
			return nil, fmt.Errorf("register builtins: %w", err)
		}
	}

	observers := transport.Observers{s.sessions}
	if options.metrics != nil {
		observers = append(observers, options.metrics)
	}

	s.transport = tcp.NewServer(
		s.cfg.Server.Address(),
		s.handle,
		transport.WithMaxConnections(int(s.cfg.Server.MaxConnections)),
		transport.WithMaxMessageSize(s.cfg.Server.MaxMessageSize),
		transport.WithServerTimeout(s.cfg.Server.IdleTimeout.Duration, s.cfg.Server.WriteTimeout.Duration),
		transport.WithShutdownGracePeriod(s.cfg.Server.ShutdownGracePeriod.Duration),
		transport.WithServerBufferSize(s.cfg.Server.ReadBufferSize),
		transport.WithLogger(options.logger),
		transport.WithObserver(observers),
		transport.WithErrorReply(s.errorReply),
	)

	return s, nil
}

func (s *Server) dispatcherOptions(commands *dispatcher.Registry) []dispatcher.Option {
	chain := []interceptor.Interceptor{interceptor.Logging(s.logger)}

	if s.opts.metrics != nil {
		chain = append(chain, interceptor.Metrics(s.opts.metrics, func(command string) bool {
			_, ok := commands.Lookup(command)
			return ok
		}))
	}

	if rl := s.cfg.RateLimit; rl.Enabled {
		s.limiter = ratelimiter.PerConnection(rl.PerSecond, rl.Burst)
		s.sessions.limiter = s.limiter
		chain = append(chain, interceptor.RateLimit(s.limiter))
	}

	if d := s.cfg.Server.HandlerTimeout.Duration; d > 0 {
		chain = append(chain, interceptor.Timeout(d))
	}

	chain = append(chain, s.opts.interceptors...)

	dopts := []dispatcher.Option{
		dispatcher.WithLogger(s.logger),
		dispatcher.WithInterceptors(chain...),
	}
	if s.hostQueue != nil {
		dopts = append(dopts, dispatcher.WithExecutor(s.hostQueue))
	}

	return dopts
}

// Start binds the configured address and begins accepting connections.
func (s *Server) Start(ctx context.Context) error {
	if err := s.transport.Start(ctx); err != nil {
		return err
	}

	if s.opts.registry != nil {
		s.announce(ctx)
	}

	return nil
}

// Stop withdraws the announcement and shuts the listener down. It returns
// tcp.ErrShutdownTimeout when connections had to be force-closed.
func (s *Server) Stop() error {
	s.withdraw()
	return s.transport.Stop()
}

func (s *Server) IsRunning() bool {
	return s.transport.IsRunning()
}

func (s *Server) State() tcp.State {
	return s.transport.State()
}

// GetConfig returns a copy of the configuration the server was built with.
func (s *Server) GetConfig() config.Config {
	return cloneConfig(&s.cfg)
}

func (s *Server) Addr() net.Addr {
	return s.transport.Addr()
}

func (s *Server) Stats() tcp.ServerStats {
	return s.transport.Stats()
}

// HostQueue returns the queue handlers run on, or nil when they run on
// connection goroutines.
func (s *Server) HostQueue() *hostqueue.Queue {
	return s.hostQueue
}

// RegisterHandler adds or replaces the handler for a command. It is safe to
// call while the server is running.
func (s *Server) RegisterHandler(name string, h dispatcher.Handler) error {
	return s.dispatcher.Registry().Register(name, h)
}

func (s *Server) RegisterHandlerFunc(name string, fn func(ctx context.Context, req *protocol.Request) ([]byte, error)) error {
	return s.dispatcher.Registry().RegisterFunc(name, fn)
}

func (s *Server) UnregisterHandler(name string) bool {
	return s.dispatcher.Registry().Unregister(name)
}

func (s *Server) Commands() []string {
	return s.dispatcher.Registry().Commands()
}

// handle serves one frame payload. Anything wrong with the request itself is
// answered with an error response; only an unencodable response is fatal.
func (s *Server) handle(ctx context.Context, peer transport.Peer, payload []byte) ([]byte, error) {
	req, err := s.codec.DecodeRequest(payload)
	if err != nil {
		s.logger.Debug("undecodable request", "conn_id", peer.ID, "error", err)
		return s.encodeError(0, protocol.NewError(protocol.ErrorCodeInvalidArgument, err.Error()))
	}

	req.ID = s.sessions.next(peer.ID)
	req.ConnID = peer.ID
	req.RemoteAddr = peer.RemoteAddr
	req.ReceivedAt = time.Now()

	resp := s.dispatcher.Dispatch(ctx, req)

	out, err := s.codec.EncodeResponse(resp)
	if err != nil {
		s.logger.Error("encode response failed", "command", req.Command, "error", err)
		return s.encodeError(req.ID, protocol.Errorf(protocol.ErrorCodeHandlerFailure, "encode response for %q: %v", req.Command, err))
	}

	if limit := s.cfg.Server.MaxMessageSize; limit > 0 && uint64(len(out)) > uint64(limit) {
		return s.encodeError(req.ID, protocol.Errorf(protocol.ErrorCodeMessageTooLarge,
			"response of %d bytes exceeds limit %d", len(out), limit))
	}

	return out, nil
}

func (s *Server) encodeError(id uint64, perr *protocol.Error) ([]byte, error) {
	return s.codec.EncodeResponse(protocol.NewErrorResponse(id, perr))
}

func (s *Server) errorReply(err error) []byte {
	out, encErr := s.encodeError(0, protocol.NewError(protocol.ErrorCodeMessageTooLarge, err.Error()))
	if encErr != nil {
		return nil
	}
	return out
}

func (s *Server) announce(ctx context.Context) {
	addr, ok := s.transport.Addr().(*net.TCPAddr)
	if !ok {
		return
	}

	instance := registry.NewServiceInstance(s.cfg.Registry.Service, s.advertiseHost(), addr.Port)
	instance.Codec = s.cfg.Server.Codec
	instance.Metadata["compress"] = s.cfg.Server.Compress
	instance.Metadata["max_connections"] = fmt.Sprint(s.cfg.Server.MaxConnections)

	a, err := registry.Announce(ctx, s.opts.registry, instance, s.opts.announceInterval, s.opts.logger)
	if err != nil {
		// the bridge stays usable by address
		s.logger.Warn("announce endpoint failed", "error", err)
		return
	}

	s.announceMu.Lock()
	s.announcer = a
	s.announceMu.Unlock()
}

func (s *Server) withdraw() {
	s.announceMu.Lock()
	a := s.announcer
	s.announcer = nil
	s.announceMu.Unlock()

	if a == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), withdrawTimeout)
	defer cancel()

	if err := a.Withdraw(ctx); err != nil {
		s.logger.Warn("withdraw endpoint failed", "error", err)
	}
}

func (s *Server) advertiseHost() string {
	if h := s.cfg.Registry.AdvertiseHost; h != "" {
		return h
	}

	switch s.cfg.Server.Host {
	case "", "0.0.0.0", "::":
		return "127.0.0.1"
	default:
		return s.cfg.Server.Host
	}
}

func cloneConfig(cfg *config.Config) config.Config {
	c := *cfg
	c.Registry.Etcd.Endpoints = append([]string(nil), cfg.Registry.Etcd.Endpoints...)
	return c
}
