package transport

import (
	"log/slog"
	"time"

	"github.com/ecstasoy/editorbridge/pkg/protocol"
)

// ------------------- Client Options -------------------

type ClientOptions struct {
	DialTimeout     time.Duration
	KeepAlive       bool
	KeepAlivePeriod time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	MaxMessageSize  uint32
	ReadBufferSize  int
	MaxRetries      int
	RetryInterval   time.Duration
}

func DefaultClientOptions() *ClientOptions {
	return &ClientOptions{
		DialTimeout:     5 * time.Second,
		KeepAlive:       true,
		KeepAlivePeriod: 30 * time.Second,

		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,

		MaxMessageSize: protocol.DefaultMaxMessageSize,
		ReadBufferSize: 4 * 1024,

		MaxRetries:    0,
		RetryInterval: 100 * time.Millisecond,
	}
}

type ClientOption func(*ClientOptions)

func WithDialTimeout(timeout time.Duration) ClientOption {
	return func(opts *ClientOptions) {
		opts.DialTimeout = timeout
	}
}

func WithReadTimeout(timeout time.Duration) ClientOption {
	return func(opts *ClientOptions) {
		opts.ReadTimeout = timeout
	}
}

func WithWriteTimeout(timeout time.Duration) ClientOption {
	return func(opts *ClientOptions) {
		opts.WriteTimeout = timeout
	}
}

func WithKeepAlive(keepAlive bool, period time.Duration) ClientOption {
	return func(opts *ClientOptions) {
		opts.KeepAlive = keepAlive
		opts.KeepAlivePeriod = period
	}
}

func WithRetry(maxRetries int, interval time.Duration) ClientOption {
	return func(opts *ClientOptions) {
		opts.MaxRetries = maxRetries
		opts.RetryInterval = interval
	}
}

func WithClientMaxMessageSize(size uint32) ClientOption {
	return func(opts *ClientOptions) {
		opts.MaxMessageSize = size
	}
}

// ------------------- Server Options -------------------

type ServerOptions struct {
	// MaxConnections bounds concurrently served connections and is also the
	// listen backlog. Extra peers are accepted and closed at once.
	MaxConnections int
	MaxMessageSize uint32

	// IdleTimeout closes a connection that sends nothing for this long.
	// Zero disables it.
	IdleTimeout  time.Duration
	WriteTimeout time.Duration

	// ShutdownGracePeriod is how long Stop waits for connections to finish
	// before closing their sockets.
	ShutdownGracePeriod time.Duration

	ReadBufferSize int
	KeepAlive      time.Duration

	// ErrorReply builds the payload sent before a connection is dropped for
	// an oversized frame. Nil sends nothing.
	ErrorReply func(err error) []byte

	Logger   *slog.Logger
	Observer Observer
}

func DefaultServerOptions() *ServerOptions {
	return &ServerOptions{
		MaxConnections:      10,
		MaxMessageSize:      protocol.DefaultMaxMessageSize,
		IdleTimeout:         0,
		WriteTimeout:        10 * time.Second,
		ShutdownGracePeriod: 5 * time.Second,
		ReadBufferSize:      4 * 1024,
		KeepAlive:           30 * time.Second,
		Logger:              slog.Default(),
		Observer:            NopObserver{},
	}
}

type ServerOption func(*ServerOptions)

func WithMaxConnections(n int) ServerOption {
	return func(opts *ServerOptions) {
		opts.MaxConnections = n
	}
}

func WithMaxMessageSize(size uint32) ServerOption {
	return func(opts *ServerOptions) {
		opts.MaxMessageSize = size
	}
}

func WithServerTimeout(idle, write time.Duration) ServerOption {
	return func(opts *ServerOptions) {
		opts.IdleTimeout = idle
		opts.WriteTimeout = write
	}
}

func WithShutdownGracePeriod(d time.Duration) ServerOption {
	return func(opts *ServerOptions) {
		opts.ShutdownGracePeriod = d
	}
}

func WithServerBufferSize(readSize int) ServerOption {
	return func(opts *ServerOptions) {
		opts.ReadBufferSize = readSize
	}
}

func WithErrorReply(fn func(err error) []byte) ServerOption {
	return func(opts *ServerOptions) {
		opts.ErrorReply = fn
	}
}

func WithLogger(logger *slog.Logger) ServerOption {
	return func(opts *ServerOptions) {
		if logger != nil {
			opts.Logger = logger
		}
	}
}

func WithObserver(observer Observer) ServerOption {
	return func(opts *ServerOptions) {
		if observer != nil {
			opts.Observer = observer
		}
	}
}
