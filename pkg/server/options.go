// Kunhua Huang 2026

package server

import (
	"log/slog"
	"time"

	"github.com/ecstasoy/editorbridge/pkg/hostqueue"
	"github.com/ecstasoy/editorbridge/pkg/interceptor"
	"github.com/ecstasoy/editorbridge/pkg/metrics"
	"github.com/ecstasoy/editorbridge/pkg/registry"
)

type serverOptions struct {
	logger       *slog.Logger
	metrics      *metrics.Collector
	hostQueue    *hostqueue.Queue
	interceptors []interceptor.Interceptor
	builtins     bool

	registry         registry.Registry
	announceInterval time.Duration
}

func defaultServerOptions() *serverOptions {
	return &serverOptions{
		logger:           slog.Default(),
		builtins:         true,
		announceInterval: 3 * time.Second,
	}
}

type Option func(*serverOptions)

func WithLogger(logger *slog.Logger) Option {
	return func(o *serverOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics records connection and command series on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(o *serverOptions) {
		o.metrics = c
	}
}

// WithHostQueue runs every handler through q. The host must pump q.
func WithHostQueue(q *hostqueue.Queue) Option {
	return func(o *serverOptions) {
		o.hostQueue = q
	}
}

// WithInterceptors appends interceptors after the built-in ones.
func WithInterceptors(interceptors ...interceptor.Interceptor) Option {
	return func(o *serverOptions) {
		o.interceptors = append(o.interceptors, interceptors...)
	}
}

// WithoutBuiltins skips registering ping, echo and help.
func WithoutBuiltins() Option {
	return func(o *serverOptions) {
		o.builtins = false
	}
}

// WithRegistry announces the bound endpoint on reg while the server runs,
// heartbeating every interval.
func WithRegistry(reg registry.Registry, interval time.Duration) Option {
	return func(o *serverOptions) {
		o.registry = reg
		o.announceInterval = interval
	}
}
