// Kunhua Huang 2026

package dispatcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ecstasoy/editorbridge/pkg/interceptor"
	"github.com/ecstasoy/editorbridge/pkg/protocol"
)

// Executor runs a handler somewhere other than the calling goroutine, for
// instance on the host application's main thread.
type Executor interface {
	Execute(ctx context.Context, fn func(ctx context.Context) ([]byte, error)) ([]byte, error)
}

type Dispatcher struct {
	registry     *Registry
	interceptors []interceptor.Interceptor
	invoke       interceptor.Invoker
	executor     Executor
	logger       *slog.Logger
}

type Option func(*Dispatcher)

// WithInterceptors appends interceptors. They run in the order given, inside
// the built-in panic recovery.
func WithInterceptors(interceptors ...interceptor.Interceptor) Option {
	return func(d *Dispatcher) {
		d.interceptors = append(d.interceptors, interceptors...)
	}
}

func WithExecutor(executor Executor) Option {
	return func(d *Dispatcher) {
		d.executor = executor
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func New(registry *Registry, opts ...Option) *Dispatcher {
	if registry == nil {
		registry = NewRegistry()
	}

	d := &Dispatcher{
		registry: registry,
		logger:   slog.Default(),
	}

	for _, o := range opts {
		o(d)
	}

	chain := append([]interceptor.Interceptor{interceptor.Recovery(d.logger)}, d.interceptors...)
	d.invoke = interceptor.Wrap(d.run, chain...)

	return d
}

func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Dispatch resolves and runs the handler for req. It never fails: every
// problem is reported as an error response.
func (d *Dispatcher) Dispatch(ctx context.Context, req *protocol.Request) *protocol.Response {
	data, err := d.invoke(ctx, req)
	if err != nil {
		return protocol.NewErrorResponse(req.ID, mapError(err, req.Command))
	}

	return protocol.NewSuccessResponse(req.ID, data)
}

// run looks up and executes the handler, on the executor when one is set.
func (d *Dispatcher) run(ctx context.Context, req *protocol.Request) ([]byte, error) {
	handler, ok := d.registry.Lookup(req.Command)
	if !ok {
		return nil, fmt.Errorf("%w: %q", protocol.ErrUnknownCommand, req.Command)
	}

	if d.executor == nil {
		return handler.ServeCommand(ctx, req)
	}

	return d.executor.Execute(ctx, func(ctx context.Context) ([]byte, error) {
		return handler.ServeCommand(ctx, req)
	})
}
