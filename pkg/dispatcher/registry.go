// Kunhua Huang 2026

package dispatcher

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/ecstasoy/editorbridge/pkg/protocol"
)

var (
	ErrEmptyCommandName = errors.New("command name must not be empty")
	ErrNilHandler       = errors.New("handler must not be nil")
)

// Handler serves one command. The returned bytes are the success payload;
// returning a *protocol.Error picks the error code reported to the peer.
type Handler interface {
	ServeCommand(ctx context.Context, req *protocol.Request) ([]byte, error)
}

type HandlerFunc func(ctx context.Context, req *protocol.Request) ([]byte, error)

func (f HandlerFunc) ServeCommand(ctx context.Context, req *protocol.Request) ([]byte, error) {
	return f(ctx, req)
}

// Registry maps command names to handlers. Names are case-insensitive.
type Registry struct {
	handlers map[string]Handler
	mu       sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds or replaces the handler for name.
func (r *Registry) Register(name string, handler Handler) error {
	key := normalize(name)
	if key == "" {
		return ErrEmptyCommandName
	}

	if handler == nil {
		return ErrNilHandler
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[key] = handler
	return nil
}

func (r *Registry) RegisterFunc(name string, fn func(ctx context.Context, req *protocol.Request) ([]byte, error)) error {
	if fn == nil {
		return ErrNilHandler
	}
	return r.Register(name, HandlerFunc(fn))
}

func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := normalize(name)
	_, ok := r.handlers[key]
	delete(r.handlers, key)
	return ok
}

func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, ok := r.handlers[normalize(name)]
	return handler, ok
}

// Commands returns the registered names in sorted order.
func (r *Registry) Commands() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.handlers)
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
