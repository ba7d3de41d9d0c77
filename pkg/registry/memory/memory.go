// Kunhua Huang 2026
// In-memory registry. Serves single-process setups (the host and its tools
// in one binary) and tests.

package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ecstasoy/editorbridge/pkg/registry"
)

const watchBuffer = 16

type Registry struct {
	instances map[string]*registry.ServiceInstance
	watchers  map[string]map[*memoryWatcher]struct{}
	closed    bool
	mu        sync.RWMutex

	ttl time.Duration
	now func() time.Time
}

var _ registry.Store = (*Registry)(nil)

type Option func(*Registry)

// WithTTL hides instances whose last register, update or heartbeat is older
// than ttl, the way an expired etcd lease would.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		r.ttl = ttl
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		instances: make(map[string]*registry.ServiceInstance),
		watchers:  make(map[string]map[*memoryWatcher]struct{}),
		now:       time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Registry) Register(ctx context.Context, instance *registry.ServiceInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return registry.ErrClosed
	}

	eventType := registry.EventAnnounced
	if _, exists := r.instances[instance.ID]; exists {
		eventType = registry.EventUpdated
	}

	stored := instance.Clone()
	stored.UpdateTime = r.now()
	r.instances[instance.ID] = stored

	r.notify(stored.Service, &registry.Event{Type: eventType, Instance: stored.Clone()})

	return nil
}

func (r *Registry) Deregister(ctx context.Context, service, instanceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	instance, exists := r.instances[instanceID]
	if !exists {
		return registry.ErrNotFound
	}

	delete(r.instances, instanceID)

	r.notify(instance.Service, &registry.Event{
		Type:     registry.EventWithdrawn,
		Instance: instance.Clone(),
	})

	return nil
}

func (r *Registry) Update(ctx context.Context, instance *registry.ServiceInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.instances[instance.ID]; !exists {
		return registry.ErrNotFound
	}

	stored := instance.Clone()
	stored.UpdateTime = r.now()
	r.instances[instance.ID] = stored

	r.notify(stored.Service, &registry.Event{
		Type:     registry.EventUpdated,
		Instance: stored.Clone(),
	})

	return nil
}

func (r *Registry) Heartbeat(ctx context.Context, service, instanceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	instance, exists := r.instances[instanceID]
	if !exists {
		return registry.ErrNotFound
	}

	instance.UpdateTime = r.now()
	return nil
}

// GetInstances returns the live UP instances of service ordered by ID.
func (r *Registry) GetInstances(ctx context.Context, service string) ([]*registry.ServiceInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now()

	var result []*registry.ServiceInstance
	for _, instance := range r.instances {
		if instance.Service != service || instance.Status != registry.StatusUp {
			continue
		}
		if r.ttl > 0 && now.Sub(instance.UpdateTime) > r.ttl {
			continue
		}
		result = append(result, instance.Clone())
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	return result, nil
}

func (r *Registry) GetInstanceByID(ctx context.Context, instanceID string) (*registry.ServiceInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	instance, exists := r.instances[instanceID]
	if !exists {
		return nil, registry.ErrNotFound
	}

	return instance.Clone(), nil
}

// Watch streams changes to service. The watcher stops with ctx, Stop or
// Close. Events are dropped for a watcher that falls behind.
func (r *Registry) Watch(ctx context.Context, service string) (registry.Watcher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, registry.ErrClosed
	}

	w := &memoryWatcher{
		ch:      make(chan *registry.Event, watchBuffer),
		stopCh:  make(chan struct{}),
		service: service,
		owner:   r,
	}

	if r.watchers[service] == nil {
		r.watchers[service] = make(map[*memoryWatcher]struct{})
	}
	r.watchers[service][w] = struct{}{}

	go func() {
		select {
		case <-ctx.Done():
			w.Stop()
		case <-w.stopCh:
		}
	}()

	return w, nil
}

func (r *Registry) notify(service string, event *registry.Event) {
	for w := range r.watchers[service] {
		select {
		case w.ch <- event:
		default:
		}
	}
}

func (r *Registry) removeWatcher(w *memoryWatcher) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.watchers[w.service], w)
	if len(r.watchers[w.service]) == 0 {
		delete(r.watchers, w.service)
	}
}

func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	for _, watchers := range r.watchers {
		for w := range watchers {
			w.halt()
		}
	}
	r.watchers = make(map[string]map[*memoryWatcher]struct{})

	return nil
}

type memoryWatcher struct {
	ch      chan *registry.Event
	stopCh  chan struct{}
	once    sync.Once
	service string
	owner   *Registry
}

func (w *memoryWatcher) Next() (*registry.Event, error) {
	select {
	case <-w.stopCh:
		return nil, registry.ErrWatcherStopped
	case event := <-w.ch:
		return event, nil
	}
}

func (w *memoryWatcher) Stop() {
	w.halt()
	w.owner.removeWatcher(w)
}

func (w *memoryWatcher) halt() {
	w.once.Do(func() { close(w.stopCh) })
}
