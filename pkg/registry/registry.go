// Kunhua Huang 2026

package registry

import (
	"context"
	"errors"
)

var (
	ErrNotFound       = errors.New("instance not found")
	ErrNotConnected   = errors.New("not connected to registry")
	ErrWatcherStopped = errors.New("watcher has been stopped")
	ErrClosed         = errors.New("registry closed")
)

// Registry is where a running bridge announces its endpoint.
type Registry interface {
	Register(ctx context.Context, instance *ServiceInstance) error
	Deregister(ctx context.Context, service, instanceID string) error
	Update(ctx context.Context, instance *ServiceInstance) error
	Heartbeat(ctx context.Context, service, instanceID string) error
	Close() error
}

// Discovery is the remote tool's side: find bridges and follow them coming
// and going.
type Discovery interface {
	GetInstances(ctx context.Context, service string) ([]*ServiceInstance, error)
	Watch(ctx context.Context, service string) (Watcher, error)
	Close() error
}

// Store is a registry that can also be queried, like the in-process one.
type Store interface {
	Registry
	Discovery
}

type EventType int

const (
	EventAnnounced EventType = iota
	EventUpdated
	EventWithdrawn
)

func (et EventType) String() string {
	switch et {
	case EventAnnounced:
		return "ANNOUNCED"
	case EventUpdated:
		return "UPDATED"
	case EventWithdrawn:
		return "WITHDRAWN"
	default:
		return "UNKNOWN"
	}
}

// Event is one change to a service's set of bridges. Instance is never nil,
// but a withdrawn instance may only carry its ID.
type Event struct {
	Type     EventType
	Instance *ServiceInstance
}

// Watcher streams events for one service until Stop or until the context
// given to Watch ends, after which Next returns ErrWatcherStopped.
type Watcher interface {
	Next() (*Event, error)
	Stop()
}
