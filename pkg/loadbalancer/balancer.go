// Kunhua Huang 2026

package loadbalancer

import (
	"context"
	"errors"
	"fmt"

	"github.com/ecstasoy/editorbridge/pkg/registry"
)

var (
	ErrNoInstances      = errors.New("no available instances")
	ErrInvalidAlgorithm = errors.New("invalid algorithm")
)

// LoadBalancer picks which announced bridge a client connects to.
type LoadBalancer interface {
	Pick(ctx context.Context, instances []*registry.ServiceInstance) (*registry.ServiceInstance, error)
	Name() string
}

// New returns the balancer called name: "round-robin" (the default for an
// empty name), "random" or "local-first".
func New(name string) (LoadBalancer, error) {
	switch name {
	case "", "round-robin", "roundrobin":
		return NewRoundRobin(), nil
	case "random":
		return NewRandom(), nil
	case "local-first", "local":
		return NewLocalFirst(NewRoundRobin()), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidAlgorithm, name)
	}
}
