// Kunhua Huang 2026

package loadbalancer

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ecstasoy/editorbridge/pkg/registry"
)

// RoundRobinBalancer rotates through the instances of each service with its
// own cursor, so picks for one service do not skew another.
type RoundRobinBalancer struct {
	cursors sync.Map // service -> *atomic.Uint64
}

func NewRoundRobin() LoadBalancer {
	return &RoundRobinBalancer{}
}

func (rb *RoundRobinBalancer) Pick(ctx context.Context, instances []*registry.ServiceInstance) (*registry.ServiceInstance, error) {
	if len(instances) == 0 {
		return nil, ErrNoInstances
	}

	v, _ := rb.cursors.LoadOrStore(instances[0].Service, new(atomic.Uint64))
	next := v.(*atomic.Uint64).Add(1) - 1

	return instances[next%uint64(len(instances))], nil
}

func (rb *RoundRobinBalancer) Name() string {
	return "round-robin"
}
