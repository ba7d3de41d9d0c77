// Kunhua Huang 2026

package loadbalancer

import (
	"context"
	"math/rand"

	"github.com/ecstasoy/editorbridge/pkg/registry"
)

type Random struct{}

func NewRandom() LoadBalancer {
	return Random{}
}

func (Random) Pick(ctx context.Context, instances []*registry.ServiceInstance) (*registry.ServiceInstance, error) {
	if len(instances) == 0 {
		return nil, ErrNoInstances
	}
	return instances[rand.Intn(len(instances))], nil
}

func (Random) Name() string {
	return "random"
}
