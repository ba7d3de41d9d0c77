// Kunhua Huang 2026

package loadbalancer

import (
	"context"
	"net"

	"github.com/ecstasoy/editorbridge/pkg/registry"
)

// LocalFirst prefers bridges announced on a loopback address, the usual
// case of a tool running next to the editor, and only falls back to remote
// ones when no local bridge is up.
type LocalFirst struct {
	next LoadBalancer
}

func NewLocalFirst(next LoadBalancer) LoadBalancer {
	if next == nil {
		next = NewRoundRobin()
	}
	return &LocalFirst{next: next}
}

func (l *LocalFirst) Pick(ctx context.Context, instances []*registry.ServiceInstance) (*registry.ServiceInstance, error) {
	var local []*registry.ServiceInstance
	for _, inst := range instances {
		if isLoopback(inst.Address) {
			local = append(local, inst)
		}
	}

	if len(local) > 0 {
		return l.next.Pick(ctx, local)
	}
	return l.next.Pick(ctx, instances)
}

func (l *LocalFirst) Name() string {
	return "local-first"
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
