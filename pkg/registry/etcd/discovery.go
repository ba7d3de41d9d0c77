// Kunhua Huang 2026

package etcd

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ecstasoy/editorbridge/pkg/registry"
)

func (r *Registry) GetInstances(ctx context.Context, service string) ([]*registry.ServiceInstance, error) {
	resp, err := r.client.Get(ctx, r.servicePrefix(service), clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("get instances: %w", err)
	}

	instances, skipped := decodeInstances(resp.Kvs)
	if skipped > 0 {
		r.logger.Warn("skipped undecodable instances", "service", service, "count", skipped)
	}

	return instances, nil
}

// decodeInstances returns the UP instances in kvs ordered by ID and how many
// values could not be decoded.
func decodeInstances(kvs []*mvccpb.KeyValue) ([]*registry.ServiceInstance, int) {
	var (
		instances []*registry.ServiceInstance
		skipped   int
	)

	for _, kv := range kvs {
		var instance registry.ServiceInstance
		if err := json.Unmarshal(kv.Value, &instance); err != nil {
			skipped++
			continue
		}
		if instance.Status == registry.StatusUp {
			instances = append(instances, &instance)
		}
	}

	sort.Slice(instances, func(i, j int) bool { return instances[i].ID < instances[j].ID })

	return instances, skipped
}

func (r *Registry) Watch(ctx context.Context, service string) (registry.Watcher, error) {
	ctx, cancel := context.WithCancel(ctx)
	watchCh := r.client.Watch(ctx, r.servicePrefix(service), clientv3.WithPrefix(), clientv3.WithPrevKV())

	return &watcher{
		service: service,
		watchCh: watchCh,
		stopCh:  make(chan struct{}),
		cancel:  cancel,
		logger:  r.logger,
	}, nil
}
