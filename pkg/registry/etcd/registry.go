// Kunhua Huang 2026

package etcd

import (
	"context"
	"encoding/json"
	"fmt"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ecstasoy/editorbridge/pkg/registry"
)

func (r *Registry) Register(ctx context.Context, instance *registry.ServiceInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return registry.ErrClosed
	}

	lease, err := r.ensureLease(ctx)
	if err != nil {
		return err
	}

	if err := r.put(ctx, instance, lease); err != nil {
		return err
	}

	r.announced[instance.ID] = instance.Clone()
	return nil
}

func (r *Registry) Update(ctx context.Context, instance *registry.ServiceInstance) error {
	r.mu.Lock()
	_, ok := r.announced[instance.ID]
	r.mu.Unlock()

	if !ok {
		return registry.ErrNotFound
	}
	return r.Register(ctx, instance)
}

func (r *Registry) Deregister(ctx context.Context, service, instanceID string) error {
	r.mu.Lock()
	delete(r.announced, instanceID)
	r.mu.Unlock()

	resp, err := r.client.Delete(ctx, r.serviceKey(service, instanceID))
	if err != nil {
		return fmt.Errorf("delete instance %s: %w", instanceID, err)
	}
	if resp.Deleted == 0 {
		return registry.ErrNotFound
	}

	return nil
}

// Heartbeat refreshes the lease. If the lease was lost and could not be
// recovered in the background, the instance is announced again.
func (r *Registry) Heartbeat(ctx context.Context, service, instanceID string) error {
	r.mu.Lock()
	instance, ok := r.announced[instanceID]
	lease := r.leaseID
	r.mu.Unlock()

	if !ok {
		return registry.ErrNotFound
	}

	if lease == 0 {
		return r.Register(ctx, instance)
	}

	if _, err := r.client.KeepAliveOnce(ctx, lease); err != nil {
		return fmt.Errorf("keepalive lease %d: %w", int64(lease), err)
	}
	return nil
}

func (r *Registry) put(ctx context.Context, instance *registry.ServiceInstance, lease clientv3.LeaseID) error {
	value, err := json.Marshal(instance)
	if err != nil {
		return fmt.Errorf("marshal instance: %w", err)
	}

	key := r.serviceKey(instance.Service, instance.ID)
	if _, err := r.client.Put(ctx, key, string(value), clientv3.WithLease(lease)); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}

	return nil
}

// ensureLease grants the shared lease on first use and keeps it alive.
// Called with mu held.
func (r *Registry) ensureLease(ctx context.Context) (clientv3.LeaseID, error) {
	if r.leaseID != 0 {
		return r.leaseID, nil
	}

	grant, err := r.client.Grant(ctx, r.config.LeaseTTL)
	if err != nil {
		return 0, fmt.Errorf("grant lease: %w", err)
	}

	ch, err := r.client.KeepAlive(r.ctx, grant.ID)
	if err != nil {
		return 0, fmt.Errorf("keepalive lease: %w", err)
	}

	r.leaseID = grant.ID
	go r.keepAlive(grant.ID, ch)

	return grant.ID, nil
}

func (r *Registry) keepAlive(lease clientv3.LeaseID, ch <-chan *clientv3.LeaseKeepAliveResponse) {
	for resp := range ch {
		if resp == nil {
			break
		}
	}

	if r.ctx.Err() != nil {
		return
	}

	r.logger.Warn("lease lost, announcing again", "lease", int64(lease))
	r.recoverLease(lease)
}

func (r *Registry) recoverLease(lost clientv3.LeaseID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.leaseID != lost {
		return
	}
	r.leaseID = 0

	if len(r.announced) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(r.ctx, r.config.DialTimeout)
	defer cancel()

	lease, err := r.ensureLease(ctx)
	if err != nil {
		// the next Heartbeat tries again
		r.logger.Warn("re-grant lease failed", "error", err)
		return
	}

	for _, instance := range r.announced {
		if err := r.put(ctx, instance, lease); err != nil {
			r.logger.Warn("re-announce failed", "instance", instance.ID, "error", err)
		}
	}
}
