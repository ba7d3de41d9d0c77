// Kunhua Huang 2026

// Package etcd announces bridges in etcd and discovers them again. Every
// instance a Registry announces hangs off one lease, so a bridge that dies
// without withdrawing disappears after LeaseTTL seconds.
package etcd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ecstasoy/editorbridge/pkg/registry"
)

type Config struct {
	Endpoints   []string
	DialTimeout time.Duration

	KeyPrefix string
	LeaseTTL  int64

	Logger *slog.Logger
}

func DefaultConfig() *Config {
	return &Config{
		Endpoints:   []string{"localhost:2379"},
		DialTimeout: 5 * time.Second,
		KeyPrefix:   "/editorbridge/services",
		LeaseTTL:    10,
	}
}

// Registry is both sides of etcd discovery. A process that only discovers
// never grants a lease.
type Registry struct {
	client *clientv3.Client
	config *Config
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// mu guards leaseID, announced and closed.
	mu        sync.Mutex
	leaseID   clientv3.LeaseID
	announced map[string]*registry.ServiceInstance
	closed    bool
	closeOnce sync.Once
}

var _ registry.Store = (*Registry)(nil)

func New(config *Config) (*Registry, error) {
	if config == nil {
		config = DefaultConfig()
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   config.Endpoints,
		DialTimeout: config.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create etcd client: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Registry{
		client:    client,
		config:    config,
		logger:    logger.With("component", "etcd-registry"),
		ctx:       ctx,
		cancel:    cancel,
		announced: make(map[string]*registry.ServiceInstance),
	}, nil
}

// Close revokes the lease, withdrawing every instance announced through r,
// and closes the client.
func (r *Registry) Close() error {
	var err error

	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		lease := r.leaseID
		r.leaseID = 0
		r.mu.Unlock()

		r.cancel()

		if lease != 0 {
			ctx, cancel := context.WithTimeout(context.Background(), r.config.DialTimeout)
			if _, rerr := r.client.Revoke(ctx, lease); rerr != nil {
				r.logger.Warn("revoke lease failed", "lease", int64(lease), "error", rerr)
			}
			cancel()
		}

		err = r.client.Close()
	})

	return err
}

func (r *Registry) serviceKey(service, instanceID string) string {
	return serviceKey(r.config.KeyPrefix, service, instanceID)
}

func (r *Registry) servicePrefix(service string) string {
	return servicePrefix(r.config.KeyPrefix, service)
}

func serviceKey(prefix, service, instanceID string) string {
	return servicePrefix(prefix, service) + instanceID
}

func servicePrefix(prefix, service string) string {
	return fmt.Sprintf("%s/%s/", strings.TrimRight(prefix, "/"), service)
}

// instanceID is the last segment of an instance key.
func instanceID(key string) string {
	if i := strings.LastIndexByte(key, '/'); i >= 0 {
		return key[i+1:]
	}
	return key
}
