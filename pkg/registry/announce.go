// Kunhua Huang 2026

package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Announcer keeps one instance registered until Withdraw.
type Announcer struct {
	registry Registry
	instance *ServiceInstance
	logger   *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Announce registers instance and, when interval > 0, heartbeats it in the
// background.
func Announce(ctx context.Context, reg Registry, instance *ServiceInstance, interval time.Duration, logger *slog.Logger) (*Announcer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := reg.Register(ctx, instance); err != nil {
		return nil, fmt.Errorf("register %s: %w", instance.Endpoint(), err)
	}

	hbCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a := &Announcer{
		registry: reg,
		instance: instance,
		logger:   logger.With("component", "announcer", "instance", instance.ID),
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	go a.heartbeat(hbCtx, interval)

	a.logger.Info("endpoint announced", "service", instance.Service, "endpoint", instance.Endpoint())
	return a, nil
}

func (a *Announcer) Instance() *ServiceInstance {
	return a.instance
}

func (a *Announcer) heartbeat(ctx context.Context, interval time.Duration) {
	defer close(a.done)

	if interval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.registry.Heartbeat(ctx, a.instance.Service, a.instance.ID); err != nil && ctx.Err() == nil {
				a.logger.Warn("heartbeat failed", "error", err)
			}
		}
	}
}

// Withdraw stops heartbeats and deregisters the instance. Later calls are
// no-ops.
func (a *Announcer) Withdraw(ctx context.Context) error {
	var err error
	a.once.Do(func() {
		a.cancel()
		<-a.done

		err = a.registry.Deregister(ctx, a.instance.Service, a.instance.ID)
		if err != nil {
			err = fmt.Errorf("deregister %s: %w", a.instance.ID, err)
			return
		}
		a.logger.Info("endpoint withdrawn")
	})
	return err
}
