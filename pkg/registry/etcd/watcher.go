// Kunhua Huang 2026

package etcd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ecstasoy/editorbridge/pkg/registry"
)

type watcher struct {
	service string
	watchCh clientv3.WatchChan
	stopCh  chan struct{}
	cancel  context.CancelFunc
	once    sync.Once
	logger  *slog.Logger

	// events decoded from one watch response but not yet returned
	pending []*registry.Event
}

func (w *watcher) Next() (*registry.Event, error) {
	for len(w.pending) == 0 {
		select {
		case <-w.stopCh:
			return nil, registry.ErrWatcherStopped
		case resp, ok := <-w.watchCh:
			if !ok {
				return nil, registry.ErrWatcherStopped
			}
			if err := resp.Err(); err != nil {
				return nil, fmt.Errorf("watch %s: %w", w.service, err)
			}

			for _, ev := range resp.Events {
				if event := w.convert(ev); event != nil {
					w.pending = append(w.pending, event)
				}
			}
		}
	}

	ev := w.pending[0]
	w.pending = w.pending[1:]
	return ev, nil
}

func (w *watcher) convert(ev *clientv3.Event) *registry.Event {
	if ev.Type == clientv3.EventTypeDelete {
		instance := &registry.ServiceInstance{
			ID:      instanceID(string(ev.Kv.Key)),
			Service: w.service,
		}
		if ev.PrevKv != nil {
			_ = json.Unmarshal(ev.PrevKv.Value, instance)
		}
		return &registry.Event{Type: registry.EventWithdrawn, Instance: instance}
	}

	var instance registry.ServiceInstance
	if err := json.Unmarshal(ev.Kv.Value, &instance); err != nil {
		w.logger.Warn("undecodable instance", "key", string(ev.Kv.Key), "error", err)
		return nil
	}

	eventType := registry.EventUpdated
	if ev.IsCreate() {
		eventType = registry.EventAnnounced
	}

	return &registry.Event{Type: eventType, Instance: &instance}
}

func (w *watcher) Stop() {
	w.once.Do(func() {
		w.cancel()
		close(w.stopCh)
	})
}
