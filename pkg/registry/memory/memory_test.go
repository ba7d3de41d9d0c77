package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecstasoy/editorbridge/pkg/registry"
)

func TestRegisterAndDiscover(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	defer r.Close()

	a := registry.NewServiceInstance("editorbridge", "127.0.0.1", 8080)
	b := registry.NewServiceInstance("editorbridge", "127.0.0.1", 8081)
	other := registry.NewServiceInstance("assets", "127.0.0.1", 9000)

	for _, inst := range []*registry.ServiceInstance{a, b, other} {
		require.NoError(t, r.Register(ctx, inst))
	}

	got, err := r.GetInstances(ctx, "editorbridge")
	require.NoError(t, err)
	require.Len(t, got, 2)

	endpoints := []string{got[0].Endpoint(), got[1].Endpoint()}
	assert.ElementsMatch(t, []string{"127.0.0.1:8080", "127.0.0.1:8081"}, endpoints)

	// returned instances are copies
	got[0].Metadata["mutated"] = "yes"
	again, _ := r.GetInstanceByID(ctx, got[0].ID)
	assert.NotContains(t, again.Metadata, "mutated")

	require.NoError(t, r.Deregister(ctx, "editorbridge", a.ID))
	got, err = r.GetInstances(ctx, "editorbridge")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, b.ID, got[0].ID)

	assert.ErrorIs(t, r.Deregister(ctx, "editorbridge", a.ID), registry.ErrNotFound)
	assert.ErrorIs(t, r.Heartbeat(ctx, "editorbridge", a.ID), registry.ErrNotFound)
	assert.NoError(t, r.Heartbeat(ctx, "editorbridge", b.ID))
}

func TestDownInstancesAreHidden(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()

	inst := registry.NewServiceInstance("editorbridge", "10.0.0.1", 8080)
	require.NoError(t, r.Register(ctx, inst))

	inst.Status = registry.StatusDown
	require.NoError(t, r.Update(ctx, inst))

	got, err := r.GetInstances(ctx, "editorbridge")
	require.NoError(t, err)
	assert.Empty(t, got)

	missing := registry.NewServiceInstance("editorbridge", "10.0.0.2", 8080)
	assert.ErrorIs(t, r.Update(ctx, missing), registry.ErrNotFound)
}

func nextEvent(t *testing.T, w registry.Watcher) *registry.Event {
	t.Helper()

	type result struct {
		ev  *registry.Event
		err error
	}
	ch := make(chan result, 1)
	go func() {
		ev, err := w.Next()
		ch <- result{ev, err}
	}()

	select {
	case r := <-ch:
		require.NoError(t, r.err)
		return r.ev
	case <-time.After(time.Second):
		t.Fatal("no event")
		return nil
	}
}

func TestWatch(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()

	w, err := r.Watch(ctx, "editorbridge")
	require.NoError(t, err)

	inst := registry.NewServiceInstance("editorbridge", "127.0.0.1", 8080)
	require.NoError(t, r.Register(ctx, inst))
	require.NoError(t, r.Register(ctx, registry.NewServiceInstance("assets", "127.0.0.1", 1)))
	require.NoError(t, r.Deregister(ctx, "editorbridge", inst.ID))

	ev := nextEvent(t, w)
	assert.Equal(t, registry.EventAnnounced, ev.Type)
	assert.Equal(t, inst.ID, ev.Instance.ID)

	ev = nextEvent(t, w)
	assert.Equal(t, registry.EventWithdrawn, ev.Type)

	w.Stop()
	w.Stop()
	_, err = w.Next()
	assert.ErrorIs(t, err, registry.ErrWatcherStopped)
}

func TestWatchStopsWithContextAndClose(t *testing.T) {
	r := NewRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	w1, err := r.Watch(ctx, "editorbridge")
	require.NoError(t, err)
	cancel()

	_, err = w1.Next()
	assert.ErrorIs(t, err, registry.ErrWatcherStopped)

	w2, err := r.Watch(context.Background(), "editorbridge")
	require.NoError(t, err)
	require.NoError(t, r.Close())

	_, err = w2.Next()
	assert.ErrorIs(t, err, registry.ErrWatcherStopped)

	_, err = r.Watch(context.Background(), "editorbridge")
	assert.ErrorIs(t, err, registry.ErrClosed)
	assert.ErrorIs(t, r.Register(context.Background(), registry.NewServiceInstance("x", "h", 1)), registry.ErrClosed)
}

func TestAnnouncer(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()

	inst := registry.NewServiceInstance("editorbridge", "127.0.0.1", 8080)
	a, err := registry.Announce(ctx, r, inst, 5*time.Millisecond, nil)
	require.NoError(t, err)

	first, err := r.GetInstanceByID(ctx, inst.ID)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		cur, err := r.GetInstanceByID(ctx, inst.ID)
		return err == nil && cur.UpdateTime.After(first.UpdateTime)
	}, time.Second, 5*time.Millisecond, "heartbeat refreshes the instance")

	require.NoError(t, a.Withdraw(ctx))
	require.NoError(t, a.Withdraw(ctx))

	_, err = r.GetInstanceByID(ctx, inst.ID)
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestTTLHidesSilentInstances(t *testing.T) {
	ctx := context.Background()
	clock := time.Unix(1000, 0)

	r := NewRegistry(WithTTL(10 * time.Second))
	r.now = func() time.Time { return clock }

	inst := registry.NewServiceInstance("editorbridge", "127.0.0.1", 8080)
	require.NoError(t, r.Register(ctx, inst))

	clock = clock.Add(9 * time.Second)
	got, err := r.GetInstances(ctx, "editorbridge")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	clock = clock.Add(2 * time.Second)
	got, err = r.GetInstances(ctx, "editorbridge")
	require.NoError(t, err)
	assert.Empty(t, got, "missed heartbeats")

	require.NoError(t, r.Heartbeat(ctx, "editorbridge", inst.ID))
	got, err = r.GetInstances(ctx, "editorbridge")
	require.NoError(t, err)
	assert.Len(t, got, 1, "a heartbeat revives it")
}
