// Package hostqueue marshals command handlers onto a goroutine owned by the
// host application, typically its main or UI loop. Connections enqueue work
// with Execute; the host drains it with Pump from its own tick, or hands a
// goroutine to Run.
package hostqueue

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"

	"github.com/ecstasoy/editorbridge/pkg/interceptor"
	"github.com/ecstasoy/editorbridge/pkg/protocol"
)

var ErrClosed = fmt.Errorf("%w: host queue closed", protocol.ErrUnavailable)

const (
	taskPending int32 = iota
	taskRunning
	taskAbandoned
)

type result struct {
	data []byte
	err  error
}

type task struct {
	ctx   context.Context
	fn    func(ctx context.Context) ([]byte, error)
	done  chan result
	state atomic.Int32
}

type Queue struct {
	pending *queue.Queue
	closed  bool
	mu      sync.Mutex

	notify chan struct{}
	logger *slog.Logger
}

func New(logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}

	return &Queue{
		pending: queue.New(),
		notify:  make(chan struct{}, 1),
		logger:  logger,
	}
}

// Execute enqueues fn and waits for the host to run it. If ctx ends before
// the host picks the task up, the task is dropped and ctx.Err() returned.
// Once running, Execute waits for fn to return.
func (q *Queue) Execute(ctx context.Context, fn func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	t := &task{
		ctx:  ctx,
		fn:   fn,
		done: make(chan result, 1),
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrClosed
	}
	q.pending.Add(t)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}

	select {
	case r := <-t.done:
		return r.data, r.err
	case <-ctx.Done():
		if t.state.CompareAndSwap(taskPending, taskAbandoned) {
			return nil, ctx.Err()
		}
		r := <-t.done
		return r.data, r.err
	}
}

// Pump runs up to max queued tasks on the calling goroutine and returns how
// many ran. max <= 0 drains everything queued at the time of the call.
func (q *Queue) Pump(max int) int {
	q.mu.Lock()
	limit := q.pending.Length()
	q.mu.Unlock()

	if max > 0 && max < limit {
		limit = max
	}

	ran := 0
	for i := 0; i < limit; i++ {
		t := q.pop()
		if t == nil {
			break
		}

		if !t.state.CompareAndSwap(taskPending, taskRunning) {
			continue
		}

		t.done <- q.run(t)
		ran++
	}

	return ran
}

// Run pumps the queue until ctx is done.
func (q *Queue) Run(ctx context.Context) error {
	for {
		q.Pump(0)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.notify:
		}
	}
}

// Close rejects queued and future tasks with ErrClosed.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true

	for q.pending.Length() > 0 {
		t := q.pending.Remove().(*task)
		if t.state.CompareAndSwap(taskPending, taskAbandoned) {
			t.done <- result{err: ErrClosed}
		}
	}
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.pending.Length()
}

func (q *Queue) pop() *task {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pending.Length() == 0 {
		return nil
	}
	return q.pending.Remove().(*task)
}

func (q *Queue) run(t *task) (r result) {
	defer func() {
		if p := recover(); p != nil {
			q.logger.Error("host task panicked", "panic", p, "stack", string(debug.Stack()))
			r = result{err: fmt.Errorf("%w: %v", interceptor.ErrPanic, p)}
		}
	}()

	data, err := t.fn(t.ctx)
	return result{data: data, err: err}
}
