package broadcast

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/flashlight-core/internal/device"
)

// OverflowPolicy decides what a QueuedSink does when its queue is full.
type OverflowPolicy string

// Overflow policies.
const (
	// OverflowDrop discards the newest update and keeps the sink.
	OverflowDrop OverflowPolicy = "drop"

	// OverflowDisconnect reports ErrSinkOverflow so the sink is removed.
	OverflowDisconnect OverflowPolicy = "disconnect"
)

// ParseOverflowPolicy validates a policy name from configuration.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch p := OverflowPolicy(s); p {
	case OverflowDrop, OverflowDisconnect:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
	}
}

// defaultQueueSize is used when a non-positive size is requested.
const defaultQueueSize = 64

// QueuedSink decouples a sink from the broadcaster with a bounded FIFO
// queue drained by its own goroutine. Updates reach the wrapped sink in the
// order they were queued.
//
// Once the wrapped sink fails, the next Deliver returns that error so the
// broadcaster removes the QueuedSink.
type QueuedSink struct {
	sink   Sink
	queue  chan device.Snapshot
	policy OverflowPolicy

	dropped atomic.Uint64

	errMu sync.Mutex
	err   error

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewQueuedSink wraps sink and starts its delivery goroutine.
//
// Parameters:
//   - sink: Sink to deliver to
//   - size: Queue capacity (non-positive uses 64)
//   - policy: Behaviour when the queue is full
//
// Returns:
//   - *QueuedSink: Running sink; call Close to stop it
func NewQueuedSink(sink Sink, size int, policy OverflowPolicy) *QueuedSink {
	if size <= 0 {
		size = defaultQueueSize
	}
	if policy == "" {
		policy = OverflowDrop
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &QueuedSink{
		sink:   sink,
		queue:  make(chan device.Snapshot, size),
		policy: policy,
		ctx:    ctx,
		cancel: cancel,
	}

	q.wg.Add(1)
	go q.run()
	return q
}

// ID returns the wrapped sink's ID.
func (q *QueuedSink) ID() string {
	return q.sink.ID()
}

// Unwrap returns the wrapped sink.
func (q *QueuedSink) Unwrap() Sink {
	return q.sink
}

// Deliver enqueues snap without blocking.
func (q *QueuedSink) Deliver(_ context.Context, snap device.Snapshot) error {
	if err := q.failure(); err != nil {
		return err
	}
	if q.ctx.Err() != nil {
		return ErrSinkClosed
	}

	select {
	case q.queue <- snap:
		return nil
	default:
	}

	if q.policy == OverflowDisconnect {
		return fmt.Errorf("%w: observer %s (capacity %d)", ErrSinkOverflow, q.ID(), cap(q.queue))
	}
	q.dropped.Add(1)
	return nil
}

// Dropped returns how many updates were discarded because the queue was full.
func (q *QueuedSink) Dropped() uint64 {
	return q.dropped.Load()
}

// Pending returns the number of queued updates.
func (q *QueuedSink) Pending() int {
	return len(q.queue)
}

// Close stops the delivery goroutine, discards queued updates, and closes
// the wrapped sink if it implements io.Closer. Safe to call multiple times.
func (q *QueuedSink) Close() error {
	var err error
	q.closeOnce.Do(func() {
		q.cancel()
		q.wg.Wait()
		if closer, ok := q.sink.(io.Closer); ok {
			err = closer.Close()
		}
	})
	return err
}

func (q *QueuedSink) run() {
	defer q.wg.Done()

	for {
		select {
		case <-q.ctx.Done():
			return
		case snap := <-q.queue:
			if err := q.sink.Deliver(q.ctx, snap); err != nil {
				q.setFailure(err)
				return
			}
		}
	}
}

func (q *QueuedSink) failure() error {
	q.errMu.Lock()
	defer q.errMu.Unlock()
	return q.err
}

func (q *QueuedSink) setFailure(err error) {
	q.errMu.Lock()
	q.err = err
	q.errMu.Unlock()
}
