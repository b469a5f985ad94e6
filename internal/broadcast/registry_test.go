package broadcast

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/flashlight-core/internal/device"
)

// recordingSink records deliveries; it can be made to block or fail.
type recordingSink struct {
	id string

	mu    sync.Mutex
	snaps []device.Snapshot

	err     error
	block   chan struct{} // Deliver waits on this when non-nil
	entered chan struct{} // signalled when Deliver starts, if non-nil
	closed  bool
}

func newRecordingSink(id string) *recordingSink {
	return &recordingSink{id: id}
}

func (s *recordingSink) ID() string { return s.id }

func (s *recordingSink) Deliver(ctx context.Context, snap device.Snapshot) error {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.snaps = append(s.snaps, snap)
	return nil
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingSink) received() []device.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]device.Snapshot, len(s.snaps))
	copy(out, s.snaps)
	return out
}

func (s *recordingSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func ids(members []*Member) []string {
	out := make([]string, len(members))
	for i, m := range members {
		out[i] = m.Sink().ID()
	}
	return out
}

func TestRegistryRegisterIsIdempotent(t *testing.T) {
	r := NewRegistry()
	a := newRecordingSink("a")

	assert.True(t, r.Register(a))
	assert.False(t, r.Register(a))
	assert.False(t, r.Register(newRecordingSink("a")), "same ID is a duplicate")
	assert.Equal(t, 1, r.Len())
	assert.True(t, r.Contains("a"))
}

func TestRegistryUnregisterAbsentIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Register(newRecordingSink("a"))

	assert.False(t, r.Unregister(newRecordingSink("missing")))
	assert.Equal(t, 1, r.Len())

	assert.True(t, r.UnregisterID("a"))
	assert.False(t, r.UnregisterID("a"))
	assert.Zero(t, r.Len())
}

func TestRegistrySnapshotOrderAndIsolation(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"a", "b", "c"} {
		r.Register(newRecordingSink(id))
	}

	snap := r.Snapshot()
	assert.Equal(t, []string{"a", "b", "c"}, ids(snap))

	r.UnregisterID("b")
	r.Register(newRecordingSink("d"))

	assert.Equal(t, []string{"a", "b", "c"}, ids(snap), "earlier snapshot is unaffected")
	assert.Equal(t, []string{"a", "c", "d"}, ids(r.Snapshot()))
}

func TestRegistryUnregisterWaitsForInFlightDelivery(t *testing.T) {
	r := NewRegistry()
	slow := newRecordingSink("slow")
	slow.block = make(chan struct{})
	slow.entered = make(chan struct{}, 1)
	r.Register(slow)

	m := r.Snapshot()[0]
	go func() { _, _ = m.deliver(context.Background(), device.Snapshot{IsOn: true}) }()
	<-slow.entered

	unregistered := make(chan struct{})
	go func() {
		r.Unregister(slow)
		close(unregistered)
	}()

	// Registering another sink is not blocked by the pending unregister.
	require.Eventually(t, func() bool {
		return r.Register(newRecordingSink("other"))
	}, time.Second, time.Millisecond)

	select {
	case <-unregistered:
		t.Fatal("Unregister returned while a delivery was in progress")
	case <-time.After(20 * time.Millisecond):
	}

	close(slow.block)
	<-unregistered
	assert.Len(t, slow.received(), 1)

	delivered, err := m.deliver(context.Background(), device.Snapshot{})
	assert.False(t, delivered)
	assert.NoError(t, err)
	assert.Len(t, slow.received(), 1, "no delivery after Unregister returned")
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	b := NewBroadcaster(r)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := newRecordingSink(string(rune('a' + i)))
			for j := 0; j < 50; j++ {
				r.Register(s)
				r.Unregister(s)
			}
		}(i)
	}

	for i := 0; i < 100; i++ {
		b.Notify(context.Background(), device.Snapshot{Color: int64(i)})
	}
	wg.Wait()

	assert.Zero(t, r.Len())
}
