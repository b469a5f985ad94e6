package broadcast

import (
	"context"
	"sync"

	"github.com/nerrad567/flashlight-core/internal/device"
)

// Sink receives state changes. Each sink has a stable, unique ID.
//
// Deliver must not call Registry.Unregister for itself; the registry waits
// for an in-flight delivery before completing an unregister.
type Sink interface {
	ID() string
	Deliver(ctx context.Context, snap device.Snapshot) error
}

// Member is a registered sink with its own delivery lock.
type Member struct {
	sink    Sink
	mu      sync.Mutex
	removed bool
}

// Sink returns the registered sink.
func (m *Member) Sink() Sink {
	return m.sink
}

// deliver hands snap to the sink unless the member was removed.
// delivered is false when the member is no longer registered.
func (m *Member) deliver(ctx context.Context, snap device.Snapshot) (delivered bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.removed {
		return false, nil
	}
	return true, m.sink.Deliver(ctx, snap)
}

// retire marks the member removed, waiting for any delivery in progress.
func (m *Member) retire() {
	m.mu.Lock()
	m.removed = true
	m.mu.Unlock()
}

// Registry is the set of currently registered sinks, in registration order.
//
// Thread Safety: all methods are safe for concurrent use. The registry lock
// is never held while waiting on a member.
type Registry struct {
	mu      sync.RWMutex
	members map[string]*Member
	order   []*Member
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		members: make(map[string]*Member),
	}
}

// Register adds sink. Registering an ID that is already present is a no-op.
//
// Returns:
//   - bool: true if the sink was added
func (r *Registry) Register(sink Sink) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.members[sink.ID()]; exists {
		return false
	}

	m := &Member{sink: sink}
	r.members[sink.ID()] = m
	r.order = append(r.order, m)
	return true
}

// Unregister removes sink. Unregistering an absent sink is a no-op.
//
// When Unregister returns, no new delivery to the sink will start, even
// from a broadcast pass that took its snapshot earlier. A delivery already
// in progress is waited for.
//
// Returns:
//   - bool: true if the sink was registered
func (r *Registry) Unregister(sink Sink) bool {
	return r.UnregisterID(sink.ID())
}

// UnregisterID removes the sink with the given ID. See Unregister.
func (r *Registry) UnregisterID(id string) bool {
	r.mu.Lock()
	m, exists := r.members[id]
	if exists {
		delete(r.members, id)
		for i, o := range r.order {
			if o == m {
				r.order = append(r.order[:i:i], r.order[i+1:]...)
				break
			}
		}
	}
	r.mu.Unlock()

	if !exists {
		return false
	}
	m.retire()
	return true
}

// Snapshot returns the current members in registration order. Later
// registry changes do not affect the returned slice.
func (r *Registry) Snapshot() []*Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Member, len(r.order))
	copy(out, r.order)
	return out
}

// Contains reports whether a sink with the given ID is registered.
func (r *Registry) Contains(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[id]
	return ok
}

// Len returns the number of registered sinks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
