package broadcast

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/nerrad567/flashlight-core/internal/device"
)

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Stats holds broadcaster counters.
type Stats struct {
	Notifications uint64
	Delivered     uint64
	Failed        uint64

	// Sinks counts every registered sink; Observers excludes the
	// service's own outputs (history, telemetry, MQTT).
	Sinks     int
	Observers int
}

// Broadcaster fans each state change out to every registered sink.
//
// Delivery is sequential in registration order: a slow sink delays the
// sinks after it and the next notification (head-of-line blocking). Wrap
// slow sinks in a QueuedSink to decouple them.
//
// A sink whose Deliver fails is unregistered, closed if it implements
// io.Closer, and skipped; the pass continues with the remaining sinks.
type Broadcaster struct {
	registry *Registry
	logger   Logger

	notifications atomic.Uint64
	delivered     atomic.Uint64
	failed        atomic.Uint64
}

// NewBroadcaster creates a broadcaster over registry.
func NewBroadcaster(registry *Registry) *Broadcaster {
	return &Broadcaster{registry: registry}
}

// SetLogger sets the logger for the broadcaster.
func (b *Broadcaster) SetLogger(logger Logger) {
	b.logger = logger
}

// Registry returns the registry the broadcaster reads from.
func (b *Broadcaster) Registry() *Registry {
	return b.registry
}

// Notify delivers snap to every sink registered when the pass starts.
// It implements device.Notifier.
func (b *Broadcaster) Notify(ctx context.Context, snap device.Snapshot) {
	b.notifications.Add(1)

	for _, m := range b.registry.Snapshot() {
		if ctx.Err() != nil {
			return
		}

		delivered, err := m.deliver(ctx, snap)
		if !delivered {
			continue
		}
		if err != nil {
			b.failed.Add(1)
			b.drop(m.Sink(), err)
			continue
		}
		b.delivered.Add(1)
	}
}

// drop removes a failed sink.
func (b *Broadcaster) drop(sink Sink, cause error) {
	if b.logger != nil {
		b.logger.Warn("removing observer after failed delivery", "observer", sink.ID(), "error", cause)
	}

	b.registry.Unregister(sink)

	if closer, ok := sink.(io.Closer); ok {
		if err := closer.Close(); err != nil && b.logger != nil {
			b.logger.Debug("closing observer", "observer", sink.ID(), "error", err)
		}
	}
}

// Stats returns broadcaster counters.
func (b *Broadcaster) Stats() Stats {
	members := b.registry.Snapshot()

	observers := 0
	for _, m := range members {
		if !isServiceSink(m.Sink()) {
			observers++
		}
	}

	return Stats{
		Notifications: b.notifications.Load(),
		Delivered:     b.delivered.Load(),
		Failed:        b.failed.Load(),
		Sinks:         len(members),
		Observers:     observers,
	}
}

// serviceSink marks sinks that feed the service's own outputs rather than
// a connected client.
type serviceSink interface {
	serviceSink()
}

// isServiceSink reports whether sink, or any sink it wraps, is a serviceSink.
func isServiceSink(sink Sink) bool {
	for sink != nil {
		if _, ok := sink.(serviceSink); ok {
			return true
		}
		w, ok := sink.(interface{ Unwrap() Sink })
		if !ok {
			return false
		}
		sink = w.Unwrap()
	}
	return false
}
