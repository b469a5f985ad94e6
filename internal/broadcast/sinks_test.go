package broadcast

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/flashlight-core/internal/device"
)

type fakePublisher struct {
	topic   string
	payload []byte
	err     error
}

func (p *fakePublisher) PublishRetained(topic string, payload []byte) error {
	p.topic, p.payload = topic, payload
	return p.err
}

type fakeStateWriter struct {
	isOn  bool
	color int64
	hex   string
	calls int
}

func (w *fakeStateWriter) WriteState(isOn bool, color int64, hex string) {
	w.isOn, w.color, w.hex = isOn, color, hex
	w.calls++
}

type fakeHistory struct {
	snaps   []device.Snapshot
	sources []string
	err     error
}

func (h *fakeHistory) Record(_ context.Context, snap device.Snapshot, source string) error {
	if h.err != nil {
		return h.err
	}
	h.snaps = append(h.snaps, snap)
	h.sources = append(h.sources, source)
	return nil
}

func (h *fakeHistory) List(context.Context, int) ([]device.HistoryEntry, error) { return nil, nil }
func (h *fakeHistory) Clear(context.Context) (int64, error)                     { return 0, nil }

func TestMQTTSink(t *testing.T) {
	pub := &fakePublisher{}
	s := NewMQTTSink(pub, "flashlight/state")

	assert.Equal(t, "mqtt:flashlight/state", s.ID())
	require.NoError(t, s.Deliver(context.Background(), device.Snapshot{IsOn: true, Color: 0xFF69B4}))

	assert.Equal(t, "flashlight/state", pub.topic)
	assert.JSONEq(t, `{"is_turned_on":true,"color":"#ff69b4"}`, string(pub.payload))

	pub.err = errors.New("mqtt: client not connected")
	err := s.Deliver(context.Background(), device.Snapshot{})
	assert.ErrorIs(t, err, pub.err)
}

func TestTelemetrySink(t *testing.T) {
	w := &fakeStateWriter{}
	s := NewTelemetrySink(w)

	require.NoError(t, s.Deliver(context.Background(), device.Snapshot{IsOn: false, Color: device.DefaultColor}))
	assert.Equal(t, 1, w.calls)
	assert.False(t, w.isOn)
	assert.Equal(t, device.DefaultColor, w.color)
	assert.Equal(t, "#adbeef", w.hex)
}

func TestHistorySink(t *testing.T) {
	h := &fakeHistory{}
	s := NewHistorySink(h)

	require.NoError(t, s.Deliver(context.Background(), updates[0]))
	assert.Equal(t, []device.Snapshot{updates[0]}, h.snaps)
	assert.Equal(t, []string{device.HistorySourceUpstream}, h.sources)

	h.err = errors.New("disk I/O error")
	assert.NoError(t, s.Deliver(context.Background(), updates[1]))
	assert.Equal(t, uint64(1), s.Failures())
}

func TestHistorySinkSurvivesFailedWrite(t *testing.T) {
	h := &fakeHistory{err: errors.New("database is locked")}
	s := NewHistorySink(h)

	b := NewBroadcaster(NewRegistry())
	b.Registry().Register(s)

	b.Notify(context.Background(), updates[0])
	require.True(t, b.Registry().Contains("history"), "history sink must stay registered")
	assert.Equal(t, uint64(1), s.Failures())
	assert.Zero(t, b.Stats().Failed)

	h.err = nil
	b.Notify(context.Background(), updates[1])
	assert.Equal(t, []device.Snapshot{updates[1]}, h.snaps)
}

func TestStatsSeparatesObserversFromServiceSinks(t *testing.T) {
	b := NewBroadcaster(NewRegistry())
	reg := b.Registry()

	reg.Register(NewHistorySink(&fakeHistory{}))
	reg.Register(NewTelemetrySink(&fakeStateWriter{}))
	mqttQueue := NewQueuedSink(NewMQTTSink(&fakePublisher{}, "flashlight/state"), 4, OverflowDrop)
	t.Cleanup(func() { mqttQueue.Close() }) //nolint:errcheck // Test cleanup
	reg.Register(mqttQueue)

	plain := newRecordingSink("ws:a")
	queued := NewQueuedSink(newRecordingSink("ws:b"), 4, OverflowDrop)
	t.Cleanup(func() { queued.Close() }) //nolint:errcheck // Test cleanup
	reg.Register(plain)
	reg.Register(queued)

	stats := b.Stats()
	assert.Equal(t, 5, stats.Sinks)
	assert.Equal(t, 2, stats.Observers)

	reg.Unregister(plain)
	assert.Equal(t, 1, b.Stats().Observers)
}
