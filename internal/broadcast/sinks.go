package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/nerrad567/flashlight-core/internal/device"
)

// Publisher publishes a retained payload with the client's configured QoS.
// *mqtt.Client satisfies it.
type Publisher interface {
	PublishRetained(topic string, payload []byte) error
}

// MQTTSink publishes each state change as a retained message so that new
// MQTT subscribers immediately see the current state.
type MQTTSink struct {
	publisher Publisher
	topic     string
}

// NewMQTTSink creates a sink publishing to topic.
func NewMQTTSink(publisher Publisher, topic string) *MQTTSink {
	return &MQTTSink{publisher: publisher, topic: topic}
}

func (s *MQTTSink) serviceSink() {}

// ID implements Sink.
func (s *MQTTSink) ID() string {
	return "mqtt:" + s.topic
}

// Deliver implements Sink.
func (s *MQTTSink) Deliver(_ context.Context, snap device.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}
	if err := s.publisher.PublishRetained(s.topic, payload); err != nil {
		return fmt.Errorf("publishing state to %s: %w", s.topic, err)
	}
	return nil
}

// StateWriter records a state sample. *influxdb.Client satisfies it.
type StateWriter interface {
	WriteState(isOn bool, color int64, hex string)
}

// TelemetrySink writes each state change as a time-series point. Writes are
// batched by the client and never fail the delivery.
type TelemetrySink struct {
	writer StateWriter
}

// NewTelemetrySink creates a sink over writer.
func NewTelemetrySink(writer StateWriter) *TelemetrySink {
	return &TelemetrySink{writer: writer}
}

func (s *TelemetrySink) serviceSink() {}

// ID implements Sink.
func (s *TelemetrySink) ID() string {
	return "telemetry"
}

// Deliver implements Sink.
func (s *TelemetrySink) Deliver(_ context.Context, snap device.Snapshot) error {
	s.writer.WriteState(snap.IsOn, snap.Color, snap.HexColor())
	return nil
}

// HistorySink records each state change in a history repository.
//
// A failed write is logged and counted but never reported to the
// broadcaster, so one bad insert does not end history recording.
type HistorySink struct {
	repo   device.HistoryRepository
	logger Logger

	failures atomic.Uint64
}

// NewHistorySink creates a sink over repo.
func NewHistorySink(repo device.HistoryRepository) *HistorySink {
	return &HistorySink{repo: repo}
}

// SetLogger sets the logger for failed writes.
func (s *HistorySink) SetLogger(logger Logger) {
	s.logger = logger
}

// Failures returns the number of changes that could not be recorded.
func (s *HistorySink) Failures() uint64 {
	return s.failures.Load()
}

func (s *HistorySink) serviceSink() {}

// ID implements Sink.
func (s *HistorySink) ID() string {
	return "history"
}

// Deliver implements Sink.
func (s *HistorySink) Deliver(ctx context.Context, snap device.Snapshot) error {
	if err := s.repo.Record(ctx, snap, device.HistorySourceUpstream); err != nil {
		s.failures.Add(1)
		if s.logger != nil {
			s.logger.Warn("recording state history failed", "error", err)
		}
	}
	return nil
}
