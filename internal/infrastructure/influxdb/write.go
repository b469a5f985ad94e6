package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the service.
const (
	MeasurementState    = "flashlight_state"
	MeasurementPipeline = "flashlight_pipeline"
)

// WriteState records one flashlight state change.
//
// Fields: is_on (bool), color (int, raw value including the startup
// sentinel). Tag: color_hex, the rendered 24-bit colour.
func (c *Client) WriteState(isOn bool, color int64, hex string) {
	c.writePoint(MeasurementState,
		map[string]string{"color_hex": hex},
		map[string]any{
			"is_on": isOn,
			"color": color,
		},
		time.Now(),
	)
}

// PipelineSample is a periodic snapshot of ingestion counters.
type PipelineSample struct {
	CommandsRx      uint64
	MalformedTotal  uint64
	ReconnectsTotal uint64
	Observers       int
	State           string
}

// WritePipelineStats records ingestion counters, tagged with the reader state.
func (c *Client) WritePipelineStats(s PipelineSample) {
	c.writePoint(MeasurementPipeline,
		map[string]string{"reader_state": s.State},
		map[string]any{
			"commands_rx":      s.CommandsRx,
			"malformed_total":  s.MalformedTotal,
			"reconnects_total": s.ReconnectsTotal,
			"observers":        s.Observers,
		},
		time.Now(),
	)
}

// writePoint queues a point unless the client is closed.
func (c *Client) writePoint(measurement string, tags map[string]string, fields map[string]any, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, ts))
}
