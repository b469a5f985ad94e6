// Package influxdb writes flashlight telemetry to InfluxDB v2.
//
// Two measurements are written:
//
//	flashlight_state,color_hex=#ff69b4 is_on=true,color=16738740i
//	flashlight_pipeline,reader_state=reading commands_rx=42u,malformed_total=1u,...
//
// The first is written by broadcast.TelemetrySink on every state change, the
// second periodically by the service. Writes are batched (influxdb.batch_size,
// influxdb.flush_interval) and never block the pipeline.
//
// Telemetry is optional: Connect returns ErrDisabled when influxdb.enabled
// is false.
package influxdb
