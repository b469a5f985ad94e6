// Package broadcast fans flashlight state changes out to observers.
//
// # Architecture
//
//	Reducer ──► Broadcaster.Notify(Snapshot)
//	                 │  snapshot of Registry, registration order
//	                 ├──► WebSocket observer   (internal/api)
//	                 ├──► QueuedSink ──► slow observer
//	                 ├──► MQTTSink           retained <prefix>/state
//	                 ├──► TelemetrySink      InfluxDB flashlight_state
//	                 └──► HistorySink        SQLite state_history
//
// # Registry
//
// Observers register and unregister concurrently with broadcasting. Each
// member carries its own lock, so once Unregister returns no further
// delivery to that sink starts, even from a pass that already holds a
// snapshot containing it. A sink registered during a pass is reached from
// the next notification on.
//
// # Delivery Modes
//
// By default delivery is blocking: each sink receives the update before
// the next one is tried, and a slow sink delays everyone behind it. With
// broadcast.mode "queued", each observer is wrapped in a QueuedSink with a
// bounded queue and an overflow policy:
//
//   - drop: the newest update is discarded and counted
//   - disconnect: the observer is removed
//
// Per-sink ordering is preserved in both modes.
//
// # Failures
//
// A sink whose delivery fails is logged, unregistered, and closed. The
// pipeline keeps running.
package broadcast
