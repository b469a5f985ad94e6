// Package api provides the HTTP and WebSocket surface of the flashlight service.
//
// # Routes
//
//	GET /                              browser UI (internal/panel)
//	GET /flashlight.js                 browser UI script
//	GET /api/flashlight/current_state  {"is_turned_on": bool, "color": "#rrggbb"}
//	GET /api/flashlight/ws             observer WebSocket
//	GET /api/flashlight/history        state changes since process start (?limit=N)
//	GET /api/flashlight/health         200 while the reader is receiving, 503 otherwise
//	GET /api/flashlight/metrics        reader counters, observers, runtime stats
//
// # Observers
//
// Each WebSocket connection becomes a WSSink registered with the broadcast
// registry for the lifetime of the connection. Every state change is pushed
// as the same JSON shape as current_state. The session ends when the peer
// closes the socket, sends the text message "close", misses pongs, or the
// broadcaster drops the sink after a failed write. In broadcast.mode
// "queued" the sink is wrapped in a broadcast.QueuedSink.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
