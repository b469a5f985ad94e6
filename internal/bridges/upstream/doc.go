// Package upstream reads flashlight commands from the upstream TCP source.
//
// The upstream is a single peer that writes serialised commands back to back
// on a persistent byte stream, with no length prefix or newline. Each command
// is a JSON object and the first '}' ends it:
//
//	{"command":"COLOR","metadata":16738740}{"command":"ON"}{"command":"OFF"}
//
// # Architecture
//
//	┌──────────────┐   TCP    ┌──────────────┐  iter.Seq2  ┌──────────────┐
//	│   Upstream   │─────────►│    Reader    │────────────►│   Pipeline   │
//	│   (peer)     │          │  + Decode    │  Command    │  Supervisor  │
//	└──────────────┘          └──────────────┘             └──────────────┘
//
// # Reader States
//
//	Idle ──► Connecting ──► Reading ──► Reconnecting ──► Connecting ...
//	              │             │             │
//	              └─────────────┴─────────────┴──────► Terminated
//
// A clean end of stream moves the reader to Reconnecting. Each reconnect
// cycle consumes one attempt; the count resets once a command is decoded on
// the new connection. When the count exceeds MaxReconnectAttempts the
// sequence ends with ErrReconnectExhausted. A failed initial dial or a read
// error other than EOF ends it with ErrTransport.
//
// Malformed payloads are logged, counted and skipped. They never end the
// stream.
//
// # Usage
//
//	reader, err := upstream.NewReader(upstream.Config{
//	    Address:              "127.0.0.1:9999",
//	    MaxReconnectAttempts: 5,
//	})
//	if err != nil {
//	    return err
//	}
//	for cmd, err := range reader.Commands(ctx) {
//	    if err != nil {
//	        return err
//	    }
//	    handle(cmd)
//	}
//
// # Development Upstream
//
// MockServer cycles COLOR(0xFF69B4), ON, COLOR(0x00BFFF), OFF on every
// connection. cmd/mockcommands runs it standalone.
//
// # Thread Safety
//
// A Reader's sequence is consumed by one goroutine. Stats, State and
// HealthCheck are safe for concurrent use.
package upstream
