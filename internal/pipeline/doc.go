// Package pipeline runs the flashlight ingestion loop.
//
// The Supervisor ranges over the upstream command sequence and hands each
// command to the reducer, which updates the device state and notifies the
// broadcaster before the next command is read. One goroutine owns the whole
// chain:
//
//	upstream.Reader ──► device.Reducer ──► broadcast.Broadcaster
//
// Run returns nil on cancellation. When the reader gives up (reconnect
// budget exhausted or a transport error) Run returns an error wrapping
// ErrPipelineFatal and the process exits non-zero.
package pipeline
