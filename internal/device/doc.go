// Package device holds the flashlight's state and the reducer that mutates it.
//
// # Architecture
//
//	upstream.Command ──► Reducer.Apply ──► State (RWMutex)
//	                          │
//	                          └──► Notifier.Notify(Snapshot) ──► broadcast
//
// The State is created with the startup defaults (on, colour 0xDEADBEEF).
// The default colour does not fit in 24 bits; rendered as "#rrggbb" it shows
// its low 24 bits ("#adbeef").
//
// # Reduction
//
//   - ON sets IsOn to true
//   - OFF sets IsOn to false
//   - COLOR sets Color to the metadata truncated toward zero
//
// Every applied command notifies once, synchronously, with the resulting
// snapshot. Unknown kinds are logged and dropped without notifying.
//
// # History
//
// SQLiteHistoryRepository records snapshots in the state_history table for
// the lifetime of the process. It is cleared at startup; the service does
// not persist state across restarts.
//
// # Thread Safety
//
// State.Snapshot may be called from any goroutine. Reducer.Apply is called
// from the pipeline goroutine only.
package device
