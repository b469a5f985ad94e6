// Package panel serves the browser UI for the flashlight as embedded assets.
//
// Two files make up the UI: index.html renders the lamp and flashlight.js
// fetches /api/flashlight/current_state, then follows /api/flashlight/ws
// and repaints on every pushed state. Both are compiled into the binary
// with go:embed; Handler can serve them from a directory instead while
// iterating on the markup.
//
// Responses carry Cache-Control: no-cache so a redeployed binary is picked
// up on the next page load.
package panel
