package device

import (
	"context"
	"time"
)

// History source values.
const (
	HistorySourceUpstream = "upstream"
	HistorySourceStartup  = "startup"
)

// HistoryEntry is one recorded state change.
type HistoryEntry struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// IsOn and Color are the snapshot after the change.
	IsOn  bool  `json:"is_turned_on"`
	Color int64 `json:"-"`

	// HexColor is Color rendered as "#rrggbb".
	HexColor string `json:"color"`

	// Source identifies what produced the change (upstream, startup).
	Source string `json:"source"`

	// CreatedAt is when the change was recorded (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// Snapshot returns the state recorded by the entry.
func (e HistoryEntry) Snapshot() Snapshot {
	return Snapshot{IsOn: e.IsOn, Color: e.Color}
}

// HistoryRepository stores the state changes seen since process start.
//
// Implementations must be safe for concurrent use and use UTC timestamps.
type HistoryRepository interface {
	// Record stores a snapshot with the given source.
	Record(ctx context.Context, snap Snapshot, source string) error

	// List returns up to limit entries, newest first.
	List(ctx context.Context, limit int) ([]HistoryEntry, error)

	// Clear removes all entries and returns how many were deleted.
	Clear(ctx context.Context) (int64, error)
}
