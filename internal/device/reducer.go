package device

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/nerrad567/flashlight-core/internal/bridges/upstream"
)

// Notifier receives every state change produced by the Reducer.
type Notifier interface {
	Notify(ctx context.Context, snap Snapshot)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, snap Snapshot)

// Notify calls f(ctx, snap).
func (f NotifierFunc) Notify(ctx context.Context, snap Snapshot) {
	f(ctx, snap)
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Reducer applies commands to a State and reports each change.
//
// Apply is called from a single goroutine; the notifier runs on that
// goroutine before Apply returns.
type Reducer struct {
	state    *State
	notifier Notifier
	logger   Logger

	applied atomic.Uint64
	ignored atomic.Uint64
}

// NewReducer creates a reducer over state. A nil notifier discards changes.
func NewReducer(state *State, notifier Notifier) *Reducer {
	if notifier == nil {
		notifier = NotifierFunc(func(context.Context, Snapshot) {})
	}
	return &Reducer{state: state, notifier: notifier}
}

// SetLogger sets the logger for the reducer.
func (r *Reducer) SetLogger(logger Logger) {
	r.logger = logger
}

// Apply reduces one command into the state.
//
// ON and OFF set the power flag; COLOR stores the metadata truncated toward
// zero. Every applied command notifies exactly once with the new snapshot,
// even when the value did not change. A command that cannot be applied is
// logged and leaves the state untouched without notifying.
//
// Returns:
//   - bool: true if the command was applied and observers were notified
func (r *Reducer) Apply(ctx context.Context, cmd upstream.Command) bool {
	snap, err := r.reduce(cmd)
	if err != nil {
		r.ignored.Add(1)
		if r.logger != nil {
			r.logger.Warn("ignoring command", "command", cmd.String(), "error", err)
		}
		return false
	}

	r.applied.Add(1)
	if r.logger != nil {
		r.logger.Debug("state changed", "command", cmd.String(), "is_on", snap.IsOn, "color", snap.HexColor())
	}
	r.notifier.Notify(ctx, snap)
	return true
}

func (r *Reducer) reduce(cmd upstream.Command) (Snapshot, error) {
	switch cmd.Kind {
	case upstream.KindOn:
		return r.state.setOn(true), nil
	case upstream.KindOff:
		return r.state.setOn(false), nil
	case upstream.KindColor:
		color, err := colorValue(cmd.Metadata)
		if err != nil {
			return Snapshot{}, err
		}
		return r.state.setColor(color), nil
	default:
		return Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Kind)
	}
}

// colorValue truncates COLOR metadata to an integer colour.
func colorValue(metadata *float64) (int64, error) {
	if metadata == nil {
		return 0, ErrInvalidColor
	}
	v := *metadata
	if math.IsNaN(v) || math.IsInf(v, 0) || v >= math.MaxInt64 || v < math.MinInt64 {
		return 0, fmt.Errorf("%w: %v out of range", ErrInvalidColor, v)
	}
	return int64(v), nil
}

// Applied returns the number of commands applied since start.
func (r *Reducer) Applied() uint64 {
	return r.applied.Load()
}

// Ignored returns the number of commands rejected since start.
func (r *Reducer) Ignored() uint64 {
	return r.ignored.Load()
}
