package device

import (
	"encoding/json"
	"fmt"
	"sync"
)

// DefaultColor is the colour reported before any COLOR command arrives.
// It is wider than 24 bits on purpose so that clients can tell "never set"
// apart from any real colour.
const DefaultColor int64 = 0xDEADBEEF

// rgbMask keeps the low 24 bits when rendering a colour.
const rgbMask = 0xFFFFFF

// Snapshot is an immutable copy of the device state.
type Snapshot struct {
	IsOn  bool
	Color int64
}

// HexColor renders the low 24 bits of Color as "#rrggbb".
func (s Snapshot) HexColor() string {
	return fmt.Sprintf("#%06x", s.Color&rgbMask)
}

// View is the JSON shape of a snapshot sent to observers.
type View struct {
	IsTurnedOn bool   `json:"is_turned_on"`
	Color      string `json:"color"`
}

// View returns the observer representation of the snapshot.
func (s Snapshot) View() View {
	return View{IsTurnedOn: s.IsOn, Color: s.HexColor()}
}

// MarshalJSON encodes the snapshot as its View.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.View())
}

// State is the single device's mutable state.
//
// Only the Reducer mutates it. Readers use Snapshot, which never returns a
// torn value.
type State struct {
	mu    sync.RWMutex
	isOn  bool
	color int64
}

// NewState returns a state holding the startup defaults: on, DefaultColor.
func NewState() *State {
	return &State{
		isOn:  true,
		color: DefaultColor,
	}
}

// Snapshot returns a consistent copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{IsOn: s.isOn, Color: s.color}
}

// setOn updates the power flag and returns the resulting snapshot.
func (s *State) setOn(on bool) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isOn = on
	return Snapshot{IsOn: s.isOn, Color: s.color}
}

// setColor updates the colour and returns the resulting snapshot.
func (s *State) setColor(color int64) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.color = color
	return Snapshot{IsOn: s.isOn, Color: s.color}
}
