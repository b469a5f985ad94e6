package device

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStateDefaults(t *testing.T) {
	snap := NewState().Snapshot()

	assert.True(t, snap.IsOn)
	assert.Equal(t, int64(0xDEADBEEF), snap.Color)
	assert.Equal(t, "#adbeef", snap.HexColor())
}

func TestSnapshotHexColor(t *testing.T) {
	tests := []struct {
		color int64
		want  string
	}{
		{0, "#000000"},
		{0xFF69B4, "#ff69b4"},
		{0x00BFFF, "#00bfff"},
		{0xFFFFFF, "#ffffff"},
		{0x1000000, "#000000"},
		{-1, "#ffffff"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Snapshot{Color: tt.color}.HexColor(), "color %#x", tt.color)
	}
}

func TestSnapshotJSON(t *testing.T) {
	data, err := json.Marshal(Snapshot{IsOn: false, Color: 0xFF69B4})
	require.NoError(t, err)
	assert.JSONEq(t, `{"is_turned_on":false,"color":"#ff69b4"}`, string(data))
}

func TestStateSnapshotNeverTorn(t *testing.T) {
	s := NewState()

	// Writers move the state between two consistent pairs; readers must
	// only ever observe one of them.
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			s.mu.Lock()
			s.isOn, s.color = false, 1
			s.mu.Unlock()
			s.mu.Lock()
			s.isOn, s.color = true, 2
			s.mu.Unlock()
		}
	}()

	for i := 0; i < 10000; i++ {
		snap := s.Snapshot()
		if snap.Color == DefaultColor {
			continue
		}
		valid := (!snap.IsOn && snap.Color == 1) || (snap.IsOn && snap.Color == 2)
		require.True(t, valid, "torn snapshot %+v", snap)
	}
	close(stop)
	wg.Wait()
}
