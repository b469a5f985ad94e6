package device

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/flashlight-core/internal/bridges/upstream"
)

// recordingNotifier captures every notification in order.
type recordingNotifier struct {
	snaps []Snapshot
}

func (n *recordingNotifier) Notify(_ context.Context, snap Snapshot) {
	n.snaps = append(n.snaps, snap)
}

func TestReducerApply(t *testing.T) {
	tests := []struct {
		name  string
		start Snapshot
		cmd   upstream.Command
		want  Snapshot
	}{
		{
			name:  "on",
			start: Snapshot{IsOn: false, Color: 5},
			cmd:   upstream.On(),
			want:  Snapshot{IsOn: true, Color: 5},
		},
		{
			name:  "off",
			start: Snapshot{IsOn: true, Color: 5},
			cmd:   upstream.Off(),
			want:  Snapshot{IsOn: false, Color: 5},
		},
		{
			name:  "color keeps power flag",
			start: Snapshot{IsOn: false, Color: 5},
			cmd:   upstream.Color(0xFF69B4),
			want:  Snapshot{IsOn: false, Color: 0xFF69B4},
		},
		{
			name:  "on when already on",
			start: Snapshot{IsOn: true, Color: 5},
			cmd:   upstream.On(),
			want:  Snapshot{IsOn: true, Color: 5},
		},
		{
			name:  "metadata on ON ignored",
			start: Snapshot{IsOn: false, Color: 5},
			cmd:   upstream.Command{Kind: upstream.KindOn, Metadata: ptr(123)},
			want:  Snapshot{IsOn: true, Color: 5},
		},
		{
			name:  "fractional color truncated",
			start: Snapshot{IsOn: true, Color: 5},
			cmd:   upstream.Command{Kind: upstream.KindColor, Metadata: ptr(255.9)},
			want:  Snapshot{IsOn: true, Color: 255},
		},
		{
			name:  "negative color truncated toward zero",
			start: Snapshot{IsOn: true, Color: 5},
			cmd:   upstream.Command{Kind: upstream.KindColor, Metadata: ptr(-1.5)},
			want:  Snapshot{IsOn: true, Color: -1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &State{isOn: tt.start.IsOn, color: tt.start.Color}
			notifier := &recordingNotifier{}
			r := NewReducer(state, notifier)

			require.True(t, r.Apply(context.Background(), tt.cmd))

			assert.Equal(t, tt.want, state.Snapshot())
			require.Len(t, notifier.snaps, 1, "exactly one notification per applied command")
			assert.Equal(t, tt.want, notifier.snaps[0])
			assert.Equal(t, uint64(1), r.Applied())
		})
	}
}

func TestReducerRejectsWithoutNotifying(t *testing.T) {
	tests := []struct {
		name    string
		cmd     upstream.Command
		wantErr error
	}{
		{name: "unknown kind", cmd: upstream.Command{Kind: "BLINK"}, wantErr: ErrUnknownCommand},
		{name: "empty kind", cmd: upstream.Command{}, wantErr: ErrUnknownCommand},
		{name: "color without metadata", cmd: upstream.Command{Kind: upstream.KindColor}, wantErr: ErrInvalidColor},
		{name: "color NaN", cmd: upstream.Command{Kind: upstream.KindColor, Metadata: ptr(math.NaN())}, wantErr: ErrInvalidColor},
		{name: "color overflow", cmd: upstream.Command{Kind: upstream.KindColor, Metadata: ptr(1e300)}, wantErr: ErrInvalidColor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := NewState()
			notifier := &recordingNotifier{}
			r := NewReducer(state, notifier)

			_, err := r.reduce(tt.cmd)
			assert.ErrorIs(t, err, tt.wantErr)

			assert.False(t, r.Apply(context.Background(), tt.cmd))
			assert.Equal(t, NewState().Snapshot(), state.Snapshot())
			assert.Empty(t, notifier.snaps)
			assert.Equal(t, uint64(1), r.Ignored())
		})
	}
}

func TestReducerSequence(t *testing.T) {
	state := NewState()
	notifier := &recordingNotifier{}
	r := NewReducer(state, notifier)
	ctx := context.Background()

	for _, cmd := range []upstream.Command{
		upstream.Color(0xFF69B4),
		upstream.Off(),
		{Kind: "BLINK"},
		upstream.Color(0x00BFFF),
		upstream.On(),
	} {
		r.Apply(ctx, cmd)
	}

	assert.Equal(t, []Snapshot{
		{IsOn: true, Color: 0xFF69B4},
		{IsOn: false, Color: 0xFF69B4},
		{IsOn: false, Color: 0x00BFFF},
		{IsOn: true, Color: 0x00BFFF},
	}, notifier.snaps)
	assert.Equal(t, uint64(4), r.Applied())
	assert.Equal(t, uint64(1), r.Ignored())
}

func TestReducerNilNotifier(t *testing.T) {
	state := NewState()
	r := NewReducer(state, nil)

	assert.True(t, r.Apply(context.Background(), upstream.Off()))
	assert.False(t, state.Snapshot().IsOn)
}

func TestNotifierFunc(t *testing.T) {
	var got Snapshot
	r := NewReducer(NewState(), NotifierFunc(func(_ context.Context, snap Snapshot) {
		got = snap
	}))

	r.Apply(context.Background(), upstream.Color(0x123456))
	assert.Equal(t, int64(0x123456), got.Color)
}

func ptr(v float64) *float64 { return &v }
