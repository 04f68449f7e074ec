package playback

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "idle"},
		{StateLoading, "loading"},
		{StatePlaying, "playing"},
		{StatePaused, "paused"},
		{StateEnded, "ended"},
		{StateError, "error"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.String())
		})
	}
}

func TestParseState(t *testing.T) {
	for s := StateIdle; s <= StateError; s++ {
		got, err := ParseState(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseState("stopped")
	assert.True(t, errors.Is(err, ErrUnknownState))
}

func TestEventType_State(t *testing.T) {
	tests := []struct {
		event EventType
		name  string
		want  State
	}{
		{EventPlaying, "playing", StatePlaying},
		{EventPause, "pause", StatePaused},
		{EventEnded, "ended", StateEnded},
		{EventWaiting, "waiting", StateLoading},
		{EventError, "error", StateError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.event.String())
			assert.Equal(t, tt.want, tt.event.State())
		})
	}

	assert.Len(t, Events(), 5)
}
