package media

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/vplayer/internal/app/playback"
)

// eventLog records dispatched events in order.
type eventLog struct {
	mu     sync.Mutex
	events []playback.EventType
}

func (l *eventLog) listen(e *Emitter) {
	for _, ev := range playback.Events() {
		ev := ev
		e.AddEventListener(ev, func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.events = append(l.events, ev)
		})
	}
}

func (l *eventLog) snapshot() []playback.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]playback.EventType, len(l.events))
	copy(out, l.events)
	return out
}

func TestEmitter_DispatchOrderAndRemove(t *testing.T) {
	e := NewEmitter()
	var calls []string

	removeA := e.AddEventListener(playback.EventPlaying, func() { calls = append(calls, "a") })
	e.AddEventListener(playback.EventPlaying, func() { calls = append(calls, "b") })
	e.AddEventListener(playback.EventPause, func() { calls = append(calls, "pause") })

	e.Dispatch(playback.EventPlaying)
	assert.Equal(t, []string{"a", "b"}, calls)

	removeA()
	removeA()
	calls = nil
	e.Dispatch(playback.EventPlaying)
	assert.Equal(t, []string{"b"}, calls)
	assert.Equal(t, 1, e.count(playback.EventPlaying))
	assert.Equal(t, 1, e.count(playback.EventPause))
}

func TestDecodeSimulatedConfig(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]any
		want     SimulatedConfig
		wantErr  bool
	}{
		{
			name:     "defaults",
			settings: nil,
			want:     SimulatedConfig{DurationSec: 120, StartupDelayMs: 300},
		},
		{
			name:     "explicit values",
			settings: map[string]any{"duration_sec": 5, "startup_delay_ms": 10, "fail_play": true},
			want:     SimulatedConfig{DurationSec: 5, StartupDelayMs: 10, FailPlay: true},
		},
		{
			name:     "negative delay",
			settings: map[string]any{"startup_delay_ms": -1},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeSimulatedConfig(tt.settings)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSimulated_PlayRunsToEnd(t *testing.T) {
	s := NewSimulated(SimulatedConfig{DurationSec: 0.2, StartupDelayMs: 10})
	defer s.Close()
	log := &eventLog{}
	log.listen(s.Emitter)

	require.NoError(t, s.Play(context.Background()))
	assert.Equal(t, []playback.EventType{playback.EventWaiting, playback.EventPlaying}, log.snapshot())
	assert.False(t, s.paused())

	require.Eventually(t, func() bool {
		return len(log.snapshot()) == 3
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, playback.EventEnded, log.snapshot()[2])
	assert.True(t, s.paused())
	assert.InDelta(t, 0.2, s.Position(), 0.001)
}

func TestSimulated_PlayRejected(t *testing.T) {
	s := NewSimulated(SimulatedConfig{DurationSec: 10, FailPlay: true})
	log := &eventLog{}
	log.listen(s.Emitter)

	err := s.Play(context.Background())

	assert.True(t, errors.Is(err, ErrPlaybackRejected))
	assert.Empty(t, log.snapshot())
}

func TestSimulated_PlayWithoutSource(t *testing.T) {
	s := NewSimulated(SimulatedConfig{})

	err := s.Play(context.Background())

	assert.True(t, errors.Is(err, ErrNoSource))
}

func TestSimulated_PauseEmitsEvent(t *testing.T) {
	s := NewSimulated(SimulatedConfig{DurationSec: 10})
	defer s.Close()
	log := &eventLog{}
	log.listen(s.Emitter)

	s.Pause()
	assert.Empty(t, log.snapshot(), "pause while idle emits nothing")

	require.NoError(t, s.Play(context.Background()))
	s.Pause()

	assert.Equal(t, []playback.EventType{
		playback.EventWaiting, playback.EventPlaying, playback.EventPause,
	}, log.snapshot())
	assert.True(t, s.paused())
}

func TestSimulated_PauseInterruptsPendingPlay(t *testing.T) {
	s := NewSimulated(SimulatedConfig{DurationSec: 10, StartupDelayMs: 500})
	defer s.Close()
	log := &eventLog{}
	log.listen(s.Emitter)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Play(context.Background()) }()

	require.Eventually(t, func() bool {
		return len(log.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)
	s.Pause()

	err := <-errCh
	assert.True(t, errors.Is(err, ErrPlayInterrupted))
	assert.Equal(t, []playback.EventType{playback.EventWaiting, playback.EventPause}, log.snapshot())
}

func TestSimulated_PlayCancelled(t *testing.T) {
	s := NewSimulated(SimulatedConfig{DurationSec: 10, StartupDelayMs: 1000})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Play(ctx)

	assert.True(t, errors.Is(err, context.Canceled))
	assert.True(t, s.paused())
}

func TestSimulated_SetCurrentTimeClamps(t *testing.T) {
	s := NewSimulated(SimulatedConfig{DurationSec: 60})
	log := &eventLog{}
	log.listen(s.Emitter)

	s.SetCurrentTime(30)
	assert.InDelta(t, 30, s.Position(), 0.001)

	s.SetCurrentTime(500)
	assert.InDelta(t, 60, s.Position(), 0.001)

	s.SetCurrentTime(-3)
	assert.InDelta(t, 0, s.Position(), 0.001)

	assert.Empty(t, log.snapshot())
}

func TestSimulated_Fail(t *testing.T) {
	s := NewSimulated(SimulatedConfig{DurationSec: 10})
	log := &eventLog{}
	log.listen(s.Emitter)
	cause := errors.New("decode error")

	s.Fail(cause)

	assert.Equal(t, []playback.EventType{playback.EventError}, log.snapshot())
	assert.Equal(t, cause, s.failure())
}

func TestSimulated_DrivesPlayer(t *testing.T) {
	s := NewSimulated(SimulatedConfig{DurationSec: 0.15})
	defer s.Close()

	var mu sync.Mutex
	var states []playback.State
	p, err := playback.NewPlayer(playback.Options{
		Element: s,
		OnStateChange: func(st playback.State) {
			mu.Lock()
			defer mu.Unlock()
			states = append(states, st)
		},
	})
	require.NoError(t, err)
	defer p.Close()

	p.Play(context.Background())
	assert.Equal(t, playback.StatePlaying, p.PlaybackState())

	// Playing again must not leave the player loading.
	p.Play(context.Background())
	assert.Equal(t, playback.StatePlaying, p.PlaybackState())
	assert.False(t, s.paused())

	require.Eventually(t, func() bool {
		return p.PlaybackState() == playback.StateEnded
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []playback.State{
		playback.StateLoading, playback.StatePlaying,
		playback.StateLoading, playback.StatePlaying,
		playback.StateEnded,
	}, states)
}
