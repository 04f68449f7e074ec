package page

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/vplayer/internal/app/playback"
	"github.com/osa030/vplayer/internal/infra/media"
)

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// seekRecorder wraps a simulated element and records seek targets.
type seekRecorder struct {
	*media.Simulated
	mu    sync.Mutex
	seeks []float64
}

func (r *seekRecorder) SetCurrentTime(sec float64) {
	r.mu.Lock()
	r.seeks = append(r.seeks, sec)
	r.mu.Unlock()
	r.Simulated.SetCurrentTime(sec)
}

func newFullTerminal(in string, el playback.MediaElement) (*Terminal, *syncBuffer) {
	out := &syncBuffer{}
	term := NewTerminal(strings.NewReader(in), out)
	ids := DefaultIDs()
	term.AddMedia(ids.Media, el)
	term.AddButton(ids.Play, "play")
	term.AddButton(ids.Pause, "pause")
	term.AddButton(ids.Seek, "seek")
	term.AddDisplay(ids.Status)
	return term, out
}

func TestWire_MissingElements(t *testing.T) {
	out := &syncBuffer{}
	term := NewTerminal(strings.NewReader(""), out)
	ids := DefaultIDs()
	term.AddButton(ids.Play, "play")
	term.AddDisplay(ids.Status)

	player, err := Wire(context.Background(), term, Binding{IDs: ids})

	assert.Nil(t, player)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingElements))
	for _, id := range []string{ids.Media, ids.Pause, ids.Seek} {
		assert.Contains(t, err.Error(), id)
	}
	assert.NotContains(t, err.Error(), ids.Play)
	assert.Empty(t, out.String(), "nothing is written when wiring fails")

	// Play button stays unbound.
	assert.True(t, term.Click("play"))
}

func TestWire_BindsControls(t *testing.T) {
	el := &seekRecorder{Simulated: media.NewSimulated(media.SimulatedConfig{DurationSec: 120})}
	defer el.Close()
	term, out := newFullTerminal("", el)

	var mu sync.Mutex
	var observed []playback.State
	player, err := Wire(context.Background(), term, Binding{
		IDs: DefaultIDs(),
		Observers: []func(playback.State){func(s playback.State) {
			mu.Lock()
			defer mu.Unlock()
			observed = append(observed, s)
		}},
	})
	require.NoError(t, err)
	defer player.Close()

	assert.Equal(t, "playbackState: ready\n", out.String())
	assert.Equal(t, playback.StateIdle, player.PlaybackState())

	require.True(t, term.Click("play"))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(observed) == 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, playback.StatePlaying, player.PlaybackState())

	require.True(t, term.Click("seek"))
	assert.Equal(t, playback.StatePlaying, player.PlaybackState())
	el.mu.Lock()
	assert.Equal(t, []float64{DefaultSeekTo}, el.seeks)
	el.mu.Unlock()

	require.True(t, term.Click("pause"))
	assert.Equal(t, playback.StatePaused, player.PlaybackState())

	assert.Equal(t, "playbackState: ready\n"+
		"playbackState: loading\n"+
		"playbackState: playing\n"+
		"playbackState: paused\n", out.String())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []playback.State{playback.StateLoading, playback.StatePlaying, playback.StatePaused}, observed)
}

func TestWire_CustomSeekTarget(t *testing.T) {
	el := &seekRecorder{Simulated: media.NewSimulated(media.SimulatedConfig{DurationSec: 120})}
	term, _ := newFullTerminal("", el)

	_, err := Wire(context.Background(), term, Binding{IDs: DefaultIDs(), SeekTo: 12.5})
	require.NoError(t, err)

	term.Click("seek")

	el.mu.Lock()
	defer el.mu.Unlock()
	assert.Equal(t, []float64{12.5}, el.seeks)
}

func TestWire_PlayFailureShowsError(t *testing.T) {
	el := media.NewSimulated(media.SimulatedConfig{DurationSec: 120, FailPlay: true})
	term, out := newFullTerminal("", el)

	player, err := Wire(context.Background(), term, Binding{IDs: DefaultIDs()})
	require.NoError(t, err)

	term.Click("play")

	require.Eventually(t, func() bool {
		return player.PlaybackState() == playback.StateError
	}, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return strings.HasSuffix(out.String(), "playbackState: error\n")
	}, 2*time.Second, 5*time.Millisecond)
}

func TestTerminal_Run(t *testing.T) {
	el := media.NewSimulated(media.SimulatedConfig{DurationSec: 120})
	defer el.Close()
	term, out := newFullTerminal("play\n\nbogus\n", el)

	var failed bool
	term.AddCommand("fail", func() { failed = true })

	player, err := Wire(context.Background(), term, Binding{IDs: DefaultIDs()})
	require.NoError(t, err)

	require.NoError(t, term.Run(context.Background()))

	require.Eventually(t, func() bool {
		return player.PlaybackState() == playback.StatePlaying
	}, 2*time.Second, 5*time.Millisecond)
	assert.Contains(t, out.String(), "commands: fail, pause, play, seek")
	assert.Contains(t, out.String(), `unknown command "bogus"`)
	assert.False(t, failed)

	assert.True(t, term.Click("fail"))
	assert.True(t, failed)
	assert.False(t, term.Click("stop"))
}

func TestTerminal_RunStopsOnCancel(t *testing.T) {
	r, w := newBlockingInput()
	defer w()
	term := NewTerminal(r, &syncBuffer{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- term.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// blockingReader blocks until closed.
type blockingReader struct {
	done chan struct{}
}

func (b *blockingReader) Read(p []byte) (int, error) {
	<-b.done
	return 0, errors.New("closed")
}

func newBlockingInput() (*blockingReader, func()) {
	r := &blockingReader{done: make(chan struct{})}
	return r, func() { close(r.done) }
}
