package spotify

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/zmb3/spotify/v2"

	"github.com/osa030/vplayer/internal/app/playback"
	"github.com/osa030/vplayer/internal/domain/track"
	"github.com/osa030/vplayer/internal/infra/media"
)

// requestTimeout bounds the background pause and seek requests.
const requestTimeout = 10 * time.Second

// snapshot is the part of the remote player state used to derive events.
type snapshot struct {
	playing  bool
	progress time.Duration
	duration time.Duration
	trackID  string
}

// Element is a media element controlling a Spotify Connect device.
// Native events are derived by polling the remote player state in Run.
type Element struct {
	*media.Emitter

	api          playerAPI
	trackURI     spotify.URI
	deviceID     *spotify.ID
	pollInterval time.Duration
	maxRetries   int
	retryDelay   time.Duration

	mu         sync.Mutex
	started    bool // track_uri was sent to the device
	last       snapshot
	failing    bool
	nowPlaying *track.Track
}

// NewElement creates a Spotify element using the given credentials.
func NewElement(ctx context.Context, creds Credentials, config ElementConfig) (*Element, error) {
	client, err := newClient(ctx, creds)
	if err != nil {
		return nil, err
	}
	return newElement(client, config), nil
}

func newElement(api playerAPI, config ElementConfig) *Element {
	e := &Element{
		Emitter:      media.NewEmitter(),
		api:          api,
		trackURI:     spotify.URI(track.URIFromID(track.ExtractID(config.TrackURI))),
		pollInterval: time.Duration(config.PollIntervalMs) * time.Millisecond,
		maxRetries:   3,
		retryDelay:   time.Second,
	}
	if config.DeviceID != "" {
		id := spotify.ID(config.DeviceID)
		e.deviceID = &id
	}
	return e
}

// Ensure Element implements playback.MediaElement.
var _ playback.MediaElement = (*Element)(nil)

// Play starts the configured track on the first call and resumes afterwards.
// It emits "waiting" before the request and returns when the Web API
// accepted or rejected it. When the last poll already saw the device
// playing, no transition will be polled, so "playing" is emitted here.
func (e *Element) Play(ctx context.Context) error {
	e.mu.Lock()
	opts := &spotify.PlayOptions{DeviceID: e.deviceID}
	if !e.started {
		opts.URIs = []spotify.URI{e.trackURI}
	}
	e.mu.Unlock()

	e.Dispatch(playback.EventWaiting)

	err := retry(ctx, e.maxRetries, e.retryDelay, func() error {
		return e.api.PlayOpt(ctx, opts)
	})
	if err != nil {
		return errors.Wrap(err, "failed to start playback")
	}

	e.mu.Lock()
	e.started = true
	alreadyPlaying := e.last.playing
	e.mu.Unlock()

	if alreadyPlaying {
		e.Dispatch(playback.EventPlaying)
	}
	return nil
}

// Pause sends the pause request in the background.
// A failed request emits "error".
func (e *Element) Pause() {
	go e.request("pause", func(ctx context.Context) error {
		return e.api.PauseOpt(ctx, &spotify.PlayOptions{DeviceID: e.deviceID})
	})
}

// SetCurrentTime sends a seek request in the background.
// Negative positions are sent as 0. A failed request emits "error".
func (e *Element) SetCurrentTime(sec float64) {
	ms := int(sec * 1000)
	if ms < 0 {
		ms = 0
	}
	go e.request("seek", func(ctx context.Context) error {
		return e.api.SeekOpt(ctx, ms, &spotify.PlayOptions{DeviceID: e.deviceID})
	})
}

func (e *Element) request(name string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	err := retry(ctx, e.maxRetries, e.retryDelay, func() error {
		return fn(ctx)
	})
	if err != nil {
		zlog.Error().Err(err).Msgf("spotify: %s request failed", name)
		e.Dispatch(playback.EventError)
	}
}

// NowPlaying returns the last track seen on the device, or nil.
func (e *Element) NowPlaying() *track.Track {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nowPlaying
}

// Run polls the device until ctx is done and emits the derived events.
func (e *Element) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	zlog.Info().Msgf("spotify: polling player state every %v", e.pollInterval)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.poll(ctx)
		}
	}
}

// poll reads the player state once and dispatches at most one event.
func (e *Element) poll(ctx context.Context) {
	state, err := e.api.PlayerState(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		e.mu.Lock()
		first := !e.failing
		e.failing = true
		e.mu.Unlock()
		if first {
			zlog.Error().Err(err).Msg("spotify: failed to read player state")
			e.Dispatch(playback.EventError)
		}
		return
	}

	cur := snapshot{}
	var nowPlaying *track.Track
	if state != nil {
		cur.playing = state.Playing
		cur.progress = time.Duration(state.Progress) * time.Millisecond
		if state.Item != nil {
			nowPlaying = convertTrack(state.Item)
			cur.duration = nowPlaying.Duration
			cur.trackID = nowPlaying.ID
		}
	}

	e.mu.Lock()
	prev := e.last
	e.last = cur
	e.failing = false
	if nowPlaying != nil && (e.nowPlaying == nil || e.nowPlaying.ID != nowPlaying.ID) {
		zlog.Info().Msgf("spotify: now playing %s (%s)", nowPlaying.Title(), nowPlaying.URI())
	}
	e.nowPlaying = nowPlaying
	e.mu.Unlock()

	if ev, ok := deriveEvent(prev, cur, e.pollInterval); ok {
		zlog.Debug().Msgf("spotify: derived event: event=%s progress=%v", ev, cur.progress)
		e.Dispatch(ev)
	}
}

// deriveEvent maps a change between two snapshots to a native event.
// A stop within one poll interval of the end of the track, or one that
// rewinds the track to 0, is reported as "ended".
func deriveEvent(prev, cur snapshot, interval time.Duration) (playback.EventType, bool) {
	switch {
	case cur.playing && !prev.playing:
		return playback.EventPlaying, true
	case !cur.playing && prev.playing:
		nearEnd := prev.duration > 0 && prev.progress+interval >= prev.duration
		rewound := cur.progress == 0 && prev.progress > 0
		if nearEnd || rewound {
			return playback.EventEnded, true
		}
		return playback.EventPause, true
	default:
		return 0, false
	}
}
