package media

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/vplayer/internal/app/playback"
)

// Errors
var (
	ErrPlaybackRejected = errors.New("playback request rejected")
	ErrNoSource         = errors.New("no media source loaded")
	ErrPlayInterrupted  = errors.New("play request interrupted by pause")
)

// SimulatedConfig holds the simulated element settings.
type SimulatedConfig struct {
	DurationSec    float64 `yaml:"duration_sec" mapstructure:"duration_sec" default:"120" validate:"gte=0"`
	StartupDelayMs int     `yaml:"startup_delay_ms" mapstructure:"startup_delay_ms" default:"300" validate:"gte=0,lte=30000"`
	FailPlay       bool    `yaml:"fail_play" mapstructure:"fail_play"`
}

// DecodeSimulatedConfig decodes backend settings into a SimulatedConfig.
func DecodeSimulatedConfig(settings map[string]any) (SimulatedConfig, error) {
	var config SimulatedConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return config, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return config, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return config, errors.Wrap(err, "validation failed")
	}
	return config, nil
}

// Simulated is an in-process media element driven by wall-clock timers.
// It emits the same native events a real element would.
type Simulated struct {
	*Emitter

	mu sync.Mutex

	duration     time.Duration
	startupDelay time.Duration
	failPlay     bool

	playing   bool
	pending   bool          // Play waiting for its startup delay
	position  time.Duration // Position at startedAt (or current when not playing)
	startedAt time.Time
	lastErr   error

	// gen invalidates pending starts and end timers on pause/seek/fail.
	gen         uint64
	timerCancel func()
}

// NewSimulated creates a simulated element.
func NewSimulated(config SimulatedConfig) *Simulated {
	return &Simulated{
		Emitter:      NewEmitter(),
		duration:     time.Duration(config.DurationSec * float64(time.Second)),
		startupDelay: time.Duration(config.StartupDelayMs) * time.Millisecond,
		failPlay:     config.FailPlay,
	}
}

// Ensure Simulated implements playback.MediaElement.
var _ playback.MediaElement = (*Simulated)(nil)

// Play emits "waiting", waits for the startup delay and emits "playing".
// It returns once playback started or the request was rejected. On an
// element that is already playing it only emits "playing" again.
func (s *Simulated) Play(ctx context.Context) error {
	s.mu.Lock()
	if s.failPlay {
		s.mu.Unlock()
		return ErrPlaybackRejected
	}
	if s.duration <= 0 {
		s.mu.Unlock()
		return ErrNoSource
	}
	if s.playing {
		s.mu.Unlock()
		s.Dispatch(playback.EventPlaying)
		return nil
	}
	s.pending = true
	gen := s.gen
	s.mu.Unlock()

	s.Dispatch(playback.EventWaiting)

	if s.startupDelay > 0 {
		timer := time.NewTimer(s.startupDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			s.mu.Lock()
			if s.gen == gen {
				s.pending = false
			}
			s.mu.Unlock()
			return errors.Wrap(ctx.Err(), "play")
		case <-timer.C:
		}
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return ErrPlayInterrupted
	}
	if s.playing {
		// A concurrent Play won the race.
		s.mu.Unlock()
		s.Dispatch(playback.EventPlaying)
		return nil
	}
	s.pending = false
	if s.position >= s.duration {
		s.position = 0
	}
	s.playing = true
	s.startedAt = toWallTime(time.Now())
	s.armEndTimerLocked()
	s.mu.Unlock()

	zlog.Debug().Msgf("media: simulated playback started: position=%v duration=%v", s.Position(), s.duration)
	s.Dispatch(playback.EventPlaying)
	return nil
}

// Pause stops playback and emits "pause". A pending Play is interrupted.
func (s *Simulated) Pause() {
	s.mu.Lock()
	active := s.playing || s.pending
	if s.playing {
		s.position = s.currentLocked()
		s.playing = false
	}
	s.pending = false
	s.gen++
	s.stopEndTimerLocked()
	s.mu.Unlock()

	if active {
		s.Dispatch(playback.EventPause)
	}
}

// SetCurrentTime moves the position, clamped to the media duration.
func (s *Simulated) SetCurrentTime(sec float64) {
	pos := time.Duration(sec * float64(time.Second))
	if pos < 0 {
		pos = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if pos > s.duration {
		pos = s.duration
	}
	s.position = pos
	if s.playing {
		s.startedAt = toWallTime(time.Now())
		s.gen++
		s.armEndTimerLocked()
	}
}

// Fail puts the element in a failed state and emits "error".
func (s *Simulated) Fail(err error) {
	s.mu.Lock()
	if s.playing {
		s.position = s.currentLocked()
		s.playing = false
	}
	s.pending = false
	s.gen++
	s.stopEndTimerLocked()
	s.lastErr = err
	s.mu.Unlock()

	zlog.Warn().Err(err).Msg("media: simulated element failed")
	s.Dispatch(playback.EventError)
}

// failure returns the error passed to the last Fail call.
func (s *Simulated) failure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Position returns the current position in seconds.
func (s *Simulated) Position() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLocked().Seconds()
}

// paused reports whether the element is not playing.
func (s *Simulated) paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.playing
}

// Close stops the end timer.
func (s *Simulated) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.stopEndTimerLocked()
}

func (s *Simulated) currentLocked() time.Duration {
	if !s.playing {
		return s.position
	}
	pos := s.position + toWallTime(time.Now()).Sub(s.startedAt)
	if pos > s.duration {
		pos = s.duration
	}
	return pos
}

func (s *Simulated) armEndTimerLocked() {
	s.stopEndTimerLocked()

	gen := s.gen
	remaining := s.duration - s.position
	s.timerCancel = startWallClockTimer(remaining, func() {
		s.mu.Lock()
		if s.gen != gen || !s.playing {
			s.mu.Unlock()
			return
		}
		s.playing = false
		s.position = s.duration
		s.timerCancel = nil
		s.mu.Unlock()

		zlog.Debug().Msg("media: simulated playback ended")
		s.Dispatch(playback.EventEnded)
	})
}

func (s *Simulated) stopEndTimerLocked() {
	if s.timerCancel != nil {
		s.timerCancel()
		s.timerCancel = nil
	}
}

// startWallClockTimer starts a timer that triggers callback after duration, using wall clock.
// Returns a cancel function to stop the timer.
func startWallClockTimer(duration time.Duration, callback func()) func() {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		endTime := toWallTime(time.Now()).Add(duration)
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !toWallTime(time.Now()).Before(endTime) {
					callback()
					return
				}
			}
		}
	}()

	return cancel
}

// tickInterval is the resolution of wall-clock timers.
const tickInterval = 50 * time.Millisecond

// toWallTime returns the time with monotonic clock stripped.
func toWallTime(t time.Time) time.Time {
	return time.Unix(t.Unix(), int64(t.Nanosecond()))
}
