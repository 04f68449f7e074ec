package playback

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// Errors
var (
	ErrNoElement   = errors.New("media element is required")
	ErrPlayRefused = errors.New("playback start failed")
)

// Options configures a Player.
type Options struct {
	Element       MediaElement // Host element, required
	OnStateChange func(State)  // Called on every distinct state change (optional)
}

// Player mirrors a MediaElement's native events into a State and exposes
// play/pause/seek on top of it.
//
// Transitions are not guarded: every native event sets its mapped state,
// including from StateEnded and StateError. When play and pause requests
// compete, the state is whatever the element reports last.
//
// Observer calls are serialized in the order the states were written. The
// observer may read PlaybackState but must not synchronously make the
// element dispatch another event.
type Player struct {
	// notifyMu is held across a state write and its observer call.
	notifyMu sync.Mutex

	mu    sync.RWMutex
	state State

	element       MediaElement
	onStateChange func(State)

	closeOnce sync.Once
	closed    bool
	removers  []func()
}

// NewPlayer creates a Player in StateIdle and subscribes to the element's
// native events.
func NewPlayer(opts Options) (*Player, error) {
	if opts.Element == nil {
		return nil, ErrNoElement
	}

	p := &Player{
		state:         StateIdle,
		element:       opts.Element,
		onStateChange: opts.OnStateChange,
	}

	for _, ev := range Events() {
		target := ev.State()
		remove := p.element.AddEventListener(ev, func() {
			p.updateState(target)
		})
		p.removers = append(p.removers, remove)
	}

	return p, nil
}

// updateState stores state and notifies the observer if it changed.
// The observer runs on the caller's goroutine without p.mu held, so the
// last state it receives is always the current one.
func (p *Player) updateState(state State) {
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()

	p.mu.Lock()
	if p.closed || p.state == state {
		p.mu.Unlock()
		return
	}
	p.state = state
	p.mu.Unlock()

	zlog.Debug().Msgf("playback: state changed: state=%s", state)

	if p.onStateChange != nil {
		p.onStateChange(state)
	}
}

// Play sets StateLoading and waits for the element to accept the request.
// A rejected request moves the player to StateError and is logged; Play
// itself never reports it. Use TryPlay to get the failure.
func (p *Player) Play(ctx context.Context) {
	_ = p.TryPlay(ctx)
}

// TryPlay is Play returning the element's failure.
// On success the element's "playing" event drives StatePlaying.
func (p *Player) TryPlay(ctx context.Context) error {
	p.updateState(StateLoading)

	if err := p.element.Play(ctx); err != nil {
		zlog.Error().Err(err).Msg("playback: error attempting to play")
		p.updateState(StateError)
		return errors.Mark(errors.Wrap(err, "play"), ErrPlayRefused)
	}
	return nil
}

// Pause asks the element to pause. The "pause" event sets StatePaused.
func (p *Player) Pause() {
	p.element.Pause()
}

// Seek sets the element's position. The value is passed through as is and
// the state does not change.
func (p *Player) Seek(sec float64) {
	p.element.SetCurrentTime(sec)
}

// PlaybackState returns the current state.
func (p *Player) PlaybackState() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Close removes every listener the Player registered. Events delivered
// afterwards no longer change the state. The element is left untouched.
func (p *Player) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		removers := p.removers
		p.removers = nil
		p.mu.Unlock()

		for _, remove := range removers {
			remove()
		}
	})
}
