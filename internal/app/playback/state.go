// Package playback mirrors a host media element's native events into a playback state.
package playback

import "github.com/cockroachdb/errors"

// ErrUnknownState is returned by ParseState for an unrecognized name.
var ErrUnknownState = errors.New("unknown playback state")

// State represents the playback state.
type State int

const (
	StateIdle    State = iota // Nothing requested yet
	StateLoading              // Start requested or element buffering
	StatePlaying              // Element reports playback
	StatePaused               // Element reports pause
	StateEnded                // Element reached the end of the media
	StateError                // Element or start request failed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateEnded:
		return "ended"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseState returns the state whose String form is name.
func ParseState(name string) (State, error) {
	for s := StateIdle; s <= StateError; s++ {
		if s.String() == name {
			return s, nil
		}
	}
	return StateIdle, errors.Wrapf(ErrUnknownState, "%q", name)
}
