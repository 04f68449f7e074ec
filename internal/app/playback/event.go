package playback

import "context"

// EventType represents a native event emitted by a media element.
type EventType int

const (
	EventPlaying EventType = iota // Playback started or resumed
	EventPause                    // Playback paused
	EventEnded                    // Media reached its end
	EventWaiting                  // Element is buffering
	EventError                    // Element failed
)

// String returns the native event name.
func (e EventType) String() string {
	switch e {
	case EventPlaying:
		return "playing"
	case EventPause:
		return "pause"
	case EventEnded:
		return "ended"
	case EventWaiting:
		return "waiting"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// State returns the playback state the event maps to.
func (e EventType) State() State {
	switch e {
	case EventPlaying:
		return StatePlaying
	case EventPause:
		return StatePaused
	case EventEnded:
		return StateEnded
	case EventWaiting:
		return StateLoading
	default:
		return StateError
	}
}

// Events lists the native events a Player subscribes to.
func Events() []EventType {
	return []EventType{EventPlaying, EventPause, EventEnded, EventWaiting, EventError}
}

// MediaElement is the host-provided playback element.
// The Player never owns or closes it.
type MediaElement interface {
	// Play requests playback and returns once the host accepted or rejected it.
	Play(ctx context.Context) error
	// Pause requests a pause without waiting for it.
	Pause()
	// SetCurrentTime sets the playback position in seconds.
	SetCurrentTime(sec float64)
	// AddEventListener subscribes fn to event and returns a func removing it.
	AddEventListener(event EventType, fn func()) (remove func())
}
