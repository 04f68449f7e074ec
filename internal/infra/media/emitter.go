// Package media provides host media elements for the playback wrapper.
package media

import (
	"sync"

	"github.com/osa030/vplayer/internal/app/playback"
)

// listener is a registered event callback.
type listener struct {
	id uint64
	fn func()
}

// Emitter keeps native event listeners for an element.
type Emitter struct {
	mu        sync.Mutex
	listeners map[playback.EventType][]listener
	nextID    uint64
}

// NewEmitter creates an empty Emitter.
func NewEmitter() *Emitter {
	return &Emitter{
		listeners: make(map[playback.EventType][]listener),
	}
}

// AddEventListener registers fn for event and returns a func removing it.
func (e *Emitter) AddEventListener(event playback.EventType, fn func()) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := e.nextID
	e.listeners[event] = append(e.listeners[event], listener{id: id, fn: fn})

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()

		ls := e.listeners[event]
		for i, l := range ls {
			if l.id == id {
				e.listeners[event] = append(ls[:i:i], ls[i+1:]...)
				return
			}
		}
	}
}

// Dispatch calls the listeners of event in registration order.
// Listeners run without the emitter lock held.
func (e *Emitter) Dispatch(event playback.EventType) {
	e.mu.Lock()
	ls := make([]listener, len(e.listeners[event]))
	copy(ls, e.listeners[event])
	e.mu.Unlock()

	for _, l := range ls {
		l.fn()
	}
}

// count returns the number of listeners registered for event.
func (e *Emitter) count(event playback.EventType) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners[event])
}
