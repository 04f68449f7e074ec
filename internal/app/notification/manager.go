// Package notification broadcasts playback state changes to subscribers.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/vplayer/internal/app/playback"
)

// sendTimeout bounds a single subscriber send during Broadcast.
const sendTimeout = 500 * time.Millisecond

// Notification is a playback state change.
type Notification struct {
	SequenceNo uint64
	State      playback.State
	At         time.Time
}

// Stream represents a notification stream for a subscriber.
type Stream interface {
	Send(Notification) error
}

// subscription represents a subscriber's subscription.
type subscription struct {
	id     string
	stream Stream
}

// Manager manages notification subscriptions and broadcasting.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	sequenceNo    uint64
	sequenceNoMu  sync.Mutex

	closeOnce sync.Once
	done      chan struct{}
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		subscriptions: make(map[string]*subscription),
		done:          make(chan struct{}),
	}
}

// Subscribe adds a new subscription and returns the subscription ID.
func (m *Manager) Subscribe(stream Stream) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.subscriptions[id] = &subscription{
		id:     id,
		stream: stream,
	}
	zlog.Debug().Msgf("notification: subscribed: id=%s", id)
	return id
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
	zlog.Debug().Msgf("notification: unsubscribed: id=%s", subscriptionID)
}

// NextSequenceNo returns the next sequence number and increments the counter.
func (m *Manager) NextSequenceNo() uint64 {
	m.sequenceNoMu.Lock()
	defer m.sequenceNoMu.Unlock()
	m.sequenceNo++
	return m.sequenceNo
}

// Snapshot builds a notification for state carrying the sequence number of
// the last broadcast. It neither sends it nor advances the counter.
func (m *Manager) Snapshot(state playback.State) Notification {
	m.sequenceNoMu.Lock()
	seq := m.sequenceNo
	m.sequenceNoMu.Unlock()

	return Notification{
		SequenceNo: seq,
		State:      state,
		At:         time.Now(),
	}
}

// Broadcast sends state to all subscribers and returns the notification sent.
// Each stream send is done in a goroutine with a timeout to prevent blocking.
func (m *Manager) Broadcast(state playback.State) Notification {
	notification := Notification{
		SequenceNo: m.NextSequenceNo(),
		State:      state,
		At:         time.Now(),
	}

	m.mu.RLock()
	// Copy subscriptions to avoid holding lock during sends
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	// Send to each subscriber in parallel with timeout
	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- s.stream.Send(notification)
			}()

			select {
			case err := <-done:
				if err != nil {
					zlog.Debug().Err(err).Msgf("notification: send failed: id=%s", s.id)
				}
			case <-ctx.Done():
				zlog.Debug().Msgf("notification: send timed out: id=%s", s.id)
			}
		}(sub)
	}

	// Wait for all sends to complete or timeout
	wg.Wait()
	return notification
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Done is closed by Close.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Close closes the manager and removes all subscriptions.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.subscriptions = make(map[string]*subscription)
		close(m.done)
	})
}
