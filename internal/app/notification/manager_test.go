package notification

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/vplayer/internal/app/playback"
)

type recordingStream struct {
	mu       sync.Mutex
	received []Notification
	err      error
	block    chan struct{}
}

func (s *recordingStream) Send(n Notification) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, n)
	return s.err
}

func (s *recordingStream) states() []playback.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]playback.State, len(s.received))
	for i, n := range s.received {
		out[i] = n.State
	}
	return out
}

func TestManager_Broadcast(t *testing.T) {
	m := NewManager()
	a := &recordingStream{}
	b := &recordingStream{err: errors.New("gone")}

	idA := m.Subscribe(a)
	idB := m.Subscribe(b)
	assert.NotEqual(t, idA, idB)
	assert.Equal(t, 2, m.SubscriberCount())

	n1 := m.Broadcast(playback.StateLoading)
	n2 := m.Broadcast(playback.StatePlaying)

	assert.Equal(t, uint64(1), n1.SequenceNo)
	assert.Equal(t, uint64(2), n2.SequenceNo)
	assert.Equal(t, []playback.State{playback.StateLoading, playback.StatePlaying}, a.states())
	assert.Equal(t, []playback.State{playback.StateLoading, playback.StatePlaying}, b.states())

	m.Unsubscribe(idA)
	m.Broadcast(playback.StatePaused)
	assert.Len(t, a.states(), 2)
	assert.Len(t, b.states(), 3)
}

func TestManager_BroadcastSkipsSlowSubscriber(t *testing.T) {
	m := NewManager()
	slow := &recordingStream{block: make(chan struct{})}
	defer close(slow.block)
	fast := &recordingStream{}
	m.Subscribe(slow)
	m.Subscribe(fast)

	start := time.Now()
	m.Broadcast(playback.StateEnded)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, []playback.State{playback.StateEnded}, fast.states())
}

func TestManager_SnapshotKeepsSequence(t *testing.T) {
	m := NewManager()

	s0 := m.Snapshot(playback.StateIdle)
	n1 := m.Broadcast(playback.StatePlaying)
	s1 := m.Snapshot(playback.StatePlaying)
	n2 := m.Broadcast(playback.StatePaused)

	assert.Equal(t, uint64(0), s0.SequenceNo)
	assert.Equal(t, uint64(1), n1.SequenceNo)
	assert.Equal(t, uint64(1), s1.SequenceNo)
	assert.Equal(t, uint64(2), n2.SequenceNo)
	assert.False(t, s0.At.IsZero())
}

func TestManager_Close(t *testing.T) {
	m := NewManager()
	m.Subscribe(&recordingStream{})

	m.Close()
	m.Close()

	assert.Equal(t, 0, m.SubscriberCount())
	select {
	case <-m.Done():
	default:
		require.Fail(t, "Done not closed")
	}
}
