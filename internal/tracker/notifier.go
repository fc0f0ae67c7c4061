package tracker

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type EventType string

const (
	// EventCallState: a call slot changed aggregate state.
	EventCallState EventType = "call_state"
	// EventRinging: a new incoming or waiting leg appeared.
	EventRinging EventType = "ringing"
	// EventDisconnect: one connection went terminal.
	EventDisconnect EventType = "disconnect"
)

// Event is what upper layers receive on state-change fan-out.
type Event struct {
	Type       EventType       `json:"type"`
	Slot       string          `json:"slot,omitempty"`
	State      string          `json:"state,omitempty"`
	Connection *ConnectionInfo `json:"connection,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Notifier fans events out to subscribers over buffered channels.
// Slow subscribers lose events instead of stalling the worker.
type Notifier struct {
	mu     sync.Mutex
	subs   map[chan Event]struct{}
	buffer int
}

func NewNotifier(buffer int) *Notifier {
	return &Notifier{subs: make(map[chan Event]struct{}), buffer: buffer}
}

// Subscribe returns an event channel and its cancel func. Cancel is
// idempotent and closes the channel.
func (n *Notifier) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, n.buffer)
	n.mu.Lock()
	n.subs[ch] = struct{}{}
	n.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, ch)
			n.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (n *Notifier) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subs {
		select {
		case ch <- ev:
		default:
			log.Warn().Str("module", "tracker").Str("type", string(ev.Type)).Msg("subscriber full, dropping event")
		}
	}
}

func (n *Notifier) subscriberCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}
