package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifierFanOut(t *testing.T) {
	n := NewNotifier(4)
	a, cancelA := n.Subscribe()
	b, cancelB := n.Subscribe()
	defer cancelB()

	n.Publish(Event{Type: EventCallState, Slot: SlotForeground, State: "ACTIVE"})

	evA, evB := <-a, <-b
	assert.Equal(t, EventCallState, evA.Type)
	assert.Equal(t, evA.Slot, evB.Slot)
	assert.False(t, evA.Timestamp.IsZero())

	cancelA()
	cancelA() // idempotent
	assert.Equal(t, 1, n.subscriberCount())

	// Canceled subscribers no longer receive.
	n.Publish(Event{Type: EventDisconnect})
	_, open := <-a
	assert.False(t, open)
}

func TestNotifierDropsWhenSubscriberFull(t *testing.T) {
	n := NewNotifier(1)
	ch, cancel := n.Subscribe()
	defer cancel()

	n.Publish(Event{Type: EventCallState, State: "DIALING"})
	n.Publish(Event{Type: EventCallState, State: "ALERTING"})

	ev := <-ch
	require.Equal(t, "DIALING", ev.State)
	select {
	case ev := <-ch:
		t.Fatalf("expected second event dropped, got %v", ev)
	default:
	}
}
