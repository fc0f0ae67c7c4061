// Package domain contains the leaf data types of the call stack:
// enumerations and immutable snapshots, no behavior beyond mapping.
package domain

import "fmt"

// State is the aggregate logical state of a Call, and the mirrored
// state of its member Connections.
type State int

const (
	StateIdle State = iota
	StateActive
	StateHolding
	StateDialing
	StateAlerting
	StateIncoming
	StateWaiting
	StateDisconnecting
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateActive:
		return "ACTIVE"
	case StateHolding:
		return "HOLDING"
	case StateDialing:
		return "DIALING"
	case StateAlerting:
		return "ALERTING"
	case StateIncoming:
		return "INCOMING"
	case StateWaiting:
		return "WAITING"
	case StateDisconnecting:
		return "DISCONNECTING"
	case StateDisconnected:
		return "DISCONNECTED"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// IsAlive reports whether the call still exists from the user's point
// of view: anything but idle or torn down.
func (s State) IsAlive() bool {
	return s != StateIdle && s != StateDisconnected && s != StateDisconnecting
}

// IsRinging reports an incoming leg that has not been answered yet.
func (s State) IsRinging() bool {
	return s == StateIncoming || s == StateWaiting
}

// IsDialing reports an outgoing leg the remote side has not answered yet.
func (s State) IsDialing() bool {
	return s == StateDialing || s == StateAlerting
}
