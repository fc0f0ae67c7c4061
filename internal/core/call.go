package core

import "github.com/telodyne/cdmavoice/internal/domain"

// Phone is the owning phone handle, passed through to upper layers.
type Phone interface {
	ID() string
}

// NewPhone returns a plain phone handle with a fixed id.
func NewPhone(id string) Phone { return phoneHandle(id) }

type phoneHandle string

func (p phoneHandle) ID() string { return string(p) }

// Hangupper is the narrow tracker-side handle a Call delegates hangup
// to. The tracker arbitrates eligibility and talks to the radio; the
// call itself never does.
type Hangupper interface {
	HangupCall(c Call) error
}

// Call is the capability set visible to upper layers. All mutation
// happens through the concrete type's tracker-facing operations; a
// Call exposes no direct mutators.
type Call interface {
	// Connections returns the member connections in attach order.
	// The slice is a copy; the members are shared.
	Connections() []*Connection

	// IsMultiparty reports more than one member connection.
	IsMultiparty() bool

	// Hangup asks the owning tracker to tear the call down. The
	// request is fire-and-forget toward the radio: the call stays in
	// its prior lifecycle until a later snapshot confirms. Returns a
	// *CallStateError when the call is already disconnecting,
	// disconnected, or idle.
	Hangup() error

	// Phone returns the owning phone handle.
	Phone() Phone

	// State returns the current aggregate state.
	State() domain.State

	String() string
}
