package core

import (
	"time"

	"github.com/google/uuid"

	"github.com/telodyne/cdmavoice/internal/domain"
)

// Connection is one call leg. It mirrors the aggregate state of its
// owning call unless it is independently hanging up or already
// disconnected. Mutated only by the tracker's serialized worker; no
// internal locking.
type Connection struct {
	id         string
	number     string
	index      int // driver leg index, 0 until the radio confirms
	isMT       bool
	createTime time.Time

	mirrored      domain.State
	hangupPending bool
	cause         domain.DisconnectCause
	lastDC        domain.DriverCall
	confirmed     bool
}

// NewConnection builds a leg for a driver snapshot with no matching
// tracked connection (mobile-terminated, or a leg this stack did not
// originate).
func NewConnection(dc domain.DriverCall) *Connection {
	return &Connection{
		id:         uuid.NewString(),
		number:     dc.Number,
		index:      dc.Index,
		isMT:       dc.IsMT,
		createTime: time.Now(),
		lastDC:     dc,
		confirmed:  true,
	}
}

// NewDialingConnection builds a locally-originated leg before the
// radio has reported any snapshot for it. It has no driver index yet.
func NewDialingConnection(number string) *Connection {
	return &Connection{
		id:         uuid.NewString(),
		number:     number,
		createTime: time.Now(),
		mirrored:   domain.StateDialing,
	}
}

func (c *Connection) ID() string            { return c.id }
func (c *Connection) Number() string        { return c.number }
func (c *Connection) Index() int            { return c.index }
func (c *Connection) IsMT() bool            { return c.isMT }
func (c *Connection) CreateTime() time.Time { return c.createTime }

// Confirmed reports whether the radio has ever reported this leg.
func (c *Connection) Confirmed() bool { return c.confirmed }

// LastDriverCall returns the snapshot this leg was last matched
// against. Zero value until confirmed.
func (c *Connection) LastDriverCall() domain.DriverCall { return c.lastDC }

// State returns the leg's logical state: DISCONNECTED once terminal,
// DISCONNECTING while a local hangup is pending, otherwise the state
// mirrored from the owning call.
func (c *Connection) State() domain.State {
	switch {
	case c.cause != domain.CauseNotDisconnected:
		return domain.StateDisconnected
	case c.hangupPending:
		return domain.StateDisconnecting
	default:
		return c.mirrored
	}
}

func (c *Connection) Disconnected() bool {
	return c.cause != domain.CauseNotDisconnected
}

func (c *Connection) HangupPending() bool { return c.hangupPending }

func (c *Connection) DisconnectCause() domain.DisconnectCause { return c.cause }

// MarkDisconnected makes the leg terminal. Idempotent: the first cause
// wins.
func (c *Connection) MarkDisconnected(cause domain.DisconnectCause) {
	if c.cause != domain.CauseNotDisconnected {
		return
	}
	c.cause = cause
	c.hangupPending = false
}

// ConfirmIndex adopts the driver-assigned leg index once the radio
// first reports a locally-originated leg.
func (c *Connection) ConfirmIndex(dc domain.DriverCall) {
	c.index = dc.Index
	c.lastDC = dc
	c.confirmed = true
}

// onHangupLocal marks the leg hangup-pending: the request went to the
// radio but no snapshot has confirmed the teardown yet.
func (c *Connection) onHangupLocal() {
	if c.Disconnected() {
		return
	}
	c.hangupPending = true
}

func (c *Connection) setMirrored(s domain.State) { c.mirrored = s }

func (c *Connection) noteDriverCall(dc domain.DriverCall) { c.lastDC = dc }
