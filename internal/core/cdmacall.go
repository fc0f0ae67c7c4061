package core

import (
	"github.com/rs/zerolog/log"

	"github.com/telodyne/cdmavoice/internal/domain"
)

// StateFromDriverState maps the closed raw driver enumeration to the
// logical call state. Total over the supported set; anything else is a
// *DriverProtocolError and the caller must abort that update.
func StateFromDriverState(ds domain.DriverState) (domain.State, error) {
	switch ds {
	case domain.DriverActive:
		return domain.StateActive, nil
	case domain.DriverHolding:
		return domain.StateHolding, nil
	case domain.DriverDialing:
		return domain.StateDialing, nil
	case domain.DriverAlerting:
		return domain.StateAlerting, nil
	case domain.DriverIncoming:
		return domain.StateIncoming, nil
	case domain.DriverWaiting:
		return domain.StateWaiting, nil
	default:
		return domain.StateIdle, &DriverProtocolError{Raw: ds}
	}
}

// CdmaCall is the CDMA variant of Call: multiparty by member count,
// fixed conference capacity owned by the tracker, aggregate state
// derived from driver snapshots. The tracker's serialized worker is
// the only mutator; upper layers see the Call interface.
type CdmaCall struct {
	phone      Phone
	owner      Hangupper
	maxPerCall int

	state domain.State
	conns []*Connection
}

var _ Call = (*CdmaCall)(nil)

// NewCdmaCall builds an idle call. maxPerCall is the conference cap
// the tracker enforces; the call only answers IsFull against it.
func NewCdmaCall(phone Phone, owner Hangupper, maxPerCall int) *CdmaCall {
	return &CdmaCall{phone: phone, owner: owner, maxPerCall: maxPerCall}
}

func (c *CdmaCall) Connections() []*Connection {
	out := make([]*Connection, len(c.conns))
	copy(out, c.conns)
	return out
}

func (c *CdmaCall) IsMultiparty() bool { return len(c.conns) > 1 }

func (c *CdmaCall) Hangup() error { return c.owner.HangupCall(c) }

func (c *CdmaCall) Phone() Phone { return c.phone }

func (c *CdmaCall) State() domain.State { return c.state }

func (c *CdmaCall) String() string { return c.state.String() }

// IsFull reports that no further connection can be conferenced in.
func (c *CdmaCall) IsFull() bool { return len(c.conns) == c.maxPerCall }

// Attach adds a connection and takes the aggregate state from its
// snapshot. Capacity is the tracker's precondition, not re-checked
// here. Returns the mapping error unapplied if the raw state is
// outside the closed set.
func (c *CdmaCall) Attach(conn *Connection, dc domain.DriverCall) error {
	st, err := StateFromDriverState(dc.State)
	if err != nil {
		return err
	}
	c.conns = append(c.conns, conn)
	conn.noteDriverCall(dc)
	c.setState(st)
	return nil
}

// AttachFake seeds the aggregate state directly, bypassing the driver
// mapping. Used for locally-originated legs before the radio has
// confirmed a snapshot.
func (c *CdmaCall) AttachFake(conn *Connection, state domain.State) {
	c.conns = append(c.conns, conn)
	c.setState(state)
}

// ConnectionDisconnected re-evaluates the AND-aggregation after a
// member went terminal. Flips the call to DISCONNECTED and returns
// true exactly once, when every member reports DISCONNECTED; once
// terminal it always returns false.
func (c *CdmaCall) ConnectionDisconnected(conn *Connection) bool {
	if c.state == domain.StateDisconnected {
		return false
	}
	for _, cn := range c.conns {
		if cn.State() != domain.StateDisconnected {
			return false
		}
	}
	c.state = domain.StateDisconnected
	log.Debug().Str("module", "core.call").Str("conn", conn.ID()).Msg("last connection disconnected, call is down")
	return true
}

// Detach removes a connection; absent members are a tolerated no-op.
// An emptied call is recycled to IDLE, never destroyed.
func (c *CdmaCall) Detach(conn *Connection) {
	for i, cn := range c.conns {
		if cn == conn {
			c.conns = append(c.conns[:i], c.conns[i+1:]...)
			break
		}
	}
	if len(c.conns) == 0 {
		c.state = domain.StateIdle
	}
}

// Update recomputes the aggregate state from a fresh snapshot and
// reports whether it changed, driving the tracker's notification
// fan-out. A protocol violation aborts the update untouched.
func (c *CdmaCall) Update(conn *Connection, dc domain.DriverCall) (bool, error) {
	st, err := StateFromDriverState(dc.State)
	if err != nil {
		return false, err
	}
	conn.noteDriverCall(dc)
	changed := st != c.state
	c.setState(st)
	return changed, nil
}

// OnHangupLocal propagates a local hangup to every member and
// optimistically flips the aggregate to DISCONNECTING before any radio
// confirmation. If the radio rejects the request a later snapshot
// rolls the state back through Update.
func (c *CdmaCall) OnHangupLocal() {
	for _, cn := range c.conns {
		cn.onHangupLocal()
	}
	c.state = domain.StateDisconnecting
}

// ClearDisconnected sweeps DISCONNECTED members out of the set.
// Retain-and-compact: the surviving set is built explicitly rather
// than deleting by index. An emptied call resets to IDLE.
func (c *CdmaCall) ClearDisconnected() {
	kept := c.conns[:0]
	for _, cn := range c.conns {
		if cn.State() != domain.StateDisconnected {
			kept = append(kept, cn)
		}
	}
	for i := len(kept); i < len(c.conns); i++ {
		c.conns[i] = nil
	}
	c.conns = kept
	if len(c.conns) == 0 {
		c.state = domain.StateIdle
	}
}

func (c *CdmaCall) setState(s domain.State) {
	if s != c.state {
		log.Debug().Str("module", "core.call").Stringer("from", c.state).Stringer("to", s).Msg("aggregate state change")
	}
	c.state = s
	for _, cn := range c.conns {
		cn.setMirrored(s)
	}
}
