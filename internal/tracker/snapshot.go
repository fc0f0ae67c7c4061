package tracker

import (
	"time"

	"github.com/telodyne/cdmavoice/internal/core"
)

// Slot names as used in snapshots, events and the HTTP surface.
const (
	SlotRinging    = "ringing"
	SlotForeground = "foreground"
	SlotBackground = "background"
)

// ConnectionInfo is a read-only view of one leg (no live pointers).
type ConnectionInfo struct {
	ID        string    `json:"id"`
	Number    string    `json:"number"`
	Index     int       `json:"index,omitempty"`
	IsMT      bool      `json:"is_mt"`
	State     string    `json:"state"`
	Cause     string    `json:"cause,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CallInfo is a read-only view of one call slot.
type CallInfo struct {
	Slot        string           `json:"slot"`
	State       string           `json:"state"`
	Multiparty  bool             `json:"multiparty"`
	Full        bool             `json:"full"`
	Connections []ConnectionInfo `json:"connections"`
}

// Snapshot is a consistent view of all three slots, produced on the
// tracker's worker so it never observes a half-applied poll.
type Snapshot struct {
	Ringing    CallInfo `json:"ringing"`
	Foreground CallInfo `json:"foreground"`
	Background CallInfo `json:"background"`
}

func connInfo(conn *core.Connection) ConnectionInfo {
	info := ConnectionInfo{
		ID:        conn.ID(),
		Number:    conn.Number(),
		Index:     conn.Index(),
		IsMT:      conn.IsMT(),
		State:     conn.State().String(),
		CreatedAt: conn.CreateTime(),
	}
	if conn.Disconnected() {
		info.Cause = conn.DisconnectCause().String()
	}
	return info
}

func callInfo(slot string, c *core.CdmaCall) CallInfo {
	conns := c.Connections()
	info := CallInfo{
		Slot:        slot,
		State:       c.State().String(),
		Multiparty:  c.IsMultiparty(),
		Full:        c.IsFull(),
		Connections: make([]ConnectionInfo, 0, len(conns)),
	}
	for _, conn := range conns {
		info.Connections = append(info.Connections, connInfo(conn))
	}
	return info
}
