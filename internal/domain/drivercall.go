package domain

import "fmt"

// DriverState is the raw per-leg state reported by the radio driver.
// The set is closed; anything else on the wire is a protocol violation
// that the core refuses to coerce.
type DriverState int

const (
	DriverActive DriverState = iota
	DriverHolding
	DriverDialing
	DriverAlerting
	DriverIncoming
	DriverWaiting
)

func (s DriverState) String() string {
	switch s {
	case DriverActive:
		return "ACTIVE"
	case DriverHolding:
		return "HOLDING"
	case DriverDialing:
		return "DIALING"
	case DriverAlerting:
		return "ALERTING"
	case DriverIncoming:
		return "INCOMING"
	case DriverWaiting:
		return "WAITING"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// IsRinging reports a mobile-terminated leg awaiting answer.
func (s DriverState) IsRinging() bool {
	return s == DriverIncoming || s == DriverWaiting
}

// DriverCall is an immutable snapshot of one call leg as reported by
// the radio driver in a single poll cycle. Index is the driver-assigned
// leg index, 1-based.
type DriverCall struct {
	Index  int
	State  DriverState
	Number string
	IsMT   bool
}

func (dc DriverCall) String() string {
	dir := "mo"
	if dc.IsMT {
		dir = "mt"
	}
	return fmt.Sprintf("id=%d,%s,%s,%s", dc.Index, dc.State, dir, dc.Number)
}
