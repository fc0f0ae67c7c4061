package domain

// DisconnectCause records why a Connection left the call.
type DisconnectCause int

const (
	CauseNotDisconnected DisconnectCause = iota
	// CauseLocal: this side requested the hangup.
	CauseLocal
	// CauseNormal: the remote side or the network cleared the leg.
	CauseNormal
	// CauseLost: the leg vanished without ever being confirmed,
	// e.g. a dial the radio never reported back.
	CauseLost
)

func (c DisconnectCause) String() string {
	switch c {
	case CauseNotDisconnected:
		return "not_disconnected"
	case CauseLocal:
		return "local"
	case CauseNormal:
		return "normal"
	case CauseLost:
		return "lost"
	default:
		return "unknown"
	}
}
