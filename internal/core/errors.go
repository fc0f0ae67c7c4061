package core

import (
	"fmt"

	"github.com/telodyne/cdmavoice/internal/domain"
)

// CallStateError is returned when an operation is requested on a call
// whose current state forbids it (e.g. hangup on a disconnected call).
// Recoverable: the caller gets it back, nothing is retried here.
type CallStateError struct {
	Op    string
	State domain.State
	Msg   string
}

func (e *CallStateError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s (state %s)", e.Op, e.Msg, e.State)
	}
	return fmt.Sprintf("%s not allowed in state %s", e.Op, e.State)
}

// DriverProtocolError reports a raw driver state outside the closed
// enumeration. It means the tracker and the transport have
// desynchronized; the offending update is aborted, never coerced.
type DriverProtocolError struct {
	Raw domain.DriverState
}

func (e *DriverProtocolError) Error() string {
	return fmt.Sprintf("illegal driver call state: %s", e.Raw)
}
