// Package tracker owns the CDMA call model: it polls the radio driver,
// diffs the reported legs against tracked connections, and drives the
// attach/update/detach lifecycle on the three call slots.
package tracker

import (
	"context"

	"github.com/telodyne/cdmavoice/internal/domain"
)

// RadioDriver is the transport collaborator. Command framing and
// retry/timeout policy live behind it; the tracker only consumes
// ordered DriverCall snapshots and issues fire-and-forget requests.
type RadioDriver interface {
	// PollCalls returns the current call legs, ordered by leg index.
	PollCalls(ctx context.Context) ([]domain.DriverCall, error)

	// Dial asks the radio to originate a call. The new leg shows up
	// in a later poll with a driver-assigned index.
	Dial(ctx context.Context, number string) error

	// Hangup asks the radio to clear one leg. The leg disappears from
	// a later poll; nothing is confirmed synchronously.
	Hangup(ctx context.Context, index int) error

	// StateChanges delivers unsolicited "call list changed" ticks, on
	// top of which the tracker polls immediately instead of waiting
	// for the next interval.
	StateChanges() <-chan struct{}
}
