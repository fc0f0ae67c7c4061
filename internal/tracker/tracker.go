package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/telodyne/cdmavoice/internal/core"
	"github.com/telodyne/cdmavoice/internal/domain"
)

// ErrStopped is returned for commands issued after the worker exited.
var ErrStopped = errors.New("tracker stopped")

// Options bound the tracker. MaxConnections sizes the driver-index
// arena; MaxConnectionsPerCall is the conference cap every slot call
// answers IsFull against.
type Options struct {
	MaxConnections        int
	MaxConnectionsPerCall int
	PollInterval          time.Duration
	EventBuffer           int
}

const (
	defaultMaxConnections = 8
	defaultMaxPerCall     = 5
	defaultPollInterval   = 500 * time.Millisecond
	defaultEventBuffer    = 32
)

func (o *Options) fillDefaults() {
	if o.MaxConnections <= 0 {
		o.MaxConnections = defaultMaxConnections
	}
	if o.MaxConnectionsPerCall <= 0 {
		o.MaxConnectionsPerCall = defaultMaxPerCall
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = defaultEventBuffer
	}
}

type command struct {
	run   func() error
	reply chan error
}

// Tracker reconciles polled driver state with the logical call model.
// All Call/Connection mutation happens on the single worker goroutine
// inside Run; external callers reach it through commands.
type Tracker struct {
	driver RadioDriver
	phone  core.Phone
	opts   Options

	ringing    *core.CdmaCall
	foreground *core.CdmaCall
	background *core.CdmaCall

	// connections is the driver-index arena: connections[i] tracks
	// the leg the driver reports at index i+1.
	connections []*core.Connection
	pendingMO   *core.Connection

	notifier *Notifier
	cmds     chan command
	stopped  chan struct{}
}

var _ core.Hangupper = (*Tracker)(nil)

func New(driver RadioDriver, phone core.Phone, opts Options) *Tracker {
	opts.fillDefaults()
	t := &Tracker{
		driver:      driver,
		phone:       phone,
		opts:        opts,
		connections: make([]*core.Connection, opts.MaxConnections),
		notifier:    NewNotifier(opts.EventBuffer),
		cmds:        make(chan command),
		stopped:     make(chan struct{}),
	}
	t.ringing = core.NewCdmaCall(phone, t, opts.MaxConnectionsPerCall)
	t.foreground = core.NewCdmaCall(phone, t, opts.MaxConnectionsPerCall)
	t.background = core.NewCdmaCall(phone, t, opts.MaxConnectionsPerCall)
	return t
}

// RingingCall, ForegroundCall and BackgroundCall expose the slot calls
// to upper layers. The pointers are fixed for the tracker's lifetime;
// calls are recycled, never replaced.
func (t *Tracker) RingingCall() core.Call    { return t.ringing }
func (t *Tracker) ForegroundCall() core.Call { return t.foreground }
func (t *Tracker) BackgroundCall() core.Call { return t.background }

// CallForSlot resolves a slot name from the HTTP surface.
func (t *Tracker) CallForSlot(slot string) (core.Call, bool) {
	switch slot {
	case SlotRinging:
		return t.ringing, true
	case SlotForeground:
		return t.foreground, true
	case SlotBackground:
		return t.background, true
	default:
		return nil, false
	}
}

func (t *Tracker) Notifier() *Notifier { return t.notifier }

// Run is the serialized worker: poll ticks, unsolicited driver
// notifications and commands are processed strictly one at a time.
// Returns when ctx is canceled.
func (t *Tracker) Run(ctx context.Context) error {
	defer close(t.stopped)
	log.Info().Str("module", "tracker").Str("phone", t.phone.ID()).Dur("poll_interval", t.opts.PollInterval).Msg("tracker started")

	ticker := time.NewTicker(t.opts.PollInterval)
	defer ticker.Stop()

	t.pollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "tracker").Msg("tracker shutting down")
			return nil
		case <-ticker.C:
			t.pollOnce(ctx)
		case <-t.driver.StateChanges():
			t.pollOnce(ctx)
		case cmd := <-t.cmds:
			cmd.reply <- cmd.run()
		}
	}
}

// exec runs fn on the worker and waits for its result.
func (t *Tracker) exec(ctx context.Context, fn func() error) error {
	cmd := command{run: fn, reply: make(chan error, 1)}
	select {
	case t.cmds <- cmd:
	case <-t.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HangupCall implements core.Hangupper: Call.Hangup lands here.
func (t *Tracker) HangupCall(c core.Call) error {
	return t.exec(context.Background(), func() error {
		return t.doHangup(c)
	})
}

// Dial originates a call. The pending leg is seeded DIALING on the
// foreground call and adopts its driver index on a later poll.
func (t *Tracker) Dial(ctx context.Context, number string) error {
	return t.exec(ctx, func() error {
		return t.doDial(ctx, number)
	})
}

// Snapshot returns a consistent read-only view of all three slots.
func (t *Tracker) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := t.exec(ctx, func() error {
		snap = t.snapshot()
		return nil
	})
	return snap, err
}

func (t *Tracker) snapshot() Snapshot {
	return Snapshot{
		Ringing:    callInfo(SlotRinging, t.ringing),
		Foreground: callInfo(SlotForeground, t.foreground),
		Background: callInfo(SlotBackground, t.background),
	}
}

func (t *Tracker) pollOnce(ctx context.Context) {
	calls, err := t.driver.PollCalls(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn().Err(err).Str("module", "tracker").Msg("poll failed, keeping last known state")
		}
		return
	}
	t.handlePollCalls(calls)
}

// handlePollCalls diffs one ordered snapshot set against the tracked
// connections. Runs on the worker only.
func (t *Tracker) handlePollCalls(polled []domain.DriverCall) {
	dcs := make([]*domain.DriverCall, len(t.connections))
	for i := range polled {
		dc := polled[i]
		if dc.Index < 1 || dc.Index > len(dcs) {
			log.Error().Str("module", "tracker").Stringer("dc", dc).Msg("leg index out of range, dropping snapshot")
			continue
		}
		if dcs[dc.Index-1] != nil {
			log.Error().Str("module", "tracker").Stringer("dc", dc).Msg("duplicate leg index, dropping snapshot")
			continue
		}
		dcs[dc.Index-1] = &dc
	}

	var dropped []*core.Connection
	for i := range t.connections {
		conn, dc := t.connections[i], dcs[i]
		switch {
		case conn == nil && dc != nil:
			t.handleNewLeg(i, *dc)
		case conn != nil && dc == nil:
			t.connections[i] = nil
			dropped = append(dropped, conn)
		case conn != nil && dc != nil:
			t.updateLeg(conn, *dc)
		}
	}

	// A dial the radio still does not report after a full poll never
	// made it out; treat the pending leg as lost.
	if mo := t.pendingMO; mo != nil && !mo.Confirmed() {
		t.pendingMO = nil
		dropped = append(dropped, mo)
	}

	if len(dropped) == 0 {
		return
	}
	for _, conn := range dropped {
		cause := domain.CauseNormal
		switch {
		case conn.HangupPending():
			cause = domain.CauseLocal
		case !conn.Confirmed():
			cause = domain.CauseLost
		}
		conn.MarkDisconnected(cause)
		log.Info().Str("module", "tracker").Str("conn", conn.ID()).Stringer("cause", cause).Msg("connection disconnected")
		info := connInfo(conn)
		t.notifier.Publish(Event{Type: EventDisconnect, Connection: &info})

		if call := t.callOf(conn); call != nil && call.ConnectionDisconnected(conn) {
			t.publishCallState(call)
		}
	}
	t.clearDisconnected()
}

// handleNewLeg deals with a snapshot no tracked connection matches:
// either the radio confirming our pending dial, or a leg originated
// elsewhere (incoming, or a phantom MO).
func (t *Tracker) handleNewLeg(i int, dc domain.DriverCall) {
	if _, err := core.StateFromDriverState(dc.State); err != nil {
		log.Error().Err(err).Str("module", "tracker").Stringer("dc", dc).Msg("driver protocol violation, leg ignored")
		return
	}

	if mo := t.pendingMO; mo != nil && !dc.State.IsRinging() {
		t.pendingMO = nil
		mo.ConfirmIndex(dc)
		t.connections[i] = mo
		log.Info().Str("module", "tracker").Str("conn", mo.ID()).Stringer("dc", dc).Msg("pending dial confirmed")
		t.updateLeg(mo, dc)
		return
	}

	target := t.slotFor(dc.State)
	if target.IsFull() {
		log.Warn().Str("module", "tracker").Stringer("dc", dc).Msg("conference capacity reached, leg not tracked")
		return
	}

	conn := core.NewConnection(dc)
	t.connections[i] = conn
	if !dc.IsMT && !dc.State.IsRinging() {
		// The radio reports an MO leg we never dialed.
		log.Warn().Str("module", "tracker").Stringer("dc", dc).Msg("phantom mobile-originated leg adopted")
	}
	if err := target.Attach(conn, dc); err != nil {
		t.connections[i] = nil
		log.Error().Err(err).Str("module", "tracker").Msg("attach aborted")
		return
	}
	log.Info().Str("module", "tracker").Str("conn", conn.ID()).Stringer("dc", dc).Str("slot", t.slotName(target)).Msg("new connection attached")
	t.publishCallState(target)
	if dc.State.IsRinging() {
		info := connInfo(conn)
		t.notifier.Publish(Event{Type: EventRinging, Connection: &info})
	}
}

// updateLeg applies a fresh snapshot to a tracked connection. When the
// raw state maps the leg to a different slot (answer, hold swap,
// conference split) ownership moves by explicit detach+attach.
func (t *Tracker) updateLeg(conn *core.Connection, dc domain.DriverCall) {
	if _, err := core.StateFromDriverState(dc.State); err != nil {
		log.Error().Err(err).Str("module", "tracker").Stringer("dc", dc).Msg("driver protocol violation, update aborted")
		return
	}

	cur := t.callOf(conn)
	if cur == nil {
		log.Error().Str("module", "tracker").Str("conn", conn.ID()).Msg("tracked connection has no owning call")
		return
	}
	target := t.slotFor(dc.State)
	if cur != target {
		// Slot moves shuffle existing members; the conference cap
		// binds only legs joining the call set.
		cur.Detach(conn)
		if err := target.Attach(conn, dc); err != nil {
			log.Error().Err(err).Str("module", "tracker").Msg("re-attach aborted")
			return
		}
		log.Info().Str("module", "tracker").Str("conn", conn.ID()).Str("from", t.slotName(cur)).Str("to", t.slotName(target)).Msg("connection changed slot")
		t.publishCallState(cur)
		t.publishCallState(target)
		return
	}

	changed, err := cur.Update(conn, dc)
	if err != nil {
		log.Error().Err(err).Str("module", "tracker").Stringer("dc", dc).Msg("update aborted")
		return
	}
	if changed {
		t.publishCallState(cur)
	}
}

func (t *Tracker) doHangup(c core.Call) error {
	call, ok := c.(*core.CdmaCall)
	if !ok || !t.owns(call) {
		return &core.CallStateError{Op: "hangup", State: c.State(), Msg: "call not owned by this tracker"}
	}
	switch call.State() {
	case domain.StateIdle:
		return &core.CallStateError{Op: "hangup", State: call.State(), Msg: "no connections"}
	case domain.StateDisconnecting, domain.StateDisconnected:
		return &core.CallStateError{Op: "hangup", State: call.State()}
	}

	// Fire-and-forget toward the radio: the transition to
	// DISCONNECTED arrives with a later snapshot.
	for _, conn := range call.Connections() {
		if !conn.Confirmed() {
			continue
		}
		index := conn.Index()
		go func() {
			if err := t.driver.Hangup(context.Background(), index); err != nil {
				log.Warn().Err(err).Str("module", "tracker").Int("index", index).Msg("driver hangup failed")
			}
		}()
	}
	call.OnHangupLocal()
	log.Info().Str("module", "tracker").Str("slot", t.slotName(call)).Msg("local hangup dispatched")
	t.publishCallState(call)
	return nil
}

func (t *Tracker) doDial(ctx context.Context, number string) error {
	if t.pendingMO != nil {
		return &core.CallStateError{Op: "dial", State: t.foreground.State(), Msg: "a dial is already pending"}
	}
	if t.foreground.IsFull() {
		return &core.CallStateError{Op: "dial", State: t.foreground.State(), Msg: "foreground call is full"}
	}
	switch t.foreground.State() {
	case domain.StateIdle, domain.StateActive:
		// ACTIVE allows the CDMA three-way flash.
	default:
		return &core.CallStateError{Op: "dial", State: t.foreground.State()}
	}

	conn := core.NewDialingConnection(number)
	t.pendingMO = conn
	t.foreground.AttachFake(conn, domain.StateDialing)
	t.publishCallState(t.foreground)

	// Synchronous toward the driver: polls that run after the dial
	// was accepted are authoritative about the new leg, so a pending
	// leg missing from a later poll really is lost.
	if err := t.driver.Dial(ctx, number); err != nil {
		t.pendingMO = nil
		conn.MarkDisconnected(domain.CauseLost)
		info := connInfo(conn)
		t.notifier.Publish(Event{Type: EventDisconnect, Connection: &info})
		if t.foreground.ConnectionDisconnected(conn) {
			t.publishCallState(t.foreground)
		}
		t.clearDisconnected()
		return fmt.Errorf("dial %s: %w", number, err)
	}
	log.Info().Str("module", "tracker").Str("conn", conn.ID()).Str("number", number).Msg("dial dispatched")
	return nil
}

// clearDisconnected sweeps terminal members out of every slot call.
func (t *Tracker) clearDisconnected() {
	for _, call := range t.slots() {
		call.ClearDisconnected()
	}
}

func (t *Tracker) slots() [3]*core.CdmaCall {
	return [3]*core.CdmaCall{t.ringing, t.foreground, t.background}
}

func (t *Tracker) slotFor(ds domain.DriverState) *core.CdmaCall {
	switch {
	case ds.IsRinging():
		return t.ringing
	case ds == domain.DriverHolding:
		return t.background
	default:
		return t.foreground
	}
}

func (t *Tracker) slotName(call *core.CdmaCall) string {
	switch call {
	case t.ringing:
		return SlotRinging
	case t.foreground:
		return SlotForeground
	case t.background:
		return SlotBackground
	default:
		return "unknown"
	}
}

func (t *Tracker) owns(call *core.CdmaCall) bool {
	return call == t.ringing || call == t.foreground || call == t.background
}

// callOf finds the slot call owning a connection by membership, not by
// back-pointer.
func (t *Tracker) callOf(conn *core.Connection) *core.CdmaCall {
	for _, call := range t.slots() {
		for _, cn := range call.Connections() {
			if cn == conn {
				return call
			}
		}
	}
	return nil
}

func (t *Tracker) publishCallState(call *core.CdmaCall) {
	t.notifier.Publish(Event{
		Type:  EventCallState,
		Slot:  t.slotName(call),
		State: call.State().String(),
	})
}
