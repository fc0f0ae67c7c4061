// Package radiosim is an in-memory RadioDriver: a scripted stand-in
// for the real transport, used by the server binary and tests.
package radiosim

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/telodyne/cdmavoice/internal/domain"
)

var ErrNoSuchLeg = errors.New("no such leg")

// Sim holds a mutable leg table and reports it as poll snapshots.
// AutoAnswer, when set, progresses dialed legs DIALING → ALERTING →
// ACTIVE on a timer so the server binary has something to show.
type Sim struct {
	mu         sync.Mutex
	legs       map[int]domain.DriverCall
	changes    chan struct{}
	autoAnswer time.Duration
	maxLegs    int
}

func New(maxLegs int, autoAnswer time.Duration) *Sim {
	if maxLegs <= 0 {
		maxLegs = 8
	}
	return &Sim{
		legs:       make(map[int]domain.DriverCall),
		changes:    make(chan struct{}, 1),
		autoAnswer: autoAnswer,
		maxLegs:    maxLegs,
	}
}

func (s *Sim) PollCalls(ctx context.Context) ([]domain.DriverCall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.DriverCall, 0, len(s.legs))
	for i := 1; i <= s.maxLegs; i++ {
		if dc, ok := s.legs[i]; ok {
			out = append(out, dc)
		}
	}
	return out, nil
}

func (s *Sim) Dial(ctx context.Context, number string) error {
	s.mu.Lock()
	index := 0
	for i := 1; i <= s.maxLegs; i++ {
		if _, busy := s.legs[i]; !busy {
			index = i
			break
		}
	}
	if index == 0 {
		s.mu.Unlock()
		return errors.New("all legs busy")
	}
	s.legs[index] = domain.DriverCall{Index: index, State: domain.DriverDialing, Number: number}
	s.mu.Unlock()
	s.notify()

	if s.autoAnswer > 0 {
		go s.progressDial(index)
	}
	return nil
}

func (s *Sim) Hangup(ctx context.Context, index int) error {
	s.mu.Lock()
	_, ok := s.legs[index]
	delete(s.legs, index)
	s.mu.Unlock()
	if !ok {
		return ErrNoSuchLeg
	}
	s.notify()
	return nil
}

func (s *Sim) StateChanges() <-chan struct{} { return s.changes }

// Ring injects a mobile-terminated leg, as if the network paged us.
func (s *Sim) Ring(number string) error {
	s.mu.Lock()
	index := 0
	for i := 1; i <= s.maxLegs; i++ {
		if _, busy := s.legs[i]; !busy {
			index = i
			break
		}
	}
	if index == 0 {
		s.mu.Unlock()
		return errors.New("all legs busy")
	}
	st := domain.DriverIncoming
	if len(s.legs) > 0 {
		st = domain.DriverWaiting
	}
	s.legs[index] = domain.DriverCall{Index: index, State: st, Number: number, IsMT: true}
	s.mu.Unlock()
	s.notify()
	return nil
}

// SetState rewrites one leg's raw state (answer, hold, resume).
func (s *Sim) SetState(index int, st domain.DriverState) error {
	s.mu.Lock()
	dc, ok := s.legs[index]
	if ok {
		dc.State = st
		s.legs[index] = dc
	}
	s.mu.Unlock()
	if !ok {
		return ErrNoSuchLeg
	}
	s.notify()
	return nil
}

// Drop removes a leg as if the remote side or the network cleared it.
func (s *Sim) Drop(index int) error {
	return s.Hangup(context.Background(), index)
}

func (s *Sim) progressDial(index int) {
	for _, st := range []domain.DriverState{domain.DriverAlerting, domain.DriverActive} {
		time.Sleep(s.autoAnswer)
		if err := s.SetState(index, st); err != nil {
			return // leg hung up meanwhile
		}
		log.Debug().Str("module", "radiosim").Int("index", index).Stringer("state", st).Msg("auto progress")
	}
}

// notify coalesces change ticks; an unread tick already covers us.
func (s *Sim) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}
