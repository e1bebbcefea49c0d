// Package race maintains each client's merged live view of the current
// round: durable baseline results, presence, and broadcast typing updates
// folded into one per-player map.
package race

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/mcdev12/typerace/go/internal/channel"
	"github.com/mcdev12/typerace/go/internal/metrics"
	"github.com/mcdev12/typerace/go/internal/models"
	"github.com/rs/zerolog/log"
)

// BaselineLoader supplies the durable rows used to seed a new round's view.
type BaselineLoader interface {
	Baseline(ctx context.Context, round *models.Round) ([]models.PlayerState, error)
}

// Synchronizer owns one client's authoritative merged view for the current
// round. It is the single owner of the "current round id" used to reject
// stale broadcasts; the id is updated synchronously before any channel
// (re)subscription begins.
//
// The local user's own broadcasts never arrive (the channel is
// self-excluding), so the view never contains the caller's live row; the
// driver injects it at render time.
type Synchronizer struct {
	baseline BaselineLoader
	self     channel.Member

	mu    sync.RWMutex
	state *State
	ch    channel.Channel
	stop  chan struct{}
}

func NewSynchronizer(baseline BaselineLoader, self channel.Member) *Synchronizer {
	return &Synchronizer{
		baseline: baseline,
		self:     self,
	}
}

// Start binds the synchronizer to a round and a joined-ready channel: the
// round id is recorded and the map cleared before the subscription begins,
// then the baseline loads asynchronously and events are consumed until Stop
// or a round switch.
func (s *Synchronizer) Start(ctx context.Context, round *models.Round, ch channel.Channel) error {
	s.mu.Lock()
	if s.stop != nil {
		s.mu.Unlock()
		if err := s.Stop(); err != nil {
			return err
		}
		s.mu.Lock()
	}
	s.state = NewState(round)
	s.ch = ch
	stop := make(chan struct{})
	s.stop = stop
	s.mu.Unlock()

	if err := ch.Join(ctx, s.self); err != nil {
		return err
	}

	go s.loadBaseline(ctx, round)
	go s.consume(ctx, ch, stop)
	return nil
}

// Stop leaves the channel and halts event consumption. Safe to call twice.
func (s *Synchronizer) Stop() error {
	s.mu.Lock()
	ch := s.ch
	stop := s.stop
	s.ch = nil
	s.stop = nil
	s.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	if ch != nil {
		return ch.Leave()
	}
	return nil
}

// RoundID returns the round currently tracked by this synchronizer.
func (s *Synchronizer) RoundID() uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return uuid.Nil
	}
	return s.state.RoundID
}

// Players returns a snapshot of the merged remote-player view.
func (s *Synchronizer) Players() []models.PlayerState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return nil
	}
	return s.state.Players()
}

// loadBaseline fetches durable rows for the round and overlays them, unless
// the tracked round moved on while the load was in flight. Baseline failures
// degrade to zeros rather than blocking the round.
func (s *Synchronizer) loadBaseline(ctx context.Context, round *models.Round) {
	rows, err := s.baseline.Baseline(ctx, round)
	if err != nil {
		log.Warn().
			Err(err).
			Str("round_id", round.ID.String()).
			Msg("baseline load failed, starting from zeros")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil || s.state.RoundID != round.ID {
		// The round changed while we were loading; this data is stale.
		return
	}
	s.state.ApplyBaseline(rows)
}

// consume folds channel events into the state until stopped. Events for the
// local user are skipped entirely: presence for self is implicit and
// broadcasts for self never arrive.
func (s *Synchronizer) consume(ctx context.Context, ch channel.Channel, stop chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case ev, ok := <-ch.Events():
			if !ok {
				return
			}
			s.apply(ev)
		}
	}
}

func (s *Synchronizer) apply(ev channel.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return
	}

	switch ev.Type {
	case channel.EventPresenceSync:
		members := make([]channel.Member, 0, len(ev.Members))
		for _, m := range ev.Members {
			if m.UserID == s.self.UserID {
				continue
			}
			members = append(members, m)
		}
		s.state.ApplySync(members)
		metrics.PlayersOnline.Set(float64(len(members) + 1))

	case channel.EventPresenceJoin:
		if ev.Member.UserID == s.self.UserID {
			return
		}
		s.state.ApplyJoin(ev.Member)

	case channel.EventPresenceLeave:
		if ev.Member.UserID == s.self.UserID {
			return
		}
		s.state.ApplyLeave(ev.Member)

	case channel.EventBroadcast:
		if ev.Payload != nil && ev.Payload.UserID == s.self.UserID {
			return
		}
		if !s.state.ApplyBroadcast(ev.Payload) {
			metrics.BroadcastsRejected.Inc()
			log.Warn().
				Str("tracked_round", s.state.RoundID.String()).
				Msg("dropped invalid or stale broadcast")
		}
	}
}
