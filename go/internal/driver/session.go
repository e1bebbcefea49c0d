// Package driver runs one participant's race session: it obtains the active
// round, drives the countdown and round transitions, turns local keystrokes
// into throttled broadcasts, and persists terminal results. The synchronizer
// never reflects the local user, so the driver also injects the caller's own
// live row into the leaderboard view.
package driver

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/typerace/go/internal/channel"
	"github.com/mcdev12/typerace/go/internal/models"
	"github.com/mcdev12/typerace/go/internal/race"
	"github.com/mcdev12/typerace/go/internal/stats"
	"github.com/rs/zerolog/log"
)

const (
	// rotateDelay is how long after a round's end the next round is
	// fetched, giving the winner of the creation race time to commit.
	rotateDelay = 500 * time.Millisecond

	// expiredPollInterval paces retries when the session finds itself
	// without an active round (store failures, expired round on entry).
	expiredPollInterval = 2 * time.Second
)

// RoundService hands out the active round, creating it when needed.
type RoundService interface {
	EnsureActiveRound(ctx context.Context) (*models.Round, error)
}

// ResultStore persists terminal results.
type ResultStore interface {
	SaveResult(ctx context.Context, res models.RoundResult) error
}

// ChannelFactory returns a fresh unjoined channel handle. One channel is
// consumed per round subscription.
type ChannelFactory func() channel.Channel

// Session is one participant's live connection to the race. All methods are
// safe for concurrent use; input, timers and round transitions serialize on
// an internal mutex.
type Session struct {
	rounds     RoundService
	results    ResultStore
	newChannel ChannelFactory
	clock      clockwork.Clock
	self       channel.Member

	sync    *race.Synchronizer
	emitter *race.Emitter

	mu           sync.Mutex
	ctx          context.Context
	cancel       context.CancelFunc
	round        *models.Round
	typed        string
	persisted    bool // one-shot guard across both terminal call sites
	expiryTimer  clockwork.Timer
	refetchTimer clockwork.Timer
	closed       bool
}

func NewSession(
	rounds RoundService,
	results ResultStore,
	baseline race.BaselineLoader,
	newChannel ChannelFactory,
	clock clockwork.Clock,
	self channel.Member,
	throttle time.Duration,
) *Session {
	return &Session{
		rounds:     rounds,
		results:    results,
		newChannel: newChannel,
		clock:      clock,
		self:       self,
		sync:       race.NewSynchronizer(baseline, self),
		emitter:    race.NewEmitter(clock, throttle),
	}
}

// Start obtains the active round and begins the session loop.
func (s *Session) Start(ctx context.Context) error {
	sctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.ctx = sctx
	s.cancel = cancel
	s.mu.Unlock()

	round, err := s.rounds.EnsureActiveRound(sctx)
	if err != nil {
		cancel()
		return err
	}
	return s.enterRound(round)
}

// Stop tears the session down: timers cleared, channel left, no further
// updates emitted.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.stopTimersLocked()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.emitter.SetChannel(nil)
	return s.sync.Stop()
}

// Round returns the round this session is currently in.
func (s *Session) Round() *models.Round {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.round
}

// SecondsLeft returns the whole seconds remaining in the current round.
func (s *Session) SecondsLeft() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.round == nil {
		return 0
	}
	left := s.round.EndAt.Sub(s.clock.Now())
	if left <= 0 {
		return 0
	}
	return int((left + time.Second - 1) / time.Second)
}

// HandleInput processes the participant's current typed text: compute stats,
// broadcast (throttled), and persist immediately on exact completion. Input
// outside an active round is ignored.
func (s *Session) HandleInput(text string) {
	s.mu.Lock()
	if s.closed || s.round == nil {
		s.mu.Unlock()
		return
	}
	now := s.clock.Now()
	if !s.round.Active(now) {
		s.mu.Unlock()
		return
	}

	round := s.round
	sentence := round.Sentence.Text
	sentenceLen := len([]rune(sentence))

	capped := []rune(text)
	if len(capped) > sentenceLen {
		capped = capped[:sentenceLen]
	}
	s.typed = string(capped)

	elapsed := now.Sub(round.StartAt)
	if elapsed < time.Second {
		elapsed = time.Second
	}
	st := stats.Compute(s.typed, sentence, elapsed)

	payload := &models.BroadcastPayload{
		RoundID:      round.ID,
		UserID:       s.self.UserID,
		Username:     s.self.Username,
		TypedText:    s.typed,
		CorrectChars: st.CorrectChars,
		TypedChars:   len(capped),
		WPM:          st.WPM,
		Accuracy:     st.Accuracy,
		UpdatedAt:    now,
	}

	complete := sentenceLen > 0 && len(capped) == sentenceLen && st.CorrectChars == sentenceLen
	persistNow := complete && !s.persisted
	if persistNow {
		s.persisted = true
	}
	typed := s.typed
	ctx := s.ctx
	s.mu.Unlock()

	s.emitter.Send(ctx, payload)

	if persistNow {
		s.save(ctx, models.RoundResult{
			RoundID:      round.ID,
			UserID:       s.self.UserID,
			Username:     s.self.Username,
			TypedText:    typed,
			CorrectChars: st.CorrectChars,
			Accuracy:     st.Accuracy,
			WPM:          st.WPM,
			Finished:     true,
			UpdatedAt:    now,
		})
	}
}

// Leaderboard returns the merged view including the caller's locally
// computed row, which never arrives via broadcast.
func (s *Session) Leaderboard() []models.PlayerState {
	players := s.sync.Players()

	s.mu.Lock()
	round := s.round
	typed := s.typed
	now := s.clock.Now()
	s.mu.Unlock()

	if round == nil {
		return players
	}

	elapsed := now.Sub(round.StartAt)
	if elapsed < time.Second {
		elapsed = time.Second
	}
	if limit := round.EndAt.Sub(round.StartAt); elapsed > limit {
		elapsed = limit
	}
	st := stats.Compute(typed, round.Sentence.Text, elapsed)
	sentenceLen := len([]rune(round.Sentence.Text))

	self := models.PlayerState{
		UserID:       s.self.UserID,
		Username:     s.self.Username,
		TypedText:    typed,
		CorrectChars: st.CorrectChars,
		TypedChars:   len([]rune(typed)),
		WPM:          st.WPM,
		Accuracy:     st.Accuracy,
		Finished:     sentenceLen > 0 && len([]rune(typed)) == sentenceLen && st.CorrectChars == sentenceLen,
		IsOnline:     true,
		UpdatedAt:    now,
	}

	replaced := false
	for i := range players {
		if players[i].UserID == s.self.UserID {
			players[i] = self
			replaced = true
		}
	}
	if !replaced {
		players = append(players, self)
	}
	return players
}

// enterRound switches the session onto a round: local state reset, round id
// recorded before the new subscription starts, timers rescheduled.
func (s *Session) enterRound(round *models.Round) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.stopTimersLocked()
	s.round = round
	s.typed = ""
	s.persisted = false
	ctx := s.ctx

	now := s.clock.Now()
	if round.Active(now) {
		s.expiryTimer = s.clock.AfterFunc(round.EndAt.Sub(now), s.onExpiry)
	} else {
		// Expired on entry; poll until a fresh round exists.
		s.refetchTimer = s.clock.AfterFunc(expiredPollInterval, s.rotate)
	}
	s.mu.Unlock()

	ch := s.newChannel()
	if err := s.sync.Start(ctx, round, ch); err != nil {
		return err
	}
	s.emitter.SetChannel(ch)

	log.Info().
		Str("round_id", round.ID.String()).
		Int("round_number", round.RoundNumber).
		Str("user_id", s.self.UserID.String()).
		Msg("entered round")
	return nil
}

// onExpiry fires when the round clock hits zero: persist whatever was
// typed, then a delayed refetch for the next round.
func (s *Session) onExpiry() {
	s.persistAtExpiry()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.refetchTimer = s.clock.AfterFunc(rotateDelay, s.rotate)
	s.mu.Unlock()
}

// persistAtExpiry writes the interim result at round end. Distinct from the
// completion call site: this one records finished=false, the round ended by
// time alone.
func (s *Session) persistAtExpiry() {
	s.mu.Lock()
	if s.closed || s.round == nil || s.persisted || s.typed == "" {
		s.mu.Unlock()
		return
	}
	s.persisted = true
	round := s.round
	typed := s.typed
	ctx := s.ctx
	s.mu.Unlock()

	st := stats.Compute(typed, round.Sentence.Text, round.EndAt.Sub(round.StartAt))
	s.save(ctx, models.RoundResult{
		RoundID:      round.ID,
		UserID:       s.self.UserID,
		Username:     s.self.Username,
		TypedText:    typed,
		CorrectChars: st.CorrectChars,
		Accuracy:     st.Accuracy,
		WPM:          st.WPM,
		Finished:     false,
		UpdatedAt:    s.clock.Now(),
	})
}

// rotate fetches the active round after a boundary and re-enters. Failures
// fall back to polling; the session recovers as soon as the store does.
func (s *Session) rotate() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	ctx := s.ctx
	current := s.round
	s.mu.Unlock()

	next, err := s.rounds.EnsureActiveRound(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to fetch next round, polling")
		s.mu.Lock()
		if !s.closed {
			s.refetchTimer = s.clock.AfterFunc(expiredPollInterval, s.rotate)
		}
		s.mu.Unlock()
		return
	}

	if current != nil && next.ID == current.ID {
		// Still the same expired round; keep polling.
		s.mu.Lock()
		if !s.closed {
			s.refetchTimer = s.clock.AfterFunc(expiredPollInterval, s.rotate)
		}
		s.mu.Unlock()
		return
	}

	if err := s.enterRound(next); err != nil {
		log.Error().Err(err).Str("round_id", next.ID.String()).Msg("failed to enter round")
	}
}

func (s *Session) save(ctx context.Context, res models.RoundResult) {
	if err := s.results.SaveResult(ctx, res); err != nil {
		log.Warn().
			Err(err).
			Str("round_id", res.RoundID.String()).
			Msg("failed to persist result")
	}
}

// stopTimersLocked clears pending timers. Callers hold s.mu.
func (s *Session) stopTimersLocked() {
	if s.expiryTimer != nil {
		s.expiryTimer.Stop()
		s.expiryTimer = nil
	}
	if s.refetchTimer != nil {
		s.refetchTimer.Stop()
		s.refetchTimer = nil
	}
}

// SelfID returns the participant identity this session runs as.
func (s *Session) SelfID() uuid.UUID {
	return s.self.UserID
}
