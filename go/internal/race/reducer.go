package race

import (
	"github.com/google/uuid"
	"github.com/mcdev12/typerace/go/internal/channel"
	"github.com/mcdev12/typerace/go/internal/models"
)

// State is the merged per-round view of all remote players, built by folding
// tagged events (baseline load, presence sync/join/leave, broadcasts) into a
// map. It has no transport or storage dependencies, so the merge semantics
// are testable in isolation.
//
// State is not goroutine-safe; the Synchronizer serializes access.
type State struct {
	RoundID     uuid.UUID
	SentenceLen int // in runes
	players     map[uuid.UUID]models.PlayerState
}

// NewState returns an empty state bound to the given round.
func NewState(round *models.Round) *State {
	return &State{
		RoundID:     round.ID,
		SentenceLen: len([]rune(round.Sentence.Text)),
		players:     make(map[uuid.UUID]models.PlayerState),
	}
}

// ApplyBaseline overlays store-loaded rows onto the map. Live data already
// received for a user wins over its baseline row.
func (s *State) ApplyBaseline(rows []models.PlayerState) {
	for _, row := range rows {
		if _, live := s.players[row.UserID]; live {
			continue
		}
		s.players[row.UserID] = row
	}
}

// ApplySync reconciles the full online set: every known player's IsOnline
// flag is set to match membership, and a blank placeholder is inserted for
// any online id we have not seen yet.
func (s *State) ApplySync(members []channel.Member) {
	online := make(map[uuid.UUID]bool, len(members))
	for _, m := range members {
		online[m.UserID] = true
	}

	for id, p := range s.players {
		p.IsOnline = online[id]
		s.players[id] = p
	}

	for _, m := range members {
		if _, ok := s.players[m.UserID]; !ok {
			s.players[m.UserID] = placeholder(m)
		}
	}
}

// ApplyJoin marks a known player online, or inserts a blank placeholder for
// a player who joined before producing any typed output.
func (s *State) ApplyJoin(m channel.Member) {
	if p, ok := s.players[m.UserID]; ok {
		p.IsOnline = true
		s.players[m.UserID] = p
		return
	}
	s.players[m.UserID] = placeholder(m)
}

// ApplyLeave marks a player offline. The row is retained so the leaderboard
// keeps showing the player's final state.
func (s *State) ApplyLeave(m channel.Member) {
	if p, ok := s.players[m.UserID]; ok {
		p.IsOnline = false
		s.players[m.UserID] = p
	}
}

// ApplyBroadcast folds a validated typing update into the map. It reports
// false when the payload is malformed or addressed to a different round, in
// which case the map is unchanged. Last received wins per user; senders are
// single-threaded per session so updated_at is non-decreasing per sender.
func (s *State) ApplyBroadcast(p *models.BroadcastPayload) bool {
	if err := ValidatePayload(p); err != nil {
		return false
	}
	// Guard against messages from a channel subscription that has not torn
	// down yet after a round boundary.
	if p.RoundID != s.RoundID {
		return false
	}

	typed := []rune(p.TypedText)
	if len(typed) > s.SentenceLen {
		typed = typed[:s.SentenceLen]
	}
	// Clamp the counters along with the text so a stored row never claims
	// more characters than the sentence holds.
	typedChars := p.TypedChars
	if typedChars > s.SentenceLen {
		typedChars = s.SentenceLen
	}
	correctChars := p.CorrectChars
	if correctChars > typedChars {
		correctChars = typedChars
	}
	finished := len(typed) == s.SentenceLen && correctChars == s.SentenceLen

	s.players[p.UserID] = models.PlayerState{
		UserID:       p.UserID,
		Username:     p.Username,
		TypedText:    string(typed),
		CorrectChars: correctChars,
		TypedChars:   typedChars,
		WPM:          p.WPM,
		Accuracy:     p.Accuracy,
		Finished:     finished,
		IsOnline:     true,
		UpdatedAt:    p.UpdatedAt,
	}
	return true
}

// Players returns a copied snapshot of the map.
func (s *State) Players() []models.PlayerState {
	out := make([]models.PlayerState, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, p)
	}
	return out
}

// Player returns one player's row, if present.
func (s *State) Player(id uuid.UUID) (models.PlayerState, bool) {
	p, ok := s.players[id]
	return p, ok
}

func placeholder(m channel.Member) models.PlayerState {
	return models.PlayerState{
		UserID:   m.UserID,
		Username: m.Username,
		IsOnline: true,
	}
}
