package models

import (
	"time"

	"github.com/google/uuid"
)

// Sentence is a static content item from the rotation pool.
type Sentence struct {
	ID        uuid.UUID `json:"id"`
	Text      string    `json:"text"`
	Source    *string   `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Round represents one timed competitive session over a fixed sentence.
// Rounds are immutable once created and are never deleted.
type Round struct {
	ID          uuid.UUID `json:"id"`
	RoundNumber int       `json:"round_number"`
	StartAt     time.Time `json:"start_at"`
	EndAt       time.Time `json:"end_at"`
	Sentence    Sentence  `json:"sentence"`
}

// Active reports whether the round is still running at the given instant.
func (r *Round) Active(now time.Time) bool {
	return r.EndAt.After(now)
}
