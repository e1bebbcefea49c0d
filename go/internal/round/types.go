package round

import (
	"time"

	"github.com/google/uuid"
)

// CreateRoundRequest represents a request to insert a new round row.
type CreateRoundRequest struct {
	ID          uuid.UUID `json:"id"`
	SentenceID  uuid.UUID `json:"sentence_id"`
	RoundNumber int       `json:"round_number"`
	StartAt     time.Time `json:"start_at"`
	EndAt       time.Time `json:"end_at"`
}
