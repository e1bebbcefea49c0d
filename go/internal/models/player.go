package models

import (
	"time"

	"github.com/google/uuid"
)

// PlayerState is the per (round, user) snapshot of a participant's progress.
// IsOnline is presence-only and never persisted.
type PlayerState struct {
	UserID       uuid.UUID `json:"user_id"`
	Username     string    `json:"username"`
	TypedText    string    `json:"typed_text"`
	CorrectChars int       `json:"correct_chars"`
	TypedChars   int       `json:"typed_chars"`
	WPM          float64   `json:"wpm"`
	Accuracy     float64   `json:"accuracy"`
	Finished     bool      `json:"finished"`
	IsOnline     bool      `json:"is_online"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// BroadcastPayload is the ephemeral typing update pushed to all channel
// subscribers except the sender. It is validated on receipt and never
// persisted.
type BroadcastPayload struct {
	RoundID      uuid.UUID `json:"round_id"`
	UserID       uuid.UUID `json:"user_id"`
	Username     string    `json:"username"`
	TypedText    string    `json:"typed_text"`
	CorrectChars int       `json:"correct_chars"`
	TypedChars   int       `json:"typed_chars"`
	WPM          float64   `json:"wpm"`
	Accuracy     float64   `json:"accuracy"`
	UpdatedAt    time.Time `json:"updated_at"`
}
