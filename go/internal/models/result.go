package models

import (
	"time"

	"github.com/google/uuid"
)

// RoundResult is the durable row for a player's final or interim result.
// At most one row exists per (round, user); writes are last-write-wins.
type RoundResult struct {
	RoundID      uuid.UUID `json:"round_id"`
	UserID       uuid.UUID `json:"user_id"`
	Username     string    `json:"username"`
	TypedText    string    `json:"typed_text"`
	CorrectChars int       `json:"correct_chars"`
	Accuracy     float64   `json:"accuracy"`
	WPM          float64   `json:"wpm"`
	Finished     bool      `json:"finished"`
	UpdatedAt    time.Time `json:"updated_at"`
}
