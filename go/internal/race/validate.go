package race

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/typerace/go/internal/models"
)

// Wire limits for incoming broadcast payloads, counted in runes. Anything
// outside these bounds is dropped without affecting other players' state.
const (
	maxUsernameLen  = 24
	maxTypedTextLen = 2000
)

var errNilPayload = errors.New("nil payload")

// ValidatePayload checks an incoming broadcast payload's shape and numeric
// ranges. Round membership is checked separately by the synchronizer.
func ValidatePayload(p *models.BroadcastPayload) error {
	if p == nil {
		return errNilPayload
	}
	if p.RoundID == uuid.Nil {
		return errors.New("missing round id")
	}
	if p.UserID == uuid.Nil {
		return errors.New("missing user id")
	}
	if n := len([]rune(p.Username)); n == 0 || n > maxUsernameLen {
		return fmt.Errorf("username length %d out of range", n)
	}
	if n := len([]rune(p.TypedText)); n > maxTypedTextLen {
		return fmt.Errorf("typed text length %d out of range", n)
	}
	if p.CorrectChars < 0 {
		return fmt.Errorf("negative correct chars %d", p.CorrectChars)
	}
	if p.TypedChars < 0 {
		return fmt.Errorf("negative typed chars %d", p.TypedChars)
	}
	if p.CorrectChars > p.TypedChars {
		return fmt.Errorf("correct chars %d exceed typed chars %d", p.CorrectChars, p.TypedChars)
	}
	if p.WPM < 0 {
		return fmt.Errorf("negative wpm %f", p.WPM)
	}
	if p.Accuracy < 0 || p.Accuracy > 1 {
		return fmt.Errorf("accuracy %f out of range", p.Accuracy)
	}
	if p.UpdatedAt.IsZero() {
		return errors.New("missing updated_at")
	}
	return nil
}
