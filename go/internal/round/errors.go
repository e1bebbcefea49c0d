package round

import "errors"

var (
	// ErrNotFound is returned when no round matches a lookup.
	ErrNotFound = errors.New("round not found")

	// ErrDuplicateRound is returned when an insert loses the race on the
	// round_number uniqueness constraint. Callers recover by re-reading
	// the winning row; the error never reaches users.
	ErrDuplicateRound = errors.New("round number already exists")

	// ErrEmptySentencePool is a fatal configuration error: rounds cannot
	// be created without at least one sentence.
	ErrEmptySentencePool = errors.New("no sentences configured")
)
