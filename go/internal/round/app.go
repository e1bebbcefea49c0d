package round

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/typerace/go/internal/metrics"
	"github.com/mcdev12/typerace/go/internal/models"
	"github.com/rs/zerolog/log"
)

// DefaultRoundDuration is the length of one competitive round.
const DefaultRoundDuration = 60 * time.Second

// RoundRepository defines what the lifecycle manager needs from the store.
type RoundRepository interface {
	LatestRound(ctx context.Context) (*models.Round, error)
	RoundByNumber(ctx context.Context, number int) (*models.Round, error)
	InsertRound(ctx context.Context, req CreateRoundRequest) error
	ListSentences(ctx context.Context) ([]models.Sentence, error)
}

// App owns round numbering and sentence rotation. It is stateless: the only
// serialization point is the store's uniqueness constraint on round_number,
// so any number of instances can call EnsureActiveRound concurrently.
type App struct {
	repo     RoundRepository
	clock    clockwork.Clock
	duration time.Duration
}

func NewApp(repo RoundRepository, clock clockwork.Clock, duration time.Duration) *App {
	if duration <= 0 {
		duration = DefaultRoundDuration
	}
	return &App{
		repo:     repo,
		clock:    clock,
		duration: duration,
	}
}

// SentenceFor returns the sentence rotated in for the given round number.
// Pure: the same pool snapshot and number always select the same sentence.
func SentenceFor(pool []models.Sentence, number int) models.Sentence {
	return pool[(number-1)%len(pool)]
}

// EnsureActiveRound returns the current active round, creating the next one
// if the latest has expired. Idempotent and safe under concurrent callers:
// whoever wins the insert race owns the canonical row, and every loser
// re-reads and returns it without retrying.
func (a *App) EnsureActiveRound(ctx context.Context) (*models.Round, error) {
	latest, err := a.repo.LatestRound(ctx)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to read latest round: %w", err)
	}

	now := a.clock.Now()
	if latest != nil && latest.Active(now) {
		return latest, nil
	}

	pool, err := a.repo.ListSentences(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load sentence pool: %w", err)
	}
	if len(pool) == 0 {
		return nil, ErrEmptySentencePool
	}

	next := 1
	if latest != nil {
		next = latest.RoundNumber + 1
	}
	sentence := SentenceFor(pool, next)

	req := CreateRoundRequest{
		ID:          uuid.New(),
		SentenceID:  sentence.ID,
		RoundNumber: next,
		StartAt:     now,
		EndAt:       now.Add(a.duration),
	}

	if err := a.repo.InsertRound(ctx, req); err != nil {
		if errors.Is(err, ErrDuplicateRound) {
			// Another caller won the race; its row is canonical now.
			metrics.RoundConflicts.Inc()
			log.Debug().
				Int("round_number", next).
				Msg("lost round creation race, re-reading winner")
			winner, err := a.repo.LatestRound(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to re-read round after conflict: %w", err)
			}
			return winner, nil
		}
		return nil, fmt.Errorf("failed to create round: %w", err)
	}

	metrics.RoundsCreated.Inc()
	log.Info().
		Str("round_id", req.ID.String()).
		Int("round_number", next).
		Str("sentence_id", sentence.ID.String()).
		Time("end_at", req.EndAt).
		Msg("created round")

	return &models.Round{
		ID:          req.ID,
		RoundNumber: next,
		StartAt:     req.StartAt,
		EndAt:       req.EndAt,
		Sentence:    sentence,
	}, nil
}

// PreviousRound returns the round numbered just before the given one, or
// ErrNotFound for the first round.
func (a *App) PreviousRound(ctx context.Context, current *models.Round) (*models.Round, error) {
	if current.RoundNumber <= 1 {
		return nil, ErrNotFound
	}
	return a.repo.RoundByNumber(ctx, current.RoundNumber-1)
}
