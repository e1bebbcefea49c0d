// Package result persists per (round, user) results and assembles the
// baseline view a client sees when it enters a round.
package result

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/typerace/go/internal/metrics"
	"github.com/mcdev12/typerace/go/internal/models"
	"github.com/mcdev12/typerace/go/internal/round"
	"github.com/rs/zerolog/log"
)

// ResultRepository defines what the app needs from the store.
type ResultRepository interface {
	UpsertResult(ctx context.Context, res models.RoundResult) error
	ResultsForRounds(ctx context.Context, roundIDs ...uuid.UUID) (map[uuid.UUID][]models.RoundResult, error)
}

// RoundSource resolves the round preceding the current one.
type RoundSource interface {
	PreviousRound(ctx context.Context, current *models.Round) (*models.Round, error)
}

type App struct {
	repo   ResultRepository
	rounds RoundSource
}

func NewApp(repo ResultRepository, rounds RoundSource) *App {
	return &App{
		repo:   repo,
		rounds: rounds,
	}
}

// SaveResult upserts a player's result. Safe to call at both terminal
// events (completion and expiry); the later write simply overwrites.
func (a *App) SaveResult(ctx context.Context, res models.RoundResult) error {
	if err := a.repo.UpsertResult(ctx, res); err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	metrics.ResultsPersisted.Inc()
	log.Debug().
		Str("round_id", res.RoundID.String()).
		Str("user_id", res.UserID.String()).
		Bool("finished", res.Finished).
		Msg("persisted result")
	return nil
}

// Baseline assembles the rows used to seed a client's view of a new round:
// previous-round results carried over (typing progress reset, only the
// display stats retained) overlaid by any rows already written for the
// current round, e.g. after a reconnect mid-round.
func (a *App) Baseline(ctx context.Context, current *models.Round) ([]models.PlayerState, error) {
	roundIDs := []uuid.UUID{current.ID}

	prev, err := a.rounds.PreviousRound(ctx, current)
	if err != nil {
		if !errors.Is(err, round.ErrNotFound) {
			// Best effort: a missing previous round degrades to zeros.
			log.Warn().
				Err(err).
				Int("round_number", current.RoundNumber).
				Msg("could not resolve previous round for baseline")
		}
		prev = nil
	}
	if prev != nil {
		roundIDs = append(roundIDs, prev.ID)
	}

	byRound, err := a.repo.ResultsForRounds(ctx, roundIDs...)
	if err != nil {
		return nil, fmt.Errorf("failed to load baseline rows: %w", err)
	}

	players := make(map[uuid.UUID]models.PlayerState)
	if prev != nil {
		for _, row := range byRound[prev.ID] {
			players[row.UserID] = models.PlayerState{
				UserID:    row.UserID,
				Username:  row.Username,
				TypedText: "",
				WPM:       row.WPM,
				Accuracy:  row.Accuracy,
				Finished:  false,
				UpdatedAt: row.UpdatedAt,
			}
		}
	}
	for _, row := range byRound[current.ID] {
		players[row.UserID] = models.PlayerState{
			UserID:       row.UserID,
			Username:     row.Username,
			TypedText:    row.TypedText,
			CorrectChars: row.CorrectChars,
			TypedChars:   len([]rune(row.TypedText)),
			WPM:          row.WPM,
			Accuracy:     row.Accuracy,
			Finished:     row.Finished,
			UpdatedAt:    row.UpdatedAt,
		}
	}

	out := make([]models.PlayerState, 0, len(players))
	for _, p := range players {
		out = append(out, p)
	}
	return out, nil
}
