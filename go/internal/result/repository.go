package result

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/typerace/go/internal/models"
	"github.com/mcdev12/typerace/go/internal/sqlutil"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool: pool,
	}
}

// UpsertResult writes a player's result row for a round. Last write wins on
// the (round_id, user_id) uniqueness constraint, which makes the call
// idempotent and safe to repeat at both terminal events.
func (r *Repository) UpsertResult(ctx context.Context, res models.RoundResult) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO round_results
			(id, round_id, user_id, username, typed_text, correct_chars, accuracy, wpm, finished, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (round_id, user_id) DO UPDATE SET
			username      = EXCLUDED.username,
			typed_text    = EXCLUDED.typed_text,
			correct_chars = EXCLUDED.correct_chars,
			accuracy      = EXCLUDED.accuracy,
			wpm           = EXCLUDED.wpm,
			finished      = EXCLUDED.finished,
			updated_at    = EXCLUDED.updated_at`,
		uuid.New(), res.RoundID, res.UserID, res.Username, res.TypedText,
		res.CorrectChars, res.Accuracy, res.WPM, res.Finished, res.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert result for user %s: %w", res.UserID, err)
	}
	return nil
}

// ResultsForRounds returns all result rows for the given rounds, keyed by
// round id, read inside one transaction so the baseline sees a consistent
// snapshot across rounds.
func (r *Repository) ResultsForRounds(ctx context.Context, roundIDs ...uuid.UUID) (map[uuid.UUID][]models.RoundResult, error) {
	out := make(map[uuid.UUID][]models.RoundResult, len(roundIDs))
	err := sqlutil.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, roundID := range roundIDs {
			rows, err := tx.Query(ctx, `
				SELECT round_id, user_id, username, typed_text, correct_chars, accuracy, wpm, finished, updated_at
				FROM round_results
				WHERE round_id = $1`, roundID)
			if err != nil {
				return fmt.Errorf("failed to query results for round %s: %w", roundID, err)
			}
			results, err := scanResults(rows)
			if err != nil {
				return err
			}
			out[roundID] = results
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func scanResults(rows pgx.Rows) ([]models.RoundResult, error) {
	defer rows.Close()
	var results []models.RoundResult
	for rows.Next() {
		var res models.RoundResult
		if err := rows.Scan(
			&res.RoundID, &res.UserID, &res.Username, &res.TypedText,
			&res.CorrectChars, &res.Accuracy, &res.WPM, &res.Finished, &res.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}
	return results, nil
}
