package round

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/typerace/go/internal/models"
)

// uniqueViolation is the Postgres error code for a unique constraint violation.
const uniqueViolation = "23505"

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool: pool,
	}
}

const roundColumns = `r.id, r.round_number, r.start_at, r.end_at,
       s.id, s.text, s.source, s.created_at`

// LatestRound returns the most-recently-numbered round with its sentence,
// or ErrNotFound when no round exists yet.
func (r *Repository) LatestRound(ctx context.Context) (*models.Round, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+roundColumns+`
		FROM rounds r
		JOIN sentences s ON s.id = r.sentence_id
		ORDER BY r.round_number DESC
		LIMIT 1`)

	rnd, err := scanRound(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch latest round: %w", err)
	}
	return rnd, nil
}

// RoundByNumber returns the round with the given round number, or ErrNotFound.
func (r *Repository) RoundByNumber(ctx context.Context, number int) (*models.Round, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+roundColumns+`
		FROM rounds r
		JOIN sentences s ON s.id = r.sentence_id
		WHERE r.round_number = $1`, number)

	rnd, err := scanRound(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch round %d: %w", number, err)
	}
	return rnd, nil
}

// InsertRound inserts a new round row. A round_number conflict maps to
// ErrDuplicateRound so the caller can recover by re-reading the winner.
func (r *Repository) InsertRound(ctx context.Context, req CreateRoundRequest) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO rounds (id, sentence_id, round_number, start_at, end_at)
		VALUES ($1, $2, $3, $4, $5)`,
		req.ID, req.SentenceID, req.RoundNumber, req.StartAt, req.EndAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateRound
		}
		return fmt.Errorf("failed to insert round %d: %w", req.RoundNumber, err)
	}
	return nil
}

// ListSentences returns the rotation pool ordered by creation time. The
// ordering matters: sentence selection is a pure function of this slice.
func (r *Repository) ListSentences(ctx context.Context) ([]models.Sentence, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, text, source, created_at
		FROM sentences
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sentences: %w", err)
	}
	defer rows.Close()

	var pool []models.Sentence
	for rows.Next() {
		var s models.Sentence
		if err := rows.Scan(&s.ID, &s.Text, &s.Source, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sentence: %w", err)
		}
		pool = append(pool, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sentences: %w", err)
	}
	return pool, nil
}

func scanRound(row pgx.Row) (*models.Round, error) {
	var (
		rnd models.Round
		sid uuid.UUID
	)
	if err := row.Scan(
		&rnd.ID, &rnd.RoundNumber, &rnd.StartAt, &rnd.EndAt,
		&sid, &rnd.Sentence.Text, &rnd.Sentence.Source, &rnd.Sentence.CreatedAt,
	); err != nil {
		return nil, err
	}
	rnd.Sentence.ID = sid
	return &rnd, nil
}
