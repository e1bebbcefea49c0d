package result_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/typerace/go/internal/models"
	"github.com/mcdev12/typerace/go/internal/result"
	"github.com/mcdev12/typerace/go/internal/round"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeResultRepo struct {
	rows   map[uuid.UUID][]models.RoundResult
	saved  []models.RoundResult
	err    error
}

func (f *fakeResultRepo) UpsertResult(ctx context.Context, res models.RoundResult) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, res)
	return nil
}

func (f *fakeResultRepo) ResultsForRounds(ctx context.Context, roundIDs ...uuid.UUID) (map[uuid.UUID][]models.RoundResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[uuid.UUID][]models.RoundResult)
	for _, id := range roundIDs {
		out[id] = f.rows[id]
	}
	return out, nil
}

type fakeRoundSource struct {
	prev *models.Round
	err  error
}

func (f *fakeRoundSource) PreviousRound(ctx context.Context, current *models.Round) (*models.Round, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.prev, nil
}

func makeRound(number int) *models.Round {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &models.Round{
		ID:          uuid.New(),
		RoundNumber: number,
		StartAt:     now,
		EndAt:       now.Add(60 * time.Second),
		Sentence:    models.Sentence{ID: uuid.New(), Text: "hello world"},
	}
}

func TestBaseline(t *testing.T) {
	Convey("Given a current round and a completed previous round", t, func() {
		ctx := context.Background()
		prev := makeRound(4)
		current := makeRound(5)
		bob := uuid.New()
		carol := uuid.New()

		repo := &fakeResultRepo{rows: map[uuid.UUID][]models.RoundResult{
			prev.ID: {
				{RoundID: prev.ID, UserID: bob, Username: "bob", TypedText: "hello world", CorrectChars: 11, Accuracy: 1, WPM: 38.2, Finished: true},
				{RoundID: prev.ID, UserID: carol, Username: "carol", TypedText: "hel", CorrectChars: 3, Accuracy: 0.27, WPM: 9.5},
			},
		}}
		app := result.NewApp(repo, &fakeRoundSource{prev: prev})

		Convey("When only previous-round rows exist", func() {
			rows, err := app.Baseline(ctx, current)
			So(err, ShouldBeNil)
			So(rows, ShouldHaveLength, 2)

			Convey("Then typing progress is reset but display stats carry over", func() {
				for _, p := range rows {
					So(p.TypedText, ShouldEqual, "")
					So(p.Finished, ShouldBeFalse)
					So(p.CorrectChars, ShouldEqual, 0)
					So(p.WPM, ShouldBeGreaterThan, 0)
				}
			})
		})

		Convey("When a current-round row already exists for a player", func() {
			repo.rows[current.ID] = []models.RoundResult{
				{RoundID: current.ID, UserID: bob, Username: "bob", TypedText: "hello", CorrectChars: 5, Accuracy: 0.45, WPM: 20, Finished: false},
			}
			rows, err := app.Baseline(ctx, current)
			So(err, ShouldBeNil)

			Convey("Then the current row overlays the carried one", func() {
				var bobRow models.PlayerState
				for _, p := range rows {
					if p.UserID == bob {
						bobRow = p
					}
				}
				So(bobRow.TypedText, ShouldEqual, "hello")
				So(bobRow.CorrectChars, ShouldEqual, 5)
				So(bobRow.TypedChars, ShouldEqual, 5)
			})
		})

		Convey("When there is no previous round", func() {
			app := result.NewApp(repo, &fakeRoundSource{err: round.ErrNotFound})
			rows, err := app.Baseline(ctx, current)

			Convey("Then the baseline is just the current round's rows", func() {
				So(err, ShouldBeNil)
				So(rows, ShouldBeEmpty)
			})
		})

		Convey("When the store read fails", func() {
			repo.err = errors.New("connection reset")
			_, err := app.Baseline(ctx, current)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestSaveResult(t *testing.T) {
	Convey("Given the result app", t, func() {
		repo := &fakeResultRepo{rows: map[uuid.UUID][]models.RoundResult{}}
		app := result.NewApp(repo, &fakeRoundSource{err: round.ErrNotFound})
		res := models.RoundResult{
			RoundID:   uuid.New(),
			UserID:    uuid.New(),
			Username:  "bob",
			TypedText: "hello",
			Finished:  true,
			UpdatedAt: time.Now(),
		}

		Convey("When saving twice (completion then the expiry write)", func() {
			So(app.SaveResult(context.Background(), res), ShouldBeNil)
			res.Finished = false
			So(app.SaveResult(context.Background(), res), ShouldBeNil)

			Convey("Then both writes reach the upsert, last write winning at the store", func() {
				So(repo.saved, ShouldHaveLength, 2)
			})
		})
	})
}
