package driver

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/typerace/go/internal/channel"
	"github.com/mcdev12/typerace/go/internal/models"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeRounds hands out the first scheduled round still active at the fake
// clock's current time, falling back to the last one when all have expired.
type fakeRounds struct {
	clock  clockwork.Clock
	rounds []*models.Round
}

func (f *fakeRounds) EnsureActiveRound(ctx context.Context) (*models.Round, error) {
	now := f.clock.Now()
	for _, r := range f.rounds {
		if r.EndAt.After(now) {
			return r, nil
		}
	}
	return f.rounds[len(f.rounds)-1], nil
}

type recordingStore struct {
	mu    sync.Mutex
	saved []models.RoundResult
}

func (r *recordingStore) SaveResult(ctx context.Context, res models.RoundResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, res)
	return nil
}

func (r *recordingStore) results() []models.RoundResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.RoundResult, len(r.saved))
	copy(out, r.saved)
	return out
}

type emptyBaseline struct{}

func (emptyBaseline) Baseline(ctx context.Context, round *models.Round) ([]models.PlayerState, error) {
	return nil, nil
}

func eventually(fn func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if fn() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return fn()
}

func makeRound(number int, sentence string, start time.Time, duration time.Duration) *models.Round {
	return &models.Round{
		ID:          uuid.New(),
		RoundNumber: number,
		StartAt:     start,
		EndAt:       start.Add(duration),
		Sentence: models.Sentence{
			ID:   uuid.New(),
			Text: sentence,
		},
	}
}

func newTestSession(rounds RoundService, store ResultStore, clock clockwork.Clock) *Session {
	hub := channel.NewHub()
	self := channel.Member{UserID: uuid.New(), Username: "runner"}
	return NewSession(
		rounds,
		store,
		emptyBaseline{},
		func() channel.Channel { return hub.NewChannel() },
		clock,
		self,
		120*time.Millisecond,
	)
}

func TestSessionPersistence(t *testing.T) {
	Convey("Given a session in an active round", t, func() {
		clock := clockwork.NewFakeClock()
		round := makeRound(1, "go far", clock.Now(), time.Minute)
		store := &recordingStore{}
		sess := newTestSession(&fakeRounds{clock: clock, rounds: []*models.Round{round}}, store, clock)

		err := sess.Start(context.Background())
		So(err, ShouldBeNil)

		Reset(func() { _ = sess.Stop() })

		Convey("When the sentence is typed exactly", func() {
			clock.Advance(5 * time.Second)
			sess.HandleInput("go far")

			Convey("The result is persisted once as finished", func() {
				saved := store.results()
				So(saved, ShouldHaveLength, 1)
				So(saved[0].Finished, ShouldBeTrue)
				So(saved[0].RoundID, ShouldEqual, round.ID)
				So(saved[0].TypedText, ShouldEqual, "go far")
				So(saved[0].CorrectChars, ShouldEqual, 6)
				So(saved[0].Accuracy, ShouldEqual, 1.0)
			})

			Convey("Further input does not persist again", func() {
				sess.HandleInput("go far")
				So(store.results(), ShouldHaveLength, 1)
			})

			Convey("Expiry does not persist a second row", func() {
				clock.Advance(time.Minute)
				So(eventually(func() bool { return len(store.results()) >= 1 }), ShouldBeTrue)
				time.Sleep(10 * time.Millisecond)
				So(store.results(), ShouldHaveLength, 1)
			})
		})

		Convey("When the round expires with partial input", func() {
			clock.Advance(10 * time.Second)
			sess.HandleInput("go f")
			clock.Advance(50 * time.Second)

			Convey("An unfinished result is persisted once", func() {
				So(eventually(func() bool { return len(store.results()) == 1 }), ShouldBeTrue)
				saved := store.results()
				So(saved[0].Finished, ShouldBeFalse)
				So(saved[0].TypedText, ShouldEqual, "go f")
				So(saved[0].CorrectChars, ShouldEqual, 4)
			})
		})

		Convey("When the round expires with nothing typed", func() {
			clock.Advance(time.Minute + time.Second)

			Convey("Nothing is persisted", func() {
				time.Sleep(10 * time.Millisecond)
				So(store.results(), ShouldBeEmpty)
			})
		})

		Convey("Input after expiry is ignored", func() {
			clock.Advance(time.Minute + time.Second)
			sess.HandleInput("go far")
			time.Sleep(10 * time.Millisecond)
			So(store.results(), ShouldBeEmpty)
		})

		Convey("Typed text beyond the sentence is capped", func() {
			clock.Advance(2 * time.Second)
			sess.HandleInput("go far and beyond")

			saved := store.results()
			So(saved, ShouldHaveLength, 1)
			So(saved[0].TypedText, ShouldEqual, "go far")
			So(saved[0].Finished, ShouldBeTrue)
		})
	})
}

func TestSessionLeaderboard(t *testing.T) {
	Convey("Given a session with local input", t, func() {
		clock := clockwork.NewFakeClock()
		round := makeRound(1, "hello", clock.Now(), time.Minute)
		store := &recordingStore{}
		sess := newTestSession(&fakeRounds{clock: clock, rounds: []*models.Round{round}}, store, clock)

		So(sess.Start(context.Background()), ShouldBeNil)
		Reset(func() { _ = sess.Stop() })

		clock.Advance(5 * time.Second)
		sess.HandleInput("hel")

		Convey("The leaderboard contains the caller's own row", func() {
			players := sess.Leaderboard()
			So(players, ShouldHaveLength, 1)
			So(players[0].UserID, ShouldEqual, sess.SelfID())
			So(players[0].TypedText, ShouldEqual, "hel")
			So(players[0].CorrectChars, ShouldEqual, 3)
			So(players[0].IsOnline, ShouldBeTrue)
			So(players[0].Finished, ShouldBeFalse)
		})
	})
}

func TestSessionCountdown(t *testing.T) {
	Convey("Given a session in a 60 second round", t, func() {
		clock := clockwork.NewFakeClock()
		round := makeRound(1, "tick", clock.Now(), time.Minute)
		sess := newTestSession(&fakeRounds{clock: clock, rounds: []*models.Round{round}}, &recordingStore{}, clock)

		So(sess.Start(context.Background()), ShouldBeNil)
		Reset(func() { _ = sess.Stop() })

		Convey("SecondsLeft counts down with the clock", func() {
			So(sess.SecondsLeft(), ShouldEqual, 60)
			clock.Advance(25 * time.Second)
			So(sess.SecondsLeft(), ShouldEqual, 35)
			clock.Advance(40 * time.Second)
			So(sess.SecondsLeft(), ShouldEqual, 0)
		})
	})
}

func TestSessionRoundTransition(t *testing.T) {
	Convey("Given consecutive rounds", t, func() {
		clock := clockwork.NewFakeClock()
		first := makeRound(1, "alpha", clock.Now(), time.Minute)
		second := makeRound(2, "bravo", clock.Now().Add(time.Minute), time.Minute)
		rounds := &fakeRounds{clock: clock, rounds: []*models.Round{first, second}}
		store := &recordingStore{}
		sess := newTestSession(rounds, store, clock)

		So(sess.Start(context.Background()), ShouldBeNil)
		Reset(func() { _ = sess.Stop() })

		clock.Advance(10 * time.Second)
		sess.HandleInput("alp")

		Convey("When the first round ends", func() {
			clock.Advance(50 * time.Second)
			// Expiry persist fires first, then the delayed refetch.
			So(eventually(func() bool { return len(store.results()) == 1 }), ShouldBeTrue)

			Convey("The session moves onto the next round with reset state", func() {
				// The refetch timer is armed on the expiry goroutine, so
				// keep nudging the clock until it has fired.
				So(eventually(func() bool {
					clock.Advance(time.Second)
					r := sess.Round()
					return r != nil && r.ID == second.ID
				}), ShouldBeTrue)

				players := sess.Leaderboard()
				So(players, ShouldHaveLength, 1)
				So(players[0].TypedText, ShouldEqual, "")

				Convey("And input now persists against the new round", func() {
					sess.HandleInput("bravo")
					saved := store.results()
					So(saved, ShouldHaveLength, 2)
					So(saved[1].RoundID, ShouldEqual, second.ID)
					So(saved[1].Finished, ShouldBeTrue)
				})
			})
		})
	})
}
