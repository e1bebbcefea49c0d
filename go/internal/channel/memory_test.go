package channel_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/typerace/go/internal/channel"
	"github.com/mcdev12/typerace/go/internal/models"
	. "github.com/smartystreets/goconvey/convey"
)

func drainUntil(t *testing.T, ch <-chan channel.Event, want channel.EventType) channel.Event {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("event channel closed while waiting for %s", want)
			}
			if ev.Type == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestMemoryChannel(t *testing.T) {
	Convey("Given two members on one hub", t, func() {
		ctx := context.Background()
		hub := channel.NewHub()
		alice := channel.Member{UserID: uuid.New(), Username: "alice"}
		bob := channel.Member{UserID: uuid.New(), Username: "bob"}

		chA := hub.NewChannel()
		chB := hub.NewChannel()
		So(chA.Join(ctx, alice), ShouldBeNil)

		Convey("When the second member joins", func() {
			So(chB.Join(ctx, bob), ShouldBeNil)

			Convey("Then the first member sees a join and a full sync", func() {
				ev := drainUntil(t, chA.Events(), channel.EventPresenceJoin)
				So(ev.Member.UserID, ShouldEqual, bob.UserID)

				sync := drainUntil(t, chA.Events(), channel.EventPresenceSync)
				So(sync.Members, ShouldHaveLength, 2)
			})
		})

		Convey("When a member broadcasts", func() {
			So(chB.Join(ctx, bob), ShouldBeNil)
			payload := &models.BroadcastPayload{
				RoundID:  uuid.New(),
				UserID:   bob.UserID,
				Username: "bob",
			}
			So(chB.Send(ctx, payload), ShouldBeNil)

			Convey("Then the other member receives it", func() {
				ev := drainUntil(t, chA.Events(), channel.EventBroadcast)
				So(ev.Payload.UserID, ShouldEqual, bob.UserID)
			})

			Convey("And the sender does not receive its own payload", func() {
				done := make(chan struct{})
				go func() {
					defer close(done)
					for ev := range chB.Events() {
						if ev.Type == channel.EventBroadcast && ev.Payload.UserID == bob.UserID {
							t.Error("sender received its own broadcast")
						}
					}
				}()
				So(chB.Leave(), ShouldBeNil)
				<-done
			})
		})

		Convey("When a member leaves", func() {
			So(chB.Join(ctx, bob), ShouldBeNil)
			So(chB.Leave(), ShouldBeNil)

			Convey("Then the remaining member sees the leave and a shrunken sync", func() {
				ev := drainUntil(t, chA.Events(), channel.EventPresenceLeave)
				So(ev.Member.UserID, ShouldEqual, bob.UserID)
			})

			Convey("And the left member's event stream is closed", func() {
				for range chB.Events() {
				}
			})
		})

		Convey("When sending without joining", func() {
			unjoined := hub.NewChannel()
			err := unjoined.Send(ctx, &models.BroadcastPayload{})
			So(err, ShouldNotBeNil)
		})
	})
}
