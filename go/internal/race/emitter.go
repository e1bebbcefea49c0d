package race

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/typerace/go/internal/channel"
	"github.com/mcdev12/typerace/go/internal/metrics"
	"github.com/mcdev12/typerace/go/internal/models"
	"github.com/rs/zerolog/log"
)

// DefaultThrottleInterval is the minimum gap between broadcast sends per
// sender.
const DefaultThrottleInterval = 120 * time.Millisecond

// Emitter throttles broadcast sends: leading-edge immediate when idle, and
// a guaranteed trailing flush of the most recent payload, so the last
// keystroke state is never silently lost. There is no queue beyond the
// single latest pending payload; superseded payloads are replaced.
//
// The channel handle is swapped atomically on round transition so a pending
// flush always reaches whichever channel is currently live.
type Emitter struct {
	clock    clockwork.Clock
	interval time.Duration

	mu      sync.Mutex
	ch      channel.Channel
	last    time.Time
	pending *models.BroadcastPayload
	timer   clockwork.Timer
}

func NewEmitter(clock clockwork.Clock, interval time.Duration) *Emitter {
	if interval <= 0 {
		interval = DefaultThrottleInterval
	}
	return &Emitter{
		clock:    clock,
		interval: interval,
	}
}

// SetChannel swaps the live channel handle. A nil channel suspends sends.
func (e *Emitter) SetChannel(ch channel.Channel) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ch = ch
}

// Send broadcasts now if the throttle window is clear, otherwise records the
// payload as the single pending flush and arms the trailing timer.
func (e *Emitter) Send(ctx context.Context, payload *models.BroadcastPayload) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	remaining := e.interval - now.Sub(e.last)
	if remaining <= 0 && e.pending == nil {
		e.last = now
		e.send(ctx, payload)
		return
	}

	e.pending = payload
	if e.timer == nil {
		if remaining <= 0 {
			remaining = e.interval
		}
		e.timer = e.clock.AfterFunc(remaining, e.flush)
	}
}

// flush sends the latest pending payload after the throttle window closes.
func (e *Emitter) flush() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.timer = nil
	if e.pending == nil {
		return
	}
	payload := e.pending
	e.pending = nil
	e.last = e.clock.Now()
	e.send(context.Background(), payload)
}

// send publishes on the live channel. Callers hold e.mu. Failures are
// logged and dropped: live sync is best effort and the persisted result
// remains the source of truth.
func (e *Emitter) send(ctx context.Context, payload *models.BroadcastPayload) {
	if e.ch == nil {
		return
	}
	if err := e.ch.Send(ctx, payload); err != nil {
		log.Warn().Err(err).Msg("failed to broadcast typing update")
		return
	}
	metrics.BroadcastsSent.Inc()
}
