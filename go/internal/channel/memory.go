package channel

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/mcdev12/typerace/go/internal/models"
	"github.com/rs/zerolog/log"
)

// eventBuffer is the per-subscriber event queue size. A subscriber that
// falls this far behind starts losing events, which best-effort live sync
// tolerates.
const eventBuffer = 64

// Hub is an in-process presence/broadcast fabric. All channels created from
// one hub share membership and broadcasts.
type Hub struct {
	mu    sync.Mutex
	conns map[uuid.UUID]*MemoryChannel
}

func NewHub() *Hub {
	return &Hub{
		conns: make(map[uuid.UUID]*MemoryChannel),
	}
}

// NewChannel returns an unjoined channel handle on this hub.
func (h *Hub) NewChannel() *MemoryChannel {
	return &MemoryChannel{
		hub:    h,
		events: make(chan Event, eventBuffer),
	}
}

func (h *Hub) members() []Member {
	members := make([]Member, 0, len(h.conns))
	for _, c := range h.conns {
		members = append(members, c.self)
	}
	return members
}

// deliver fans an event out to every joined channel except the excluded one.
// Callers hold h.mu.
func (h *Hub) deliver(ev Event, exclude uuid.UUID) {
	for id, c := range h.conns {
		if id == exclude {
			continue
		}
		select {
		case c.events <- ev:
		default:
			log.Warn().
				Str("user_id", id.String()).
				Str("event_type", string(ev.Type)).
				Msg("subscriber event buffer full, dropping event")
		}
	}
}

// MemoryChannel implements Channel against an in-process Hub.
type MemoryChannel struct {
	hub    *Hub
	events chan Event

	mu     sync.Mutex
	self   Member
	joined bool
	left   bool
}

func (c *MemoryChannel) Join(ctx context.Context, self Member) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.joined {
		return fmt.Errorf("already joined as %s", c.self.UserID)
	}
	c.self = self
	c.joined = true

	h := c.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[self.UserID] = c

	members := h.members()
	h.deliver(Event{Type: EventPresenceJoin, Member: self}, self.UserID)
	// Everyone, the joiner included, reconciles against the new full set.
	for _, conn := range h.conns {
		select {
		case conn.events <- Event{Type: EventPresenceSync, Members: members}:
		default:
		}
	}
	return nil
}

func (c *MemoryChannel) Send(ctx context.Context, payload *models.BroadcastPayload) error {
	c.mu.Lock()
	if !c.joined || c.left {
		c.mu.Unlock()
		return fmt.Errorf("channel not joined")
	}
	self := c.self
	c.mu.Unlock()

	h := c.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deliver(Event{Type: EventBroadcast, Payload: payload}, self.UserID)
	return nil
}

func (c *MemoryChannel) Events() <-chan Event {
	return c.events
}

func (c *MemoryChannel) Leave() error {
	c.mu.Lock()
	if !c.joined || c.left {
		c.mu.Unlock()
		return nil
	}
	c.left = true
	self := c.self
	c.mu.Unlock()

	h := c.hub
	h.mu.Lock()
	delete(h.conns, self.UserID)
	members := h.members()
	h.deliver(Event{Type: EventPresenceLeave, Member: self}, self.UserID)
	h.deliver(Event{Type: EventPresenceSync, Members: members}, self.UserID)
	h.mu.Unlock()

	close(c.events)
	return nil
}
