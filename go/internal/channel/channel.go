// Package channel abstracts the presence/broadcast transport: a shared named
// channel offering self-excluding broadcast plus presence join/leave/sync
// events. Implementations: a NATS-backed channel for deployments and an
// in-process hub for tests and single-node runs.
package channel

import (
	"context"

	"github.com/google/uuid"
	"github.com/mcdev12/typerace/go/internal/models"
)

// EventType identifies the kind of channel event.
type EventType string

const (
	EventPresenceSync  EventType = "presence_sync"
	EventPresenceJoin  EventType = "presence_join"
	EventPresenceLeave EventType = "presence_leave"
	EventBroadcast     EventType = "typing_update"
)

// Member identifies a participant tracked on the channel. Presence is keyed
// by UserID.
type Member struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
}

// Event is one delivery from the channel. Members is populated for sync
// events, Member for join/leave, Payload for broadcasts.
type Event struct {
	Type    EventType
	Member  Member
	Members []Member
	Payload *models.BroadcastPayload
}

// Channel is one participant's handle on the shared channel.
//
// Broadcast is self-excluding: an implementation never delivers a sender's
// own payload back to it. Events() is closed after Leave.
type Channel interface {
	// Join subscribes and begins tracking self-presence.
	Join(ctx context.Context, self Member) error

	// Send broadcasts a typing update to all other subscribers.
	Send(ctx context.Context, payload *models.BroadcastPayload) error

	// Events delivers presence and broadcast events in receipt order.
	Events() <-chan Event

	// Leave untracks presence and tears the subscription down.
	Leave() error
}
