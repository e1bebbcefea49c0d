package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/typerace/go/internal/models"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATSConfig holds configuration for the NATS-backed channel.
type NATSConfig struct {
	URL               string
	Namespace         string        // subject prefix, e.g. "typerace"
	ChannelName       string        // shared channel name, e.g. "race.global"
	HeartbeatInterval time.Duration // self-presence announce cadence
	PresenceTTL       time.Duration // member considered offline after this
	MaxReconnects     int
	ReconnectWait     time.Duration
}

// DefaultNATSConfig returns default NATS channel configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:               nats.DefaultURL,
		Namespace:         "typerace",
		ChannelName:       "race.global",
		HeartbeatInterval: 5 * time.Second,
		PresenceTTL:       15 * time.Second,
		MaxReconnects:     -1, // Infinite
		ReconnectWait:     2 * time.Second,
	}
}

// presenceKind discriminates presence announcements on the wire.
type presenceKind string

const (
	presenceJoin      presenceKind = "join"
	presenceLeave     presenceKind = "leave"
	presenceHeartbeat presenceKind = "heartbeat"
)

type presenceMessage struct {
	Kind   presenceKind `json:"kind"`
	Member Member       `json:"member"`
}

type presenceEntry struct {
	member   Member
	lastSeen time.Time
}

// NATSChannel implements Channel over plain NATS pub/sub. Presence is built
// from join/leave announcements plus heartbeats with a liveness TTL, so
// membership converges within one heartbeat interval of any change.
type NATSChannel struct {
	config NATSConfig
	clock  clockwork.Clock

	nc     *nats.Conn
	subs   []*nats.Subscription
	events chan Event
	done   chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	self    Member
	joined  bool
	members map[uuid.UUID]*presenceEntry
}

// NewNATSChannel creates an unjoined NATS channel handle.
func NewNATSChannel(config NATSConfig, clock clockwork.Clock) *NATSChannel {
	return &NATSChannel{
		config:  config,
		clock:   clock,
		events:  make(chan Event, eventBuffer),
		done:    make(chan struct{}),
		members: make(map[uuid.UUID]*presenceEntry),
	}
}

func (c *NATSChannel) broadcastSubject() string {
	return fmt.Sprintf("%s.%s.broadcast", c.config.Namespace, c.config.ChannelName)
}

func (c *NATSChannel) presenceSubject() string {
	return fmt.Sprintf("%s.%s.presence", c.config.Namespace, c.config.ChannelName)
}

func (c *NATSChannel) Join(ctx context.Context, self Member) error {
	c.mu.Lock()
	if c.joined {
		c.mu.Unlock()
		return fmt.Errorf("already joined as %s", c.self.UserID)
	}
	c.self = self
	c.joined = true
	c.mu.Unlock()

	opts := []nats.Option{
		nats.MaxReconnects(c.config.MaxReconnects),
		nats.ReconnectWait(c.config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(c.config.URL, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	c.nc = nc

	bSub, err := nc.Subscribe(c.broadcastSubject(), c.handleBroadcast)
	if err != nil {
		nc.Close()
		return fmt.Errorf("failed to subscribe to broadcast subject: %w", err)
	}
	pSub, err := nc.Subscribe(c.presenceSubject(), c.handlePresence)
	if err != nil {
		nc.Close()
		return fmt.Errorf("failed to subscribe to presence subject: %w", err)
	}
	c.subs = []*nats.Subscription{bSub, pSub}

	if err := c.announce(presenceJoin); err != nil {
		nc.Close()
		return fmt.Errorf("failed to announce join: %w", err)
	}

	c.wg.Add(1)
	go c.presenceLoop()

	log.Info().
		Str("user_id", self.UserID.String()).
		Str("subject", c.broadcastSubject()).
		Msg("joined race channel")
	return nil
}

func (c *NATSChannel) Send(ctx context.Context, payload *models.BroadcastPayload) error {
	c.mu.Lock()
	joined := c.joined && c.nc != nil
	c.mu.Unlock()
	if !joined {
		return fmt.Errorf("not joined to channel")
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal broadcast: %w", err)
	}
	if err := c.nc.Publish(c.broadcastSubject(), data); err != nil {
		return fmt.Errorf("failed to publish broadcast: %w", err)
	}
	return nil
}

func (c *NATSChannel) Events() <-chan Event {
	return c.events
}

func (c *NATSChannel) Leave() error {
	c.mu.Lock()
	if !c.joined || c.nc == nil {
		c.mu.Unlock()
		return nil
	}
	c.joined = false
	c.mu.Unlock()

	if err := c.announce(presenceLeave); err != nil {
		log.Warn().Err(err).Msg("failed to announce leave")
	}
	for _, sub := range c.subs {
		if err := sub.Unsubscribe(); err != nil {
			log.Warn().Err(err).Msg("failed to unsubscribe")
		}
	}
	close(c.done)
	c.wg.Wait()
	c.nc.Close()
	close(c.events)
	return nil
}

// announce publishes a presence message for self.
func (c *NATSChannel) announce(kind presenceKind) error {
	c.mu.Lock()
	msg := presenceMessage{Kind: kind, Member: c.self}
	c.mu.Unlock()

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal presence message: %w", err)
	}
	return c.nc.Publish(c.presenceSubject(), data)
}

// presenceLoop heartbeats self and expires silent members.
func (c *NATSChannel) presenceLoop() {
	defer c.wg.Done()
	ticker := c.clock.NewTicker(c.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.Chan():
			if err := c.announce(presenceHeartbeat); err != nil {
				log.Warn().Err(err).Msg("failed to publish heartbeat")
			}
			c.expireSilentMembers()
		}
	}
}

func (c *NATSChannel) expireSilentMembers() {
	now := c.clock.Now()

	c.mu.Lock()
	var expired []Member
	for id, entry := range c.members {
		if now.Sub(entry.lastSeen) > c.config.PresenceTTL {
			expired = append(expired, entry.member)
			delete(c.members, id)
		}
	}
	members := c.memberSnapshot()
	c.mu.Unlock()

	for _, m := range expired {
		log.Debug().Str("user_id", m.UserID.String()).Msg("presence expired")
		c.emit(Event{Type: EventPresenceLeave, Member: m})
	}
	if len(expired) > 0 {
		c.emit(Event{Type: EventPresenceSync, Members: members})
	}
}

func (c *NATSChannel) handlePresence(msg *nats.Msg) {
	var pm presenceMessage
	if err := json.Unmarshal(msg.Data, &pm); err != nil {
		log.Warn().Err(err).Msg("dropping malformed presence message")
		return
	}
	if pm.Member.UserID == uuid.Nil {
		return
	}

	c.mu.Lock()
	if pm.Member.UserID == c.self.UserID {
		c.mu.Unlock()
		return
	}

	switch pm.Kind {
	case presenceLeave:
		_, known := c.members[pm.Member.UserID]
		delete(c.members, pm.Member.UserID)
		members := c.memberSnapshot()
		c.mu.Unlock()
		if known {
			c.emit(Event{Type: EventPresenceLeave, Member: pm.Member})
			c.emit(Event{Type: EventPresenceSync, Members: members})
		}

	case presenceJoin, presenceHeartbeat:
		_, known := c.members[pm.Member.UserID]
		c.members[pm.Member.UserID] = &presenceEntry{
			member:   pm.Member,
			lastSeen: c.clock.Now(),
		}
		members := c.memberSnapshot()
		c.mu.Unlock()
		if !known {
			c.emit(Event{Type: EventPresenceJoin, Member: pm.Member})
			c.emit(Event{Type: EventPresenceSync, Members: members})
			if pm.Kind == presenceJoin {
				// Answer immediately so the joiner converges without
				// waiting a full heartbeat interval.
				if err := c.announce(presenceHeartbeat); err != nil {
					log.Warn().Err(err).Msg("failed to answer join with heartbeat")
				}
			}
		}

	default:
		c.mu.Unlock()
		log.Warn().Str("kind", string(pm.Kind)).Msg("unknown presence kind, ignoring")
	}
}

func (c *NATSChannel) handleBroadcast(msg *nats.Msg) {
	var payload models.BroadcastPayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		log.Warn().Err(err).Msg("dropping malformed broadcast")
		return
	}

	c.mu.Lock()
	self := c.self.UserID
	c.mu.Unlock()
	if payload.UserID == self {
		// Broadcast is self-excluding.
		return
	}

	c.emit(Event{Type: EventBroadcast, Payload: &payload})
}

// memberSnapshot returns the current online set including self.
// Callers hold c.mu.
func (c *NATSChannel) memberSnapshot() []Member {
	members := make([]Member, 0, len(c.members)+1)
	members = append(members, c.self)
	for _, entry := range c.members {
		members = append(members, entry.member)
	}
	return members
}

func (c *NATSChannel) emit(ev Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	default:
		log.Warn().
			Str("event_type", string(ev.Type)).
			Msg("event buffer full, dropping event")
	}
}
