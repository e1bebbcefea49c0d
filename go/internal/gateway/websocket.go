package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/typerace/go/internal/channel"
	"github.com/mcdev12/typerace/go/internal/driver"
	"github.com/mcdev12/typerace/go/internal/models"
	"github.com/rs/zerolog/log"
)

// SessionFactory builds a race session for a connecting participant.
type SessionFactory func(self channel.Member) *driver.Session

// ConnectionConfig holds configuration for WebSocket race connections.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	StateInterval   time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		StateInterval:   time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// WebSocketHandler upgrades race connections and bridges them onto driver
// sessions.
type WebSocketHandler struct {
	newSession SessionFactory
	upgrader   websocket.Upgrader
	config     ConnectionConfig
}

func NewWebSocketHandler(newSession SessionFactory, config ConnectionConfig) *WebSocketHandler {
	return &WebSocketHandler{
		newSession: newSession,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config: config,
	}
}

// inputMessage is what clients send: their full typed text on every change.
type inputMessage struct {
	Type      string `json:"type"`
	TypedText string `json:"typed_text"`
}

// stateMessage is pushed to clients once per state interval and after each
// input: the round, the countdown, and the merged leaderboard.
type stateMessage struct {
	Type        string               `json:"type"`
	Round       *models.Round        `json:"round"`
	SecondsLeft int                  `json:"seconds_left"`
	Players     []models.PlayerState `json:"players"`
}

// HandleRaceConnection upgrades the request and runs a session for the
// participant until the socket closes.
func (h *WebSocketHandler) HandleRaceConnection(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		http.Error(w, "valid user_id is required", http.StatusBadRequest)
		return
	}

	username := r.URL.Query().Get("username")
	if username == "" {
		http.Error(w, "username is required", http.StatusBadRequest)
		return
	}
	if runes := []rune(username); len(runes) > 24 {
		username = string(runes[:24])
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return
	}

	self := channel.Member{UserID: userID, Username: username}
	sess := h.newSession(self)

	// The session outlives the HTTP handler, so it runs off the request
	// context.
	if err := sess.Start(context.Background()); err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID.String()).
			Msg("failed to start race session")
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "no active round"),
			time.Now().Add(h.config.WriteTimeout),
		)
		conn.Close()
		return
	}

	rc := &raceConn{
		ws:      conn,
		sess:    sess,
		config:  h.config,
		refresh: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	go rc.writePump()
	go rc.readPump()

	log.Info().
		Str("user_id", userID.String()).
		Str("username", username).
		Msg("race connection established")
}

// raceConn couples one WebSocket to one driver session.
type raceConn struct {
	ws      *websocket.Conn
	sess    *driver.Session
	config  ConnectionConfig
	refresh chan struct{}
	done    chan struct{}
}

// readPump consumes client input messages and feeds them to the session.
func (c *raceConn) readPump() {
	defer func() {
		close(c.done)
		c.ws.Close()
		if err := c.sess.Stop(); err != nil {
			log.Warn().Err(err).Msg("failed to stop race session")
		}
	}()

	c.ws.SetReadLimit(c.config.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Msg("unexpected WebSocket close error")
			}
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		var msg inputMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Debug().Err(err).Msg("dropping malformed client message")
			continue
		}
		if msg.Type != "input" {
			continue
		}

		c.sess.HandleInput(msg.TypedText)

		// Reflect the input in the next state push without waiting out
		// the interval.
		select {
		case c.refresh <- struct{}{}:
		default:
		}
	}
}

// writePump pushes state snapshots and keepalive pings until the connection
// drops.
func (c *raceConn) writePump() {
	state := time.NewTicker(c.config.StateInterval)
	ping := time.NewTicker(c.config.PingInterval)
	defer func() {
		state.Stop()
		ping.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case <-state.C:
			if !c.pushState() {
				return
			}
		case <-c.refresh:
			if !c.pushState() {
				return
			}
		case <-ping.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Msg("failed to send ping")
				return
			}
		}
	}
}

func (c *raceConn) pushState() bool {
	msg := stateMessage{
		Type:        "state",
		Round:       c.sess.Round(),
		SecondsLeft: c.sess.SecondsLeft(),
		Players:     c.sess.Leaderboard(),
	}

	c.ws.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := c.ws.WriteJSON(msg); err != nil {
		log.Debug().Err(err).Msg("failed to write state message")
		return false
	}
	return true
}

// RegisterRoutes registers the WebSocket route with an HTTP mux.
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/race", h.HandleRaceConnection)
}
