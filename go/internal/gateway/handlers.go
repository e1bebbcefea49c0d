// Package gateway exposes the HTTP surface: round provisioning, the
// WebSocket race endpoint, health and metrics.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcdev12/typerace/go/internal/models"
	"github.com/mcdev12/typerace/go/internal/round"
	"github.com/rs/zerolog/log"
)

// RoundEnsurer provisions the active round on demand.
type RoundEnsurer interface {
	EnsureActiveRound(ctx context.Context) (*models.Round, error)
}

// Handler serves the REST endpoints.
type Handler struct {
	rounds RoundEnsurer
}

func NewHandler(rounds RoundEnsurer) *Handler {
	return &Handler{rounds: rounds}
}

type errorResponse struct {
	Error string `json:"error"`
}

// HandleEnsureRound returns the currently active round, creating the next
// one if the latest has expired. Any client may call this at any time; the
// store's uniqueness constraint keeps concurrent callers converging on one
// winner.
func (h *Handler) HandleEnsureRound(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	rnd, err := h.rounds.EnsureActiveRound(r.Context())
	if err != nil {
		if errors.Is(err, round.ErrEmptySentencePool) {
			log.Error().Err(err).Msg("round provisioning failed: sentence pool is empty")
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "no sentences configured"})
			return
		}
		log.Error().Err(err).Msg("failed to ensure active round")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to ensure round"})
		return
	}

	writeJSON(w, http.StatusOK, rnd)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}

// RegisterRoutes registers the REST routes with an HTTP mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/rounds/ensure", h.HandleEnsureRound)
}
