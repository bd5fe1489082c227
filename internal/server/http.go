package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"battleship-server/internal/constants"
	"battleship-server/internal/game"
	"battleship-server/internal/history"
	"battleship-server/internal/lobby"
	"battleship-server/internal/stats"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// HTTPHandler serves the read-only sidecar API: health, leaderboard and
// per-player match history. Game traffic never flows through HTTP.
type HTTPHandler struct {
	server   *Server
	registry *game.Registry
	queue    *lobby.Queue
	rooms    *lobby.Rooms
	store    *stats.Store
	history  *history.Repository
	logger   zerolog.Logger
}

func NewHTTPHandler(srv *Server, registry *game.Registry, queue *lobby.Queue, rooms *lobby.Rooms, store *stats.Store, hist *history.Repository, logger zerolog.Logger) http.Handler {
	h := &HTTPHandler{
		server:   srv,
		registry: registry,
		queue:    queue,
		rooms:    rooms,
		store:    store,
		history:  hist,
		logger:   logger.With().Str("component", "http_api").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/leaderboard", h.handleLeaderboard)
	mux.HandleFunc("/history", h.handleHistory)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(h.withAccessLog(mux))
}

func (h *HTTPHandler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Msg("http request")
		next.ServeHTTP(w, r)
	})
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  constants.ServerVersion,
		"sessions": h.server.SessionCount(),
		"matches":  h.registry.Count(),
		"queued":   h.queue.Waiting(),
		"rooms":    h.rooms.Count(),
	})
}

func (h *HTTPHandler) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"leaderboard": h.store.Leaderboard(constants.LeaderboardLimit),
	})
}

func (h *HTTPHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	player := strings.TrimSpace(r.URL.Query().Get("player"))
	if player == "" {
		http.Error(w, "missing player parameter", http.StatusBadRequest)
		return
	}

	entries, err := h.history.RecentForPlayer(r.Context(), player, constants.HistoryQueryLimit)
	if err != nil {
		h.logger.Error().Err(err).Str("player", player).Msg("history query failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"player":  player,
		"matches": entries,
	})
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error().Err(err).Msg("failed to write response")
	}
}
