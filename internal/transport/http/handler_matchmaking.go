package httptransport

import (
	"net/http"

	"domino-hall/internal/game"
	"domino-hall/internal/matchmaking"

	"github.com/go-chi/chi/v5"
)

type MatchmakingHandlers struct {
	sched *matchmaking.Scheduler
}

func NewMatchmakingHandlers(sched *matchmaking.Scheduler) *MatchmakingHandlers {
	return &MatchmakingHandlers{sched: sched}
}

type enqueueRequest struct {
	Player   game.Identity `json:"player"`
	Mode     string        `json:"mode"`
	Capacity int           `json:"capacity"`
}

func (h *MatchmakingHandlers) Enqueue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req enqueueRequest
		if !decodeJSON(w, r, &req) || !requireField(w, "player.id", req.Player.ID) {
			return
		}
		entry, err := h.sched.Enqueue(req.Player, req.Mode, req.Capacity)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, entry)
	}
}

func (h *MatchmakingHandlers) Dequeue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		removed := h.sched.Remove(chi.URLParam(r, "player_id"))
		writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
	}
}

func (h *MatchmakingHandlers) Position() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, ok := h.sched.Position(chi.URLParam(r, "player_id"))
		if !ok {
			WriteHTTPError(w, http.StatusNotFound, "not_queued")
			return
		}
		writeJSON(w, http.StatusOK, entry)
	}
}

func (h *MatchmakingHandlers) Snapshot() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"buckets": h.sched.Snapshot()})
	}
}
