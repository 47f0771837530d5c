package httptransport

import (
	"net/http"

	"domino-hall/internal/game"
	"domino-hall/internal/tournament"

	"github.com/go-chi/chi/v5"
)

type TournamentHandlers struct {
	sched *tournament.Scheduler
}

func NewTournamentHandlers(sched *tournament.Scheduler) *TournamentHandlers {
	return &TournamentHandlers{sched: sched}
}

type registerRequest struct {
	Player game.Identity `json:"player"`
}

type resultRequest struct {
	GameID   string `json:"game_id"`
	WinnerID string `json:"winner_id"`
}

func (h *TournamentHandlers) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cfg tournament.Config
		if !decodeJSON(w, r, &cfg) {
			return
		}
		t, err := h.sched.Create(cfg)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, t)
	}
}

func (h *TournamentHandlers) List() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"items": h.sched.List()})
	}
}

func (h *TournamentHandlers) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := h.sched.Get(chi.URLParam(r, "tournament_id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func (h *TournamentHandlers) Register() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if !decodeJSON(w, r, &req) || !requireField(w, "player.id", req.Player.ID) {
			return
		}
		t, err := h.sched.Register(chi.URLParam(r, "tournament_id"), req.Player)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func (h *TournamentHandlers) Unregister() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := h.sched.Unregister(chi.URLParam(r, "tournament_id"), chi.URLParam(r, "player_id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func (h *TournamentHandlers) Start() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := h.sched.Start(r.Context(), chi.URLParam(r, "tournament_id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func (h *TournamentHandlers) Resume() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "tournament_id")
		if err := h.sched.Resume(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		t, err := h.sched.Get(id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func (h *TournamentHandlers) Cancel() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := h.sched.Cancel(r.Context(), chi.URLParam(r, "tournament_id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

// Report accepts a match result for games played outside the registry's
// automatic end detection.
func (h *TournamentHandlers) Report() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req resultRequest
		if !decodeJSON(w, r, &req) || !requireField(w, "game_id", req.GameID) || !requireField(w, "winner_id", req.WinnerID) {
			return
		}
		tid, _, _ := h.sched.MatchFor(req.GameID)
		if err := h.sched.ReportResult(r.Context(), req.GameID, req.WinnerID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "tournament_id": tid})
	}
}
