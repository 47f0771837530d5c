package httptransport

import (
	"net/http"
	"time"

	"domino-hall/internal/game"
	"domino-hall/internal/game/viewmodel"
	"domino-hall/internal/session"

	"github.com/go-chi/chi/v5"
)

type GameHandlers struct {
	reg *session.Registry
}

func NewGameHandlers(reg *session.Registry) *GameHandlers {
	return &GameHandlers{reg: reg}
}

type createGameRequest struct {
	Mode              string `json:"mode"`
	Capacity          int    `json:"capacity"`
	DominoesPerPlayer int    `json:"dominoes_per_player"`
	TurnTimeLimitMS   int64  `json:"turn_time_limit_ms"`
	Private           bool   `json:"private"`
	Password          string `json:"password"`
	Ranked            bool   `json:"ranked"`
}

func (req createGameRequest) config() game.Config {
	return game.Config{
		Mode:              req.Mode,
		Capacity:          req.Capacity,
		DominoesPerPlayer: req.DominoesPerPlayer,
		TurnTimeLimit:     time.Duration(req.TurnTimeLimitMS) * time.Millisecond,
		Private:           req.Private,
		Password:          req.Password,
		Ranked:            req.Ranked,
	}
}

type joinRequest struct {
	Player   game.Identity `json:"player"`
	Password string        `json:"password"`
}

type playerRequest struct {
	PlayerID string `json:"player_id"`
}

type readyRequest struct {
	PlayerID string `json:"player_id"`
	Ready    *bool  `json:"ready"`
}

type moveRequest struct {
	PlayerID string    `json:"player_id"`
	Tile     game.Tile `json:"tile"`
	End      game.End  `json:"end"`
}

type chatRequest struct {
	PlayerID string `json:"player_id"`
	Text     string `json:"text"`
}

type drawResponse struct {
	Tile  game.Tile                 `json:"tile"`
	State viewmodel.PlayerStateView `json:"state"`
}

func (h *GameHandlers) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createGameRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		g, err := h.reg.CreateGame(r.Context(), req.config())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, viewmodel.BuildPublicState(g))
	}
}

func (h *GameHandlers) List() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"game_ids": h.reg.LiveGames()})
	}
}

func (h *GameHandlers) PublicState() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := h.reg.PublicState(r.Context(), chi.URLParam(r, "game_id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func (h *GameHandlers) PlayerState() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := h.reg.PlayerState(r.Context(), chi.URLParam(r, "game_id"), chi.URLParam(r, "player_id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func (h *GameHandlers) Join() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req joinRequest
		if !decodeJSON(w, r, &req) || !requireField(w, "player.id", req.Player.ID) {
			return
		}
		g, err := h.reg.JoinGame(r.Context(), chi.URLParam(r, "game_id"), req.Player, req.Password)
		h.respondAs(w, g, req.Player.ID, err)
	}
}

func (h *GameHandlers) Leave() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req playerRequest
		if !decodeJSON(w, r, &req) || !requireField(w, "player_id", req.PlayerID) {
			return
		}
		g, err := h.reg.LeaveGame(r.Context(), chi.URLParam(r, "game_id"), req.PlayerID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, viewmodel.BuildPublicState(g))
	}
}

func (h *GameHandlers) Ready() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req readyRequest
		if !decodeJSON(w, r, &req) || !requireField(w, "player_id", req.PlayerID) {
			return
		}
		ready := true
		if req.Ready != nil {
			ready = *req.Ready
		}
		g, err := h.reg.SetReady(r.Context(), chi.URLParam(r, "game_id"), req.PlayerID, ready)
		h.respondAs(w, g, req.PlayerID, err)
	}
}

func (h *GameHandlers) Start() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, err := h.reg.StartGame(r.Context(), chi.URLParam(r, "game_id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, viewmodel.BuildPublicState(g))
	}
}

func (h *GameHandlers) Move() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req moveRequest
		if !decodeJSON(w, r, &req) || !requireField(w, "player_id", req.PlayerID) {
			return
		}
		g, err := h.reg.SubmitMove(r.Context(), chi.URLParam(r, "game_id"), req.PlayerID, game.Move{Tile: req.Tile, End: req.End})
		h.respondAs(w, g, req.PlayerID, err)
	}
}

func (h *GameHandlers) Draw() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req playerRequest
		if !decodeJSON(w, r, &req) || !requireField(w, "player_id", req.PlayerID) {
			return
		}
		g, tile, err := h.reg.DrawTile(r.Context(), chi.URLParam(r, "game_id"), req.PlayerID)
		if err != nil {
			writeError(w, err)
			return
		}
		view, _ := viewmodel.BuildPlayerState(g, req.PlayerID)
		writeJSON(w, http.StatusOK, drawResponse{Tile: tile, State: view})
	}
}

func (h *GameHandlers) Pass() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req playerRequest
		if !decodeJSON(w, r, &req) || !requireField(w, "player_id", req.PlayerID) {
			return
		}
		g, err := h.reg.PassTurn(r.Context(), chi.URLParam(r, "game_id"), req.PlayerID)
		h.respondAs(w, g, req.PlayerID, err)
	}
}

func (h *GameHandlers) Chat() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if !decodeJSON(w, r, &req) || !requireField(w, "player_id", req.PlayerID) || !requireField(w, "text", req.Text) {
			return
		}
		g, err := h.reg.SendChat(r.Context(), chi.URLParam(r, "game_id"), req.PlayerID, req.Text)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"game_id": g.ID, "chat": g.Chat})
	}
}

// respondAs renders the caller's private view, falling back to the public
// one once they are no longer seated.
func (h *GameHandlers) respondAs(w http.ResponseWriter, g *game.Game, playerID string, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	if view, ok := viewmodel.BuildPlayerState(g, playerID); ok {
		writeJSON(w, http.StatusOK, view)
		return
	}
	writeJSON(w, http.StatusOK, viewmodel.BuildPublicState(g))
}
