package httptransport

import (
	"context"
	"errors"
	"net/http"

	"domino-hall/internal/game"
	"domino-hall/internal/store"

	"github.com/go-chi/chi/v5"
)

// HistoryReader is the read side of the Postgres history store.
type HistoryReader interface {
	GetGameRecord(ctx context.Context, gameID string) (*store.GameRecord, error)
	ListPlayerGames(ctx context.Context, playerID string, limit int) ([]store.GameRecord, error)
	GetTournamentRecord(ctx context.Context, id string) (*store.TournamentRecord, error)
}

type HistoryHandlers struct {
	history HistoryReader
}

func NewHistoryHandlers(history HistoryReader) *HistoryHandlers {
	return &HistoryHandlers{history: history}
}

func (h *HistoryHandlers) Game() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "game_id")
		rec, err := h.history.GetGameRecord(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, game.NewError(game.KindGameNotFound, id, "", "no finished game recorded"))
			return
		}
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func (h *HistoryHandlers) PlayerGames() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := h.history.ListPlayerGames(r.Context(), chi.URLParam(r, "player_id"), parseLimit(r))
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		if items == nil {
			items = []store.GameRecord{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	}
}

func (h *HistoryHandlers) Tournament() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "tournament_id")
		rec, err := h.history.GetTournamentRecord(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, game.NewError(game.KindTournamentNotFound, "", "tournament_id", id))
			return
		}
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}
