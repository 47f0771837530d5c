package httptransport

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"domino-hall/internal/game"
	"domino-hall/internal/logging"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v3"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 64 << 10

func APILogMiddleware() func(http.Handler) http.Handler {
	return httplog.RequestLogger(
		slog.New(slog.NewJSONHandler(logging.Writer(), &slog.HandlerOptions{})),
		&httplog.Options{
			Level:              slog.LevelInfo,
			Schema:             httplog.Schema{ResponseStatus: "status", ResponseDuration: "duration_ms"},
			LogRequestBody:     func(*http.Request) bool { return false },
			LogResponseBody:    func(*http.Request) bool { return false },
			LogRequestHeaders:  []string{},
			LogResponseHeaders: []string{},
			LogExtraAttrs: func(req *http.Request, _ string, _ int) []slog.Attr {
				return []slog.Attr{
					slog.String("request_id", chimw.GetReqID(req.Context())),
					slog.String("method", req.Method),
					slog.String("route", routePattern(req)),
					slog.String("path", req.URL.Path),
				}
			},
		},
	)
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
		return rc.RoutePattern()
	}
	return r.URL.Path
}

type errorBody struct {
	Error  string `json:"error"`
	GameID string `json:"game_id,omitempty"`
	Field  string `json:"field,omitempty"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteHTTPError writes a bare error code.
func WriteHTTPError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, errorBody{Error: code})
}

// writeError maps a domain error to its status code and body. Errors outside
// the game taxonomy become internal_error without leaking their text.
func writeError(w http.ResponseWriter, err error) {
	var ge *game.Error
	if !errors.As(err, &ge) {
		WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	body := errorBody{Error: string(ge.Kind), GameID: ge.GameID, Field: ge.Field, Detail: ge.Detail}
	if ge.Kind == game.KindUnavailable {
		w.Header().Set("Retry-After", "1")
		body.Detail = ""
	}
	writeJSON(w, statusFor(ge.Kind), body)
}

func statusFor(kind game.Kind) int {
	switch kind {
	case game.KindGameNotFound, game.KindTournamentNotFound:
		return http.StatusNotFound
	case game.KindPlayerNotInGame:
		return http.StatusForbidden
	case game.KindWrongPassword:
		return http.StatusUnauthorized
	case game.KindInvalidConfig:
		return http.StatusBadRequest
	case game.KindTileNotInHand, game.KindInvalidMove:
		return http.StatusUnprocessableEntity
	case game.KindUnavailable:
		return http.StatusServiceUnavailable
	case game.KindGameFull, game.KindAlreadyStarted, game.KindNotEnoughPlayers,
		game.KindDuplicatePlayer, game.KindNotYourTurn, game.KindAlreadyQueued,
		game.KindRegistrationClosed, game.KindTournamentFull, game.KindNotEnoughParticipants:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a bounded JSON body into v. An empty body leaves v as is.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_request", Detail: err.Error()})
		return false
	}
	return true
}

func requireField(w http.ResponseWriter, field, value string) bool {
	if value != "" {
		return true
	}
	writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_request", Field: field, Detail: "required"})
	return false
}

// parseLimit reads ?limit= clamped to [1, 200], default 20.
func parseLimit(r *http.Request) int {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 200 {
		limit = 200
	}
	return limit
}
