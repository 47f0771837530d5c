package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"domino-hall/internal/config"
	"domino-hall/internal/game"
	"domino-hall/internal/game/viewmodel"
	"domino-hall/internal/matchmaking"
	"domino-hall/internal/session"
	"domino-hall/internal/store"
	"domino-hall/internal/tournament"
)

type testServer struct {
	*httptest.Server
	reg   *session.Registry
	queue *matchmaking.Scheduler
	cups  *tournament.Scheduler
}

func newTestServer(t *testing.T, mutate func(*Deps)) *testServer {
	t.Helper()
	reg := session.New(session.Options{Origin: "http-test"})
	queue := matchmaking.New(reg, matchmaking.Options{AutoStartDelay: time.Hour})
	cups := tournament.New(reg, tournament.Options{AutoStartDelay: time.Hour})
	deps := Deps{Registry: reg, Matchmaking: queue, Tournaments: cups}
	if mutate != nil {
		mutate(&deps)
	}
	srv := httptest.NewServer(NewRouter(deps, config.ServerConfig{RequestTimeoutSec: 5}))
	t.Cleanup(func() {
		srv.Close()
		queue.Stop()
		cups.Stop()
		reg.Close()
	})
	return &testServer{Server: srv, reg: reg, queue: queue, cups: cups}
}

func (s *testServer) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.URL+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func player(id string) game.Identity {
	return game.Identity{ID: id, DisplayName: id}
}

func TestGameLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)

	var created viewmodel.PublicStateView
	if code := s.do(t, http.MethodPost, "/api/games", map[string]any{"capacity": 2, "turn_time_limit_ms": 20000}, &created); code != http.StatusCreated {
		t.Fatalf("create status %d", code)
	}
	if created.GameID == "" || created.Status != string(game.StatusWaiting) || created.TurnTimeLimitMS != 20000 {
		t.Fatalf("unexpected create response %+v", created)
	}
	base := "/api/games/" + created.GameID

	for _, id := range []string{"a", "b"} {
		var view viewmodel.PlayerStateView
		if code := s.do(t, http.MethodPost, base+"/join", joinRequest{Player: player(id)}, &view); code != http.StatusOK {
			t.Fatalf("join %s status %d", id, code)
		}
		if view.PlayerID != id {
			t.Fatalf("join returned view for %q", view.PlayerID)
		}
	}
	for _, id := range []string{"a", "b"} {
		if code := s.do(t, http.MethodPost, base+"/ready", playerRequest{PlayerID: id}, nil); code != http.StatusOK {
			t.Fatalf("ready %s status %d", id, code)
		}
	}

	var public viewmodel.PublicStateView
	s.do(t, http.MethodGet, base, nil, &public)
	if public.Status != string(game.StatusPlaying) || public.CurrentPlayerID == "" {
		t.Fatalf("expected playing game, got %+v", public)
	}
	onTurn := public.CurrentPlayerID
	other := "a"
	if onTurn == "a" {
		other = "b"
	}

	var errBody errorBody
	if code := s.do(t, http.MethodPost, base+"/pass", playerRequest{PlayerID: other}, &errBody); code != http.StatusConflict {
		t.Fatalf("off-turn pass status %d", code)
	}
	if errBody.Error != string(game.KindNotYourTurn) || errBody.GameID != created.GameID {
		t.Fatalf("unexpected error body %+v", errBody)
	}

	var mine viewmodel.PlayerStateView
	if code := s.do(t, http.MethodGet, base+"/players/"+onTurn, nil, &mine); code != http.StatusOK {
		t.Fatalf("player state status %d", code)
	}
	if len(mine.Hand) != game.DefaultDominoesPerPlayer || len(mine.ValidMoves) == 0 {
		t.Fatalf("unexpected private view hand=%d moves=%d", len(mine.Hand), len(mine.ValidMoves))
	}
	vm := mine.ValidMoves[0]
	var after viewmodel.PlayerStateView
	if code := s.do(t, http.MethodPost, base+"/moves", moveRequest{PlayerID: onTurn, Tile: vm.Tile, End: vm.End}, &after); code != http.StatusOK {
		t.Fatalf("move status %d", code)
	}
	if len(after.Board) != 1 || len(after.Hand) != game.DefaultDominoesPerPlayer-1 {
		t.Fatalf("move not applied: board=%d hand=%d", len(after.Board), len(after.Hand))
	}

	var chat struct {
		Chat []game.ChatMessage `json:"chat"`
	}
	if code := s.do(t, http.MethodPost, base+"/chat", chatRequest{PlayerID: other, Text: "gg"}, &chat); code != http.StatusOK || len(chat.Chat) != 1 {
		t.Fatalf("chat status %d messages %d", code, len(chat.Chat))
	}
}

func TestGameErrorsMapToStatus(t *testing.T) {
	s := newTestServer(t, nil)

	var errBody errorBody
	if code := s.do(t, http.MethodGet, "/api/games/g_missing", nil, &errBody); code != http.StatusNotFound || errBody.Error != string(game.KindGameNotFound) {
		t.Fatalf("missing game: status %d body %+v", code, errBody)
	}

	if code := s.do(t, http.MethodPost, "/api/games", map[string]any{"capacity": 9}, &errBody); code != http.StatusBadRequest || errBody.Field != "capacity" {
		t.Fatalf("bad capacity: status %d body %+v", code, errBody)
	}

	if code := s.do(t, http.MethodPost, "/api/games", map[string]any{"capacity": "four"}, &errBody); code != http.StatusBadRequest || errBody.Error != "invalid_request" {
		t.Fatalf("bad body: status %d body %+v", code, errBody)
	}

	var created viewmodel.PublicStateView
	s.do(t, http.MethodPost, "/api/games", map[string]any{"capacity": 2, "private": true, "password": "s3cret"}, &created)
	if code := s.do(t, http.MethodPost, "/api/games/"+created.GameID+"/join", joinRequest{Player: player("a"), Password: "nope"}, &errBody); code != http.StatusUnauthorized || errBody.Field != "password" {
		t.Fatalf("wrong password: status %d body %+v", code, errBody)
	}
	if code := s.do(t, http.MethodPost, "/api/games/"+created.GameID+"/join", joinRequest{}, &errBody); code != http.StatusBadRequest || errBody.Field != "player.id" {
		t.Fatalf("missing player: status %d body %+v", code, errBody)
	}
	if code := s.do(t, http.MethodGet, "/api/games/"+created.GameID+"/players/ghost", nil, &errBody); code != http.StatusForbidden {
		t.Fatalf("unseated player state: status %d", code)
	}
}

func TestStatusForCoversEveryKind(t *testing.T) {
	kinds := []game.Kind{
		game.KindGameNotFound, game.KindGameFull, game.KindAlreadyStarted, game.KindNotEnoughPlayers,
		game.KindDuplicatePlayer, game.KindPlayerNotInGame, game.KindNotYourTurn, game.KindTileNotInHand,
		game.KindInvalidMove, game.KindWrongPassword, game.KindInvalidConfig, game.KindAlreadyQueued,
		game.KindRegistrationClosed, game.KindTournamentFull, game.KindTournamentNotFound,
		game.KindNotEnoughParticipants, game.KindUnavailable,
	}
	for _, k := range kinds {
		if got := statusFor(k); got == http.StatusInternalServerError {
			t.Fatalf("kind %s falls through to 500", k)
		}
	}
	if statusFor("mystery") != http.StatusInternalServerError {
		t.Fatal("unknown kinds should be internal errors")
	}
}

func TestUnavailableHidesCause(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, game.Unavailable("g_1", "snapshot", errors.New("dial tcp 10.0.0.1:6379")))
	if rec.Code != http.StatusServiceUnavailable || rec.Header().Get("Retry-After") == "" {
		t.Fatalf("status %d retry-after %q", rec.Code, rec.Header().Get("Retry-After"))
	}
	if strings.Contains(rec.Body.String(), "10.0.0.1") {
		t.Fatalf("infra detail leaked: %s", rec.Body.String())
	}
}

func TestMatchmakingRoutes(t *testing.T) {
	s := newTestServer(t, nil)

	var entry matchmaking.Entry
	if code := s.do(t, http.MethodPost, "/api/matchmaking/queue", enqueueRequest{Player: player("a"), Capacity: 2}, &entry); code != http.StatusAccepted {
		t.Fatalf("enqueue status %d", code)
	}
	if entry.Tier != matchmaking.TierBeginner || entry.Capacity != 2 {
		t.Fatalf("unexpected entry %+v", entry)
	}
	var errBody errorBody
	if code := s.do(t, http.MethodPost, "/api/matchmaking/queue", enqueueRequest{Player: player("a")}, &errBody); code != http.StatusConflict || errBody.Error != string(game.KindAlreadyQueued) {
		t.Fatalf("duplicate enqueue: status %d body %+v", code, errBody)
	}

	var snap struct {
		Buckets map[string]int `json:"buckets"`
	}
	s.do(t, http.MethodGet, "/api/matchmaking/queue", nil, &snap)
	if snap.Buckets["classic|beginner"] != 1 {
		t.Fatalf("unexpected buckets %v", snap.Buckets)
	}
	if code := s.do(t, http.MethodGet, "/api/matchmaking/queue/a", nil, &entry); code != http.StatusOK || entry.Player.ID != "a" {
		t.Fatalf("position: status %d entry %+v", code, entry)
	}

	var removed map[string]bool
	s.do(t, http.MethodDelete, "/api/matchmaking/queue/a", nil, &removed)
	if !removed["removed"] {
		t.Fatal("expected removal")
	}
	if code := s.do(t, http.MethodGet, "/api/matchmaking/queue/a", nil, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 after removal, got %d", code)
	}
}

func TestTournamentRoutes(t *testing.T) {
	s := newTestServer(t, nil)

	var tr tournament.Tournament
	if code := s.do(t, http.MethodPost, "/api/tournaments", tournament.Config{Name: "spring cup", Capacity: 4}, &tr); code != http.StatusCreated {
		t.Fatalf("create status %d", code)
	}
	base := "/api/tournaments/" + tr.ID
	for _, id := range []string{"p1", "p2", "p3", "p4"} {
		if code := s.do(t, http.MethodPost, base+"/participants", registerRequest{Player: player(id)}, &tr); code != http.StatusOK {
			t.Fatalf("register %s status %d", id, code)
		}
	}
	var errBody errorBody
	if code := s.do(t, http.MethodPost, base+"/participants", registerRequest{Player: player("p5")}, &errBody); code != http.StatusConflict || errBody.Error != string(game.KindTournamentFull) {
		t.Fatalf("full tournament: status %d body %+v", code, errBody)
	}

	if code := s.do(t, http.MethodPost, base+"/start", nil, &tr); code != http.StatusOK {
		t.Fatalf("start status %d", code)
	}
	round := tr.Round(1)
	if tr.Status != tournament.StatusInProgress || len(round) != 2 {
		t.Fatalf("unexpected bracket status=%s matches=%d", tr.Status, len(round))
	}

	var report map[string]any
	if code := s.do(t, http.MethodPost, "/api/tournaments/results", resultRequest{GameID: round[0].GameID, WinnerID: round[0].PlayerA}, &report); code != http.StatusOK {
		t.Fatalf("report status %d", code)
	}
	if report["tournament_id"] != tr.ID {
		t.Fatalf("report answered for %v", report["tournament_id"])
	}

	s.do(t, http.MethodGet, base, nil, &tr)
	if tr.Round(1)[0].WinnerID != round[0].PlayerA {
		t.Fatalf("result not applied: %+v", tr.Round(1)[0])
	}

	if code := s.do(t, http.MethodGet, "/api/tournaments/t_missing", nil, &errBody); code != http.StatusNotFound || errBody.Error != string(game.KindTournamentNotFound) {
		t.Fatalf("missing tournament: status %d body %+v", code, errBody)
	}
	if code := s.do(t, http.MethodPost, base+"/cancel", nil, &tr); code != http.StatusOK || tr.Status != tournament.StatusCancelled {
		t.Fatalf("cancel status %d tournament %s", code, tr.Status)
	}
}

type fakeHistory struct {
	games []store.GameRecord
}

func (f *fakeHistory) GetGameRecord(_ context.Context, id string) (*store.GameRecord, error) {
	for i := range f.games {
		if f.games[i].GameID == id {
			return &f.games[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeHistory) ListPlayerGames(_ context.Context, playerID string, limit int) ([]store.GameRecord, error) {
	var out []store.GameRecord
	for _, g := range f.games {
		for _, p := range g.Players {
			if p.PlayerID == playerID && len(out) < limit {
				out = append(out, g)
			}
		}
	}
	return out, nil
}

func (f *fakeHistory) GetTournamentRecord(context.Context, string) (*store.TournamentRecord, error) {
	return nil, store.ErrNotFound
}

func TestHistoryRoutes(t *testing.T) {
	hist := &fakeHistory{games: []store.GameRecord{{
		GameID: "g_done", Mode: "classic", WinnerID: "a", EndReason: "hand_emptied",
		Players: []store.GameRecordPlayer{{PlayerID: "a", Seat: 0}, {PlayerID: "b", Seat: 1, PipsLeft: 12}},
	}}}
	s := newTestServer(t, func(d *Deps) { d.History = hist })

	var rec store.GameRecord
	if code := s.do(t, http.MethodGet, "/api/history/games/g_done", nil, &rec); code != http.StatusOK || rec.WinnerID != "a" {
		t.Fatalf("history game: status %d rec %+v", code, rec)
	}
	var list struct {
		Items []store.GameRecord `json:"items"`
	}
	s.do(t, http.MethodGet, "/api/history/players/c/games", nil, &list)
	if list.Items == nil || len(list.Items) != 0 {
		t.Fatalf("expected empty list, got %+v", list.Items)
	}
	if code := s.do(t, http.MethodGet, "/api/history/tournaments/t_1", nil, nil); code != http.StatusNotFound {
		t.Fatalf("missing tournament record status %d", code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	down := errors.New("postgres down")
	s := newTestServer(t, func(d *Deps) {
		d.Health = func(context.Context) error { return down }
	})
	if code := s.do(t, http.MethodGet, "/healthz", nil, nil); code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", code)
	}
	s.do(t, http.MethodGet, "/api/games", nil, nil)

	resp, err := http.Get(s.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `domino_http_requests_total{code="200",method="GET",route="/api/games`) {
		t.Fatalf("route metric missing:\n%s", body)
	}
}
