package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"domino-hall/internal/config"
	"domino-hall/internal/game"
	"domino-hall/internal/game/viewmodel"
	"domino-hall/internal/logging"
	"domino-hall/internal/transport/ws"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// frame is a push frame with the state decoded as this player's view.
type frame struct {
	Type  string                    `json:"type"`
	State viewmodel.PlayerStateView `json:"state"`
}

type action struct {
	Path string
	Body any
}

func main() {
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	if err := logging.Init(logCfg); err != nil {
		panic(err)
	}
	cfg, err := config.LoadBot()
	if err != nil {
		log.Fatal().Err(err).Msg("load bot config failed")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := &bot{cfg: cfg, http: &http.Client{Timeout: 10 * time.Second}}
	gameID, err := b.findGame(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("no game")
	}
	log.Info().Str("game_id", gameID).Str("player_id", cfg.PlayerID).Msg("seated")
	if err := b.play(ctx, gameID); err != nil {
		log.Fatal().Err(err).Str("game_id", gameID).Msg("play failed")
	}
}

type bot struct {
	cfg  config.BotConfig
	http *http.Client
}

func (b *bot) identity() game.Identity {
	return game.Identity{ID: b.cfg.PlayerID, DisplayName: b.cfg.DisplayName}
}

// findGame queues the bot and waits until matchmaking has seated it.
func (b *bot) findGame(ctx context.Context) (string, error) {
	body := map[string]any{"player": b.identity(), "mode": b.cfg.Mode, "capacity": b.cfg.Capacity}
	code, err := b.call(ctx, http.MethodPost, "/api/matchmaking/queue", body, nil)
	if err != nil {
		return "", fmt.Errorf("enqueue: %w", err)
	}
	if code != http.StatusAccepted && code != http.StatusConflict {
		return "", fmt.Errorf("enqueue: status %d", code)
	}
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
		var live struct {
			GameIDs []string `json:"game_ids"`
		}
		if _, err := b.call(ctx, http.MethodGet, "/api/games", nil, &live); err != nil {
			log.Warn().Err(err).Msg("list games")
			continue
		}
		for _, id := range live.GameIDs {
			if code, _ := b.call(ctx, http.MethodGet, "/api/games/"+id+"/players/"+b.cfg.PlayerID, nil, nil); code == http.StatusOK {
				return id, nil
			}
		}
	}
}

func (b *bot) play(ctx context.Context, gameID string) error {
	url := strings.TrimSuffix(b.cfg.WSURL, "/") + "/games/" + gameID + "?player_id=" + b.cfg.PlayerID
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}
		if f.Type != ws.MessageHello && f.Type != ws.MessagePlayerState {
			continue
		}
		if f.State.Status == string(game.StatusFinished) {
			log.Info().Str("game_id", gameID).Str("winner_id", f.State.WinnerID).Str("end_reason", f.State.EndReason).Msg("game over")
			return nil
		}
		next, ok := decide(f.State)
		if !ok {
			continue
		}
		if code, err := b.call(ctx, http.MethodPost, "/api/games/"+gameID+next.Path, next.Body, nil); err != nil || code != http.StatusOK {
			log.Warn().Err(err).Int("status", code).Str("action", next.Path).Msg("action rejected")
		}
	}
}

// decide plays the first legal tile, else draws, else passes. It returns
// false when it is not the bot's turn.
func decide(v viewmodel.PlayerStateView) (action, bool) {
	if v.Status != string(game.StatusPlaying) || v.CurrentPlayerID != v.PlayerID {
		return action{}, false
	}
	switch {
	case len(v.ValidMoves) > 0:
		m := v.ValidMoves[0]
		return action{Path: "/moves", Body: map[string]any{"player_id": v.PlayerID, "tile": m.Tile, "end": m.End}}, true
	case v.CanDraw:
		return action{Path: "/draw", Body: map[string]any{"player_id": v.PlayerID}}, true
	case v.CanPass:
		return action{Path: "/pass", Body: map[string]any{"player_id": v.PlayerID}}, true
	}
	return action{}, false
}

func (b *bot) call(ctx context.Context, method, path string, body, out any) (int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimSuffix(b.cfg.ServerURL, "/")+path, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := b.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}
