package session

import (
	"context"
	"crypto/subtle"
	"errors"

	"domino-hall/internal/bus"
	"domino-hall/internal/game"
	"domino-hall/internal/store"

	"github.com/rs/zerolog/log"
)

// CreateGame validates cfg, persists the new waiting game and announces it.
func (r *Registry) CreateGame(ctx context.Context, cfg game.Config) (out *game.Game, err error) {
	defer func() { observe("create", err) }()

	id := store.NewID(store.PrefixGame)
	g, err := game.NewGame(id, cfg, r.now())
	if err != nil {
		return nil, err
	}
	g.SetClock(r.now)
	g.Version = 1

	unlock := r.locks.lock(id)
	defer unlock()
	if err := r.commit(ctx, nil, g, []change{{topic: bus.TopicGameEvents, kind: bus.EventGameCreated}}); err != nil {
		return nil, err
	}
	log.Info().Str("game_id", id).Str("mode", g.Config.Mode).Int("capacity", g.Config.Capacity).Bool("ranked", g.Config.Ranked).Msg("game created")
	return g.Clone(), nil
}

// JoinGame seats the player. Private games require the password.
func (r *Registry) JoinGame(ctx context.Context, gameID string, player game.Identity, password string) (*game.Game, error) {
	return r.update(ctx, "join", gameID, func(g *game.Game) ([]change, error) {
		if g.Config.Private && subtle.ConstantTimeCompare([]byte(password), []byte(g.Config.Password)) != 1 {
			return nil, game.NewError(game.KindWrongPassword, g.ID, "password", "")
		}
		if _, err := g.AddPlayer(player); err != nil {
			return nil, err
		}
		return []change{{topic: bus.TopicGameEvents, kind: bus.EventPlayerJoined, playerID: player.ID}}, nil
	})
}

// LeaveGame removes the player. Leaving a game the player is not in is a
// no-op that still returns the current state.
func (r *Registry) LeaveGame(ctx context.Context, gameID, playerID string) (*game.Game, error) {
	unchanged := false
	g, err := r.update(ctx, "leave", gameID, func(g *game.Game) ([]change, error) {
		if !g.RemovePlayer(playerID) {
			unchanged = true
			return nil, errNoChange
		}
		return []change{{topic: bus.TopicGameEvents, kind: bus.EventPlayerLeft, playerID: playerID}}, nil
	})
	if unchanged {
		return r.GetGame(ctx, gameID)
	}
	return g, err
}

// DiscardGame closes a game nobody is seated in. A game with players is left
// alone.
func (r *Registry) DiscardGame(ctx context.Context, gameID string) error {
	_, err := r.update(ctx, "discard", gameID, func(g *game.Game) ([]change, error) {
		if len(g.Players) > 0 {
			return nil, errNoChange
		}
		return nil, nil
	})
	if errors.Is(err, errNoChange) {
		return nil
	}
	return err
}

// SetReady records the flag and starts the game once every seated player is
// ready.
func (r *Registry) SetReady(ctx context.Context, gameID, playerID string, ready bool) (*game.Game, error) {
	return r.update(ctx, "ready", gameID, func(g *game.Game) ([]change, error) {
		allReady, err := g.SetReady(playerID, ready)
		if err != nil {
			return nil, err
		}
		changes := []change{{topic: bus.TopicGameEvents, kind: bus.EventPlayerReady, playerID: playerID, data: map[string]bool{"ready": ready}}}
		if allReady && g.Status == game.StatusWaiting {
			if err := g.Start(r.shuffleSource()); err != nil {
				return nil, err
			}
			changes = append(changes, change{topic: bus.TopicGameEvents, kind: bus.EventGameStarted})
		}
		return changes, nil
	})
}

func (r *Registry) StartGame(ctx context.Context, gameID string) (*game.Game, error) {
	return r.update(ctx, "start", gameID, func(g *game.Game) ([]change, error) {
		if err := g.Start(r.shuffleSource()); err != nil {
			return nil, err
		}
		return []change{{topic: bus.TopicGameEvents, kind: bus.EventGameStarted}}, nil
	})
}

func (r *Registry) SubmitMove(ctx context.Context, gameID, playerID string, move game.Move) (*game.Game, error) {
	return r.update(ctx, "move", gameID, func(g *game.Game) ([]change, error) {
		if err := g.MakeMove(playerID, move); err != nil {
			return nil, err
		}
		return []change{{topic: bus.TopicGameMoves, kind: bus.EventMoveMade, playerID: playerID, data: g.Moves[len(g.Moves)-1]}}, nil
	})
}

// DrawTile returns the drawn tile to the caller only. The published event
// carries the draw without the tile.
func (r *Registry) DrawTile(ctx context.Context, gameID, playerID string) (*game.Game, game.Tile, error) {
	var drawn game.Tile
	g, err := r.update(ctx, "draw", gameID, func(g *game.Game) ([]change, error) {
		t, err := g.DrawTile(playerID)
		if err != nil {
			return nil, err
		}
		drawn = t
		return []change{{topic: bus.TopicGameMoves, kind: bus.EventTileDrawn, playerID: playerID, data: g.Moves[len(g.Moves)-1]}}, nil
	})
	if err != nil {
		return nil, game.Tile{}, err
	}
	return g, drawn, nil
}

func (r *Registry) PassTurn(ctx context.Context, gameID, playerID string) (*game.Game, error) {
	return r.update(ctx, "pass", gameID, func(g *game.Game) ([]change, error) {
		if err := g.Pass(playerID); err != nil {
			return nil, err
		}
		return []change{{topic: bus.TopicGameMoves, kind: bus.EventTurnPassed, playerID: playerID, data: g.Moves[len(g.Moves)-1]}}, nil
	})
}

func (r *Registry) SendChat(ctx context.Context, gameID, playerID, text string) (*game.Game, error) {
	return r.update(ctx, "chat", gameID, func(g *game.Game) ([]change, error) {
		if err := g.AddChatMessage(playerID, text); err != nil {
			return nil, err
		}
		return []change{{topic: bus.TopicGameChat, kind: bus.EventChatMessage, playerID: playerID, data: g.Chat[len(g.Chat)-1]}}, nil
	})
}
