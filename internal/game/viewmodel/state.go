package viewmodel

import (
	"time"

	"domino-hall/internal/game"
)

type SeatView struct {
	Seat        int    `json:"seat"`
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar,omitempty"`
	TileCount   int    `json:"tile_count"`
	Score       int    `json:"score"`
	Ready       bool   `json:"ready"`
	IsTurn      bool   `json:"is_turn"`
}

type PublicStateView struct {
	GameID          string            `json:"game_id"`
	Mode            string            `json:"mode"`
	Capacity        int               `json:"capacity"`
	Ranked          bool              `json:"ranked"`
	Private         bool              `json:"private"`
	Status          string            `json:"status"`
	Board           []game.PlacedTile `json:"board"`
	LeftEnd         *int              `json:"left_end,omitempty"`
	RightEnd        *int              `json:"right_end,omitempty"`
	DrawPileCount   int               `json:"draw_pile_count"`
	CurrentPlayerID string            `json:"current_player_id,omitempty"`
	TurnTimeLimitMS int64             `json:"turn_time_limit_ms"`
	MoveCount       int               `json:"move_count"`
	LastMove        *game.MoveRecord  `json:"last_move,omitempty"`
	Seats           []SeatView        `json:"seats"`
	WinnerID        string            `json:"winner_id,omitempty"`
	EndReason       string            `json:"end_reason,omitempty"`
	StartedAt       *time.Time        `json:"started_at,omitempty"`
	EndedAt         *time.Time        `json:"ended_at,omitempty"`
}

type PlayerStateView struct {
	PublicStateView
	PlayerID   string           `json:"player_id"`
	MySeat     int              `json:"my_seat"`
	Hand       []game.Tile      `json:"hand"`
	ValidMoves []game.ValidMove `json:"valid_moves"`
	CanDraw    bool             `json:"can_draw"`
	CanPass    bool             `json:"can_pass"`
}

// BuildPublicState never includes hand contents, only counts.
func BuildPublicState(g *game.Game) PublicStateView {
	seats := make([]SeatView, 0, len(g.Players))
	cur := g.CurrentPlayer()
	for i, p := range g.Players {
		seats = append(seats, SeatView{
			Seat:        i,
			PlayerID:    p.ID,
			DisplayName: p.DisplayName,
			Avatar:      p.Avatar,
			TileCount:   len(p.Hand),
			Score:       p.Score,
			Ready:       p.Ready,
			IsTurn:      cur != nil && cur.ID == p.ID,
		})
	}
	out := PublicStateView{
		GameID:          g.ID,
		Mode:            g.Config.Mode,
		Capacity:        g.Config.Capacity,
		Ranked:          g.Config.Ranked,
		Private:         g.Config.Private,
		Status:          string(g.Status),
		Board:           append([]game.PlacedTile{}, g.Board...),
		DrawPileCount:   len(g.DrawPile),
		TurnTimeLimitMS: g.Config.TurnTimeLimit.Milliseconds(),
		MoveCount:       len(g.Moves),
		Seats:           seats,
		WinnerID:        g.WinnerID,
		EndReason:       string(g.EndReason),
		StartedAt:       g.StartedAt,
		EndedAt:         g.EndedAt,
	}
	if left, right, ok := g.OpenEnds(); ok {
		out.LeftEnd = &left
		out.RightEnd = &right
	}
	if cur != nil {
		out.CurrentPlayerID = cur.ID
	}
	if n := len(g.Moves); n > 0 {
		last := g.Moves[n-1]
		if last.Kind == game.MoveDraw {
			last.Tile = nil
		}
		out.LastMove = &last
	}
	return out
}

// BuildPlayerState adds the caller's own hand and legal moves. ok is false
// when playerID is not seated.
func BuildPlayerState(g *game.Game, playerID string) (PlayerStateView, bool) {
	idx := g.PlayerIndex(playerID)
	if idx < 0 {
		return PlayerStateView{}, false
	}
	p := g.Players[idx]
	moves := g.ValidMoves(playerID)
	onTurn := g.CurrentPlayer() != nil && g.CurrentPlayer().ID == playerID
	return PlayerStateView{
		PublicStateView: BuildPublicState(g),
		PlayerID:        playerID,
		MySeat:          idx,
		Hand:            append([]game.Tile{}, p.Hand...),
		ValidMoves:      moves,
		CanDraw:         onTurn && len(moves) == 0 && len(g.DrawPile) > 0,
		CanPass:         onTurn && len(moves) == 0 && len(g.DrawPile) == 0,
	}, true
}
