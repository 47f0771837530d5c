package game

import (
	"math/rand"
	"time"
)

func NewGame(id string, cfg Config, now time.Time) (*Game, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		if e, ok := err.(*Error); ok {
			e.GameID = id
		}
		return nil, err
	}
	return &Game{
		ID:        id,
		Config:    cfg,
		Players:   []*Player{},
		Board:     []PlacedTile{},
		DrawPile:  []Tile{},
		Status:    StatusWaiting,
		Moves:     []MoveRecord{},
		Chat:      []ChatMessage{},
		CreatedAt: now,
	}, nil
}

// SetClock overrides the time source used for timestamps.
func (g *Game) SetClock(now func() time.Time) {
	g.now = now
}

func (g *Game) clock() time.Time {
	if g.now != nil {
		return g.now()
	}
	return time.Now()
}

func (g *Game) PlayerIndex(id string) int {
	for i, p := range g.Players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (g *Game) Player(id string) *Player {
	if i := g.PlayerIndex(id); i >= 0 {
		return g.Players[i]
	}
	return nil
}

// CurrentPlayer returns the player holding the turn, or nil outside play.
func (g *Game) CurrentPlayer() *Player {
	if g.Status != StatusPlaying || g.CurrentTurn < 0 || g.CurrentTurn >= len(g.Players) {
		return nil
	}
	return g.Players[g.CurrentTurn]
}

// AddPlayer seats id with an empty hand and returns the new occupancy.
func (g *Game) AddPlayer(id Identity) (int, error) {
	if g.Status != StatusWaiting {
		return 0, newError(KindAlreadyStarted, g.ID, "status", string(g.Status))
	}
	if g.PlayerIndex(id.ID) >= 0 {
		return 0, newError(KindDuplicatePlayer, g.ID, "player_id", id.ID)
	}
	if len(g.Players) >= g.Config.Capacity {
		return 0, newError(KindGameFull, g.ID, "capacity", "")
	}
	g.Players = append(g.Players, &Player{
		Identity: id,
		Hand:     []Tile{},
		JoinedAt: g.clock(),
	})
	return len(g.Players), nil
}

// RemovePlayer drops id from the game. It reports whether anyone was removed.
// A leaver's tiles go to the bottom of the draw pile.
func (g *Game) RemovePlayer(id string) bool {
	idx := g.PlayerIndex(id)
	if idx < 0 {
		return false
	}
	leaver := g.Players[idx]
	if g.Status == StatusPlaying {
		g.DrawPile = append(g.DrawPile, leaver.Hand...)
		leaver.Hand = nil
	}
	g.Players = append(g.Players[:idx], g.Players[idx+1:]...)

	if g.Status != StatusPlaying {
		return true
	}
	switch {
	case idx < g.CurrentTurn:
		g.CurrentTurn--
	case idx == g.CurrentTurn && g.CurrentTurn >= len(g.Players):
		g.CurrentTurn = 0
	}
	if len(g.Players) < MinPlayers {
		g.finish(ReasonInsufficientPlayers, "")
	}
	return true
}

// SetReady records the flag and reports whether all seated players are ready.
func (g *Game) SetReady(id string, ready bool) (bool, error) {
	p := g.Player(id)
	if p == nil {
		return false, newError(KindPlayerNotInGame, g.ID, "player_id", id)
	}
	p.Ready = ready
	if len(g.Players) < MinPlayers {
		return false, nil
	}
	for _, p := range g.Players {
		if !p.Ready {
			return false, nil
		}
	}
	return true, nil
}

func (g *Game) Start(rng *rand.Rand) error {
	if g.Status != StatusWaiting {
		return newError(KindAlreadyStarted, g.ID, "status", string(g.Status))
	}
	if len(g.Players) < MinPlayers {
		return newError(KindNotEnoughPlayers, g.ID, "players", "")
	}
	tiles := Shuffle(BuildStandardSet(), rng)
	for _, p := range g.Players {
		p.Hand = make([]Tile, 0, g.Config.DominoesPerPlayer)
	}
	k := 0
	for r := 0; r < g.Config.DominoesPerPlayer; r++ {
		for _, p := range g.Players {
			p.Hand = append(p.Hand, tiles[k])
			k++
		}
	}
	g.DrawPile = append([]Tile{}, tiles[k:]...)
	g.Board = []PlacedTile{}
	g.Moves = []MoveRecord{}
	g.CurrentTurn = g.startingPlayer()
	g.Status = StatusPlaying
	now := g.clock()
	g.StartedAt = &now
	return nil
}

// startingPlayer picks the holder of the highest double, first in join order.
// Without any double dealt, the heaviest tile decides.
func (g *Game) startingPlayer() int {
	best, bestDouble := -1, -1
	for i, p := range g.Players {
		for _, t := range p.Hand {
			if t.IsDouble() && t.A > bestDouble {
				best, bestDouble = i, t.A
			}
		}
	}
	if best >= 0 {
		return best
	}
	best, bestSum := 0, -1
	for i, p := range g.Players {
		for _, t := range p.Hand {
			if t.PipSum() > bestSum {
				best, bestSum = i, t.PipSum()
			}
		}
	}
	return best
}

func (g *Game) requireTurn(playerID string) (*Player, error) {
	cur := g.CurrentPlayer()
	if cur == nil || cur.ID != playerID {
		return nil, newError(KindNotYourTurn, g.ID, "player_id", playerID)
	}
	return cur, nil
}

// MakeMove places a tile from the mover's hand. Rejected moves leave the game
// unchanged.
func (g *Game) MakeMove(playerID string, m Move) error {
	p, err := g.requireTurn(playerID)
	if err != nil {
		return err
	}
	pos := handIndex(p.Hand, m.Tile)
	if pos < 0 {
		return newError(KindTileNotInHand, g.ID, "tile", m.Tile.String())
	}
	tile := p.Hand[pos]
	placed, end, err := g.placement(tile, m.End)
	if err != nil {
		return err
	}

	p.Hand = append(p.Hand[:pos], p.Hand[pos+1:]...)
	if end == EndLeft {
		g.Board = append([]PlacedTile{placed}, g.Board...)
	} else {
		g.Board = append(g.Board, placed)
	}
	g.record(MoveRecord{PlayerID: playerID, Kind: MovePlay, Tile: &tile, End: end, Flipped: placed.Flipped})

	switch {
	case len(p.Hand) == 0:
		g.finish(ReasonHandEmptied, p.ID)
	case g.IsBlocked():
		g.finish(ReasonBlocked, g.lowestHand())
	default:
		g.advance()
	}
	return nil
}

// DrawTile takes the top of the draw pile for a player who cannot move.
func (g *Game) DrawTile(playerID string) (Tile, error) {
	p, err := g.requireTurn(playerID)
	if err != nil {
		return Tile{}, err
	}
	if g.canPlay(p) {
		return Tile{}, newError(KindInvalidMove, g.ID, "draw", "a legal move exists")
	}
	if len(g.DrawPile) == 0 {
		return Tile{}, newError(KindInvalidMove, g.ID, "draw_pile", "empty")
	}
	t := g.DrawPile[0]
	g.DrawPile = g.DrawPile[1:]
	p.Hand = append(p.Hand, t)
	g.record(MoveRecord{PlayerID: playerID, Kind: MoveDraw})
	if g.IsBlocked() {
		g.finish(ReasonBlocked, g.lowestHand())
	}
	return t, nil
}

// Pass gives up the turn. Only allowed with no legal move and nothing to draw.
func (g *Game) Pass(playerID string) error {
	p, err := g.requireTurn(playerID)
	if err != nil {
		return err
	}
	if g.canPlay(p) {
		return newError(KindInvalidMove, g.ID, "pass", "a legal move exists")
	}
	if len(g.DrawPile) > 0 {
		return newError(KindInvalidMove, g.ID, "draw_pile", "draw before passing")
	}
	g.record(MoveRecord{PlayerID: playerID, Kind: MovePass})
	if g.IsBlocked() {
		g.finish(ReasonBlocked, g.lowestHand())
		return nil
	}
	g.advance()
	return nil
}

func (g *Game) AddChatMessage(playerID, text string) error {
	if g.PlayerIndex(playerID) < 0 {
		return newError(KindPlayerNotInGame, g.ID, "player_id", playerID)
	}
	g.Chat = append(g.Chat, ChatMessage{PlayerID: playerID, Text: text, At: g.clock()})
	if n := len(g.Chat); n > MaxChatMessages {
		g.Chat = append([]ChatMessage{}, g.Chat[n-MaxChatMessages:]...)
	}
	return nil
}

func (g *Game) record(m MoveRecord) {
	m.Seq = len(g.Moves) + 1
	m.At = g.clock()
	g.Moves = append(g.Moves, m)
}

func (g *Game) advance() {
	if len(g.Players) == 0 {
		return
	}
	g.CurrentTurn = (g.CurrentTurn + 1) % len(g.Players)
}

// lowestHand returns the player with the smallest pip total, first in join
// order on ties.
func (g *Game) lowestHand() string {
	winner, low := "", -1
	for _, p := range g.Players {
		if total := PipTotal(p.Hand); low < 0 || total < low {
			winner, low = p.ID, total
		}
	}
	return winner
}

func (g *Game) finish(reason EndReason, winnerID string) {
	g.Status = StatusFinished
	g.EndReason = reason
	g.WinnerID = winnerID
	now := g.clock()
	g.EndedAt = &now
	if winnerID == "" {
		return
	}
	award := 0
	for _, p := range g.Players {
		if p.ID == winnerID {
			continue
		}
		own := PipTotal(p.Hand)
		award += own
		p.Score -= own
	}
	if w := g.Player(winnerID); w != nil {
		w.Score += award
	}
}

// PipTotals maps each seated player to their remaining pip total.
func (g *Game) PipTotals() map[string]int {
	out := make(map[string]int, len(g.Players))
	for _, p := range g.Players {
		out[p.ID] = PipTotal(p.Hand)
	}
	return out
}

// TileCount is the number of tiles across hands, board and draw pile.
func (g *Game) TileCount() int {
	n := len(g.Board) + len(g.DrawPile)
	for _, p := range g.Players {
		n += len(p.Hand)
	}
	return n
}

func (g *Game) Clone() *Game {
	out := *g
	out.Players = make([]*Player, len(g.Players))
	for i, p := range g.Players {
		cp := *p
		cp.Hand = append([]Tile{}, p.Hand...)
		out.Players[i] = &cp
	}
	out.Board = append([]PlacedTile{}, g.Board...)
	out.DrawPile = append([]Tile{}, g.DrawPile...)
	out.Moves = make([]MoveRecord, len(g.Moves))
	for i, m := range g.Moves {
		if m.Tile != nil {
			t := *m.Tile
			m.Tile = &t
		}
		out.Moves[i] = m
	}
	out.Chat = append([]ChatMessage{}, g.Chat...)
	if g.StartedAt != nil {
		t := *g.StartedAt
		out.StartedAt = &t
	}
	if g.EndedAt != nil {
		t := *g.EndedAt
		out.EndedAt = &t
	}
	return &out
}

func handIndex(hand []Tile, t Tile) int {
	for i, h := range hand {
		if h.Same(t) {
			return i
		}
	}
	return -1
}
