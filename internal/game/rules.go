package game

// OpenEnds returns the pips exposed at the left and right of the board.
// ok is false on an empty board.
func (g *Game) OpenEnds() (left, right int, ok bool) {
	if len(g.Board) == 0 {
		return 0, 0, false
	}
	return g.Board[0].LeftPip(), g.Board[len(g.Board)-1].RightPip(), true
}

// placement orients tile so its matching pip faces the requested end.
func (g *Game) placement(tile Tile, end End) (PlacedTile, End, error) {
	left, right, ok := g.OpenEnds()
	if !ok {
		return PlacedTile{Tile: tile}, EndCenter, nil
	}
	switch end {
	case EndRight:
		switch right {
		case tile.A:
			return PlacedTile{Tile: tile}, EndRight, nil
		case tile.B:
			return PlacedTile{Tile: tile, Flipped: true}, EndRight, nil
		}
	case EndLeft:
		switch left {
		case tile.B:
			return PlacedTile{Tile: tile}, EndLeft, nil
		case tile.A:
			return PlacedTile{Tile: tile, Flipped: true}, EndLeft, nil
		}
	default:
		return PlacedTile{}, "", newError(KindInvalidMove, g.ID, "end", string(end))
	}
	return PlacedTile{}, "", newError(KindInvalidMove, g.ID, "tile", tile.String()+" does not match the "+string(end)+" end")
}

func (g *Game) canPlay(p *Player) bool {
	left, right, ok := g.OpenEnds()
	if !ok {
		return len(p.Hand) > 0
	}
	for _, t := range p.Hand {
		if t.Matches(left) || t.Matches(right) {
			return true
		}
	}
	return false
}

// IsBlocked reports that nobody can match either open end and nothing is
// left to draw.
func (g *Game) IsBlocked() bool {
	if len(g.Board) == 0 || len(g.DrawPile) > 0 {
		return false
	}
	for _, p := range g.Players {
		if g.canPlay(p) {
			return false
		}
	}
	return true
}

// ValidMoves lists every placement MakeMove would accept for playerID.
func (g *Game) ValidMoves(playerID string) []ValidMove {
	out := []ValidMove{}
	cur := g.CurrentPlayer()
	if cur == nil || cur.ID != playerID {
		return out
	}
	if len(g.Board) == 0 {
		for _, t := range cur.Hand {
			out = append(out, ValidMove{Tile: t, End: EndCenter})
		}
		return out
	}
	for _, t := range cur.Hand {
		for _, end := range []End{EndLeft, EndRight} {
			placed, _, err := g.placement(t, end)
			if err != nil {
				continue
			}
			out = append(out, ValidMove{Tile: t, End: end, Flipped: placed.Flipped})
		}
	}
	return out
}
