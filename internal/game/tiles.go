package game

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
)

const (
	MaxPip = 6
	// SetSize is the number of tiles in a double-six set.
	SetSize = (MaxPip + 1) * (MaxPip + 2) / 2
)

// Tile is a domino piece. A and B carry no order until the tile is placed.
type Tile struct {
	A int
	B int
}

func NewTile(a, b int) Tile {
	return Tile{A: a, B: b}
}

func (t Tile) IsDouble() bool {
	return t.A == t.B
}

func (t Tile) PipSum() int {
	return t.A + t.B
}

func (t Tile) Matches(v int) bool {
	return t.A == v || t.B == v
}

func (t Tile) Valid() bool {
	return t.A >= 0 && t.A <= MaxPip && t.B >= 0 && t.B <= MaxPip
}

// Same reports whether both tiles name the same piece regardless of orientation.
func (t Tile) Same(o Tile) bool {
	return (t.A == o.A && t.B == o.B) || (t.A == o.B && t.B == o.A)
}

func (t Tile) String() string {
	return strconv.Itoa(t.A) + "|" + strconv.Itoa(t.B)
}

func (t Tile) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{t.A, t.B})
}

func (t *Tile) UnmarshalJSON(b []byte) error {
	var pair [2]int
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	next := Tile{A: pair[0], B: pair[1]}
	if !next.Valid() {
		return fmt.Errorf("tile %v out of range", pair)
	}
	*t = next
	return nil
}

func ParseTile(s string) (Tile, error) {
	left, right, ok := strings.Cut(strings.TrimSpace(s), "|")
	if !ok {
		return Tile{}, fmt.Errorf("tile %q: want a|b", s)
	}
	a, err := strconv.Atoi(left)
	if err != nil {
		return Tile{}, fmt.Errorf("tile %q: %w", s, err)
	}
	b, err := strconv.Atoi(right)
	if err != nil {
		return Tile{}, fmt.Errorf("tile %q: %w", s, err)
	}
	t := Tile{A: a, B: b}
	if !t.Valid() {
		return Tile{}, fmt.Errorf("tile %q out of range", s)
	}
	return t, nil
}

// BuildStandardSet returns the 28 tiles of a double-six set in canonical order.
func BuildStandardSet() []Tile {
	tiles := make([]Tile, 0, SetSize)
	for i := 0; i <= MaxPip; i++ {
		for j := i; j <= MaxPip; j++ {
			tiles = append(tiles, Tile{A: i, B: j})
		}
	}
	return tiles
}

// Shuffle returns a Fisher-Yates permutation of tiles. The input is not modified.
func Shuffle(tiles []Tile, rng *rand.Rand) []Tile {
	out := make([]Tile, len(tiles))
	copy(out, tiles)
	for i := len(out) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func PipTotal(tiles []Tile) int {
	total := 0
	for _, t := range tiles {
		total += t.PipSum()
	}
	return total
}
