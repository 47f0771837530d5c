package game

import "time"

type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

type EndReason string

const (
	ReasonHandEmptied         EndReason = "hand_emptied"
	ReasonBlocked             EndReason = "blocked"
	ReasonInsufficientPlayers EndReason = "insufficient_players"
)

type End string

const (
	EndLeft   End = "left"
	EndRight  End = "right"
	EndCenter End = "center"
)

const (
	DefaultCapacity          = 4
	DefaultDominoesPerPlayer = 7
	DefaultTurnTimeLimit     = 30 * time.Second
	MaxChatMessages          = 50
	MinPlayers               = 2
	MaxCapacity              = 4
)

// Stats are the skill attributes supplied by the profile service.
type Stats struct {
	GamesPlayed int `json:"games_played"`
	Wins        int `json:"wins"`
}

func (s Stats) WinRate() float64 {
	if s.GamesPlayed <= 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.GamesPlayed)
}

// Identity is the opaque player tuple handed over by the identity collaborator.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar,omitempty"`
	Stats       Stats  `json:"stats"`
}

type Player struct {
	Identity
	Hand     []Tile    `json:"hand"`
	Score    int       `json:"score"`
	Ready    bool      `json:"ready"`
	JoinedAt time.Time `json:"joined_at"`
}

type Config struct {
	Mode              string        `json:"mode"`
	Capacity          int           `json:"capacity"`
	DominoesPerPlayer int           `json:"dominoes_per_player"`
	TurnTimeLimit     time.Duration `json:"turn_time_limit"`
	Private           bool          `json:"private"`
	Password          string        `json:"password,omitempty"`
	Ranked            bool          `json:"ranked"`
}

// WithDefaults fills zero values.
func (c Config) WithDefaults() Config {
	if c.Mode == "" {
		c.Mode = "classic"
	}
	if c.Capacity == 0 {
		c.Capacity = DefaultCapacity
	}
	if c.DominoesPerPlayer == 0 {
		c.DominoesPerPlayer = DefaultDominoesPerPlayer
	}
	if c.TurnTimeLimit == 0 {
		c.TurnTimeLimit = DefaultTurnTimeLimit
	}
	return c
}

func (c Config) Validate() error {
	if c.Capacity < MinPlayers || c.Capacity > MaxCapacity {
		return newError(KindInvalidConfig, "", "capacity", "must be between 2 and 4")
	}
	if c.DominoesPerPlayer < 1 || c.DominoesPerPlayer*c.Capacity > SetSize {
		return newError(KindInvalidConfig, "", "dominoes_per_player", "hands exceed the tile set")
	}
	if c.TurnTimeLimit < 0 {
		return newError(KindInvalidConfig, "", "turn_time_limit", "must not be negative")
	}
	if c.Private && c.Password == "" {
		return newError(KindInvalidConfig, "", "password", "private games need a password")
	}
	return nil
}

// PlacedTile is a board entry. Flipped means B faces left.
type PlacedTile struct {
	Tile    Tile `json:"tile"`
	Flipped bool `json:"flipped"`
}

func (p PlacedTile) LeftPip() int {
	if p.Flipped {
		return p.Tile.B
	}
	return p.Tile.A
}

func (p PlacedTile) RightPip() int {
	if p.Flipped {
		return p.Tile.A
	}
	return p.Tile.B
}

type Move struct {
	Tile Tile `json:"tile"`
	End  End  `json:"end"`
}

// ValidMove is a move the engine would accept, with the orientation it would use.
type ValidMove struct {
	Tile    Tile `json:"tile"`
	End     End  `json:"end"`
	Flipped bool `json:"flipped"`
}

type MoveKind string

const (
	MovePlay MoveKind = "play"
	MoveDraw MoveKind = "draw"
	MovePass MoveKind = "pass"
)

type MoveRecord struct {
	Seq      int       `json:"seq"`
	PlayerID string    `json:"player_id"`
	Kind     MoveKind  `json:"kind"`
	Tile     *Tile     `json:"tile,omitempty"`
	End      End       `json:"end,omitempty"`
	Flipped  bool      `json:"flipped,omitempty"`
	At       time.Time `json:"at"`
}

type ChatMessage struct {
	PlayerID string    `json:"player_id"`
	Text     string    `json:"text"`
	At       time.Time `json:"at"`
}

// Game is one domino session. It is not safe for concurrent use; the
// session registry serializes access per game id.
type Game struct {
	ID          string        `json:"id"`
	Version     int64         `json:"version"`
	Config      Config        `json:"config"`
	Players     []*Player     `json:"players"`
	Board       []PlacedTile  `json:"board"`
	DrawPile    []Tile        `json:"draw_pile"`
	CurrentTurn int           `json:"current_turn"`
	Status      Status        `json:"status"`
	Moves       []MoveRecord  `json:"moves"`
	Chat        []ChatMessage `json:"chat"`
	WinnerID    string        `json:"winner_id,omitempty"`
	EndReason   EndReason     `json:"end_reason,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	EndedAt     *time.Time    `json:"ended_at,omitempty"`

	now func() time.Time
}
