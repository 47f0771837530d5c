package tournament

import (
	"time"

	"domino-hall/internal/game"
)

type Status string

const (
	StatusRegistration Status = "registration"
	StatusInProgress   Status = "in_progress"
	StatusCompleted    Status = "completed"
	StatusCancelled    Status = "cancelled"
)

type MatchStatus string

const (
	MatchPending   MatchStatus = "pending"
	MatchPlaying   MatchStatus = "playing"
	MatchCompleted MatchStatus = "completed"
)

const (
	FormatSingleElimination = "single_elimination"

	MinParticipants = 4
	DefaultCapacity = 8
	MaxCapacity     = 64
)

type Config struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
	Mode     string `json:"mode"`
}

// Match is one pairing in the bracket. PlayerB is empty for a bye.
type Match struct {
	ID       string      `json:"id"`
	Round    int         `json:"round"`
	Number   int         `json:"number"`
	PlayerA  string      `json:"player_a"`
	PlayerB  string      `json:"player_b,omitempty"`
	WinnerID string      `json:"winner_id,omitempty"`
	GameID   string      `json:"game_id,omitempty"`
	Status   MatchStatus `json:"status"`
	Bye      bool        `json:"bye,omitempty"`
	Walkover bool        `json:"walkover,omitempty"`
}

func (m *Match) has(playerID string) bool {
	return playerID != "" && (m.PlayerA == playerID || m.PlayerB == playerID)
}

type Tournament struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Format       string          `json:"format"`
	Capacity     int             `json:"capacity"`
	Mode         string          `json:"mode"`
	Status       Status          `json:"status"`
	Participants []game.Identity `json:"participants"`
	Bracket      []*Match        `json:"bracket"`
	CurrentRound int             `json:"current_round"`
	ChampionID   string          `json:"champion_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

func (t *Tournament) participant(id string) (game.Identity, bool) {
	for _, p := range t.Participants {
		if p.ID == id {
			return p, true
		}
	}
	return game.Identity{}, false
}

func (t *Tournament) hadBye(playerID string) bool {
	for _, m := range t.Bracket {
		if m.Bye && m.PlayerA == playerID {
			return true
		}
	}
	return false
}

func (t *Tournament) match(id string) *Match {
	for _, m := range t.Bracket {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// Round returns the matches of round r in bracket order.
func (t *Tournament) Round(r int) []*Match {
	var out []*Match
	for _, m := range t.Bracket {
		if m.Round == r {
			out = append(out, m)
		}
	}
	return out
}

func (t *Tournament) clone() *Tournament {
	out := *t
	out.Participants = append([]game.Identity{}, t.Participants...)
	out.Bracket = make([]*Match, len(t.Bracket))
	for i, m := range t.Bracket {
		cp := *m
		out.Bracket[i] = &cp
	}
	if t.StartedAt != nil {
		ts := *t.StartedAt
		out.StartedAt = &ts
	}
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		out.CompletedAt = &ts
	}
	return &out
}
