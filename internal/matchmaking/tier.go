package matchmaking

import "domino-hall/internal/game"

type Tier string

const (
	TierBeginner     Tier = "beginner"
	TierNovice       Tier = "novice"
	TierIntermediate Tier = "intermediate"
	TierAdvanced     Tier = "advanced"
	TierExpert       Tier = "expert"
)

// beginnerGames is the number of games a player needs before win rate counts.
const beginnerGames = 10

// TierFor buckets a player by experience and win rate.
func TierFor(s game.Stats) Tier {
	if s.GamesPlayed < beginnerGames {
		return TierBeginner
	}
	switch r := s.WinRate(); {
	case r < 0.35:
		return TierNovice
	case r < 0.50:
		return TierIntermediate
	case r < 0.65:
		return TierAdvanced
	default:
		return TierExpert
	}
}
