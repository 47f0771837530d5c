package tournament

import (
	"context"
	"encoding/json"

	"domino-hall/internal/bus"
	"domino-hall/internal/game/viewmodel"

	"github.com/rs/zerolog/log"
)

// Listen turns game_ended and game_closed events for match games into
// results. It returns once the subscription is established.
func (s *Scheduler) Listen(ctx context.Context, b bus.Bus) error {
	sub, err := b.Subscribe(ctx, bus.TopicGameEvents)
	if err != nil {
		return err
	}
	go func() {
		defer sub.Cancel()
		for ev := range sub.C() {
			if _, _, ok := s.MatchFor(ev.GameID); !ok {
				continue
			}
			if err := s.handle(ctx, ev); err != nil {
				log.Warn().Err(err).Str("game_id", ev.GameID).Str("event", ev.Type).Msg("tournament event")
			}
		}
	}()
	return nil
}

func (s *Scheduler) handle(ctx context.Context, ev bus.Event) error {
	switch ev.Type {
	case bus.EventGameEnded:
		var state viewmodel.PublicStateView
		if err := json.Unmarshal(ev.State, &state); err != nil {
			return err
		}
		return s.settle(ctx, ev.GameID, state)
	case bus.EventGameClosed:
		return s.reopen(ctx, ev.GameID)
	}
	return nil
}

// settle applies a finished game: the declared winner advances; without one,
// a sole remaining participant wins by walkover and an empty game is replayed.
func (s *Scheduler) settle(ctx context.Context, gameID string, state viewmodel.PublicStateView) error {
	if state.WinnerID != "" {
		return s.resolve(ctx, gameID, state.WinnerID, false)
	}
	if len(state.Seats) == 1 {
		return s.resolve(ctx, gameID, state.Seats[0].PlayerID, true)
	}
	return s.reopen(ctx, gameID)
}
