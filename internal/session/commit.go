package session

import (
	"context"
	"encoding/json"
	"errors"

	"domino-hall/internal/bus"
	"domino-hall/internal/game"
	"domino-hall/internal/game/viewmodel"
	"domino-hall/internal/store"

	"github.com/rs/zerolog/log"
)

// errNoChange aborts an update that would not modify the game.
var errNoChange = errors.New("no change")

type change struct {
	topic    bus.Topic
	kind     string
	playerID string
	data     any
}

type endedPayload struct {
	WinnerID  string         `json:"winner_id,omitempty"`
	EndReason string         `json:"end_reason"`
	Scores    map[string]int `json:"scores"`
	PipsLeft  map[string]int `json:"pips_left"`
}

func ended(g *game.Game) change {
	scores := make(map[string]int, len(g.Players))
	for _, p := range g.Players {
		scores[p.ID] = p.Score
	}
	return change{
		topic: bus.TopicGameEvents,
		kind:  bus.EventGameEnded,
		data: endedPayload{
			WinnerID:  g.WinnerID,
			EndReason: string(g.EndReason),
			Scores:    scores,
			PipsLeft:  g.PipTotals(),
		},
	}
}

// update runs fn against a clone of the game under the game's lock and
// commits the result. On any error the resident game is left as it was.
func (r *Registry) update(ctx context.Context, op, gameID string, fn func(g *game.Game) ([]change, error)) (out *game.Game, err error) {
	defer func() { observe(op, err) }()

	unlock := r.locks.lock(gameID)
	defer unlock()

	cur, err := r.load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	next := cur.Clone()
	changes, err := fn(next)
	if err != nil {
		return nil, err
	}
	finishedNow := cur.Status != game.StatusFinished && next.Status == game.StatusFinished
	if finishedNow {
		changes = append(changes, ended(next))
	}
	next.Version = cur.Version + 1

	if len(next.Players) == 0 {
		if err := r.close(ctx, cur, next, changes); err != nil {
			return nil, err
		}
		return next.Clone(), nil
	}
	if err := r.commit(ctx, cur, next, changes); err != nil {
		return nil, err
	}
	if finishedNow {
		r.record(ctx, next)
	}
	return next.Clone(), nil
}

// commit persists next with a version check, publishes changes and swaps next
// into memory. cur is nil for a new game.
func (r *Registry) commit(ctx context.Context, cur, next *game.Game, changes []change) error {
	data, err := json.Marshal(next)
	if err != nil {
		return game.Unavailable(next.ID, "snapshot", err)
	}
	if err := r.snapshots.Put(ctx, store.Snapshot{GameID: next.ID, Version: next.Version, Data: data}); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			r.evict(next.ID)
		}
		log.Warn().Err(err).Str("game_id", next.ID).Int64("version", next.Version).Msg("snapshot write failed")
		return game.Unavailable(next.ID, "snapshot", err)
	}
	if err := r.publishAll(ctx, next, changes); err != nil {
		r.rollback(ctx, cur, next.ID)
		return game.Unavailable(next.ID, "bus", err)
	}
	r.swapIn(next)
	return nil
}

// close drops an empty game instead of persisting it.
func (r *Registry) close(ctx context.Context, cur, next *game.Game, changes []change) error {
	if err := r.snapshots.Delete(ctx, cur.ID); err != nil {
		log.Warn().Err(err).Str("game_id", cur.ID).Msg("snapshot delete failed")
		return game.Unavailable(cur.ID, "snapshot", err)
	}
	changes = append(changes, change{topic: bus.TopicGameEvents, kind: bus.EventGameClosed})
	if err := r.publishAll(ctx, next, changes); err != nil {
		r.rollback(ctx, cur, cur.ID)
		return game.Unavailable(cur.ID, "bus", err)
	}
	r.evict(cur.ID)
	log.Info().Str("game_id", cur.ID).Msg("game closed")
	return nil
}

func (r *Registry) rollback(ctx context.Context, cur *game.Game, gameID string) {
	ctx = context.WithoutCancel(ctx)
	metricRollbacks.Inc()
	var err error
	if cur == nil {
		err = r.snapshots.Delete(ctx, gameID)
	} else {
		var data []byte
		data, err = json.Marshal(cur)
		if err == nil {
			err = r.snapshots.Restore(ctx, store.Snapshot{GameID: cur.ID, Version: cur.Version, Data: data})
		}
	}
	if err != nil {
		log.Error().Err(err).Str("game_id", gameID).Msg("snapshot rollback failed")
	}
}

func (r *Registry) publishAll(ctx context.Context, g *game.Game, changes []change) error {
	state, err := json.Marshal(viewmodel.BuildPublicState(g))
	if err != nil {
		return err
	}
	at := r.now()
	for _, c := range changes {
		ev := bus.Event{
			Type:     c.kind,
			GameID:   g.ID,
			Version:  g.Version,
			Origin:   r.origin,
			PlayerID: c.playerID,
			At:       at,
			State:    state,
		}
		if c.data != nil {
			if ev.Data, err = json.Marshal(c.data); err != nil {
				return err
			}
		}
		if err := r.bus.Publish(ctx, c.topic, ev); err != nil {
			log.Warn().Err(err).Str("game_id", g.ID).Str("event", c.kind).Msg("publish failed")
			return err
		}
	}
	return nil
}

func (r *Registry) record(ctx context.Context, g *game.Game) {
	if r.history == nil {
		return
	}
	data, err := json.Marshal(g)
	if err != nil {
		metricHistoryErrors.Inc()
		return
	}
	rec := store.GameRecord{
		GameID:    g.ID,
		Mode:      g.Config.Mode,
		Ranked:    g.Config.Ranked,
		WinnerID:  g.WinnerID,
		EndReason: string(g.EndReason),
		StartedAt: g.StartedAt,
		State:     data,
	}
	if g.EndedAt != nil {
		rec.EndedAt = *g.EndedAt
	}
	for i, p := range g.Players {
		rec.Players = append(rec.Players, store.GameRecordPlayer{
			PlayerID: p.ID,
			Seat:     i,
			Score:    p.Score,
			PipsLeft: game.PipTotal(p.Hand),
		})
	}
	if err := r.history.RecordGame(context.WithoutCancel(ctx), rec); err != nil {
		metricHistoryErrors.Inc()
		log.Error().Err(err).Str("game_id", g.ID).Msg("record finished game")
	}
}
