package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type GameRecordPlayer struct {
	PlayerID string `json:"player_id"`
	Seat     int    `json:"seat"`
	Score    int    `json:"score"`
	PipsLeft int    `json:"pips_left"`
}

type GameRecord struct {
	GameID    string             `json:"game_id"`
	Mode      string             `json:"mode"`
	Ranked    bool               `json:"ranked"`
	WinnerID  string             `json:"winner_id,omitempty"`
	EndReason string             `json:"end_reason"`
	StartedAt *time.Time         `json:"started_at,omitempty"`
	EndedAt   time.Time          `json:"ended_at"`
	State     []byte             `json:"-"`
	Players   []GameRecordPlayer `json:"players"`
}

type TournamentRecord struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	ChampionID  string     `json:"champion_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Bracket     []byte     `json:"-"`
}

// RecordGame stores a finished game once. Repeated calls for the same id are
// ignored.
func (s *Store) RecordGame(ctx context.Context, rec GameRecord) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO games (id, mode, ranked, winner_id, end_reason, started_at, ended_at, state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		rec.GameID, rec.Mode, rec.Ranked, textParam(rec.WinnerID), rec.EndReason,
		timePtrParam(rec.StartedAt), rec.EndedAt, rec.State)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range rec.Players {
		batch.Queue(`INSERT INTO game_players (game_id, player_id, seat, score, pips_left) VALUES ($1, $2, $3, $4, $5)`,
			rec.GameID, p.PlayerID, p.Seat, p.Score, p.PipsLeft)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) GetGameRecord(ctx context.Context, gameID string) (*GameRecord, error) {
	var (
		rec       GameRecord
		winner    pgtype.Text
		startedAt pgtype.Timestamptz
	)
	err := s.Pool.QueryRow(ctx, `
		SELECT id, mode, ranked, winner_id, end_reason, started_at, ended_at, state
		FROM games WHERE id = $1`, gameID).
		Scan(&rec.GameID, &rec.Mode, &rec.Ranked, &winner, &rec.EndReason, &startedAt, &rec.EndedAt, &rec.State)
	if err != nil {
		return nil, mapNotFound(err)
	}
	rec.WinnerID = textVal(winner)
	rec.StartedAt = timePtrVal(startedAt)

	rows, err := s.Pool.Query(ctx, `
		SELECT player_id, seat, score, pips_left FROM game_players
		WHERE game_id = $1 ORDER BY seat`, gameID)
	if err != nil {
		return nil, err
	}
	players, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (GameRecordPlayer, error) {
		var p GameRecordPlayer
		err := row.Scan(&p.PlayerID, &p.Seat, &p.Score, &p.PipsLeft)
		return p, err
	})
	if err != nil {
		return nil, err
	}
	rec.Players = players
	return &rec, nil
}

// ListPlayerGames returns the most recent finished games for playerID.
func (s *Store) ListPlayerGames(ctx context.Context, playerID string, limit int) ([]GameRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT g.id, g.mode, g.ranked, g.winner_id, g.end_reason, g.started_at, g.ended_at
		FROM games g JOIN game_players gp ON gp.game_id = g.id
		WHERE gp.player_id = $1
		ORDER BY g.ended_at DESC
		LIMIT $2`, playerID, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (GameRecord, error) {
		var (
			rec       GameRecord
			winner    pgtype.Text
			startedAt pgtype.Timestamptz
		)
		err := row.Scan(&rec.GameID, &rec.Mode, &rec.Ranked, &winner, &rec.EndReason, &startedAt, &rec.EndedAt)
		rec.WinnerID = textVal(winner)
		rec.StartedAt = timePtrVal(startedAt)
		return rec, err
	})
}

// RecordTournament upserts the latest tournament state.
func (s *Store) RecordTournament(ctx context.Context, rec TournamentRecord) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO tournaments (id, name, status, champion_id, created_at, completed_at, bracket)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			champion_id = EXCLUDED.champion_id,
			completed_at = EXCLUDED.completed_at,
			bracket = EXCLUDED.bracket`,
		rec.ID, rec.Name, rec.Status, textParam(rec.ChampionID), rec.CreatedAt,
		timePtrParam(rec.CompletedAt), rec.Bracket)
	return err
}

func (s *Store) GetTournamentRecord(ctx context.Context, id string) (*TournamentRecord, error) {
	var (
		rec         TournamentRecord
		champion    pgtype.Text
		completedAt pgtype.Timestamptz
	)
	err := s.Pool.QueryRow(ctx, `
		SELECT id, name, status, champion_id, created_at, completed_at, bracket
		FROM tournaments WHERE id = $1`, id).
		Scan(&rec.ID, &rec.Name, &rec.Status, &champion, &rec.CreatedAt, &completedAt, &rec.Bracket)
	if err != nil {
		return nil, mapNotFound(err)
	}
	rec.ChampionID = textVal(champion)
	rec.CompletedAt = timePtrVal(completedAt)
	return &rec, nil
}
