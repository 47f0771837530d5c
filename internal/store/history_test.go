package store

import (
	"errors"
	"testing"
	"time"
)

func TestRecordGameOnce(t *testing.T) {
	st, ctx := openStore(t)

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := GameRecord{
		GameID:    "g_1",
		Mode:      "classic",
		Ranked:    true,
		WinnerID:  "a",
		EndReason: "hand_emptied",
		StartedAt: &started,
		EndedAt:   started.Add(5 * time.Minute),
		State:     []byte(`{"id":"g_1"}`),
		Players: []GameRecordPlayer{
			{PlayerID: "a", Seat: 0, Score: 12},
			{PlayerID: "b", Seat: 1, Score: -12, PipsLeft: 12},
		},
	}
	if err := st.RecordGame(ctx, rec); err != nil {
		t.Fatalf("record game: %v", err)
	}
	rec.WinnerID = "b"
	if err := st.RecordGame(ctx, rec); err != nil {
		t.Fatalf("second record should be ignored: %v", err)
	}

	got, err := st.GetGameRecord(ctx, "g_1")
	if err != nil {
		t.Fatalf("get game record: %v", err)
	}
	if got.WinnerID != "a" || len(got.Players) != 2 || got.Players[1].PipsLeft != 12 {
		t.Fatalf("unexpected record %+v", got)
	}

	list, err := st.ListPlayerGames(ctx, "b", 10)
	if err != nil {
		t.Fatalf("list player games: %v", err)
	}
	if len(list) != 1 || list[0].GameID != "g_1" {
		t.Fatalf("unexpected list %+v", list)
	}

	if _, err := st.GetGameRecord(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordTournamentUpserts(t *testing.T) {
	st, ctx := openStore(t)

	rec := TournamentRecord{
		ID:        "t_1",
		Name:      "Friday",
		Status:    "in_progress",
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Bracket:   []byte(`[]`),
	}
	if err := st.RecordTournament(ctx, rec); err != nil {
		t.Fatalf("record tournament: %v", err)
	}
	done := rec.CreatedAt.Add(time.Hour)
	rec.Status = "completed"
	rec.ChampionID = "p3"
	rec.CompletedAt = &done
	if err := st.RecordTournament(ctx, rec); err != nil {
		t.Fatalf("update tournament: %v", err)
	}
	got, err := st.GetTournamentRecord(ctx, "t_1")
	if err != nil {
		t.Fatalf("get tournament: %v", err)
	}
	if got.Status != "completed" || got.ChampionID != "p3" || got.CompletedAt == nil {
		t.Fatalf("unexpected tournament %+v", got)
	}
}
