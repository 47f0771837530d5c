package matchmaking

import (
	"context"
	"errors"
	"testing"
	"time"

	"domino-hall/internal/game"
	"domino-hall/internal/session"
)

type failingRegistry struct {
	Registry
	createErr error
	joinErr   error
}

func (f *failingRegistry) JoinGame(ctx context.Context, gameID string, player game.Identity, password string) (*game.Game, error) {
	if f.joinErr != nil {
		return nil, f.joinErr
	}
	return f.Registry.JoinGame(ctx, gameID, player, password)
}

func (f *failingRegistry) CreateGame(ctx context.Context, cfg game.Config) (*game.Game, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.Registry.CreateGame(ctx, cfg)
}

func newTestScheduler(t *testing.T, delay time.Duration) (*Scheduler, *session.Registry, *time.Time) {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reg := session.New(session.Options{Origin: "test"})
	s := New(reg, Options{AutoStartDelay: delay, Now: func() time.Time { return now }})
	t.Cleanup(s.Stop)
	return s, reg, &now
}

func newcomer(id string) game.Identity {
	return game.Identity{ID: id, DisplayName: id}
}

func TestTierFor(t *testing.T) {
	tests := []struct {
		stats game.Stats
		want  Tier
	}{
		{game.Stats{GamesPlayed: 9, Wins: 9}, TierBeginner},
		{game.Stats{GamesPlayed: 20, Wins: 6}, TierNovice},
		{game.Stats{GamesPlayed: 20, Wins: 7}, TierIntermediate},
		{game.Stats{GamesPlayed: 20, Wins: 10}, TierAdvanced},
		{game.Stats{GamesPlayed: 20, Wins: 13}, TierExpert},
		{game.Stats{GamesPlayed: 10, Wins: 10}, TierExpert},
	}
	for _, tt := range tests {
		if got := TierFor(tt.stats); got != tt.want {
			t.Fatalf("TierFor(%+v) = %s, want %s", tt.stats, got, tt.want)
		}
	}
}

func TestEnqueueRejectsDuplicatesAndClampsCapacity(t *testing.T) {
	s, _, _ := newTestScheduler(t, time.Hour)
	e, err := s.Enqueue(newcomer("a"), "", 0)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if e.Capacity != 4 || e.Mode != DefaultMode || e.Tier != TierBeginner {
		t.Fatalf("unexpected entry %+v", e)
	}
	if _, err := s.Enqueue(newcomer("a"), "classic", 2); !errors.Is(err, game.ErrAlreadyQueued) {
		t.Fatalf("expected AlreadyQueued, got %v", err)
	}
	if e, _ := s.Enqueue(newcomer("b"), "", 9); e.Capacity != 4 {
		t.Fatalf("capacity 9 clamped to %d", e.Capacity)
	}
	if e, _ := s.Enqueue(newcomer("c"), "", 1); e.Capacity != 2 {
		t.Fatalf("capacity 1 clamped to %d", e.Capacity)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	s, _, _ := newTestScheduler(t, time.Hour)
	if s.Remove("nobody") {
		t.Fatal("removing an unknown player reported true")
	}
	_, _ = s.Enqueue(newcomer("a"), "", 0)
	if !s.Remove("a") || s.Remove("a") {
		t.Fatal("expected exactly one successful removal")
	}
	if len(s.Snapshot()) != 0 {
		t.Fatalf("queue not empty: %v", s.Snapshot())
	}
}

func TestTickFormsOneGameInEnqueueOrder(t *testing.T) {
	s, reg, now := newTestScheduler(t, time.Hour)
	for _, id := range []string{"A", "B", "C", "D"} {
		if _, err := s.Enqueue(newcomer(id), "classic", 4); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
		*now = now.Add(time.Second)
	}
	matches := s.Tick(context.Background())
	if len(matches) != 1 {
		t.Fatalf("expected one match, got %d", len(matches))
	}
	g, err := reg.GetGame(context.Background(), matches[0].GameID)
	if err != nil {
		t.Fatalf("get game: %v", err)
	}
	if len(g.Players) != 4 || !g.Config.Ranked || g.Config.Capacity != 4 {
		t.Fatalf("unexpected game config=%+v players=%d", g.Config, len(g.Players))
	}
	for i, id := range []string{"A", "B", "C", "D"} {
		if g.Players[i].ID != id {
			t.Fatalf("seat %d = %s, want %s", i, g.Players[i].ID, id)
		}
	}
	if snap := s.Snapshot(); len(snap) != 0 {
		t.Fatalf("expected empty bucket, got %v", snap)
	}
	if s.PendingStarts() != 1 {
		t.Fatalf("expected one pending auto-start, got %d", s.PendingStarts())
	}
}

func TestTickRepeatsWithinBucket(t *testing.T) {
	s, _, _ := newTestScheduler(t, time.Hour)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		_, _ = s.Enqueue(newcomer(id), "", 2)
	}
	matches := s.Tick(context.Background())
	if len(matches) != 2 {
		t.Fatalf("expected two matches, got %d", len(matches))
	}
	if got := matches[0].PlayerIDs; got[0] != "a" || got[1] != "b" {
		t.Fatalf("first match %v", got)
	}
	if snap := s.Snapshot(); snap["classic|beginner"] != 1 {
		t.Fatalf("expected one player left, got %v", snap)
	}
	if _, ok := s.Position("e"); !ok {
		t.Fatal("expected the youngest entry to keep waiting")
	}
}

func TestTickUsesOldestEntryCapacity(t *testing.T) {
	s, _, _ := newTestScheduler(t, time.Hour)
	_, _ = s.Enqueue(newcomer("a"), "", 2)
	_, _ = s.Enqueue(newcomer("b"), "", 4)
	_, _ = s.Enqueue(newcomer("c"), "", 4)
	matches := s.Tick(context.Background())
	if len(matches) != 1 || len(matches[0].PlayerIDs) != 2 {
		t.Fatalf("unexpected matches %+v", matches)
	}
}

func TestTickKeepsTiersApart(t *testing.T) {
	s, _, _ := newTestScheduler(t, time.Hour)
	_, _ = s.Enqueue(newcomer("new"), "", 2)
	_, _ = s.Enqueue(game.Identity{ID: "pro", Stats: game.Stats{GamesPlayed: 100, Wins: 80}}, "", 2)
	_, _ = s.Enqueue(newcomer("solo"), "blitz", 2)
	if matches := s.Tick(context.Background()); len(matches) != 0 {
		t.Fatalf("expected no matches across tiers or modes, got %+v", matches)
	}
	if snap := s.Snapshot(); snap["classic|beginner"] != 1 || snap["classic|expert"] != 1 || snap["blitz|beginner"] != 1 {
		t.Fatalf("unexpected bucket sizes %v", snap)
	}
}

func TestTickRequeuesOnRegistryFailure(t *testing.T) {
	reg := &failingRegistry{Registry: session.New(session.Options{}), createErr: game.Unavailable("", "snapshot", errors.New("down"))}
	s := New(reg, Options{AutoStartDelay: time.Hour})
	defer s.Stop()
	a, _ := s.Enqueue(newcomer("a"), "", 2)
	_, _ = s.Enqueue(newcomer("b"), "", 2)

	if matches := s.Tick(context.Background()); len(matches) != 0 {
		t.Fatalf("expected failed tick to form nothing, got %+v", matches)
	}
	got, ok := s.Position("a")
	if !ok || !got.EnqueuedAt.Equal(a.EnqueuedAt) {
		t.Fatalf("entry lost or re-stamped: %+v", got)
	}

	reg.createErr = nil
	if matches := s.Tick(context.Background()); len(matches) != 1 || matches[0].PlayerIDs[0] != "a" {
		t.Fatalf("expected retry to keep order, got %+v", matches)
	}
}

func TestFailedJoinLeavesNoGameBehind(t *testing.T) {
	inner := session.New(session.Options{})
	reg := &failingRegistry{Registry: inner, joinErr: game.Unavailable("", "bus", errors.New("down"))}
	s := New(reg, Options{AutoStartDelay: time.Hour})
	defer s.Stop()
	_, _ = s.Enqueue(newcomer("a"), "", 2)
	_, _ = s.Enqueue(newcomer("b"), "", 2)

	if matches := s.Tick(context.Background()); len(matches) != 0 {
		t.Fatalf("expected failed join to form nothing, got %+v", matches)
	}
	if live := inner.LiveGames(); len(live) != 0 {
		t.Fatalf("expected unseated game to be discarded, live=%v", live)
	}
	if _, ok := s.Position("a"); !ok {
		t.Fatalf("expected a to be requeued")
	}
}

func TestMatchedGameAutoStarts(t *testing.T) {
	s, reg, _ := newTestScheduler(t, 10*time.Millisecond)
	_, _ = s.Enqueue(newcomer("a"), "", 2)
	_, _ = s.Enqueue(newcomer("b"), "", 2)
	matches := s.Tick(context.Background())
	if len(matches) != 1 {
		t.Fatalf("expected a match, got %d", len(matches))
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		g, _ := reg.GetGame(context.Background(), matches[0].GameID)
		if g.Status == game.StatusPlaying {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("matched game was not auto-started")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRunStopsWithContext(t *testing.T) {
	reg := session.New(session.Options{})
	s := New(reg, Options{Interval: 5 * time.Millisecond, AutoStartDelay: time.Hour})
	_, _ = s.Enqueue(newcomer("a"), "", 2)
	_, _ = s.Enqueue(newcomer("b"), "", 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	deadline := time.Now().Add(2 * time.Second)
	for len(s.Snapshot()) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("run loop never ticked")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
	if s.PendingStarts() != 0 {
		t.Fatal("expected pending auto-starts cancelled on exit")
	}
}
