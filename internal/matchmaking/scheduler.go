package matchmaking

import (
	"context"
	"sort"
	"sync"
	"time"

	"domino-hall/internal/game"
	"domino-hall/internal/session"

	"github.com/rs/zerolog/log"
)

const (
	DefaultInterval       = 5 * time.Second
	DefaultAutoStartDelay = 5 * time.Second
	DefaultMode           = "classic"
)

// Registry is the part of the session registry matchmaking calls into.
type Registry interface {
	CreateGame(ctx context.Context, cfg game.Config) (*game.Game, error)
	JoinGame(ctx context.Context, gameID string, player game.Identity, password string) (*game.Game, error)
	LeaveGame(ctx context.Context, gameID, playerID string) (*game.Game, error)
	DiscardGame(ctx context.Context, gameID string) error
	StartGame(ctx context.Context, gameID string) (*game.Game, error)
}

type Entry struct {
	Player     game.Identity `json:"player"`
	Mode       string        `json:"mode"`
	Tier       Tier          `json:"tier"`
	Capacity   int           `json:"capacity"`
	EnqueuedAt time.Time     `json:"enqueued_at"`
	seq        uint64
}

func (e Entry) bucket() string {
	return e.Mode + "|" + string(e.Tier)
}

// Match describes one game formed by a tick.
type Match struct {
	GameID    string   `json:"game_id"`
	Mode      string   `json:"mode"`
	Tier      Tier     `json:"tier"`
	PlayerIDs []string `json:"player_ids"`
}

type Options struct {
	Interval       time.Duration
	AutoStartDelay time.Duration
	Now            func() time.Time
}

type Scheduler struct {
	reg      Registry
	interval time.Duration
	now      func() time.Time
	starter  *session.AutoStarter

	mu      sync.Mutex
	queue   map[string]Entry
	nextSeq uint64
}

func New(reg Registry, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.AutoStartDelay <= 0 {
		opts.AutoStartDelay = DefaultAutoStartDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scheduler{
		reg:      reg,
		interval: opts.Interval,
		now:      opts.Now,
		starter:  session.NewAutoStarter(reg, opts.AutoStartDelay),
		queue:    map[string]Entry{},
	}
}

func clampCapacity(n int) int {
	switch {
	case n == 0:
		return game.DefaultCapacity
	case n < game.MinPlayers:
		return game.MinPlayers
	case n > game.MaxCapacity:
		return game.MaxCapacity
	default:
		return n
	}
}

// Enqueue adds the player to the bucket for mode and their skill tier.
func (s *Scheduler) Enqueue(player game.Identity, mode string, capacity int) (Entry, error) {
	if mode == "" {
		mode = DefaultMode
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.queue[player.ID]; ok {
		return Entry{}, game.NewError(game.KindAlreadyQueued, "", "player_id", player.ID)
	}
	s.nextSeq++
	e := Entry{
		Player:     player,
		Mode:       mode,
		Tier:       TierFor(player.Stats),
		Capacity:   clampCapacity(capacity),
		EnqueuedAt: s.now(),
		seq:        s.nextSeq,
	}
	s.queue[player.ID] = e
	metricQueued.Set(float64(len(s.queue)))
	log.Debug().Str("player_id", player.ID).Str("bucket", e.bucket()).Msg("player queued")
	return e, nil
}

// Remove drops the player from the queue. It reports whether they were queued.
func (s *Scheduler) Remove(playerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.queue[playerID]; !ok {
		return false
	}
	delete(s.queue, playerID)
	metricQueued.Set(float64(len(s.queue)))
	return true
}

func (s *Scheduler) Position(playerID string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.queue[playerID]
	return e, ok
}

// Snapshot returns the number of waiting players per mode|tier bucket.
func (s *Scheduler) Snapshot() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]int{}
	for _, e := range s.queue {
		out[e.bucket()]++
	}
	return out
}

// take removes every group a tick can form, oldest entries first.
func (s *Scheduler) take() [][]Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	buckets := map[string][]Entry{}
	for _, e := range s.queue {
		buckets[e.bucket()] = append(buckets[e.bucket()], e)
	}
	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var groups [][]Entry
	for _, k := range keys {
		entries := buckets[k]
		sort.Slice(entries, func(i, j int) bool {
			if !entries[i].EnqueuedAt.Equal(entries[j].EnqueuedAt) {
				return entries[i].EnqueuedAt.Before(entries[j].EnqueuedAt)
			}
			return entries[i].seq < entries[j].seq
		})
		for len(entries) >= game.MinPlayers {
			n := entries[0].Capacity
			if n > len(entries) {
				n = len(entries)
			}
			group := entries[:n:n]
			for _, e := range group {
				delete(s.queue, e.Player.ID)
			}
			groups = append(groups, group)
			entries = entries[n:]
		}
	}
	metricQueued.Set(float64(len(s.queue)))
	return groups
}

// requeue puts entries back with their original position unless the player
// queued again meanwhile.
func (s *Scheduler) requeue(group []Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range group {
		if _, ok := s.queue[e.Player.ID]; ok {
			continue
		}
		s.queue[e.Player.ID] = e
		metricRequeued.Inc()
	}
	metricQueued.Set(float64(len(s.queue)))
}

// Tick forms every match the queue currently allows. The scheduler lock is
// not held while the registry is called.
func (s *Scheduler) Tick(ctx context.Context) []Match {
	var matches []Match
	for _, group := range s.take() {
		m, err := s.form(ctx, group)
		if err != nil {
			log.Warn().Err(err).Str("bucket", group[0].bucket()).Int("players", len(group)).Msg("match failed, requeued")
			s.requeue(group)
			continue
		}
		matches = append(matches, m)
	}
	return matches
}

func (s *Scheduler) form(ctx context.Context, group []Entry) (Match, error) {
	first := group[0]
	g, err := s.reg.CreateGame(ctx, game.Config{Mode: first.Mode, Capacity: first.Capacity, Ranked: true})
	if err != nil {
		return Match{}, err
	}
	joined := make([]string, 0, len(group))
	for _, e := range group {
		if _, err := s.reg.JoinGame(ctx, g.ID, e.Player, ""); err != nil {
			s.abandon(ctx, g.ID, joined)
			return Match{}, err
		}
		joined = append(joined, e.Player.ID)
	}
	s.starter.Schedule(g.ID)
	metricMatches.WithLabelValues(string(first.Tier)).Inc()
	log.Info().Str("game_id", g.ID).Str("bucket", first.bucket()).Strs("player_ids", joined).Msg("match formed")
	return Match{GameID: g.ID, Mode: first.Mode, Tier: first.Tier, PlayerIDs: joined}, nil
}

// abandon undoes a partly seated game. The last leave closes it; a game
// nobody joined is discarded.
func (s *Scheduler) abandon(ctx context.Context, gameID string, joined []string) {
	ctx = context.WithoutCancel(ctx)
	for _, id := range joined {
		if _, err := s.reg.LeaveGame(ctx, gameID, id); err != nil {
			log.Warn().Err(err).Str("game_id", gameID).Str("player_id", id).Msg("undo join")
		}
	}
	if len(joined) == 0 {
		if err := s.reg.DiscardGame(ctx, gameID); err != nil {
			log.Warn().Err(err).Str("game_id", gameID).Msg("discard unseated game")
		}
	}
}

// Run ticks at the configured interval until ctx is done, then stops pending
// auto-starts.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer s.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

func (s *Scheduler) PendingStarts() int {
	return s.starter.Pending()
}

func (s *Scheduler) Stop() {
	s.starter.Stop()
}
