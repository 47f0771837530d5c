package session

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sort"
	"sync"
	"time"

	"domino-hall/internal/bus"
	"domino-hall/internal/game"
	"domino-hall/internal/game/viewmodel"
	"domino-hall/internal/store"

	"github.com/rs/zerolog/log"
)

// HistoryRecorder receives every game once it has finished.
type HistoryRecorder interface {
	RecordGame(ctx context.Context, rec store.GameRecord) error
}

const DefaultFinishedRetention = 10 * time.Minute

type Options struct {
	// Origin identifies this process on the bus. Defaults to a fresh id.
	Origin    string
	Snapshots store.SnapshotStore
	Bus       bus.Bus
	History   HistoryRecorder
	// FinishedRetention is how long a finished game stays resident. After
	// that, reads go to the snapshot store until the snapshot expires.
	FinishedRetention time.Duration
	Now               func() time.Time
	Rand              *rand.Rand
}

// Registry owns the live games of this process. Every write to a game runs
// under that game's lock: load, clone, mutate, persist, publish, then swap the
// clone into memory.
type Registry struct {
	origin    string
	snapshots store.SnapshotStore
	bus       bus.Bus
	history   HistoryRecorder
	now       func() time.Time
	retention time.Duration

	rngMu sync.Mutex
	rng   *rand.Rand

	locks *keyedLock

	mu      sync.Mutex
	games   map[string]*game.Game
	reapers map[string]*time.Timer
	closed  bool
	sub     bus.Subscription
	done    chan struct{}
}

func New(opts Options) *Registry {
	if opts.Origin == "" {
		opts.Origin = store.NewID("n")
	}
	if opts.Snapshots == nil {
		opts.Snapshots = store.NewMemorySnapshots(time.Hour)
	}
	if opts.Bus == nil {
		opts.Bus = bus.NewMemory()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.FinishedRetention <= 0 {
		opts.FinishedRetention = DefaultFinishedRetention
	}
	return &Registry{
		origin:    opts.Origin,
		snapshots: opts.Snapshots,
		bus:       opts.Bus,
		history:   opts.History,
		now:       opts.Now,
		retention: opts.FinishedRetention,
		rng:       opts.Rand,
		locks:     newKeyedLock(),
		games:     map[string]*game.Game{},
		reapers:   map[string]*time.Timer{},
	}
}

func (r *Registry) Origin() string { return r.origin }

// Listen subscribes to the bus and evicts resident games that another process
// has changed, so the next access hydrates the newer snapshot.
func (r *Registry) Listen(ctx context.Context) error {
	sub, err := r.bus.Subscribe(ctx, bus.AllTopics...)
	if err != nil {
		return err
	}
	done := make(chan struct{})
	r.mu.Lock()
	r.sub = sub
	r.done = done
	r.mu.Unlock()
	go func() {
		defer close(done)
		for ev := range sub.C() {
			if ev.Origin == r.origin || ev.GameID == "" {
				continue
			}
			r.evictStale(ev)
		}
	}()
	return nil
}

// Close stops the bus listener and pending reaps.
func (r *Registry) Close() {
	r.mu.Lock()
	sub, done := r.sub, r.done
	r.sub, r.done = nil, nil
	r.closed = true
	for id, t := range r.reapers {
		t.Stop()
		delete(r.reapers, id)
	}
	r.mu.Unlock()
	if sub != nil {
		sub.Cancel()
		<-done
	}
}

func (r *Registry) evictStale(ev bus.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.games[ev.GameID]
	if !ok {
		return
	}
	if ev.Type == bus.EventGameClosed || g.Version < ev.Version {
		r.dropLocked(ev.GameID)
		metricLiveGames.Set(float64(len(r.games)))
		metricRemoteEvictions.Inc()
		log.Debug().Str("game_id", ev.GameID).Str("origin", ev.Origin).Int64("version", ev.Version).Msg("evicted stale game")
	}
}

func (r *Registry) evict(gameID string) {
	r.mu.Lock()
	r.dropLocked(gameID)
	metricLiveGames.Set(float64(len(r.games)))
	r.mu.Unlock()
}

func (r *Registry) dropLocked(gameID string) {
	delete(r.games, gameID)
	if t, ok := r.reapers[gameID]; ok {
		t.Stop()
		delete(r.reapers, gameID)
	}
}

func (r *Registry) swapIn(g *game.Game) {
	r.mu.Lock()
	r.games[g.ID] = g
	if g.Status == game.StatusFinished {
		r.scheduleReapLocked(g.ID)
	}
	metricLiveGames.Set(float64(len(r.games)))
	r.mu.Unlock()
}

func (r *Registry) scheduleReapLocked(gameID string) {
	if r.closed {
		return
	}
	if _, ok := r.reapers[gameID]; ok {
		return
	}
	r.reapers[gameID] = time.AfterFunc(r.retention, func() { r.reap(gameID) })
}

// reap drops a finished game from memory. The snapshot is left to its TTL.
func (r *Registry) reap(gameID string) {
	unlock := r.locks.lock(gameID)
	defer unlock()
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.reapers, gameID)
	g, ok := r.games[gameID]
	if !ok || g.Status != game.StatusFinished {
		return
	}
	delete(r.games, gameID)
	metricLiveGames.Set(float64(len(r.games)))
	metricReaped.Inc()
	log.Debug().Str("game_id", gameID).Msg("reaped finished game")
}

// GetGame returns a copy of the game, hydrating it from the snapshot store
// when it is not resident.
func (r *Registry) GetGame(ctx context.Context, gameID string) (*game.Game, error) {
	g, err := r.load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return g.Clone(), nil
}

func (r *Registry) PublicState(ctx context.Context, gameID string) (viewmodel.PublicStateView, error) {
	g, err := r.load(ctx, gameID)
	if err != nil {
		return viewmodel.PublicStateView{}, err
	}
	return viewmodel.BuildPublicState(g), nil
}

func (r *Registry) PlayerState(ctx context.Context, gameID, playerID string) (viewmodel.PlayerStateView, error) {
	g, err := r.load(ctx, gameID)
	if err != nil {
		return viewmodel.PlayerStateView{}, err
	}
	view, ok := viewmodel.BuildPlayerState(g, playerID)
	if !ok {
		return viewmodel.PlayerStateView{}, game.NewError(game.KindPlayerNotInGame, gameID, "player_id", playerID)
	}
	return view, nil
}

// LiveGames lists the ids resident in memory, sorted.
func (r *Registry) LiveGames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.games))
	for id := range r.games {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// load returns the resident instance. Callers must not mutate it.
func (r *Registry) load(ctx context.Context, gameID string) (*game.Game, error) {
	r.mu.Lock()
	g, ok := r.games[gameID]
	r.mu.Unlock()
	if ok {
		return g, nil
	}

	snap, err := r.snapshots.Get(ctx, gameID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, game.NewError(game.KindGameNotFound, gameID, "game_id", "")
	}
	if err != nil {
		return nil, game.Unavailable(gameID, "snapshot", err)
	}
	var hydrated game.Game
	if err := json.Unmarshal(snap.Data, &hydrated); err != nil {
		return nil, game.Unavailable(gameID, "snapshot", err)
	}
	hydrated.Version = snap.Version
	hydrated.SetClock(r.now)

	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.games[gameID]; ok && cur.Version >= hydrated.Version {
		return cur, nil
	}
	r.games[gameID] = &hydrated
	if hydrated.Status == game.StatusFinished {
		r.scheduleReapLocked(gameID)
	}
	metricLiveGames.Set(float64(len(r.games)))
	return &hydrated, nil
}

func (r *Registry) shuffleSource() *rand.Rand {
	r.rngMu.Lock()
	seed := r.rng.Int63()
	r.rngMu.Unlock()
	return rand.New(rand.NewSource(seed))
}

func resultKind(err error) string {
	if errors.Is(err, errNoChange) {
		return "noop"
	}
	if k := game.KindOf(err); k != "" {
		return string(k)
	}
	return "error"
}
