package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"domino-hall/internal/game"

	"github.com/rs/zerolog/log"
)

// Starter is the guarded start path timers call into.
type Starter interface {
	StartGame(ctx context.Context, gameID string) (*game.Game, error)
}

// AutoStarter starts games after a fixed delay so clients can confirm the
// join first. A start that fails as Unavailable is tried once more.
type AutoStarter struct {
	starter Starter
	delay   time.Duration
	timeout time.Duration
	retries int

	mu        sync.Mutex
	timers    map[string]*time.Timer
	attempts  map[string]int
	stopped   bool
	onFailure func(ctx context.Context, gameID string, err error)
}

func NewAutoStarter(starter Starter, delay time.Duration) *AutoStarter {
	if delay < 0 {
		delay = 0
	}
	return &AutoStarter{
		starter: starter,
		delay:   delay,
		timeout:  5 * time.Second,
		retries:  1,
		timers:   map[string]*time.Timer{},
		attempts: map[string]int{},
	}
}

// OnFailure registers fn to run after a start that did not happen, except
// when the game had already started.
func (a *AutoStarter) OnFailure(fn func(ctx context.Context, gameID string, err error)) {
	a.mu.Lock()
	a.onFailure = fn
	a.mu.Unlock()
}

// Schedule arms a start for gameID. Scheduling the same game twice keeps the
// first timer.
func (a *AutoStarter) Schedule(gameID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}
	if _, ok := a.timers[gameID]; ok {
		return
	}
	a.timers[gameID] = time.AfterFunc(a.delay, func() { a.fire(gameID) })
}

func (a *AutoStarter) fire(gameID string) {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	delete(a.timers, gameID)
	onFailure := a.onFailure
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	_, err := a.starter.StartGame(ctx, gameID)
	switch {
	case err == nil:
		log.Info().Str("game_id", gameID).Msg("game auto-started")
	case errors.Is(err, game.ErrAlreadyStarted), errors.Is(err, game.ErrGameNotFound), errors.Is(err, game.ErrNotEnoughPlayers):
		log.Debug().Err(err).Str("game_id", gameID).Msg("auto-start skipped")
	default:
		log.Warn().Err(err).Str("game_id", gameID).Msg("auto-start failed")
	}
	if game.IsRetryable(err) && a.rearm(gameID) {
		return
	}
	a.mu.Lock()
	delete(a.attempts, gameID)
	a.mu.Unlock()
	if err != nil && !errors.Is(err, game.ErrAlreadyStarted) && onFailure != nil {
		onFailure(ctx, gameID, err)
	}
}

// rearm schedules another attempt after a retryable failure while retries
// remain.
func (a *AutoStarter) rearm(gameID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped || a.attempts[gameID] >= a.retries {
		return false
	}
	if _, ok := a.timers[gameID]; ok {
		return true
	}
	a.attempts[gameID]++
	a.timers[gameID] = time.AfterFunc(a.delay, func() { a.fire(gameID) })
	log.Info().Str("game_id", gameID).Int("attempt", a.attempts[gameID]+1).Msg("auto-start re-armed")
	return true
}

// Pending reports how many timers are armed.
func (a *AutoStarter) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.timers)
}

// Stop cancels every pending timer. Later Schedule calls are ignored.
func (a *AutoStarter) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
	for id, t := range a.timers {
		t.Stop()
		delete(a.timers, id)
	}
	clear(a.attempts)
}
