package tournament

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"slices"
	"sort"
	"sync"
	"time"

	"domino-hall/internal/game"
	"domino-hall/internal/session"
	"domino-hall/internal/store"

	"github.com/rs/zerolog/log"
)

// Registry is the part of the session registry brackets are played on.
type Registry interface {
	CreateGame(ctx context.Context, cfg game.Config) (*game.Game, error)
	GetGame(ctx context.Context, gameID string) (*game.Game, error)
	JoinGame(ctx context.Context, gameID string, player game.Identity, password string) (*game.Game, error)
	LeaveGame(ctx context.Context, gameID, playerID string) (*game.Game, error)
	DiscardGame(ctx context.Context, gameID string) error
	StartGame(ctx context.Context, gameID string) (*game.Game, error)
}

// Recorder persists tournament state on every status change.
type Recorder interface {
	RecordTournament(ctx context.Context, rec store.TournamentRecord) error
}

type Options struct {
	AutoStartDelay time.Duration
	History        Recorder
	Now            func() time.Time
	Rand           *rand.Rand
}

type matchRef struct {
	tournamentID string
	matchID      string
}

// opening is a match waiting for its game.
type opening struct {
	tournamentID string
	matchID      string
	mode         string
	players      [2]game.Identity
}

type Scheduler struct {
	reg     Registry
	history Recorder
	now     func() time.Time
	starter *session.AutoStarter

	mu          sync.Mutex
	rng         *rand.Rand
	tournaments map[string]*Tournament
	games       map[string]matchRef
}

func New(reg Registry, opts Options) *Scheduler {
	if opts.AutoStartDelay <= 0 {
		opts.AutoStartDelay = 5 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	s := &Scheduler{
		reg:         reg,
		history:     opts.History,
		now:         opts.Now,
		starter:     session.NewAutoStarter(reg, opts.AutoStartDelay),
		rng:         opts.Rand,
		tournaments: map[string]*Tournament{},
		games:       map[string]matchRef{},
	}
	s.starter.OnFailure(s.startFailed)
	return s
}

func notFound(id string) error {
	return game.NewError(game.KindTournamentNotFound, "", "tournament_id", id)
}

func (s *Scheduler) Create(cfg Config) (*Tournament, error) {
	if cfg.Capacity == 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Capacity < MinParticipants || cfg.Capacity > MaxCapacity {
		return nil, game.NewError(game.KindInvalidConfig, "", "capacity", "must be between 4 and 64")
	}
	if cfg.Mode == "" {
		cfg.Mode = "classic"
	}
	t := &Tournament{
		ID:           store.NewID(store.PrefixTournament),
		Name:         cfg.Name,
		Format:       FormatSingleElimination,
		Capacity:     cfg.Capacity,
		Mode:         cfg.Mode,
		Status:       StatusRegistration,
		Participants: []game.Identity{},
		Bracket:      []*Match{},
		CreatedAt:    s.now(),
	}
	s.mu.Lock()
	s.tournaments[t.ID] = t
	metricActive.Set(float64(s.activeLocked()))
	out := t.clone()
	s.mu.Unlock()
	log.Info().Str("tournament_id", t.ID).Str("name", t.Name).Int("capacity", t.Capacity).Msg("tournament created")
	return out, nil
}

func (s *Scheduler) Get(id string) (*Tournament, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tournaments[id]
	if !ok {
		return nil, notFound(id)
	}
	return t.clone(), nil
}

// List returns every known tournament, newest first.
func (s *Scheduler) List() []*Tournament {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Tournament, 0, len(s.tournaments))
	for _, t := range s.tournaments {
		out = append(out, t.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (s *Scheduler) Register(id string, player game.Identity) (*Tournament, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tournaments[id]
	if !ok {
		return nil, notFound(id)
	}
	if t.Status != StatusRegistration {
		return nil, game.NewError(game.KindRegistrationClosed, "", "status", string(t.Status))
	}
	if _, ok := t.participant(player.ID); ok {
		return nil, game.NewError(game.KindDuplicatePlayer, "", "player_id", player.ID)
	}
	if len(t.Participants) >= t.Capacity {
		return nil, game.NewError(game.KindTournamentFull, "", "capacity", "")
	}
	t.Participants = append(t.Participants, player)
	return t.clone(), nil
}

// Unregister withdraws a participant while registration is open.
func (s *Scheduler) Unregister(id, playerID string) (*Tournament, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tournaments[id]
	if !ok {
		return nil, notFound(id)
	}
	if t.Status != StatusRegistration {
		return nil, game.NewError(game.KindRegistrationClosed, "", "status", string(t.Status))
	}
	for i, p := range t.Participants {
		if p.ID == playerID {
			t.Participants = append(t.Participants[:i], t.Participants[i+1:]...)
			return t.clone(), nil
		}
	}
	return nil, game.NewError(game.KindPlayerNotInGame, "", "player_id", playerID)
}

// Start shuffles the field into round one and opens a game per real match.
// An odd entrant gets a bye and advances.
func (s *Scheduler) Start(ctx context.Context, id string) (*Tournament, error) {
	s.mu.Lock()
	t, ok := s.tournaments[id]
	if !ok {
		s.mu.Unlock()
		return nil, notFound(id)
	}
	if t.Status != StatusRegistration {
		s.mu.Unlock()
		return nil, game.NewError(game.KindAlreadyStarted, "", "status", string(t.Status))
	}
	if len(t.Participants) < MinParticipants {
		s.mu.Unlock()
		return nil, game.NewError(game.KindNotEnoughParticipants, "", "participants", "")
	}
	ids := make([]string, len(t.Participants))
	for i, p := range t.Participants {
		ids[i] = p.ID
	}
	s.rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })

	now := s.now()
	t.Status = StatusInProgress
	t.StartedAt = &now
	openings := s.pairLocked(t, 1, ids)
	rec := s.recordLocked(t)
	metricActive.Set(float64(s.activeLocked()))
	s.mu.Unlock()

	log.Info().Str("tournament_id", id).Int("participants", len(ids)).Int("matches", len(openings)).Msg("tournament started")
	s.record(ctx, rec)
	err := s.open(ctx, openings)
	out, _ := s.Get(id)
	return out, err
}

// pairLocked appends round r to the bracket. In an odd field the bye goes to
// the last entrant who has not had one yet, or to the last entrant once
// everyone has.
func (s *Scheduler) pairLocked(t *Tournament, round int, ids []string) []opening {
	t.CurrentRound = round
	ids = slices.Clone(ids)
	bye := ""
	if len(ids)%2 == 1 {
		at := len(ids) - 1
		for i := len(ids) - 1; i >= 0; i-- {
			if !t.hadBye(ids[i]) {
				at = i
				break
			}
		}
		bye = ids[at]
		ids = slices.Delete(ids, at, at+1)
	}
	var openings []opening
	number := 1
	for i := 0; i+1 < len(ids); i += 2 {
		m := &Match{
			ID:      store.NewID(store.PrefixMatch),
			Round:   round,
			Number:  number,
			PlayerA: ids[i],
			PlayerB: ids[i+1],
			Status:  MatchPending,
		}
		number++
		t.Bracket = append(t.Bracket, m)
		openings = append(openings, s.openingLocked(t, m))
	}
	if bye != "" {
		t.Bracket = append(t.Bracket, &Match{
			ID:       store.NewID(store.PrefixMatch),
			Round:    round,
			Number:   number,
			PlayerA:  bye,
			Bye:      true,
			WinnerID: bye,
			Status:   MatchCompleted,
		})
	}
	return openings
}

func (s *Scheduler) openingLocked(t *Tournament, m *Match) opening {
	a, _ := t.participant(m.PlayerA)
	b, _ := t.participant(m.PlayerB)
	return opening{tournamentID: t.ID, matchID: m.ID, mode: t.Mode, players: [2]game.Identity{a, b}}
}

// open creates, seats and schedules a game for each opening. A match whose
// game cannot be opened stays pending for Resume and leaves no game behind.
func (s *Scheduler) open(ctx context.Context, openings []opening) error {
	var firstErr error
	for _, o := range openings {
		gameID, err := s.openOne(ctx, o)
		if err != nil {
			metricOpenFailures.Inc()
			log.Warn().Err(err).Str("tournament_id", o.tournamentID).Str("match_id", o.matchID).Msg("open match game")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		s.mu.Lock()
		if t, ok := s.tournaments[o.tournamentID]; ok && t.Status == StatusInProgress {
			if m := t.match(o.matchID); m != nil && m.Status == MatchPending {
				m.GameID = gameID
				m.Status = MatchPlaying
				s.games[gameID] = matchRef{tournamentID: o.tournamentID, matchID: o.matchID}
			}
		}
		s.mu.Unlock()
		s.starter.Schedule(gameID)
		metricMatchesOpened.Inc()
	}
	return firstErr
}

func (s *Scheduler) openOne(ctx context.Context, o opening) (string, error) {
	g, err := s.reg.CreateGame(ctx, game.Config{Mode: o.mode, Capacity: 2, Ranked: true})
	if err != nil {
		return "", err
	}
	seated := make([]string, 0, len(o.players))
	for _, p := range o.players {
		if _, err := s.reg.JoinGame(ctx, g.ID, p, ""); err != nil {
			s.abandon(ctx, g.ID, seated)
			return "", err
		}
		seated = append(seated, p.ID)
	}
	return g.ID, nil
}

// abandon unseats whoever joined a game that could not be fully seated, which
// closes it, or discards it when nobody got in.
func (s *Scheduler) abandon(ctx context.Context, gameID string, seated []string) {
	ctx = context.WithoutCancel(ctx)
	for _, id := range seated {
		if _, err := s.reg.LeaveGame(ctx, gameID, id); err != nil {
			log.Warn().Err(err).Str("game_id", gameID).Str("player_id", id).Msg("undo match join")
		}
	}
	if len(seated) == 0 {
		if err := s.reg.DiscardGame(ctx, gameID); err != nil {
			log.Warn().Err(err).Str("game_id", gameID).Msg("discard match game")
		}
	}
}

// startFailed settles a match game that never started because a participant
// left it while waiting. The participant still seated wins by walkover and
// the leftover game is closed.
func (s *Scheduler) startFailed(ctx context.Context, gameID string, err error) {
	if !errors.Is(err, game.ErrNotEnoughPlayers) {
		return
	}
	if _, _, ok := s.MatchFor(gameID); !ok {
		return
	}
	g, err := s.reg.GetGame(ctx, gameID)
	if err != nil {
		log.Debug().Err(err).Str("game_id", gameID).Msg("unstarted match game gone")
		return
	}
	if len(g.Players) != 1 {
		return
	}
	winner := g.Players[0].ID
	if err := s.resolve(ctx, gameID, winner, true); err != nil {
		if errors.Is(err, game.ErrPlayerNotInGame) {
			err = s.reopen(ctx, gameID)
		}
		if err != nil {
			log.Warn().Err(err).Str("game_id", gameID).Msg("settle unstarted match")
		}
		return
	}
	if _, err := s.reg.LeaveGame(context.WithoutCancel(ctx), gameID, winner); err != nil {
		log.Warn().Err(err).Str("game_id", gameID).Msg("close unstarted match game")
	}
}

// Resume retries opening games for pending matches of the current round and
// re-arms the start of match games that are seated but still waiting.
func (s *Scheduler) Resume(ctx context.Context, id string) error {
	s.mu.Lock()
	t, ok := s.tournaments[id]
	if !ok {
		s.mu.Unlock()
		return notFound(id)
	}
	var openings []opening
	var seated []string
	if t.Status == StatusInProgress {
		for _, m := range t.Round(t.CurrentRound) {
			switch {
			case m.Bye:
			case m.Status == MatchPending:
				openings = append(openings, s.openingLocked(t, m))
			case m.Status == MatchPlaying:
				seated = append(seated, m.GameID)
			}
		}
	}
	s.mu.Unlock()

	for _, gameID := range seated {
		g, err := s.reg.GetGame(ctx, gameID)
		if err != nil {
			log.Debug().Err(err).Str("game_id", gameID).Msg("resume match game")
			continue
		}
		if g.Status == game.StatusWaiting {
			s.starter.Schedule(gameID)
		}
	}
	return s.open(ctx, openings)
}

// ReportResult resolves the match played in gameID. Reporting an already
// resolved match is a no-op.
func (s *Scheduler) ReportResult(ctx context.Context, gameID, winnerID string) error {
	return s.resolve(ctx, gameID, winnerID, false)
}

func (s *Scheduler) resolve(ctx context.Context, gameID, winnerID string, walkover bool) error {
	s.mu.Lock()
	ref, ok := s.games[gameID]
	if !ok {
		s.mu.Unlock()
		return game.NewError(game.KindGameNotFound, gameID, "game_id", "not a tournament match")
	}
	t := s.tournaments[ref.tournamentID]
	m := t.match(ref.matchID)
	if m.Status == MatchCompleted {
		s.mu.Unlock()
		return nil
	}
	if !m.has(winnerID) {
		s.mu.Unlock()
		return game.NewError(game.KindPlayerNotInGame, gameID, "winner_id", winnerID)
	}
	m.WinnerID = winnerID
	m.Walkover = walkover
	m.Status = MatchCompleted
	delete(s.games, gameID)
	log.Info().Str("tournament_id", t.ID).Str("match_id", m.ID).Str("game_id", gameID).Str("winner_id", winnerID).Bool("walkover", walkover).Msg("match resolved")

	openings, rec := s.advanceLocked(t)
	s.mu.Unlock()

	if rec != nil {
		s.record(ctx, *rec)
	}
	return s.open(ctx, openings)
}

// advanceLocked pairs the winners once every match of the current round is
// resolved, or crowns the champion after the final.
func (s *Scheduler) advanceLocked(t *Tournament) ([]opening, *store.TournamentRecord) {
	if t.Status != StatusInProgress {
		return nil, nil
	}
	round := t.Round(t.CurrentRound)
	winners := make([]string, 0, len(round))
	for _, m := range round {
		if m.Status != MatchCompleted {
			return nil, nil
		}
		winners = append(winners, m.WinnerID)
	}
	if len(winners) == 1 {
		now := s.now()
		t.Status = StatusCompleted
		t.ChampionID = winners[0]
		t.CompletedAt = &now
		metricActive.Set(float64(s.activeLocked()))
		log.Info().Str("tournament_id", t.ID).Str("champion_id", t.ChampionID).Msg("tournament completed")
		rec := s.recordLocked(t)
		return nil, &rec
	}
	return s.pairLocked(t, t.CurrentRound+1, winners), nil
}

// reopen moves an unresolved match into a fresh game.
func (s *Scheduler) reopen(ctx context.Context, gameID string) error {
	s.mu.Lock()
	ref, ok := s.games[gameID]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.games, gameID)
	t := s.tournaments[ref.tournamentID]
	m := t.match(ref.matchID)
	if t.Status != StatusInProgress || m.Status == MatchCompleted {
		s.mu.Unlock()
		return nil
	}
	m.GameID = ""
	m.Status = MatchPending
	o := s.openingLocked(t, m)
	s.mu.Unlock()

	metricReopened.Inc()
	log.Info().Str("tournament_id", ref.tournamentID).Str("match_id", ref.matchID).Str("game_id", gameID).Msg("match reopened")
	return s.open(ctx, []opening{o})
}

// Cancel stops a tournament that has not finished.
func (s *Scheduler) Cancel(ctx context.Context, id string) (*Tournament, error) {
	s.mu.Lock()
	t, ok := s.tournaments[id]
	if !ok {
		s.mu.Unlock()
		return nil, notFound(id)
	}
	if t.Status != StatusRegistration && t.Status != StatusInProgress {
		s.mu.Unlock()
		return nil, game.NewError(game.KindRegistrationClosed, "", "status", string(t.Status))
	}
	now := s.now()
	t.Status = StatusCancelled
	t.CompletedAt = &now
	for gameID, ref := range s.games {
		if ref.tournamentID == id {
			delete(s.games, gameID)
		}
	}
	rec := s.recordLocked(t)
	out := t.clone()
	metricActive.Set(float64(s.activeLocked()))
	s.mu.Unlock()

	log.Info().Str("tournament_id", id).Msg("tournament cancelled")
	s.record(ctx, rec)
	return out, nil
}

// MatchFor reports the tournament and match a game belongs to.
func (s *Scheduler) MatchFor(gameID string) (tournamentID, matchID string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, ok := s.games[gameID]
	return ref.tournamentID, ref.matchID, ok
}

func (s *Scheduler) Stop() {
	s.starter.Stop()
}

func (s *Scheduler) activeLocked() int {
	n := 0
	for _, t := range s.tournaments {
		if t.Status == StatusRegistration || t.Status == StatusInProgress {
			n++
		}
	}
	return n
}

func (s *Scheduler) recordLocked(t *Tournament) store.TournamentRecord {
	bracket, _ := json.Marshal(t.Bracket)
	rec := store.TournamentRecord{
		ID:         t.ID,
		Name:       t.Name,
		Status:     string(t.Status),
		ChampionID: t.ChampionID,
		CreatedAt:  t.CreatedAt,
		Bracket:    bracket,
	}
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		rec.CompletedAt = &ts
	}
	return rec
}

func (s *Scheduler) record(ctx context.Context, rec store.TournamentRecord) {
	if s.history == nil {
		return
	}
	if err := s.history.RecordTournament(context.WithoutCancel(ctx), rec); err != nil {
		log.Error().Err(err).Str("tournament_id", rec.ID).Msg("record tournament")
	}
}
