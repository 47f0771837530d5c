package game

import (
	"errors"
	"strings"
)

// Kind is a machine-readable error code shared by the registry and schedulers.
type Kind string

const (
	KindGameNotFound          Kind = "game_not_found"
	KindGameFull              Kind = "game_full"
	KindAlreadyStarted        Kind = "already_started"
	KindNotEnoughPlayers      Kind = "not_enough_players"
	KindDuplicatePlayer       Kind = "duplicate_player"
	KindPlayerNotInGame       Kind = "player_not_in_game"
	KindNotYourTurn           Kind = "not_your_turn"
	KindTileNotInHand         Kind = "tile_not_in_hand"
	KindInvalidMove           Kind = "invalid_move"
	KindWrongPassword         Kind = "wrong_password"
	KindInvalidConfig         Kind = "invalid_config"
	KindAlreadyQueued         Kind = "already_queued"
	KindRegistrationClosed    Kind = "registration_closed"
	KindTournamentFull        Kind = "tournament_full"
	KindTournamentNotFound    Kind = "tournament_not_found"
	KindNotEnoughParticipants Kind = "not_enough_participants"

	// KindUnavailable marks snapshot store or bus failures. Callers may retry.
	KindUnavailable Kind = "unavailable"
)

// Error carries the kind plus enough context for a client to render a
// specific message.
type Error struct {
	Kind   Kind
	GameID string
	Field  string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.GameID != "" {
		b.WriteString(" game=")
		b.WriteString(e.GameID)
	}
	if e.Field != "" {
		b.WriteString(" field=")
		b.WriteString(e.Field)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on kind only, so errors.Is(err, ErrNotYourTurn) holds for any
// game id or field.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrGameNotFound          = &Error{Kind: KindGameNotFound}
	ErrGameFull              = &Error{Kind: KindGameFull}
	ErrAlreadyStarted        = &Error{Kind: KindAlreadyStarted}
	ErrNotEnoughPlayers      = &Error{Kind: KindNotEnoughPlayers}
	ErrDuplicatePlayer       = &Error{Kind: KindDuplicatePlayer}
	ErrPlayerNotInGame       = &Error{Kind: KindPlayerNotInGame}
	ErrNotYourTurn           = &Error{Kind: KindNotYourTurn}
	ErrTileNotInHand         = &Error{Kind: KindTileNotInHand}
	ErrInvalidMove           = &Error{Kind: KindInvalidMove}
	ErrWrongPassword         = &Error{Kind: KindWrongPassword}
	ErrInvalidConfig         = &Error{Kind: KindInvalidConfig}
	ErrAlreadyQueued         = &Error{Kind: KindAlreadyQueued}
	ErrRegistrationClosed    = &Error{Kind: KindRegistrationClosed}
	ErrTournamentFull        = &Error{Kind: KindTournamentFull}
	ErrTournamentNotFound    = &Error{Kind: KindTournamentNotFound}
	ErrNotEnoughParticipants = &Error{Kind: KindNotEnoughParticipants}
	ErrUnavailable           = &Error{Kind: KindUnavailable}
)

func newError(kind Kind, gameID, field, detail string) *Error {
	return &Error{Kind: kind, GameID: gameID, Field: field, Detail: detail}
}

// NewError builds a kinded error for packages layered above the game.
func NewError(kind Kind, gameID, field, detail string) *Error {
	return newError(kind, gameID, field, detail)
}

// Unavailable wraps an infrastructure failure.
func Unavailable(gameID, field string, err error) *Error {
	return &Error{Kind: KindUnavailable, GameID: gameID, Field: field, Err: err}
}

// KindOf returns the kind of err, or "" for errors outside the taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsRetryable(err error) bool {
	return KindOf(err) == KindUnavailable
}
