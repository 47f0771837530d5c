package bus

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

type Topic string

const (
	TopicGameEvents Topic = "game_events"
	TopicGameMoves  Topic = "game_moves"
	TopicGameChat   Topic = "game_chat"
)

// AllTopics lists every topic the registry publishes on.
var AllTopics = []Topic{TopicGameEvents, TopicGameMoves, TopicGameChat}

const (
	EventGameCreated  = "game_created"
	EventPlayerJoined = "player_joined"
	EventPlayerLeft   = "player_left"
	EventPlayerReady  = "player_ready"
	EventGameStarted  = "game_started"
	EventMoveMade     = "move_made"
	EventTileDrawn    = "tile_drawn"
	EventTurnPassed   = "turn_passed"
	EventChatMessage  = "chat_message"
	EventGameEnded    = "game_ended"
	EventGameClosed   = "game_closed"
)

var ErrClosed = errors.New("bus closed")

// Event is what travels on the bus. State holds the public projection of the
// game after the change and never contains hands.
type Event struct {
	Topic    Topic           `json:"topic"`
	Type     string          `json:"type"`
	GameID   string          `json:"game_id"`
	Version  int64           `json:"version"`
	Origin   string          `json:"origin"`
	PlayerID string          `json:"player_id,omitempty"`
	At       time.Time       `json:"at"`
	State    json.RawMessage `json:"state,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

type Subscription interface {
	C() <-chan Event
	Cancel()
}

type Bus interface {
	Publish(ctx context.Context, topic Topic, ev Event) error
	// Subscribe starts delivery before it returns. The subscription ends when
	// ctx is done or Cancel is called, and its channel is then closed.
	Subscribe(ctx context.Context, topics ...Topic) (Subscription, error)
	Close() error
}
