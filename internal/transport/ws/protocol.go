package ws

import "domino-hall/internal/bus"

const ProtocolVersion = "1.0"

const (
	MessageHello       = "hello"
	MessageEvent       = "event"
	MessagePlayerState = "player_state"
	MessageError       = "error"
)

// Message is every frame the server writes. State carries a public view on
// hello for spectators and a private view on hello/player_state for seated
// players.
type Message struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	GameID          string     `json:"game_id"`
	Event           *bus.Event `json:"event,omitempty"`
	State           any        `json:"state,omitempty"`
	Error           string     `json:"error,omitempty"`
}
