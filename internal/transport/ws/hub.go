package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"domino-hall/internal/bus"
	"domino-hall/internal/game"
	"domino-hall/internal/game/viewmodel"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

var (
	metricConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "domino_ws_connections",
		Help: "Open game push connections.",
	})
	metricDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "domino_ws_dropped_total",
		Help: "Connections closed because the client fell behind.",
	})
)

// StateReader is the read side of the session registry.
type StateReader interface {
	PublicState(ctx context.Context, gameID string) (viewmodel.PublicStateView, error)
	PlayerState(ctx context.Context, gameID, playerID string) (viewmodel.PlayerStateView, error)
}

type Options struct {
	AllowAnyOrigin bool
	WriteTimeout   time.Duration
	PingInterval   time.Duration
}

// Hub pushes bus events for one game to each connected client. Seated
// players also get their private view after every state change.
type Hub struct {
	bus      bus.Bus
	games    StateReader
	upgrader websocket.Upgrader
	opts     Options

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn     *websocket.Conn
	send     chan []byte
	gameID   string
	playerID string
	once     sync.Once
	done     chan struct{}
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

func NewHub(b bus.Bus, games StateReader, opts Options) *Hub {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	h := &Hub{bus: b, games: games, opts: opts, clients: map[*client]struct{}{}}
	if opts.AllowAnyOrigin {
		h.upgrader.CheckOrigin = func(*http.Request) bool { return true }
	}
	return h
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "game_id")
	playerID := r.URL.Query().Get("player_id")

	hello, err := h.stateMessage(r.Context(), MessageHello, gameID, playerID)
	if err != nil {
		status := http.StatusInternalServerError
		switch game.KindOf(err) {
		case game.KindGameNotFound:
			status = http.StatusNotFound
		case game.KindPlayerNotInGame:
			status = http.StatusForbidden
		case game.KindUnavailable:
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": string(game.KindOf(err))})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := h.bus.Subscribe(ctx, bus.AllTopics...)
	if err != nil {
		cancel()
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Cancel()
		cancel()
		return
	}
	c := &client{conn: conn, send: make(chan []byte, 32), gameID: gameID, playerID: playerID, done: make(chan struct{})}
	h.add(c)
	log.Debug().Str("game_id", gameID).Str("player_id", playerID).Msg("push client connected")

	go h.writeLoop(c)
	go h.readLoop(c)
	h.enqueue(c, hello)

	h.forward(ctx, c, sub)
	sub.Cancel()
	cancel()
	h.remove(c)
}

// forward relays events for the client's game until the client goes away or
// the game is closed.
func (h *Hub) forward(ctx context.Context, c *client, sub bus.Subscription) {
	for {
		select {
		case <-c.done:
			return
		case ev, ok := <-sub.C():
			if !ok {
				c.close()
				return
			}
			if ev.GameID != c.gameID {
				continue
			}
			if !h.enqueue(c, Message{Type: MessageEvent, ProtocolVersion: ProtocolVersion, GameID: c.gameID, Event: &ev}) {
				return
			}
			if ev.Type == bus.EventGameClosed {
				c.close()
				return
			}
			if c.playerID == "" || ev.Topic == bus.TopicGameChat {
				continue
			}
			msg, err := h.stateMessage(ctx, MessagePlayerState, c.gameID, c.playerID)
			if err != nil {
				if game.KindOf(err) == game.KindPlayerNotInGame {
					c.playerID = ""
					continue
				}
				log.Warn().Err(err).Str("game_id", c.gameID).Msg("push player state")
				continue
			}
			if !h.enqueue(c, msg) {
				return
			}
		}
	}
}

func (h *Hub) stateMessage(ctx context.Context, kind, gameID, playerID string) (Message, error) {
	msg := Message{Type: kind, ProtocolVersion: ProtocolVersion, GameID: gameID}
	if playerID != "" {
		view, err := h.games.PlayerState(ctx, gameID, playerID)
		if err != nil {
			return Message{}, err
		}
		msg.State = view
		return msg, nil
	}
	view, err := h.games.PublicState(ctx, gameID)
	if err != nil {
		return Message{}, err
	}
	msg.State = view
	return msg, nil
}

// enqueue hands msg to the writer. A client whose buffer is full is dropped.
func (h *Hub) enqueue(c *client, msg Message) bool {
	b, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("game_id", c.gameID).Msg("encode push message")
		return true
	}
	select {
	case <-c.done:
		return false
	case c.send <- b:
		return true
	default:
		metricDropped.Inc()
		log.Warn().Str("game_id", c.gameID).Str("player_id", c.playerID).Msg("push client too slow, dropping")
		c.close()
		return false
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(h.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case <-c.done:
			h.flush(c)
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

// flush writes whatever is still buffered so a final game_closed frame is
// not lost to the close.
func (h *Hub) flush(c *client) {
	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

// readLoop discards client frames; it exists to process control frames and
// notice disconnects.
func (h *Hub) readLoop(c *client) {
	defer c.close()
	wait := 2 * h.opts.PingInterval
	_ = c.conn.SetReadDeadline(time.Now().Add(wait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wait))
	})
	c.conn.SetReadLimit(4096)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			var ce *websocket.CloseError
			if !errors.As(err, &ce) {
				log.Debug().Err(err).Str("game_id", c.gameID).Msg("push client read ended")
			}
			return
		}
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	metricConnections.Set(float64(n))
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	metricConnections.Set(float64(n))
}

// Clients reports the number of open connections.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.close()
	}
}
