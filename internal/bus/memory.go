package bus

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

const subscriptionBuffer = 256

// Memory delivers events within one process. Slow subscribers lose events
// rather than blocking publishers.
type Memory struct {
	mu       sync.Mutex
	watchers map[*memorySub]struct{}
	closed   bool
}

func NewMemory() *Memory {
	return &Memory{watchers: map[*memorySub]struct{}{}}
}

type memorySub struct {
	bus    *Memory
	topics map[Topic]struct{}
	ch     chan Event
	once   sync.Once
	stop   chan struct{}
}

func (s *memorySub) C() <-chan Event { return s.ch }

func (s *memorySub) Cancel() {
	s.halt()
	s.bus.unsubscribe(s)
}

func (s *memorySub) halt() {
	s.once.Do(func() { close(s.stop) })
}

func (m *Memory) Publish(ctx context.Context, topic Topic, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ev.Topic = topic
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for sub := range m.watchers {
		if _, ok := sub.topics[topic]; !ok {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			metricDropped.WithLabelValues(string(topic)).Inc()
			log.Warn().Str("topic", string(topic)).Str("game_id", ev.GameID).Str("event", ev.Type).Msg("subscriber full, event dropped")
		}
	}
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, topics ...Topic) (Subscription, error) {
	if len(topics) == 0 {
		topics = AllTopics
	}
	sub := &memorySub{
		bus:    m,
		topics: map[Topic]struct{}{},
		ch:     make(chan Event, subscriptionBuffer),
		stop:   make(chan struct{}),
	}
	for _, t := range topics {
		sub.topics[t] = struct{}{}
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	m.watchers[sub] = struct{}{}
	m.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			sub.Cancel()
		case <-sub.stop:
		}
	}()
	return sub, nil
}

func (m *Memory) unsubscribe(sub *memorySub) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.watchers[sub]; ok {
		delete(m.watchers, sub)
		close(sub.ch)
	}
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	for sub := range m.watchers {
		sub.halt()
		close(sub.ch)
		delete(m.watchers, sub)
	}
	return nil
}
