package bus

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Redis carries events over Redis pub/sub so every server process sees them.
// Channel names are <prefix><topic>.
type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "domino:"
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) channel(t Topic) string {
	return r.prefix + string(t)
}

func (r *Redis) Publish(ctx context.Context, topic Topic, ev Event) error {
	ev.Topic = topic
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel(topic), b).Err()
}

func (r *Redis) Subscribe(ctx context.Context, topics ...Topic) (Subscription, error) {
	if len(topics) == 0 {
		topics = AllTopics
	}
	channels := make([]string, 0, len(topics))
	for _, t := range topics {
		channels = append(channels, r.channel(t))
	}
	ps := r.client.Subscribe(ctx, channels...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &redisSub{
		ps:     ps,
		cancel: cancel,
		ch:     make(chan Event, subscriptionBuffer),
		done:   make(chan struct{}),
	}
	go sub.loop(ctx, r.prefix)
	return sub, nil
}

func (r *Redis) Close() error {
	return nil
}

type redisSub struct {
	ps     *redis.PubSub
	cancel context.CancelFunc
	ch     chan Event
	done   chan struct{}
	once   sync.Once
}

func (s *redisSub) C() <-chan Event { return s.ch }

func (s *redisSub) Cancel() {
	s.once.Do(func() {
		s.cancel()
		_ = s.ps.Close()
	})
	<-s.done
}

func (s *redisSub) loop(ctx context.Context, prefix string) {
	defer close(s.done)
	defer close(s.ch)
	msgs := s.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			s.once.Do(func() { _ = s.ps.Close() })
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Warn().Err(err).Str("channel", msg.Channel).Msg("drop malformed bus event")
				continue
			}
			if ev.Topic == "" {
				ev.Topic = Topic(strings.TrimPrefix(msg.Channel, prefix))
			}
			select {
			case s.ch <- ev:
			case <-ctx.Done():
				s.once.Do(func() { _ = s.ps.Close() })
				return
			}
		}
	}
}
