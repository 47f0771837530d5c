package bus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func busImpls(t *testing.T) map[string]Bus {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return map[string]Bus{
		"memory": NewMemory(),
		"redis":  NewRedis(client, "test:"),
	}
}

func recv(t *testing.T, sub Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.C():
		if !ok {
			t.Fatal("subscription closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestPublishDeliversOnlySubscribedTopics(t *testing.T) {
	for name, b := range busImpls(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			sub, err := b.Subscribe(ctx, TopicGameMoves)
			if err != nil {
				t.Fatalf("subscribe: %v", err)
			}
			defer sub.Cancel()

			if err := b.Publish(ctx, TopicGameChat, Event{Type: EventChatMessage, GameID: "g1"}); err != nil {
				t.Fatalf("publish chat: %v", err)
			}
			state := json.RawMessage(`{"game_id":"g1"}`)
			if err := b.Publish(ctx, TopicGameMoves, Event{Type: EventMoveMade, GameID: "g1", Version: 4, Origin: "n1", State: state}); err != nil {
				t.Fatalf("publish move: %v", err)
			}
			ev := recv(t, sub)
			if ev.Type != EventMoveMade || ev.Topic != TopicGameMoves || ev.Version != 4 || ev.Origin != "n1" {
				t.Fatalf("unexpected event %+v", ev)
			}
			if string(ev.State) != `{"game_id":"g1"}` {
				t.Fatalf("unexpected state %s", ev.State)
			}
		})
	}
}

func TestCancelClosesChannel(t *testing.T) {
	for name, b := range busImpls(t) {
		t.Run(name, func(t *testing.T) {
			sub, err := b.Subscribe(context.Background())
			if err != nil {
				t.Fatalf("subscribe: %v", err)
			}
			sub.Cancel()
			sub.Cancel()
			select {
			case _, ok := <-sub.C():
				if ok {
					t.Fatal("expected closed channel")
				}
			case <-time.After(2 * time.Second):
				t.Fatal("channel not closed after cancel")
			}
		})
	}
}

func TestContextEndsSubscription(t *testing.T) {
	for name, b := range busImpls(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			sub, err := b.Subscribe(ctx, TopicGameEvents)
			if err != nil {
				t.Fatalf("subscribe: %v", err)
			}
			cancel()
			deadline := time.After(2 * time.Second)
			for {
				select {
				case _, ok := <-sub.C():
					if !ok {
						return
					}
				case <-deadline:
					t.Fatal("subscription survived its context")
				}
			}
		})
	}
}

func TestMemoryCloseRejectsPublish(t *testing.T) {
	b := NewMemory()
	sub, _ := b.Subscribe(context.Background())
	_ = b.Close()
	if _, ok := <-sub.C(); ok {
		t.Fatal("expected subscription closed with the bus")
	}
	sub.Cancel()
	if err := b.Publish(context.Background(), TopicGameEvents, Event{}); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestMemoryFullSubscriberDoesNotBlockPublish(t *testing.T) {
	b := NewMemory()
	defer b.Close()
	ctx := context.Background()
	sub, _ := b.Subscribe(ctx, TopicGameMoves)
	defer sub.Cancel()

	for i := 0; i < subscriptionBuffer+5; i++ {
		if err := b.Publish(ctx, TopicGameMoves, Event{Type: EventMoveMade, GameID: "g1", Version: int64(i + 1)}); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	if n := len(sub.C()); n != subscriptionBuffer {
		t.Fatalf("expected %d buffered events, got %d", subscriptionBuffer, n)
	}
	if ev := recv(t, sub); ev.Version != 1 {
		t.Fatalf("expected oldest event first, got version %d", ev.Version)
	}
}
