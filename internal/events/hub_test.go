package events

import (
	"context"
	"testing"
	"time"

	"traffic-light-bot/internal/domain"
)

func event(id int64, typ domain.EventType) domain.Event {
	return domain.Event{Type: typ, User: domain.UserProfile{ID: id}, At: time.Unix(id, 0)}
}

func TestHubReplaysBacklogThenBroadcasts(t *testing.T) {
	ctx := context.Background()
	hub := NewHubWithBacklog(2)
	_ = hub.Notify(ctx, event(1, domain.EventNewUser))
	_ = hub.Notify(ctx, event(2, domain.EventTestStarted))
	_ = hub.Notify(ctx, event(3, domain.EventTestFinished))

	ch, cancel := hub.Subscribe()
	defer cancel()

	for _, want := range []int64{2, 3} {
		select {
		case ev := <-ch:
			if ev.User.ID != want {
				t.Fatalf("expected backlog event %d, got %d", want, ev.User.ID)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for backlog")
		}
	}

	_ = hub.Notify(ctx, event(4, domain.EventNewUser))
	select {
	case ev := <-ch:
		if ev.User.ID != 4 {
			t.Fatalf("expected live event 4, got %d", ev.User.ID)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for live event")
	}
}

func TestHubDropsOldestForSlowSubscriber(t *testing.T) {
	ctx := context.Background()
	hub := NewHubWithBacklog(0)
	ch, cancel := hub.Subscribe()
	defer cancel()

	total := subscriberBuffer + 5
	for i := 1; i <= total; i++ {
		if err := hub.Notify(ctx, event(int64(i), domain.EventTestStarted)); err != nil {
			t.Fatalf("notify: %v", err)
		}
	}

	if len(ch) != subscriberBuffer {
		t.Fatalf("expected full buffer, got %d", len(ch))
	}
	first := <-ch
	if first.User.ID != int64(total-subscriberBuffer+1) {
		t.Fatalf("expected oldest events dropped, first is %d", first.User.ID)
	}
}

func TestHubCancelClosesChannel(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe()
	if hub.Subscribers() != 1 {
		t.Fatalf("expected one subscriber")
	}
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel")
	}
	if hub.Subscribers() != 0 {
		t.Fatalf("expected no subscribers after cancel")
	}
	if err := hub.Notify(context.Background(), event(1, domain.EventNewUser)); err != nil {
		t.Fatalf("notify after cancel: %v", err)
	}
}
