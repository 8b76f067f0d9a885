// Package events fans lifecycle events out to live operator subscribers.
package events

import (
	"context"
	"sync"

	"traffic-light-bot/internal/domain"
)

const (
	subscriberBuffer = 32
	defaultBacklog   = 20
)

// Hub keeps a short backlog and broadcasts every event to its subscribers.
// It implements app.Notifier.
type Hub struct {
	mu          sync.RWMutex
	backlog     []domain.Event
	limit       int
	subscribers map[chan domain.Event]struct{}
}

func NewHub() *Hub {
	return NewHubWithBacklog(defaultBacklog)
}

// NewHubWithBacklog sets how many recent events a new subscriber receives first.
func NewHubWithBacklog(limit int) *Hub {
	if limit < 0 {
		limit = 0
	}
	if limit > subscriberBuffer {
		limit = subscriberBuffer
	}
	return &Hub{
		limit:       limit,
		subscribers: make(map[chan domain.Event]struct{}),
	}
}

// Notify never blocks on slow subscribers.
func (h *Hub) Notify(_ context.Context, ev domain.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.limit > 0 {
		h.backlog = append(h.backlog, ev)
		if len(h.backlog) > h.limit {
			h.backlog = h.backlog[len(h.backlog)-h.limit:]
		}
	}
	for ch := range h.subscribers {
		select {
		case ch <- ev:
		default:
			// drop the oldest pending event for a slow subscriber
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
	return nil
}

// Subscribe returns a channel that first replays the backlog and then receives new events.
// The caller must invoke the returned cancel function to avoid leaks.
func (h *Hub) Subscribe() (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, subscriberBuffer)

	h.mu.Lock()
	for _, ev := range h.backlog {
		ch <- ev
	}
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Subscribers is the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
