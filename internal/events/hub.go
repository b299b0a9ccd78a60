package events

import (
	"context"
	"sync"
)

// Hub delivers events to in-process subscribers of a single user.
// Slow subscribers miss events rather than block publishers; a subscriber only
// needs to know that something changed.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe returns a channel of the user's events, closed when ctx ends.
func (h *Hub) Subscribe(ctx context.Context, userID string) <-chan Event {
	ch := make(chan Event, 1)

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[chan Event]struct{})
	}
	h.subs[userID][ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs[userID], ch)
		if len(h.subs[userID]) == 0 {
			delete(h.subs, userID)
		}
		h.mu.Unlock()
		close(ch)
	}()

	return ch
}

func (h *Hub) TaskChanged(_ context.Context, e Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[e.UserID] {
		select {
		case ch <- e:
		default:
		}
	}
	return nil
}

var _ Publisher = (*Hub)(nil)
