package service

import (
	"sync"

	"github.com/hperssn/focussync/internal/wire"
)

const subscriberBuffer = 16

// Hub fans session events out to the subscribers of each account.
// Publishing never blocks; a subscriber that falls behind loses events.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan wire.Event
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int]chan wire.Event)}
}

// Subscribe returns the event channel for accountID and a func that
// unsubscribes and closes it.
func (h *Hub) Subscribe(accountID string) (<-chan wire.Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	ch := make(chan wire.Event, subscriberBuffer)
	if h.subs[accountID] == nil {
		h.subs[accountID] = make(map[int]chan wire.Event)
	}
	h.subs[accountID][id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[accountID], id)
			if len(h.subs[accountID]) == 0 {
				delete(h.subs, accountID)
			}
			close(ch)
		})
	}
}

func (h *Hub) Publish(accountID string, ev wire.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs[accountID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers reports how many streams are open for accountID.
func (h *Hub) Subscribers(accountID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[accountID])
}
