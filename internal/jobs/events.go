package jobs

import (
	"sync"
	"time"
)

// Event announces that a job reached Status.
type Event struct {
	JobID  string    `json:"jobId"`
	Method Method    `json:"method"`
	Status Status    `json:"status"`
	At     time.Time `json:"at"`
}

// Hub fans events out to subscribers synchronously, in subscription order.
// Subscribers must not block.
type Hub struct {
	mu   sync.RWMutex
	subs []func(Event)
}

func NewHub() *Hub {
	return &Hub{}
}

func (h *Hub) Subscribe(fn func(Event)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs = append(h.subs, fn)
}

func (h *Hub) Publish(e Event) {
	if h == nil {
		return
	}
	h.mu.RLock()
	subs := h.subs
	h.mu.RUnlock()
	for _, fn := range subs {
		fn(e)
	}
}
