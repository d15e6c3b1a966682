package api

import (
	"sync"
)

// Event is a plan lifecycle event streamed to SSE and WebSocket clients.
type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// EventBroker fans plan events out to subscribers. The in-memory Broker
// serves a single process; RedisBroker spans replicas.
type EventBroker interface {
	Subscribe(planID string) chan Event
	Unsubscribe(planID string, ch chan Event)
	Publish(planID string, evt Event)
}

type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{} // planId -> set of channels
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan Event]struct{}{}}
}

func (b *Broker) Subscribe(planID string) chan Event {
	ch := make(chan Event, 8)
	b.mu.Lock()
	if b.subs[planID] == nil {
		b.subs[planID] = map[chan Event]struct{}{}
	}
	b.subs[planID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(planID string, ch chan Event) {
	b.mu.Lock()
	if m := b.subs[planID]; m != nil {
		delete(m, ch)
		if len(m) == 0 {
			delete(b.subs, planID)
		}
	}
	b.mu.Unlock()
	close(ch)
}

func (b *Broker) Publish(planID string, evt Event) {
	b.mu.Lock()
	m := b.subs[planID]
	for ch := range m {
		select {
		case ch <- evt:
		default: // slow subscriber, drop rather than block the planner
		}
	}
	b.mu.Unlock()
}
