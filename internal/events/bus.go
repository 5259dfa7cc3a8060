package events

import (
	"sync"

	"orderblock-trading-bot/internal/strategy"
)

// Subscriber handles published lifecycle events
type Subscriber func(strategy.Event)

// Bus fans lifecycle events out to subscribers. Delivery is asynchronous so
// a slow subscriber never stalls the candle loop.
type Bus struct {
	mu      sync.RWMutex
	subs    map[strategy.EventType][]Subscriber
	allSubs []Subscriber
}

// NewBus creates an empty event bus
func NewBus() *Bus {
	return &Bus{
		subs: make(map[strategy.EventType][]Subscriber),
	}
}

// Subscribe registers a subscriber for one event type
func (b *Bus) Subscribe(t strategy.EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[t] = append(b.subs[t], sub)
}

// SubscribeAll registers a subscriber for every event type
func (b *Bus) SubscribeAll(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allSubs = append(b.allSubs, sub)
}

// Publish delivers the event to matching subscribers
func (b *Bus) Publish(e strategy.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs[e.Type] {
		go sub(e)
	}
	for _, sub := range b.allSubs {
		go sub(e)
	}
}
