package event

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

type InMemoryBus struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event
	buffer      int
}

func NewBus() *InMemoryBus {
	return NewBusWithBuffer(100)
}

func NewBusWithBuffer(buffer int) *InMemoryBus {
	return &InMemoryBus{
		subscribers: make(map[string]chan Event),
		buffer:      buffer,
	}
}

func (b *InMemoryBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subscribers {
		// Publishers sit on request paths and must never block on a slow consumer.
		select {
		case ch <- e:
		default:
			slog.Warn("event dropped, subscriber buffer full", "subscriber", id, "type", e.Type)
		}
	}
}

func (b *InMemoryBus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	ch := make(chan Event, b.buffer)
	b.subscribers[id] = ch

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if ch, exists := b.subscribers[id]; exists {
			close(ch)
			delete(b.subscribers, id)
		}
	}

	return ch, unsubscribe
}
