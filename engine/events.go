package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"broker-ledger/models"
)

// EventType identifies a domain event.
type EventType string

const (
	EventOrderCreated   EventType = "order.created"
	EventOrderExecuted  EventType = "order.executed"
	EventOrderCancelled EventType = "order.cancelled"
)

// Event is a notification published after the transaction that produced it
// has committed. Subscribers never observe uncommitted state.
type Event struct {
	ID         uuid.UUID    `json:"id"`
	Type       EventType    `json:"type"`
	Order      models.Order `json:"order"`
	Reason     string       `json:"reason,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// Publisher fans events out to registered subscribers. Delivery is
// synchronous and in registration order.
type Publisher struct {
	mu   sync.RWMutex
	subs []func(Event)
}

// NewPublisher creates a Publisher with no subscribers.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Subscribe registers a subscriber for all subsequent events.
func (p *Publisher) Subscribe(fn func(Event)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subs = append(p.subs, fn)
}

func (p *Publisher) publish(e Event) {
	p.mu.RLock()
	subs := make([]func(Event), len(p.subs))
	copy(subs, p.subs)
	p.mu.RUnlock()

	for _, fn := range subs {
		fn(e)
	}
}
