package event

import (
	"sync"

	"github.com/rs/zerolog/log"

	"papertrade/internal/domain"
)

type Type string

const (
	PositionAdded    Type = "positionAdded"
	PositionClosed   Type = "positionClosed"
	PositionUpdated  Type = "positionUpdated"
	PortfolioUpdated Type = "portfolioUpdated"
)

// Event is the payload delivered to subscribers. Position and Transaction are
// set for lifecycle events, Snapshot for portfolio updates.
type Event struct {
	Type        Type
	Position    *domain.Position
	Transaction *domain.Transaction
	Snapshot    *domain.Snapshot
}

type Handler func(Event)

type subscription struct {
	id      int
	handler Handler
}

// Bus is a synchronous publish/subscribe dispatcher. Handlers run in
// registration order within the publishing goroutine; each invocation is
// recovered individually so one panicking subscriber cannot stop the rest.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[Type][]subscription
}

func NewBus() *Bus {
	return &Bus{subs: make(map[Type][]subscription)}
}

// Subscribe registers handler for events of type t and returns a function
// that removes the subscription.
func (b *Bus) Subscribe(t Type, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs[t] = append(b.subs[t], subscription{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[t]
		for i, s := range subs {
			if s.id == id {
				b.subs[t] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers ev to all subscribers of its type, in registration order.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs[ev.Type]))
	copy(subs, b.subs[ev.Type])
	b.mu.RUnlock()

	for _, s := range subs {
		invoke(s.handler, ev)
	}
}

func invoke(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("event", string(ev.Type)).Any("panic", r).Msg("event handler panicked")
		}
	}()
	h(ev)
}
