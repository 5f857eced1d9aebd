// Package events provides the in-process publish/subscribe bus that
// decouples the ledger from the recompute work that follows each mutation
// (budget checks, report refresh, dashboard stats).
package events

import (
	"log/slog"
	"sync"
	"time"
)

// Name identifies an event kind. The names double as HX-Trigger keys on
// HTTP responses so the frontend sees the same vocabulary.
type Name string

const (
	TransactionCreated Name = "transaction:created"
	TransactionUpdated Name = "transaction:updated"
	TransactionDeleted Name = "transaction:deleted"
	BudgetUpdated      Name = "budget:updated"
	CurrencyChanged    Name = "currency:changed"
	RatesRefreshed     Name = "rates:refreshed"
)

// Event is the payload delivered to subscribers. Fields that do not apply
// to a given event kind are left zero.
type Event struct {
	Name        Name
	UserID      string
	Category    string
	TxType      string
	AmountCents int64
	Currency    string
	At          time.Time
}

// Handler receives published events. Handlers run synchronously on the
// publisher's goroutine and must not block.
type Handler func(Event)

// Bus dispatches events to subscribers. Delivery is synchronous and in
// subscription order, which is what gives mutations their persist-then-
// recompute ordering guarantee.
type Bus struct {
	mu   sync.RWMutex
	subs map[Name][]Handler
	all  []Handler
}

func NewBus() *Bus {
	return &Bus{subs: make(map[Name][]Handler)}
}

// Subscribe registers a handler for one event name.
func (b *Bus) Subscribe(name Name, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[name] = append(b.subs[name], h)
}

// SubscribeAll registers a handler for every event. All-subscribers run
// after the name-specific ones.
func (b *Bus) SubscribeAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, h)
}

// Publish delivers the event to subscribers. A panicking handler is
// recovered and logged so one subscriber cannot break the chain.
func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[ev.Name])+len(b.all))
	handlers = append(handlers, b.subs[ev.Name]...)
	handlers = append(handlers, b.all...)
	b.mu.RUnlock()

	for _, h := range handlers {
		b.dispatch(ev, h)
	}
}

func (b *Bus) dispatch(ev Event, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event handler panicked", "event", string(ev.Name), "panic", r)
		}
	}()
	h(ev)
}
