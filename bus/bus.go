// Package bus is the in-process publish/subscribe dispatcher that decouples the
// feed and the trading engine from whatever consumes their events.
//
// Delivery is synchronous: Publish invokes every live handler for the event
// kind, in subscription order, before returning. A handler that panics is
// recovered and logged; later handlers still run and the panic never unwinds
// into the publisher.
package bus

import (
	"sync"

	"go.uber.org/zap"
)

// Kind identifies an event stream.
type Kind string

const (
	// TickUpdated carries a market.Tick payload.
	TickUpdated Kind = "tick_updated"
	// OrderPlaced carries a sim.Position payload (copy of the new position).
	OrderPlaced Kind = "order_placed"
	// OrderModified carries a sim.Position payload after SL/TP changes.
	OrderModified Kind = "order_modified"
	// OrderClosed carries a sim.ClosedOrder payload.
	OrderClosed Kind = "order_closed"
	// AccountUpdated carries an account.Snapshot payload.
	AccountUpdated Kind = "account_updated"
)

// Handler receives every published event of the kind it subscribed to.
type Handler func(kind Kind, payload any)

// Subscription identifies one live subscription for Unsubscribe.
type Subscription struct {
	kind Kind
	id   uint64
}

type entry struct {
	id uint64
	h  Handler
}

// Bus is safe for concurrent use. The zero value is not usable; call New.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[Kind][]entry
	log    *zap.Logger
}

// New returns an empty bus. A nil logger defaults to zap.NewNop.
func New(log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{
		subs: make(map[Kind][]entry),
		log:  log,
	}
}

// Subscribe registers a handler for a kind. Handlers for the same kind run in
// the order they subscribed.
func (b *Bus) Subscribe(kind Kind, h Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.subs[kind] = append(b.subs[kind], entry{id: b.nextID, h: h})
	return Subscription{kind: kind, id: b.nextID}
}

// Unsubscribe removes a subscription. Unknown or already-removed handles are
// ignored.
func (b *Bus) Unsubscribe(s Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := b.subs[s.kind]
	for i, e := range entries {
		if e.id == s.id {
			b.subs[s.kind] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
}

// Publish delivers payload to every handler subscribed to kind. Handlers may
// publish further events or subscribe during delivery; they see the
// subscription set as it was when Publish started.
func (b *Bus) Publish(kind Kind, payload any) {
	b.mu.RLock()
	entries := b.subs[kind]
	snapshot := make([]entry, len(entries))
	copy(snapshot, entries)
	b.mu.RUnlock()

	for _, e := range snapshot {
		b.dispatch(kind, payload, e)
	}
}

func (b *Bus) dispatch(kind Kind, payload any, e entry) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked",
				zap.String("kind", string(kind)),
				zap.Uint64("subscription", e.id),
				zap.Any("panic", r),
			)
		}
	}()
	e.h(kind, payload)
}
