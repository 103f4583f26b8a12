package market

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrNoPrice is returned when a symbol has no quoted price yet.
var ErrNoPrice = errors.New("no price for symbol")

// Tick is one immutable price observation for a symbol.
type Tick struct {
	Symbol string
	Bid    float64
	Ask    float64
	Time   time.Time
}

func (t Tick) Mid() float64 {
	return (t.Bid + t.Ask) / 2
}

func (t Tick) Spread() float64 {
	return t.Ask - t.Bid
}

// TickStore holds the latest tick per symbol. The feed writes it, the trading
// engine reads it when filling orders.
type TickStore struct {
	mu    sync.RWMutex
	ticks map[string]Tick
}

func NewTickStore() *TickStore {
	return &TickStore{ticks: make(map[string]Tick)}
}

func (ts *TickStore) Set(t Tick) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.ticks[t.Symbol] = t
}

func (ts *TickStore) Get(symbol string) (Tick, error) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	t, ok := ts.ticks[symbol]
	if !ok {
		return Tick{}, fmt.Errorf("%w: %s", ErrNoPrice, symbol)
	}
	return t, nil
}

// Symbols returns the symbols with at least one recorded tick.
func (ts *TickStore) Symbols() []string {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	out := make([]string, 0, len(ts.ticks))
	for s := range ts.ticks {
		out = append(out, s)
	}
	return out
}
