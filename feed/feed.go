// Package feed simulates a live market: one bounded random-walk price
// generator per configured symbol, driven on a fixed cadence. Every generated
// tick is stored in the shared tick store first and then published as a
// TickUpdated event.
//
// The cadence loop is the engine's only source of asynchronous activity. Tests
// drive the feed deterministically by calling Step instead of Run.
package feed

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fxlab/simtrader/bus"
	"github.com/fxlab/simtrader/market"
)

// ErrInvalidSymbolConfig rejects a symbol with missing or non-positive feed
// parameters at construction time. Nothing is ever silently defaulted to zero.
var ErrInvalidSymbolConfig = errors.New("invalid symbol configuration")

// DefaultCadence is the tick interval used when none is configured.
const DefaultCadence = time.Second

// SymbolConfig holds the per-symbol generator parameters.
type SymbolConfig struct {
	Instrument market.Instrument
	Price      float64 // starting mid price
	Spread     float64 // fixed ask-bid distance, in price units
	Step       float64 // random-walk step magnitude (one standard deviation), in price units
}

func (c SymbolConfig) validate() error {
	switch {
	case c.Instrument.Name == "":
		return fmt.Errorf("%w: empty symbol name", ErrInvalidSymbolConfig)
	case c.Instrument.PipSize <= 0:
		return fmt.Errorf("%w: %s: pip size must be positive", ErrInvalidSymbolConfig, c.Instrument.Name)
	case c.Instrument.ContractSize <= 0:
		return fmt.Errorf("%w: %s: contract size must be positive", ErrInvalidSymbolConfig, c.Instrument.Name)
	case c.Price <= 0:
		return fmt.Errorf("%w: %s: price must be positive", ErrInvalidSymbolConfig, c.Instrument.Name)
	case c.Spread <= 0:
		return fmt.Errorf("%w: %s: spread must be positive", ErrInvalidSymbolConfig, c.Instrument.Name)
	case c.Step <= 0:
		return fmt.Errorf("%w: %s: step must be positive", ErrInvalidSymbolConfig, c.Instrument.Name)
	case c.Price <= c.Spread:
		return fmt.Errorf("%w: %s: price must exceed spread", ErrInvalidSymbolConfig, c.Instrument.Name)
	}
	return nil
}

// generator is the random-walk state of one symbol.
type generator struct {
	cfg SymbolConfig
	mid float64
	rng *rand.Rand
}

// next advances the walk one step. The mid is clamped so that bid stays
// strictly positive and ask >= bid always holds.
func (g *generator) next(now time.Time) (market.Tick, market.Trend) {
	prev := g.mid
	mid := prev + g.rng.NormFloat64()*g.cfg.Step
	if mid < g.cfg.Spread {
		mid = g.cfg.Spread
	}
	g.mid = mid

	trend := market.TrendFlat
	switch {
	case mid > prev:
		trend = market.TrendUp
	case mid < prev:
		trend = market.TrendDown
	}

	half := g.cfg.Spread / 2
	return market.Tick{
		Symbol: g.cfg.Instrument.Name,
		Bid:    mid - half,
		Ask:    mid + half,
		Time:   now,
	}, trend
}

// Option configures a Manager.
type Option func(*Manager)

// WithCadence sets the tick interval for Run. Non-positive values keep the
// default.
func WithCadence(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithSeed makes the price walk reproducible.
func WithSeed(seed int64) Option {
	return func(m *Manager) { m.seed = seed }
}

func WithLogger(log *zap.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// Manager owns the generators and the cadence loop.
type Manager struct {
	interval time.Duration
	seed     int64
	store    *market.TickStore
	bus      *bus.Bus
	log      *zap.Logger

	mu      sync.Mutex
	order   []string // deterministic symbol iteration order
	gens    map[string]*generator
	symbols map[string]market.Symbol

	stop     chan struct{}
	stopOnce sync.Once
}

// NewManager validates every symbol configuration up front and returns
// ErrInvalidSymbolConfig on the first bad one.
func NewManager(store *market.TickStore, b *bus.Bus, symbols []SymbolConfig, opts ...Option) (*Manager, error) {
	m := &Manager{
		interval: DefaultCadence,
		seed:     time.Now().UnixNano(),
		store:    store,
		bus:      b,
		log:      zap.NewNop(),
		gens:     make(map[string]*generator),
		symbols:  make(map[string]market.Symbol),
		stop:     make(chan struct{}),
	}
	for _, o := range opts {
		o(m)
	}

	if len(symbols) == 0 {
		return nil, fmt.Errorf("%w: no symbols configured", ErrInvalidSymbolConfig)
	}

	for i, cfg := range symbols {
		if err := cfg.validate(); err != nil {
			return nil, err
		}
		name := cfg.Instrument.Name
		if _, dup := m.gens[name]; dup {
			return nil, fmt.Errorf("%w: duplicate symbol %s", ErrInvalidSymbolConfig, name)
		}
		m.gens[name] = &generator{
			cfg: cfg,
			mid: cfg.Price,
			rng: rand.New(rand.NewSource(m.seed + int64(i))),
		}
		m.order = append(m.order, name)
		m.symbols[name] = market.Symbol{
			Instrument: cfg.Instrument,
			Bid:        cfg.Price - cfg.Spread/2,
			Ask:        cfg.Price + cfg.Spread/2,
		}
	}
	sort.Strings(m.order)

	return m, nil
}

// Step runs one full tick round for every symbol: advance the walk, store the
// tick, update the symbol's trend, publish TickUpdated. Safe to call from
// tests instead of Run.
func (m *Manager) Step(now time.Time) {
	m.mu.Lock()
	ticks := make([]market.Tick, 0, len(m.order))
	for _, name := range m.order {
		g := m.gens[name]
		tick, trend := g.next(now)

		m.store.Set(tick)
		m.symbols[name] = market.Symbol{
			Instrument: g.cfg.Instrument,
			Bid:        tick.Bid,
			Ask:        tick.Ask,
			Trend:      trend,
			Time:       now,
		}
		ticks = append(ticks, tick)
	}
	m.mu.Unlock()

	for _, t := range ticks {
		m.bus.Publish(bus.TickUpdated, t)
	}
}

// Run drives Step on the configured cadence until the context is cancelled or
// Stop is called. A tick round in flight always completes; shutdown never
// leaves a partially-applied tick.
func (m *Manager) Run(ctx context.Context) {
	m.log.Info("feed started",
		zap.Duration("cadence", m.interval),
		zap.Int("symbols", len(m.order)),
	)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info("feed stopped", zap.String("cause", "context"))
			return
		case <-m.stop:
			m.log.Info("feed stopped", zap.String("cause", "stop"))
			return
		case now := <-ticker.C:
			m.Step(now)
		}
	}
}

// Stop terminates Run. Idempotent.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// Symbol returns the live quote state of one symbol.
func (m *Manager) Symbol(name string) (market.Symbol, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.symbols[name]
	return s, ok
}

// Symbols returns all symbol states in name order.
func (m *Manager) Symbols() []market.Symbol {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]market.Symbol, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.symbols[name])
	}
	return out
}

// Instruments returns the instrument metadata keyed by symbol, in the shape
// the trading engine wants.
func (m *Manager) Instruments() map[string]market.Instrument {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]market.Instrument, len(m.gens))
	for name, g := range m.gens {
		out[name] = g.cfg.Instrument
	}
	return out
}
