package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxlab/simtrader/bus"
	"github.com/fxlab/simtrader/market"
)

func eurusd() SymbolConfig {
	return SymbolConfig{
		Instrument: market.Instrument{Name: "EURUSD", PipSize: 0.0001, ContractSize: 100000},
		Price:      1.1000,
		Spread:     0.0002,
		Step:       0.0001,
	}
}

func usdjpy() SymbolConfig {
	return SymbolConfig{
		Instrument: market.Instrument{Name: "USDJPY", PipSize: 0.01, ContractSize: 100000},
		Price:      148.500,
		Spread:     0.02,
		Step:       0.01,
	}
}

func newManager(t *testing.T, b *bus.Bus, cfgs ...SymbolConfig) (*Manager, *market.TickStore) {
	t.Helper()
	store := market.NewTickStore()
	m, err := NewManager(store, b, cfgs, WithSeed(42))
	require.NoError(t, err)
	return m, store
}

func TestNewManagerRejectsBadConfig(t *testing.T) {
	store := market.NewTickStore()
	b := bus.New(nil)

	tests := []struct {
		name   string
		mutate func(*SymbolConfig)
	}{
		{"missing name", func(c *SymbolConfig) { c.Instrument.Name = "" }},
		{"zero spread", func(c *SymbolConfig) { c.Spread = 0 }},
		{"negative spread", func(c *SymbolConfig) { c.Spread = -0.0002 }},
		{"zero step", func(c *SymbolConfig) { c.Step = 0 }},
		{"zero price", func(c *SymbolConfig) { c.Price = 0 }},
		{"zero pip size", func(c *SymbolConfig) { c.Instrument.PipSize = 0 }},
		{"zero contract size", func(c *SymbolConfig) { c.Instrument.ContractSize = 0 }},
		{"spread swallows price", func(c *SymbolConfig) { c.Price = 0.0001; c.Spread = 0.0002 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := eurusd()
			tt.mutate(&cfg)
			_, err := NewManager(store, b, []SymbolConfig{cfg})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidSymbolConfig), "got %v", err)
		})
	}

	t.Run("no symbols", func(t *testing.T) {
		_, err := NewManager(store, b, nil)
		assert.True(t, errors.Is(err, ErrInvalidSymbolConfig))
	})

	t.Run("duplicate symbol", func(t *testing.T) {
		_, err := NewManager(store, b, []SymbolConfig{eurusd(), eurusd()})
		assert.True(t, errors.Is(err, ErrInvalidSymbolConfig))
	})
}

func TestStepPublishesValidTicks(t *testing.T) {
	b := bus.New(nil)
	var got []market.Tick
	b.Subscribe(bus.TickUpdated, func(_ bus.Kind, p any) {
		got = append(got, p.(market.Tick))
	})

	m, store := newManager(t, b, eurusd(), usdjpy())

	now := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 500; i++ {
		m.Step(now.Add(time.Duration(i) * time.Second))
	}

	require.Len(t, got, 1000)
	for _, tick := range got {
		assert.GreaterOrEqual(t, tick.Ask, tick.Bid, "ask < bid for %s", tick.Symbol)
		assert.Greater(t, tick.Bid, 0.0, "non-positive bid for %s", tick.Symbol)
	}

	// Store holds the latest tick for each symbol.
	last, err := store.Get("EURUSD")
	require.NoError(t, err)
	assert.Equal(t, now.Add(499*time.Second), last.Time)
}

func TestStepKeepsFixedSpread(t *testing.T) {
	b := bus.New(nil)
	m, store := newManager(t, b, eurusd())

	for i := 0; i < 100; i++ {
		m.Step(time.Now())
		tick, err := store.Get("EURUSD")
		require.NoError(t, err)
		assert.InDelta(t, 0.0002, tick.Spread(), 1e-12)
	}
}

func TestStepSetsTrend(t *testing.T) {
	b := bus.New(nil)
	m, _ := newManager(t, b, eurusd())

	sawUp, sawDown := false, false
	var prevMid float64
	first := true
	for i := 0; i < 200; i++ {
		m.Step(time.Now())
		s, ok := m.Symbol("EURUSD")
		require.True(t, ok)

		mid := (s.Bid + s.Ask) / 2
		if !first {
			switch {
			case mid > prevMid:
				assert.Equal(t, market.TrendUp, s.Trend)
				sawUp = true
			case mid < prevMid:
				assert.Equal(t, market.TrendDown, s.Trend)
				sawDown = true
			default:
				assert.Equal(t, market.TrendFlat, s.Trend)
			}
		}
		prevMid = mid
		first = false
	}
	assert.True(t, sawUp, "walk never moved up in 200 steps")
	assert.True(t, sawDown, "walk never moved down in 200 steps")
}

func TestSeededWalkIsReproducible(t *testing.T) {
	run := func() []float64 {
		store := market.NewTickStore()
		m, err := NewManager(store, bus.New(nil), []SymbolConfig{eurusd()}, WithSeed(7))
		require.NoError(t, err)

		var mids []float64
		for i := 0; i < 50; i++ {
			m.Step(time.Now())
			tick, err := store.Get("EURUSD")
			require.NoError(t, err)
			mids = append(mids, tick.Mid())
		}
		return mids
	}

	assert.Equal(t, run(), run())
}

func TestRunStopIsIdempotent(t *testing.T) {
	b := bus.New(nil)
	m, _ := newManager(t, b, eurusd())

	done := make(chan struct{})
	go func() {
		m.Run(context.Background())
		close(done)
	}()

	m.Stop()
	m.Stop() // second call must be a no-op

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestInstruments(t *testing.T) {
	b := bus.New(nil)
	m, _ := newManager(t, b, eurusd(), usdjpy())

	insts := m.Instruments()
	require.Len(t, insts, 2)
	assert.Equal(t, 100000.0, insts["EURUSD"].ContractSize)
	assert.Equal(t, 0.01, insts["USDJPY"].PipSize)
}
