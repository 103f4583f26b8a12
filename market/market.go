// Package market holds the quote-side data model shared by the feed and the
// trading engine: instruments, ticks, trends and the concurrent tick store.
package market

import "time"

// Instrument describes the static contract parameters of a tradable symbol.
type Instrument struct {
	Name         string
	PipSize      float64 // smallest standard quoted increment, e.g. 0.0001 for EURUSD
	ContractSize float64 // units of base currency per 1.0 lot, e.g. 100000
}

// Pips converts a price distance into pips for this instrument.
func (i Instrument) Pips(delta float64) float64 {
	if i.PipSize == 0 {
		return 0
	}
	return delta / i.PipSize
}

// Trend is the direction of the last mid-price move for a symbol.
type Trend int

const (
	TrendFlat Trend = iota
	TrendUp
	TrendDown
)

func (t Trend) String() string {
	switch t {
	case TrendUp:
		return "up"
	case TrendDown:
		return "down"
	default:
		return "flat"
	}
}

// Symbol is the live quote state of one instrument as maintained by the feed.
type Symbol struct {
	Instrument
	Bid   float64
	Ask   float64
	Trend Trend
	Time  time.Time
}

// Spread returns ask - bid. Never negative for feed-produced symbols.
func (s Symbol) Spread() float64 {
	return s.Ask - s.Bid
}
