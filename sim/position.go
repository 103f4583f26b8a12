package sim

import (
	"time"

	"github.com/fxlab/simtrader/market"
)

// Side is the direction of a position.
type Side int

const (
	Buy  Side = 1
	Sell Side = -1
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

func (s Side) direction() float64 {
	if s == Sell {
		return -1
	}
	return 1
}

// CloseReason explains why a position left the OPEN state.
type CloseReason string

const (
	ReasonManual     CloseReason = "ManualClose"
	ReasonStopLoss   CloseReason = "StopLoss"
	ReasonTakeProfit CloseReason = "TakeProfit"
)

// Position is one order from fill to close. Open positions are owned by the
// engine; a closed position is immutable history.
type Position struct {
	Ticket       int64
	Symbol       string
	Side         Side
	Volume       float64 // lots
	ContractSize float64
	OpenPrice    float64
	StopLoss     *float64
	TakeProfit   *float64
	OpenTime     time.Time
	Open         bool

	// TrailingDistance, when set, ratchets StopLoss behind the mark price on
	// every favorable tick. Nil means no trailing.
	TrailingDistance *float64

	// Derived while open, frozen at close.
	FloatingPL float64

	// Set at close.
	ClosePrice float64
	CloseTime  time.Time
	RealizedPL float64
}

// ClosedOrder is the OrderClosed event payload.
type ClosedOrder struct {
	Position Position
	Reason   CloseReason
}

// markPrice is the side of the quote this position would close against:
// longs close on bid, shorts close on ask.
func (p *Position) markPrice(t market.Tick) float64 {
	if p.Side == Sell {
		return t.Ask
	}
	return t.Bid
}

// profitAt is the pip-value P/L of the position if it were closed at price.
func (p *Position) profitAt(price float64) float64 {
	return (price - p.OpenPrice) * p.Side.direction() * p.Volume * p.ContractSize
}

// ratchetTrailingStop moves the stop-loss toward the mark price, never away
// from it. A long's stop only ever rises, a short's only ever falls; an unset
// stop is seeded on the first tick. Reports whether the stop moved.
func (p *Position) ratchetTrailingStop(mark float64) bool {
	if p.TrailingDistance == nil {
		return false
	}

	if p.Side == Buy {
		candidate := mark - *p.TrailingDistance
		if candidate > 0 && (p.StopLoss == nil || candidate > *p.StopLoss) {
			p.StopLoss = &candidate
			return true
		}
		return false
	}

	candidate := mark + *p.TrailingDistance
	if p.StopLoss == nil || candidate < *p.StopLoss {
		p.StopLoss = &candidate
		return true
	}
	return false
}

func (p *Position) hitStopLoss(mark float64) bool {
	if p.StopLoss == nil {
		return false
	}
	if p.Side == Buy {
		return mark <= *p.StopLoss
	}
	return mark >= *p.StopLoss
}

func (p *Position) hitTakeProfit(mark float64) bool {
	if p.TakeProfit == nil {
		return false
	}
	if p.Side == Buy {
		return mark >= *p.TakeProfit
	}
	return mark <= *p.TakeProfit
}
