// Package account models the single trading account of a simulation session
// and derives its financial metrics from the open position set.
//
// Balance is the only stored quantity. Equity, margin and margin level are
// always derived so they cannot drift from the positions that define them.
// Only the trading engine mutates Balance, on order close and deposit.
package account

import (
	"math"
	"time"
)

// Account is the session-wide account state. One instance is created at engine
// start with the configured balance and lives until the engine shuts down.
type Account struct {
	ID        string
	Currency  string
	SessionID string
	Balance   float64
	Leverage  float64
}

// New returns an account with the given starting balance. A leverage of 0 or
// below is treated as 1 (no leverage).
func New(id, currency, sessionID string, balance, leverage float64) *Account {
	if leverage <= 0 {
		leverage = 1
	}
	return &Account{
		ID:        id,
		Currency:  currency,
		SessionID: sessionID,
		Balance:   balance,
		Leverage:  leverage,
	}
}

// OpenPosition is the slice of position state the derivation needs. The
// trading engine hands over copies so the derivation stays pure.
type OpenPosition struct {
	Volume       float64 // lots
	ContractSize float64
	OpenPrice    float64
	FloatingPL   float64
}

// Snapshot is a derived view of the account at one instant. Published as the
// AccountUpdated payload.
type Snapshot struct {
	Time          time.Time
	Balance       float64
	FloatingPL    float64
	Equity        float64
	MarginUsed    float64
	FreeMargin    float64
	MarginLevel   float64 // percent; +Inf when no margin is in use
	OpenPositions int
}

// NoMarginUsed reports whether the margin-level sentinel is in effect.
func (s Snapshot) NoMarginUsed() bool {
	return math.IsInf(s.MarginLevel, 1)
}

// Derive computes the account metrics from balance and the open positions:
//
//	equity      = balance + sum(floating P/L)
//	marginUsed  = sum(volume * contractSize * openPrice) / leverage
//	freeMargin  = equity - marginUsed
//	marginLevel = equity / marginUsed * 100, or +Inf with no open exposure
func Derive(balance, leverage float64, open []OpenPosition, now time.Time) Snapshot {
	if leverage <= 0 {
		leverage = 1
	}

	var floating, used float64
	for _, p := range open {
		floating += p.FloatingPL
		used += p.Volume * p.ContractSize * p.OpenPrice / leverage
	}

	equity := balance + floating

	level := math.Inf(1)
	if used > 0 {
		level = equity / used * 100
	}

	return Snapshot{
		Time:          now,
		Balance:       balance,
		FloatingPL:    floating,
		Equity:        equity,
		MarginUsed:    used,
		FreeMargin:    equity - used,
		MarginLevel:   level,
		OpenPositions: len(open),
	}
}

// Snapshot derives the account's current metrics over the given positions.
func (a *Account) Snapshot(open []OpenPosition, now time.Time) Snapshot {
	return Derive(a.Balance, a.Leverage, open, now)
}
