// Package journal records closed trades and equity snapshots of a simulation
// session. Recording is optional: the engine runs entirely in memory and the
// Nop backend is the default.
package journal

import "time"

// TradeRecord is one closed position.
type TradeRecord struct {
	SessionID  string
	Ticket     int64
	Symbol     string
	Side       string
	Volume     float64
	OpenPrice  float64
	ClosePrice float64
	OpenTime   time.Time
	CloseTime  time.Time
	RealizedPL float64
	Reason     string
}

// EquitySnapshot is the account state after one tick or order event.
type EquitySnapshot struct {
	SessionID   string
	Time        time.Time
	Balance     float64
	Equity      float64
	MarginUsed  float64
	FreeMargin  float64
	MarginLevel float64
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordTrade(TradeRecord) error     { return nil }
func (Nop) RecordEquity(EquitySnapshot) error { return nil }
func (Nop) Close() error                      { return nil }
