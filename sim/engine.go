// Package sim is the position and order engine of the simulated broker. It
// owns every position, fills market orders against the current quote, enforces
// stop-loss/take-profit on each tick and keeps the account's balance and
// derived metrics consistent with the position set.
package sim

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fxlab/simtrader/account"
	"github.com/fxlab/simtrader/bus"
	"github.com/fxlab/simtrader/journal"
	"github.com/fxlab/simtrader/market"
	"github.com/fxlab/simtrader/ticket"
)

// OrderRequest is a market order: filled instantly against the quoted spread,
// no partial fills, no limit/stop entry semantics.
type OrderRequest struct {
	Symbol     string
	Side       Side
	Volume     float64 // lots, must be > 0
	StopLoss   *float64
	TakeProfit *float64
}

// Config wires an Engine. Account and Prices are required; everything else
// falls back to a working default.
type Config struct {
	Account     *account.Account
	Prices      *market.TickStore
	Instruments map[string]market.Instrument
	Tickets     *ticket.Generator
	Bus         *bus.Bus
	Journal     journal.Journal
	Logger      *zap.Logger
}

// Engine serializes all mutating access - ticks, commands, recomputes - behind
// one mutex, so a tick-triggered auto-close and a user close racing on the
// same ticket resolve deterministically: the loser gets ErrAlreadyClosed.
type Engine struct {
	mu          sync.Mutex
	acct        *account.Account
	prices      *market.TickStore
	instruments map[string]market.Instrument
	tickets     *ticket.Generator
	bus         *bus.Bus
	journal     journal.Journal
	log         *zap.Logger
	positions   map[int64]*Position
}

func NewEngine(cfg Config) *Engine {
	if cfg.Tickets == nil {
		cfg.Tickets = ticket.NewGenerator(0)
	}
	if cfg.Bus == nil {
		cfg.Bus = bus.New(nil)
	}
	if cfg.Journal == nil {
		cfg.Journal = journal.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Instruments == nil {
		cfg.Instruments = make(map[string]market.Instrument)
	}
	return &Engine{
		acct:        cfg.Account,
		prices:      cfg.Prices,
		instruments: cfg.Instruments,
		tickets:     cfg.Tickets,
		bus:         cfg.Bus,
		journal:     cfg.Journal,
		log:         cfg.Logger,
		positions:   make(map[int64]*Position),
	}
}

// Attach subscribes the engine's tick processing to the bus it publishes on,
// completing the feed -> engine half of the event flow.
func (e *Engine) Attach() bus.Subscription {
	return e.bus.Subscribe(bus.TickUpdated, func(_ bus.Kind, payload any) {
		if t, ok := payload.(market.Tick); ok {
			e.OnTick(t)
		}
	})
}

// PlaceOrder validates and fills a market order at the current quote: buys at
// ask, sells at bid. A rejected order consumes no ticket, publishes no event
// and leaves all state untouched.
func (e *Engine) PlaceOrder(ctx context.Context, req OrderRequest) (Position, error) {
	_ = ctx // reserved for future cancellation checks

	e.mu.Lock()

	inst, ok := e.instruments[req.Symbol]
	if !ok {
		e.mu.Unlock()
		return Position{}, fmt.Errorf("place order: %w: %s", ErrUnknownSymbol, req.Symbol)
	}

	tick, err := e.prices.Get(req.Symbol)
	if err != nil {
		e.mu.Unlock()
		return Position{}, fmt.Errorf("place order: %w", err)
	}

	entry := tick.Ask
	if req.Side == Sell {
		entry = tick.Bid
	}

	if err := validateRequest(req, entry); err != nil {
		e.mu.Unlock()
		return Position{}, err
	}

	openTime := tick.Time
	if openTime.IsZero() {
		openTime = time.Now()
	}

	// Ticket allocation happens only after validation so a rejected order has
	// no side effects.
	p := &Position{
		Ticket:       e.tickets.Next(),
		Symbol:       req.Symbol,
		Side:         req.Side,
		Volume:       req.Volume,
		ContractSize: inst.ContractSize,
		OpenPrice:    entry,
		StopLoss:     req.StopLoss,
		TakeProfit:   req.TakeProfit,
		OpenTime:     openTime,
		Open:         true,
	}
	e.positions[p.Ticket] = p

	snap := e.snapshotLocked(openTime)
	e.journalEquity(snap)
	out := *p
	e.mu.Unlock()

	e.log.Info("order placed",
		zap.Int64("ticket", out.Ticket),
		zap.String("symbol", out.Symbol),
		zap.String("side", out.Side.String()),
		zap.Float64("volume", out.Volume),
		zap.Float64("price", out.OpenPrice),
	)

	e.bus.Publish(bus.OrderPlaced, out)
	e.bus.Publish(bus.AccountUpdated, snap)
	return out, nil
}

// CloseOrder closes an open position at the current quote, crossing the spread
// again: longs close on bid, shorts on ask. Realized P/L is credited to the
// balance exactly once.
func (e *Engine) CloseOrder(ctx context.Context, ticketNo int64, reason CloseReason) (Position, error) {
	_ = ctx

	if reason == "" {
		reason = ReasonManual
	}

	e.mu.Lock()

	p, ok := e.positions[ticketNo]
	if !ok {
		e.mu.Unlock()
		return Position{}, fmt.Errorf("close order: ticket %d: %w", ticketNo, ErrUnknownTicket)
	}
	if !p.Open {
		e.mu.Unlock()
		return Position{}, fmt.Errorf("close order: ticket %d: %w", ticketNo, ErrAlreadyClosed)
	}

	tick, err := e.prices.Get(p.Symbol)
	if err != nil {
		e.mu.Unlock()
		return Position{}, fmt.Errorf("close order: %w", err)
	}

	e.closeLocked(p, p.markPrice(tick), tick.Time, reason)

	snap := e.snapshotLocked(tick.Time)
	e.journalEquity(snap)
	out := *p
	e.mu.Unlock()

	e.bus.Publish(bus.OrderClosed, ClosedOrder{Position: out, Reason: reason})
	e.bus.Publish(bus.AccountUpdated, snap)
	return out, nil
}

// CloseAll closes every open position at its symbol's current price and
// publishes one account update at the end.
func (e *Engine) CloseAll(ctx context.Context, reason CloseReason) ([]Position, error) {
	_ = ctx

	if reason == "" {
		reason = ReasonManual
	}

	e.mu.Lock()

	open := e.openLocked()
	if len(open) == 0 {
		e.mu.Unlock()
		return nil, nil
	}

	// Preflight so a missing price closes nothing instead of half the book.
	for _, p := range open {
		if _, err := e.prices.Get(p.Symbol); err != nil {
			e.mu.Unlock()
			return nil, fmt.Errorf("close all: %w", err)
		}
	}

	var (
		closed       []Position
		snapshotTime time.Time
	)
	for _, p := range open {
		tick, _ := e.prices.Get(p.Symbol)
		if tick.Time.After(snapshotTime) {
			snapshotTime = tick.Time
		}
		e.closeLocked(p, p.markPrice(tick), tick.Time, reason)
		closed = append(closed, *p)
	}

	snap := e.snapshotLocked(snapshotTime)
	e.journalEquity(snap)
	e.mu.Unlock()

	for _, p := range closed {
		e.bus.Publish(bus.OrderClosed, ClosedOrder{Position: p, Reason: reason})
	}
	e.bus.Publish(bus.AccountUpdated, snap)
	return closed, nil
}

// ModifyOrder replaces the stop-loss/take-profit of an open position. Levels
// are validated against the position's open price; nil clears a level.
func (e *Engine) ModifyOrder(ctx context.Context, ticketNo int64, stopLoss, takeProfit *float64) (Position, error) {
	_ = ctx

	e.mu.Lock()

	p, ok := e.positions[ticketNo]
	if !ok {
		e.mu.Unlock()
		return Position{}, fmt.Errorf("modify order: ticket %d: %w", ticketNo, ErrUnknownTicket)
	}
	if !p.Open {
		e.mu.Unlock()
		return Position{}, fmt.Errorf("modify order: ticket %d: %w", ticketNo, ErrAlreadyClosed)
	}

	if err := validateLevels(p.Side, p.OpenPrice, stopLoss, takeProfit, "modify order"); err != nil {
		e.mu.Unlock()
		return Position{}, err
	}

	p.StopLoss = stopLoss
	p.TakeProfit = takeProfit
	// Setting levels by hand takes over from any trailing stop.
	p.TrailingDistance = nil
	out := *p
	e.mu.Unlock()

	e.bus.Publish(bus.OrderModified, out)
	return out, nil
}

// EnableTrailingStop ratchets the position's stop-loss behind the price from
// now on: it follows favorable moves at the given distance and never backs
// off. The stop seeds from the current quote immediately. A later ModifyOrder
// cancels the trail.
func (e *Engine) EnableTrailingStop(ctx context.Context, ticketNo int64, distance float64) (Position, error) {
	_ = ctx

	if distance <= 0 {
		return Position{}, fmt.Errorf("enable trailing stop: distance %v: %w", distance, ErrInvalidOrderParameters)
	}

	e.mu.Lock()

	p, ok := e.positions[ticketNo]
	if !ok {
		e.mu.Unlock()
		return Position{}, fmt.Errorf("enable trailing stop: ticket %d: %w", ticketNo, ErrUnknownTicket)
	}
	if !p.Open {
		e.mu.Unlock()
		return Position{}, fmt.Errorf("enable trailing stop: ticket %d: %w", ticketNo, ErrAlreadyClosed)
	}

	p.TrailingDistance = &distance
	if tick, err := e.prices.Get(p.Symbol); err == nil {
		p.ratchetTrailingStop(p.markPrice(tick))
	}
	out := *p
	e.mu.Unlock()

	e.log.Info("trailing stop enabled",
		zap.Int64("ticket", out.Ticket),
		zap.Float64("distance", distance),
	)

	e.bus.Publish(bus.OrderModified, out)
	return out, nil
}

// Deposit adds realized capital to the account and publishes the new snapshot.
func (e *Engine) Deposit(amount float64) (account.Snapshot, error) {
	if amount <= 0 {
		return account.Snapshot{}, fmt.Errorf("deposit: amount %v: %w", amount, ErrInvalidOrderParameters)
	}

	e.mu.Lock()
	e.acct.Balance += amount
	snap := e.snapshotLocked(time.Now())
	e.journalEquity(snap)
	e.mu.Unlock()

	e.bus.Publish(bus.AccountUpdated, snap)
	return snap, nil
}

// OnTick processes one price update as a single atomic unit: floating P/L
// refresh, SL/TP evaluation against this very tick, account recompute. When
// both stop-loss and take-profit are crossed within one tick the stop-loss
// wins, since protecting capital outranks taking profit.
func (e *Engine) OnTick(t market.Tick) {
	e.mu.Lock()

	var (
		closed  []ClosedOrder
		trailed []Position
	)
	affected := false

	for _, p := range e.positions {
		if !p.Open || p.Symbol != t.Symbol {
			continue
		}
		affected = true

		mark := p.markPrice(t)
		p.FloatingPL = p.profitAt(mark)

		// Ratchet before evaluating levels, so this tick is judged against
		// the stop it just tightened.
		if p.ratchetTrailingStop(mark) {
			trailed = append(trailed, *p)
		}

		var reason CloseReason
		switch {
		case p.hitStopLoss(mark):
			reason = ReasonStopLoss
		case p.hitTakeProfit(mark):
			reason = ReasonTakeProfit
		}
		if reason != "" {
			e.closeLocked(p, mark, t.Time, reason)
			closed = append(closed, ClosedOrder{Position: *p, Reason: reason})
		}
	}

	if !affected {
		e.mu.Unlock()
		return
	}

	snap := e.snapshotLocked(t.Time)
	e.journalEquity(snap)
	e.mu.Unlock()

	for _, p := range trailed {
		e.bus.Publish(bus.OrderModified, p)
	}
	for _, c := range closed {
		e.log.Info("position auto-closed",
			zap.Int64("ticket", c.Position.Ticket),
			zap.String("reason", string(c.Reason)),
			zap.Float64("price", c.Position.ClosePrice),
			zap.Float64("realized_pl", c.Position.RealizedPL),
		)
		e.bus.Publish(bus.OrderClosed, c)
	}
	e.bus.Publish(bus.AccountUpdated, snap)
}

// Position returns a copy of the position with the given ticket.
func (e *Engine) Position(ticketNo int64) (Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.positions[ticketNo]
	if !ok {
		return Position{}, fmt.Errorf("ticket %d: %w", ticketNo, ErrUnknownTicket)
	}
	return *p, nil
}

// OpenPositions returns copies of all open positions, ordered by ticket.
func (e *Engine) OpenPositions() []Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.collectLocked(func(p *Position) bool { return p.Open })
}

// ClosedPositions returns the closed-position history, ordered by ticket.
func (e *Engine) ClosedPositions() []Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.collectLocked(func(p *Position) bool { return !p.Open })
}

// OpenPositionsOn returns the open positions for one symbol, ordered by ticket.
func (e *Engine) OpenPositionsOn(symbol string) []Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.collectLocked(func(p *Position) bool { return p.Open && p.Symbol == symbol })
}

// RealizedPLSince sums the realized P/L of positions closed at or after the
// given time. Feeding it the start of the trading day gives the day's
// realized result for risk checks.
func (e *Engine) RealizedPLSince(since time.Time) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	var total float64
	for _, p := range e.positions {
		if !p.Open && !p.CloseTime.Before(since) {
			total += p.RealizedPL
		}
	}
	return total
}

// Account derives the current account snapshot.
func (e *Engine) Account() account.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked(time.Now())
}

func (e *Engine) collectLocked(keep func(*Position) bool) []Position {
	var out []Position
	for _, p := range e.positions {
		if keep(p) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticket < out[j].Ticket })
	return out
}

func (e *Engine) openLocked() []*Position {
	var out []*Position
	for _, p := range e.positions {
		if p.Open {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticket < out[j].Ticket })
	return out
}

func (e *Engine) closeLocked(p *Position, closePrice float64, closeTime time.Time, reason CloseReason) {
	if closeTime.IsZero() {
		closeTime = time.Now()
	}

	pl := p.profitAt(closePrice)

	p.ClosePrice = closePrice
	p.CloseTime = closeTime
	p.RealizedPL = pl
	p.FloatingPL = 0
	p.Open = false

	e.acct.Balance += pl

	if err := e.journal.RecordTrade(journal.TradeRecord{
		SessionID:  e.acct.SessionID,
		Ticket:     p.Ticket,
		Symbol:     p.Symbol,
		Side:       p.Side.String(),
		Volume:     p.Volume,
		OpenPrice:  p.OpenPrice,
		ClosePrice: closePrice,
		OpenTime:   p.OpenTime,
		CloseTime:  closeTime,
		RealizedPL: pl,
		Reason:     string(reason),
	}); err != nil {
		e.log.Warn("journal trade record failed", zap.Int64("ticket", p.Ticket), zap.Error(err))
	}
}

func (e *Engine) snapshotLocked(now time.Time) account.Snapshot {
	if now.IsZero() {
		now = time.Now()
	}

	var open []account.OpenPosition
	for _, p := range e.positions {
		if !p.Open {
			continue
		}
		open = append(open, account.OpenPosition{
			Volume:       p.Volume,
			ContractSize: p.ContractSize,
			OpenPrice:    p.OpenPrice,
			FloatingPL:   p.FloatingPL,
		})
	}
	return e.acct.Snapshot(open, now)
}

func (e *Engine) journalEquity(snap account.Snapshot) {
	if err := e.journal.RecordEquity(journal.EquitySnapshot{
		SessionID:   e.acct.SessionID,
		Time:        snap.Time,
		Balance:     snap.Balance,
		Equity:      snap.Equity,
		MarginUsed:  snap.MarginUsed,
		FreeMargin:  snap.FreeMargin,
		MarginLevel: snap.MarginLevel,
	}); err != nil {
		e.log.Warn("journal equity record failed", zap.Error(err))
	}
}

func validateRequest(req OrderRequest, entry float64) error {
	if req.Side != Buy && req.Side != Sell {
		return fmt.Errorf("place order: side %d: %w", req.Side, ErrInvalidOrderParameters)
	}
	if req.Volume <= 0 {
		return fmt.Errorf("place order: volume %v: %w", req.Volume, ErrInvalidOrderParameters)
	}
	return validateLevels(req.Side, entry, req.StopLoss, req.TakeProfit, "place order")
}

// validateLevels checks stop-loss/take-profit sit on the protective side of
// the reference price: buy wants SL < ref < TP, sell the mirror image.
func validateLevels(side Side, ref float64, stopLoss, takeProfit *float64, op string) error {
	if stopLoss != nil {
		if *stopLoss <= 0 {
			return fmt.Errorf("%s: stop loss %v: %w", op, *stopLoss, ErrInvalidOrderParameters)
		}
		if side == Buy && *stopLoss >= ref {
			return fmt.Errorf("%s: stop loss %v above buy price %v: %w", op, *stopLoss, ref, ErrInvalidOrderParameters)
		}
		if side == Sell && *stopLoss <= ref {
			return fmt.Errorf("%s: stop loss %v below sell price %v: %w", op, *stopLoss, ref, ErrInvalidOrderParameters)
		}
	}
	if takeProfit != nil {
		if *takeProfit <= 0 {
			return fmt.Errorf("%s: take profit %v: %w", op, *takeProfit, ErrInvalidOrderParameters)
		}
		if side == Buy && *takeProfit <= ref {
			return fmt.Errorf("%s: take profit %v below buy price %v: %w", op, *takeProfit, ref, ErrInvalidOrderParameters)
		}
		if side == Sell && *takeProfit >= ref {
			return fmt.Errorf("%s: take profit %v above sell price %v: %w", op, *takeProfit, ref, ErrInvalidOrderParameters)
		}
	}
	return nil
}
