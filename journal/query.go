package journal

import (
	"context"
	"database/sql"
	"math"
)

// ListTrades returns all trades recorded under a session, oldest first.
func (j *SQLiteJournal) ListTrades(ctx context.Context, sessionID string) ([]TradeRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT session_id, ticket, symbol, side, volume, open_price, close_price,
		       open_time, close_time, realized_pl, reason
		FROM trades WHERE session_id = ? ORDER BY close_time, ticket`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var t TradeRecord
		if err := rows.Scan(
			&t.SessionID, &t.Ticket, &t.Symbol, &t.Side, &t.Volume,
			&t.OpenPrice, &t.ClosePrice, &t.OpenTime, &t.CloseTime,
			&t.RealizedPL, &t.Reason,
		); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListEquity returns the equity curve of a session, oldest first.
func (j *SQLiteJournal) ListEquity(ctx context.Context, sessionID string) ([]EquitySnapshot, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT session_id, time, balance, equity, margin_used, free_margin, margin_level
		FROM equity WHERE session_id = ? ORDER BY time`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquitySnapshot
	for rows.Next() {
		var (
			e     EquitySnapshot
			level sql.NullFloat64
		)
		if err := rows.Scan(
			&e.SessionID, &e.Time, &e.Balance, &e.Equity,
			&e.MarginUsed, &e.FreeMargin, &level,
		); err != nil {
			return nil, err
		}
		e.MarginLevel = math.Inf(1)
		if level.Valid {
			e.MarginLevel = level.Float64
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
