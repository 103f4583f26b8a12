package journal

import (
	"database/sql"
	"math"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteJournal persists records to a SQLite database so sessions can be
// inspected after the process exits.
type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(session_id, ticket, symbol, side, volume, open_price, close_price, open_time, close_time, realized_pl, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.SessionID, t.Ticket, t.Symbol, t.Side, t.Volume,
		t.OpenPrice, t.ClosePrice, t.OpenTime, t.CloseTime, t.RealizedPL, t.Reason,
	)
	return err
}

func (j *SQLiteJournal) RecordEquity(e EquitySnapshot) error {
	// The flat-book margin level is +Inf; store it as NULL so the column
	// stays numeric.
	level := sql.NullFloat64{Float64: e.MarginLevel, Valid: !math.IsInf(e.MarginLevel, 1)}

	_, err := j.db.Exec(`
		INSERT INTO equity
		(session_id, time, balance, equity, margin_used, free_margin, margin_level)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.Time, e.Balance, e.Equity, e.MarginUsed, e.FreeMargin, level,
	)
	return err
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
