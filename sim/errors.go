package sim

import "errors"

// Command failures are returned synchronously to the caller and never travel
// through the event bus. A rejected command leaves all engine state unchanged.
var (
	// ErrInvalidOrderParameters rejects a non-positive volume, an unknown
	// side, or a stop-loss/take-profit on the wrong side of the entry price.
	ErrInvalidOrderParameters = errors.New("invalid order parameters")

	// ErrUnknownTicket rejects a command naming a ticket never issued by this
	// engine.
	ErrUnknownTicket = errors.New("unknown ticket")

	// ErrAlreadyClosed rejects a second close of the same position.
	ErrAlreadyClosed = errors.New("position already closed")

	// ErrUnknownSymbol rejects an order on a symbol the engine has no
	// instrument metadata for.
	ErrUnknownSymbol = errors.New("unknown symbol")
)
