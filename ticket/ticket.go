// Package ticket issues order ticket numbers.
//
// Tickets are unique for the lifetime of one process. The counter is offset by
// the process start time so tickets from separate runs rarely overlap, which
// keeps journals readable; nothing depends on cross-process uniqueness.
package ticket

import (
	"sync/atomic"
	"time"
)

// DefaultBase matches the classic broker convention of nine-digit tickets.
const DefaultBase = 100_000_000

// Generator hands out strictly increasing ticket numbers. Safe for concurrent
// use from any number of goroutines.
type Generator struct {
	last atomic.Int64
}

// NewGenerator returns a generator whose first ticket is greater than
// base + seconds-since-start-of-2020. A base <= 0 uses DefaultBase.
func NewGenerator(base int64) *Generator {
	if base <= 0 {
		base = DefaultBase
	}
	g := &Generator{}
	epoch := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	g.last.Store(base + int64(time.Since(epoch).Seconds()))
	return g
}

// Next returns the next ticket. Never returns the same value twice within one
// process.
func (g *Generator) Next() int64 {
	return g.last.Add(1)
}
