package engine

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Ledger tracks the cumulative amount collected by successful
// purchases. The total is monotonically non-decreasing from the
// outside: only the purchase path records, and only a rolled-back
// purchase unrecords what it just recorded, inside the same call.
type Ledger struct {
	mu    sync.RWMutex
	total decimal.Decimal
}

// NewLedger creates a zeroed ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Total returns the cumulative amount collected.
func (l *Ledger) Total() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.total
}

// record adds a settled amount. Purchase path only.
func (l *Ledger) record(amount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.total = l.total.Add(amount)
}

// unrecord reverses a record during rollback of the same call.
func (l *Ledger) unrecord(amount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.total = l.total.Sub(amount)
}
