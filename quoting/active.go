package quoting

import (
	"sync"
	"time"
)

// Entry tracks the orders working for one contract: the resting order
// IDs per side and the quote they were built from.
type Entry struct {
	Symbol      string
	BidOrderID  string
	AskOrderID  string
	Last        Quote
	SubmittedAt time.Time
}

// ActiveQuotes is the table of quotes currently resting on the venue,
// keyed by contract symbol. The generator consults it to decide
// whether a fresh quote differs enough to be worth the churn of a
// cancel and resubmit.
type ActiveQuotes struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewActiveQuotes returns an empty table.
func NewActiveQuotes() *ActiveQuotes {
	return &ActiveQuotes{entries: make(map[string]Entry)}
}

// Get returns the entry for symbol, if any.
func (a *ActiveQuotes) Get(symbol string) (Entry, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	e, ok := a.entries[symbol]
	return e, ok
}

// Set replaces the entry for symbol.
func (a *ActiveQuotes) Set(e Entry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries[e.Symbol] = e
}

// Remove drops the entry for symbol.
func (a *ActiveQuotes) Remove(symbol string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.entries, symbol)
}

// Symbols returns the symbols with resting quotes.
func (a *ActiveQuotes) Symbols() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, 0, len(a.entries))
	for s := range a.entries {
		out = append(out, s)
	}
	return out
}

// Len returns the number of contracts with resting quotes.
func (a *ActiveQuotes) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.entries)
}

// ClearFill drops the resting order ID that matches filledOrderID and
// reports whether it belonged to the entry. A filled order no longer
// rests, so the next cycle must not try to cancel it.
func (a *ActiveQuotes) ClearFill(symbol, filledOrderID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.entries[symbol]
	if !ok {
		return false
	}
	switch filledOrderID {
	case e.BidOrderID:
		e.BidOrderID = ""
	case e.AskOrderID:
		e.AskOrderID = ""
	default:
		return false
	}
	a.entries[symbol] = e
	return true
}

// NeedsRefresh reports whether next differs from last by more than the
// given tolerances. Price tolerance is a fraction of the last mid;
// size tolerance is absolute contracts. Any change in sidedness forces
// a refresh.
func NeedsRefresh(last, next Quote, priceTol, sizeTol float64) bool {
	if (last.BidSize > 0) != (next.BidSize > 0) || (last.AskSize > 0) != (next.AskSize > 0) {
		return true
	}
	ref := last.Mid
	if ref <= 0 {
		return true
	}
	if abs(next.BidPrice-last.BidPrice)/ref > priceTol {
		return true
	}
	if abs(next.AskPrice-last.AskPrice)/ref > priceTol {
		return true
	}
	if abs(next.BidSize-last.BidSize) > sizeTol {
		return true
	}
	if abs(next.AskSize-last.AskSize) > sizeTol {
		return true
	}
	return false
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
