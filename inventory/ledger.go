package inventory

import (
	"sort"
	"sync"
	"time"
)

// EventSink receives every applied fill, in per-contract arrival order.
// Called synchronously under the position lock: sinks must be fast and
// must not call back into the ledger.
type EventSink func(FillResult)

// MultiplierFunc resolves the contract multiplier for a symbol.
type MultiplierFunc func(symbol string) float64

// Ledger owns every Position. Fills on one contract serialize on that
// position's lock; fills on different contracts run independently.
type Ledger struct {
	mu        sync.RWMutex
	positions map[string]*Position

	multiplier MultiplierFunc
	sink       EventSink
	clock      func() time.Time
}

// NewLedger creates an empty ledger. sink may be nil.
func NewLedger(sink EventSink) *Ledger {
	return &Ledger{
		positions: make(map[string]*Position),
		sink:      sink,
		clock:     time.Now,
	}
}

// SetMultiplier installs the multiplier resolver. Call once during
// wiring, before the first fill.
func (l *Ledger) SetMultiplier(fn MultiplierFunc) { l.multiplier = fn }

// GetOrCreate is idempotent: one Position per symbol, ever.
func (l *Ledger) GetOrCreate(symbol string) *Position {
	l.mu.RLock()
	p := l.positions[symbol]
	l.mu.RUnlock()
	if p != nil {
		return p
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if p = l.positions[symbol]; p != nil {
		return p
	}
	mult := 1.0
	if l.multiplier != nil {
		mult = l.multiplier(symbol)
	}
	p = newPosition(symbol, mult)
	l.positions[symbol] = p
	return p
}

// Position looks up an existing position.
func (l *Ledger) Position(symbol string) (*Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.positions[symbol]
	return p, ok
}

// ApplyFill applies one execution to the contract's position. The fill
// is always applied; limit checking happens separately and never
// rejects a trade that already happened.
func (l *Ledger) ApplyFill(symbol string, qty, price, fee float64) (FillResult, error) {
	p := l.GetOrCreate(symbol)
	res, err := p.applyFill(qty, price, fee, l.clock(), l.sink)
	if err != nil {
		return FillResult{}, err
	}
	return res, nil
}

// Views returns consistent copies of all positions, sorted by symbol.
func (l *Ledger) Views() []PositionView {
	l.mu.RLock()
	list := make([]*Position, 0, len(l.positions))
	for _, p := range l.positions {
		list = append(list, p)
	}
	l.mu.RUnlock()

	views := make([]PositionView, 0, len(list))
	for _, p := range list {
		views = append(views, p.View())
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Symbol < views[j].Symbol })
	return views
}

// OpenCount reports how many positions have non-zero quantity.
func (l *Ledger) OpenCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, p := range l.positions {
		if p.IsOpen() {
			n++
		}
	}
	return n
}

// TotalRealized sums realized P&L across all positions.
func (l *Ledger) TotalRealized() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := 0.0
	for _, p := range l.positions {
		total += p.Realized()
	}
	return total
}

// TotalFees sums fees across all positions.
func (l *Ledger) TotalFees() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := 0.0
	for _, p := range l.positions {
		total += p.Fees()
	}
	return total
}
