// Package inventory owns per-contract positions and their aggregation
// across the chain hierarchy. Fills mutate exactly one Position under
// its own lock; aggregation reads a pinned pricing snapshot.
package inventory

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

var ErrInvalidFill = errors.New("invalid fill")

// Position is the ledger entry for one contract: signed quantity,
// volume-weighted average entry, realized P&L, and fees. Created on the
// first fill and retained at quantity zero for reporting.
type Position struct {
	Symbol     string
	Multiplier float64

	mu        sync.RWMutex
	quantity  float64
	avgEntry  float64
	realized  float64
	fees      float64
	fillCount int
	updatedAt time.Time
}

// FillResult reports what one applied fill did to the position.
type FillResult struct {
	Symbol        string
	Quantity      float64 // signed fill quantity
	Price         float64
	Fee           float64
	ClosedQty     float64 // positive magnitude closed against the prior position
	RealizedDelta float64 // realized P&L from the closed portion
	Flipped       bool
	PositionQty   float64 // quantity after the fill
	AvgEntry      float64 // average entry after the fill
	At            time.Time
}

func newPosition(symbol string, multiplier float64) *Position {
	if multiplier <= 0 {
		multiplier = 1
	}
	return &Position{Symbol: symbol, Multiplier: multiplier}
}

// applyFill mutates the position under its lock. Same-direction fills
// average the entry price; opposite fills realize P&L on the closed
// portion; a sign flip closes everything and opens the residual at the
// fill price. A non-nil sink fires under the lock, so per-contract
// sink order matches fill order.
func (p *Position) applyFill(qty, price, fee float64, at time.Time, sink EventSink) (FillResult, error) {
	if qty == 0 {
		return FillResult{}, fmt.Errorf("%w: zero quantity", ErrInvalidFill)
	}
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return FillResult{}, fmt.Errorf("%w: price %f", ErrInvalidFill, price)
	}
	if fee < 0 {
		return FillResult{}, fmt.Errorf("%w: negative fee %f", ErrInvalidFill, fee)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	res := FillResult{Symbol: p.Symbol, Quantity: qty, Price: price, Fee: fee, At: at}
	prior := p.quantity

	switch {
	case prior == 0:
		p.quantity = qty
		p.avgEntry = price

	case sameSign(prior, qty):
		total := math.Abs(prior) + math.Abs(qty)
		p.avgEntry = (p.avgEntry*math.Abs(prior) + price*math.Abs(qty)) / total
		p.quantity = prior + qty

	case math.Abs(qty) <= math.Abs(prior):
		closed := math.Abs(qty)
		res.ClosedQty = closed
		res.RealizedDelta = closed * (price - p.avgEntry) * sign(prior) * p.Multiplier
		p.realized += res.RealizedDelta
		p.quantity = prior + qty
		// avgEntry unchanged for the remainder

	default: // flip
		closed := math.Abs(prior)
		res.ClosedQty = closed
		res.RealizedDelta = closed * (price - p.avgEntry) * sign(prior) * p.Multiplier
		res.Flipped = true
		p.realized += res.RealizedDelta
		p.quantity = prior + qty
		p.avgEntry = price
	}

	p.fees += fee
	p.fillCount++
	p.updatedAt = at
	res.PositionQty = p.quantity
	res.AvgEntry = p.avgEntry
	if sink != nil {
		sink(res)
	}
	return res, nil
}

// Quantity returns the signed open quantity.
func (p *Position) Quantity() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.quantity
}

// AvgEntry returns the volume-weighted average entry price.
func (p *Position) AvgEntry() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.avgEntry
}

// Realized returns the cumulative realized P&L.
func (p *Position) Realized() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.realized
}

// Fees returns the cumulative fees paid.
func (p *Position) Fees() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.fees
}

// FillCount returns the number of fills applied.
func (p *Position) FillCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.fillCount
}

// IsOpen reports whether any quantity remains.
func (p *Position) IsOpen() bool { return p.Quantity() != 0 }

// UnrealizedAt marks the open quantity against the given price.
func (p *Position) UnrealizedAt(mark float64) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.quantity == 0 {
		return 0
	}
	return p.quantity * (mark - p.avgEntry) * p.Multiplier
}

// NotionalAt is the absolute market value of the open quantity.
func (p *Position) NotionalAt(mark float64) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return math.Abs(p.quantity) * mark * p.Multiplier
}

// View returns a consistent copy of the mutable fields.
func (p *Position) View() PositionView {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return PositionView{
		Symbol:     p.Symbol,
		Multiplier: p.Multiplier,
		Quantity:   p.quantity,
		AvgEntry:   p.avgEntry,
		Realized:   p.realized,
		Fees:       p.fees,
		FillCount:  p.fillCount,
		UpdatedAt:  p.updatedAt,
	}
}

// PositionView is an immutable snapshot of one position.
type PositionView struct {
	Symbol     string    `json:"symbol"`
	Multiplier float64   `json:"multiplier"`
	Quantity   float64   `json:"quantity"`
	AvgEntry   float64   `json:"avg_entry"`
	Realized   float64   `json:"realized"`
	Fees       float64   `json:"fees"`
	FillCount  int       `json:"fill_count"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func sameSign(a, b float64) bool { return (a > 0) == (b > 0) }

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
