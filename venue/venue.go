// Package venue defines the order-book capability interface the engine
// quotes into. The engine depends only on this interface, never on a
// concrete venue implementation.
package venue

import (
	"errors"
	"time"
)

var (
	// ErrOrderSubmission wraps any book-side rejection of a new order.
	// The engine never retries; the caller decides.
	ErrOrderSubmission = errors.New("order submission failed")
	// ErrOrderNotFound is returned by cancels for unknown ids.
	ErrOrderNotFound = errors.New("order not found")
	// ErrDuplicateOrder is returned when an order id is reused.
	ErrDuplicateOrder = errors.New("duplicate order id")
)

// Side is the order direction.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// TopOfBook is the best visible quote of one contract's book.
type TopOfBook struct {
	Bid      float64
	Ask      float64
	BidSize  float64
	AskSize  float64
	TwoSided bool
}

// Mid returns the midpoint; ok is false unless the book is two-sided.
func (t TopOfBook) Mid() (float64, bool) {
	if !t.TwoSided {
		return 0, false
	}
	return (t.Bid + t.Ask) / 2, true
}

// SpreadBps returns the quoted spread in basis points of the mid.
func (t TopOfBook) SpreadBps() (float64, bool) {
	mid, ok := t.Mid()
	if !ok || mid <= 0 {
		return 0, false
	}
	return (t.Ask - t.Bid) / mid * 10000, true
}

// Book is one contract's order book. Implementations must be safe for
// concurrent use; the engine calls it from the quoting and hedging
// actors simultaneously.
type Book interface {
	AddLimitOrder(id string, side Side, price, size float64) error
	CancelOrder(id string) error
	BestQuote() TopOfBook
}

// Fill reports an execution against one of our orders. Side is our
// side: a counterparty hitting our bid produces a Buy fill.
type Fill struct {
	Symbol   string    `json:"symbol"`
	OrderID  string    `json:"order_id"`
	Side     Side      `json:"side"`
	Quantity float64   `json:"quantity"`
	Price    float64   `json:"price"`
	Fee      float64   `json:"fee"`
	At       time.Time `json:"at"`
}

// SignedQuantity maps the fill onto the ledger's signed convention:
// buys increase the position, sells decrease it.
func (f Fill) SignedQuantity() float64 {
	if f.Side == Sell {
		return -f.Quantity
	}
	return f.Quantity
}
