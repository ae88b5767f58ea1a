package venue

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Order is one resting limit order in a MemBook.
type Order struct {
	ID       string
	Side     Side
	Price    float64
	Size     float64
	PlacedAt time.Time
}

// MemBook is an in-memory level book implementing Book. It backs the
// simulator and tests; production wiring swaps in a real venue behind
// the same interface.
type MemBook struct {
	mu     sync.RWMutex
	orders map[string]Order
}

// NewMemBook creates an empty book.
func NewMemBook() *MemBook {
	return &MemBook{orders: make(map[string]Order)}
}

// AddLimitOrder rests a new order. Reused ids and non-positive
// price/size are rejected.
func (b *MemBook) AddLimitOrder(id string, side Side, price, size float64) error {
	if price <= 0 || size <= 0 {
		return fmt.Errorf("%w: price %.8f size %.8f", ErrOrderSubmission, price, size)
	}
	if side != Buy && side != Sell {
		return fmt.Errorf("%w: bad side %q", ErrOrderSubmission, side)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.orders[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateOrder, id)
	}
	b.orders[id] = Order{ID: id, Side: side, Price: price, Size: size, PlacedAt: time.Now()}
	return nil
}

// CancelOrder removes a resting order.
func (b *MemBook) CancelOrder(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.orders[id]; !exists {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	delete(b.orders, id)
	return nil
}

// BestQuote reports the best bid/ask with the size aggregated at each
// best level.
func (b *MemBook) BestQuote() TopOfBook {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var top TopOfBook
	for _, o := range b.orders {
		switch o.Side {
		case Buy:
			if top.BidSize == 0 || o.Price > top.Bid {
				top.Bid, top.BidSize = o.Price, o.Size
			} else if o.Price == top.Bid {
				top.BidSize += o.Size
			}
		case Sell:
			if top.AskSize == 0 || o.Price < top.Ask {
				top.Ask, top.AskSize = o.Price, o.Size
			} else if o.Price == top.Ask {
				top.AskSize += o.Size
			}
		}
	}
	top.TwoSided = top.BidSize > 0 && top.AskSize > 0
	return top
}

// Orders returns a copy of the resting orders sorted by placement time.
// The simulator walks this to decide fills.
func (b *MemBook) Orders() []Order {
	b.mu.RLock()
	defer b.mu.RUnlock()
	res := make([]Order, 0, len(b.orders))
	for _, o := range b.orders {
		res = append(res, o)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].PlacedAt.Before(res[j].PlacedAt) })
	return res
}

// Len reports the number of resting orders.
func (b *MemBook) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.orders)
}
