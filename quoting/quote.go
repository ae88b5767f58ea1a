package quoting

import (
	"fmt"
	"time"
)

// Quote is one two-sided (or deliberately one-sided) quote for a
// single contract. Prices are absolute, sizes are contracts; a zero
// size disables that side.
type Quote struct {
	Symbol      string    `json:"symbol"`
	BidPrice    float64   `json:"bid_price"`
	BidSize     float64   `json:"bid_size"`
	AskPrice    float64   `json:"ask_price"`
	AskSize     float64   `json:"ask_size"`
	Mid         float64   `json:"mid"`
	Reservation float64   `json:"reservation"`
	Spread      float64   `json:"spread"`
	Skew        float64   `json:"skew"`
	Inventory   float64   `json:"inventory"`
	AsOf        time.Time `json:"as_of"`
}

// TwoSided reports whether both sides carry size.
func (q Quote) TwoSided() bool { return q.BidSize > 0 && q.AskSize > 0 }

// Empty reports whether neither side carries size.
func (q Quote) Empty() bool { return q.BidSize == 0 && q.AskSize == 0 }

// Check verifies the quote is internally consistent: a live two-sided
// quote must not cross itself.
func (q Quote) Check() error {
	if q.TwoSided() && q.BidPrice >= q.AskPrice {
		return fmt.Errorf("%w: crossed quote bid %.6f >= ask %.6f", ErrInvalidQuoteParams, q.BidPrice, q.AskPrice)
	}
	if q.BidPrice < 0 || q.AskPrice < 0 || q.BidSize < 0 || q.AskSize < 0 {
		return fmt.Errorf("%w: negative quote field", ErrInvalidQuoteParams)
	}
	return nil
}

func (q Quote) String() string {
	return fmt.Sprintf("%s %.4fx%.1f / %.4fx%.1f (mid %.4f, spread %.4f)",
		q.Symbol, q.BidPrice, q.BidSize, q.AskPrice, q.AskSize, q.Mid, q.Spread)
}
