package pricing

import (
	"errors"
	"fmt"
	"time"
)

// ErrPricing marks a pricing collaborator failure for invalid inputs.
var ErrPricing = errors.New("pricing failed")

// Request carries the option parameters handed to the pricing collaborator.
// TimeToExpiry is in years (ACT/365).
type Request struct {
	Spot         float64
	Strike       float64
	TimeToExpiry float64
	Vol          float64
	Rate         float64
	IsCall       bool
}

// Validate rejects parameter combinations no model can price.
func (r Request) Validate() error {
	if r.Spot <= 0 {
		return fmt.Errorf("%w: non-positive spot %.4f", ErrPricing, r.Spot)
	}
	if r.Strike <= 0 {
		return fmt.Errorf("%w: non-positive strike %.4f", ErrPricing, r.Strike)
	}
	if r.TimeToExpiry <= 0 {
		return fmt.Errorf("%w: non-positive time to expiry %.6f", ErrPricing, r.TimeToExpiry)
	}
	if r.Vol < 0 {
		return fmt.Errorf("%w: negative volatility %.4f", ErrPricing, r.Vol)
	}
	return nil
}

// TheoreticalValue is one pricing result: theoretical mid, a theoretical
// bid/ask band, Greeks, and the inputs' as-of time. Consumed read-only.
type TheoreticalValue struct {
	Price      float64   `json:"price"`
	Bid        float64   `json:"bid"`
	Ask        float64   `json:"ask"`
	Greeks     Greeks    `json:"greeks"`
	ImpliedVol float64   `json:"implied_vol"`
	AsOf       time.Time `json:"as_of"`
}

// Pricer is the external pricing collaborator. Implementations must be
// safe for concurrent use.
type Pricer interface {
	TheoreticalValue(req Request) (TheoreticalValue, error)
}
