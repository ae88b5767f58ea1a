// Package marketdata turns underlying ticks into pricing snapshots:
// it tracks spot, estimates realized volatility, reprices the option
// chain through the external pricer, and publishes the result to the
// board. A small fan-out publisher lets other actors follow the raw
// ticks.
package marketdata

import (
	"errors"
	"fmt"
	"time"
)

// ErrBadTick rejects ticks the handler cannot price from.
var ErrBadTick = errors.New("bad tick")

// Tick is one normalized underlying update.
type Tick struct {
	Underlying string    `json:"underlying"`
	Bid        float64   `json:"bid"`
	Ask        float64   `json:"ask"`
	Last       float64   `json:"last,omitempty"`
	// Vol carries a venue-provided implied volatility when available;
	// zero means unknown and the realized estimator is used instead.
	Vol float64   `json:"vol,omitempty"`
	At  time.Time `json:"at"`
}

// Mid returns the tick mid, falling back to the last trade when the
// tick is one-sided.
func (t Tick) Mid() float64 {
	if t.Bid > 0 && t.Ask > 0 {
		return (t.Bid + t.Ask) / 2
	}
	if t.Last > 0 {
		return t.Last
	}
	if t.Bid > 0 {
		return t.Bid
	}
	return t.Ask
}

// Validate rejects ticks with no usable price.
func (t Tick) Validate() error {
	if t.Underlying == "" {
		return fmt.Errorf("%w: empty underlying", ErrBadTick)
	}
	if t.Bid < 0 || t.Ask < 0 || t.Last < 0 || t.Vol < 0 {
		return fmt.Errorf("%w: negative field", ErrBadTick)
	}
	if t.Mid() <= 0 {
		return fmt.Errorf("%w: no usable price", ErrBadTick)
	}
	if t.Bid > 0 && t.Ask > 0 && t.Bid > t.Ask {
		return fmt.Errorf("%w: crossed %f/%f", ErrBadTick, t.Bid, t.Ask)
	}
	return nil
}
