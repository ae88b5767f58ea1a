package hedging

import (
	"fmt"
	"time"

	"options-mm-go/venue"
)

// Reason records what prompted a hedge order.
type Reason string

const (
	// ReasonDeltaThreshold marks hedges from the hysteresis band.
	ReasonDeltaThreshold Reason = "delta_threshold"
	// ReasonScheduledRebalance marks periodic flattening.
	ReasonScheduledRebalance Reason = "scheduled_rebalance"
	// ReasonManual marks operator-initiated hedges.
	ReasonManual Reason = "manual"
	// ReasonRiskLimitBreach marks forced flattening after a halt.
	ReasonRiskLimitBreach Reason = "risk_limit_breach"
)

// HedgeOrder is one instruction to trade the underlying. Quantity is
// signed in underlying units: positive buys, negative sells. A zero
// Price with Limit false means a market order.
type HedgeOrder struct {
	Underlying string    `json:"underlying"`
	Quantity   float64   `json:"quantity"`
	Price      float64   `json:"price,omitempty"`
	Limit      bool      `json:"limit"`
	Urgency    float64   `json:"urgency"`
	Reason     Reason    `json:"reason"`
	Delta      float64   `json:"delta"`
	At         time.Time `json:"at"`
}

// Side maps the signed quantity onto a venue side.
func (o HedgeOrder) Side() venue.Side {
	if o.Quantity < 0 {
		return venue.Sell
	}
	return venue.Buy
}

// AbsQuantity returns the unsigned order size.
func (o HedgeOrder) AbsQuantity() float64 {
	if o.Quantity < 0 {
		return -o.Quantity
	}
	return o.Quantity
}

func (o HedgeOrder) String() string {
	kind := "market"
	if o.Limit {
		kind = fmt.Sprintf("limit @ %.4f", o.Price)
	}
	return fmt.Sprintf("%s %s %.2f %s (%s, delta %.2f, urgency %.2f)",
		o.Side(), o.Underlying, o.AbsQuantity(), kind, o.Reason, o.Delta, o.Urgency)
}
