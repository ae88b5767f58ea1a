package risk

import (
	"fmt"
	"time"
)

// BreachKind names the limit dimension a check found exceeded.
type BreachKind string

const (
	KindDelta    BreachKind = "delta"
	KindGamma    BreachKind = "gamma"
	KindVega     BreachKind = "vega"
	KindTheta    BreachKind = "theta"
	KindLoss     BreachKind = "loss"
	KindNotional BreachKind = "notional"
)

// RiskBreach is the ephemeral output of one limit check. Informational:
// the caller decides whether to halt, alert, or log.
type RiskBreach struct {
	Kind      BreachKind `json:"kind"`
	Current   float64    `json:"current"`
	Threshold float64    `json:"threshold"`
	At        time.Time  `json:"at"`
}

func (b RiskBreach) String() string {
	return fmt.Sprintf("%s limit breached: %.2f > %.2f", b.Kind, b.Current, b.Threshold)
}
