package pricing

// Greeks holds per-unit sensitivities of an option's theoretical value.
// Values are per contract unit; position exposure is Scale(qty).
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Rho   float64 `json:"rho"`
}

// Add returns the component-wise sum of g and other.
func (g Greeks) Add(other Greeks) Greeks {
	return Greeks{
		Delta: g.Delta + other.Delta,
		Gamma: g.Gamma + other.Gamma,
		Theta: g.Theta + other.Theta,
		Vega:  g.Vega + other.Vega,
		Rho:   g.Rho + other.Rho,
	}
}

// Scale multiplies every component by a signed quantity.
func (g Greeks) Scale(qty float64) Greeks {
	return Greeks{
		Delta: g.Delta * qty,
		Gamma: g.Gamma * qty,
		Theta: g.Theta * qty,
		Vega:  g.Vega * qty,
		Rho:   g.Rho * qty,
	}
}

// DollarDelta is the notional delta exposure for one unit at the given
// spot and contract multiplier.
func (g Greeks) DollarDelta(spot, multiplier float64) float64 {
	return g.Delta * spot * multiplier
}

// DollarGamma is the notional gamma exposure per 1% underlying move.
func (g Greeks) DollarGamma(spot, multiplier float64) float64 {
	return g.Gamma * spot * spot * multiplier / 100.0
}

// IsZero reports whether every component is exactly zero.
func (g Greeks) IsZero() bool {
	return g.Delta == 0 && g.Gamma == 0 && g.Theta == 0 && g.Vega == 0 && g.Rho == 0
}
