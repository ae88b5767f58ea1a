// Package sim provides everything needed to run the quoting stack
// without a venue: a Black-Scholes reference pricer, a geometric
// Brownian motion underlying path, and a counterparty flow model that
// trades against the quotes the engine rests in its books.
package sim

import (
	"math"

	"options-mm-go/pricing"
)

// DefaultBandBps is the theoretical bid/ask band width when a Model is
// constructed with a non-positive band.
const DefaultBandBps = 20.0

// Model prices European options under Black-Scholes. It is the
// reference pricing collaborator: deterministic, dependency-free, and
// good enough to exercise the full quoting and hedging path.
//
// Conventions match the rest of the repo: vega is per unit volatility
// move, theta is per calendar day.
type Model struct {
	// BandBps is the full theoretical bid/ask band in basis points of
	// the theo mid.
	BandBps float64
}

// NewModel returns a Model with the default theo band.
func NewModel() *Model { return &Model{BandBps: DefaultBandBps} }

// TheoreticalValue implements pricing.Pricer.
func (m *Model) TheoreticalValue(req pricing.Request) (pricing.TheoreticalValue, error) {
	if err := req.Validate(); err != nil {
		return pricing.TheoreticalValue{}, err
	}
	price, greeks := blackScholes(req)

	band := m.BandBps
	if band <= 0 {
		band = DefaultBandBps
	}
	half := price * band / 2 / 10000
	bid := price - half
	if bid < 0 {
		bid = 0
	}
	return pricing.TheoreticalValue{
		Price:      price,
		Bid:        bid,
		Ask:        price + half,
		Greeks:     greeks,
		ImpliedVol: req.Vol,
	}, nil
}

// blackScholes returns the theo price and per-unit Greeks. The
// zero-volatility limit degenerates to discounted intrinsic value on
// the forward.
func blackScholes(req pricing.Request) (float64, pricing.Greeks) {
	s, k, t, r, v := req.Spot, req.Strike, req.TimeToExpiry, req.Rate, req.Vol
	disc := math.Exp(-r * t)

	sigmaRootT := v * math.Sqrt(t)
	if sigmaRootT < 1e-12 {
		return intrinsicLimit(s, k, t, r, disc, req.IsCall)
	}

	d1 := (math.Log(s/k) + (r+0.5*v*v)*t) / sigmaRootT
	d2 := d1 - sigmaRootT

	gamma := normPDF(d1) / (s * sigmaRootT)
	vega := s * normPDF(d1) * math.Sqrt(t)
	decay := -s * normPDF(d1) * v / (2 * math.Sqrt(t))

	var price float64
	g := pricing.Greeks{Gamma: gamma, Vega: vega}
	if req.IsCall {
		price = s*normCDF(d1) - k*disc*normCDF(d2)
		g.Delta = normCDF(d1)
		g.Theta = (decay - r*k*disc*normCDF(d2)) / daysPerYear
		g.Rho = k * t * disc * normCDF(d2)
	} else {
		price = k*disc*normCDF(-d2) - s*normCDF(-d1)
		g.Delta = normCDF(d1) - 1
		g.Theta = (decay + r*k*disc*normCDF(-d2)) / daysPerYear
		g.Rho = -k * t * disc * normCDF(-d2)
	}
	return price, g
}

// intrinsicLimit handles vol zero, where the option is a forward claim
// with a binary delta.
func intrinsicLimit(s, k, t, r, disc float64, isCall bool) (float64, pricing.Greeks) {
	forward := s * math.Exp(r*t)
	var g pricing.Greeks
	if isCall {
		if forward > k {
			g.Delta = 1
			g.Rho = k * t * disc
			g.Theta = -r * k * disc / daysPerYear
			return s - k*disc, g
		}
		return 0, g
	}
	if forward < k {
		g.Delta = -1
		g.Rho = -k * t * disc
		g.Theta = r * k * disc / daysPerYear
		return k*disc - s, g
	}
	return 0, g
}

const daysPerYear = 365.0

func normCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

func normPDF(x float64) float64 {
	return math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
}
