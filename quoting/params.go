// Package quoting turns theoretical values into two-sided quotes: an
// Avellaneda-Stoikov reservation price and optimal spread, inventory
// skew, inventory-scaled sizes, and churn-aware resubmission.
package quoting

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidQuoteParams rejects degenerate model inputs; no quote is
// produced for them.
var ErrInvalidQuoteParams = errors.New("invalid quote parameters")

// Params configures the spread model. Gamma and K have no calibration
// source here; they arrive from configuration.
type Params struct {
	Gamma        float64 `yaml:"gamma" json:"gamma"`                 // risk aversion
	K            float64 `yaml:"k" json:"k"`                         // order-arrival intensity
	MinSpread    float64 `yaml:"min_spread" json:"min_spread"`       // price units
	MaxSpread    float64 `yaml:"max_spread" json:"max_spread"`       // price units
	MaxInventory float64 `yaml:"max_inventory" json:"max_inventory"` // contracts per side
	SkewFactor   float64 `yaml:"skew_factor" json:"skew_factor"`     // fraction of mid at full inventory
	MinSize      float64 `yaml:"min_size" json:"min_size"`
	MaxSize      float64 `yaml:"max_size" json:"max_size"`
}

// DefaultParams returns the standard model configuration.
func DefaultParams() Params {
	return Params{
		Gamma:        0.1,
		K:            1.0,
		MinSpread:    0.001,
		MaxSpread:    0.10,
		MaxInventory: 100,
		SkewFactor:   0.001,
		MinSize:      1,
		MaxSize:      10,
	}
}

// Validate rejects configurations the model cannot run on.
func (p Params) Validate() error {
	if p.Gamma <= 0 {
		return fmt.Errorf("%w: gamma %.6f", ErrInvalidQuoteParams, p.Gamma)
	}
	if p.K <= 0 {
		return fmt.Errorf("%w: k %.6f", ErrInvalidQuoteParams, p.K)
	}
	if p.MinSpread < 0 {
		return fmt.Errorf("%w: min spread %.6f", ErrInvalidQuoteParams, p.MinSpread)
	}
	if p.MaxSpread < p.MinSpread {
		return fmt.Errorf("%w: max spread %.6f < min %.6f", ErrInvalidQuoteParams, p.MaxSpread, p.MinSpread)
	}
	if p.MaxInventory <= 0 {
		return fmt.Errorf("%w: max inventory %.2f", ErrInvalidQuoteParams, p.MaxInventory)
	}
	if p.SkewFactor < 0 {
		return fmt.Errorf("%w: skew factor %.6f", ErrInvalidQuoteParams, p.SkewFactor)
	}
	if p.MinSize <= 0 || p.MaxSize < p.MinSize {
		return fmt.Errorf("%w: size range [%.2f, %.2f]", ErrInvalidQuoteParams, p.MinSize, p.MaxSize)
	}
	return nil
}

// BaseSize is the midpoint of the configured size range.
func (p Params) BaseSize() float64 { return (p.MinSize + p.MaxSize) / 2 }

// Inputs are the per-call model inputs.
type Inputs struct {
	Mid          float64 // theoretical mid
	Inventory    float64 // signed contracts held
	Vol          float64 // annualized volatility
	TimeToExpiry float64 // years
}

// Validate rejects degenerate per-tick inputs.
func (in Inputs) Validate() error {
	if in.Mid <= 0 || math.IsNaN(in.Mid) || math.IsInf(in.Mid, 0) {
		return fmt.Errorf("%w: mid %.6f", ErrInvalidQuoteParams, in.Mid)
	}
	if in.Vol < 0 || math.IsNaN(in.Vol) {
		return fmt.Errorf("%w: vol %.6f", ErrInvalidQuoteParams, in.Vol)
	}
	if in.TimeToExpiry <= 0 || math.IsNaN(in.TimeToExpiry) {
		return fmt.Errorf("%w: time to expiry %.6f", ErrInvalidQuoteParams, in.TimeToExpiry)
	}
	return nil
}
