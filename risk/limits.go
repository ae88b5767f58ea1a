package risk

import "fmt"

// Limits caps portfolio Greeks, cumulative loss, and position value.
// Pure configuration; zero disables the individual cap.
type Limits struct {
	MaxDailyLoss     float64 `yaml:"max_daily_loss" json:"max_daily_loss"`
	MaxDrawdown      float64 `yaml:"max_drawdown" json:"max_drawdown"`
	MaxPositionValue float64 `yaml:"max_position_value" json:"max_position_value"`
	MaxDelta         float64 `yaml:"max_delta" json:"max_delta"`
	MaxGamma         float64 `yaml:"max_gamma" json:"max_gamma"`
	MaxVega          float64 `yaml:"max_vega" json:"max_vega"`
	MaxTheta         float64 `yaml:"max_theta" json:"max_theta"`

	// HaltOnBreach makes any breach set the halted flag. Policy choice;
	// the flag still clears only through an explicit Reset.
	HaltOnBreach bool `yaml:"halt_on_breach" json:"halt_on_breach"`
}

// DefaultLimits returns the standard production caps.
func DefaultLimits() Limits {
	return Limits{
		MaxDailyLoss:     10_000,
		MaxDrawdown:      50_000,
		MaxPositionValue: 1_000_000,
		MaxDelta:         100_000,
		MaxGamma:         10_000,
		MaxVega:          50_000,
		MaxTheta:         25_000,
	}
}

// Validate rejects negative caps.
func (l Limits) Validate() error {
	for name, v := range map[string]float64{
		"max_daily_loss":     l.MaxDailyLoss,
		"max_drawdown":       l.MaxDrawdown,
		"max_position_value": l.MaxPositionValue,
		"max_delta":          l.MaxDelta,
		"max_gamma":          l.MaxGamma,
		"max_vega":           l.MaxVega,
		"max_theta":          l.MaxTheta,
	} {
		if v < 0 {
			return fmt.Errorf("%s must be >= 0, got %f", name, v)
		}
	}
	return nil
}
