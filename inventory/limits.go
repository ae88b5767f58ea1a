package inventory

import (
	"fmt"
	"time"

	"options-mm-go/chain"
)

// PositionLimits caps gross quantity per hierarchy level and dollar
// Greek exposure per underlying. Pure configuration; zero means
// unlimited.
type PositionLimits struct {
	MaxPerContract   float64 `yaml:"max_per_contract" json:"max_per_contract"`
	MaxPerStrike     float64 `yaml:"max_per_strike" json:"max_per_strike"`
	MaxPerExpiration float64 `yaml:"max_per_expiration" json:"max_per_expiration"`
	MaxPerUnderlying float64 `yaml:"max_per_underlying" json:"max_per_underlying"`

	MaxDollarDelta float64 `yaml:"max_dollar_delta" json:"max_dollar_delta"`
	MaxDollarGamma float64 `yaml:"max_dollar_gamma" json:"max_dollar_gamma"`
	MaxDollarTheta float64 `yaml:"max_dollar_theta" json:"max_dollar_theta"`
	MaxDollarVega  float64 `yaml:"max_dollar_vega" json:"max_dollar_vega"`
}

// SmallLimits suits a single-name book warming up.
func SmallLimits() PositionLimits {
	return PositionLimits{
		MaxPerContract:   100,
		MaxPerStrike:     200,
		MaxPerExpiration: 500,
		MaxPerUnderlying: 1000,
		MaxDollarDelta:   50_000,
		MaxDollarGamma:   5_000,
		MaxDollarTheta:   10_000,
		MaxDollarVega:    5_000,
	}
}

// MediumLimits is the default production preset.
func MediumLimits() PositionLimits {
	return PositionLimits{
		MaxPerContract:   500,
		MaxPerStrike:     1000,
		MaxPerExpiration: 2500,
		MaxPerUnderlying: 5000,
		MaxDollarDelta:   250_000,
		MaxDollarGamma:   25_000,
		MaxDollarTheta:   50_000,
		MaxDollarVega:    25_000,
	}
}

// LargeLimits suits a mature multi-expiry book.
func LargeLimits() PositionLimits {
	return PositionLimits{
		MaxPerContract:   1000,
		MaxPerStrike:     2000,
		MaxPerExpiration: 5000,
		MaxPerUnderlying: 10_000,
		MaxDollarDelta:   500_000,
		MaxDollarGamma:   50_000,
		MaxDollarTheta:   100_000,
		MaxDollarVega:    50_000,
	}
}

// PresetLimits maps a config name onto a preset; unknown names fall
// back to medium.
func PresetLimits(name string) PositionLimits {
	switch name {
	case "small":
		return SmallLimits()
	case "large":
		return LargeLimits()
	default:
		return MediumLimits()
	}
}

// quantityCap picks the cap matching the checked level.
func (pl PositionLimits) quantityCap(level chain.Level) float64 {
	switch level {
	case chain.LevelContract:
		return pl.MaxPerContract
	case chain.LevelStrike:
		return pl.MaxPerStrike
	case chain.LevelExpiration:
		return pl.MaxPerExpiration
	default:
		return pl.MaxPerUnderlying
	}
}

// LimitKind names the capped dimension.
type LimitKind string

const (
	LimitQuantity    LimitKind = "quantity"
	LimitDollarDelta LimitKind = "dollar_delta"
	LimitDollarGamma LimitKind = "dollar_gamma"
	LimitDollarTheta LimitKind = "dollar_theta"
	LimitDollarVega  LimitKind = "dollar_vega"
)

// LimitBreach is an advisory record of one exceeded cap. It never
// blocks the fill that produced it.
type LimitBreach struct {
	Kind    LimitKind `json:"kind"`
	Level   string    `json:"level"`
	Current float64   `json:"current"`
	Limit   float64   `json:"limit"`
	At      time.Time `json:"at"`
}

func (b LimitBreach) String() string {
	return fmt.Sprintf("%s limit breached at %s: %.2f > %.2f", b.Kind, b.Level, b.Current, b.Limit)
}
