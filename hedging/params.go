// Package hedging decides when portfolio delta gets flattened with an
// underlying trade. A two-state hysteresis band keeps the hedger from
// oscillating: it arms when |delta| crosses the enter threshold and
// only disarms once delta falls back through the lower exit threshold.
package hedging

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidHedgeParams rejects configurations the hedger cannot run on.
var ErrInvalidHedgeParams = errors.New("invalid hedge parameters")

// Params configures the delta hedger.
type Params struct {
	// TargetDelta is the desired portfolio delta in underlying units.
	TargetDelta float64 `yaml:"target_delta" json:"target_delta"`
	// EnterThreshold arms the hedger when |delta - target| reaches it.
	EnterThreshold float64 `yaml:"enter_threshold" json:"enter_threshold"`
	// ExitThreshold disarms the hedger once |delta - target| falls to
	// or below it. Must be strictly below EnterThreshold.
	ExitThreshold float64 `yaml:"exit_threshold" json:"exit_threshold"`
	// MinHedgeSize suppresses dust trades.
	MinHedgeSize float64 `yaml:"min_hedge_size" json:"min_hedge_size"`
	// MaxHedgeSize caps a single hedge order.
	MaxHedgeSize float64 `yaml:"max_hedge_size" json:"max_hedge_size"`
	// MinInterval spaces repeat orders while the band stays breached.
	MinInterval time.Duration `yaml:"min_interval" json:"min_interval"`
	// DeltaMoveRetrigger re-emits before MinInterval when delta has
	// moved this far from the last hedged level.
	DeltaMoveRetrigger float64 `yaml:"delta_move_retrigger" json:"delta_move_retrigger"`
	// UseLimitOrders prices hedges as marketable limits off spot
	// instead of market orders.
	UseLimitOrders bool `yaml:"use_limit_orders" json:"use_limit_orders"`
	// LimitOffsetBps is how far through spot the limit crosses.
	LimitOffsetBps float64 `yaml:"limit_offset_bps" json:"limit_offset_bps"`
}

// DefaultParams returns the standard hedger configuration.
func DefaultParams() Params {
	return Params{
		TargetDelta:        0,
		EnterThreshold:     100,
		ExitThreshold:      80,
		MinHedgeSize:       1,
		MaxHedgeSize:       100,
		MinInterval:        30 * time.Second,
		DeltaMoveRetrigger: 25,
		UseLimitOrders:     true,
		LimitOffsetBps:     5,
	}
}

// Validate checks threshold ordering and size sanity.
func (p Params) Validate() error {
	if p.EnterThreshold <= 0 {
		return fmt.Errorf("%w: enter threshold %.2f", ErrInvalidHedgeParams, p.EnterThreshold)
	}
	if p.ExitThreshold < 0 || p.ExitThreshold >= p.EnterThreshold {
		return fmt.Errorf("%w: exit threshold %.2f must be in [0, %.2f)", ErrInvalidHedgeParams, p.ExitThreshold, p.EnterThreshold)
	}
	if p.MinHedgeSize <= 0 {
		return fmt.Errorf("%w: min hedge size %.2f", ErrInvalidHedgeParams, p.MinHedgeSize)
	}
	if p.MaxHedgeSize < p.MinHedgeSize {
		return fmt.Errorf("%w: max hedge size %.2f < min %.2f", ErrInvalidHedgeParams, p.MaxHedgeSize, p.MinHedgeSize)
	}
	if p.MinInterval < 0 {
		return fmt.Errorf("%w: min interval %s", ErrInvalidHedgeParams, p.MinInterval)
	}
	if p.DeltaMoveRetrigger < 0 {
		return fmt.Errorf("%w: delta move retrigger %.2f", ErrInvalidHedgeParams, p.DeltaMoveRetrigger)
	}
	if p.LimitOffsetBps < 0 {
		return fmt.Errorf("%w: limit offset %.2f bps", ErrInvalidHedgeParams, p.LimitOffsetBps)
	}
	return nil
}
