package risk

import (
	"math"
	"sync"
	"time"

	"options-mm-go/inventory"
	"options-mm-go/pricing"
)

// Controller evaluates aggregated exposure against Limits and owns the
// explicit trading-halt flag. The flag starts not-halted and clears
// only through Reset; no check ever flips it back implicitly.
type Controller struct {
	limits Limits
	clock  Clock

	mu         sync.RWMutex
	halted     bool
	haltReason string
	haltedAt   time.Time
	dailyPnL   float64
	peakPnL    float64
}

// NewController starts not-halted with zeroed daily P&L.
func NewController(limits Limits) *Controller {
	return &Controller{limits: limits, clock: NowUTC}
}

// SetClock overrides the clock for tests.
func (c *Controller) SetClock(clk Clock) { c.clock = clk }

// Limits returns the configured caps.
func (c *Controller) Limits() Limits {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.limits
}

// SetLimits swaps the caps, used by config hot reload.
func (c *Controller) SetLimits(l Limits) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limits = l
}

// CheckGreekLimits returns one breach per exceeded Greek cap. Stateless
// per cycle; loss limits are evaluated in Evaluate.
func (c *Controller) CheckGreekLimits(g pricing.Greeks) []RiskBreach {
	c.mu.RLock()
	limits := c.limits
	c.mu.RUnlock()
	now := c.clock.Now()

	var breaches []RiskBreach
	check := func(kind BreachKind, current, cap float64) {
		if cap > 0 && math.Abs(current) > cap {
			breaches = append(breaches, RiskBreach{Kind: kind, Current: current, Threshold: cap, At: now})
		}
	}
	check(KindDelta, g.Delta, limits.MaxDelta)
	check(KindGamma, g.Gamma, limits.MaxGamma)
	check(KindVega, g.Vega, limits.MaxVega)
	check(KindTheta, g.Theta, limits.MaxTheta)
	return breaches
}

// Evaluate runs the full per-cycle check: Greek caps, position value,
// daily loss, and drawdown.
func (c *Controller) Evaluate(agg inventory.AggregatedSnapshot) []RiskBreach {
	breaches := c.CheckGreekLimits(agg.Greeks)

	c.mu.RLock()
	limits := c.limits
	daily := c.dailyPnL
	peak := c.peakPnL
	c.mu.RUnlock()
	now := c.clock.Now()

	if limits.MaxPositionValue > 0 && math.Abs(agg.NetNotional) > limits.MaxPositionValue {
		breaches = append(breaches, RiskBreach{
			Kind: KindNotional, Current: math.Abs(agg.NetNotional), Threshold: limits.MaxPositionValue, At: now,
		})
	}
	if limits.MaxDailyLoss > 0 && daily < -limits.MaxDailyLoss {
		breaches = append(breaches, RiskBreach{
			Kind: KindLoss, Current: -daily, Threshold: limits.MaxDailyLoss, At: now,
		})
	}
	if dd := peak - daily; limits.MaxDrawdown > 0 && dd > limits.MaxDrawdown {
		breaches = append(breaches, RiskBreach{
			Kind: KindLoss, Current: dd, Threshold: limits.MaxDrawdown, At: now,
		})
	}
	return breaches
}

// CheckHedge projects a proposed underlying hedge onto the current
// aggregate and returns the limits it would push over. A delta hedge
// moves only delta and notional, so only those are rechecked.
func (c *Controller) CheckHedge(agg inventory.AggregatedSnapshot, hedgeQty, spot float64) []RiskBreach {
	c.mu.RLock()
	limits := c.limits
	c.mu.RUnlock()
	now := c.clock.Now()

	var breaches []RiskBreach
	postDelta := agg.Greeks.Delta + hedgeQty
	if limits.MaxDelta > 0 && math.Abs(postDelta) > limits.MaxDelta {
		breaches = append(breaches, RiskBreach{Kind: KindDelta, Current: postDelta, Threshold: limits.MaxDelta, At: now})
	}
	postNotional := math.Abs(agg.NetNotional) + math.Abs(hedgeQty)*spot
	if limits.MaxPositionValue > 0 && postNotional > limits.MaxPositionValue {
		breaches = append(breaches, RiskBreach{Kind: KindNotional, Current: postNotional, Threshold: limits.MaxPositionValue, At: now})
	}
	return breaches
}

// RecordPnL updates today's running P&L and its intraday peak.
func (c *Controller) RecordPnL(pnl float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dailyPnL = pnl
	if pnl > c.peakPnL {
		c.peakPnL = pnl
	}
}

// DailyPnL returns today's running P&L.
func (c *Controller) DailyPnL() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dailyPnL
}

// Drawdown returns the intraday peak-to-current giveback.
func (c *Controller) Drawdown() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.peakPnL - c.dailyPnL
}

// ResetDaily zeroes the daily P&L tracking at rollover. The halt flag is
// untouched; only Reset clears it.
func (c *Controller) ResetDaily() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dailyPnL = 0
	c.peakPnL = 0
}

// ApplyPolicy halts when the configured policy says a breach set should
// stop trading. Returns true when this call flipped the flag.
func (c *Controller) ApplyPolicy(breaches []RiskBreach) bool {
	if len(breaches) == 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.limits.HaltOnBreach || c.halted {
		return false
	}
	c.halted = true
	c.haltReason = breaches[0].String()
	c.haltedAt = c.clock.Now()
	return true
}

// Halt sets the flag with an operator-visible reason.
func (c *Controller) Halt(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.halted {
		return
	}
	c.halted = true
	c.haltReason = reason
	c.haltedAt = c.clock.Now()
}

// Halted reports the cooperative stop flag consulted before quoting and
// hedging.
func (c *Controller) Halted() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.halted
}

// HaltInfo returns the reason and time of the active halt.
func (c *Controller) HaltInfo() (reason string, at time.Time, halted bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.haltReason, c.haltedAt, c.halted
}

// Reset clears the halt flag. This is the only way trading resumes.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.halted = false
	c.haltReason = ""
	c.haltedAt = time.Time{}
}
