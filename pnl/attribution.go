package pnl

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"options-mm-go/chain"
	"options-mm-go/inventory"
	"options-mm-go/pricing"
)

// ErrNoMark reports that the board carries no spot for the underlying,
// so a P&L move cannot be attributed.
var ErrNoMark = errors.New("no mark available")

// StepInputs is a portfolio observation at one tick: market state plus
// the exposure and P&L standing against it. Greeks are portfolio
// totals in underlying units (per-unit Greek times signed quantity
// times multiplier).
type StepInputs struct {
	Spot       float64
	Vol        float64
	At         time.Time
	Greeks     pricing.Greeks
	Unrealized float64
	Realized   float64
	Fees       float64
}

// Attribution decomposes an unrealized P&L move into Greek buckets:
//
//	delta * dS + 0.5 * gamma * dS^2 + vega * dVol + theta * dtDays
//
// with the remainder in Other, so the buckets always sum exactly to
// the observed change. Vega is per unit volatility move, theta per
// day.
type Attribution struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`

	SpotMove float64 `json:"spot_move"`
	VolMove  float64 `json:"vol_move"`

	DeltaPnL float64 `json:"delta_pnl"`
	GammaPnL float64 `json:"gamma_pnl"`
	VegaPnL  float64 `json:"vega_pnl"`
	ThetaPnL float64 `json:"theta_pnl"`
	OtherPnL float64 `json:"other_pnl"`

	UnrealizedChange float64 `json:"unrealized_change"`

	// Levels at To, carried for reporting.
	Realized   float64 `json:"realized"`
	Unrealized float64 `json:"unrealized"`
	Fees       float64 `json:"fees"`
}

// Explained is the model-explained part of the move.
func (a Attribution) Explained() float64 {
	return a.DeltaPnL + a.GammaPnL + a.VegaPnL + a.ThetaPnL
}

func (a Attribution) String() string {
	return fmt.Sprintf("dPnL %.2f = delta %.2f + gamma %.2f + vega %.2f + theta %.2f + other %.2f",
		a.UnrealizedChange, a.DeltaPnL, a.GammaPnL, a.VegaPnL, a.ThetaPnL, a.OtherPnL)
}

// Attributor is the attribution state machine. The first Step sets the
// baseline; each later Step explains the move since the previous one
// using the Greeks held at the start of the interval, and accumulates
// into the running day totals.
type Attributor struct {
	mu          sync.Mutex
	initialized bool
	last        StepInputs
	cum         Attribution
}

// NewAttributor returns an empty attributor.
func NewAttributor() *Attributor {
	return &Attributor{}
}

// Step records one observation. The returned Attribution covers the
// interval since the previous Step; the first call returns a zero
// interval and only sets the baseline.
func (a *Attributor) Step(in StepInputs) Attribution {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.initialized {
		a.initialized = true
		a.last = in
		a.cum = Attribution{From: in.At, To: in.At, Realized: in.Realized, Unrealized: in.Unrealized, Fees: in.Fees}
		return a.cum
	}

	dS := in.Spot - a.last.Spot
	dVol := in.Vol - a.last.Vol
	dtDays := in.At.Sub(a.last.At).Hours() / 24
	g := a.last.Greeks

	step := Attribution{
		From:             a.last.At,
		To:               in.At,
		SpotMove:         dS,
		VolMove:          dVol,
		DeltaPnL:         g.Delta * dS,
		GammaPnL:         0.5 * g.Gamma * dS * dS,
		VegaPnL:          g.Vega * dVol,
		ThetaPnL:         g.Theta * dtDays,
		UnrealizedChange: in.Unrealized - a.last.Unrealized,
		Realized:         in.Realized,
		Unrealized:       in.Unrealized,
		Fees:             in.Fees,
	}
	step.OtherPnL = step.UnrealizedChange - step.Explained()

	a.cum.To = in.At
	a.cum.SpotMove += dS
	a.cum.VolMove += dVol
	a.cum.DeltaPnL += step.DeltaPnL
	a.cum.GammaPnL += step.GammaPnL
	a.cum.VegaPnL += step.VegaPnL
	a.cum.ThetaPnL += step.ThetaPnL
	a.cum.OtherPnL += step.OtherPnL
	a.cum.UnrealizedChange += step.UnrealizedChange
	a.cum.Realized = in.Realized
	a.cum.Unrealized = in.Unrealized
	a.cum.Fees = in.Fees

	a.last = in
	return step
}

// Cumulative returns the running totals since the last rollover.
func (a *Attributor) Cumulative() Attribution {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cum
}

// Rollover closes the running period and starts a fresh one from the
// current baseline. It returns the closed period. Typically called at
// the daily boundary together with the risk controller's daily reset.
func (a *Attributor) Rollover(at time.Time) Attribution {
	a.mu.Lock()
	defer a.mu.Unlock()
	closed := a.cum
	closed.To = at
	a.cum = Attribution{From: at, To: at, Realized: a.last.Realized, Unrealized: a.last.Unrealized, Fees: a.last.Fees}
	return closed
}

// Tracker glues the attributor to live components for one underlying:
// board for marks, aggregator for portfolio Greeks, calculator for the
// P&L levels.
// Update is meant for a single caller per tracker; the attributor
// underneath is locked, the vol carry-over is not.
type Tracker struct {
	underlying string
	board      *pricing.Board
	agg        *inventory.Aggregator
	calc       *Calculator
	attr       *Attributor
	lastVol    float64
}

// NewTracker wires a tracker for underlying.
func NewTracker(underlying string, board *pricing.Board, agg *inventory.Aggregator, calc *Calculator) *Tracker {
	return &Tracker{
		underlying: underlying,
		board:      board,
		agg:        agg,
		calc:       calc,
		attr:       NewAttributor(),
	}
}

// Underlying returns the tracked underlying symbol.
func (t *Tracker) Underlying() string { return t.underlying }

// Attributor exposes the underlying state machine.
func (t *Tracker) Attributor() *Attributor { return t.attr }

// Update observes the current board snapshot and returns the
// attribution step since the previous update.
func (t *Tracker) Update() (Attribution, error) {
	snap := t.board.Current()
	spot, ok := snap.Spot(t.underlying)
	if !ok {
		return Attribution{}, fmt.Errorf("%w: %s spot", ErrNoMark, t.underlying)
	}
	vol, ok := snap.Vol(t.underlying)
	if !ok {
		vol = t.lastVol
	} else {
		t.lastVol = vol
	}

	agg, err := t.agg.AggregateGreeks(chain.UnderlyingLevel(t.underlying))
	if err != nil {
		return Attribution{}, err
	}
	report := t.calc.MarkUnderlying(snap, t.underlying)

	return t.attr.Step(StepInputs{
		Spot:       spot,
		Vol:        vol,
		At:         snap.AsOf,
		Greeks:     agg.Greeks,
		Unrealized: report.Unrealized,
		Realized:   report.Realized,
		Fees:       report.Fees,
	}), nil
}
