package pnl

import (
	"math"
	"testing"
	"time"

	"options-mm-go/chain"
	"options-mm-go/inventory"
	"options-mm-go/pricing"
	"options-mm-go/venue"
)

func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 2, hour, minute, 0, 0, time.UTC)
}

func TestAttributorBaseline(t *testing.T) {
	a := NewAttributor()
	first := a.Step(StepInputs{Spot: 100, Vol: 0.5, At: at(9, 30), Unrealized: 40, Realized: 10})
	if first.UnrealizedChange != 0 || first.Explained() != 0 || first.OtherPnL != 0 {
		t.Fatalf("baseline step carries P&L: %+v", first)
	}
	if first.Unrealized != 40 || first.Realized != 10 {
		t.Fatalf("baseline levels = %+v", first)
	}
}

func TestDeltaBucket(t *testing.T) {
	a := NewAttributor()
	a.Step(StepInputs{Spot: 100, At: at(10, 0), Greeks: pricing.Greeks{Delta: 10}, Unrealized: 0})

	// Pure linear exposure: the move is exactly delta * dS.
	step := a.Step(StepInputs{Spot: 102, At: at(10, 1), Greeks: pricing.Greeks{Delta: 10}, Unrealized: 20})
	if step.DeltaPnL != 20 {
		t.Fatalf("delta bucket = %.4f, want 20", step.DeltaPnL)
	}
	if step.GammaPnL != 0 || step.VegaPnL != 0 {
		t.Fatalf("unexpected buckets: %+v", step)
	}
	if step.OtherPnL != 0 {
		t.Fatalf("other = %.4f, want 0", step.OtherPnL)
	}
}

func TestGammaBucket(t *testing.T) {
	a := NewAttributor()
	a.Step(StepInputs{Spot: 100, At: at(10, 0), Greeks: pricing.Greeks{Delta: 5, Gamma: 2}})

	// dS = 4: delta 5*4 = 20, gamma 0.5*2*16 = 16.
	step := a.Step(StepInputs{Spot: 104, At: at(10, 1), Greeks: pricing.Greeks{Delta: 5, Gamma: 2}, Unrealized: 36})
	if step.DeltaPnL != 20 {
		t.Fatalf("delta bucket = %.4f, want 20", step.DeltaPnL)
	}
	if step.GammaPnL != 16 {
		t.Fatalf("gamma bucket = %.4f, want 16", step.GammaPnL)
	}
	if step.OtherPnL != 0 {
		t.Fatalf("other = %.4f, want 0", step.OtherPnL)
	}
}

func TestVegaAndThetaBuckets(t *testing.T) {
	a := NewAttributor()
	a.Step(StepInputs{Spot: 100, Vol: 0.50, At: at(0, 0), Greeks: pricing.Greeks{Vega: 200, Theta: -24}})

	// Vol up 2 points, half a day elapsed, spot unchanged.
	step := a.Step(StepInputs{Spot: 100, Vol: 0.52, At: at(12, 0), Greeks: pricing.Greeks{Vega: 200, Theta: -24}, Unrealized: -8})
	if want := 200 * 0.02; math.Abs(step.VegaPnL-want) > 1e-9 {
		t.Fatalf("vega bucket = %.4f, want %.4f", step.VegaPnL, want)
	}
	if want := -24 * 0.5; math.Abs(step.ThetaPnL-want) > 1e-9 {
		t.Fatalf("theta bucket = %.4f, want %.4f", step.ThetaPnL, want)
	}
}

func TestAttributionIdentity(t *testing.T) {
	a := NewAttributor()
	a.Step(StepInputs{Spot: 100, Vol: 0.5, At: at(9, 0), Greeks: pricing.Greeks{Delta: 12, Gamma: 0.8, Vega: 90, Theta: -15}, Unrealized: 0})

	// Observations deliberately out of line with the expansion; the
	// residual keeps the identity exact.
	inputs := []StepInputs{
		{Spot: 101.7, Vol: 0.48, At: at(9, 5), Greeks: pricing.Greeks{Delta: 11, Gamma: 0.7, Vega: 95, Theta: -15}, Unrealized: 17.3},
		{Spot: 99.2, Vol: 0.53, At: at(9, 35), Greeks: pricing.Greeks{Delta: 13, Gamma: 0.9, Vega: 85, Theta: -14}, Unrealized: -22.1},
		{Spot: 100.4, Vol: 0.51, At: at(11, 0), Greeks: pricing.Greeks{Delta: 12, Gamma: 0.8, Vega: 90, Theta: -15}, Unrealized: 3.9},
	}
	for _, in := range inputs {
		step := a.Step(in)
		sum := step.Explained() + step.OtherPnL
		if math.Abs(sum-step.UnrealizedChange) > 1e-9 {
			t.Fatalf("identity broken: explained+other = %.9f, change = %.9f", sum, step.UnrealizedChange)
		}
	}

	cum := a.Cumulative()
	sum := cum.Explained() + cum.OtherPnL
	if math.Abs(sum-cum.UnrealizedChange) > 1e-9 {
		t.Fatalf("cumulative identity broken: %.9f vs %.9f", sum, cum.UnrealizedChange)
	}
	if math.Abs(cum.UnrealizedChange-3.9) > 1e-9 {
		t.Fatalf("cumulative change = %.4f, want 3.9", cum.UnrealizedChange)
	}
}

func TestRollover(t *testing.T) {
	a := NewAttributor()
	a.Step(StepInputs{Spot: 100, At: at(9, 0), Greeks: pricing.Greeks{Delta: 10}, Unrealized: 0})
	a.Step(StepInputs{Spot: 102, At: at(10, 0), Greeks: pricing.Greeks{Delta: 10}, Unrealized: 20})

	closed := a.Rollover(at(16, 0))
	if closed.DeltaPnL != 20 {
		t.Fatalf("closed period delta = %.4f, want 20", closed.DeltaPnL)
	}
	if !closed.To.Equal(at(16, 0)) {
		t.Fatalf("closed.To = %v", closed.To)
	}

	fresh := a.Cumulative()
	if fresh.DeltaPnL != 0 || fresh.UnrealizedChange != 0 {
		t.Fatalf("period not reset: %+v", fresh)
	}
	if fresh.Unrealized != 20 {
		t.Fatalf("baseline level lost: %+v", fresh)
	}

	// The next step measures from the pre-rollover observation.
	step := a.Step(StepInputs{Spot: 103, At: at(16, 30), Greeks: pricing.Greeks{Delta: 10}, Unrealized: 30})
	if step.DeltaPnL != 10 {
		t.Fatalf("post-rollover delta = %.4f, want 10", step.DeltaPnL)
	}
}

func TestTrackerAgainstLiveComponents(t *testing.T) {
	ch := chain.NewChain(func(string) venue.Book { return venue.NewMemBook() })
	ledger := inventory.NewLedger(nil)
	board := pricing.NewBoard()
	agg := inventory.NewAggregator(ch, ledger, board)
	calc := NewCalculator(ledger, board)

	expiry := time.Date(2026, 12, 25, 8, 0, 0, 0, time.UTC)
	contract, err := ch.Ensure("BTC", 50000, expiry, chain.Call)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if _, err := ledger.ApplyFill(contract.Symbol, 10, 2500, 0); err != nil {
		t.Fatalf("fill: %v", err)
	}

	publish := func(asOf time.Time, spot, vol, theo, delta float64) {
		snap := pricing.NewSnapshot(asOf)
		snap.Spots["BTC"] = spot
		snap.Vols["BTC"] = vol
		snap.Theos[contract.Symbol] = pricing.TheoreticalValue{
			Price:  theo,
			Greeks: pricing.Greeks{Delta: delta},
			AsOf:   asOf,
		}
		board.Publish(snap)
	}

	tracker := NewTracker("BTC", board, agg, calc)

	publish(at(9, 0), 50000, 0.6, 2500, 0.55)
	if _, err := tracker.Update(); err != nil {
		t.Fatalf("baseline update: %v", err)
	}

	// Spot +100; theo follows delta exactly, so other stays zero:
	// portfolio delta = 0.55 * 10 = 5.5, dPnL = 5.5 * 100 = 550.
	publish(at(9, 1), 50100, 0.6, 2555, 0.55)
	step, err := tracker.Update()
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if math.Abs(step.DeltaPnL-550) > 1e-6 {
		t.Fatalf("delta bucket = %.4f, want 550", step.DeltaPnL)
	}
	if math.Abs(step.UnrealizedChange-550) > 1e-6 {
		t.Fatalf("unrealized change = %.4f, want 550", step.UnrealizedChange)
	}
	if math.Abs(step.OtherPnL) > 1e-6 {
		t.Fatalf("other = %.6f, want ~0", step.OtherPnL)
	}
}

func TestTrackerRequiresSpot(t *testing.T) {
	ch := chain.NewChain(func(string) venue.Book { return venue.NewMemBook() })
	ledger := inventory.NewLedger(nil)
	board := pricing.NewBoard()
	tracker := NewTracker("BTC", board, inventory.NewAggregator(ch, ledger, board), NewCalculator(ledger, board))

	if _, err := tracker.Update(); err == nil {
		t.Fatalf("expected error with no spot on the board")
	}
}
