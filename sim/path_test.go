package sim

import (
	"math"
	"testing"
	"time"
)

func TestPathIsDeterministicPerSeed(t *testing.T) {
	cfg := PathConfig{Start: 50_000, Vol: 0.6, Step: time.Second, Seed: 7}
	a, b := NewPath(cfg), NewPath(cfg)
	for i := 0; i < 100; i++ {
		if av, bv := a.Next(), b.Next(); av != bv {
			t.Fatalf("step %d diverged: %.8f vs %.8f", i, av, bv)
		}
	}

	cfg.Seed = 8
	c := NewPath(cfg)
	same := true
	d := NewPath(PathConfig{Start: 50_000, Vol: 0.6, Step: time.Second, Seed: 7})
	for i := 0; i < 100; i++ {
		if c.Next() != d.Next() {
			same = false
		}
	}
	if same {
		t.Fatalf("different seeds produced the same path")
	}
}

func TestPathStaysPositive(t *testing.T) {
	p := NewPath(PathConfig{Start: 100, Vol: 2.0, Step: time.Minute, Seed: 42})
	for i := 0; i < 10_000; i++ {
		if s := p.Next(); s <= 0 {
			t.Fatalf("spot went non-positive at step %d: %f", i, s)
		}
	}
}

func TestPathTickCarriesSpreadAndVol(t *testing.T) {
	p := NewPath(PathConfig{Start: 50_000, Vol: 0.6, SpreadBps: 10, Step: time.Second, Seed: 1})
	at := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	tick := p.Tick("BTC", at)
	if tick.Underlying != "BTC" || !tick.At.Equal(at) {
		t.Fatalf("tick identity wrong: %+v", tick)
	}
	if tick.Bid >= tick.Ask {
		t.Fatalf("tick not two-sided: bid %.2f ask %.2f", tick.Bid, tick.Ask)
	}
	if mid := tick.Mid(); math.Abs(mid-p.Spot()) > 1e-6 {
		t.Fatalf("tick mid %.6f != spot %.6f", mid, p.Spot())
	}
	if tick.Vol != 0.6 {
		t.Fatalf("tick vol = %.2f, want the path vol", tick.Vol)
	}

	wantHalf := p.Spot() * 10 / 2 / 10000
	if got := (tick.Ask - tick.Bid) / 2; math.Abs(got-wantHalf) > 1e-9 {
		t.Fatalf("half spread = %.6f, want %.6f", got, wantHalf)
	}
}

func TestPathDefaultsFillIn(t *testing.T) {
	p := NewPath(PathConfig{})
	if p.Spot() != DefaultPathConfig().Start {
		t.Fatalf("default start = %.2f", p.Spot())
	}
	if p.Next() <= 0 {
		t.Fatalf("default path produced non-positive spot")
	}
}
