package sim

import (
	"math"
	"testing"
	"time"

	"options-mm-go/pricing"
	"options-mm-go/venue"
)

const simSym = "BTC-20260401-50000-C"

func boardWithTheo(sym string, theo float64) *pricing.Board {
	b := pricing.NewBoard()
	snap := pricing.NewSnapshot(time.Now().UTC())
	snap.Theos[sym] = pricing.TheoreticalValue{Price: theo}
	b.Publish(snap)
	return b
}

func TestFillModelFillsQuoteAtTheo(t *testing.T) {
	board := boardWithTheo(simSym, 2500)
	var got []venue.Fill
	m := NewFillModel(FillConfig{Intensity: 1, DecayBps: 25, FeeBps: 10, Seed: 1}, board, func(f venue.Fill) {
		got = append(got, f)
	})

	books := NewBookSet()
	book := books.Factory(simSym).(*venue.MemBook)
	if err := book.AddLimitOrder("q1", venue.Buy, 2500, 2); err != nil {
		t.Fatalf("rest order: %v", err)
	}

	at := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	if n := m.Step(books, at); n != 1 {
		t.Fatalf("fills emitted = %d, want 1", n)
	}
	if book.Len() != 0 {
		t.Fatalf("filled order still resting")
	}
	if len(got) != 1 {
		t.Fatalf("sink saw %d fills, want 1", len(got))
	}
	f := got[0]
	if f.Symbol != simSym || f.OrderID != "q1" || f.Side != venue.Buy {
		t.Fatalf("fill identity wrong: %+v", f)
	}
	if f.Quantity != 2 || f.Price != 2500 || !f.At.Equal(at) {
		t.Fatalf("fill terms wrong: %+v", f)
	}
	if want := 2500.0 * 2 * 10 / 10000; math.Abs(f.Fee-want) > 1e-9 {
		t.Fatalf("fee = %.4f, want %.4f", f.Fee, want)
	}
	if m.Fills() != 1 || m.Notional() != 5000 {
		t.Fatalf("model stats = %d fills %.0f notional", m.Fills(), m.Notional())
	}
}

func TestFillModelCrossedQuoteCapsAtIntensity(t *testing.T) {
	board := boardWithTheo(simSym, 2500)
	fills := 0
	m := NewFillModel(FillConfig{Intensity: 1, DecayBps: 25, Seed: 1}, board, func(venue.Fill) { fills++ })

	books := NewBookSet()
	book := books.Factory(simSym).(*venue.MemBook)
	// A bid through theo trades immediately.
	if err := book.AddLimitOrder("x1", venue.Buy, 2600, 1); err != nil {
		t.Fatalf("rest order: %v", err)
	}
	if n := m.Step(books, time.Now().UTC()); n != 1 {
		t.Fatalf("crossed quote did not fill: %d", n)
	}
	if fills != 1 {
		t.Fatalf("sink fills = %d, want 1", fills)
	}
}

func TestFillModelSkipsUnpricedSymbols(t *testing.T) {
	board := pricing.NewBoard()
	m := NewFillModel(FillConfig{Intensity: 1, DecayBps: 25, Seed: 1}, board, func(venue.Fill) {
		t.Fatalf("fill emitted without a theo")
	})

	books := NewBookSet()
	book := books.Factory(simSym).(*venue.MemBook)
	if err := book.AddLimitOrder("q1", venue.Buy, 2600, 1); err != nil {
		t.Fatalf("rest order: %v", err)
	}
	if n := m.Step(books, time.Now().UTC()); n != 0 {
		t.Fatalf("fills on unpriced symbol: %d", n)
	}
	if book.Len() != 1 {
		t.Fatalf("order removed without a fill")
	}
}

func TestFillModelDistanceLowersProbability(t *testing.T) {
	board := boardWithTheo(simSym, 2500)
	m := NewFillModel(FillConfig{Intensity: 0.8, DecayBps: 25, Seed: 1}, board, nil)

	at := m.prob(venue.Order{Side: venue.Buy, Price: 2500}, 2500)
	away := m.prob(venue.Order{Side: venue.Buy, Price: 2450}, 2500) // 200 bps away
	if at != 0.8 {
		t.Fatalf("at-theo probability = %.4f, want the intensity", at)
	}
	if away >= at {
		t.Fatalf("distance did not lower probability: %.4f >= %.4f", away, at)
	}
	if want := 0.8 * math.Exp(-200.0/25); math.Abs(away-want) > 1e-9 {
		t.Fatalf("away probability = %.6f, want %.6f", away, want)
	}

	// Asks mirror bids.
	sellAway := m.prob(venue.Order{Side: venue.Sell, Price: 2550}, 2500)
	if math.Abs(sellAway-away) > 1e-9 {
		t.Fatalf("sell-side distance %.6f != buy-side %.6f", sellAway, away)
	}
}

func TestBookSetReturnsSameBookPerSymbol(t *testing.T) {
	books := NewBookSet()
	a := books.Factory(simSym)
	b := books.Factory(simSym)
	if a != b {
		t.Fatalf("factory minted two books for one symbol")
	}
	if got, ok := books.Book(simSym); !ok || got != a {
		t.Fatalf("lookup did not return the minted book")
	}
	if _, ok := books.Book("ETH-SPOT"); ok {
		t.Fatalf("lookup invented a book")
	}
	books.Factory("AAA")
	syms := books.Symbols()
	if len(syms) != 2 || syms[0] != "AAA" || syms[1] != simSym {
		t.Fatalf("symbols = %v", syms)
	}
}
