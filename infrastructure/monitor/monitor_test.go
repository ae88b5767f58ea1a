package monitor

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestQuoteCountersBySeries(t *testing.T) {
	m := New(DefaultConfig())

	m.RecordQuoteSubmitted("BTC")
	m.RecordQuoteSubmitted("BTC")
	m.RecordQuoteSubmitted("ETH")
	m.RecordQuotePulled("BTC")
	m.RecordQuoteThrottled()
	m.RecordQuoteBlocked()

	if got := testutil.ToFloat64(m.quotesSubmitted.WithLabelValues("BTC")); got != 2 {
		t.Errorf("quotesSubmitted[BTC] = %f, want 2", got)
	}
	if got := testutil.ToFloat64(m.quotesSubmitted.WithLabelValues("ETH")); got != 1 {
		t.Errorf("quotesSubmitted[ETH] = %f, want 1", got)
	}
	if got := testutil.ToFloat64(m.quotesPulled.WithLabelValues("BTC")); got != 1 {
		t.Errorf("quotesPulled[BTC] = %f, want 1", got)
	}
	if got := testutil.ToFloat64(m.quotesThrottled); got != 1 {
		t.Errorf("quotesThrottled = %f, want 1", got)
	}
	if got := testutil.ToFloat64(m.quotesBlocked); got != 1 {
		t.Errorf("quotesBlocked = %f, want 1", got)
	}
}

func TestFillVolumeAccumulates(t *testing.T) {
	m := New(DefaultConfig())

	m.RecordFill("buy", 3)
	m.RecordFill("sell", 2)
	m.RecordFill("buy", -4)

	if got := testutil.ToFloat64(m.fills.WithLabelValues("buy")); got != 2 {
		t.Errorf("fills[buy] = %f, want 2", got)
	}
	// Volume counts magnitude regardless of sign.
	if got := testutil.ToFloat64(m.filledVolume); got != 9 {
		t.Errorf("filledVolume = %f, want 9", got)
	}
}

func TestHedgeQuantityUsesMagnitude(t *testing.T) {
	m := New(DefaultConfig())

	m.RecordHedgeOrder("BTC", -5)
	m.RecordHedgeOrder("BTC", 3)
	m.RecordHedgeSkip()

	if got := testutil.ToFloat64(m.hedgeOrders.WithLabelValues("BTC")); got != 2 {
		t.Errorf("hedgeOrders[BTC] = %f, want 2", got)
	}
	if got := testutil.ToFloat64(m.hedgedQty.WithLabelValues("BTC")); got != 8 {
		t.Errorf("hedgedQty[BTC] = %f, want 8", got)
	}
	if got := testutil.ToFloat64(m.hedgeSkips); got != 1 {
		t.Errorf("hedgeSkips = %f, want 1", got)
	}
}

func TestHaltGaugeTracksFlag(t *testing.T) {
	m := New(DefaultConfig())

	if got := testutil.ToFloat64(m.tradingHalted); got != 0 {
		t.Fatalf("tradingHalted starts at %f, want 0", got)
	}
	m.SetHalted(true)
	if got := testutil.ToFloat64(m.tradingHalted); got != 1 {
		t.Errorf("tradingHalted after halt = %f, want 1", got)
	}
	m.SetHalted(false)
	if got := testutil.ToFloat64(m.tradingHalted); got != 0 {
		t.Errorf("tradingHalted after resume = %f, want 0", got)
	}
}

func TestBreachAndAdvisoryAreSeparateSeries(t *testing.T) {
	m := New(DefaultConfig())

	m.RecordBreach("delta")
	m.RecordLimitAdvisory("quantity")
	m.RecordLimitAdvisory("quantity")

	if got := testutil.ToFloat64(m.breaches.WithLabelValues("delta")); got != 1 {
		t.Errorf("breaches[delta] = %f, want 1", got)
	}
	if got := testutil.ToFloat64(m.limitAdvisories.WithLabelValues("quantity")); got != 2 {
		t.Errorf("limitAdvisories[quantity] = %f, want 2", got)
	}
}

func TestGreeksAndPnLGauges(t *testing.T) {
	m := New(DefaultConfig())

	m.UpdateGreeks("BTC", 12.5, -0.3, 400, -55)
	m.UpdatePnL(1000, -250, 12)
	m.UpdateSpot("BTC", 50_000)

	if got := testutil.ToFloat64(m.delta.WithLabelValues("BTC")); got != 12.5 {
		t.Errorf("delta[BTC] = %f, want 12.5", got)
	}
	if got := testutil.ToFloat64(m.theta.WithLabelValues("BTC")); got != -55 {
		t.Errorf("theta[BTC] = %f, want -55", got)
	}
	if got := testutil.ToFloat64(m.realizedPnL); got != 1000 {
		t.Errorf("realizedPnL = %f, want 1000", got)
	}
	if got := testutil.ToFloat64(m.unrealizedPnL); got != -250 {
		t.Errorf("unrealizedPnL = %f, want -250", got)
	}
	if got := testutil.ToFloat64(m.spotPrice.WithLabelValues("BTC")); got != 50_000 {
		t.Errorf("spotPrice[BTC] = %f, want 50000", got)
	}
}

func TestSeparateRegistriesDoNotCollide(t *testing.T) {
	a := New(DefaultConfig())
	b := New(DefaultConfig())

	a.RecordQuoteSubmitted("BTC")

	if got := testutil.ToFloat64(b.quotesSubmitted.WithLabelValues("BTC")); got != 0 {
		t.Errorf("second monitor sees %f submissions, want 0", got)
	}
	if a.Registry() == b.Registry() {
		t.Error("monitors share a registry")
	}
}
