package engine

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"options-mm-go/chain"
	"options-mm-go/hedging"
	"options-mm-go/infrastructure/logger"
	"options-mm-go/infrastructure/monitor"
	"options-mm-go/inventory"
	"options-mm-go/pnl"
	"options-mm-go/pricing"
	"options-mm-go/quoting"
	"options-mm-go/risk"
	"options-mm-go/venue"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time { return f.t }

func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

type fixture struct {
	engine    *Engine
	chain     *chain.Chain
	board     *pricing.Board
	ledger    *inventory.Ledger
	ctrl      *risk.Controller
	gen       *quoting.Generator
	hedger    *hedging.Hedger
	hedgeBook *venue.MemBook
	clock     *fakeClock
	call      *chain.Contract
	put       *chain.Contract
}

func newFixture(t *testing.T, limits risk.Limits) *fixture {
	t.Helper()
	clk := &fakeClock{t: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
	expiry := clk.t.Add(30 * 24 * time.Hour)

	ch := chain.NewChain(func(string) venue.Book { return venue.NewMemBook() })
	call, err := ch.Ensure("BTC", 50_000, expiry, chain.Call)
	if err != nil {
		t.Fatalf("ensure call: %v", err)
	}
	put, err := ch.Ensure("BTC", 50_000, expiry, chain.Put)
	if err != nil {
		t.Fatalf("ensure put: %v", err)
	}

	board := pricing.NewBoard()
	ledger := inventory.NewLedger(nil)
	ledger.SetMultiplier(func(string) float64 { return 1 })
	agg := inventory.NewAggregator(ch, ledger, board)

	ctrl := risk.NewController(limits)
	ctrl.SetClock(clk)

	calc, err := quoting.NewCalculator(quoting.DefaultParams())
	if err != nil {
		t.Fatalf("NewCalculator: %v", err)
	}
	gen := quoting.NewGenerator(calc, quoting.GeneratorConfig{PriceTolerance: 0.0001, SizeTolerance: 0.5})
	gen.SetClock(clk)

	hp := hedging.DefaultParams()
	hp.EnterThreshold = 50
	hp.ExitThreshold = 40
	hp.MinHedgeSize = 1
	hp.UseLimitOrders = false
	hedger, err := hedging.NewHedger("BTC", hp)
	if err != nil {
		t.Fatalf("NewHedger: %v", err)
	}
	hedger.SetClock(clk)
	hedger.SetController(ctrl)
	hedgeBook := venue.NewMemBook()

	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}

	eng, err := New(
		Config{QuoteInterval: time.Second, RiskInterval: time.Second},
		Components{
			Chain:      ch,
			Board:      board,
			Ledger:     ledger,
			Aggregator: agg,
			Controller: ctrl,
			Generator:  gen,
			PnL:        pnl.NewCalculator(ledger, board),
			Logger:     log,
			Hedgers:    map[string]*hedging.Hedger{"BTC": hedger},
			HedgeBooks: map[string]venue.Book{"BTC": hedgeBook},
		},
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	eng.SetClock(clk)
	eng.tradeDay = clk.t.Format("2006-01-02")

	return &fixture{
		engine:    eng,
		chain:     ch,
		board:     board,
		ledger:    ledger,
		ctrl:      ctrl,
		gen:       gen,
		hedger:    hedger,
		hedgeBook: hedgeBook,
		clock:     clk,
		call:      call,
		put:       put,
	}
}

// publish puts one pricing tick on the board, spot hedge theo included.
func (f *fixture) publish(spot, vol float64) {
	snap := pricing.NewSnapshot(f.clock.t)
	snap.Spots["BTC"] = spot
	snap.Vols["BTC"] = vol
	snap.Theos[f.call.Symbol] = pricing.TheoreticalValue{
		Price:  2500,
		Greeks: pricing.Greeks{Delta: 0.5, Gamma: 0.0001, Vega: 80, Theta: -40},
		AsOf:   f.clock.t,
	}
	snap.Theos[f.put.Symbol] = pricing.TheoreticalValue{
		Price:  2400,
		Greeks: pricing.Greeks{Delta: -0.5, Gamma: 0.0001, Vega: 80, Theta: -40},
		AsOf:   f.clock.t,
	}
	snap.Theos[chain.SpotSymbol("BTC")] = pricing.TheoreticalValue{
		Price:  spot,
		Greeks: pricing.Greeks{Delta: 1},
		AsOf:   f.clock.t,
	}
	f.board.Publish(snap)
}

func TestNewRejectsBadWiring(t *testing.T) {
	f := newFixture(t, risk.DefaultLimits())
	good := f.engine.comps

	if _, err := New(Config{QuoteInterval: 0, RiskInterval: time.Second}, good); err == nil {
		t.Fatalf("zero quote interval accepted")
	}
	if _, err := New(Config{QuoteInterval: time.Second, RiskInterval: 0}, good); err == nil {
		t.Fatalf("zero risk interval accepted")
	}

	noChain := good
	noChain.Chain = nil
	if _, err := New(Config{QuoteInterval: time.Second, RiskInterval: time.Second}, noChain); err == nil {
		t.Fatalf("nil chain accepted")
	}
	noLogger := good
	noLogger.Logger = nil
	if _, err := New(Config{QuoteInterval: time.Second, RiskInterval: time.Second}, noLogger); err == nil {
		t.Fatalf("nil logger accepted")
	}
}

func TestQuoteCycleSubmitsTwoSidedQuotes(t *testing.T) {
	f := newFixture(t, risk.DefaultLimits())
	f.publish(50_000, 0.6)

	f.engine.quoteCycle()

	for _, c := range []*chain.Contract{f.call, f.put} {
		top := c.Book().BestQuote()
		if !top.TwoSided {
			t.Fatalf("%s book not two-sided after cycle: %+v", c.Symbol, top)
		}
		if top.Bid >= top.Ask {
			t.Fatalf("%s crossed: bid %.4f ask %.4f", c.Symbol, top.Bid, top.Ask)
		}
	}

	stats := f.engine.GetStatistics()
	if stats.QuotesSubmitted != 2 {
		t.Fatalf("QuotesSubmitted = %d, want 2", stats.QuotesSubmitted)
	}
	if stats.QuoteCycles != 1 {
		t.Fatalf("QuoteCycles = %d, want 1", stats.QuoteCycles)
	}
	if got := f.gen.Active().Len(); got != 2 {
		t.Fatalf("active quotes = %d, want 2", got)
	}
}

func TestQuoteCycleSkipsUnpricedContract(t *testing.T) {
	f := newFixture(t, risk.DefaultLimits())

	snap := pricing.NewSnapshot(f.clock.t)
	snap.Spots["BTC"] = 50_000
	snap.Vols["BTC"] = 0.6
	snap.Theos[f.call.Symbol] = pricing.TheoreticalValue{Price: 2500, AsOf: f.clock.t}
	f.board.Publish(snap)

	f.engine.quoteCycle()

	if !f.call.Book().BestQuote().TwoSided {
		t.Fatalf("priced call not quoted")
	}
	if top := f.put.Book().BestQuote(); top.BidSize != 0 || top.AskSize != 0 {
		t.Fatalf("unpriced put quoted anyway: %+v", top)
	}
	if stats := f.engine.GetStatistics(); stats.QuotesSubmitted != 1 {
		t.Fatalf("QuotesSubmitted = %d, want 1", stats.QuotesSubmitted)
	}
}

func TestHaltPullsRestingQuotes(t *testing.T) {
	f := newFixture(t, risk.DefaultLimits())
	f.publish(50_000, 0.6)
	f.engine.quoteCycle()
	if f.gen.Active().Len() != 2 {
		t.Fatalf("setup: expected 2 resting quotes")
	}

	f.ctrl.Halt("operator stop")
	f.engine.quoteCycle()

	if got := f.gen.Active().Len(); got != 0 {
		t.Fatalf("active quotes after halt = %d, want 0", got)
	}
	for _, c := range []*chain.Contract{f.call, f.put} {
		if top := c.Book().BestQuote(); top.BidSize != 0 || top.AskSize != 0 {
			t.Fatalf("%s still has resting orders after halt: %+v", c.Symbol, top)
		}
	}

	// The flag only clears through an explicit reset; quoting resumes on
	// the next cycle after it.
	f.ctrl.Reset()
	f.engine.quoteCycle()
	if got := f.gen.Active().Len(); got != 2 {
		t.Fatalf("active quotes after reset = %d, want 2", got)
	}
}

func TestQuoteCyclePullsExpiredContracts(t *testing.T) {
	f := newFixture(t, risk.DefaultLimits())
	f.publish(50_000, 0.6)
	f.engine.quoteCycle()
	if f.gen.Active().Len() != 2 {
		t.Fatalf("setup: expected 2 resting quotes")
	}

	f.clock.advance(31 * 24 * time.Hour)
	f.publish(50_000, 0.6)
	f.engine.quoteCycle()

	if got := f.gen.Active().Len(); got != 0 {
		t.Fatalf("active quotes past expiry = %d, want 0", got)
	}
	if stats := f.engine.GetStatistics(); stats.QuotesPulled != 2 {
		t.Fatalf("QuotesPulled = %d, want 2", stats.QuotesPulled)
	}
}

func TestOnFillRoutesToLedgerAndGenerator(t *testing.T) {
	f := newFixture(t, risk.DefaultLimits())
	f.publish(50_000, 0.6)
	f.engine.quoteCycle()

	entry, ok := f.gen.Active().Get(f.call.Symbol)
	if !ok || entry.BidOrderID == "" {
		t.Fatalf("no resting bid to fill: %+v", entry)
	}

	f.engine.OnFill(venue.Fill{
		Symbol:   f.call.Symbol,
		OrderID:  entry.BidOrderID,
		Side:     venue.Buy,
		Quantity: 3,
		Price:    entry.Last.BidPrice,
		Fee:      0.25,
		At:       f.clock.t,
	})

	pos, ok := f.ledger.Position(f.call.Symbol)
	if !ok {
		t.Fatalf("no position after fill")
	}
	if view := pos.View(); view.Quantity != 3 || view.Fees != 0.25 {
		t.Fatalf("position = %+v, want qty 3 fees 0.25", view)
	}
	after, _ := f.gen.Active().Get(f.call.Symbol)
	if after.BidOrderID != "" {
		t.Fatalf("filled bid order id not cleared: %+v", after)
	}
	if after.AskOrderID == "" {
		t.Fatalf("untouched ask order id dropped: %+v", after)
	}
	if stats := f.engine.GetStatistics(); stats.Fills != 1 {
		t.Fatalf("Fills = %d, want 1", stats.Fills)
	}
}

func TestRiskCycleEmitsHedge(t *testing.T) {
	// The cap must clear the projected hedge notional (60 lots at spot)
	// or the controller would skip the order.
	limits := risk.DefaultLimits()
	limits.MaxPositionValue = 10_000_000
	f := newFixture(t, limits)
	f.publish(50_000, 0.6)

	// 120 calls at delta 0.5 put portfolio delta at 60, past the enter
	// threshold of 50.
	if _, err := f.ledger.ApplyFill(f.call.Symbol, 120, 2500, 0); err != nil {
		t.Fatalf("seed position: %v", err)
	}

	f.engine.riskCycle()

	top := f.hedgeBook.BestQuote()
	if top.AskSize != 60 {
		t.Fatalf("hedge book ask size = %.2f, want sell 60: %+v", top.AskSize, top)
	}
	if top.Ask != 50_000 {
		t.Fatalf("market hedge priced at %.2f, want spot 50000", top.Ask)
	}
	if f.hedger.State() != hedging.Breached {
		t.Fatalf("hedger state = %s, want breached", f.hedger.State())
	}
	if stats := f.engine.GetStatistics(); stats.HedgeOrders != 1 {
		t.Fatalf("HedgeOrders = %d, want 1", stats.HedgeOrders)
	}
}

func TestHedgeFillFlattensExposure(t *testing.T) {
	limits := risk.DefaultLimits()
	limits.MaxPositionValue = 10_000_000
	f := newFixture(t, limits)
	f.publish(50_000, 0.6)
	if _, err := f.ledger.ApplyFill(f.call.Symbol, 120, 2500, 0); err != nil {
		t.Fatalf("seed position: %v", err)
	}
	f.engine.riskCycle()

	// The hedge sell fills: the spot position now carries -60 delta and
	// the band disarms on the next cycle without another order.
	f.engine.OnFill(venue.Fill{
		Symbol:   chain.SpotSymbol("BTC"),
		OrderID:  "hedge-fill",
		Side:     venue.Sell,
		Quantity: 60,
		Price:    50_000,
		At:       f.clock.t,
	})

	f.clock.advance(time.Minute)
	f.engine.riskCycle()

	if f.hedger.State() != hedging.WithinBand {
		t.Fatalf("hedger state = %s, want within_band after flattening", f.hedger.State())
	}
	if stats := f.engine.GetStatistics(); stats.HedgeOrders != 1 {
		t.Fatalf("HedgeOrders = %d, want still 1", stats.HedgeOrders)
	}
}

func TestRiskCycleHaltsOnDailyLoss(t *testing.T) {
	limits := risk.DefaultLimits()
	limits.MaxDailyLoss = 100
	f := newFixture(t, limits)
	f.publish(50_000, 0.6)
	f.engine.quoteCycle()

	// Round trip at a 1000 loss, far past the 100 cap.
	if _, err := f.ledger.ApplyFill(f.call.Symbol, 10, 300, 0); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.ledger.ApplyFill(f.call.Symbol, -10, 200, 0); err != nil {
		t.Fatalf("close: %v", err)
	}

	f.engine.riskCycle()

	if !f.ctrl.Halted() {
		t.Fatalf("controller not halted after daily loss breach")
	}
	if got := f.gen.Active().Len(); got != 0 {
		t.Fatalf("quotes still resting after loss halt: %d", got)
	}
	if f.ctrl.DailyPnL() != -1000 {
		t.Fatalf("daily pnl = %.2f, want -1000", f.ctrl.DailyPnL())
	}

	// The breach persists on the next cycle but the halt is already set;
	// nothing re-fires.
	f.engine.riskCycle()
	if !f.ctrl.Halted() {
		t.Fatalf("halt flag cleared without a reset")
	}
}

func TestDailyRolloverRebasesLossTracking(t *testing.T) {
	f := newFixture(t, risk.DefaultLimits())
	f.publish(50_000, 0.6)

	if _, err := f.ledger.ApplyFill(f.call.Symbol, 10, 300, 0); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.ledger.ApplyFill(f.call.Symbol, -10, 200, 0); err != nil {
		t.Fatalf("close: %v", err)
	}
	f.engine.riskCycle()
	if f.ctrl.DailyPnL() != -1000 {
		t.Fatalf("day one pnl = %.2f, want -1000", f.ctrl.DailyPnL())
	}

	// Yesterday's realized loss does not count against today's limit.
	f.clock.advance(24 * time.Hour)
	f.publish(50_000, 0.6)
	f.engine.riskCycle()
	if f.ctrl.DailyPnL() != 0 {
		t.Fatalf("post-rollover pnl = %.2f, want 0", f.ctrl.DailyPnL())
	}
}

func TestBookForResolvesChainAndHedgeSymbols(t *testing.T) {
	f := newFixture(t, risk.DefaultLimits())

	if book, ok := f.engine.bookFor(f.call.Symbol); !ok || book != f.call.Book() {
		t.Fatalf("call symbol resolved to wrong book")
	}
	if book, ok := f.engine.bookFor(chain.SpotSymbol("BTC")); !ok || book != venue.Book(f.hedgeBook) {
		t.Fatalf("spot symbol did not resolve to the hedge book")
	}
	if _, ok := f.engine.bookFor("ETH-20270101-3000-C"); ok {
		t.Fatalf("unknown symbol resolved")
	}
}

func TestRiskCycleSweepsAdvisoryLimits(t *testing.T) {
	limits := risk.DefaultLimits()
	limits.MaxPositionValue = 100_000_000
	f := newFixture(t, limits)
	f.publish(50_000, 0.6)

	mon := monitor.New(monitor.DefaultConfig())
	f.engine.comps.Monitor = mon
	f.engine.SetPositionLimits(inventory.PositionLimits{
		MaxPerContract:   10,
		MaxPerUnderlying: 15,
	})

	if _, err := f.ledger.ApplyFill(f.call.Symbol, 25, 2500, 0); err != nil {
		t.Fatalf("seed: %v", err)
	}
	f.engine.riskCycle()

	// Advisory caps report but never halt.
	if f.ctrl.Halted() {
		t.Fatalf("advisory sweep halted trading")
	}
	n, err := testutil.GatherAndCount(mon.Registry(), "omm_engine_position_limit_advisories_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n == 0 {
		t.Fatalf("no advisory series recorded")
	}
}

func TestStartStopLifecycle(t *testing.T) {
	f := newFixture(t, risk.DefaultLimits())

	if got := f.engine.GetState(); got != StateIdle {
		t.Fatalf("initial state = %s, want IDLE", got)
	}
	if err := f.engine.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := f.engine.GetState(); got != StateRunning {
		t.Fatalf("state after start = %s, want RUNNING", got)
	}
	if err := f.engine.Start(context.Background()); err == nil {
		t.Fatalf("second Start accepted")
	}
	if err := f.engine.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := f.engine.GetState(); got != StateStopped {
		t.Fatalf("state after stop = %s, want STOPPED", got)
	}
	if err := f.engine.Stop(); err == nil {
		t.Fatalf("second Stop accepted")
	}
}
