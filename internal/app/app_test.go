package app

import (
	"context"
	"testing"
	"time"

	"options-mm-go/chain"
	"options-mm-go/config"
	"options-mm-go/infrastructure/logger"
	"options-mm-go/internal/engine"
	"options-mm-go/pricing"
	"options-mm-go/venue"
)

// flatPricer returns a fixed theo so wiring tests need no model.
type flatPricer struct{}

func (flatPricer) TheoreticalValue(req pricing.Request) (pricing.TheoreticalValue, error) {
	if err := req.Validate(); err != nil {
		return pricing.TheoreticalValue{}, err
	}
	return pricing.TheoreticalValue{Price: 100, Greeks: pricing.Greeks{Delta: 0.5}}, nil
}

func testConfig() config.AppConfig {
	cfg := config.DefaultConfig()
	cfg.Logging = logger.Config{Level: "error", Format: "console"}
	cfg.Metrics.Enabled = false
	cfg.Feed.Enabled = false
	cfg.Journal.Enabled = false
	cfg.HotReload.Enabled = false
	return cfg
}

func buildApp(t *testing.T) *App {
	t.Helper()
	a, err := NewFromConfig(testConfig(), Options{Pricer: flatPricer{}})
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	if err := a.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}
	return a
}

func TestBuildWiresEveryComponent(t *testing.T) {
	a := buildApp(t)

	if a.Engine() == nil || a.Handler() == nil || a.Chain() == nil || a.Board() == nil {
		t.Fatalf("core components missing after Build")
	}
	if a.Controller() == nil || a.Markout() == nil {
		t.Fatalf("risk or post-trade components missing after Build")
	}

	// The default config lists BTC: two expiries, five strikes, both
	// styles.
	contracts, err := a.Chain().ContractsUnder(chain.UnderlyingLevel("BTC"))
	if err != nil {
		t.Fatalf("ContractsUnder: %v", err)
	}
	if len(contracts) != 20 {
		t.Fatalf("listed %d contracts, want 20", len(contracts))
	}
	if _, ok := a.HedgeBooks()["BTC"]; !ok {
		t.Fatalf("no hedge book for BTC")
	}
}

func TestMultiplierResolution(t *testing.T) {
	cfg := testConfig()
	uc := cfg.Underlyings["BTC"]
	uc.Multiplier = 5
	cfg.Underlyings["BTC"] = uc

	a, err := NewFromConfig(cfg, Options{Pricer: flatPricer{}})
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	if err := a.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}

	if got := a.multiplierFor("BTC-20260401-50000-C"); got != 5 {
		t.Errorf("option multiplier = %f, want 5", got)
	}
	if got := a.multiplierFor(chain.SpotSymbol("BTC")); got != 1 {
		t.Errorf("spot multiplier = %f, want 1", got)
	}
	if got := a.multiplierFor("XRP-20260401-1-C"); got != 1 {
		t.Errorf("unknown underlying multiplier = %f, want 1", got)
	}
}

func TestConstraintsLookup(t *testing.T) {
	a := buildApp(t)

	c, ok := a.constraintsFor("BTC-20260401-50000-C")
	if !ok {
		t.Fatalf("no constraints for listed underlying")
	}
	if c.TickSize != a.cfg.Underlyings["BTC"].Constraints.TickSize {
		t.Errorf("tick size = %f, want %f", c.TickSize, a.cfg.Underlyings["BTC"].Constraints.TickSize)
	}
	if _, ok := a.constraintsFor("XRP-20260401-1-C"); ok {
		t.Errorf("constraints resolved for unlisted underlying")
	}
}

func TestOnFillReachesLedgerAndMarkout(t *testing.T) {
	a := buildApp(t)

	contracts, err := a.Chain().ContractsUnder(chain.UnderlyingLevel("BTC"))
	if err != nil {
		t.Fatalf("ContractsUnder: %v", err)
	}
	sym := contracts[0].Symbol

	a.OnFill(venue.Fill{
		Symbol: sym, OrderID: "x", Side: venue.Buy, Quantity: 2, Price: 100,
		At: time.Now().UTC(),
	})

	pos, ok := a.ledger.Position(sym)
	if !ok {
		t.Fatalf("fill did not open a position")
	}
	if got := pos.View().Quantity; got != 2 {
		t.Errorf("position quantity = %f, want 2", got)
	}
	if a.markout.Pending() != 1 {
		t.Errorf("markout pending = %d, want 1", a.markout.Pending())
	}
}

func TestApplyConfigSwapsRiskLimits(t *testing.T) {
	a := buildApp(t)

	next := testConfig()
	next.Risk.MaxDailyLoss = 123
	next.Limits = config.LimitsConfig{Preset: "large"}
	a.ApplyConfig(next)

	if got := a.Controller().Limits().MaxDailyLoss; got != 123 {
		t.Errorf("MaxDailyLoss = %f, want 123", got)
	}
}

func TestStartStopLifecycle(t *testing.T) {
	a := buildApp(t)

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := a.HealthCheck(); err != nil {
		t.Fatalf("HealthCheck after start: %v", err)
	}
	if got := a.Engine().GetState(); got != engine.StateRunning {
		t.Fatalf("engine state = %s, want RUNNING", got)
	}

	if err := a.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := a.Engine().GetState(); got != engine.StateStopped {
		t.Fatalf("engine state after stop = %s, want STOPPED", got)
	}
}
