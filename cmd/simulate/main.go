// simulate runs the full quoting stack against a synthetic market and
// prints a session report: flow, P&L, attribution, and markout quality.
// Without -config it uses the built-in listing with quiet logging.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"options-mm-go/config"
	"options-mm-go/sim"
)

func main() {
	cfgPath := flag.String("config", "", "config file path (empty = built-in defaults)")
	underlying := flag.String("underlying", "BTC", "underlying the path drives")
	ticks := flag.Int("ticks", 600, "number of market ticks to simulate")
	intervalMs := flag.Int("interval-ms", 25, "wall-clock pacing between ticks")
	spot := flag.Float64("spot", 50_000, "starting spot")
	vol := flag.Float64("vol", 0.6, "annualized path volatility")
	drift := flag.Float64("drift", 0, "annualized drift")
	intensity := flag.Float64("intensity", 0.4, "at-theo fill probability per quote per tick")
	feeBps := flag.Float64("fee-bps", 2, "taker fee on fill notional")
	seed := flag.Int64("seed", 0, "random seed (0 = wall clock)")
	flag.Parse()

	if err := run(*cfgPath, sim.RunnerConfig{
		Underlying: *underlying,
		Ticks:      *ticks,
		Interval:   time.Duration(*intervalMs) * time.Millisecond,
		Path: sim.PathConfig{
			Start: *spot,
			Drift: *drift,
			Vol:   *vol,
			Step:  time.Second,
			Seed:  *seed,
		},
		Fills: sim.FillConfig{
			Intensity: *intensity,
			FeeBps:    *feeBps,
			Seed:      *seed,
		},
	}); err != nil {
		fmt.Fprintf(os.Stderr, "simulate: %v\n", err)
		os.Exit(1)
	}
}

func run(cfgPath string, rcfg sim.RunnerConfig) error {
	var cfg config.AppConfig
	if cfgPath == "" {
		cfg = config.DefaultConfig()
		cfg.Logging.Level = "warn"
		cfg.Metrics.Enabled = false
		cfg.Feed.Enabled = false
		cfg.HotReload.Enabled = false
	} else {
		var err error
		if cfg, err = config.LoadWithEnvOverrides(cfgPath); err != nil {
			return err
		}
	}

	h, err := sim.BuildHarness(cfg, rcfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := h.App.Start(ctx); err != nil {
		return err
	}
	runErr := h.Runner.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		h.App.Stop()
		return runErr
	}

	report(h)
	return h.App.Stop()
}

func report(h *sim.Harness) {
	stats := h.Runner.Stats()
	fmt.Printf("session: %d ticks, last spot %.2f\n", stats.Ticks, stats.LastSpot)
	fmt.Printf("flow:    %d fills, %.2f notional\n", stats.Fills, stats.Notional)

	es := h.App.Engine().GetStatistics()
	fmt.Printf("engine:  %d quote cycles, %d submitted, %d pulled, %d hedge orders, %d errors\n",
		es.QuoteCycles, es.QuotesSubmitted, es.QuotesPulled, es.HedgeOrders, es.Errors)

	rep := h.App.PnL().MarkToMarket()
	fmt.Printf("pnl:     realized %.2f, unrealized %.2f, fees %.2f, net %.2f (%d open, %d unpriced)\n",
		rep.Realized, rep.Unrealized, rep.Fees, rep.Net, rep.OpenPositions, rep.Unpriced)

	unds := make([]string, 0, len(h.App.Trackers()))
	for und := range h.App.Trackers() {
		unds = append(unds, und)
	}
	sort.Strings(unds)
	for _, und := range unds {
		cum := h.App.Trackers()[und].Attributor().Cumulative()
		fmt.Printf("attrib:  %s %s\n", und, cum.String())
	}

	mk := h.App.Markout().Stats()
	fmt.Printf("markout: %d/%d analyzed, adverse rate %.2f, avg bps %v\n",
		mk.AnalyzedFills, mk.TotalFills, mk.AdverseRate, mk.AvgMarkoutBps)

	if reason, at, halted := h.App.Controller().HaltInfo(); halted {
		fmt.Printf("halted:  %s at %s\n", reason, at.Format(time.RFC3339))
	}
}
