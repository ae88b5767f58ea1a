package sim

import (
	"context"
	"errors"
	"time"

	"options-mm-go/marketdata"
	"options-mm-go/pricing"
	"options-mm-go/risk"
	"options-mm-go/venue"
)

// RunnerConfig shapes one simulated session.
type RunnerConfig struct {
	// Underlying is the symbol the path drives.
	Underlying string `yaml:"underlying"`
	// Ticks caps the session length; zero runs until the context ends.
	Ticks int `yaml:"ticks"`
	// Interval paces steps on the wall clock so the engine's cadence
	// loops interleave with the market. Zero steps as fast as possible.
	Interval time.Duration `yaml:"interval"`

	Path  PathConfig `yaml:"path"`
	Fills FillConfig `yaml:"fills"`
}

// DefaultRunnerConfig simulates a few minutes of BTC model time at a
// real-time-ish pace.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Underlying: "BTC",
		Ticks:      200,
		Interval:   50 * time.Millisecond,
		Path:       DefaultPathConfig(),
		Fills:      DefaultFillConfig(),
	}
}

// RunnerStats summarizes a session.
type RunnerStats struct {
	Ticks    int     `json:"ticks"`
	Fills    int     `json:"fills"`
	Notional float64 `json:"notional"`
	LastSpot float64 `json:"last_spot"`
}

// Runner replays a synthetic market against the live stack: each step
// advances the underlying path, feeds the tick to the market-data
// handler, and lets the flow model trade against whatever the engine
// has resting in the books. Drive it from one goroutine.
type Runner struct {
	cfg     RunnerConfig
	path    *Path
	fills   *FillModel
	handler *marketdata.Handler
	books   *BookSet
	clock   risk.Clock

	stats RunnerStats
}

// NewRunner assembles a session. The sink receives every simulated
// execution; hand it the app's OnFill to close the loop.
func NewRunner(cfg RunnerConfig, handler *marketdata.Handler, board *pricing.Board, books *BookSet, sink func(venue.Fill)) (*Runner, error) {
	if cfg.Underlying == "" {
		return nil, errors.New("sim: underlying is required")
	}
	if handler == nil || board == nil || books == nil {
		return nil, errors.New("sim: handler, board, and books are required")
	}
	return &Runner{
		cfg:     cfg,
		path:    NewPath(cfg.Path),
		fills:   NewFillModel(cfg.Fills, board, sink),
		handler: handler,
		books:   books,
		clock:   risk.NowUTC,
	}, nil
}

// SetClock overrides the timestamp source, for tests.
func (r *Runner) SetClock(clk risk.Clock) { r.clock = clk }

// Step advances the market by one tick and one round of flow.
func (r *Runner) Step() error {
	at := r.clock.Now()
	r.path.Next()
	if _, err := r.handler.OnTick(r.path.Tick(r.cfg.Underlying, at)); err != nil {
		return err
	}
	r.fills.Step(r.books, at)

	r.stats.Ticks++
	r.stats.Fills = r.fills.Fills()
	r.stats.Notional = r.fills.Notional()
	r.stats.LastSpot = r.path.Spot()
	return nil
}

// Run steps until the tick cap or the context ends. A nil error means
// the cap was reached.
func (r *Runner) Run(ctx context.Context) error {
	var tick *time.Ticker
	if r.cfg.Interval > 0 {
		tick = time.NewTicker(r.cfg.Interval)
		defer tick.Stop()
	}
	for i := 0; r.cfg.Ticks == 0 || i < r.cfg.Ticks; i++ {
		if err := r.Step(); err != nil {
			return err
		}
		if tick == nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
	return nil
}

// Stats returns the session counters so far.
func (r *Runner) Stats() RunnerStats { return r.stats }
