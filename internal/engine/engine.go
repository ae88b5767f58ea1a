// Package engine drives the quoting desk: it owns the cadence loops
// that turn board snapshots into resting quotes, evaluate risk, hedge
// delta, and account fills. All market contact goes through the venue
// book interfaces; the engine itself never dials anything.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"options-mm-go/chain"
	"options-mm-go/hedging"
	"options-mm-go/infrastructure/feed"
	"options-mm-go/infrastructure/logger"
	"options-mm-go/infrastructure/monitor"
	"options-mm-go/inventory"
	"options-mm-go/marketdata"
	"options-mm-go/pnl"
	"options-mm-go/pricing"
	"options-mm-go/quoting"
	"options-mm-go/risk"
	"options-mm-go/venue"
)

// State is the engine lifecycle position.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Config sets the cadences of the engine loops.
type Config struct {
	// QuoteInterval is the pass over every quoted contract.
	QuoteInterval time.Duration
	// RiskInterval drives limit evaluation, hedging and P&L marking.
	RiskInterval time.Duration
	// RebalanceInterval schedules band-ignoring delta flattening.
	// Zero disables it.
	RebalanceInterval time.Duration
}

// Components are the collaborators the engine orchestrates. Chain,
// Board, Ledger, Aggregator, Controller, Generator, PnL and Logger are
// required; the rest degrade to no-ops when absent.
type Components struct {
	Chain      *chain.Chain
	Board      *pricing.Board
	Ledger     *inventory.Ledger
	Aggregator *inventory.Aggregator
	Controller *risk.Controller
	Generator  *quoting.Generator
	PnL        *pnl.Calculator
	Logger     *logger.Logger

	// Hedgers and HedgeBooks are keyed by underlying. A hedger without
	// a book logs and drops its orders.
	Hedgers    map[string]*hedging.Hedger
	HedgeBooks map[string]venue.Book

	// Trackers run per-underlying P&L attribution, keyed by underlying.
	Trackers map[string]*pnl.Tracker

	// PositionLimits are the advisory per-level caps swept each risk
	// cycle. The zero value disables the sweep.
	PositionLimits inventory.PositionLimits

	// Ticks is the repriced tick stream; used for observability only.
	Ticks *marketdata.Publisher

	Monitor  *monitor.Monitor
	Notifier *risk.Notifier
	Feed     *feed.Hub
}

// Statistics counts engine activity since Start.
type Statistics struct {
	StartTime       time.Time
	Ticks           int64
	QuoteCycles     int64
	QuotesSubmitted int64
	QuotesPulled    int64
	Fills           int64
	HedgeOrders     int64
	Errors          int64
	LastQuoteAt     time.Time
	LastFillAt      time.Time
}

// Engine wires the components into the cadence loops.
type Engine struct {
	cfg   Config
	comps Components
	clock risk.Clock

	mu          sync.RWMutex
	state       State
	halted      bool
	tradeDay    string
	pnlBaseline float64
	limits      inventory.PositionLimits

	// tickDrops is the publisher's cumulative drop count at the last
	// risk cycle; only the risk loop touches it.
	tickDrops uint64

	statsMu sync.Mutex
	stats   Statistics

	cancel context.CancelFunc
	done   chan struct{}
}

// New validates the wiring and returns an idle engine.
func New(cfg Config, comps Components) (*Engine, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	if err := validateComponents(comps); err != nil {
		return nil, fmt.Errorf("invalid engine components: %w", err)
	}
	return &Engine{
		cfg:    cfg,
		comps:  comps,
		clock:  risk.NowUTC,
		state:  StateIdle,
		limits: comps.PositionLimits,
	}, nil
}

// SetClock overrides the clock, for tests.
func (e *Engine) SetClock(clk risk.Clock) { e.clock = clk }

// SetPositionLimits swaps the advisory caps; config reload uses this
// while the cadence loops keep running.
func (e *Engine) SetPositionLimits(pl inventory.PositionLimits) {
	e.mu.Lock()
	e.limits = pl
	e.mu.Unlock()
}

// GetState returns the lifecycle position.
func (e *Engine) GetState() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// GetStatistics returns a copy of the activity counters.
func (e *Engine) GetStatistics() Statistics {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.stats
}

// Start launches Run on an internal context. Use Run directly when the
// caller already owns a context tree.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.state == StateRunning {
		e.mu.Unlock()
		return fmt.Errorf("engine already started (state: %s)", e.state)
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	e.state = StateRunning
	done := e.done
	e.mu.Unlock()

	go func() {
		defer close(done)
		if err := e.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			e.comps.Logger.LogError(err, "engine_run", nil)
		}
	}()
	return nil
}

// Stop cancels the loops and waits for them to drain.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		return fmt.Errorf("engine not running (state: %s)", e.state)
	}
	cancel := e.cancel
	done := e.done
	e.state = StateStopped
	e.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		e.comps.Logger.Warn("timeout waiting for engine loops to stop")
	}
	return nil
}

// Run executes the engine loops until ctx is cancelled, then pulls all
// resting quotes. It always returns the context error.
func (e *Engine) Run(ctx context.Context) error {
	e.statsMu.Lock()
	e.stats.StartTime = e.clock.Now()
	e.statsMu.Unlock()

	e.mu.Lock()
	e.tradeDay = e.clock.Now().Format("2006-01-02")
	e.mu.Unlock()

	e.comps.Logger.Info("engine starting")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(e.cfg.QuoteInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				e.quoteCycle()
			}
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(e.cfg.RiskInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				e.riskCycle()
			}
		}
	})

	if e.cfg.RebalanceInterval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(e.cfg.RebalanceInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					e.rebalanceCycle()
				}
			}
		})
	}

	if e.comps.Ticks != nil {
		ticks := e.comps.Ticks.Subscribe()
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case t, ok := <-ticks:
					if !ok {
						return nil
					}
					e.observeTick(t)
				}
			}
		})
	}

	err := g.Wait()

	if pullErr := e.comps.Generator.PullAll(e.bookFor); pullErr != nil {
		e.comps.Logger.LogError(pullErr, "shutdown_pull", nil)
	}
	e.comps.Logger.Info("engine stopped")
	return err
}

// bookFor resolves a symbol to its venue book: listed contracts through
// the chain, spot hedge symbols through the hedge books.
func (e *Engine) bookFor(symbol string) (venue.Book, bool) {
	if c, err := e.comps.Chain.Contract(symbol); err == nil && c.Book() != nil {
		return c.Book(), true
	}
	for und, book := range e.comps.HedgeBooks {
		if chain.SpotSymbol(und) == symbol && book != nil {
			return book, true
		}
	}
	return nil, false
}

func (e *Engine) recordError() {
	e.statsMu.Lock()
	e.stats.Errors++
	e.statsMu.Unlock()
}

func validateConfig(cfg Config) error {
	if cfg.QuoteInterval <= 0 {
		return errors.New("quote interval must be > 0")
	}
	if cfg.RiskInterval <= 0 {
		return errors.New("risk interval must be > 0")
	}
	if cfg.RebalanceInterval < 0 {
		return errors.New("rebalance interval must be >= 0")
	}
	return nil
}

func validateComponents(comps Components) error {
	switch {
	case comps.Chain == nil:
		return errors.New("chain is required")
	case comps.Board == nil:
		return errors.New("board is required")
	case comps.Ledger == nil:
		return errors.New("ledger is required")
	case comps.Aggregator == nil:
		return errors.New("aggregator is required")
	case comps.Controller == nil:
		return errors.New("controller is required")
	case comps.Generator == nil:
		return errors.New("generator is required")
	case comps.PnL == nil:
		return errors.New("pnl calculator is required")
	case comps.Logger == nil:
		return errors.New("logger is required")
	}
	return nil
}
