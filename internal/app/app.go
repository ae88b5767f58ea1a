// Package app assembles the trading process from configuration: the
// engine and every collaborator it needs, the observability surfaces
// around them, and one lifecycle that starts and stops it all in
// order.
package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"options-mm-go/chain"
	"options-mm-go/config"
	"options-mm-go/hedging"
	"options-mm-go/infrastructure/alert"
	"options-mm-go/infrastructure/feed"
	"options-mm-go/infrastructure/logger"
	"options-mm-go/infrastructure/monitor"
	"options-mm-go/internal/engine"
	"options-mm-go/inventory"
	"options-mm-go/marketdata"
	"options-mm-go/pnl"
	"options-mm-go/posttrade"
	"options-mm-go/pricing"
	"options-mm-go/quoting"
	"options-mm-go/risk"
	"options-mm-go/venue"
)

// alertThrottle suppresses repeats of the same operator alert.
const alertThrottle = time.Minute

// Options carries the collaborators configuration cannot name: the
// pricing model, and optionally a book factory for venues other than
// the in-memory default.
type Options struct {
	Pricer      pricing.Pricer
	BookFactory chain.BookFactory
}

// App is the assembled process.
type App struct {
	cfg  config.AppConfig
	opts Options

	logger  *logger.Logger
	monitor *monitor.Monitor
	alerts  *alert.Manager
	hub     *feed.Hub

	chain      *chain.Chain
	board      *pricing.Board
	ledger     *inventory.Ledger
	aggregator *inventory.Aggregator
	controller *risk.Controller
	generator  *quoting.Generator
	publisher  *marketdata.Publisher
	handler    *marketdata.Handler
	calculator *pnl.Calculator
	hedgers    map[string]*hedging.Hedger
	hedgeBooks map[string]venue.Book
	trackers   map[string]*pnl.Tracker
	journal    *posttrade.Journal
	markout    *posttrade.Markout
	engine     *engine.Engine

	metricsServer *http.Server
	feedServer    *http.Server

	lifecycle *LifecycleManager
}

// New loads configuration from path and prepares an unbuilt app.
func New(configPath string, opts Options) (*App, error) {
	cfg, err := config.LoadWithEnvOverrides(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewFromConfig(cfg, opts)
}

// NewFromConfig prepares an unbuilt app from an in-memory config. The
// simulator and tests use this to skip the file round trip.
func NewFromConfig(cfg config.AppConfig, opts Options) (*App, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if opts.Pricer == nil {
		return nil, fmt.Errorf("app options: pricer is required")
	}
	if opts.BookFactory == nil {
		opts.BookFactory = func(string) venue.Book { return venue.NewMemBook() }
	}
	return &App{
		cfg:       cfg,
		opts:      opts,
		lifecycle: NewLifecycleManager(),
	}, nil
}

// Build constructs every component. Call once before Start.
func (a *App) Build() error {
	if err := a.buildInfrastructure(); err != nil {
		return fmt.Errorf("build infrastructure: %w", err)
	}
	if err := a.buildMarket(); err != nil {
		return fmt.Errorf("build market: %w", err)
	}
	if err := a.buildTrading(); err != nil {
		return fmt.Errorf("build trading: %w", err)
	}
	a.registerLifecycleComponents()

	a.logger.Info("app built",
		zap.String("env", a.cfg.Env),
		zap.Strings("underlyings", a.cfg.UnderlyingNames()),
	)
	return nil
}

func (a *App) buildInfrastructure() error {
	log, err := logger.New(a.cfg.Logging)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	a.logger = log

	a.monitor = monitor.New(monitor.DefaultConfig())
	a.alerts = alert.NewManager([]alert.Channel{alert.NewLogChannel("journal", nil)}, alertThrottle)

	if a.cfg.Feed.Enabled {
		a.hub = feed.NewHub(log, feed.Config{Env: a.cfg.Env})
	}

	a.logger.Info("infrastructure built")
	return nil
}

func (a *App) buildMarket() error {
	a.chain = chain.NewChain(a.opts.BookFactory)

	listings, err := a.cfg.Listings()
	if err != nil {
		return err
	}
	for _, oc := range listings {
		if _, err := a.chain.EnsureContract(oc); err != nil {
			return fmt.Errorf("list %s: %w", oc.Symbol, err)
		}
	}

	a.board = pricing.NewBoard()
	a.publisher = marketdata.NewPublisher(256)
	a.handler = marketdata.NewHandler(a.cfg.MarketData, a.chain, a.opts.Pricer, a.board, a.publisher)
	mon := a.monitor
	a.handler.SetObserver(func(_ marketdata.PriceStats, elapsed time.Duration) {
		mon.ObserveReprice(elapsed.Seconds())
	})

	var sink inventory.EventSink
	if a.cfg.Journal.Enabled {
		journal, err := posttrade.OpenJournal(a.cfg.Journal.Path)
		if err != nil {
			return err
		}
		a.journal = journal
		sink = journal.Record
	}
	a.ledger = inventory.NewLedger(sink)
	a.ledger.SetMultiplier(a.multiplierFor)
	a.aggregator = inventory.NewAggregator(a.chain, a.ledger, a.board)
	a.markout = posttrade.NewMarkout(a.board)

	a.logger.Info("market built", zap.Int("contracts", len(listings)))
	return nil
}

func (a *App) buildTrading() error {
	calc, err := quoting.NewCalculator(a.cfg.Quoting)
	if err != nil {
		return fmt.Errorf("quoting params: %w", err)
	}

	a.controller = risk.NewController(a.cfg.Risk)

	a.generator = quoting.NewGenerator(calc, a.cfg.QuoteChurn)
	a.generator.SetGuard(risk.HaltGuard{Controller: a.controller})
	a.generator.SetConstraints(a.constraintsFor)

	a.calculator = pnl.NewCalculator(a.ledger, a.board)

	a.hedgers = make(map[string]*hedging.Hedger)
	a.hedgeBooks = make(map[string]venue.Book)
	a.trackers = make(map[string]*pnl.Tracker)
	for _, und := range a.cfg.UnderlyingNames() {
		hedger, err := hedging.NewHedger(und, a.cfg.HedgingFor(und))
		if err != nil {
			return fmt.Errorf("hedger %s: %w", und, err)
		}
		hedger.SetController(a.controller)
		a.hedgers[und] = hedger
		a.hedgeBooks[und] = a.opts.BookFactory(chain.SpotSymbol(und))
		a.trackers[und] = pnl.NewTracker(und, a.board, a.aggregator, a.calculator)
	}

	eng, err := engine.New(
		engine.Config{
			QuoteInterval:     a.cfg.Engine.QuoteInterval(),
			RiskInterval:      a.cfg.Engine.RiskInterval(),
			RebalanceInterval: a.cfg.Engine.RebalanceInterval(),
		},
		engine.Components{
			Chain:          a.chain,
			Board:          a.board,
			Ledger:         a.ledger,
			Aggregator:     a.aggregator,
			Controller:     a.controller,
			Generator:      a.generator,
			PnL:            a.calculator,
			Logger:         a.logger,
			Hedgers:        a.hedgers,
			HedgeBooks:     a.hedgeBooks,
			Trackers:       a.trackers,
			PositionLimits: a.cfg.Limits.Resolve(),
			Ticks:          a.publisher,
			Monitor:        a.monitor,
			Notifier:       risk.NewNotifier(a.alerts),
			Feed:           a.hub,
		},
	)
	if err != nil {
		return err
	}
	a.engine = eng

	a.logger.Info("trading built", zap.Int("hedgers", len(a.hedgers)))
	return nil
}

// registerLifecycleComponents fixes the start order: serving surfaces
// first, the engine last, so the reverse-order stop quiets the engine
// before anything it reports through goes away.
func (a *App) registerLifecycleComponents() {
	if a.cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", a.monitor.Handler())
		mux.HandleFunc("/healthz", a.handleHealthz)
		a.lifecycle.Register(&httpServerComponent{
			name:    "metrics_server",
			handler: mux,
			addr:    a.cfg.Metrics.Addr,
			logger:  a.logger,
			server:  &a.metricsServer,
		})
	}

	if a.hub != nil {
		hub := a.hub
		a.lifecycle.Register(&loopComponent{name: "feed_hub", logger: a.logger, run: hub.Run})

		mux := http.NewServeMux()
		mux.HandleFunc("/ws", hub.HandleWS)
		a.lifecycle.Register(&httpServerComponent{
			name:    "feed_server",
			handler: mux,
			addr:    a.cfg.Feed.Addr,
			logger:  a.logger,
			server:  &a.feedServer,
		})
	}

	ticks := a.publisher.Subscribe()
	markout := a.markout
	a.lifecycle.Register(&loopComponent{name: "markout", logger: a.logger, run: func(ctx context.Context) error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case _, ok := <-ticks:
				if !ok {
					return nil
				}
				markout.Advance()
			}
		}
	}})

	a.lifecycle.Register(&engineComponent{eng: a.engine})
}

// Start brings every component up. A failed start rolls back whatever
// already started.
func (a *App) Start(ctx context.Context) error {
	a.logger.Info("starting", zap.String("env", a.cfg.Env))
	if err := a.lifecycle.StartAll(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	a.logger.Info("started")
	return nil
}

// Stop tears components down in reverse order, closes the journal, and
// flushes logs.
func (a *App) Stop() error {
	a.logger.Info("stopping")
	err := a.lifecycle.StopAll()
	if err != nil {
		a.logger.LogError(err, "stop", nil)
	}

	a.publisher.Close()
	if a.journal != nil {
		if cerr := a.journal.Close(); cerr != nil {
			a.logger.LogError(cerr, "journal_close", nil)
		}
	}

	a.logger.Info("stopped")
	a.logger.Close()
	return err
}

// HealthCheck asks every lifecycle component.
func (a *App) HealthCheck() error {
	return a.lifecycle.CheckHealth()
}

// OnFill routes one execution into the engine and post-trade tracking.
// Venue adapters and the simulator call this from their fill paths.
func (a *App) OnFill(f venue.Fill) {
	a.engine.OnFill(f)
	a.markout.OnFill(f)
}

// ApplyConfig applies the reloadable subset of a fresh config: hard
// risk limits and the advisory caps. Everything else takes a restart.
func (a *App) ApplyConfig(cfg config.AppConfig) {
	a.controller.SetLimits(cfg.Risk)
	a.engine.SetPositionLimits(cfg.Limits.Resolve())
	a.cfg.Risk = cfg.Risk
	a.cfg.Limits = cfg.Limits
	a.logger.Info("config reloaded",
		zap.Float64("max_daily_loss", cfg.Risk.MaxDailyLoss),
		zap.Float64("max_delta", cfg.Risk.MaxDelta),
	)
}

func (a *App) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	if err := a.lifecycle.CheckHealth(); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// multiplierFor resolves a symbol's contract multiplier. Spot hedge
// positions trade the underlying itself at multiplier one; options
// carry their underlying's configured multiplier.
func (a *App) multiplierFor(symbol string) float64 {
	und := underlyingOf(symbol)
	if symbol == chain.SpotSymbol(und) {
		return 1
	}
	if uc, ok := a.cfg.Underlyings[und]; ok && uc.Multiplier > 0 {
		return uc.Multiplier
	}
	return 1
}

// constraintsFor maps a quoted symbol onto its underlying's venue grid.
func (a *App) constraintsFor(symbol string) (venue.Constraints, bool) {
	uc, ok := a.cfg.Underlyings[underlyingOf(symbol)]
	if !ok {
		return venue.Constraints{}, false
	}
	return uc.Constraints, true
}

// underlyingOf strips the symbol down to its underlying prefix.
func underlyingOf(symbol string) string {
	if i := strings.IndexByte(symbol, '-'); i > 0 {
		return symbol[:i]
	}
	return symbol
}

// Engine exposes the trading engine.
func (a *App) Engine() *engine.Engine { return a.engine }

// Handler exposes the tick pipeline; market data sources call OnTick.
func (a *App) Handler() *marketdata.Handler { return a.handler }

// Chain exposes the listed option hierarchy.
func (a *App) Chain() *chain.Chain { return a.chain }

// Board exposes the pricing board.
func (a *App) Board() *pricing.Board { return a.board }

// Controller exposes the risk controller.
func (a *App) Controller() *risk.Controller { return a.controller }

// Logger exposes the shared logger.
func (a *App) Logger() *logger.Logger { return a.logger }

// Markout exposes the post-trade markout analyzer.
func (a *App) Markout() *posttrade.Markout { return a.markout }

// Ledger exposes the position ledger.
func (a *App) Ledger() *inventory.Ledger { return a.ledger }

// Aggregator exposes the hierarchy exposure walker.
func (a *App) Aggregator() *inventory.Aggregator { return a.aggregator }

// PnL exposes the mark-to-market calculator.
func (a *App) PnL() *pnl.Calculator { return a.calculator }

// Trackers exposes the per-underlying attribution trackers.
func (a *App) Trackers() map[string]*pnl.Tracker { return a.trackers }

// HedgeBooks exposes the per-underlying hedge books.
func (a *App) HedgeBooks() map[string]venue.Book { return a.hedgeBooks }

// Config returns the loaded configuration.
func (a *App) Config() config.AppConfig { return a.cfg }
