package marketdata

import (
	"sync"
	"time"

	"options-mm-go/chain"
	"options-mm-go/pricing"
	"options-mm-go/risk"
)

// HandlerConfig tunes the tick-to-snapshot pipeline.
type HandlerConfig struct {
	// Rate is the risk-free rate passed to the pricer.
	Rate float64 `yaml:"rate" json:"rate"`
	// DefaultVol prices contracts before the realized estimator has
	// enough history and no venue vol is present.
	DefaultVol float64 `yaml:"default_vol" json:"default_vol"`
	// VolWindow is the realized estimator window per underlying.
	VolWindow int `yaml:"vol_window" json:"vol_window"`
}

// DefaultHandlerConfig returns the standard pipeline settings.
func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{Rate: 0.0, DefaultVol: 0.5, VolWindow: 120}
}

// PriceStats summarizes one repricing pass.
type PriceStats struct {
	Underlying string
	Spot       float64
	Vol        float64
	Priced     int
	Failed     int
	Expired    int
}

// Handler consumes underlying ticks, reprices the chain through the
// external pricer, and publishes a fresh snapshot to the board. One
// handler serves all underlyings; per-underlying state is the realized
// vol window.
type Handler struct {
	cfg     HandlerConfig
	chain   *chain.Chain
	pricer  pricing.Pricer
	board   *pricing.Board
	pub     *Publisher
	clock   risk.Clock
	observe func(PriceStats, time.Duration)

	mu   sync.Mutex
	vols map[string]*VolEstimator
}

// NewHandler wires the pipeline. pub may be nil when no one follows
// raw ticks.
func NewHandler(cfg HandlerConfig, ch *chain.Chain, pricer pricing.Pricer, board *pricing.Board, pub *Publisher) *Handler {
	if cfg.VolWindow < 2 {
		cfg.VolWindow = DefaultHandlerConfig().VolWindow
	}
	return &Handler{
		cfg:    cfg,
		chain:  ch,
		pricer: pricer,
		board:  board,
		pub:    pub,
		clock:  risk.NowUTC,
		vols:   make(map[string]*VolEstimator),
	}
}

// SetClock overrides the clock, for tests.
func (h *Handler) SetClock(clk risk.Clock) { h.clock = clk }

// SetObserver registers a callback receiving each pass's stats and wall
// time. Metrics wiring; set before the first tick.
func (h *Handler) SetObserver(fn func(PriceStats, time.Duration)) { h.observe = fn }

// Estimator returns the realized vol window for an underlying,
// creating it on first use.
func (h *Handler) Estimator(underlying string) *VolEstimator {
	h.mu.Lock()
	defer h.mu.Unlock()
	est, ok := h.vols[underlying]
	if !ok {
		est = NewVolEstimator(h.cfg.VolWindow)
		h.vols[underlying] = est
	}
	return est
}

// OnTick folds one tick into the board: updates spot and vol for the
// underlying, reprices every live contract under it, and publishes the
// combined snapshot. Contracts the pricer refuses lose their theo for
// this tick so consumers skip them instead of quoting stale values.
func (h *Handler) OnTick(t Tick) (PriceStats, error) {
	if err := t.Validate(); err != nil {
		return PriceStats{}, err
	}
	started := time.Now()
	at := t.At
	if at.IsZero() {
		at = h.clock.Now()
	}
	mid := t.Mid()

	est := h.Estimator(t.Underlying)
	est.AddPrice(mid, at)
	vol := h.resolveVol(t, est)

	stats := PriceStats{Underlying: t.Underlying, Spot: mid, Vol: vol}

	snap := h.board.Current().Clone(at)
	snap.Spots[t.Underlying] = mid
	snap.Vols[t.Underlying] = vol
	// The underlying itself gets a unit-delta theo so hedge positions
	// mark against spot like any other ledger entry.
	snap.Theos[chain.SpotSymbol(t.Underlying)] = pricing.TheoreticalValue{
		Price:  mid,
		Greeks: pricing.Greeks{Delta: 1},
		AsOf:   at,
	}

	contracts, err := h.chain.ContractsUnder(chain.UnderlyingLevel(t.Underlying))
	if err != nil {
		// Underlying not listed yet; the spot still goes up.
		contracts = nil
	}
	for _, c := range contracts {
		tte := c.TimeToExpiry(at)
		if tte <= 0 {
			delete(snap.Theos, c.Symbol)
			stats.Expired++
			continue
		}
		tv, err := h.pricer.TheoreticalValue(pricing.Request{
			Spot:         mid,
			Strike:       c.Strike,
			TimeToExpiry: tte,
			Vol:          vol,
			Rate:         h.cfg.Rate,
			IsCall:       c.IsCall(),
		})
		if err != nil {
			delete(snap.Theos, c.Symbol)
			stats.Failed++
			continue
		}
		if tv.AsOf.IsZero() {
			tv.AsOf = at
		}
		snap.Theos[c.Symbol] = tv
		stats.Priced++
	}

	h.board.Publish(snap)
	if h.pub != nil {
		h.pub.Publish(t)
	}
	if h.observe != nil {
		h.observe(stats, time.Since(started))
	}
	return stats, nil
}

// resolveVol prefers venue-implied vol, then the realized estimate,
// then the configured default.
func (h *Handler) resolveVol(t Tick, est *VolEstimator) float64 {
	if t.Vol > 0 {
		return t.Vol
	}
	if est.IsReady() {
		if rv := est.RealizedVol(); rv > 0 {
			return rv
		}
	}
	return h.cfg.DefaultVol
}
