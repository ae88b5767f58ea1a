package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor owns the Prometheus registry and every metric the engine
// exports. Per-contract labels are avoided on purpose: a five-strike
// board is fine but series cardinality grows with the listing file, so
// counters and gauges are labelled by underlying at most.
type Monitor struct {
	registry *prometheus.Registry

	// quote stream
	quotesSubmitted *prometheus.CounterVec
	quotesPulled    *prometheus.CounterVec
	quotesThrottled prometheus.Counter
	quotesBlocked   prometheus.Counter
	quoteCycle      prometheus.Histogram

	// executions
	fills        *prometheus.CounterVec
	filledVolume prometheus.Counter

	// hedging
	hedgeOrders *prometheus.CounterVec
	hedgedQty   *prometheus.CounterVec
	hedgeSkips  prometheus.Counter

	// risk
	breaches        *prometheus.CounterVec
	limitAdvisories *prometheus.CounterVec
	tradingHalted   prometheus.Gauge

	// portfolio
	delta *prometheus.GaugeVec
	gamma *prometheus.GaugeVec
	vega  *prometheus.GaugeVec
	theta *prometheus.GaugeVec

	realizedPnL   prometheus.Gauge
	unrealizedPnL prometheus.Gauge
	feesPaid      prometheus.Gauge

	// market data
	spotPrice    *prometheus.GaugeVec
	ticksTotal   *prometheus.CounterVec
	ticksDropped prometheus.Counter
	repriceTime  prometheus.Histogram
}

// Config names the metric namespace.
type Config struct {
	Namespace string
	Subsystem string
}

// DefaultConfig returns the conventional omm_engine_* namespace.
func DefaultConfig() Config {
	return Config{
		Namespace: "omm",
		Subsystem: "engine",
	}
}

// New creates a Monitor with its own registry so tests can run several
// side by side.
func New(cfg Config) *Monitor {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Monitor{
		registry: reg,

		quotesSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "quotes_submitted_total",
			Help:      "Two-sided or one-sided quote sets placed on the venue.",
		}, []string{"underlying"}),
		quotesPulled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "quotes_pulled_total",
			Help:      "Quote sets cancelled without replacement.",
		}, []string{"underlying"}),
		quotesThrottled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "quotes_throttled_total",
			Help:      "Refreshes deferred by the churn rate limiter.",
		}),
		quotesBlocked: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "quotes_blocked_total",
			Help:      "Refreshes rejected by risk checks or the halt flag.",
		}),
		quoteCycle: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "quote_cycle_seconds",
			Help:      "Wall time of one full pass over the quoted contracts.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),

		fills: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "fills_total",
			Help:      "Executions against our resting quotes.",
		}, []string{"side"}),
		filledVolume: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "filled_volume_total",
			Help:      "Cumulative filled contract quantity.",
		}),

		hedgeOrders: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "hedge_orders_total",
			Help:      "Delta hedge orders emitted.",
		}, []string{"underlying"}),
		hedgedQty: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "hedged_quantity_total",
			Help:      "Absolute hedge quantity in underlying units.",
		}, []string{"underlying"}),
		hedgeSkips: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "hedge_skips_total",
			Help:      "Hedge orders suppressed by limit projection.",
		}),

		breaches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "risk_breaches_total",
			Help:      "Limit breaches by dimension.",
		}, []string{"kind"}),
		limitAdvisories: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "position_limit_advisories_total",
			Help:      "Per-level position caps exceeded; informational, never halts.",
		}, []string{"kind"}),
		tradingHalted: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "trading_halted",
			Help:      "1 while the halt flag is set, 0 otherwise.",
		}),

		delta: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "portfolio_delta",
			Help:      "Aggregated delta per underlying, hedges included.",
		}, []string{"underlying"}),
		gamma: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "portfolio_gamma",
			Help:      "Aggregated gamma per underlying.",
		}, []string{"underlying"}),
		vega: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "portfolio_vega",
			Help:      "Aggregated vega per underlying.",
		}, []string{"underlying"}),
		theta: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "portfolio_theta",
			Help:      "Aggregated theta per underlying.",
		}, []string{"underlying"}),

		realizedPnL: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "realized_pnl",
			Help:      "Realized profit and loss across the book.",
		}),
		unrealizedPnL: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "unrealized_pnl",
			Help:      "Unrealized profit and loss at current marks.",
		}),
		feesPaid: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "fees_paid",
			Help:      "Cumulative fees charged on fills.",
		}),

		spotPrice: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "spot_price",
			Help:      "Last spot used for repricing, per underlying.",
		}, []string{"underlying"}),
		ticksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "ticks_total",
			Help:      "Market data ticks accepted.",
		}, []string{"underlying"}),
		ticksDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "ticks_dropped_total",
			Help:      "Snapshots dropped on slow subscribers.",
		}),
		repriceTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "chain_reprice_seconds",
			Help:      "Wall time to reprice the full chain on one tick.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
	}

	return m
}

func (m *Monitor) RecordQuoteSubmitted(underlying string) {
	m.quotesSubmitted.WithLabelValues(underlying).Inc()
}

func (m *Monitor) RecordQuotePulled(underlying string) {
	m.quotesPulled.WithLabelValues(underlying).Inc()
}

func (m *Monitor) RecordQuoteThrottled() {
	m.quotesThrottled.Inc()
}

func (m *Monitor) RecordQuoteBlocked() {
	m.quotesBlocked.Inc()
}

func (m *Monitor) ObserveQuoteCycle(seconds float64) {
	m.quoteCycle.Observe(seconds)
}

func (m *Monitor) RecordFill(side string, quantity float64) {
	m.fills.WithLabelValues(side).Inc()
	if quantity < 0 {
		quantity = -quantity
	}
	m.filledVolume.Add(quantity)
}

func (m *Monitor) RecordHedgeOrder(underlying string, quantity float64) {
	m.hedgeOrders.WithLabelValues(underlying).Inc()
	if quantity < 0 {
		quantity = -quantity
	}
	m.hedgedQty.WithLabelValues(underlying).Add(quantity)
}

func (m *Monitor) RecordHedgeSkip() {
	m.hedgeSkips.Inc()
}

func (m *Monitor) RecordLimitAdvisory(kind string) {
	m.limitAdvisories.WithLabelValues(kind).Inc()
}

func (m *Monitor) RecordBreach(kind string) {
	m.breaches.WithLabelValues(kind).Inc()
}

func (m *Monitor) SetHalted(halted bool) {
	if halted {
		m.tradingHalted.Set(1)
	} else {
		m.tradingHalted.Set(0)
	}
}

func (m *Monitor) UpdateGreeks(underlying string, delta, gamma, vega, theta float64) {
	m.delta.WithLabelValues(underlying).Set(delta)
	m.gamma.WithLabelValues(underlying).Set(gamma)
	m.vega.WithLabelValues(underlying).Set(vega)
	m.theta.WithLabelValues(underlying).Set(theta)
}

func (m *Monitor) UpdatePnL(realized, unrealized, fees float64) {
	m.realizedPnL.Set(realized)
	m.unrealizedPnL.Set(unrealized)
	m.feesPaid.Set(fees)
}

func (m *Monitor) UpdateSpot(underlying string, price float64) {
	m.spotPrice.WithLabelValues(underlying).Set(price)
}

func (m *Monitor) RecordTick(underlying string) {
	m.ticksTotal.WithLabelValues(underlying).Inc()
}

func (m *Monitor) RecordTicksDropped(n float64) {
	m.ticksDropped.Add(n)
}

func (m *Monitor) ObserveReprice(seconds float64) {
	m.repriceTime.Observe(seconds)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for callers that register
// their own collectors.
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}
