package hedging

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"options-mm-go/inventory"
	"options-mm-go/risk"
)

// ErrHedgeSkipped reports that a hedge was wanted but the risk
// controller projected it would breach a limit, so no order was built.
var ErrHedgeSkipped = errors.New("hedge skipped")

// State is the hysteresis band position.
type State int

const (
	// WithinBand means |delta - target| last sat below the enter
	// threshold (or has fallen back through the exit threshold).
	WithinBand State = iota
	// Breached means the enter threshold was crossed and the exit
	// threshold has not been crossed back yet.
	Breached
)

func (s State) String() string {
	switch s {
	case WithinBand:
		return "within_band"
	case Breached:
		return "breached"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Hedger runs the hysteresis state machine for one underlying.
// Evaluate is called once per cycle with the current aggregated
// exposure; at most one order comes back per call.
type Hedger struct {
	underlying string
	params     Params
	clock      risk.Clock
	controller *risk.Controller

	mu             sync.Mutex
	state          State
	lastOrderAt    time.Time
	lastOrderDelta float64
	ordersEmitted  int
	skipped        int
}

// NewHedger validates params and returns a hedger for underlying.
func NewHedger(underlying string, params Params) (*Hedger, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Hedger{
		underlying: underlying,
		params:     params,
		clock:      risk.NowUTC,
	}, nil
}

// SetController installs the risk controller consulted before every
// order. Without one, hedges are never skipped.
func (h *Hedger) SetController(c *risk.Controller) { h.controller = c }

// SetClock overrides the clock, for tests.
func (h *Hedger) SetClock(clk risk.Clock) { h.clock = clk }

// Params returns the hedger configuration.
func (h *Hedger) Params() Params { return h.params }

// State returns the current band position.
func (h *Hedger) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Stats returns how many orders were emitted and how many were
// skipped by the risk controller.
func (h *Hedger) Stats() (emitted, skipped int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ordersEmitted, h.skipped
}

// Evaluate advances the state machine with the current exposure and
// spot. It returns a nil order when no hedge is due. When a hedge is
// due but the risk controller refuses it, the state still advances and
// the error wraps ErrHedgeSkipped.
func (h *Hedger) Evaluate(agg inventory.AggregatedSnapshot, spot float64) (*HedgeOrder, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delta := agg.Greeks.Delta
	excess := delta - h.params.TargetDelta
	now := h.clock.Now()

	switch h.state {
	case WithinBand:
		if math.Abs(excess) < h.params.EnterThreshold {
			return nil, nil
		}
		h.state = Breached
		return h.emit(agg, excess, spot, now, ReasonDeltaThreshold)

	case Breached:
		if math.Abs(excess) <= h.params.ExitThreshold {
			h.state = WithinBand
			return nil, nil
		}
		elapsed := now.Sub(h.lastOrderAt) >= h.params.MinInterval
		moved := h.params.DeltaMoveRetrigger > 0 &&
			math.Abs(delta-h.lastOrderDelta) >= h.params.DeltaMoveRetrigger
		if !elapsed && !moved {
			return nil, nil
		}
		return h.emit(agg, excess, spot, now, ReasonDeltaThreshold)
	}
	return nil, nil
}

// Rebalance builds a hedge toward target regardless of the band, for
// scheduled flattening, operator action, or post-halt risk reduction.
// Dust below the minimum size returns no order.
func (h *Hedger) Rebalance(agg inventory.AggregatedSnapshot, spot float64, reason Reason) (*HedgeOrder, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	excess := agg.Greeks.Delta - h.params.TargetDelta
	now := h.clock.Now()
	return h.emit(agg, excess, spot, now, reason)
}

// emit builds, risk-checks and records one order. Callers hold h.mu.
func (h *Hedger) emit(agg inventory.AggregatedSnapshot, excess, spot float64, now time.Time, reason Reason) (*HedgeOrder, error) {
	size := math.Min(math.Abs(excess), h.params.MaxHedgeSize)
	if size < h.params.MinHedgeSize {
		return nil, nil
	}
	qty := -math.Copysign(size, excess)

	if h.controller != nil {
		if breaches := h.controller.CheckHedge(agg, qty, spot); len(breaches) > 0 {
			h.skipped++
			return nil, fmt.Errorf("%w: %s", ErrHedgeSkipped, breaches[0])
		}
	}

	order := &HedgeOrder{
		Underlying: h.underlying,
		Quantity:   qty,
		Urgency:    h.urgency(excess),
		Reason:     reason,
		Delta:      agg.Greeks.Delta,
		At:         now,
	}
	if h.params.UseLimitOrders && spot > 0 {
		order.Limit = true
		order.Price = h.limitPrice(qty, spot)
	}

	h.lastOrderAt = now
	h.lastOrderDelta = agg.Greeks.Delta
	h.ordersEmitted++
	return order, nil
}

// urgency grows with the overshoot past the enter threshold and
// saturates at 1 once delta reaches twice the threshold.
func (h *Hedger) urgency(excess float64) float64 {
	over := (math.Abs(excess) - h.params.EnterThreshold) / h.params.EnterThreshold
	if over < 0 {
		over = 0
	}
	if over > 1 {
		over = 1
	}
	return over
}

// limitPrice crosses spot by the configured offset so the order is
// marketable: buys price above spot, sells below.
func (h *Hedger) limitPrice(qty, spot float64) float64 {
	off := spot * h.params.LimitOffsetBps / 10000
	if qty < 0 {
		return spot - off
	}
	return spot + off
}
