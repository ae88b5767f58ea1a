package posttrade

import (
	"math"
	"sync"
	"time"

	"options-mm-go/pricing"
	"options-mm-go/risk"
	"options-mm-go/venue"
)

// DefaultHorizons measure markout one and five seconds after the fill.
var DefaultHorizons = []time.Duration{time.Second, 5 * time.Second}

// maxCompleted bounds the retained fill history.
const maxCompleted = 10_000

// markoutFill is one fill waiting for, or holding, its horizon marks.
type markoutFill struct {
	symbol   string
	side     venue.Side
	price    float64
	at       time.Time
	marks    []float64
	resolved []bool
	left     int
}

// markoutBps signs the move onto our side: buys profit when the mark
// rises, sells when it falls. Negative markout means the flow picked
// us off.
func (pf *markoutFill) markoutBps(mark float64) float64 {
	if pf.price <= 0 {
		return 0
	}
	move := (mark - pf.price) / pf.price * 10_000
	if pf.side == venue.Sell {
		move = -move
	}
	return move
}

// Markout measures how the theo moves in the seconds after each fill.
// Fills register through OnFill; Advance resolves pending horizons off
// the current board snapshot, so the caller decides the cadence.
type Markout struct {
	board    *pricing.Board
	horizons []time.Duration
	clock    risk.Clock

	mu        sync.Mutex
	pending   []*markoutFill
	completed []*markoutFill
	total     int
}

// NewMarkout tracks fills against board marks at the given horizons,
// DefaultHorizons when none are named.
func NewMarkout(board *pricing.Board, horizons ...time.Duration) *Markout {
	hs := make([]time.Duration, 0, len(horizons))
	hs = append(hs, horizons...)
	if len(hs) == 0 {
		hs = append(hs, DefaultHorizons...)
	}
	return &Markout{
		board:    board,
		horizons: hs,
		clock:    risk.NowUTC,
	}
}

// SetClock overrides the clock, for tests.
func (m *Markout) SetClock(clk risk.Clock) { m.clock = clk }

// Horizons returns the measured horizons, aligned with Stats.
func (m *Markout) Horizons() []time.Duration {
	hs := make([]time.Duration, len(m.horizons))
	copy(hs, m.horizons)
	return hs
}

// OnFill registers a fresh execution for markout tracking.
func (m *Markout) OnFill(f venue.Fill) {
	at := f.At
	if at.IsZero() {
		at = m.clock.Now()
	}
	marks := make([]float64, len(m.horizons))
	for i := range marks {
		marks[i] = math.NaN()
	}
	pf := &markoutFill{
		symbol:   f.Symbol,
		side:     f.Side,
		price:    f.Price,
		at:       at,
		marks:    marks,
		resolved: make([]bool, len(m.horizons)),
		left:     len(m.horizons),
	}

	m.mu.Lock()
	m.total++
	m.pending = append(m.pending, pf)
	m.mu.Unlock()
}

// Advance resolves every pending horizon whose deadline has passed
// using the current snapshot, retiring fills once all horizons are
// done. A symbol with no theo at deadline keeps a NaN mark and is
// excluded from analysis.
func (m *Markout) Advance() {
	snap := m.board.Current()
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	remaining := m.pending[:0]
	for _, pf := range m.pending {
		for i, h := range m.horizons {
			if pf.resolved[i] || now.Sub(pf.at) < h {
				continue
			}
			pf.resolved[i] = true
			pf.left--
			if tv, ok := snap.Theo(pf.symbol); ok {
				pf.marks[i] = tv.Price
			}
		}
		if pf.left == 0 {
			m.completed = append(m.completed, pf)
			continue
		}
		remaining = append(remaining, pf)
	}
	m.pending = remaining

	if over := len(m.completed) - maxCompleted; over > 0 {
		m.completed = append([]*markoutFill(nil), m.completed[over:]...)
	}
}

// Pending reports fills still waiting on a horizon.
func (m *Markout) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Stats summarizes markout quality. AvgMarkoutBps aligns with
// Horizons; AdverseRate is the fraction of analyzed fills whose
// first-horizon markout ran against us. A fill is analyzed once every
// horizon resolved with a usable mark.
type Stats struct {
	TotalFills    int       `json:"total_fills"`
	AnalyzedFills int       `json:"analyzed_fills"`
	AdverseRate   float64   `json:"adverse_rate"`
	AvgMarkoutBps []float64 `json:"avg_markout_bps"`
}

// Stats computes the current summary over retained fills.
func (m *Markout) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Stats{
		TotalFills:    m.total,
		AvgMarkoutBps: make([]float64, len(m.horizons)),
	}
	sums := make([]float64, len(m.horizons))
	adverse := 0

	for _, pf := range m.completed {
		usable := true
		for _, mk := range pf.marks {
			if math.IsNaN(mk) {
				usable = false
				break
			}
		}
		if !usable {
			continue
		}
		st.AnalyzedFills++
		for i, mk := range pf.marks {
			sums[i] += pf.markoutBps(mk)
		}
		if pf.markoutBps(pf.marks[0]) < 0 {
			adverse++
		}
	}

	if st.AnalyzedFills > 0 {
		for i := range sums {
			st.AvgMarkoutBps[i] = sums[i] / float64(st.AnalyzedFills)
		}
		st.AdverseRate = float64(adverse) / float64(st.AnalyzedFills)
	}
	return st
}
