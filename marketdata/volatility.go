package marketdata

import (
	"math"
	"sync"
	"time"
)

const secondsPerYear = 365 * 24 * 3600

// VolEstimator computes annualized realized volatility from a rolling
// window of mid prices. Annualization uses the observed average
// sampling interval, so minute bars and second ticks both come out on
// the same scale.
type VolEstimator struct {
	mu         sync.Mutex
	windowSize int
	prices     []float64
	times      []time.Time
}

// NewVolEstimator returns an estimator over the last windowSize mids.
func NewVolEstimator(windowSize int) *VolEstimator {
	if windowSize < 2 {
		windowSize = 2
	}
	return &VolEstimator{
		windowSize: windowSize,
		prices:     make([]float64, 0, windowSize),
		times:      make([]time.Time, 0, windowSize),
	}
}

// AddPrice appends a mid observation, evicting the oldest once the
// window is full. Non-positive mids are ignored.
func (v *VolEstimator) AddPrice(mid float64, ts time.Time) {
	if mid <= 0 {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.prices = append(v.prices, mid)
	v.times = append(v.times, ts)
	if len(v.prices) > v.windowSize {
		v.prices = v.prices[1:]
		v.times = v.times[1:]
	}
}

// RealizedVol returns the annualized standard deviation of log
// returns over the window, or zero when the window holds fewer than
// two prices.
func (v *VolEstimator) RealizedVol() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()

	if len(v.prices) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(v.prices)-1)
	for i := 1; i < len(v.prices); i++ {
		if v.prices[i-1] > 0 {
			returns = append(returns, math.Log(v.prices[i]/v.prices[i-1]))
		}
	}
	if len(returns) < 1 {
		return 0
	}

	sum := 0.0
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	sumSq := 0.0
	for _, r := range returns {
		d := r - mean
		sumSq += d * d
	}
	variance := sumSq / float64(len(returns))

	elapsed := v.times[len(v.times)-1].Sub(v.times[0]).Seconds()
	if elapsed <= 0 {
		return 0
	}
	interval := elapsed / float64(len(returns))
	periodsPerYear := secondsPerYear / interval

	return math.Sqrt(variance) * math.Sqrt(periodsPerYear)
}

// IsReady reports whether the window holds enough data for an
// estimate.
func (v *VolEstimator) IsReady() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.prices) >= 2
}

// Len returns the current window fill.
func (v *VolEstimator) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.prices)
}
