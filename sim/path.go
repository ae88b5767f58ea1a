package sim

import (
	"math"
	"math/rand"
	"time"

	"options-mm-go/marketdata"
)

const secondsPerYear = 365 * 24 * 3600.0

// PathConfig parameterizes the simulated underlying.
type PathConfig struct {
	// Start is the initial spot price.
	Start float64 `yaml:"start"`
	// Drift is the annualized drift of the log price.
	Drift float64 `yaml:"drift"`
	// Vol is the annualized volatility of the path. It is also carried
	// on the ticks, so the pricer sees the true vol instead of waiting
	// for the realized estimator.
	Vol float64 `yaml:"vol"`
	// SpreadBps is the quoted underlying bid/ask width around the path.
	SpreadBps float64 `yaml:"spread_bps"`
	// Step is the model time that passes between ticks.
	Step time.Duration `yaml:"step"`
	// Seed fixes the random source; zero seeds from the wall clock.
	Seed int64 `yaml:"seed"`
}

// DefaultPathConfig is a liquid crypto-style underlying: 60 vol, a
// 2 bps touch, one model second per tick.
func DefaultPathConfig() PathConfig {
	return PathConfig{
		Start:     50_000,
		Drift:     0,
		Vol:       0.60,
		SpreadBps: 2,
		Step:      time.Second,
	}
}

// Path walks a geometric Brownian motion
//
//	S(t+dt) = S(t) * exp((mu - sigma^2/2) dt + sigma sqrt(dt) Z)
//
// one step per call. Not safe for concurrent use; the runner drives it
// from a single goroutine.
type Path struct {
	cfg  PathConfig
	rng  *rand.Rand
	spot float64
}

// NewPath starts a path at cfg.Start.
func NewPath(cfg PathConfig) *Path {
	if cfg.Start <= 0 {
		cfg.Start = DefaultPathConfig().Start
	}
	if cfg.Step <= 0 {
		cfg.Step = DefaultPathConfig().Step
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Path{cfg: cfg, rng: rand.New(rand.NewSource(seed)), spot: cfg.Start}
}

// Next advances the path one step and returns the new spot.
func (p *Path) Next() float64 {
	dt := p.cfg.Step.Seconds() / secondsPerYear
	z := p.rng.NormFloat64()
	p.spot *= math.Exp((p.cfg.Drift-0.5*p.cfg.Vol*p.cfg.Vol)*dt + p.cfg.Vol*math.Sqrt(dt)*z)
	return p.spot
}

// Spot returns the current spot without advancing.
func (p *Path) Spot() float64 { return p.spot }

// Tick wraps the current spot in an underlying tick with the configured
// touch width and the path's true vol.
func (p *Path) Tick(underlying string, at time.Time) marketdata.Tick {
	half := p.spot * p.cfg.SpreadBps / 2 / 10000
	return marketdata.Tick{
		Underlying: underlying,
		Bid:        p.spot - half,
		Ask:        p.spot + half,
		Last:       p.spot,
		Vol:        p.cfg.Vol,
		At:         at,
	}
}
