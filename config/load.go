// Package config loads, validates, and watches the runtime
// configuration. Component packages own their parameter structs; this
// package composes them into one YAML document and adds the listing
// definitions that seed the option chain.
package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"options-mm-go/chain"
	"options-mm-go/hedging"
	"options-mm-go/infrastructure/logger"
	"options-mm-go/inventory"
	"options-mm-go/marketdata"
	"options-mm-go/quoting"
	"options-mm-go/risk"
	"options-mm-go/venue"
)

// Options expiries settle at 08:00 UTC.
const expiryHourUTC = 8

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env       string          `yaml:"env"`
	Logging   logger.Config   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Feed      FeedConfig      `yaml:"feed"`
	Journal   JournalConfig   `yaml:"journal"`
	Engine    EngineConfig    `yaml:"engine"`
	HotReload HotReloadConfig `yaml:"hot_reload"`

	MarketData marketdata.HandlerConfig `yaml:"marketdata"`
	Quoting    quoting.Params           `yaml:"quoting"`
	QuoteChurn quoting.GeneratorConfig  `yaml:"quote_churn"`
	Hedging    HedgingConfig            `yaml:"hedging"`
	Risk       risk.Limits              `yaml:"risk"`
	Limits     LimitsConfig             `yaml:"limits"`

	Underlyings map[string]UnderlyingConfig `yaml:"underlyings"`
}

// MetricsConfig exposes the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// FeedConfig exposes the websocket event feed.
type FeedConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// JournalConfig appends every ledger fill to a JSONL file, the input
// for offline P&L replay.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// EngineConfig sets the evaluation cadences. Intervals are
// milliseconds in YAML, exposed as durations.
type EngineConfig struct {
	QuoteIntervalMs     int `yaml:"quote_interval_ms"`
	RiskIntervalMs      int `yaml:"risk_interval_ms"`
	RebalanceIntervalMs int `yaml:"rebalance_interval_ms"` // 0 disables scheduled rebalancing
}

func (e EngineConfig) QuoteInterval() time.Duration {
	return time.Duration(e.QuoteIntervalMs) * time.Millisecond
}

func (e EngineConfig) RiskInterval() time.Duration {
	return time.Duration(e.RiskIntervalMs) * time.Millisecond
}

func (e EngineConfig) RebalanceInterval() time.Duration {
	return time.Duration(e.RebalanceIntervalMs) * time.Millisecond
}

// HotReloadConfig tunes the config file watcher.
type HotReloadConfig struct {
	Enabled    bool `yaml:"enabled"`
	CooldownMs int  `yaml:"cooldown_ms"`
}

func (h HotReloadConfig) Cooldown() time.Duration {
	return time.Duration(h.CooldownMs) * time.Millisecond
}

// HedgingConfig mirrors hedging.Params with the interval in
// milliseconds for YAML.
type HedgingConfig struct {
	TargetDelta        float64 `yaml:"target_delta"`
	EnterThreshold     float64 `yaml:"enter_threshold"`
	ExitThreshold      float64 `yaml:"exit_threshold"`
	MinHedgeSize       float64 `yaml:"min_hedge_size"`
	MaxHedgeSize       float64 `yaml:"max_hedge_size"`
	MinIntervalMs      int     `yaml:"min_interval_ms"`
	DeltaMoveRetrigger float64 `yaml:"delta_move_retrigger"`
	UseLimitOrders     bool    `yaml:"use_limit_orders"`
	LimitOffsetBps     float64 `yaml:"limit_offset_bps"`
}

// Params converts into the hedging package's parameter struct.
func (h HedgingConfig) Params() hedging.Params {
	return hedging.Params{
		TargetDelta:        h.TargetDelta,
		EnterThreshold:     h.EnterThreshold,
		ExitThreshold:      h.ExitThreshold,
		MinHedgeSize:       h.MinHedgeSize,
		MaxHedgeSize:       h.MaxHedgeSize,
		MinInterval:        time.Duration(h.MinIntervalMs) * time.Millisecond,
		DeltaMoveRetrigger: h.DeltaMoveRetrigger,
		UseLimitOrders:     h.UseLimitOrders,
		LimitOffsetBps:     h.LimitOffsetBps,
	}
}

func hedgingConfigFrom(p hedging.Params) HedgingConfig {
	return HedgingConfig{
		TargetDelta:        p.TargetDelta,
		EnterThreshold:     p.EnterThreshold,
		ExitThreshold:      p.ExitThreshold,
		MinHedgeSize:       p.MinHedgeSize,
		MaxHedgeSize:       p.MaxHedgeSize,
		MinIntervalMs:      int(p.MinInterval / time.Millisecond),
		DeltaMoveRetrigger: p.DeltaMoveRetrigger,
		UseLimitOrders:     p.UseLimitOrders,
		LimitOffsetBps:     p.LimitOffsetBps,
	}
}

// LimitsConfig selects a position-limit preset, optionally replaced
// wholesale by a custom table.
type LimitsConfig struct {
	Preset string                    `yaml:"preset"` // small, medium, large
	Custom *inventory.PositionLimits `yaml:"custom"`
}

// Resolve returns the effective position limits.
func (l LimitsConfig) Resolve() inventory.PositionLimits {
	if l.Custom != nil {
		return *l.Custom
	}
	return inventory.PresetLimits(l.Preset)
}

// UnderlyingConfig lists one underlying's market: multiplier, venue
// grid, and the contracts to quote. Expiries are dates (YYYY-MM-DD)
// settling at 08:00 UTC; every expiry-strike pair lists the styles in
// Styles (both call and put when empty).
type UnderlyingConfig struct {
	Multiplier  float64           `yaml:"multiplier"`
	Constraints venue.Constraints `yaml:"constraints"`
	Expiries    []string          `yaml:"expiries"`
	Strikes     []float64         `yaml:"strikes"`
	Styles      []string          `yaml:"styles"`
	Hedging     *HedgingConfig    `yaml:"hedging"`
}

// Load reads YAML config from path and validates it.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides operational fields
// from OMM_-prefixed environment variables if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("OMM_ENV"); v != "" {
		cfg.Env = v
	}
	if v := os.Getenv("OMM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("OMM_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("OMM_FEED_ADDR"); v != "" {
		cfg.Feed.Addr = v
	}
	return cfg, Validate(cfg)
}

// DefaultConfig returns a runnable configuration: one BTC market with
// two expiries around now, standard model parameters, small limits.
func DefaultConfig() AppConfig {
	now := time.Now().UTC()
	near := now.AddDate(0, 0, 30).Format("2006-01-02")
	far := now.AddDate(0, 0, 90).Format("2006-01-02")

	return AppConfig{
		Env:       "dev",
		Logging:   logger.DefaultConfig(),
		Metrics:   MetricsConfig{Enabled: true, Addr: ":9108"},
		Feed:      FeedConfig{Enabled: false, Addr: ":8899"},
		Journal:   JournalConfig{Enabled: false, Path: "fills.jsonl"},
		Engine:    EngineConfig{QuoteIntervalMs: 500, RiskIntervalMs: 1000, RebalanceIntervalMs: 0},
		HotReload: HotReloadConfig{Enabled: true, CooldownMs: 5000},

		MarketData: marketdata.DefaultHandlerConfig(),
		Quoting:    quoting.DefaultParams(),
		QuoteChurn: quoting.DefaultGeneratorConfig(),
		Hedging:    hedgingConfigFrom(hedging.DefaultParams()),
		Risk:       risk.DefaultLimits(),
		Limits:     LimitsConfig{Preset: "small"},

		Underlyings: map[string]UnderlyingConfig{
			"BTC": {
				Multiplier: 1,
				Constraints: venue.Constraints{
					TickSize: 0.05,
					LotSize:  0.1,
					MinSize:  0.1,
					MaxSize:  1000,
				},
				Expiries: []string{near, far},
				Strikes:  []float64{40_000, 45_000, 50_000, 55_000, 60_000},
			},
		},
	}
}

// ParseExpiry parses a YYYY-MM-DD listing date into the settlement
// instant.
func ParseExpiry(s string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("expiry %q: %w", s, err)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), expiryHourUTC, 0, 0, 0, time.UTC), nil
}

// Listings expands the underlying sections into the full contract set,
// sorted by symbol.
func (cfg AppConfig) Listings() ([]chain.OptionContract, error) {
	var out []chain.OptionContract
	for _, und := range cfg.UnderlyingNames() {
		uc := cfg.Underlyings[und]
		styles, err := uc.styles()
		if err != nil {
			return nil, fmt.Errorf("underlying %s: %w", und, err)
		}
		for _, es := range uc.Expiries {
			expiry, err := ParseExpiry(es)
			if err != nil {
				return nil, fmt.Errorf("underlying %s: %w", und, err)
			}
			for _, strike := range uc.Strikes {
				for _, style := range styles {
					oc, err := chain.NewOptionContract(und, strike, expiry, style)
					if err != nil {
						return nil, fmt.Errorf("underlying %s: %w", und, err)
					}
					out = append(out, oc)
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

// UnderlyingNames returns the configured underlyings sorted.
func (cfg AppConfig) UnderlyingNames() []string {
	names := make([]string, 0, len(cfg.Underlyings))
	for name := range cfg.Underlyings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HedgingFor returns the hedging parameters for an underlying,
// falling back to the global section.
func (cfg AppConfig) HedgingFor(underlying string) hedging.Params {
	if uc, ok := cfg.Underlyings[underlying]; ok && uc.Hedging != nil {
		return uc.Hedging.Params()
	}
	return cfg.Hedging.Params()
}

func (uc UnderlyingConfig) styles() ([]chain.Style, error) {
	if len(uc.Styles) == 0 {
		return []chain.Style{chain.Call, chain.Put}, nil
	}
	out := make([]chain.Style, 0, len(uc.Styles))
	for _, s := range uc.Styles {
		style := chain.Style(s)
		if !style.Valid() {
			return nil, fmt.Errorf("unknown style %q", s)
		}
		out = append(out, style)
	}
	return out, nil
}
