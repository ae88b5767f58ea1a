package config

import (
	"errors"
	"fmt"
)

var validPresets = map[string]bool{"": true, "small": true, "medium": true, "large": true}

// Validate ensures required fields are present and every component
// section passes its own validation.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return errors.New("env is required")
	}
	switch cfg.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging.format %q must be json or console", cfg.Logging.Format)
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		return errors.New("metrics.addr is required when metrics are enabled")
	}
	if cfg.Feed.Enabled && cfg.Feed.Addr == "" {
		return errors.New("feed.addr is required when the feed is enabled")
	}
	if cfg.Journal.Enabled && cfg.Journal.Path == "" {
		return errors.New("journal.path is required when the journal is enabled")
	}
	if cfg.Engine.QuoteIntervalMs <= 0 {
		return errors.New("engine.quote_interval_ms must be > 0")
	}
	if cfg.Engine.RiskIntervalMs <= 0 {
		return errors.New("engine.risk_interval_ms must be > 0")
	}
	if cfg.Engine.RebalanceIntervalMs < 0 {
		return errors.New("engine.rebalance_interval_ms must be >= 0")
	}
	if cfg.HotReload.CooldownMs < 0 {
		return errors.New("hot_reload.cooldown_ms must be >= 0")
	}

	if cfg.MarketData.DefaultVol < 0 {
		return errors.New("marketdata.default_vol must be >= 0")
	}
	if err := cfg.Quoting.Validate(); err != nil {
		return fmt.Errorf("quoting: %w", err)
	}
	if cfg.QuoteChurn.PriceTolerance < 0 || cfg.QuoteChurn.SizeTolerance < 0 {
		return errors.New("quote_churn tolerances must be >= 0")
	}
	if err := cfg.Hedging.Params().Validate(); err != nil {
		return fmt.Errorf("hedging: %w", err)
	}
	if err := cfg.Risk.Validate(); err != nil {
		return fmt.Errorf("risk: %w", err)
	}
	if !validPresets[cfg.Limits.Preset] {
		return fmt.Errorf("limits.preset %q must be small, medium, or large", cfg.Limits.Preset)
	}

	if len(cfg.Underlyings) == 0 {
		return errors.New("underlyings config is required")
	}
	for und, uc := range cfg.Underlyings {
		if uc.Multiplier <= 0 {
			return fmt.Errorf("underlying %s: multiplier must be > 0", und)
		}
		if uc.Constraints.TickSize < 0 || uc.Constraints.LotSize < 0 {
			return fmt.Errorf("underlying %s: constraints must be >= 0", und)
		}
		if uc.Constraints.MinSize < 0 || uc.Constraints.MaxSize < 0 {
			return fmt.Errorf("underlying %s: size bounds must be >= 0", und)
		}
		if len(uc.Expiries) == 0 {
			return fmt.Errorf("underlying %s: at least one expiry is required", und)
		}
		for _, es := range uc.Expiries {
			if _, err := ParseExpiry(es); err != nil {
				return fmt.Errorf("underlying %s: %w", und, err)
			}
		}
		if len(uc.Strikes) == 0 {
			return fmt.Errorf("underlying %s: at least one strike is required", und)
		}
		for _, strike := range uc.Strikes {
			if strike <= 0 {
				return fmt.Errorf("underlying %s: strike %f must be > 0", und, strike)
			}
		}
		if _, err := uc.styles(); err != nil {
			return fmt.Errorf("underlying %s: %w", und, err)
		}
		if uc.Hedging != nil {
			if err := uc.Hedging.Params().Validate(); err != nil {
				return fmt.Errorf("underlying %s hedging: %w", und, err)
			}
		}
	}
	return nil
}
