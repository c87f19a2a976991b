package session

import (
	"github.com/yanun0323/errors"

	"main/internal/paper"
	"main/internal/strategy"
)

// UniverseConfig filters the candidate symbols at session start.
type UniverseConfig struct {
	MinVolatility24hPct float64 `json:"minVolatility24hPct"`
	MinTurnover24hUSDT  float64 `json:"minTurnover24hUSDT"`
	MaxSymbols          int     `json:"maxSymbols"`
}

// Config is the full session start request.
type Config struct {
	TfMin           int                     `json:"tfMin"`
	Universe        UniverseConfig          `json:"universe"`
	Signal          strategy.SignalConfig   `json:"signal"`
	Trade           paper.TradeConfig       `json:"trade"`
	FundingCooldown strategy.CooldownConfig `json:"fundingCooldown"`
	Fees            paper.FeeConfig         `json:"fees"`
}

// Validate rejects configs that cannot produce a working session. It runs
// before any side effect of starting.
func (c Config) Validate() error {
	if c.TfMin <= 0 {
		return errors.Errorf("tfMin must be positive, got %d", c.TfMin)
	}
	if c.Universe.MaxSymbols <= 0 {
		return errors.Errorf("universe.maxSymbols must be positive, got %d", c.Universe.MaxSymbols)
	}
	if c.Universe.MinTurnover24hUSDT < 0 {
		return errors.New("universe.minTurnover24hUSDT must not be negative")
	}
	if c.Universe.MinVolatility24hPct < 0 {
		return errors.New("universe.minVolatility24hPct must not be negative")
	}
	if c.Signal.PriceMovePctThreshold < 0 || c.Signal.OivMovePctThreshold < 0 {
		return errors.New("signal thresholds must not be negative")
	}
	if c.Trade.MarginUSDT <= 0 {
		return errors.New("trade.marginUSDT must be positive")
	}
	if c.Trade.Leverage <= 0 {
		return errors.New("trade.leverage must be positive")
	}
	if c.Trade.EntryOrderTimeoutMin <= 0 {
		return errors.New("trade.entryOrderTimeoutMin must be positive")
	}
	if c.Trade.TPRoiPct <= 0 || c.Trade.SLRoiPct <= 0 {
		return errors.New("trade TP/SL ROI percentages must be positive")
	}
	if c.FundingCooldown.BeforeMin < 0 || c.FundingCooldown.AfterMin < 0 {
		return errors.New("fundingCooldown minutes must not be negative")
	}
	if c.Fees.MakerRate < 0 || c.Fees.TakerRate < 0 {
		return errors.New("fee rates must not be negative")
	}
	return nil
}
