package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return testConfig()
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	for _, tc := range []struct {
		name    string
		mutate  func(*Config)
		message string
	}{
		{"zero timeframe", func(c *Config) { c.TfMin = 0 }, "tfMin"},
		{"zero max symbols", func(c *Config) { c.Universe.MaxSymbols = 0 }, "maxSymbols"},
		{"negative turnover floor", func(c *Config) { c.Universe.MinTurnover24hUSDT = -1 }, "minTurnover24hUSDT"},
		{"negative volatility floor", func(c *Config) { c.Universe.MinVolatility24hPct = -0.5 }, "minVolatility24hPct"},
		{"negative signal threshold", func(c *Config) { c.Signal.PriceMovePctThreshold = -1 }, "thresholds"},
		{"zero margin", func(c *Config) { c.Trade.MarginUSDT = 0 }, "marginUSDT"},
		{"zero leverage", func(c *Config) { c.Trade.Leverage = 0 }, "leverage"},
		{"zero order timeout", func(c *Config) { c.Trade.EntryOrderTimeoutMin = 0 }, "entryOrderTimeoutMin"},
		{"zero tp roi", func(c *Config) { c.Trade.TPRoiPct = 0 }, "TP/SL"},
		{"negative cooldown", func(c *Config) { c.FundingCooldown.BeforeMin = -1 }, "fundingCooldown"},
		{"negative fee", func(c *Config) { c.Fees.MakerRate = -0.0001 }, "fee"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.message)
		})
	}
}
