package strategy

import "main/internal/market"

// CooldownConfig frames the no-entry window around each funding settlement.
type CooldownConfig struct {
	BeforeMin int `json:"beforeMin"`
	AfterMin  int `json:"afterMin"`
}

// Cooldown is the gate verdict for one tick. FromTs and UntilTs frame the
// window around the nearest future funding settlement across the universe;
// they are nil when no settlement is known.
type Cooldown struct {
	IsActive bool    `json:"isActive"`
	Reason   *string `json:"reason"`
	FromTs   *int64  `json:"fromTs"`
	UntilTs  *int64  `json:"untilTs"`
}

const _cooldownReasonFundingWindow = "FUNDING_WINDOW"

// CooldownGate suppresses entries around funding settlements.
type CooldownGate struct{}

// Evaluate finds the minimum future nextFundingTime across the universe and
// reports whether nowTs falls inside [fromTs, untilTs], both bounds
// inclusive. Settlements at or before nowTs are ignored.
func (CooldownGate) Evaluate(symbols []string, marketBySymbol map[string]market.State, cfg CooldownConfig, nowTs int64) Cooldown {
	var nextFundingTime *int64

	for _, symbol := range symbols {
		state, ok := marketBySymbol[symbol]
		if !ok || state.NextFundingTime == nil {
			continue
		}
		ts := *state.NextFundingTime
		if ts <= nowTs {
			continue
		}
		if nextFundingTime == nil || ts < *nextFundingTime {
			nextFundingTime = &ts
		}
	}

	if nextFundingTime == nil {
		return Cooldown{}
	}

	fromTs := *nextFundingTime - int64(cfg.BeforeMin)*60_000
	untilTs := *nextFundingTime + int64(cfg.AfterMin)*60_000
	active := nowTs >= fromTs && nowTs <= untilTs

	out := Cooldown{IsActive: active, FromTs: &fromTs, UntilTs: &untilTs}
	if active {
		reason := _cooldownReasonFundingWindow
		out.Reason = &reason
	}
	return out
}
