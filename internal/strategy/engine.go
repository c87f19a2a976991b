package strategy

// SignalConfig holds the momentum thresholds.
type SignalConfig struct {
	PriceMovePctThreshold float64 `json:"priceMovePctThreshold"`
	OivMovePctThreshold   float64 `json:"oivMovePctThreshold"`
}

// SignalSide is the direction of a fired signal.
type SignalSide string

const (
	SignalLong  SignalSide = "LONG"
	SignalShort SignalSide = "SHORT"
)

// Input is everything known about one symbol at evaluation time. Pointer
// fields are absent when the feed has not delivered them yet.
type Input struct {
	Symbol            string
	MarkPrice         *float64
	OivUSDT           *float64
	FundingRate       *float64
	PrevCandleClose   *float64
	PrevCandleOivUSDT *float64
	Armed             bool
	DataReady         bool
	CooldownBlocked   bool
}

// Decision is a fired signal.
type Decision struct {
	Symbol       string
	Side         SignalSide
	PriceMovePct float64
	OivMovePct   float64
}

// Engine evaluates the momentum/open-interest signal. Stateless.
type Engine struct{}

// Evaluate fires LONG when price and open-interest moves both meet the
// positive thresholds and funding is strictly positive, SHORT on the exact
// mirror. Any missing datum or a zero reference suppresses the signal.
func (Engine) Evaluate(in Input, cfg SignalConfig) *Decision {
	if !in.Armed || !in.DataReady || in.CooldownBlocked {
		return nil
	}
	if in.MarkPrice == nil || in.OivUSDT == nil || in.FundingRate == nil {
		return nil
	}
	if in.PrevCandleClose == nil || *in.PrevCandleClose == 0 {
		return nil
	}
	if in.PrevCandleOivUSDT == nil || *in.PrevCandleOivUSDT == 0 {
		return nil
	}

	priceMovePct := (*in.MarkPrice - *in.PrevCandleClose) / *in.PrevCandleClose * 100
	oivMovePct := (*in.OivUSDT - *in.PrevCandleOivUSDT) / *in.PrevCandleOivUSDT * 100

	if priceMovePct >= cfg.PriceMovePctThreshold &&
		oivMovePct >= cfg.OivMovePctThreshold &&
		*in.FundingRate > 0 {
		return &Decision{Symbol: in.Symbol, Side: SignalLong, PriceMovePct: priceMovePct, OivMovePct: oivMovePct}
	}

	if priceMovePct <= -cfg.PriceMovePctThreshold &&
		oivMovePct <= -cfg.OivMovePctThreshold &&
		*in.FundingRate < 0 {
		return &Decision{Symbol: in.Symbol, Side: SignalShort, PriceMovePct: priceMovePct, OivMovePct: oivMovePct}
	}

	return nil
}
