package market

// TickerPatch is a partial per-symbol market update. Nil fields are absent
// and leave the stored value untouched; non-nil fields are already validated
// as finite by the feed boundary.
type TickerPatch struct {
	MarkPrice         *float64 `json:"markPrice,omitempty"`
	OpenInterestValue *float64 `json:"openInterestValue,omitempty"`
	Turnover24h       *float64 `json:"turnover24h,omitempty"`
	HighPrice24h      *float64 `json:"highPrice24h,omitempty"`
	LowPrice24h       *float64 `json:"lowPrice24h,omitempty"`
	FundingRate       *float64 `json:"fundingRate,omitempty"`
	NextFundingTime   *int64   `json:"nextFundingTime,omitempty"`
}

// State is the latest known market data for a symbol.
type State struct {
	Symbol            string
	MarkPrice         *float64
	OpenInterestValue *float64
	Turnover24h       *float64
	HighPrice24h      *float64
	LowPrice24h       *float64
	FundingRate       *float64
	NextFundingTime   *int64
	UpdatedAt         int64
}

// Candle is one kline row. Volume and turnover may be absent on some venues.
type Candle struct {
	Start     int64
	End       int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    *float64
	Turnover  *float64
	Confirm   bool
	Timestamp int64
}

// CandleReference holds the previous confirmed close and the open-interest
// value observed at confirmation time.
type CandleReference struct {
	PrevClose       *float64
	PrevOIV         *float64
	LastConfirmedTs int64
}

// InstrumentSpec is the immutable per-symbol contract metadata fetched once
// at session start.
type InstrumentSpec struct {
	Symbol   string
	TickSize float64
	QtyStep  float64
	MinQty   float64
}

// Float returns a pointer to v. Convenience for building patches.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int64) *int64 { return &v }

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneInt(v *int64) *int64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func (s State) clone() State {
	return State{
		Symbol:            s.Symbol,
		MarkPrice:         cloneFloat(s.MarkPrice),
		OpenInterestValue: cloneFloat(s.OpenInterestValue),
		Turnover24h:       cloneFloat(s.Turnover24h),
		HighPrice24h:      cloneFloat(s.HighPrice24h),
		LowPrice24h:       cloneFloat(s.LowPrice24h),
		FundingRate:       cloneFloat(s.FundingRate),
		NextFundingTime:   cloneInt(s.NextFundingTime),
		UpdatedAt:         s.UpdatedAt,
	}
}
