package bybit

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"

	"main/internal/market"
)

var _json = sonic.ConfigFastest

type envelope struct {
	Topic string          `json:"topic"`
	Op    string          `json:"op"`
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
}

type tickerRaw struct {
	Symbol            string `json:"symbol"`
	MarkPrice         string `json:"markPrice"`
	OpenInterestValue string `json:"openInterestValue"`
	Turnover24h       string `json:"turnover24h"`
	HighPrice24h      string `json:"highPrice24h"`
	LowPrice24h       string `json:"lowPrice24h"`
	FundingRate       string `json:"fundingRate"`
	NextFundingTime   string `json:"nextFundingTime"`
}

type klineRaw struct {
	Start     int64  `json:"start"`
	End       int64  `json:"end"`
	Open      string `json:"open"`
	High      string `json:"high"`
	Low       string `json:"low"`
	Close     string `json:"close"`
	Volume    string `json:"volume"`
	Turnover  string `json:"turnover"`
	Confirm   bool   `json:"confirm"`
	Timestamp int64  `json:"timestamp"`
}

type tickerUpdate struct {
	Symbol string
	Patch  market.TickerPatch
}

type klineUpdate struct {
	Symbol string
	TfMin  int
	Candle market.Candle
}

// parseFloat implements parse-or-absent: empty or malformed numeric strings
// yield nil rather than zero, so a missing field never masquerades as a
// real value.
func parseFloat(raw string) *float64 {
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func parseInt(raw string) *int64 {
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

func symbolFromTopic(topic string) string {
	idx := strings.LastIndexByte(topic, '.')
	if idx < 0 {
		return ""
	}
	return topic[idx+1:]
}

// decodeTicker parses a tickers.<symbol> frame into a partial patch.
func decodeTicker(env envelope) (tickerUpdate, bool) {
	var raw tickerRaw
	if err := _json.Unmarshal(env.Data, &raw); err != nil {
		return tickerUpdate{}, false
	}

	symbol := raw.Symbol
	if symbol == "" {
		symbol = symbolFromTopic(env.Topic)
	}
	if symbol == "" {
		return tickerUpdate{}, false
	}

	return tickerUpdate{
		Symbol: symbol,
		Patch: market.TickerPatch{
			MarkPrice:         parseFloat(raw.MarkPrice),
			OpenInterestValue: parseFloat(raw.OpenInterestValue),
			Turnover24h:       parseFloat(raw.Turnover24h),
			HighPrice24h:      parseFloat(raw.HighPrice24h),
			LowPrice24h:       parseFloat(raw.LowPrice24h),
			FundingRate:       parseFloat(raw.FundingRate),
			NextFundingTime:   parseInt(raw.NextFundingTime),
		},
	}, true
}

// decodeKlines parses a kline.<tf>.<symbol> frame. Rows missing any OHLC
// bound or the timestamp are skipped; volume and turnover stay optional.
func decodeKlines(env envelope) []klineUpdate {
	parts := strings.Split(env.Topic, ".")
	if len(parts) != 3 {
		return nil
	}
	tfMin, err := strconv.Atoi(parts[1])
	if err != nil || parts[2] == "" {
		return nil
	}
	symbol := parts[2]

	var rows []klineRaw
	if err := _json.Unmarshal(env.Data, &rows); err != nil {
		return nil
	}

	out := make([]klineUpdate, 0, len(rows))
	for _, row := range rows {
		open := parseFloat(row.Open)
		high := parseFloat(row.High)
		low := parseFloat(row.Low)
		closePrice := parseFloat(row.Close)
		if row.Start <= 0 || row.End <= 0 || row.Timestamp <= 0 ||
			open == nil || high == nil || low == nil || closePrice == nil {
			continue
		}

		out = append(out, klineUpdate{
			Symbol: symbol,
			TfMin:  tfMin,
			Candle: market.Candle{
				Start:     row.Start,
				End:       row.End,
				Open:      *open,
				High:      *high,
				Low:       *low,
				Close:     *closePrice,
				Volume:    parseFloat(row.Volume),
				Turnover:  parseFloat(row.Turnover),
				Confirm:   row.Confirm,
				Timestamp: row.Timestamp,
			},
		})
	}
	return out
}
