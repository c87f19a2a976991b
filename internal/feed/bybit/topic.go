package bybit

import (
	"fmt"

	"github.com/yanun0323/errors"
)

const (
	_publicLinearWsURL = "wss://stream.bybit.com/v5/public/linear"
	_v5RestBaseURL     = "https://api.bybit.com"

	_argsMaxChars      = 21_000
	_pingIntervalMs    = 20_000
	_watchdogTimeoutMs = 30_000
	_reconnectBaseMs   = 1_000
	_reconnectMaxMs    = 30_000
)

// TickerTopic returns the public linear ticker topic for symbol.
func TickerTopic(symbol string) string {
	return "tickers." + symbol
}

// KlineTopic returns the kline topic for a timeframe in minutes.
func KlineTopic(tfMin int, symbol string) string {
	return fmt.Sprintf("kline.%d.%s", tfMin, symbol)
}

// BuildTopics expands symbols into subscription topics, one ticker topic per
// symbol plus optionally one kline topic per symbol.
func BuildTopics(symbols []string, tfMin int, includeKline bool) []string {
	if !includeKline {
		out := make([]string, 0, len(symbols))
		for _, symbol := range symbols {
			out = append(out, TickerTopic(symbol))
		}
		return out
	}

	out := make([]string, 0, 2*len(symbols))
	for _, symbol := range symbols {
		out = append(out, TickerTopic(symbol), KlineTopic(tfMin, symbol))
	}
	return out
}

// PartitionTopics greedily packs topics into groups whose joined args length
// (topic lengths plus one separator between adjacent topics) stays within
// maxChars. Order is preserved. A single topic longer than maxChars is an
// error.
func PartitionTopics(topics []string, maxChars int) ([][]string, error) {
	if maxChars <= 0 {
		return nil, errors.Errorf("maxChars must be positive, received %d", maxChars)
	}

	var (
		groups       [][]string
		current      []string
		currentChars int
	)

	for _, topic := range topics {
		if len(topic) == 0 {
			continue
		}
		if len(topic) > maxChars {
			return nil, errors.Errorf("topic exceeds max args length (%d): %s", maxChars, topic)
		}

		cost := len(topic)
		if currentChars > 0 {
			cost++
		}

		if currentChars+cost > maxChars {
			groups = append(groups, current)
			current = []string{topic}
			currentChars = len(topic)
			continue
		}

		current = append(current, topic)
		currentChars += cost
	}

	if len(current) > 0 {
		groups = append(groups, current)
	}

	return groups, nil
}
