package sim

import (
	"os"
	"sort"
	"sync"

	"github.com/bytedance/sonic"

	"main/internal/feed"
	"main/internal/market"
)

// FrameKline is one kline emission inside a frame.
type FrameKline struct {
	Symbol string        `json:"symbol"`
	TfMin  int           `json:"tfMin"`
	Candle market.Candle `json:"candle"`
}

// Frame is everything the feed emits at one second offset.
type Frame struct {
	T       int64                         `json:"t"`
	Tickers map[string]market.TickerPatch `json:"tickers"`
	Klines  []FrameKline                  `json:"klines"`
}

// Scenario is a scripted sequence of market data frames keyed by second
// offset from session start.
type Scenario struct {
	Name    string   `json:"name"`
	BaseTs  int64    `json:"baseTs"`
	Symbols []string `json:"symbols"`
	Frames  []Frame  `json:"frames"`
}

// LoadScenario reads a scenario JSON file.
func LoadScenario(path string) (Scenario, error) {
	var scenario Scenario
	raw, err := os.ReadFile(path)
	if err != nil {
		return scenario, err
	}
	if err := sonic.ConfigFastest.Unmarshal(raw, &scenario); err != nil {
		return scenario, err
	}
	return scenario, nil
}

// Feed replays a scenario through the feed callbacks. It never spawns
// goroutines; the caller drives time via Tick.
type Feed struct {
	scenario  Scenario
	callbacks feed.Callbacks

	mu            sync.Mutex
	running       bool
	subs          feed.Subscriptions
	frameBySecond map[int64]Frame
}

// NewFeed indexes the scenario frames by second offset.
func NewFeed(scenario Scenario, callbacks feed.Callbacks) *Feed {
	frames := make(map[int64]Frame, len(scenario.Frames))
	for _, frame := range scenario.Frames {
		frames[frame.T] = frame
	}
	return &Feed{
		scenario:      scenario,
		callbacks:     callbacks,
		frameBySecond: frames,
	}
}

var _ feed.MarketFeed = (*Feed)(nil)

func (f *Feed) SetSubscriptions(subs feed.Subscriptions) error {
	seen := make(map[string]struct{}, len(subs.Symbols))
	symbols := make([]string, 0, len(subs.Symbols))
	for _, symbol := range subs.Symbols {
		if _, ok := seen[symbol]; ok {
			continue
		}
		seen[symbol] = struct{}{}
		symbols = append(symbols, symbol)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = feed.Subscriptions{Symbols: symbols, TimeframeMin: subs.TimeframeMin, IncludeKline: subs.IncludeKline}
	return nil
}

func (f *Feed) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = true
}

func (f *Feed) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = false
}

func (f *Feed) Report() feed.SubscriptionReport {
	f.mu.Lock()
	defer f.mu.Unlock()

	report := feed.SubscriptionReport{
		TotalSymbols:        len(f.subs.Symbols),
		TopicsPerConnection: []int{},
	}
	if len(f.subs.Symbols) == 0 {
		return report
	}

	topicsPerSymbol := 1
	if f.subs.IncludeKline {
		topicsPerSymbol = 2
	}
	report.Connections = 1
	report.TopicsPerConnection = []int{len(f.subs.Symbols) * topicsPerSymbol}
	return report
}

// Scenario returns the scenario being replayed.
func (f *Feed) Scenario() Scenario {
	return f.scenario
}

// Tick emits the frame scheduled at secondOffset, if any, filtered by the
// current subscription set. No-op while stopped.
func (f *Feed) Tick(secondOffset int64) {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return
	}
	frame, ok := f.frameBySecond[secondOffset]
	subs := f.subs
	f.mu.Unlock()
	if !ok {
		return
	}

	allowed := make(map[string]struct{}, len(subs.Symbols))
	for _, symbol := range subs.Symbols {
		allowed[symbol] = struct{}{}
	}
	permitted := func(symbol string) bool {
		if len(allowed) == 0 {
			return true
		}
		_, ok := allowed[symbol]
		return ok
	}

	// sorted emission keeps replays deterministic across runs
	symbols := make([]string, 0, len(frame.Tickers))
	for symbol := range frame.Tickers {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	for _, symbol := range symbols {
		if !permitted(symbol) {
			continue
		}
		if f.callbacks.OnTicker != nil {
			f.callbacks.OnTicker(symbol, frame.Tickers[symbol])
		}
	}

	for _, item := range frame.Klines {
		if !permitted(item.Symbol) || item.TfMin != subs.TimeframeMin {
			continue
		}
		if f.callbacks.OnKline != nil {
			f.callbacks.OnKline(item.Symbol, item.TfMin, item.Candle)
		}
	}
}
