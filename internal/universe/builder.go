package universe

import (
	"context"
	"sort"
	"time"

	"main/internal/feed"
	"main/internal/market"
)

const _defaultWarmupMs = 4_000

// BuildInput filters the candidate set down to the tradable universe.
type BuildInput struct {
	CandidateSymbols    []string
	MinVolatility24hPct float64
	MinTurnover24hUSDT  float64
	MaxSymbols          int
}

// BuildResult is the selected universe plus how many candidates produced any
// market data during warmup.
type BuildResult struct {
	Symbols       []string
	WarmedSymbols int
}

// Builder warms up ticker-only subscriptions, ranks candidates by turnover
// and resubscribes the winners with klines included.
type Builder struct {
	feed     feed.MarketFeed
	store    *market.Store
	warmupMs int64
}

// NewBuilder uses the default warmup window.
func NewBuilder(marketFeed feed.MarketFeed, store *market.Store) *Builder {
	return NewBuilderWithWarmup(marketFeed, store, _defaultWarmupMs)
}

// NewBuilderWithWarmup overrides the warmup window, mainly for tests.
func NewBuilderWithWarmup(marketFeed feed.MarketFeed, store *market.Store, warmupMs int64) *Builder {
	return &Builder{feed: marketFeed, store: store, warmupMs: warmupMs}
}

// Build subscribes tickers for every candidate, waits out the warmup window,
// then keeps the symbols meeting both liquidity floors, ordered by 24h
// turnover descending and truncated to MaxSymbols. Candidates missing any of
// turnover, high or low are excluded rather than guessed at.
func (b *Builder) Build(ctx context.Context, input BuildInput, tfMin int) (BuildResult, error) {
	if err := b.feed.SetSubscriptions(feed.Subscriptions{
		Symbols:      input.CandidateSymbols,
		TimeframeMin: tfMin,
		IncludeKline: false,
	}); err != nil {
		return BuildResult{}, err
	}
	b.feed.Start()

	select {
	case <-ctx.Done():
		return BuildResult{}, ctx.Err()
	case <-time.After(time.Duration(b.warmupMs) * time.Millisecond):
	}

	snapshot := b.store.Snapshot(input.CandidateSymbols)

	type ranked struct {
		symbol   string
		turnover float64
	}
	eligible := make([]ranked, 0, len(snapshot))

	for _, symbol := range input.CandidateSymbols {
		state, ok := snapshot[symbol]
		if !ok {
			continue
		}
		if state.Turnover24h == nil || state.HighPrice24h == nil || state.LowPrice24h == nil {
			continue
		}
		turnover := *state.Turnover24h
		high := *state.HighPrice24h
		low := *state.LowPrice24h
		if low <= 0 {
			continue
		}

		vol24hPct := (high - low) / low * 100
		if turnover < input.MinTurnover24hUSDT || vol24hPct < input.MinVolatility24hPct {
			continue
		}
		eligible = append(eligible, ranked{symbol: symbol, turnover: turnover})
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].turnover > eligible[j].turnover
	})
	if input.MaxSymbols > 0 && len(eligible) > input.MaxSymbols {
		eligible = eligible[:input.MaxSymbols]
	}

	symbols := make([]string, len(eligible))
	for i, item := range eligible {
		symbols[i] = item.symbol
	}

	if err := b.feed.SetSubscriptions(feed.Subscriptions{
		Symbols:      symbols,
		TimeframeMin: tfMin,
		IncludeKline: true,
	}); err != nil {
		return BuildResult{}, err
	}

	return BuildResult{Symbols: symbols, WarmedSymbols: len(snapshot)}, nil
}
