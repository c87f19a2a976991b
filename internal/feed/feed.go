package feed

import "main/internal/market"

// Subscriptions declares what a market feed should stream.
type Subscriptions struct {
	Symbols      []string
	TimeframeMin int
	IncludeKline bool
}

// SubscriptionReport describes how the current subscription set is spread
// across connections.
type SubscriptionReport struct {
	TotalSymbols        int   `json:"totalSymbols"`
	Connections         int   `json:"connections"`
	TopicsPerConnection []int `json:"topicsPerConnection"`
}

// Callbacks receive feed events. They may be invoked from feed-owned
// goroutines and must not block.
type Callbacks struct {
	OnTicker       func(symbol string, patch market.TickerPatch)
	OnKline        func(symbol string, tfMin int, candle market.Candle)
	OnConnected    func(shardID int)
	OnReconnecting func(shardID, attempt int, reason string)
	OnError        func(err error)
}

// MarketFeed streams ticker and kline updates for a subscription set. The
// session layer only depends on this surface, so a simulated feed can stand
// in for the live one.
type MarketFeed interface {
	SetSubscriptions(subs Subscriptions) error
	Start()
	Stop()
	Report() SubscriptionReport
}
