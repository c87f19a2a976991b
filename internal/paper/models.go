package paper

import "main/internal/market"

// OrderSide is the direction of an entry order.
type OrderSide string

const (
	OrderBuy  OrderSide = "BUY"
	OrderSell OrderSide = "SELL"
)

// PositionSide is the direction of an open position.
type PositionSide string

const (
	PositionLong  PositionSide = "LONG"
	PositionShort PositionSide = "SHORT"
)

// ExitReason tags why a position was closed.
type ExitReason string

const (
	ExitTakeProfit ExitReason = "TP"
	ExitStopLoss   ExitReason = "SL"
	ExitStop       ExitReason = "STOP"
)

// SymbolStatus is the derived per-symbol state used for observability only.
type SymbolStatus string

const (
	StatusIdle         SymbolStatus = "IDLE"
	StatusArmed        SymbolStatus = "ARMED"
	StatusOrderPlaced  SymbolStatus = "ORDER_PLACED"
	StatusPositionOpen SymbolStatus = "POSITION_OPEN"
)

// Order is a live limit entry order. At most one per symbol.
type Order struct {
	Side      OrderSide `json:"side"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	PlacedTs  int64     `json:"placedTs"`
	ExpiresTs int64     `json:"expiresTs"`
	Price     float64   `json:"price"`
	Qty       float64   `json:"qty"`
}

// Position is a live simulated position. At most one per symbol, mutually
// exclusive with Order.
type Position struct {
	Side               PositionSide `json:"side"`
	EntryTs            int64        `json:"entryTs"`
	EntryPrice         float64      `json:"entryPrice"`
	Qty                float64      `json:"qty"`
	TPPrice            float64      `json:"tpPrice"`
	SLPrice            float64      `json:"slPrice"`
	FundingAccruedUSDT float64      `json:"fundingAccruedUSDT"`
	FeesPaidUSDT       float64      `json:"feesPaidUSDT"`
	UnrealizedPnlUSDT  float64      `json:"unrealizedPnlUSDT"`
	UnrealizedRoiPct   float64      `json:"unrealizedRoiPct"`
	LastFundingApplied int64        `json:"lastFundingTsApplied"`
}

// MarketTick is the per-symbol market view the broker consumes each tick.
type MarketTick struct {
	MarkPrice       *float64
	FundingRate     *float64
	NextFundingTime *int64
}

// TradeConfig sizes entries and derives exit prices.
type TradeConfig struct {
	MarginUSDT           float64 `json:"marginUSDT"`
	Leverage             float64 `json:"leverage"`
	EntryOffsetPct       float64 `json:"entryOffsetPct"`
	EntryOrderTimeoutMin int     `json:"entryOrderTimeoutMin"`
	TPRoiPct             float64 `json:"tpRoiPct"`
	SLRoiPct             float64 `json:"slRoiPct"`
}

// FeeConfig holds exchange fee rates.
type FeeConfig struct {
	MakerRate float64 `json:"makerRate"`
	TakerRate float64 `json:"takerRate"`
}

// EntryInput is everything needed to place one entry order.
type EntryInput struct {
	Symbol     string
	Side       PositionSide
	MarkPrice  float64
	NowTs      int64
	Trade      TradeConfig
	Instrument market.InstrumentSpec
}

type symbolState struct {
	order    *Order
	position *Position
	rearmAt  int64
}
