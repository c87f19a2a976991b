package paper

import (
	"sync"

	"github.com/yanun0323/errors"

	"main/internal/event"
	"main/internal/market"
)

// rearmDelayMs is the fixed delay after any terminal transition before a
// symbol may receive a new entry order.
const rearmDelayMs = 1_000

// Emitted is a broker state transition. The orchestrator stamps it into the
// append-only event stream.
type Emitted struct {
	Type   event.Type
	Symbol string
	Data   map[string]any
}

// Broker simulates per-symbol order and position lifecycles against mark
// prices. For every symbol, order and position are never both live.
type Broker struct {
	mu       sync.Mutex
	symbols  []string
	bySymbol map[string]*symbolState
}

// NewBroker allocates an empty broker.
func NewBroker() *Broker {
	return &Broker{bySymbol: make(map[string]*symbolState)}
}

// Initialize resets the broker for a new universe. Symbol order is kept so
// tick processing and its emitted events stay deterministic.
func (b *Broker) Initialize(symbols []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.symbols = append([]string(nil), symbols...)
	b.bySymbol = make(map[string]*symbolState, len(symbols))
	for _, symbol := range symbols {
		b.bySymbol[symbol] = &symbolState{}
	}
}

// Order returns a copy of the live order for symbol, if any.
func (b *Broker) Order(symbol string) *Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.bySymbol[symbol]
	if !ok || state.order == nil {
		return nil
	}
	order := *state.order
	return &order
}

// Position returns a copy of the live position for symbol, if any.
func (b *Broker) Position(symbol string) *Position {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.bySymbol[symbol]
	if !ok || state.position == nil {
		return nil
	}
	position := *state.position
	return &position
}

// CanArm reports whether symbol may receive a new entry order: nothing live
// and past its re-arm delay.
func (b *Broker) CanArm(symbol string, nowTs int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.bySymbol[symbol]
	if !ok {
		return false
	}
	if state.order != nil || state.position != nil {
		return false
	}
	return state.rearmAt == 0 || nowTs >= state.rearmAt
}

// PlaceEntryOrder places a limit order offset from the mark price toward
// favorable execution, rounded conservatively to the instrument tick. Orders
// below the instrument minimum are silently not placed.
func (b *Broker) PlaceEntryOrder(in EntryInput) []Emitted {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, ok := b.bySymbol[in.Symbol]
	if !ok || state.order != nil || state.position != nil {
		return nil
	}

	orderSide := OrderBuy
	unrounded := in.MarkPrice * (1 - in.Trade.EntryOffsetPct/100)
	if in.Side == PositionShort {
		orderSide = OrderSell
		unrounded = in.MarkPrice * (1 + in.Trade.EntryOffsetPct/100)
	}

	var price float64
	if orderSide == OrderBuy {
		price = RoundDownToTick(unrounded, in.Instrument.TickSize)
	} else {
		price = RoundUpToTick(unrounded, in.Instrument.TickSize)
	}
	if price <= 0 {
		return nil
	}

	notional := in.Trade.MarginUSDT * in.Trade.Leverage
	qty := FloorToStep(notional/price, in.Instrument.QtyStep)
	if qty < in.Instrument.MinQty || qty <= 0 {
		return nil
	}

	state.order = &Order{
		Side:      orderSide,
		Type:      "LIMIT",
		Status:    "OPEN",
		PlacedTs:  in.NowTs,
		ExpiresTs: in.NowTs + int64(in.Trade.EntryOrderTimeoutMin)*60_000,
		Price:     price,
		Qty:       qty,
	}
	state.rearmAt = 0

	return []Emitted{{
		Type:   event.TypeOrderPlaced,
		Symbol: in.Symbol,
		Data: map[string]any{
			"side":      orderSide,
			"price":     price,
			"qty":       qty,
			"placedTs":  state.order.PlacedTs,
			"expiresTs": state.order.ExpiresTs,
			"reason":    "signal_fired",
		},
	}}
}

// ProcessTick advances every symbol against the supplied market view:
// fill and expiry detection for live orders, then funding settlement,
// unrealized PnL and TP/SL touch checks for live positions. TP is checked
// before SL; keep that tie-break as is.
func (b *Broker) ProcessTick(nowTs int64, marketBySymbol map[string]MarketTick, trade TradeConfig, fees FeeConfig) []Emitted {
	b.mu.Lock()
	defer b.mu.Unlock()

	var events []Emitted

	for _, symbol := range b.symbols {
		state := b.bySymbol[symbol]
		tick, hasTick := marketBySymbol[symbol]
		markPrice := 0.0
		hasMark := false
		if hasTick && tick.MarkPrice != nil {
			markPrice = *tick.MarkPrice
			hasMark = true
		}

		if state.order != nil && hasMark {
			filled := (state.order.Side == OrderBuy && markPrice <= state.order.Price) ||
				(state.order.Side == OrderSell && markPrice >= state.order.Price)

			if filled {
				side := PositionLong
				if state.order.Side == OrderSell {
					side = PositionShort
				}
				entryNotional := state.order.Price * state.order.Qty
				entryFee := FeeUSDT(entryNotional, fees.MakerRate)
				position := newPosition(side, state.order.Price, state.order.Qty, nowTs, trade, entryFee)

				events = append(events,
					Emitted{
						Type:   event.TypeOrderFilled,
						Symbol: symbol,
						Data: map[string]any{
							"side":    state.order.Side,
							"price":   state.order.Price,
							"qty":     state.order.Qty,
							"fillTs":  nowTs,
							"feeUSDT": entryFee,
						},
					},
					Emitted{
						Type:   event.TypePositionOpened,
						Symbol: symbol,
						Data: map[string]any{
							"side":         position.Side,
							"entryPrice":   position.EntryPrice,
							"qty":          position.Qty,
							"tpPrice":      position.TPPrice,
							"slPrice":      position.SLPrice,
							"entryFeeUSDT": entryFee,
						},
					},
				)

				state.order = nil
				state.position = &position
				state.rearmAt = 0
			} else if nowTs >= state.order.ExpiresTs {
				events = append(events, Emitted{
					Type:   event.TypeOrderExpired,
					Symbol: symbol,
					Data: map[string]any{
						"side":      state.order.Side,
						"price":     state.order.Price,
						"qty":       state.order.Qty,
						"placedTs":  state.order.PlacedTs,
						"expiresTs": state.order.ExpiresTs,
						"finalTs":   nowTs,
					},
				})
				state.order = nil
				state.rearmAt = nowTs + rearmDelayMs
			}
		}

		if state.position != nil && hasMark {
			notional := state.position.EntryPrice * state.position.Qty

			if tick.FundingRate != nil &&
				tick.NextFundingTime != nil &&
				ShouldApplyFunding(nowTs, *tick.NextFundingTime) &&
				state.position.LastFundingApplied != *tick.NextFundingTime {
				payment := FundingPaymentUSDT(state.position.Side, notional, *tick.FundingRate)
				state.position.FundingAccruedUSDT += payment
				state.position.LastFundingApplied = *tick.NextFundingTime
				events = append(events, Emitted{
					Type:   event.TypeFundingApplied,
					Symbol: symbol,
					Data: map[string]any{
						"side":               state.position.Side,
						"fundingRate":        *tick.FundingRate,
						"notionalUSDT":       notional,
						"paymentUSDT":        payment,
						"fundingTs":          *tick.NextFundingTime,
						"fundingAccruedUSDT": state.position.FundingAccruedUSDT,
					},
				})
			}

			rawPnl := (markPrice - state.position.EntryPrice) * state.position.Qty
			if state.position.Side == PositionShort {
				rawPnl = (state.position.EntryPrice - markPrice) * state.position.Qty
			}
			state.position.UnrealizedPnlUSDT = rawPnl
			state.position.UnrealizedRoiPct = rawPnl / trade.MarginUSDT * 100

			if reason, hit := touchExitReason(state.position, markPrice); hit {
				exitPrice := state.position.SLPrice
				if reason == ExitTakeProfit {
					exitPrice = state.position.TPPrice
				}
				events = append(events, b.closePosition(symbol, state, nowTs, exitPrice, reason, trade, fees))
				state.position = nil
				state.rearmAt = nowTs + rearmDelayMs
			}
		}
	}

	return events
}

// CloseAllOnStop cancels every live order and force-closes every live
// position at the last known mark rounded conservatively to the tick,
// falling back to the entry price when no mark is known.
func (b *Broker) CloseAllOnStop(nowTs int64, markBySymbol map[string]float64, instruments map[string]market.InstrumentSpec, trade TradeConfig, fees FeeConfig) []Emitted {
	b.mu.Lock()
	defer b.mu.Unlock()

	var events []Emitted

	for _, symbol := range b.symbols {
		state := b.bySymbol[symbol]

		if state.order != nil {
			events = append(events, Emitted{
				Type:   event.TypeOrderCanceled,
				Symbol: symbol,
				Data: map[string]any{
					"side":      state.order.Side,
					"price":     state.order.Price,
					"qty":       state.order.Qty,
					"placedTs":  state.order.PlacedTs,
					"expiresTs": state.order.ExpiresTs,
					"finalTs":   nowTs,
				},
			})
			state.order = nil
		}

		if state.position != nil {
			exitPrice := state.position.EntryPrice
			if mark, ok := markBySymbol[symbol]; ok {
				if spec, ok := instruments[symbol]; ok {
					if state.position.Side == PositionLong {
						exitPrice = RoundDownToTick(mark, spec.TickSize)
					} else {
						exitPrice = RoundUpToTick(mark, spec.TickSize)
					}
				}
			}
			events = append(events, b.closePosition(symbol, state, nowTs, exitPrice, ExitStop, trade, fees))
			state.position = nil
		}

		state.rearmAt = nowTs + rearmDelayMs
	}

	return events
}

// Counts returns the number of live orders and open positions.
func (b *Broker) Counts() (ordersActive, positionsOpen int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, state := range b.bySymbol {
		if state.order != nil {
			ordersActive++
		}
		if state.position != nil {
			positionsOpen++
		}
	}
	return ordersActive, positionsOpen
}

// SymbolStatus derives the observability status for symbol.
func (b *Broker) SymbolStatus(symbol string, hasMarketRefs bool, nowTs int64) SymbolStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.bySymbol[symbol]
	if !ok || !hasMarketRefs {
		return StatusIdle
	}
	if state.position != nil {
		return StatusPositionOpen
	}
	if state.order != nil {
		return StatusOrderPlaced
	}
	if state.rearmAt != 0 && nowTs < state.rearmAt {
		return StatusIdle
	}
	return StatusArmed
}

// closePosition settles the position at exitPrice and emits position_closed.
// A nil position here means the order/position invariant was broken upstream.
func (b *Broker) closePosition(symbol string, state *symbolState, nowTs int64, exitPrice float64, reason ExitReason, trade TradeConfig, fees FeeConfig) Emitted {
	position := state.position
	if position == nil {
		panic(errors.Errorf("paper: close of missing position for %s", symbol))
	}

	grossPnl := (exitPrice - position.EntryPrice) * position.Qty
	if position.Side == PositionShort {
		grossPnl = (position.EntryPrice - exitPrice) * position.Qty
	}
	grossRoiPct := grossPnl / trade.MarginUSDT * 100

	exitFee := ExitMakerFeeUSDT(exitPrice, position.Qty, fees.MakerRate)
	feesTotal := position.FeesPaidUSDT + exitFee
	netPnl := grossPnl - feesTotal + position.FundingAccruedUSDT
	netRoiPct := netPnl / trade.MarginUSDT * 100

	return Emitted{
		Type:   event.TypePositionClosed,
		Symbol: symbol,
		Data: map[string]any{
			"side":               position.Side,
			"entryPrice":         position.EntryPrice,
			"exitPrice":          exitPrice,
			"qty":                position.Qty,
			"exitTs":             nowTs,
			"reason":             reason,
			"pnlUSDT":            netPnl,
			"roiPct":             netRoiPct,
			"pnlGrossUSDT":       grossPnl,
			"roiGrossPct":        grossRoiPct,
			"feesTotalUSDT":      feesTotal,
			"fundingAccruedUSDT": position.FundingAccruedUSDT,
			"exitFeeUSDT":        exitFee,
		},
	}
}

func newPosition(side PositionSide, entryPrice, qty float64, entryTs int64, trade TradeConfig, entryFee float64) Position {
	rTP := trade.TPRoiPct / 100
	rSL := trade.SLRoiPct / 100

	var tpPrice, slPrice float64
	if side == PositionLong {
		tpPrice = entryPrice * (1 + rTP/trade.Leverage)
		slPrice = entryPrice * (1 - rSL/trade.Leverage)
	} else {
		tpPrice = entryPrice * (1 - rTP/trade.Leverage)
		slPrice = entryPrice * (1 + rSL/trade.Leverage)
	}

	return Position{
		Side:         side,
		EntryTs:      entryTs,
		EntryPrice:   entryPrice,
		Qty:          qty,
		TPPrice:      tpPrice,
		SLPrice:      slPrice,
		FeesPaidUSDT: entryFee,
	}
}

// touchExitReason checks TP before SL. The tie-break is deliberate.
func touchExitReason(position *Position, markPrice float64) (ExitReason, bool) {
	if position.Side == PositionLong {
		if markPrice >= position.TPPrice {
			return ExitTakeProfit, true
		}
		if markPrice <= position.SLPrice {
			return ExitStopLoss, true
		}
		return "", false
	}
	if markPrice <= position.TPPrice {
		return ExitTakeProfit, true
	}
	if markPrice >= position.SLPrice {
		return ExitStopLoss, true
	}
	return "", false
}
