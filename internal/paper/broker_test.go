package paper

import (
	"math"
	"testing"

	"main/internal/event"
	"main/internal/market"
)

var (
	testTrade = TradeConfig{
		MarginUSDT:           50,
		Leverage:             10,
		EntryOffsetPct:       0.15,
		EntryOrderTimeoutMin: 5,
		TPRoiPct:             1.0,
		SLRoiPct:             1.0,
	}
	testFees       = FeeConfig{MakerRate: 0.0002, TakerRate: 0.00055}
	testInstrument = market.InstrumentSpec{Symbol: "BTCUSDT", TickSize: 0.01, QtyStep: 0.01, MinQty: 0.01}
)

func placeLong(t *testing.T, b *Broker, nowTs int64) {
	t.Helper()
	events := b.PlaceEntryOrder(EntryInput{
		Symbol:     "BTCUSDT",
		Side:       PositionLong,
		MarkPrice:  100,
		NowTs:      nowTs,
		Trade:      testTrade,
		Instrument: testInstrument,
	})
	if len(events) != 1 || events[0].Type != event.TypeOrderPlaced {
		t.Fatalf("expected single order_placed, got %+v", events)
	}
}

func ticks(symbol string, mark float64) map[string]MarketTick {
	return map[string]MarketTick{symbol: {MarkPrice: market.Float(mark)}}
}

func TestPlaceEntryOrderRounding(t *testing.T) {
	b := NewBroker()
	b.Initialize([]string{"BTCUSDT"})
	placeLong(t, b, 1_000)

	order := b.Order("BTCUSDT")
	if order == nil {
		t.Fatal("expected live order")
	}
	if order.Side != OrderBuy {
		t.Fatalf("side mismatch! should be BUY but got %s", order.Side)
	}
	if order.Price != 99.85 {
		t.Fatalf("price mismatch! should be 99.85 but got %v", order.Price)
	}
	if order.Qty != 5.0 {
		t.Fatalf("qty mismatch! should be 5 but got %v", order.Qty)
	}
	if order.ExpiresTs != 1_000+5*60_000 {
		t.Fatalf("expiry mismatch! got %d", order.ExpiresTs)
	}
	if b.Position("BTCUSDT") != nil {
		t.Fatal("order and position must never coexist")
	}
}

func TestPlaceEntryOrderShortRoundsUp(t *testing.T) {
	b := NewBroker()
	b.Initialize([]string{"BTCUSDT"})
	events := b.PlaceEntryOrder(EntryInput{
		Symbol:     "BTCUSDT",
		Side:       PositionShort,
		MarkPrice:  100,
		NowTs:      1_000,
		Trade:      testTrade,
		Instrument: testInstrument,
	})
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	order := b.Order("BTCUSDT")
	if order.Side != OrderSell {
		t.Fatalf("side mismatch! should be SELL but got %s", order.Side)
	}
	if order.Price != 100.15 {
		t.Fatalf("price mismatch! should be 100.15 but got %v", order.Price)
	}
}

func TestPlaceEntryOrderBelowMinQtySkipped(t *testing.T) {
	b := NewBroker()
	b.Initialize([]string{"BTCUSDT"})
	events := b.PlaceEntryOrder(EntryInput{
		Symbol:     "BTCUSDT",
		Side:       PositionLong,
		MarkPrice:  100,
		NowTs:      1_000,
		Trade:      testTrade,
		Instrument: market.InstrumentSpec{Symbol: "BTCUSDT", TickSize: 0.01, QtyStep: 0.01, MinQty: 10},
	})
	if len(events) != 0 {
		t.Fatalf("expected no events for dust qty, got %+v", events)
	}
	if b.Order("BTCUSDT") != nil {
		t.Fatal("no order should have been placed")
	}
}

func TestFillOpensPositionWithExits(t *testing.T) {
	b := NewBroker()
	b.Initialize([]string{"BTCUSDT"})
	placeLong(t, b, 1_000)

	events := b.ProcessTick(2_000, ticks("BTCUSDT", 99.80), testTrade, testFees)
	if len(events) != 2 {
		t.Fatalf("expected fill and open, got %+v", events)
	}
	if events[0].Type != event.TypeOrderFilled || events[1].Type != event.TypePositionOpened {
		t.Fatalf("event order mismatch! got %s then %s", events[0].Type, events[1].Type)
	}

	position := b.Position("BTCUSDT")
	if position == nil {
		t.Fatal("expected open position")
	}
	if b.Order("BTCUSDT") != nil {
		t.Fatal("order must be cleared on fill")
	}
	if position.EntryPrice != 99.85 {
		t.Fatalf("entry mismatch! should be 99.85 but got %v", position.EntryPrice)
	}
	// tpPrice = entry * (1 + 1%/leverage), slPrice mirrored below
	if math.Abs(position.TPPrice-99.94985) > 1e-9 {
		t.Fatalf("tp mismatch! got %v", position.TPPrice)
	}
	if math.Abs(position.SLPrice-99.75015) > 1e-9 {
		t.Fatalf("sl mismatch! got %v", position.SLPrice)
	}
	if math.Abs(position.FeesPaidUSDT-0.09985) > 1e-9 {
		t.Fatalf("entry fee mismatch! got %v", position.FeesPaidUSDT)
	}
}

func TestTakeProfitClosePositive(t *testing.T) {
	b := NewBroker()
	b.Initialize([]string{"BTCUSDT"})
	placeLong(t, b, 1_000)
	b.ProcessTick(2_000, ticks("BTCUSDT", 99.80), testTrade, testFees)

	events := b.ProcessTick(3_000, ticks("BTCUSDT", 100.00), testTrade, testFees)
	if len(events) != 1 || events[0].Type != event.TypePositionClosed {
		t.Fatalf("expected position_closed, got %+v", events)
	}
	if events[0].Data["reason"] != ExitTakeProfit {
		t.Fatalf("reason mismatch! should be TP but got %v", events[0].Data["reason"])
	}
	// exit settles at tpPrice, not at the observed mark
	if math.Abs(events[0].Data["exitPrice"].(float64)-99.94985) > 1e-9 {
		t.Fatalf("exit price mismatch! got %v", events[0].Data["exitPrice"])
	}
	netPnl := events[0].Data["pnlUSDT"].(float64)
	if math.Abs(netPnl-0.29945015) > 1e-8 {
		t.Fatalf("net pnl mismatch! got %v", netPnl)
	}
	if events[0].Data["roiPct"].(float64) <= 0 {
		t.Fatalf("roi should be positive, got %v", events[0].Data["roiPct"])
	}
	if b.Position("BTCUSDT") != nil {
		t.Fatal("position must be cleared after close")
	}
}

func TestTPCheckedBeforeSL(t *testing.T) {
	b := NewBroker()
	b.Initialize([]string{"BTCUSDT"})
	placeLong(t, b, 1_000)
	b.ProcessTick(2_000, ticks("BTCUSDT", 99.80), testTrade, testFees)

	// force a degenerate position where one mark touches both bounds
	wide := MarketTick{MarkPrice: market.Float(99.94985)}
	events := b.ProcessTick(3_000, map[string]MarketTick{"BTCUSDT": wide}, testTrade, testFees)
	if len(events) != 1 || events[0].Data["reason"] != ExitTakeProfit {
		t.Fatalf("TP must win when touched, got %+v", events)
	}
}

func TestStopLossClose(t *testing.T) {
	b := NewBroker()
	b.Initialize([]string{"BTCUSDT"})
	placeLong(t, b, 1_000)
	b.ProcessTick(2_000, ticks("BTCUSDT", 99.80), testTrade, testFees)

	events := b.ProcessTick(3_000, ticks("BTCUSDT", 99.70), testTrade, testFees)
	if len(events) != 1 || events[0].Data["reason"] != ExitStopLoss {
		t.Fatalf("expected SL close, got %+v", events)
	}
	if events[0].Data["pnlUSDT"].(float64) >= 0 {
		t.Fatalf("stop loss should lose money, got %v", events[0].Data["pnlUSDT"])
	}
}

func TestOrderExpiryAndRearm(t *testing.T) {
	b := NewBroker()
	b.Initialize([]string{"BTCUSDT"})
	placeLong(t, b, 1_000)

	expiresTs := int64(1_000 + 5*60_000)
	events := b.ProcessTick(expiresTs, ticks("BTCUSDT", 100.00), testTrade, testFees)
	if len(events) != 1 || events[0].Type != event.TypeOrderExpired {
		t.Fatalf("expected order_expired, got %+v", events)
	}
	if b.Order("BTCUSDT") != nil {
		t.Fatal("order must be cleared on expiry")
	}
	if b.CanArm("BTCUSDT", expiresTs+rearmDelayMs-1) {
		t.Fatal("symbol must stay disarmed within the re-arm delay")
	}
	if !b.CanArm("BTCUSDT", expiresTs+rearmDelayMs) {
		t.Fatal("symbol must re-arm once the delay elapses")
	}
}

func TestFundingSettlementDebounced(t *testing.T) {
	b := NewBroker()
	b.Initialize([]string{"BTCUSDT"})
	placeLong(t, b, 1_000)
	b.ProcessTick(2_000, ticks("BTCUSDT", 99.80), testTrade, testFees)

	fundingTs := int64(10_000)
	tick := MarketTick{
		MarkPrice:       market.Float(99.85),
		FundingRate:     market.Float(0.0001),
		NextFundingTime: market.Int(fundingTs),
	}

	events := b.ProcessTick(fundingTs, map[string]MarketTick{"BTCUSDT": tick}, testTrade, testFees)
	if len(events) != 1 || events[0].Type != event.TypeFundingApplied {
		t.Fatalf("expected funding_applied, got %+v", events)
	}
	payment := events[0].Data["paymentUSDT"].(float64)
	if payment >= 0 {
		t.Fatalf("long must pay positive funding, got payment %v", payment)
	}
	if math.Abs(payment-(-0.049925)) > 1e-9 {
		t.Fatalf("payment mismatch! got %v", payment)
	}

	// same nextFundingTime must never settle twice
	events = b.ProcessTick(fundingTs+1_000, map[string]MarketTick{"BTCUSDT": tick}, testTrade, testFees)
	for _, e := range events {
		if e.Type == event.TypeFundingApplied {
			t.Fatalf("funding applied twice for ts %d", fundingTs)
		}
	}

	position := b.Position("BTCUSDT")
	if math.Abs(position.FundingAccruedUSDT-(-0.049925)) > 1e-9 {
		t.Fatalf("accrual mismatch! got %v", position.FundingAccruedUSDT)
	}
}

func TestCloseAllOnStop(t *testing.T) {
	b := NewBroker()
	b.Initialize([]string{"BTCUSDT", "ETHUSDT"})
	placeLong(t, b, 1_000)
	b.ProcessTick(2_000, ticks("BTCUSDT", 99.80), testTrade, testFees)

	b.PlaceEntryOrder(EntryInput{
		Symbol:     "ETHUSDT",
		Side:       PositionShort,
		MarkPrice:  100,
		NowTs:      2_000,
		Trade:      testTrade,
		Instrument: market.InstrumentSpec{Symbol: "ETHUSDT", TickSize: 0.01, QtyStep: 0.01, MinQty: 0.01},
	})

	events := b.CloseAllOnStop(
		5_000,
		map[string]float64{"BTCUSDT": 99.853},
		map[string]market.InstrumentSpec{"BTCUSDT": testInstrument},
		testTrade,
		testFees,
	)
	if len(events) != 2 {
		t.Fatalf("expected close and cancel, got %+v", events)
	}
	if events[0].Type != event.TypePositionClosed || events[0].Data["reason"] != ExitStop {
		t.Fatalf("expected STOP close first, got %+v", events[0])
	}
	// long exits at the mark rounded down to the tick
	if events[0].Data["exitPrice"].(float64) != 99.85 {
		t.Fatalf("exit price mismatch! got %v", events[0].Data["exitPrice"])
	}
	if events[1].Type != event.TypeOrderCanceled || events[1].Symbol != "ETHUSDT" {
		t.Fatalf("expected ETHUSDT cancel, got %+v", events[1])
	}

	ordersActive, positionsOpen := b.Counts()
	if ordersActive != 0 || positionsOpen != 0 {
		t.Fatalf("broker should be flat, got %d orders %d positions", ordersActive, positionsOpen)
	}
}

func TestCloseAllOnStopFallsBackToEntryPrice(t *testing.T) {
	b := NewBroker()
	b.Initialize([]string{"BTCUSDT"})
	placeLong(t, b, 1_000)
	b.ProcessTick(2_000, ticks("BTCUSDT", 99.80), testTrade, testFees)

	events := b.CloseAllOnStop(5_000, nil, nil, testTrade, testFees)
	if len(events) != 1 {
		t.Fatalf("expected one close, got %+v", events)
	}
	if events[0].Data["exitPrice"].(float64) != 99.85 {
		t.Fatalf("fallback exit should be entry price, got %v", events[0].Data["exitPrice"])
	}
}

func TestSymbolStatus(t *testing.T) {
	b := NewBroker()
	b.Initialize([]string{"BTCUSDT"})

	if got := b.SymbolStatus("BTCUSDT", false, 1_000); got != StatusIdle {
		t.Fatalf("status mismatch! should be IDLE but got %s", got)
	}
	if got := b.SymbolStatus("BTCUSDT", true, 1_000); got != StatusArmed {
		t.Fatalf("status mismatch! should be ARMED but got %s", got)
	}

	placeLong(t, b, 1_000)
	if got := b.SymbolStatus("BTCUSDT", true, 1_000); got != StatusOrderPlaced {
		t.Fatalf("status mismatch! should be ORDER_PLACED but got %s", got)
	}

	b.ProcessTick(2_000, ticks("BTCUSDT", 99.80), testTrade, testFees)
	if got := b.SymbolStatus("BTCUSDT", true, 2_000); got != StatusPositionOpen {
		t.Fatalf("status mismatch! should be POSITION_OPEN but got %s", got)
	}
}
