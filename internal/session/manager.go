package session

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/event"
	"main/internal/eventlog"
	"main/internal/feed"
	"main/internal/market"
	"main/internal/obs"
	"main/internal/paper"
	"main/internal/strategy"
	"main/internal/universe"
)

const (
	_tickMs        = 1_000
	_dataStaleMs   = 5_000
	_eventsTailCap = 200
)

var _mskZone = func() *time.Location {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		return time.FixedZone("MSK", 3*60*60)
	}
	return loc
}()

// InstrumentSource yields the per-symbol contract metadata, fetched once per
// session start.
type InstrumentSource interface {
	FetchInstrumentsLinear(ctx context.Context) (map[string]market.InstrumentSpec, error)
}

// FeedFactory builds the market feed wired to the manager's callbacks.
type FeedFactory func(callbacks feed.Callbacks) feed.MarketFeed

// Deps wires the manager's collaborators. Zero-value optional fields fall
// back to production defaults; Now and WarmupMs exist for deterministic
// tests.
type Deps struct {
	FeedFactory FeedFactory
	Instruments InstrumentSource
	SinkFactory func() eventlog.Sink
	Metrics     *obs.Metrics
	Now         func() int64
	WarmupMs    int64
}

// Manager orchestrates one paper trading session at a time: universe
// selection, the per-second trading loop, event emission and teardown.
type Manager struct {
	deps Deps
	now  func() int64

	feed    feed.MarketFeed
	store   *market.Store
	tracker *market.CandleTracker
	builder *universe.Builder
	gate    strategy.CooldownGate
	engine  strategy.Engine
	broker  *paper.Broker

	tfMinAtomic atomic.Int32

	mu              sync.Mutex
	sessionID       *string
	state           State
	tfMin           int
	config          *Config
	counts          Counts
	cooldown        strategy.Cooldown
	universeSymbols []string
	symbolRows      []SymbolRow
	events          []event.Event
	eventSeq        int
	instrumentSpecs map[string]market.InstrumentSpec
	sink            eventlog.Sink
	lastTickTs      int64

	tickerStop chan struct{}
	tickerDone chan struct{}

	stateListeners  []func(StateMessage)
	tickListeners   []func(TickMessage)
	eventsListeners []func(EventsAppendMessage)
	errorListeners  []func(ErrorMessage)
}

// NewManager builds a stopped manager and connects the feed callbacks.
func NewManager(deps Deps) *Manager {
	if deps.Now == nil {
		deps.Now = func() int64 { return time.Now().UnixMilli() }
	}
	if deps.SinkFactory == nil {
		deps.SinkFactory = func() eventlog.Sink { return eventlog.NopSink{} }
	}

	m := &Manager{
		deps:   deps,
		now:    deps.Now,
		state:  StateStopped,
		tfMin:  5,
		store:  market.NewStore(),
		broker: paper.NewBroker(),
	}
	m.tracker = market.NewCandleTracker(m.store)
	m.tfMinAtomic.Store(5)

	m.feed = deps.FeedFactory(feed.Callbacks{
		OnTicker: func(symbol string, patch market.TickerPatch) {
			m.store.ApplyPatch(symbol, patch, m.now())
		},
		OnKline: func(symbol string, tfMin int, candle market.Candle) {
			if int32(tfMin) == m.tfMinAtomic.Load() {
				m.tracker.OnKline(symbol, candle)
			}
		},
		OnConnected: func(shardID int) {
			logs.Infof("market feed shard %d connected", shardID)
		},
		OnReconnecting: m.handleFeedReconnecting,
		OnError:        m.handleFeedError,
	})

	warmup := deps.WarmupMs
	if warmup <= 0 {
		warmup = 4_000
	}
	m.builder = universe.NewBuilderWithWarmup(m.feed, m.store, warmup)
	return m
}

// OnSessionState registers a state transition listener. Listeners run
// synchronously under the session lock and must return quickly.
func (m *Manager) OnSessionState(listener func(StateMessage)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stateListeners = append(m.stateListeners, listener)
}

func (m *Manager) OnTick(listener func(TickMessage)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickListeners = append(m.tickListeners, listener)
}

func (m *Manager) OnEventsAppend(listener func(EventsAppendMessage)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventsListeners = append(m.eventsListeners, listener)
}

func (m *Manager) OnError(listener func(ErrorMessage)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorListeners = append(m.errorListeners, listener)
}

// Start validates the config, tears down any prior session, selects the
// universe and begins ticking. Validation failures leave the manager
// untouched.
func (m *Manager) Start(ctx context.Context, cfg Config) (StartResponse, error) {
	if err := cfg.Validate(); err != nil {
		return StartResponse{}, err
	}

	m.mu.Lock()
	if m.state != StateStopped {
		m.stopLocked()
	}

	sessionID := newSessionID(m.now())
	m.sessionID = &sessionID
	m.state = StateRunning
	m.tfMin = cfg.TfMin
	m.tfMinAtomic.Store(int32(cfg.TfMin))
	m.config = &cfg
	m.cooldown = strategy.Cooldown{}
	m.events = nil
	m.eventSeq = 0
	m.mu.Unlock()

	specs, err := m.deps.Instruments.FetchInstrumentsLinear(ctx)
	if err != nil {
		m.abortStart(sessionID)
		return StartResponse{}, err
	}

	candidates := candidateSymbols(specs)
	logs.Infof("session %s starting, candidates: %d", sessionID, len(candidates))

	built, err := m.builder.Build(ctx, universe.BuildInput{
		CandidateSymbols:    candidates,
		MinVolatility24hPct: cfg.Universe.MinVolatility24hPct,
		MinTurnover24hUSDT:  cfg.Universe.MinTurnover24hUSDT,
		MaxSymbols:          cfg.Universe.MaxSymbols,
	}, cfg.TfMin)
	if err != nil {
		m.abortStart(sessionID)
		m.feed.Stop()
		return StartResponse{}, err
	}

	m.mu.Lock()
	// A concurrent Stop may have torn the session down while the lock was
	// released for the fetch and universe build. Bootstrapping anyway would
	// leak a ticker and an open sink, so bail out instead.
	if m.sessionID == nil || *m.sessionID != sessionID {
		m.mu.Unlock()
		m.feed.Stop()
		return StartResponse{}, errors.Errorf("session %s stopped during startup", sessionID)
	}
	m.instrumentSpecs = specs
	m.universeSymbols = built.Symbols
	m.tracker.Reset(built.Symbols)
	m.broker.Initialize(built.Symbols)
	m.counts = Counts{SymbolsTotal: len(built.Symbols)}

	m.sink = m.deps.SinkFactory()
	if err := m.sink.Start(sessionID); err != nil {
		logs.Errorf("event sink start failed, err: %+v", err)
		m.sink = eventlog.NopSink{}
	}

	m.rebuildSymbolRowsLocked(m.now())
	m.appendAndEmitLocked([]event.Event{
		m.addEventLocked(event.TypeSessionStarted, event.SymbolSystem, map[string]any{
			"config": cfg,
		}),
		m.addEventLocked(event.TypeUniverseBuilt, event.SymbolSystem, map[string]any{
			"count":              len(built.Symbols),
			"warmedSymbols":      built.WarmedSymbols,
			"subscriptionReport": m.feed.Report(),
			"filters": map[string]any{
				"minVolatility24hPct": cfg.Universe.MinVolatility24hPct,
				"minTurnover24hUSDT":  cfg.Universe.MinTurnover24hUSDT,
				"maxSymbols":          cfg.Universe.MaxSymbols,
			},
			"symbols": built.Symbols,
		}),
	})
	m.emitStateLocked()
	m.tickOnceLocked(m.now())
	m.startTickerLocked()
	m.mu.Unlock()

	logs.Infof("session %s running, universe: %d symbols", sessionID, len(built.Symbols))
	return StartResponse{OK: true, SessionID: sessionID, State: StateRunning}, nil
}

// abortStart rolls back the pre-bootstrap state set by Start, unless a
// concurrent Stop or Start already moved the manager past this session.
func (m *Manager) abortStart(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessionID == nil || *m.sessionID != sessionID {
		return
	}
	m.state = StateStopped
	m.sessionID = nil
	m.config = nil
}

// Stop force-closes everything and resets to STOPPED. Idempotent.
func (m *Manager) Stop() StopResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopLocked()
}

func (m *Manager) stopLocked() StopResponse {
	activeID := m.sessionID
	if m.state == StateStopped {
		return StopResponse{OK: true, SessionID: activeID, State: StateStopped}
	}

	m.state = StateStopping
	m.emitStateLocked()

	if m.config != nil {
		nowTs := m.now()
		markBySymbol := make(map[string]float64, len(m.universeSymbols))
		for symbol, state := range m.store.Snapshot(m.universeSymbols) {
			if state.MarkPrice != nil {
				markBySymbol[symbol] = *state.MarkPrice
			}
		}

		stopEvents := m.broker.CloseAllOnStop(nowTs, markBySymbol, m.instrumentSpecs, m.config.Trade, m.config.Fees)
		canceled, closed := 0, 0
		wrapped := make([]event.Event, 0, len(stopEvents)+1)
		for _, emitted := range stopEvents {
			switch emitted.Type {
			case event.TypeOrderCanceled:
				canceled++
			case event.TypePositionClosed:
				closed++
			}
			wrapped = append(wrapped, m.addEventLocked(emitted.Type, emitted.Symbol, emitted.Data))
		}
		wrapped = append(wrapped, m.addEventLocked(event.TypeSessionStopped, event.SymbolSystem, map[string]any{
			"canceledOrders":  canceled,
			"closedPositions": closed,
			"stopTs":          nowTs,
		}))
		m.appendAndEmitLocked(wrapped)
	}

	m.stopTickerLocked()
	m.feed.Stop()
	m.state = StateStopped
	m.cooldown = strategy.Cooldown{}
	m.emitStateLocked()

	if m.sink != nil {
		if err := m.sink.Close(); err != nil {
			logs.Errorf("event sink close failed, err: %+v", err)
		}
		m.sink = nil
	}

	m.symbolRows = nil
	m.universeSymbols = nil
	m.instrumentSpecs = nil
	m.counts = Counts{}
	m.config = nil
	m.tfMin = 5
	m.tfMinAtomic.Store(5)
	m.sessionID = nil
	m.deps.Metrics.SetSessionGauges(false, 0, 0, 0)

	return StopResponse{OK: true, SessionID: activeID, State: StateStopped}
}

// Status reports the polled session status.
func (m *Manager) Status() StatusResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	return StatusResponse{
		OK:        true,
		SessionID: m.sessionID,
		State:     m.state,
		TfMin:     m.tfMin,
		Counts:    m.counts,
		Cooldown:  m.cooldown,
	}
}

// Snapshot builds the full state pushed to a freshly connected client.
func (m *Manager) Snapshot() SnapshotMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateRunning || m.state == StateCooldown {
		m.rebuildSymbolRowsLocked(m.now())
	}

	return SnapshotMessage{
		Type:       "snapshot",
		Ts:         m.now(),
		Session:    SessionRef{SessionID: m.sessionID, State: m.state, TfMin: m.tfMin},
		Config:     m.config,
		Counts:     m.counts,
		Cooldown:   m.cooldown,
		Universe:   append([]string(nil), m.universeSymbols...),
		Symbols:    append([]SymbolRow(nil), m.symbolRows...),
		EventsTail: append([]event.Event(nil), m.events...),
		Feed:       m.feed.Report(),
	}
}

// LastTickTs returns when the trading loop last ran, for health reporting.
func (m *Manager) LastTickTs() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastTickTs
}

// TickOnce runs one trading loop iteration immediately. The periodic ticker
// calls this once per second.
func (m *Manager) TickOnce() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickOnceLocked(m.now())
}

func (m *Manager) startTickerLocked() {
	m.stopTickerLocked()
	stop := make(chan struct{})
	done := make(chan struct{})
	m.tickerStop = stop
	m.tickerDone = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(_tickMs * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				m.TickOnce()
			}
		}
	}()
}

func (m *Manager) stopTickerLocked() {
	if m.tickerStop == nil {
		return
	}
	close(m.tickerStop)
	m.tickerStop = nil
	m.tickerDone = nil
}

func (m *Manager) tickOnceLocked(nowTs int64) {
	if (m.state != StateRunning && m.state != StateCooldown) || m.config == nil {
		return
	}

	m.runTradingLoopLocked(nowTs, *m.config)
	m.rebuildSymbolRowsLocked(nowTs)
	m.lastTickTs = nowTs
	m.deps.Metrics.ObserveTick(nowTs)

	message := TickMessage{
		Type:         "tick",
		Ts:           nowTs,
		Session:      SessionRef{SessionID: m.sessionID, State: m.state},
		Counts:       m.counts,
		Cooldown:     m.cooldown,
		SymbolsDelta: append([]SymbolRow(nil), m.symbolRows...),
	}
	for _, listener := range m.tickListeners {
		listener(message)
	}
}

// runTradingLoopLocked is the per-tick pipeline: cooldown evaluation first,
// then broker lifecycle processing, then entry evaluation unless blocked.
func (m *Manager) runTradingLoopLocked(nowTs int64, cfg Config) {
	snapshot := m.store.Snapshot(m.universeSymbols)

	evaluated := m.gate.Evaluate(m.universeSymbols, snapshot, cfg.FundingCooldown, nowTs)
	m.applyCooldownStateLocked(evaluated)

	marketBySymbol := make(map[string]paper.MarketTick, len(snapshot))
	for symbol, state := range snapshot {
		marketBySymbol[symbol] = paper.MarketTick{
			MarkPrice:       state.MarkPrice,
			FundingRate:     state.FundingRate,
			NextFundingTime: state.NextFundingTime,
		}
	}
	brokerEvents := m.broker.ProcessTick(nowTs, marketBySymbol, cfg.Trade, cfg.Fees)
	if len(brokerEvents) > 0 {
		wrapped := make([]event.Event, 0, len(brokerEvents))
		for _, emitted := range brokerEvents {
			wrapped = append(wrapped, m.addEventLocked(emitted.Type, emitted.Symbol, emitted.Data))
		}
		m.appendAndEmitLocked(wrapped)
	}

	if m.cooldown.IsActive {
		return
	}

	for _, symbol := range m.universeSymbols {
		state, hasState := snapshot[symbol]
		candleRef, _ := m.tracker.Get(symbol)
		hasCandleRef := candleRef.PrevClose != nil && candleRef.PrevOIV != nil

		var input strategy.Input
		input.Symbol = symbol
		if hasState {
			input.MarkPrice = state.MarkPrice
			input.OivUSDT = state.OpenInterestValue
			input.FundingRate = state.FundingRate
			input.DataReady = state.FundingRate != nil && state.NextFundingTime != nil &&
				!m.store.IsStale(symbol, nowTs, _dataStaleMs)
		}
		input.PrevCandleClose = candleRef.PrevClose
		input.PrevCandleOivUSDT = candleRef.PrevOIV
		input.Armed = m.broker.CanArm(symbol, nowTs) && hasCandleRef
		input.CooldownBlocked = m.cooldown.IsActive

		decision := m.engine.Evaluate(input, cfg.Signal)
		if decision == nil || !hasState || state.MarkPrice == nil {
			continue
		}
		instrument, ok := m.instrumentSpecs[symbol]
		if !ok {
			continue
		}

		side := paper.PositionLong
		if decision.Side == strategy.SignalShort {
			side = paper.PositionShort
		}
		orderEvents := m.broker.PlaceEntryOrder(paper.EntryInput{
			Symbol:     symbol,
			Side:       side,
			MarkPrice:  *state.MarkPrice,
			NowTs:      nowTs,
			Trade:      cfg.Trade,
			Instrument: instrument,
		})
		if len(orderEvents) == 0 {
			continue
		}

		wrapped := make([]event.Event, 0, len(orderEvents)+1)
		wrapped = append(wrapped, m.addEventLocked(event.TypeSignalFired, symbol, map[string]any{
			"tfMin":             cfg.TfMin,
			"decision":          decision.Side,
			"markPrice":         *state.MarkPrice,
			"prevCandleClose":   candleRef.PrevClose,
			"priceMovePct":      decision.PriceMovePct,
			"oivUSDT":           state.OpenInterestValue,
			"prevCandleOivUSDT": candleRef.PrevOIV,
			"oivMovePct":        decision.OivMovePct,
			"fundingRate":       state.FundingRate,
			"nextFundingTimeTs": state.NextFundingTime,
		}))
		for _, emitted := range orderEvents {
			wrapped = append(wrapped, m.addEventLocked(emitted.Type, emitted.Symbol, emitted.Data))
		}
		m.appendAndEmitLocked(wrapped)
	}
}

func (m *Manager) applyCooldownStateLocked(next strategy.Cooldown) {
	wasActive := m.cooldown.IsActive
	m.cooldown = next

	if !wasActive && next.IsActive {
		m.state = StateCooldown
		m.emitStateLocked()
		m.appendAndEmitLocked([]event.Event{
			m.addEventLocked(event.TypeCooldownEntered, event.SymbolSystem, map[string]any{
				"fromTs":  next.FromTs,
				"untilTs": next.UntilTs,
			}),
		})
		return
	}

	if wasActive && !next.IsActive {
		m.state = StateRunning
		m.emitStateLocked()
		m.appendAndEmitLocked([]event.Event{
			m.addEventLocked(event.TypeCooldownExited, event.SymbolSystem, map[string]any{
				"fromTs":  next.FromTs,
				"untilTs": next.UntilTs,
			}),
		})
	}
}

// rebuildSymbolRowsLocked refreshes the observable per-symbol view in
// universe order.
func (m *Manager) rebuildSymbolRowsLocked(nowTs int64) {
	rows := make([]SymbolRow, 0, len(m.universeSymbols))
	cooldownBlocked := m.cooldown.IsActive

	for _, symbol := range m.universeSymbols {
		state, hasState := m.store.Get(symbol)
		candleRef, _ := m.tracker.Get(symbol)

		markPrice := floatOrZero(state.MarkPrice)
		oiv := floatOrZero(state.OpenInterestValue)
		turnover := floatOrZero(state.Turnover24h)

		vol24hPct := 0.0
		if state.HighPrice24h != nil && state.LowPrice24h != nil && *state.LowPrice24h > 0 {
			vol24hPct = (*state.HighPrice24h - *state.LowPrice24h) / *state.LowPrice24h * 100
		}

		prevClose := floatOrZero(candleRef.PrevClose)
		prevOIV := floatOrZero(candleRef.PrevOIV)
		priceMovePct := 0.0
		if prevClose != 0 {
			priceMovePct = (markPrice - prevClose) / prevClose * 100
		}
		oivMovePct := 0.0
		if prevOIV != 0 {
			oivMovePct = (oiv - prevOIV) / prevOIV * 100
		}

		nextFundingTs := int64(0)
		if state.NextFundingTime != nil {
			nextFundingTs = *state.NextFundingTime
		}
		countdownSec := (nextFundingTs - nowTs) / 1_000
		if countdownSec < 0 {
			countdownSec = 0
		}

		dataReady := hasState && state.FundingRate != nil && state.NextFundingTime != nil &&
			!m.store.IsStale(symbol, nowTs, _dataStaleMs)
		hasCandleRef := candleRef.PrevClose != nil && candleRef.PrevOIV != nil
		hasTickerBase := state.MarkPrice != nil && state.OpenInterestValue != nil
		status := m.broker.SymbolStatus(symbol, hasCandleRef && hasTickerBase && dataReady, nowTs)

		rows = append(rows, SymbolRow{
			Symbol: symbol,
			Status: status,
			Market: SymbolMarket{
				MarkPrice:        markPrice,
				Turnover24hUSDT:  turnover,
				Volatility24hPct: vol24hPct,
				OivUSDT:          oiv,
			},
			Funding: SymbolFunding{
				Rate:               floatOrZero(state.FundingRate),
				NextFundingTimeTs:  nextFundingTs,
				NextFundingTimeMsk: mskString(nextFundingTs),
				CountdownSec:       countdownSec,
			},
			SignalMetrics: SymbolSignalMetrics{
				PrevCandleClose:   prevClose,
				PrevCandleOivUSDT: prevOIV,
				PriceMovePct:      priceMovePct,
				OivMovePct:        oivMovePct,
			},
			Order:    m.broker.Order(symbol),
			Position: m.broker.Position(symbol),
			Gates:    SymbolGates{CooldownBlocked: cooldownBlocked, DataReady: dataReady},
		})
	}

	m.symbolRows = rows
	ordersActive, positionsOpen := m.broker.Counts()
	m.counts = Counts{
		SymbolsTotal:  len(m.universeSymbols),
		OrdersActive:  ordersActive,
		PositionsOpen: positionsOpen,
	}
}

// handleFeedReconnecting runs on a shard goroutine; it must not block on the
// session lock or Stop could deadlock waiting for that same goroutine.
func (m *Manager) handleFeedReconnecting(shardID, attempt int, reason string) {
	go m.reportFeedReconnect(shardID, attempt, reason)
}

func (m *Manager) reportFeedReconnect(shardID, attempt int, reason string) {
	m.deps.Metrics.ObserveFeedReconnect(shardID)

	m.mu.Lock()
	defer m.mu.Unlock()

	data := map[string]any{
		"scope":   "BYBIT_WS",
		"code":    "RECONNECTING",
		"shardId": shardID,
		"attempt": attempt,
		"reason":  reason,
		"message": "Disconnected from market data stream; reconnect scheduled.",
	}
	message := ErrorMessage{
		Type:      "error",
		Ts:        m.now(),
		SessionID: m.sessionID,
		Scope:     "BYBIT_WS",
		Code:      "RECONNECTING",
		Message:   "Disconnected from market data stream; reconnect scheduled.",
		Data:      map[string]any{"shardId": shardID, "attempt": attempt, "reason": reason},
	}
	for _, listener := range m.errorListeners {
		listener(message)
	}
	m.appendAndEmitLocked([]event.Event{m.addEventLocked(event.TypeError, event.SymbolSystem, data)})
}

func (m *Manager) handleFeedError(err error) {
	go func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.appendAndEmitLocked([]event.Event{
			m.addEventLocked(event.TypeError, event.SymbolSystem, map[string]any{
				"scope":   "BYBIT_WS",
				"code":    "BYBIT_WS_ERROR",
				"message": err.Error(),
			}),
		})
	}()
}

func (m *Manager) emitStateLocked() {
	active := m.state == StateRunning || m.state == StateCooldown
	m.deps.Metrics.SetSessionGauges(active, m.counts.SymbolsTotal, m.counts.OrdersActive, m.counts.PositionsOpen)

	message := StateMessage{
		Type:      "session_state",
		Ts:        m.now(),
		SessionID: m.sessionID,
		State:     m.state,
		Cooldown:  m.cooldown,
	}
	for _, listener := range m.stateListeners {
		listener(message)
	}
}

func (m *Manager) appendAndEmitLocked(events []event.Event) {
	if len(events) == 0 {
		return
	}
	if m.sink != nil {
		if err := m.sink.Append(events); err != nil {
			m.deps.Metrics.ObserveSinkError()
			logs.Errorf("event sink append failed, err: %+v", err)
		}
	}
	m.deps.Metrics.ObserveEvents(events)
	message := EventsAppendMessage{
		Type:      "events_append",
		Ts:        m.now(),
		SessionID: m.sessionID,
		Events:    events,
	}
	for _, listener := range m.eventsListeners {
		listener(message)
	}
}

// addEventLocked stamps an event and pushes it into the bounded tail.
func (m *Manager) addEventLocked(eventType event.Type, symbol string, data map[string]any) event.Event {
	m.eventSeq++
	evt := event.Event{
		ID:     event.FormatID(m.eventSeq),
		Ts:     m.now(),
		Type:   eventType,
		Symbol: symbol,
		Data:   data,
	}
	m.events = append(m.events, evt)
	if len(m.events) > _eventsTailCap {
		m.events = m.events[len(m.events)-_eventsTailCap:]
	}
	return evt
}

func candidateSymbols(specs map[string]market.InstrumentSpec) []string {
	out := make([]string, 0, len(specs))
	for symbol := range specs {
		if strings.HasSuffix(symbol, "USDT") {
			out = append(out, symbol)
		}
	}
	sort.Strings(out)
	return out
}

func newSessionID(nowMs int64) string {
	stamp := time.UnixMilli(nowMs).UTC().Format("2006-01-02T15:04:05.000Z")
	stamp = strings.NewReplacer(":", "-", ".", "-").Replace(stamp)
	return stamp + "_" + uuid.NewString()[:6]
}

func mskString(ts int64) string {
	if ts == 0 {
		return "-"
	}
	return time.UnixMilli(ts).In(_mskZone).Format("2006-01-02 15:04:05 MSK")
}

func floatOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
