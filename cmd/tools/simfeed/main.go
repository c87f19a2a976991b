package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"

	"main/internal/event"
	"main/internal/feed"
	"main/internal/feed/sim"
	"main/internal/market"
	"main/internal/paper"
	"main/internal/session"
	"main/internal/strategy"
)

func main() {
	scenarioPath := flag.String("scenario", "", "Path to scenario JSON")
	configPath := flag.String("config", "", "Path to session config JSON (default: built-in)")
	tickSize := flag.Float64("tick-size", 0.01, "Instrument price tick")
	qtyStep := flag.Float64("qty-step", 0.001, "Instrument quantity step")
	minQty := flag.Float64("min-qty", 0.001, "Instrument minimum quantity")
	speed := flag.Float64("speed", 0, "Playback speed (1=real-time, 0=no pacing)")
	flag.Parse()

	if *scenarioPath == "" {
		log.Fatalf("scenario is required")
	}
	scenario, err := sim.LoadScenario(*scenarioPath)
	if err != nil {
		log.Fatalf("scenario load failed: %v", err)
	}
	if len(scenario.Frames) == 0 {
		log.Fatalf("scenario has no frames")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	var clock atomic.Int64
	clock.Store(scenario.BaseTs)

	var feedRef *sim.Feed
	manager := session.NewManager(session.Deps{
		FeedFactory: func(callbacks feed.Callbacks) feed.MarketFeed {
			feedRef = sim.NewFeed(scenario, callbacks)
			return feedRef
		},
		Instruments: scenarioInstruments{
			symbols:  scenario.Symbols,
			tickSize: *tickSize,
			qtyStep:  *qtyStep,
			minQty:   *minQty,
		},
		Now:      clock.Load,
		WarmupMs: 200,
	})

	manager.OnEventsAppend(func(msg session.EventsAppendMessage) {
		for _, evt := range msg.Events {
			printEvent(evt)
		}
	})

	// the universe builder samples tickers during warmup; pump frame zero
	// until Start returns
	warmupDone := make(chan struct{})
	go func() {
		for {
			select {
			case <-warmupDone:
				return
			case <-time.After(20 * time.Millisecond):
				feedRef.Tick(0)
			}
		}
	}()

	resp, err := manager.Start(context.Background(), cfg)
	close(warmupDone)
	if err != nil {
		log.Fatalf("session start failed: %v", err)
	}
	replay := feedRef.Scenario()
	fmt.Printf("session %s started, scenario %q, symbols=%d, state=%s\n",
		resp.SessionID, replay.Name, len(replay.Symbols), resp.State)

	lastT := replay.Frames[len(replay.Frames)-1].T
	for t := int64(1); t <= lastT; t++ {
		clock.Store(replay.BaseTs + t*1_000)
		feedRef.Tick(t)
		manager.TickOnce()
		if *speed > 0 {
			time.Sleep(time.Duration(float64(time.Second) / *speed))
		}
	}

	manager.Stop()
	status := manager.Status()
	fmt.Printf("done: frames=%d state=%s\n", lastT, status.State)
}

type scenarioInstruments struct {
	symbols  []string
	tickSize float64
	qtyStep  float64
	minQty   float64
}

func (s scenarioInstruments) FetchInstrumentsLinear(context.Context) (map[string]market.InstrumentSpec, error) {
	specs := make(map[string]market.InstrumentSpec, len(s.symbols))
	for _, symbol := range s.symbols {
		specs[symbol] = market.InstrumentSpec{
			Symbol:   symbol,
			TickSize: s.tickSize,
			QtyStep:  s.qtyStep,
			MinQty:   s.minQty,
		}
	}
	return specs, nil
}

func loadConfig(path string) (session.Config, error) {
	cfg := session.Config{
		TfMin: 1,
		Universe: session.UniverseConfig{
			MinVolatility24hPct: 0,
			MinTurnover24hUSDT:  0,
			MaxSymbols:          10,
		},
		Signal: strategy.SignalConfig{PriceMovePctThreshold: 0.8, OivMovePctThreshold: 2.0},
		Trade: paper.TradeConfig{
			MarginUSDT:           50,
			Leverage:             10,
			EntryOffsetPct:       0.15,
			EntryOrderTimeoutMin: 5,
			TPRoiPct:             1.0,
			SLRoiPct:             1.0,
		},
		FundingCooldown: strategy.CooldownConfig{BeforeMin: 15, AfterMin: 10},
		Fees:            paper.FeeConfig{MakerRate: 0.0002, TakerRate: 0.00055},
	}
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := sonic.ConfigFastest.Unmarshal(raw, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func printEvent(evt event.Event) {
	data, _ := sonic.ConfigFastest.MarshalToString(evt.Data)
	fmt.Printf("%s %-16s %-18s %s\n", evt.ID, evt.Type, evt.Symbol, data)
}
