package bybit

import (
	"context"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"github.com/yanun0323/logs"

	"main/internal/feed"
	"main/internal/market"
)

// Options tunes the public websocket client. Zero values fall back to the
// exchange defaults.
type Options struct {
	WsURL           string
	PingInterval    time.Duration
	WatchdogTimeout time.Duration
	ArgsMaxChars    int
	ReconnectMin    time.Duration
	ReconnectMax    time.Duration
}

func (o Options) withDefaults() Options {
	if o.WsURL == "" {
		o.WsURL = _publicLinearWsURL
	}
	if o.PingInterval <= 0 {
		o.PingInterval = _pingIntervalMs * time.Millisecond
	}
	if o.WatchdogTimeout <= 0 {
		o.WatchdogTimeout = _watchdogTimeoutMs * time.Millisecond
	}
	if o.ArgsMaxChars <= 0 {
		o.ArgsMaxChars = _argsMaxChars
	}
	if o.ReconnectMin <= 0 {
		o.ReconnectMin = _reconnectBaseMs * time.Millisecond
	}
	if o.ReconnectMax <= 0 {
		o.ReconnectMax = _reconnectMaxMs * time.Millisecond
	}
	return o
}

type shard struct {
	id     int
	topics []string
	cancel context.CancelFunc
	done   chan struct{}

	lastMessageNs atomic.Int64
	watchdogFired atomic.Bool
}

// Client streams Bybit public linear ticker and kline topics. Topics are
// partitioned into shards by the subscribe args budget; each shard owns one
// connection with its own heartbeat, watchdog and reconnect loop.
type Client struct {
	opts      Options
	callbacks feed.Callbacks

	mu      sync.Mutex
	running bool
	subs    feed.Subscriptions
	groups  [][]string
	shards  []*shard

	tickerMu    sync.RWMutex
	tickerState map[string]market.TickerPatch
}

// NewClient builds a stopped client. Callbacks fire from shard read loops.
func NewClient(opts Options, callbacks feed.Callbacks) *Client {
	return &Client{
		opts:        opts.withDefaults(),
		callbacks:   callbacks,
		tickerState: make(map[string]market.TickerPatch),
	}
}

var _ feed.MarketFeed = (*Client)(nil)

// SetSubscriptions replaces the subscription set. While running, shards are
// recreated only when the resulting topic groups actually changed.
func (c *Client) SetSubscriptions(subs feed.Subscriptions) error {
	seen := make(map[string]struct{}, len(subs.Symbols))
	symbols := make([]string, 0, len(subs.Symbols))
	for _, symbol := range subs.Symbols {
		if _, ok := seen[symbol]; ok {
			continue
		}
		seen[symbol] = struct{}{}
		symbols = append(symbols, symbol)
	}

	topics := BuildTopics(symbols, subs.TimeframeMin, subs.IncludeKline)
	groups, err := PartitionTopics(topics, c.opts.ArgsMaxChars)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	changed := !reflect.DeepEqual(groups, c.groups)
	c.subs = feed.Subscriptions{Symbols: symbols, TimeframeMin: subs.TimeframeMin, IncludeKline: subs.IncludeKline}
	c.groups = groups
	if c.running && changed {
		c.recreateShardsLocked()
	}
	return nil
}

// Start opens one connection per topic group. Idempotent.
func (c *Client) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	c.running = true
	logs.Infof("bybit ws client start, topic groups: %d", len(c.groups))
	c.recreateShardsLocked()
}

// Stop tears down every shard and waits for their loops to exit.
func (c *Client) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	shards := c.shards
	c.shards = nil
	c.mu.Unlock()

	logs.Infof("bybit ws client stop, active shards: %d", len(shards))
	for _, s := range shards {
		s.cancel()
	}
	for _, s := range shards {
		<-s.done
	}
}

// Report describes the current subscription sharding.
func (c *Client) Report() feed.SubscriptionReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	perConn := make([]int, len(c.groups))
	for i, group := range c.groups {
		perConn[i] = len(group)
	}
	return feed.SubscriptionReport{
		TotalSymbols:        len(c.subs.Symbols),
		Connections:         len(c.groups),
		TopicsPerConnection: perConn,
	}
}

// TickerSnapshot returns the merged ticker state observed for symbol.
func (c *Client) TickerSnapshot(symbol string) (market.TickerPatch, bool) {
	c.tickerMu.RLock()
	defer c.tickerMu.RUnlock()
	patch, ok := c.tickerState[symbol]
	return patch, ok
}

func (c *Client) recreateShardsLocked() {
	for _, s := range c.shards {
		s.cancel()
	}
	for _, s := range c.shards {
		<-s.done
	}

	c.shards = make([]*shard, 0, len(c.groups))
	for id, topics := range c.groups {
		ctx, cancel := context.WithCancel(context.Background())
		s := &shard{
			id:     id,
			topics: append([]string(nil), topics...),
			cancel: cancel,
			done:   make(chan struct{}),
		}
		c.shards = append(c.shards, s)
		go c.runShard(ctx, s)
	}
}

func (c *Client) runShard(ctx context.Context, s *shard) {
	defer close(s.done)

	bo := &backoff.Backoff{
		Min:    c.opts.ReconnectMin,
		Max:    c.opts.ReconnectMax,
		Factor: 2,
	}
	attempt := 0

	for ctx.Err() == nil {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.opts.WsURL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			attempt++
			logs.Errorf("bybit ws shard %d dial failed, attempt %d, err: %+v", s.id, attempt, err)
			c.notifyReconnecting(s.id, attempt, "dial_failed")
			if !sleepCtx(ctx, bo.Duration()) {
				return
			}
			continue
		}

		bo.Reset()
		attempt = 0
		s.lastMessageNs.Store(time.Now().UnixNano())
		logs.Infof("bybit ws shard %d connected, topics: %d", s.id, len(s.topics))

		if err := c.subscribe(conn, s); err != nil {
			logs.Errorf("bybit ws shard %d subscribe failed, err: %+v", s.id, err)
			conn.Close()
		} else {
			c.notifyConnected(s.id)
			c.serve(ctx, s, conn)
		}

		if ctx.Err() != nil {
			return
		}
		attempt++
		reason := "disconnected"
		if s.watchdogFired.CompareAndSwap(true, false) {
			reason = "watchdog_timeout"
		}
		c.notifyReconnecting(s.id, attempt, reason)
		if !sleepCtx(ctx, bo.Duration()) {
			return
		}
	}
}

func (c *Client) subscribe(conn *websocket.Conn, s *shard) error {
	if len(s.topics) == 0 {
		return nil
	}
	payload, err := _json.Marshal(map[string]any{"op": "subscribe", "args": s.topics})
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// serve pumps one connection until it drops or the shard is canceled. The
// write side sends application pings and enforces the silence watchdog.
func (c *Client) serve(ctx context.Context, s *shard, conn *websocket.Conn) {
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		watchdogEvery := c.opts.PingInterval
		if watchdogEvery > 5*time.Second {
			watchdogEvery = 5 * time.Second
		}
		pingTicker := time.NewTicker(c.opts.PingInterval)
		watchdogTicker := time.NewTicker(watchdogEvery)
		defer pingTicker.Stop()
		defer watchdogTicker.Stop()

		for {
			select {
			case <-ctx.Done():
				conn.Close()
				return
			case <-stop:
				return
			case <-pingTicker.C:
				if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"op":"ping"}`)); err != nil {
					conn.Close()
					return
				}
			case <-watchdogTicker.C:
				silence := time.Since(time.Unix(0, s.lastMessageNs.Load()))
				if silence <= c.opts.WatchdogTimeout {
					continue
				}
				logs.Errorf("bybit ws shard %d silent for %s, forcing reconnect", s.id, silence)
				s.watchdogFired.Store(true)
				conn.Close()
				return
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			if ctx.Err() == nil {
				c.notifyError(err)
			}
			return
		}
		s.lastMessageNs.Store(time.Now().UnixNano())
		c.handleMessage(raw)
	}
}

func (c *Client) handleMessage(raw []byte) {
	var env envelope
	if err := _json.Unmarshal(raw, &env); err != nil {
		return
	}

	// pong and other control acks carry op/type but no topic payload
	if env.Op != "" || env.Type == "pong" || env.Topic == "" {
		return
	}

	switch {
	case strings.HasPrefix(env.Topic, "tickers."):
		update, ok := decodeTicker(env)
		if !ok {
			return
		}
		c.mergeTickerState(update)
		if c.callbacks.OnTicker != nil {
			c.callbacks.OnTicker(update.Symbol, update.Patch)
		}
	case strings.HasPrefix(env.Topic, "kline."):
		for _, update := range decodeKlines(env) {
			if c.callbacks.OnKline != nil {
				c.callbacks.OnKline(update.Symbol, update.TfMin, update.Candle)
			}
		}
	}
}

func (c *Client) mergeTickerState(update tickerUpdate) {
	c.tickerMu.Lock()
	defer c.tickerMu.Unlock()

	merged := c.tickerState[update.Symbol]
	patch := update.Patch
	if patch.MarkPrice != nil {
		merged.MarkPrice = patch.MarkPrice
	}
	if patch.OpenInterestValue != nil {
		merged.OpenInterestValue = patch.OpenInterestValue
	}
	if patch.Turnover24h != nil {
		merged.Turnover24h = patch.Turnover24h
	}
	if patch.HighPrice24h != nil {
		merged.HighPrice24h = patch.HighPrice24h
	}
	if patch.LowPrice24h != nil {
		merged.LowPrice24h = patch.LowPrice24h
	}
	if patch.FundingRate != nil {
		merged.FundingRate = patch.FundingRate
	}
	if patch.NextFundingTime != nil {
		merged.NextFundingTime = patch.NextFundingTime
	}
	c.tickerState[update.Symbol] = merged
}

func (c *Client) notifyConnected(shardID int) {
	if c.callbacks.OnConnected != nil {
		c.callbacks.OnConnected(shardID)
	}
}

func (c *Client) notifyReconnecting(shardID, attempt int, reason string) {
	if c.callbacks.OnReconnecting != nil {
		c.callbacks.OnReconnecting(shardID, attempt, reason)
	}
}

func (c *Client) notifyError(err error) {
	if c.callbacks.OnError != nil {
		c.callbacks.OnError(err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
