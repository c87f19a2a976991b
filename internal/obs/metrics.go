package obs

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"main/internal/event"
)

// Metrics exposes the trading loop's counters and gauges on a private
// prometheus registry so tests can run several instances side by side.
type Metrics struct {
	registry *prometheus.Registry

	ticksTotal     prometheus.Counter
	eventsTotal    *prometheus.CounterVec
	feedReconnects *prometheus.CounterVec
	sinkErrors     prometheus.Counter

	sessionActive   prometheus.Gauge
	universeSymbols prometheus.Gauge
	openOrders      prometheus.Gauge
	openPositions   prometheus.Gauge
	lastTickTs      prometheus.Gauge
}

// NewMetrics registers the full metric set on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		ticksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bot_ticks_total",
			Help: "Trading loop ticks executed.",
		}),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_events_total",
			Help: "Session events emitted, by type.",
		}, []string{"type"}),
		feedReconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_feed_reconnects_total",
			Help: "Market feed reconnect attempts, by shard.",
		}, []string{"shard"}),
		sinkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bot_event_sink_errors_total",
			Help: "Failed event sink appends.",
		}),
		sessionActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bot_session_active",
			Help: "1 while a session is running or cooling down.",
		}),
		universeSymbols: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bot_universe_symbols",
			Help: "Symbols selected into the active universe.",
		}),
		openOrders: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bot_open_orders",
			Help: "Live limit orders.",
		}),
		openPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bot_open_positions",
			Help: "Open positions.",
		}),
		lastTickTs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bot_last_tick_timestamp_ms",
			Help: "Wall clock of the last completed tick, unix ms.",
		}),
	}
	registry.MustRegister(
		m.ticksTotal,
		m.eventsTotal,
		m.feedReconnects,
		m.sinkErrors,
		m.sessionActive,
		m.universeSymbols,
		m.openOrders,
		m.openPositions,
		m.lastTickTs,
	)
	return m
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveTick(nowTs int64) {
	if m == nil {
		return
	}
	m.ticksTotal.Inc()
	m.lastTickTs.Set(float64(nowTs))
}

func (m *Metrics) ObserveEvents(events []event.Event) {
	if m == nil {
		return
	}
	for _, evt := range events {
		m.eventsTotal.WithLabelValues(string(evt.Type)).Inc()
	}
}

func (m *Metrics) ObserveFeedReconnect(shardID int) {
	if m == nil {
		return
	}
	m.feedReconnects.WithLabelValues(strconv.Itoa(shardID)).Inc()
}

func (m *Metrics) ObserveSinkError() {
	if m == nil {
		return
	}
	m.sinkErrors.Inc()
}

// SetSessionGauges updates the point-in-time session gauges in one shot.
func (m *Metrics) SetSessionGauges(active bool, universeSymbols, openOrders, openPositions int) {
	if m == nil {
		return
	}
	if active {
		m.sessionActive.Set(1)
	} else {
		m.sessionActive.Set(0)
	}
	m.universeSymbols.Set(float64(universeSymbols))
	m.openOrders.Set(float64(openOrders))
	m.openPositions.Set(float64(openPositions))
}
