package session

import (
	"main/internal/event"
	"main/internal/feed"
	"main/internal/paper"
	"main/internal/strategy"
)

// State is the session lifecycle state.
type State string

const (
	StateStopped  State = "STOPPED"
	StateRunning  State = "RUNNING"
	StateCooldown State = "COOLDOWN"
	StateStopping State = "STOPPING"
)

// Counts summarizes the session for status consumers.
type Counts struct {
	SymbolsTotal  int `json:"symbolsTotal"`
	OrdersActive  int `json:"ordersActive"`
	PositionsOpen int `json:"positionsOpen"`
}

// SymbolMarket is the observable market block of a symbol row.
type SymbolMarket struct {
	MarkPrice        float64 `json:"markPrice"`
	Turnover24hUSDT  float64 `json:"turnover24hUSDT"`
	Volatility24hPct float64 `json:"volatility24hPct"`
	OivUSDT          float64 `json:"oivUSDT"`
}

// SymbolFunding is the funding block of a symbol row.
type SymbolFunding struct {
	Rate               float64 `json:"rate"`
	NextFundingTimeTs  int64   `json:"nextFundingTimeTs"`
	NextFundingTimeMsk string  `json:"nextFundingTimeMsk"`
	CountdownSec       int64   `json:"countdownSec"`
}

// SymbolSignalMetrics shows the strategy inputs for a symbol.
type SymbolSignalMetrics struct {
	PrevCandleClose   float64 `json:"prevCandleClose"`
	PrevCandleOivUSDT float64 `json:"prevCandleOivUSDT"`
	PriceMovePct      float64 `json:"priceMovePct"`
	OivMovePct        float64 `json:"oivMovePct"`
}

// SymbolGates shows why a symbol may be held back from entries.
type SymbolGates struct {
	CooldownBlocked bool `json:"cooldownBlocked"`
	DataReady       bool `json:"dataReady"`
}

// SymbolRow is the full per-symbol view pushed to clients.
type SymbolRow struct {
	Symbol        string              `json:"symbol"`
	Status        paper.SymbolStatus  `json:"status"`
	Market        SymbolMarket        `json:"market"`
	Funding       SymbolFunding       `json:"funding"`
	SignalMetrics SymbolSignalMetrics `json:"signalMetrics"`
	Order         *paper.Order        `json:"order"`
	Position      *paper.Position     `json:"position"`
	Gates         SymbolGates         `json:"gates"`
}

// SessionRef identifies the session inside outbound messages.
type SessionRef struct {
	SessionID *string `json:"sessionId"`
	State     State   `json:"state"`
	TfMin     int     `json:"tfMin,omitempty"`
}

// StartResponse acknowledges a successful start.
type StartResponse struct {
	OK        bool   `json:"ok"`
	SessionID string `json:"sessionId"`
	State     State  `json:"state"`
}

// StopResponse acknowledges a stop; SessionID is the stopped session or nil.
type StopResponse struct {
	OK        bool    `json:"ok"`
	SessionID *string `json:"sessionId"`
	State     State   `json:"state"`
}

// StatusResponse is the polled session status.
type StatusResponse struct {
	OK        bool              `json:"ok"`
	SessionID *string           `json:"sessionId"`
	State     State             `json:"state"`
	TfMin     int               `json:"tfMin"`
	Counts    Counts            `json:"counts"`
	Cooldown  strategy.Cooldown `json:"cooldown"`
}

// SnapshotMessage is the full state pushed to a client on connect.
type SnapshotMessage struct {
	Type       string                  `json:"type"`
	Ts         int64                   `json:"ts"`
	Session    SessionRef              `json:"session"`
	Config     *Config                 `json:"config"`
	Counts     Counts                  `json:"counts"`
	Cooldown   strategy.Cooldown       `json:"cooldown"`
	Universe   []string                `json:"universe"`
	Symbols    []SymbolRow             `json:"symbols"`
	EventsTail []event.Event           `json:"eventsTail"`
	Feed       feed.SubscriptionReport `json:"feed"`
}

// TickMessage is the per-second push.
type TickMessage struct {
	Type         string            `json:"type"`
	Ts           int64             `json:"ts"`
	Session      SessionRef        `json:"session"`
	Counts       Counts            `json:"counts"`
	Cooldown     strategy.Cooldown `json:"cooldown"`
	SymbolsDelta []SymbolRow       `json:"symbolsDelta"`
}

// EventsAppendMessage pushes newly appended events.
type EventsAppendMessage struct {
	Type      string        `json:"type"`
	Ts        int64         `json:"ts"`
	SessionID *string       `json:"sessionId"`
	Events    []event.Event `json:"events"`
}

// StateMessage announces a session state transition.
type StateMessage struct {
	Type      string            `json:"type"`
	Ts        int64             `json:"ts"`
	SessionID *string           `json:"sessionId"`
	State     State             `json:"state"`
	Cooldown  strategy.Cooldown `json:"cooldown"`
}

// ErrorMessage carries a transport or engine error to clients.
type ErrorMessage struct {
	Type      string         `json:"type"`
	Ts        int64          `json:"ts"`
	SessionID *string        `json:"sessionId"`
	Scope     string         `json:"scope"`
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data"`
}
