package event

import "fmt"

// Type enumerates the outbound event catalog.
type Type string

const (
	TypeSessionStarted  Type = "session_started"
	TypeUniverseBuilt   Type = "universe_built"
	TypeCooldownEntered Type = "cooldown_entered"
	TypeCooldownExited  Type = "cooldown_exited"
	TypeSignalFired     Type = "signal_fired"
	TypeOrderPlaced     Type = "order_placed"
	TypeOrderFilled     Type = "order_filled"
	TypeOrderExpired    Type = "order_expired"
	TypeOrderCanceled   Type = "order_canceled"
	TypePositionOpened  Type = "position_opened"
	TypePositionClosed  Type = "position_closed"
	TypeFundingApplied  Type = "funding_applied"
	TypeSessionStopped  Type = "session_stopped"
	TypeError           Type = "error"
)

// SymbolSystem marks events not tied to a single instrument.
const SymbolSystem = "SYSTEM"

// FormatID renders a session-scoped sequential event id, e.g. evt_000042.
func FormatID(seq int) string {
	return fmt.Sprintf("evt_%06d", seq)
}

// Event is one append-only record. Never mutated after creation.
type Event struct {
	ID     string         `json:"id"`
	Ts     int64          `json:"ts"`
	Type   Type           `json:"type"`
	Symbol string         `json:"symbol"`
	Data   map[string]any `json:"data"`
}
