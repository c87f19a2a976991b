package market

import (
	"math"
	"sync"
)

// Store keeps the latest known market state per symbol. Feed callbacks and
// the trading loop touch it from different goroutines, so access is guarded
// by an RWMutex; readers always receive detached copies.
type Store struct {
	mu       sync.RWMutex
	bySymbol map[string]State
}

// NewStore allocates an empty store.
func NewStore() *Store {
	return &Store{bySymbol: make(map[string]State)}
}

// ApplyPatch merges the finite fields present in patch into the stored state
// and records the update timestamp. Absent or non-finite fields are left
// untouched.
func (s *Store) ApplyPatch(symbol string, patch TickerPatch, nowTs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.bySymbol[symbol]
	if !ok {
		state = State{Symbol: symbol}
	}

	if v := finite(patch.MarkPrice); v != nil {
		state.MarkPrice = v
	}
	if v := finite(patch.OpenInterestValue); v != nil {
		state.OpenInterestValue = v
	}
	if v := finite(patch.Turnover24h); v != nil {
		state.Turnover24h = v
	}
	if v := finite(patch.HighPrice24h); v != nil {
		state.HighPrice24h = v
	}
	if v := finite(patch.LowPrice24h); v != nil {
		state.LowPrice24h = v
	}
	if v := finite(patch.FundingRate); v != nil {
		state.FundingRate = v
	}
	if patch.NextFundingTime != nil {
		state.NextFundingTime = cloneInt(patch.NextFundingTime)
	}
	state.UpdatedAt = nowTs

	s.bySymbol[symbol] = state
}

// Get returns a copy of the state for symbol.
func (s *Store) Get(symbol string) (State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.bySymbol[symbol]
	if !ok {
		return State{}, false
	}
	return state.clone(), true
}

// IsStale reports whether no update was ever recorded for symbol, or the
// gap since the last update exceeds thresholdMs.
func (s *Store) IsStale(symbol string, nowTs, thresholdMs int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.bySymbol[symbol]
	if !ok || state.UpdatedAt == 0 {
		return true
	}
	return nowTs-state.UpdatedAt > thresholdMs
}

// HasFullCanonicalData reports whether all seven canonical fields are known.
func (s *Store) HasFullCanonicalData(symbol string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.bySymbol[symbol]
	if !ok {
		return false
	}
	return state.MarkPrice != nil &&
		state.OpenInterestValue != nil &&
		state.Turnover24h != nil &&
		state.HighPrice24h != nil &&
		state.LowPrice24h != nil &&
		state.FundingRate != nil &&
		state.NextFundingTime != nil
}

// Snapshot returns a point-in-time copy of the state for the given symbols.
// Symbols with no data are omitted.
func (s *Store) Snapshot(symbols []string) map[string]State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]State, len(symbols))
	for _, symbol := range symbols {
		if state, ok := s.bySymbol[symbol]; ok {
			out[symbol] = state.clone()
		}
	}
	return out
}

func finite(v *float64) *float64 {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	out := *v
	return &out
}
