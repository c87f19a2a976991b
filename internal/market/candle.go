package market

import "sync"

// CandleTracker records, per symbol, the last confirmed candle close and the
// open-interest value known at confirmation time. In-progress candles are
// ignored entirely.
type CandleTracker struct {
	mu    sync.RWMutex
	store *Store
	refs  map[string]CandleReference
}

// NewCandleTracker builds a tracker reading open interest from store.
func NewCandleTracker(store *Store) *CandleTracker {
	return &CandleTracker{
		store: store,
		refs:  make(map[string]CandleReference),
	}
}

// OnKline updates the reference for symbol when candle is confirmed. The
// open-interest reference comes from the market store at confirmation time,
// not from the candle itself.
func (t *CandleTracker) OnKline(symbol string, candle Candle) {
	if !candle.Confirm {
		return
	}

	var oiv *float64
	if state, ok := t.store.Get(symbol); ok {
		oiv = state.OpenInterestValue
	}

	close := candle.Close
	t.mu.Lock()
	t.refs[symbol] = CandleReference{
		PrevClose:       &close,
		PrevOIV:         oiv,
		LastConfirmedTs: candle.Timestamp,
	}
	t.mu.Unlock()
}

// Get returns the reference for symbol.
func (t *CandleTracker) Get(symbol string) (CandleReference, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ref, ok := t.refs[symbol]
	if !ok {
		return CandleReference{}, false
	}
	return CandleReference{
		PrevClose:       cloneFloat(ref.PrevClose),
		PrevOIV:         cloneFloat(ref.PrevOIV),
		LastConfirmedTs: ref.LastConfirmedTs,
	}, true
}

// Reset clears all references and seeds empty entries for the new universe.
func (t *CandleTracker) Reset(symbols []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refs = make(map[string]CandleReference, len(symbols))
	for _, symbol := range symbols {
		t.refs[symbol] = CandleReference{}
	}
}
