package market

import "testing"

func TestCandleTrackerIgnoresUnconfirmed(t *testing.T) {
	store := NewStore()
	tracker := NewCandleTracker(store)
	tracker.Reset([]string{"BTCUSDT"})

	tracker.OnKline("BTCUSDT", Candle{Close: 101, Confirm: false, Timestamp: 1_000})

	ref, ok := tracker.Get("BTCUSDT")
	if !ok {
		t.Fatal("seeded symbol must have a reference entry")
	}
	if ref.PrevClose != nil {
		t.Fatalf("unconfirmed candle must not set prevClose, got %v", *ref.PrevClose)
	}
}

func TestCandleTrackerCapturesOIVAtConfirmation(t *testing.T) {
	store := NewStore()
	tracker := NewCandleTracker(store)
	tracker.Reset([]string{"BTCUSDT"})

	store.ApplyPatch("BTCUSDT", TickerPatch{OpenInterestValue: Float(1_000_000)}, 900)
	tracker.OnKline("BTCUSDT", Candle{Close: 100, Confirm: true, Timestamp: 1_000})

	// later open interest updates must not move the captured reference
	store.ApplyPatch("BTCUSDT", TickerPatch{OpenInterestValue: Float(1_050_000)}, 1_500)

	ref, _ := tracker.Get("BTCUSDT")
	if ref.PrevClose == nil || *ref.PrevClose != 100 {
		t.Fatalf("prevClose mismatch! got %v", ref.PrevClose)
	}
	if ref.PrevOIV == nil || *ref.PrevOIV != 1_000_000 {
		t.Fatalf("prevOIV mismatch! got %v", ref.PrevOIV)
	}
	if ref.LastConfirmedTs != 1_000 {
		t.Fatalf("lastConfirmedTs mismatch! got %d", ref.LastConfirmedTs)
	}
}

func TestCandleTrackerMissingOIVStaysAbsent(t *testing.T) {
	store := NewStore()
	tracker := NewCandleTracker(store)
	tracker.Reset([]string{"BTCUSDT"})

	tracker.OnKline("BTCUSDT", Candle{Close: 100, Confirm: true, Timestamp: 1_000})

	ref, _ := tracker.Get("BTCUSDT")
	if ref.PrevOIV != nil {
		t.Fatalf("prevOIV should stay absent without market data, got %v", *ref.PrevOIV)
	}
	if ref.PrevClose == nil || *ref.PrevClose != 100 {
		t.Fatalf("prevClose mismatch! got %v", ref.PrevClose)
	}
}

func TestCandleTrackerReset(t *testing.T) {
	store := NewStore()
	tracker := NewCandleTracker(store)
	tracker.Reset([]string{"BTCUSDT"})
	tracker.OnKline("BTCUSDT", Candle{Close: 100, Confirm: true, Timestamp: 1_000})

	tracker.Reset([]string{"ETHUSDT"})

	if _, ok := tracker.Get("BTCUSDT"); ok {
		t.Fatal("old universe symbol must be gone after reset")
	}
	ref, ok := tracker.Get("ETHUSDT")
	if !ok {
		t.Fatal("new universe symbol must be seeded")
	}
	if ref.PrevClose != nil || ref.PrevOIV != nil || ref.LastConfirmedTs != 0 {
		t.Fatalf("seeded reference must be empty, got %+v", ref)
	}
}
