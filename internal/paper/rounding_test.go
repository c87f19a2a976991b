package paper

import (
	"math"
	"testing"
)

func TestFloorToStep(t *testing.T) {
	testCases := []struct {
		desc     string
		value    float64
		step     float64
		expected float64
	}{
		{"aligned value unchanged", 1.5, 0.1, 1.5},
		{"rounds down", 1.57, 0.1, 1.5},
		{"integer step", 1234.0, 10.0, 1230.0},
		{"small step", 0.123456, 0.001, 0.123},
		{"binary division artifact floors down", 0.3, 0.1, 0.2},
		{"qty sizing", 500.0 / 99.85, 0.01, 5.00},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			got := FloorToStep(tc.value, tc.step)
			if got != tc.expected {
				t.Fatalf("floor mismatch! should be %v but got %v", tc.expected, got)
			}
		})
	}
}

func TestRoundToTick(t *testing.T) {
	down := RoundDownToTick(99.85015, 0.01)
	if down != 99.85 {
		t.Fatalf("round down mismatch! should be 99.85 but got %v", down)
	}

	up := RoundUpToTick(99.85015, 0.01)
	if up != 99.86 {
		t.Fatalf("round up mismatch! should be 99.86 but got %v", up)
	}

	// entry offset 0.15% below mark 100 lands exactly on the tick grid
	entry := RoundDownToTick(100*(1-0.15/100), 0.01)
	if entry != 99.85 {
		t.Fatalf("entry price mismatch! should be 99.85 but got %v", entry)
	}
}

func TestRoundingIdempotent(t *testing.T) {
	values := []float64{0.0007, 0.123, 1.0, 25.5, 99.85, 64000.0}
	steps := []float64{0.0001, 0.001, 0.01, 0.5, 1.0}

	for _, step := range steps {
		for _, v := range values {
			once := FloorToStep(v, step)
			twice := FloorToStep(once, step)
			if once != twice {
				t.Fatalf("floorToStep not idempotent for %v step %v: %v != %v", v, step, once, twice)
			}
			if math.Abs(v-once) > step {
				t.Fatalf("floorToStep moved %v by more than one step %v: got %v", v, step, once)
			}

			onceUp := RoundUpToTick(v, step)
			twiceUp := RoundUpToTick(onceUp, step)
			if onceUp != twiceUp {
				t.Fatalf("roundUpToTick not idempotent for %v step %v: %v != %v", v, step, onceUp, twiceUp)
			}
			if math.Abs(v-onceUp) > step {
				t.Fatalf("roundUpToTick moved %v by more than one step %v: got %v", v, step, onceUp)
			}
		}
	}
}

func TestStepDecimals(t *testing.T) {
	testCases := []struct {
		step     float64
		expected int
	}{
		{1, 0},
		{0.1, 1},
		{0.01, 2},
		{0.001, 3},
		{0.0001, 4},
		{0.5, 1},
	}

	for _, tc := range testCases {
		got := StepDecimals(tc.step)
		if got != tc.expected {
			t.Fatalf("decimals mismatch for %v! should be %d but got %d", tc.step, tc.expected, got)
		}
	}
}
