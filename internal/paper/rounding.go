package paper

import (
	"math"
	"strconv"
	"strings"
)

// StepDecimals returns the number of decimal places in a step size,
// e.g. 0.001 -> 3, 1 -> 0.
func StepDecimals(step float64) int {
	s := strconv.FormatFloat(step, 'f', -1, 64)
	idx := strings.IndexByte(s, '.')
	if idx < 0 {
		return 0
	}
	return len(s) - idx - 1
}

// FloorToStep floors value to a multiple of step. The result is re-quantized
// to the step's decimal places so float noise from the multiply never leaks
// into settlement arithmetic.
func FloorToStep(value, step float64) float64 {
	if step <= 0 {
		return value
	}
	factor := math.Floor(value / step)
	return quantize(factor*step, StepDecimals(step))
}

// RoundDownToTick floors a price to the instrument tick size.
func RoundDownToTick(price, tickSize float64) float64 {
	return FloorToStep(price, tickSize)
}

// RoundUpToTick ceils a price to the instrument tick size.
func RoundUpToTick(price, tickSize float64) float64 {
	if tickSize <= 0 {
		return price
	}
	factor := math.Ceil(price / tickSize)
	return quantize(factor*tickSize, StepDecimals(tickSize))
}

func quantize(value float64, decimals int) float64 {
	out, err := strconv.ParseFloat(strconv.FormatFloat(value, 'f', decimals, 64), 64)
	if err != nil {
		return value
	}
	return out
}
