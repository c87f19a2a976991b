package paper

// FeeUSDT is the fee charged on an executed notional at the given rate.
func FeeUSDT(executedNotional, feeRate float64) float64 {
	return executedNotional * feeRate
}

// ExitMakerFeeUSDT is the maker fee on the exit leg of a position.
func ExitMakerFeeUSDT(exitPrice, qty, makerRate float64) float64 {
	return FeeUSDT(exitPrice*qty, makerRate)
}
