package paper

// ShouldApplyFunding reports whether the funding timestamp has been crossed.
// A zero nextFundingTime means the value is unknown and never settles.
func ShouldApplyFunding(nowTs, nextFundingTime int64) bool {
	if nextFundingTime == 0 {
		return false
	}
	return nowTs >= nextFundingTime
}

// FundingPaymentUSDT is the signed funding payment for one settlement:
// longs pay positive funding, shorts receive it.
func FundingPaymentUSDT(side PositionSide, notionalUSDT, fundingRate float64) float64 {
	payment := notionalUSDT * fundingRate
	if side == PositionLong {
		return -payment
	}
	return payment
}
