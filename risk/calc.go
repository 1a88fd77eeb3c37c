package risk

import "math"

// PositionSize commits sizePct percent of balance at price and returns
// the quantity bought or sold short together with its notional value.
func PositionSize(balance, sizePct, price float64) (qty, notional float64) {
	if balance <= 0 || sizePct <= 0 || price <= 0 {
		return 0, 0
	}
	notional = balance
	if sizePct < 100 {
		notional = balance * sizePct / 100
	}
	return notional / price, notional
}

// RR is the reward-to-risk ratio of a planned trade. It is 0 when no
// stop is set.
func RR(entry, stop, takeProfit float64) float64 {
	risk := math.Abs(entry - stop)
	reward := math.Abs(takeProfit - entry)
	if risk == 0 {
		return 0
	}
	return reward / risk
}

// ReturnPct is the percentage move from entry to exit in the direction of
// side.
func ReturnPct(side Side, entry, exit float64) float64 {
	if entry == 0 {
		return 0
	}
	return float64(side) * (exit/entry - 1) * 100
}

// Levels returns the stop and target prices implied by the configured
// percentages. A disabled exit yields 0.
func Levels(side Side, entry, stopPct, targetPct float64) (stop, target float64) {
	s := float64(side)
	if stopPct > 0 {
		stop = entry * (1 - s*stopPct/100)
	}
	if targetPct > 0 {
		target = entry * (1 + s*targetPct/100)
	}
	return stop, target
}
