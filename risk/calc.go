// Package risk provides pre-trade sizing and sanity checks. It is advisory:
// the trading engine accepts orders without consulting it.
package risk

import "math"

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// PlannedRisk is the absolute amount lost if the stop is hit, in quote
// currency. No cross-currency conversion is modeled.
func PlannedRisk(volume, contractSize, entry, stop float64) float64 {
	return abs(entry-stop) * volume * contractSize
}

// RR is the reward-to-risk ratio of an entry/stop/take triple. Zero when the
// stop distance is zero.
func RR(entry, stop, take float64) float64 {
	risk := abs(entry - stop)
	if risk == 0 {
		return 0
	}
	return abs(take-entry) / risk
}

// RiskPct expresses a planned risk as a fraction of equity. +Inf for a dead
// account.
func RiskPct(plannedRisk, equity float64) float64 {
	if equity <= 0 {
		return math.Inf(1)
	}
	return plannedRisk / equity
}

// MinLot is the smallest position size returned by PositionSize.
const MinLot = 0.01

// PositionSize computes the lot size that risks riskPct of balance between
// entry and stop. The result is rounded down to two decimals and floored at
// MinLot. A zero stop distance returns 0 (caller should fall back to a fixed
// size).
func PositionSize(balance, riskPct, entry, stop, contractSize float64) float64 {
	dist := abs(entry - stop)
	if dist == 0 || contractSize <= 0 || balance <= 0 || riskPct <= 0 {
		return 0
	}
	lots := balance * riskPct / (dist * contractSize)
	// Epsilon before flooring, so a budget that works out to an exact lot
	// boundary is not truncated by float noise.
	lots = math.Floor(lots*100+1e-9) / 100
	if lots < MinLot {
		lots = MinLot
	}
	return lots
}
