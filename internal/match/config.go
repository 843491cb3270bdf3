// Package match implements the candidate index, the multi-criteria scorer,
// and the greedy matcher that pairs lead-ledger calls with routing-ledger
// calls.
package match

import "github.com/shopspring/decimal"

// Config carries every tolerance the engine uses. The historical system
// forked near-duplicate engines per call site; here the variants collapse
// into one algorithm parameterized by this struct.
type Config struct {
	// SameDayWindowMin is the effective time window in minutes when both
	// timestamps fall on the same calendar day.
	SameDayWindowMin int

	// AdjacentDayWindowMin is the effective window when the timestamps fall
	// on adjacent calendar days. A full 24 hours by default.
	AdjacentDayWindowMin int

	// PayoutTolerance is the maximum absolute payout difference treated as
	// an exact payout match.
	PayoutTolerance decimal.Decimal

	// DurationToleranceSec rejects a pair outright when both sides report a
	// duration and the difference exceeds it: duration disagreement implies
	// different calls even with caller and time aligned.
	DurationToleranceSec int

	// UseDuration enables the duration-aware scoring variant.
	UseDuration bool

	// DurationExactBonus is added to the score on an exact duration match
	// when UseDuration is set. Large and negative so duration agreement
	// dominates time proximity in the ranking.
	DurationExactBonus float64
}

// DefaultConfig returns the production tolerances.
func DefaultConfig() Config {
	return Config{
		SameDayWindowMin:     30,
		AdjacentDayWindowMin: 24 * 60,
		PayoutTolerance:      decimal.NewFromFloat(0.01),
		DurationToleranceSec: 30,
		UseDuration:          false,
		DurationExactBonus:   -1000,
	}
}
