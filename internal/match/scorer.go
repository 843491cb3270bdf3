package match

import (
	"time"

	"github.com/kunalmkv/ringbav2-sub000/internal/model"
)

// Reject identifies why a pair was disqualified before scoring completed.
type Reject int

const (
	RejectNone Reject = iota
	RejectCategory
	RejectTimestamp
	RejectDayDistance
	RejectTimeWindow
	RejectDuration
)

func (r Reject) String() string {
	switch r {
	case RejectNone:
		return "none"
	case RejectCategory:
		return "category mismatch"
	case RejectTimestamp:
		return "unparseable timestamp"
	case RejectDayDistance:
		return "day distance exceeds one"
	case RejectTimeWindow:
		return "time outside window"
	case RejectDuration:
		return "duration outside tolerance"
	default:
		return "unknown"
	}
}

// Score computes the match score for a pair. The category gate is absolute
// and checked before any numeric comparison. Lower scores rank better; a
// non-nil candidate is returned only when every gate passes.
func Score(lead *model.LeadCall, routed *model.RoutedCall, cfg Config) (*model.MatchCandidate, Reject) {
	if lead.Category == "" || routed.Category == "" || lead.Category != routed.Category {
		return nil, RejectCategory
	}

	lt, err := model.ParseCanonical(lead.Timestamp)
	if err != nil {
		return nil, RejectTimestamp
	}
	rt, err := model.ParseCanonical(routed.Timestamp)
	if err != nil {
		return nil, RejectTimestamp
	}

	dayDiff := calendarDayDiff(lt, rt)
	if dayDiff > 1 {
		return nil, RejectDayDistance
	}

	// Hour:minute granularity; seconds are zeroed before the difference.
	diff := lt.Truncate(time.Minute).Sub(rt.Truncate(time.Minute))
	if diff < 0 {
		diff = -diff
	}
	timeDiffMin := int(diff / time.Minute)

	window := cfg.SameDayWindowMin
	if dayDiff == 1 {
		window = cfg.AdjacentDayWindowMin
	}
	if timeDiffMin > window {
		return nil, RejectTimeWindow
	}

	durationDiff := 0
	if lead.DurationSeconds != nil && routed.DurationSeconds != nil {
		durationDiff = *lead.DurationSeconds - *routed.DurationSeconds
		if durationDiff < 0 {
			durationDiff = -durationDiff
		}
		if durationDiff > cfg.DurationToleranceSec {
			return nil, RejectDuration
		}
	}

	payoutDiff := lead.Payout.Sub(routed.PayoutAmount).Abs()

	score := float64(timeDiffMin)
	// A zero payout means the ledger has not priced the call yet, so it
	// contributes no signal either way; time proximity alone ranks the pair.
	if !lead.Payout.IsZero() && !routed.PayoutAmount.IsZero() {
		if payoutDiff.LessThanOrEqual(cfg.PayoutTolerance) {
			// Strongly prefer exact payout matches.
			score *= 0.1
		} else {
			pd, _ := payoutDiff.Float64()
			score += pd * 10
		}
	}
	if cfg.UseDuration && lead.DurationSeconds != nil && routed.DurationSeconds != nil && durationDiff == 0 {
		score += cfg.DurationExactBonus
	}

	return &model.MatchCandidate{
		Lead:            lead,
		Routed:          routed,
		Score:           score,
		TimeDiffMinutes: timeDiffMin,
		DurationDiff:    durationDiff,
		PayoutDiff:      payoutDiff,
	}, RejectNone
}

// calendarDayDiff returns the absolute distance in calendar days between
// two wall-clock times.
func calendarDayDiff(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	d := int(ad.Sub(bd).Hours() / 24)
	if d < 0 {
		d = -d
	}
	return d
}
