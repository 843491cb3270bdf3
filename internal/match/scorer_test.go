package match

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kunalmkv/ringbav2-sub000/internal/model"
)

func lead(ts string, payout float64) *model.LeadCall {
	return &model.LeadCall{
		CallerID:     "5551234567",
		CallerIDE164: "+15551234567",
		Timestamp:    ts,
		Payout:       decimal.NewFromFloat(payout),
		Category:     "STATIC",
	}
}

func routed(id, ts string, payout float64) *model.RoutedCall {
	return &model.RoutedCall{
		InboundCallID: id,
		CallerID:      "5551234567",
		CallerIDE164:  "+15551234567",
		Timestamp:     ts,
		PayoutAmount:  decimal.NewFromFloat(payout),
		RevenueAmount: decimal.NewFromFloat(payout),
		Category:      "STATIC",
	}
}

func intp(n int) *int { return &n }

func TestScore_CategoryGateIsAbsolute(t *testing.T) {
	l := lead("2025-12-02T10:00:00", 12.00)
	r := routed("in-1", "2025-12-02T10:00:00", 12.00)
	r.Category = "API"

	// Identical time and payout must not survive a category mismatch.
	mc, rej := Score(l, r, DefaultConfig())
	assert.Nil(t, mc)
	assert.Equal(t, RejectCategory, rej)
}

func TestScore_EmptyCategoryRejected(t *testing.T) {
	l := lead("2025-12-02T10:00:00", 12.00)
	l.Category = ""
	r := routed("in-1", "2025-12-02T10:00:00", 12.00)
	r.Category = ""

	_, rej := Score(l, r, DefaultConfig())
	assert.Equal(t, RejectCategory, rej)
}

func TestScore_DayDistanceOverOneRejected(t *testing.T) {
	l := lead("2025-12-02T10:00:00", 0)
	r := routed("in-1", "2025-12-04T10:00:00", 12.00)

	_, rej := Score(l, r, DefaultConfig())
	assert.Equal(t, RejectDayDistance, rej)
}

func TestScore_WindowBoundary(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SameDayWindowMin = 30

	l := lead("2025-12-02T10:00:00", 12.00)

	// Exactly W minutes apart matches.
	mc, rej := Score(l, routed("in-1", "2025-12-02T10:30:00", 12.00), cfg)
	require.Equal(t, RejectNone, rej)
	assert.Equal(t, 30, mc.TimeDiffMinutes)

	// W+1 does not.
	_, rej = Score(l, routed("in-2", "2025-12-02T10:31:00", 12.00), cfg)
	assert.Equal(t, RejectTimeWindow, rej)
}

func TestScore_SecondsZeroedBeforeDiff(t *testing.T) {
	cfg := DefaultConfig()
	l := lead("2025-12-02T10:00:59", 12.00)
	mc, rej := Score(l, routed("in-1", "2025-12-02T10:01:01", 12.00), cfg)
	require.Equal(t, RejectNone, rej)
	assert.Equal(t, 1, mc.TimeDiffMinutes)
}

func TestScore_AdjacentDayUsesFullDayWindow(t *testing.T) {
	cfg := DefaultConfig()
	l := lead("2025-12-02T23:50:00", 12.00)

	mc, rej := Score(l, routed("in-1", "2025-12-03T00:10:00", 12.00), cfg)
	require.Equal(t, RejectNone, rej)
	assert.Equal(t, 20, mc.TimeDiffMinutes)

	// Adjacent day but more than 24 hours of clock distance.
	_, rej = Score(lead("2025-12-02T01:00:00", 12.00), routed("in-2", "2025-12-03T08:00:00", 12.00), cfg)
	assert.Equal(t, RejectTimeWindow, rej)
}

func TestScore_DurationDisagreementRejects(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DurationToleranceSec = 5

	l := lead("2025-12-02T10:00:00", 12.00)
	l.DurationSeconds = intp(120)
	r := routed("in-1", "2025-12-02T10:00:00", 12.00)
	r.DurationSeconds = intp(180)

	_, rej := Score(l, r, cfg)
	assert.Equal(t, RejectDuration, rej)

	// Missing duration on one side skips the check.
	r.DurationSeconds = nil
	_, rej = Score(l, r, cfg)
	assert.Equal(t, RejectNone, rej)
}

func TestScore_ExactPayoutScalesScoreDown(t *testing.T) {
	cfg := DefaultConfig()
	l := lead("2025-12-02T10:00:00", 12.00)

	exact, rej := Score(l, routed("in-1", "2025-12-02T10:20:00", 12.00), cfg)
	require.Equal(t, RejectNone, rej)
	assert.InDelta(t, 2.0, exact.Score, 0.0001) // 20 * 0.1

	off, rej := Score(l, routed("in-2", "2025-12-02T10:05:00", 13.00), cfg)
	require.Equal(t, RejectNone, rej)
	assert.InDelta(t, 15.0, off.Score, 0.0001) // 5 + 1.00*10

	// Exact payout at 20 minutes outranks a closer call with a payout gap.
	assert.Less(t, exact.Score, off.Score)
}

func TestScore_PayoutWithinToleranceCountsAsExact(t *testing.T) {
	cfg := DefaultConfig()
	l := lead("2025-12-02T10:00:00", 12.00)

	mc, rej := Score(l, routed("in-1", "2025-12-02T10:10:00", 12.01), cfg)
	require.Equal(t, RejectNone, rej)
	assert.InDelta(t, 1.0, mc.Score, 0.0001)
}

func TestScore_UnpricedPayoutContributesNoSignal(t *testing.T) {
	cfg := DefaultConfig()
	l := lead("2025-12-02T10:00:00", 0) // not priced yet

	// The closer call wins on time alone; the payout gap must not push a
	// ten-minute penalty onto an unpriced pair.
	near, rej := Score(l, routed("in-1", "2025-12-02T10:05:00", 40.00), cfg)
	require.Equal(t, RejectNone, rej)
	far, rej := Score(l, routed("in-2", "2025-12-02T10:20:00", 40.00), cfg)
	require.Equal(t, RejectNone, rej)

	assert.InDelta(t, 5.0, near.Score, 0.0001)
	assert.InDelta(t, 20.0, far.Score, 0.0001)
	assert.Less(t, near.Score, far.Score)
}

func TestScore_DurationBonusDominatesRanking(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UseDuration = true
	cfg.DurationToleranceSec = 30

	l := lead("2025-12-02T10:00:00", 0)
	l.DurationSeconds = intp(95)

	same := routed("in-1", "2025-12-02T10:25:00", 40.00)
	same.DurationSeconds = intp(95)
	near := routed("in-2", "2025-12-02T10:01:00", 40.00)
	near.DurationSeconds = intp(80)

	mcSame, rej := Score(l, same, cfg)
	require.Equal(t, RejectNone, rej)
	mcNear, rej := Score(l, near, cfg)
	require.Equal(t, RejectNone, rej)

	assert.Less(t, mcSame.Score, mcNear.Score)
	assert.Equal(t, 0, mcSame.DurationDiff)
}

func TestScore_ReportsDistances(t *testing.T) {
	l := lead("2025-12-02T10:00:00", 10.00)
	l.DurationSeconds = intp(100)
	r := routed("in-1", "2025-12-02T10:15:00", 12.00)
	r.DurationSeconds = intp(110)

	mc, rej := Score(l, r, DefaultConfig())
	require.Equal(t, RejectNone, rej)
	assert.Equal(t, 15, mc.TimeDiffMinutes)
	assert.Equal(t, 10, mc.DurationDiff)
	assert.True(t, decimal.NewFromFloat(2.00).Equal(mc.PayoutDiff))
}

func TestScore_UnparseableTimestampRejected(t *testing.T) {
	l := lead("", 12.00)
	_, rej := Score(l, routed("in-1", "2025-12-02T10:00:00", 12.00), DefaultConfig())
	assert.Equal(t, RejectTimestamp, rej)
}
