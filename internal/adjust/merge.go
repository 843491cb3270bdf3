// Package adjust merges out-of-band payout corrections into lead-ledger
// calls. Adjustments and primary call records are scraped at different
// cadences over different date windows, so the merge runs in three passes
// plus a fallback, and an amount+time idempotency guard is the sole
// mechanism preventing double-counting when overlapping windows are
// re-executed.
package adjust

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kunalmkv/ringbav2-sub000/internal/model"
	"github.com/kunalmkv/ringbav2-sub000/internal/report"
	"github.com/kunalmkv/ringbav2-sub000/internal/store"
)

// Config carries the adjustment-merge tolerances.
type Config struct {
	// WindowMin is the same-day proximity window in minutes used to pick
	// the call an adjustment corrects. Wider than the matcher's primary
	// window: adjustments reference the call loosely by time.
	WindowMin int

	// AmountTolerance bounds the amount equality check in the idempotency
	// guard.
	AmountTolerance decimal.Decimal

	// TimeTolerance bounds the adjustment-time equality check in the
	// idempotency guard.
	TimeTolerance time.Duration
}

// DefaultConfig returns the production merge tolerances.
func DefaultConfig() Config {
	return Config{
		WindowMin:       120,
		AmountTolerance: decimal.NewFromFloat(0.01),
		TimeTolerance:   time.Minute,
	}
}

// Engine applies adjustment events to in-batch and persisted calls.
type Engine struct {
	store store.Store
	cfg   Config
	log   *zap.Logger
}

// New creates an adjustment merge engine.
func New(st store.Store, cfg Config) *Engine {
	return &Engine{store: st, cfg: cfg, log: zap.L().Named("adjust")}
}

// Merge applies each event exactly once:
//
//	pass 1: calls ingested in the same run, indexed by caller id
//	pass 2: persisted calls inside the batch window
//	pass 3: persisted calls within one calendar day of the event's own call time
//	fallback: synthetic unmatched placeholder row
//
// batch rows are mutated in place, so callers run Merge before persisting
// the batch. Per-event store failures are absorbed into the report.
func (e *Engine) Merge(ctx context.Context, events []model.AdjustmentEvent, batch []*model.LeadCall, window model.DateRange) report.Report {
	var rep report.Report

	byCaller := make(map[string][]*model.LeadCall)
	for _, c := range batch {
		if c.CallerIDE164 != "" {
			byCaller[c.CallerIDE164] = append(byCaller[c.CallerIDE164], c)
		}
	}

	for _, ev := range events {
		ref := eventRef(ev)

		if ev.CallerIDE164 == "" {
			rep.Add(ref, report.StatusUnmatched, "invalid caller id")
			continue
		}
		evTime, err := model.ParseCanonical(ev.TimeOfCall)
		if err != nil {
			rep.Add(ref, report.StatusUnmatched, "unparseable call time")
			continue
		}

		if e.mergeInBatch(ev, evTime, byCaller[ev.CallerIDE164], &rep) {
			continue
		}
		done, err := e.mergeFromStore(ctx, ev, evTime, window.Start, window.End, true, &rep)
		if err != nil {
			rep.Add(ref, report.StatusFailed, err.Error())
			continue
		}
		if done {
			continue
		}
		// Widened search: the call may exist in storage outside the
		// originally fetched range.
		done, err = e.mergeFromStore(ctx, ev, evTime, evTime.AddDate(0, 0, -1), evTime.AddDate(0, 0, 1), false, &rep)
		if err != nil {
			rep.Add(ref, report.StatusFailed, err.Error())
			continue
		}
		if done {
			continue
		}

		e.insertPlaceholder(ctx, ev, &rep)
	}

	return rep
}

// mergeInBatch is pass 1: same-run calls, same calendar day, best time
// proximity within the window.
func (e *Engine) mergeInBatch(ev model.AdjustmentEvent, evTime time.Time, candidates []*model.LeadCall, rep *report.Report) bool {
	best := e.bestBatchCandidate(ev, evTime, candidates)
	if best == nil {
		return false
	}
	if e.alreadyApplied(best.AdjustmentAmount, best.AdjustmentTime, ev) {
		rep.Add(eventRef(ev), report.StatusSkipped, "adjustment already applied")
		return true
	}

	best.Payout = best.Payout.Add(ev.Amount)
	best.AdjustmentAmount = ev.Amount
	best.AdjustmentTime = ev.AdjustmentTime
	rep.Add(eventRef(ev), report.StatusUpdated, "adjustment merged in batch")
	return true
}

// mergeFromStore is passes 2 and 3: search persisted calls for the event's
// caller and category inside [start, end]. sameDayOnly restricts candidates
// to the event's calendar day (pass 2); pass 3 accepts adjacent days.
func (e *Engine) mergeFromStore(ctx context.Context, ev model.AdjustmentEvent, evTime time.Time, start, end time.Time, sameDayOnly bool, rep *report.Report) (bool, error) {
	calls, err := e.store.GetCallsByCallerAndRange(ctx, ev.CallerIDE164, start, end, ev.Classification)
	if err != nil {
		return false, err
	}

	var best *model.LeadCall
	bestDiff := time.Duration(0)
	for i := range calls {
		c := &calls[i]
		ct, err := model.ParseCanonical(c.Timestamp)
		if err != nil {
			continue
		}
		if sameDayOnly {
			if model.Day(c.Timestamp) != model.Day(ev.TimeOfCall) {
				continue
			}
			if minutesApart(ct, evTime) > e.cfg.WindowMin {
				continue
			}
		} else if calendarDayDiff(ct, evTime) > 1 {
			continue
		}
		diff := absDuration(ct.Sub(evTime))
		if best == nil || diff < bestDiff {
			best = c
			bestDiff = diff
		}
	}
	if best == nil {
		return false, nil
	}

	if e.alreadyApplied(best.AdjustmentAmount, best.AdjustmentTime, ev) {
		// A prior run over an overlapping window already applied this event.
		rep.Add(eventRef(ev), report.StatusSkipped, "adjustment already applied")
		return true, nil
	}

	if err := e.store.UpdateCallWithAdjustment(ctx, best.ID, ev.Amount, ev.AdjustmentTime); err != nil {
		return false, err
	}
	e.log.Debug("adjustment applied to stored call",
		zap.Int64("call_id", best.ID),
		zap.String("caller", ev.CallerIDE164),
		zap.String("amount", ev.Amount.String()),
	)
	rep.Add(eventRef(ev), report.StatusUpdated, "adjustment applied to stored call")
	return true, nil
}

func (e *Engine) insertPlaceholder(ctx context.Context, ev model.AdjustmentEvent, rep *report.Report) {
	row := model.LeadCall{
		CallerID:         ev.CallerID,
		CallerIDE164:     ev.CallerIDE164,
		Timestamp:        ev.TimeOfCall,
		Category:         ev.Classification,
		DurationSeconds:  ev.DurationSec,
		AdjustmentAmount: ev.Amount,
		AdjustmentTime:   ev.AdjustmentTime,
		Unmatched:        true,
	}
	if err := e.store.InsertUnmatchedAdjustment(ctx, row); err != nil {
		rep.Add(eventRef(ev), report.StatusFailed, err.Error())
		return
	}
	rep.Add(eventRef(ev), report.StatusUnmatched, "no matching call; placeholder inserted")
}

func (e *Engine) bestBatchCandidate(ev model.AdjustmentEvent, evTime time.Time, candidates []*model.LeadCall) *model.LeadCall {
	var best *model.LeadCall
	bestDiff := time.Duration(0)
	for _, c := range candidates {
		if model.Day(c.Timestamp) != model.Day(ev.TimeOfCall) {
			continue
		}
		ct, err := model.ParseCanonical(c.Timestamp)
		if err != nil {
			continue
		}
		if minutesApart(ct, evTime) > e.cfg.WindowMin {
			continue
		}
		diff := absDuration(ct.Sub(evTime))
		if best == nil || diff < bestDiff {
			best = c
			bestDiff = diff
		}
	}
	return best
}

// alreadyApplied is the idempotency guard: the event was applied by a prior
// run when the recorded amount matches within tolerance and the recorded
// adjustment time is within the time tolerance.
func (e *Engine) alreadyApplied(recordedAmount decimal.Decimal, recordedTime string, ev model.AdjustmentEvent) bool {
	if recordedAmount.IsZero() {
		return false
	}
	if recordedAmount.Sub(ev.Amount).Abs().GreaterThan(e.cfg.AmountTolerance) {
		return false
	}
	rt, err := model.ParseCanonical(recordedTime)
	if err != nil {
		return false
	}
	et, err := model.ParseCanonical(ev.AdjustmentTime)
	if err != nil {
		return false
	}
	return absDuration(rt.Sub(et)) <= e.cfg.TimeTolerance
}

func eventRef(ev model.AdjustmentEvent) string {
	return fmt.Sprintf("%s@%s", ev.CallerIDE164, ev.TimeOfCall)
}

func minutesApart(a, b time.Time) int {
	return int(absDuration(a.Truncate(time.Minute).Sub(b.Truncate(time.Minute))) / time.Minute)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func calendarDayDiff(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	d := int(ad.Sub(bd).Hours() / 24)
	if d < 0 {
		d = -d
	}
	return d
}
