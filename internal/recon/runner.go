// Package recon orchestrates one reconciliation pass over a bounded date
// window: refresh the routing-ledger mirror, ingest lead calls, match the
// two ledgers, merge adjustments, and propagate authoritative payout.
// Everything runs sequentially; overlapping scheduled runs are safe because
// every write is guarded, not because anything is locked.
package recon

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kunalmkv/ringbav2-sub000/internal/adjust"
	"github.com/kunalmkv/ringbav2-sub000/internal/category"
	"github.com/kunalmkv/ringbav2-sub000/internal/match"
	"github.com/kunalmkv/ringbav2-sub000/internal/model"
	"github.com/kunalmkv/ringbav2-sub000/internal/normalize"
	"github.com/kunalmkv/ringbav2-sub000/internal/propagate"
	"github.com/kunalmkv/ringbav2-sub000/internal/report"
	"github.com/kunalmkv/ringbav2-sub000/internal/store"
	"github.com/kunalmkv/ringbav2-sub000/pkg/leadsource"
	"github.com/kunalmkv/ringbav2-sub000/pkg/ringba"
)

// Summary aggregates the outcome of one reconciliation pass.
type Summary struct {
	RoutedUpserted int64              `json:"routed_upserted"`
	Ingested       store.InsertResult `json:"ingested"`
	Matching       report.Report      `json:"matching"`
	Adjustments    report.Report      `json:"adjustments"`
	Propagation    report.Report      `json:"propagation"`
}

// Runner wires the ledger clients, the store, and the engine stages.
type Runner struct {
	store    store.Store
	leads    leadsource.Client
	routing  ringba.Client
	resolver *category.Resolver
	matchCfg match.Config
	adjCfg   adjust.Config
	propCfg  propagate.Config
	log      *zap.Logger
}

// NewRunner creates a reconciliation runner.
func NewRunner(
	st store.Store,
	leads leadsource.Client,
	routing ringba.Client,
	resolver *category.Resolver,
	matchCfg match.Config,
	adjCfg adjust.Config,
	propCfg propagate.Config,
) *Runner {
	return &Runner{
		store:    st,
		leads:    leads,
		routing:  routing,
		resolver: resolver,
		matchCfg: matchCfg,
		adjCfg:   adjCfg,
		propCfg:  propCfg,
		log:      zap.L().Named("recon"),
	}
}

// Run executes one full pass for the window. cat restricts matching and
// lead ingestion to one category; the routing-ledger mirror is always
// refreshed in full. Fetch failures abort the pass; per-record failures
// land in the summary and the pass continues.
func (r *Runner) Run(ctx context.Context, window model.DateRange, cat string) (*Summary, error) {
	// Scheduled runs overlap; the run id ties each pass's log lines
	// together.
	log := r.log.With(zap.String("run_id", uuid.NewString()))
	sum := &Summary{}

	routed, err := r.refreshRoutedMirror(ctx, window, sum)
	if err != nil {
		return nil, err
	}

	batch, err := r.fetchLeads(ctx, window, cat)
	if err != nil {
		return nil, err
	}

	idx := match.NewIndex(r.indexable(routed, cat, &sum.Matching))
	for _, rc := range idx.Invalid() {
		sum.Matching.Add(rc.InboundCallID, report.StatusUnmatched, match.ReasonInvalidCallerID)
	}
	matchRes := match.Run(batch, idx, r.matchCfg)
	for _, u := range matchRes.Unmatched {
		reason := u.Reason
		if u.Detail != "" {
			reason += ": " + u.Detail
		}
		sum.Matching.Add(u.Lead.CallerIDE164+"@"+u.Lead.Timestamp, report.StatusUnmatched, reason)
	}
	for _, m := range matchRes.Matches {
		sum.Matching.Add(m.Routed.InboundCallID, report.StatusMatched, "")
	}

	events, err := r.fetchAdjustments(ctx, window)
	if err != nil {
		return nil, err
	}

	// Merge before persisting so in-batch adjustments land atomically
	// with their rows.
	eng := adjust.New(r.store, r.adjCfg)
	sum.Adjustments = eng.Merge(ctx, events, batch, window)

	if len(batch) > 0 {
		ins, err := r.store.InsertCallsBatch(ctx, batch)
		if err != nil {
			return nil, eris.Wrap(err, "recon: persist lead batch")
		}
		sum.Ingested = ins
	}

	prop := propagate.New(r.store, r.routing, r.propCfg)
	sum.Propagation = prop.Apply(ctx, matchRes.Matches)

	log.Info("reconciliation pass complete",
		zap.String("category", cat),
		zap.Int64("routed_upserted", sum.RoutedUpserted),
		zap.Int("ingested", sum.Ingested.Inserted),
		zap.Int("matched", sum.Matching.Matched),
		zap.Int("unmatched", sum.Matching.Unmatched),
		zap.Int("adjustments_updated", sum.Adjustments.Updated),
		zap.Int("payouts_propagated", sum.Propagation.Updated),
	)
	return sum, nil
}

func (r *Runner) refreshRoutedMirror(ctx context.Context, window model.DateRange, sum *Summary) ([]model.RoutedCall, error) {
	raw, err := r.routing.FetchCallsByDateRange(ctx, window.Start, window.End)
	if err != nil {
		return nil, eris.Wrap(err, "recon: fetch routed calls")
	}

	routed := make([]model.RoutedCall, 0, len(raw))
	for _, rc := range raw {
		row, ok := r.routedFromRaw(rc)
		if !ok {
			continue
		}
		routed = append(routed, row)
	}

	if len(routed) > 0 {
		n, err := r.store.UpsertRoutedCalls(ctx, routed)
		if err != nil {
			return nil, eris.Wrap(err, "recon: refresh routed mirror")
		}
		sum.RoutedUpserted = n
	}
	return routed, nil
}

func (r *Runner) fetchLeads(ctx context.Context, window model.DateRange, cat string) ([]*model.LeadCall, error) {
	raw, err := r.leads.FetchCalls(ctx, window.Start, window.End, cat)
	if err != nil {
		return nil, eris.Wrap(err, "recon: fetch lead calls")
	}

	batch := make([]*model.LeadCall, 0, len(raw))
	for _, rc := range raw {
		lead, ok := r.leadFromRaw(rc)
		if !ok {
			continue
		}
		batch = append(batch, lead)
	}
	return batch, nil
}

func (r *Runner) fetchAdjustments(ctx context.Context, window model.DateRange) ([]model.AdjustmentEvent, error) {
	raw, err := r.leads.FetchAdjustments(ctx, window.Start, window.End)
	if err != nil {
		return nil, eris.Wrap(err, "recon: fetch adjustments")
	}

	events := make([]model.AdjustmentEvent, 0, len(raw))
	for _, ra := range raw {
		ev, ok := r.eventFromRaw(ra)
		if !ok {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// indexable returns the routed calls eligible for matching: resolved
// category, restricted to cat when one was requested. Rows whose routing
// id resolves to nothing land in the report; rows outside the requested
// category are merely out of scope for this pass.
func (r *Runner) indexable(routed []model.RoutedCall, cat string, rep *report.Report) []*model.RoutedCall {
	out := make([]*model.RoutedCall, 0, len(routed))
	for i := range routed {
		rc := &routed[i]
		if rc.Category == "" {
			rep.Add(rc.InboundCallID, report.StatusUnmatched, "unresolvable routing id: "+rc.RoutingID)
			continue
		}
		if cat != "" && rc.Category != cat {
			continue
		}
		out = append(out, rc)
	}
	return out
}

func (r *Runner) leadFromRaw(rc leadsource.RawCall) (*model.LeadCall, bool) {
	ts := normalize.Timestamp(rc.CallTime)
	if ts == "" {
		r.log.Warn("dropping lead call with unparseable time",
			zap.String("caller", rc.CallerID),
			zap.String("raw_time", rc.CallTime),
		)
		return nil, false
	}
	payout, err := decimal.NewFromString(rc.Payout)
	if err != nil {
		r.log.Warn("dropping lead call with unparseable payout",
			zap.String("caller", rc.CallerID),
			zap.String("raw_payout", rc.Payout),
		)
		return nil, false
	}
	return &model.LeadCall{
		CallerID:        rc.CallerID,
		CallerIDE164:    normalize.Phone(rc.CallerID),
		Timestamp:       ts,
		Payout:          payout,
		Category:        rc.Category,
		DurationSeconds: rc.DurationSeconds,
	}, true
}

func (r *Runner) routedFromRaw(rc ringba.RawCall) (model.RoutedCall, bool) {
	if rc.InboundCallID == "" {
		return model.RoutedCall{}, false
	}
	ts := normalize.Timestamp(rc.CallTime)
	if ts == "" {
		r.log.Warn("dropping routed call with unparseable time",
			zap.String("inbound_call_id", rc.InboundCallID),
			zap.String("raw_time", rc.CallTime),
		)
		return model.RoutedCall{}, false
	}
	payout, err := decimal.NewFromString(rc.Payout)
	if err != nil {
		payout = decimal.Zero
	}
	revenue, err := decimal.NewFromString(rc.Revenue)
	if err != nil {
		revenue = decimal.Zero
	}
	return model.RoutedCall{
		InboundCallID:   rc.InboundCallID,
		CallerID:        rc.CallerID,
		CallerIDE164:    normalize.Phone(rc.CallerID),
		Timestamp:       ts,
		PayoutAmount:    payout,
		RevenueAmount:   revenue,
		RoutingID:       rc.RoutingID,
		Category:        r.resolver.Resolve(rc.RoutingID),
		DurationSeconds: rc.DurationSeconds,
	}, true
}

func (r *Runner) eventFromRaw(ra leadsource.RawAdjustment) (model.AdjustmentEvent, bool) {
	amount, err := decimal.NewFromString(ra.Amount)
	if err != nil {
		r.log.Warn("dropping adjustment with unparseable amount",
			zap.String("caller", ra.CallerID),
			zap.String("raw_amount", ra.Amount),
		)
		return model.AdjustmentEvent{}, false
	}
	return model.AdjustmentEvent{
		CallerID:       ra.CallerID,
		CallerIDE164:   normalize.Phone(ra.CallerID),
		TimeOfCall:     normalize.Timestamp(ra.TimeOfCall),
		AdjustmentTime: normalize.Timestamp(ra.AdjustmentTime),
		Amount:         amount,
		Classification: ra.Classification,
		DurationSec:    ra.DurationSeconds,
	}, true
}

// Window builds a DateRange covering start through end inclusive, with end
// extended to the last second of its day so lexicographic range queries
// include the whole final day.
func Window(start, end time.Time) model.DateRange {
	return model.DateRange{
		Start: time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC),
		End:   time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 0, time.UTC),
	}
}
