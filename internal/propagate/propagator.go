// Package propagate records authoritative payout/revenue from matched
// routing-ledger calls in the lead-ledger rows' provenance fields, and
// optionally mirrors the reconciled payout back to the routing platform.
// The payout column itself is never touched here, so adjustments merged in
// the same pass survive propagation. Provenance fields are write-once:
// concurrent runs over overlapping windows are safe because the first
// writer wins and everyone else records a skip.
package propagate

import (
	"context"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kunalmkv/ringbav2-sub000/internal/model"
	"github.com/kunalmkv/ringbav2-sub000/internal/report"
	"github.com/kunalmkv/ringbav2-sub000/internal/store"
)

// Reasons attached to remote payout writes.
const (
	reasonReconciled      = "reconciliation"
	reasonClearTransition = "conversion clear: transition"
	reasonClearFinal      = "conversion clear: final"
)

// RemoteWriter pushes payout/revenue to the routing platform. The write is
// idempotent on the platform side: setting the same values twice is a no-op.
type RemoteWriter interface {
	SetPayoutAndRevenue(ctx context.Context, inboundCallID string, payout, revenue decimal.Decimal, reason string) error
}

// Config carries propagation behavior.
type Config struct {
	// PushRemote mirrors the reconciled payout back to the routing
	// platform after the local provenance write.
	PushRemote bool

	// WriteDelay is the fixed pause between successive remote writes.
	// The platform rate-limits aggressively; this is backpressure, not
	// concurrency control.
	WriteDelay time.Duration

	// FlagClearAmount is the intermediate value used when driving a
	// payout to zero. The platform clears its "converted" flag only on
	// a payout transition, so a direct zero write would leave the flag
	// set.
	FlagClearAmount decimal.Decimal
}

// DefaultConfig returns the production propagation settings.
func DefaultConfig() Config {
	return Config{
		PushRemote:      true,
		WriteDelay:      250 * time.Millisecond,
		FlagClearAmount: decimal.NewFromFloat(0.01),
	}
}

// Propagator applies authoritative payout to matched pairs.
type Propagator struct {
	store  store.Store
	remote RemoteWriter
	cfg    Config
	log    *zap.Logger
}

// New creates a propagator. remote may be nil, in which case only the
// local provenance write happens regardless of PushRemote.
func New(st store.Store, remote RemoteWriter, cfg Config) *Propagator {
	return &Propagator{store: st, remote: remote, cfg: cfg, log: zap.L().Named("propagate")}
}

// Apply records the routed call's payout/revenue as each lead row's
// original values, first-write-wins. Per-record failures are absorbed into
// the report and the batch continues.
func (p *Propagator) Apply(ctx context.Context, matches []model.MatchCandidate) report.Report {
	var rep report.Report
	wrote := false

	for _, m := range matches {
		lead, routed := m.Lead, m.Routed
		ref := strconv.FormatInt(lead.ID, 10)

		if !lead.OriginalPayout.IsZero() || !lead.OriginalRevenue.IsZero() {
			rep.Add(ref, report.StatusSkipped, "payout provenance preserved")
			continue
		}

		applied, err := p.store.UpdateOriginalPayout(ctx, lead.ID, routed.PayoutAmount, routed.RevenueAmount, routed.InboundCallID)
		if err != nil {
			rep.Add(ref, report.StatusFailed, err.Error())
			continue
		}
		if !applied {
			// Another run got there first.
			rep.Add(ref, report.StatusSkipped, "payout provenance preserved")
			continue
		}
		lead.OriginalPayout = routed.PayoutAmount
		lead.OriginalRevenue = routed.RevenueAmount
		lead.InboundCallID = routed.InboundCallID

		if p.remote == nil || !p.cfg.PushRemote {
			rep.Add(ref, report.StatusUpdated, "payout recorded")
			continue
		}

		if wrote {
			if err := sleep(ctx, p.cfg.WriteDelay); err != nil {
				rep.Add(ref, report.StatusFailed, err.Error())
				continue
			}
		}
		wrote = true

		if err := p.pushRemote(ctx, routed.InboundCallID, lead.Payout, routed.RevenueAmount); err != nil {
			p.log.Warn("remote payout write failed",
				zap.String("inbound_call_id", routed.InboundCallID),
				zap.Error(err),
			)
			rep.Add(ref, report.StatusFailed, err.Error())
			continue
		}
		rep.Add(ref, report.StatusUpdated, "payout recorded and pushed")
	}

	return rep
}

// pushRemote mirrors the reconciled payout to the routing platform. A zero
// payout is written as an explicit two-state sequence: a small non-zero
// transition value, then the final zero. The platform's converted flag
// clears only when the payout changes, so a single zero write does not
// clear it.
func (p *Propagator) pushRemote(ctx context.Context, inboundCallID string, payout, revenue decimal.Decimal) error {
	if payout.IsZero() {
		if err := p.remote.SetPayoutAndRevenue(ctx, inboundCallID, p.cfg.FlagClearAmount, revenue, reasonClearTransition); err != nil {
			return eris.Wrap(err, "propagate: conversion clear transition write")
		}
		if err := p.remote.SetPayoutAndRevenue(ctx, inboundCallID, payout, revenue, reasonClearFinal); err != nil {
			return eris.Wrap(err, "propagate: conversion clear final write")
		}
		return nil
	}
	if err := p.remote.SetPayoutAndRevenue(ctx, inboundCallID, payout, revenue, reasonReconciled); err != nil {
		return eris.Wrap(err, "propagate: payout write")
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
