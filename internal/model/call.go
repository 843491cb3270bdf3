// Package model defines the domain types shared across the reconciliation
// pipeline: lead-ledger calls, routing-ledger calls, adjustment events, and
// match candidates.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CanonicalTimeLayout is the shared wall-clock timestamp format used by both
// ledgers after normalization. It carries no zone; the numbers are compared
// as received.
const CanonicalTimeLayout = "2006-01-02T15:04:05"

// LeadCall is a call-detail row from the lead-delivery ledger (Source A).
// Rows are created by ingestion, mutated by adjustment merging and payout
// propagation, and never deleted.
type LeadCall struct {
	ID               int64           `json:"id"`
	CallerID         string          `json:"caller_id"`
	CallerIDE164     string          `json:"caller_id_e164"`
	Timestamp        string          `json:"timestamp"` // CanonicalTimeLayout
	Payout           decimal.Decimal `json:"payout"`
	Category         string          `json:"category"`
	DurationSeconds  *int            `json:"duration_seconds,omitempty"`
	OriginalPayout   decimal.Decimal `json:"original_payout"`
	OriginalRevenue  decimal.Decimal `json:"original_revenue"`
	InboundCallID    string          `json:"inbound_call_id,omitempty"` // link to RoutedCall
	AdjustmentAmount decimal.Decimal `json:"adjustment_amount"`
	AdjustmentTime   string          `json:"adjustment_time,omitempty"`
	Unmatched        bool            `json:"unmatched"`
}

// RoutedCall is a call-detail row from the call-routing ledger (Source B).
// Immutable from the engine's perspective; refreshed by periodic ingestion.
type RoutedCall struct {
	InboundCallID   string          `json:"inbound_call_id"`
	CallerID        string          `json:"caller_id"`
	CallerIDE164    string          `json:"caller_id_e164"`
	Timestamp       string          `json:"timestamp"` // CanonicalTimeLayout
	PayoutAmount    decimal.Decimal `json:"payout_amount"`
	RevenueAmount   decimal.Decimal `json:"revenue_amount"`
	RoutingID       string          `json:"routing_id"`
	Category        string          `json:"category"`
	DurationSeconds *int            `json:"duration_seconds,omitempty"`
}

// DateRange is a half-open-ish inclusive batch window. Start and End are
// wall-clock in the shared local convention.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ParseCanonical parses a CanonicalTimeLayout string. The returned time is
// zone-less (UTC carrier); it is only ever used for wall-clock arithmetic.
func ParseCanonical(s string) (time.Time, error) {
	return time.Parse(CanonicalTimeLayout, s)
}

// Day returns the calendar date portion of a canonical timestamp string,
// or "" if the timestamp does not parse.
func Day(s string) string {
	t, err := ParseCanonical(s)
	if err != nil {
		return ""
	}
	return t.Format("2006-01-02")
}
