// Package store persists lead-ledger calls and the routing-ledger mirror,
// and enforces the write-once provenance rule at the SQL level.
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kunalmkv/ringbav2-sub000/internal/model"
)

// InsertResult reports how an ingestion batch landed.
type InsertResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

// Store defines the persistence interface for the reconciliation engine.
// Every mutation is its own atomic statement: there are no batch-spanning
// transactions, because the idempotency guards make re-running safe.
type Store interface {
	// Lead-ledger calls
	GetCallsForDateRange(ctx context.Context, start, end time.Time, category string) ([]model.LeadCall, error)
	GetCallsByCallerAndRange(ctx context.Context, callerE164 string, start, end time.Time, category string) ([]model.LeadCall, error)
	GetCallByID(ctx context.Context, id int64) (*model.LeadCall, error)
	// InsertCallsBatch upserts ingested rows on the natural key
	// (caller_id_e164, call_time, category) and fills in each row's
	// surrogate ID.
	InsertCallsBatch(ctx context.Context, rows []*model.LeadCall) (InsertResult, error)
	UpdateCallWithAdjustment(ctx context.Context, id int64, amount decimal.Decimal, adjustmentTime string) error
	// UpdateOriginalPayout records the authoritative payout/revenue in the
	// provenance columns and links the counterpart; the payout column is
	// left alone. Returns false when the row's provenance fields were
	// already non-zero and the write was skipped (first-write-wins).
	UpdateOriginalPayout(ctx context.Context, id int64, payout, revenue decimal.Decimal, inboundCallID string) (bool, error)
	InsertUnmatchedAdjustment(ctx context.Context, row model.LeadCall) error

	// Routing-ledger mirror
	UpsertRoutedCalls(ctx context.Context, rows []model.RoutedCall) (int64, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
