package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kunalmkv/ringbav2-sub000/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func leadCallRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "caller_id", "caller_id_e164", "call_time", "payout", "category", "duration_seconds",
		"original_payout", "original_revenue", "inbound_call_id", "adjustment_amount", "adjustment_time", "unmatched",
	})
}

func TestPostgresStore_GetCallByID_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT [\s\S]+ FROM lead_calls WHERE id = \$1`).
		WithArgs(int64(42)).
		WillReturnError(pgx.ErrNoRows)

	lc, err := s.GetCallByID(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, lc)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCallByID(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	adjTime := "2025-12-02T11:00:00"
	mock.ExpectQuery(`SELECT [\s\S]+ FROM lead_calls WHERE id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(leadCallRows().AddRow(
			int64(7), "5551234567", "+15551234567", "2025-12-02T10:00:00",
			decimal.NewFromFloat(17.00), "STATIC", nil,
			decimal.NewFromFloat(12.00), decimal.NewFromFloat(15.00),
			strPtr("in-99"), decimal.NewFromFloat(5.00), &adjTime, false,
		))

	lc, err := s.GetCallByID(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, lc)
	assert.Equal(t, int64(7), lc.ID)
	assert.Equal(t, "in-99", lc.InboundCallID)
	assert.Equal(t, "2025-12-02T11:00:00", lc.AdjustmentTime)
	assert.True(t, decimal.NewFromFloat(5.00).Equal(lc.AdjustmentAmount))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCallsForDateRange_CategoryFilter(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT [\s\S]+ FROM lead_calls WHERE call_time >= \$1 AND call_time <= \$2 AND category = \$3`).
		WithArgs("2025-12-01T00:00:00", "2025-12-03T00:00:00", "STATIC").
		WillReturnRows(leadCallRows().AddRow(
			int64(1), "5551234567", "+15551234567", "2025-12-02T10:00:00",
			decimal.Zero, "STATIC", nil,
			decimal.Zero, decimal.Zero, nil, decimal.Zero, nil, false,
		))

	start := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 12, 3, 0, 0, 0, 0, time.UTC)
	calls, err := s.GetCallsForDateRange(context.Background(), start, end, "STATIC")
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "+15551234567", calls[0].CallerIDE164)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCallsByCallerAndRange_ExcludesUnmatched(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT [\s\S]+ FROM lead_calls\s+WHERE caller_id_e164 = \$1[\s\S]+AND NOT unmatched`).
		WithArgs("+15551234567", "2025-12-01T00:00:00", "2025-12-03T00:00:00", "STATIC").
		WillReturnRows(leadCallRows())

	start := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 12, 3, 0, 0, 0, 0, time.UTC)
	calls, err := s.GetCallsByCallerAndRange(context.Background(), "+15551234567", start, end, "STATIC")
	require.NoError(t, err)
	assert.Empty(t, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertCallsBatch_CountsAndAssignsIDs(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO lead_calls`).
		WithArgs("5551234567", "+15551234567", "2025-12-02T10:00:00",
			decimal.Zero, "STATIC", pgxmock.AnyArg(), decimal.Zero, pgxmock.AnyArg(), false).
		WillReturnRows(pgxmock.NewRows([]string{"id", "inserted"}).AddRow(int64(11), true))
	mock.ExpectQuery(`INSERT INTO lead_calls`).
		WithArgs("5559876543", "+15559876543", "2025-12-02T11:00:00",
			decimal.Zero, "STATIC", pgxmock.AnyArg(), decimal.Zero, pgxmock.AnyArg(), false).
		WillReturnRows(pgxmock.NewRows([]string{"id", "inserted"}).AddRow(int64(12), false))

	calls := []*model.LeadCall{
		{CallerID: "5551234567", CallerIDE164: "+15551234567", Timestamp: "2025-12-02T10:00:00",
			Payout: decimal.Zero, AdjustmentAmount: decimal.Zero, Category: "STATIC"},
		{CallerID: "5559876543", CallerIDE164: "+15559876543", Timestamp: "2025-12-02T11:00:00",
			Payout: decimal.Zero, AdjustmentAmount: decimal.Zero, Category: "STATIC"},
	}
	res, err := s.InsertCallsBatch(context.Background(), calls)
	require.NoError(t, err)
	assert.Equal(t, InsertResult{Inserted: 1, Updated: 1}, res)
	assert.Equal(t, int64(11), calls[0].ID)
	assert.Equal(t, int64(12), calls[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateCallWithAdjustment(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE lead_calls\s+SET payout = payout \+ \$1`).
		WithArgs(decimal.NewFromFloat(5.00), "2025-12-02T12:00:00", int64(11)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.UpdateCallWithAdjustment(context.Background(), 11, decimal.NewFromFloat(5.00), "2025-12-02T12:00:00")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateCallWithAdjustment_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE lead_calls\s+SET payout = payout \+ \$1`).
		WithArgs(decimal.NewFromFloat(5.00), "2025-12-02T12:00:00", int64(999)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateCallWithAdjustment(context.Background(), 999, decimal.NewFromFloat(5.00), "2025-12-02T12:00:00")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateOriginalPayout_FirstWriteWins(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	// First write lands. The SET list carries only the provenance columns;
	// payout itself stays untouched so merged adjustments survive.
	mock.ExpectExec(`UPDATE lead_calls\s+SET original_payout = \$1, original_revenue = \$2, inbound_call_id = \$3, updated_at = now\(\)\s+WHERE id = \$4 AND original_payout = 0`).
		WithArgs(decimal.NewFromFloat(12.00), decimal.NewFromFloat(15.00), "in-99", int64(11)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	applied, err := s.UpdateOriginalPayout(context.Background(), 11, decimal.NewFromFloat(12.00), decimal.NewFromFloat(15.00), "in-99")
	require.NoError(t, err)
	assert.True(t, applied)

	// Second write with a different value is skipped by the guard.
	mock.ExpectExec(`UPDATE lead_calls\s+SET original_payout = \$1, original_revenue = \$2, inbound_call_id = \$3, updated_at = now\(\)\s+WHERE id = \$4 AND original_payout = 0`).
		WithArgs(decimal.NewFromFloat(99.00), decimal.NewFromFloat(99.00), "in-99", int64(11)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	applied, err = s.UpdateOriginalPayout(context.Background(), 11, decimal.NewFromFloat(99.00), decimal.NewFromFloat(99.00), "in-99")
	require.NoError(t, err)
	assert.False(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertUnmatchedAdjustment(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	adjTime := "2025-12-02T12:00:00"
	mock.ExpectExec(`INSERT INTO lead_calls[\s\S]+ON CONFLICT .+ DO NOTHING`).
		WithArgs("5551234567", "+15551234567", "2025-12-02T10:00:00", "STATIC",
			pgxmock.AnyArg(), decimal.NewFromFloat(5.00), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.InsertUnmatchedAdjustment(context.Background(), model.LeadCall{
		CallerID:         "5551234567",
		CallerIDE164:     "+15551234567",
		Timestamp:        "2025-12-02T10:00:00",
		Category:         "STATIC",
		AdjustmentAmount: decimal.NewFromFloat(5.00),
		AdjustmentTime:   adjTime,
		Unmatched:        true,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertRoutedCalls(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_routed_calls"`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_routed_calls"}, []string{
		"inbound_call_id", "caller_id", "caller_id_e164", "call_time",
		"payout_amount", "revenue_amount", "routing_id", "category", "duration_seconds",
	}).WillReturnResult(1)
	mock.ExpectExec(`INSERT INTO "routed_calls" .+ ON CONFLICT`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	n, err := s.UpsertRoutedCalls(context.Background(), []model.RoutedCall{
		{
			InboundCallID: "in-1",
			CallerID:      "5551234567",
			CallerIDE164:  "+15551234567",
			Timestamp:     "2025-12-02T10:15:00",
			PayoutAmount:  decimal.NewFromFloat(12.00),
			RevenueAmount: decimal.NewFromFloat(15.00),
			RoutingID:     "RT01static",
			Category:      "STATIC",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertRoutedCalls_Empty(t *testing.T) {
	s, _ := newMockPostgresStore(t)

	n, err := s.UpsertRoutedCalls(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func strPtr(s string) *string { return &s }
