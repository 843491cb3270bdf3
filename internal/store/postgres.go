package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/kunalmkv/ringbav2-sub000/internal/db"
	"github.com/kunalmkv/ringbav2-sub000/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems needing direct
// query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

// Columns are nullable-by-default by migration: the schema contract is
// versioned here, not probed from information_schema at runtime.
const postgresMigration = `
CREATE TABLE IF NOT EXISTS lead_calls (
	id                BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	caller_id         TEXT NOT NULL DEFAULT '',
	caller_id_e164    TEXT NOT NULL DEFAULT '',
	call_time         TEXT NOT NULL,
	payout            NUMERIC(12,2) NOT NULL DEFAULT 0,
	category          TEXT NOT NULL DEFAULT '',
	duration_seconds  INTEGER,
	original_payout   NUMERIC(12,2) NOT NULL DEFAULT 0,
	original_revenue  NUMERIC(12,2) NOT NULL DEFAULT 0,
	inbound_call_id   TEXT,
	adjustment_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
	adjustment_time   TEXT,
	unmatched         BOOLEAN NOT NULL DEFAULT false,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (caller_id_e164, call_time, category)
);

CREATE INDEX IF NOT EXISTS idx_lead_calls_category_time ON lead_calls(category, call_time);
CREATE INDEX IF NOT EXISTS idx_lead_calls_caller ON lead_calls(caller_id_e164);
CREATE INDEX IF NOT EXISTS idx_lead_calls_unmatched ON lead_calls(unmatched) WHERE unmatched;

CREATE TABLE IF NOT EXISTS routed_calls (
	inbound_call_id  TEXT PRIMARY KEY,
	caller_id        TEXT NOT NULL DEFAULT '',
	caller_id_e164   TEXT NOT NULL DEFAULT '',
	call_time        TEXT NOT NULL,
	payout_amount    NUMERIC(12,2) NOT NULL DEFAULT 0,
	revenue_amount   NUMERIC(12,2) NOT NULL DEFAULT 0,
	routing_id       TEXT NOT NULL DEFAULT '',
	category         TEXT NOT NULL DEFAULT '',
	duration_seconds INTEGER,
	ingested_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_routed_calls_category_caller ON routed_calls(category, caller_id_e164);
CREATE INDEX IF NOT EXISTS idx_routed_calls_time ON routed_calls(call_time);
`

// The conflict branch keeps re-runs of overlapping windows safe:
// adjustment bookkeeping and payout increments applied by prior runs are
// carried forward instead of being clobbered by a fresh base payout, and a
// real call arriving for an unmatched placeholder folds the pending
// adjustment into its payout.
const upsertLeadCallSQL = `
INSERT INTO lead_calls
	(caller_id, caller_id_e164, call_time, payout, category, duration_seconds, adjustment_amount, adjustment_time, unmatched)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (caller_id_e164, call_time, category) DO UPDATE SET
	caller_id        = EXCLUDED.caller_id,
	duration_seconds = COALESCE(EXCLUDED.duration_seconds, lead_calls.duration_seconds),
	payout = CASE
		WHEN lead_calls.adjustment_amount <> 0 AND EXCLUDED.adjustment_amount = 0
			THEN EXCLUDED.payout + lead_calls.adjustment_amount
		ELSE EXCLUDED.payout
	END,
	adjustment_amount = CASE WHEN EXCLUDED.adjustment_amount <> 0 THEN EXCLUDED.adjustment_amount ELSE lead_calls.adjustment_amount END,
	adjustment_time   = CASE WHEN EXCLUDED.adjustment_amount <> 0 THEN EXCLUDED.adjustment_time ELSE lead_calls.adjustment_time END,
	unmatched  = false,
	updated_at = now()
RETURNING id, (xmax = 0) AS inserted`

const leadCallColumns = `id, caller_id, caller_id_e164, call_time, payout, category, duration_seconds,
	original_payout, original_revenue, inbound_call_id, adjustment_amount, adjustment_time, unmatched`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetCallsForDateRange(ctx context.Context, start, end time.Time, category string) ([]model.LeadCall, error) {
	query := `SELECT ` + leadCallColumns + ` FROM lead_calls WHERE call_time >= $1 AND call_time <= $2`
	args := []any{start.Format(model.CanonicalTimeLayout), end.Format(model.CanonicalTimeLayout)}

	if category != "" {
		query += fmt.Sprintf(` AND category = $%d`, len(args)+1)
		args = append(args, category)
	}
	query += ` ORDER BY call_time`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get calls for date range")
	}
	defer rows.Close()

	return scanLeadCalls(rows, "postgres: get calls for date range")
}

func (s *PostgresStore) GetCallsByCallerAndRange(ctx context.Context, callerE164 string, start, end time.Time, category string) ([]model.LeadCall, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+leadCallColumns+` FROM lead_calls
		 WHERE caller_id_e164 = $1 AND call_time >= $2 AND call_time <= $3 AND category = $4 AND NOT unmatched
		 ORDER BY call_time`,
		callerE164, start.Format(model.CanonicalTimeLayout), end.Format(model.CanonicalTimeLayout), category,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get calls by caller")
	}
	defer rows.Close()

	return scanLeadCalls(rows, "postgres: get calls by caller")
}

func (s *PostgresStore) GetCallByID(ctx context.Context, id int64) (*model.LeadCall, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+leadCallColumns+` FROM lead_calls WHERE id = $1`, id)
	lc, err := scanLeadCall(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get call %d", id)
	}
	return lc, nil
}

func (s *PostgresStore) InsertCallsBatch(ctx context.Context, calls []*model.LeadCall) (InsertResult, error) {
	var res InsertResult
	for _, c := range calls {
		var adjTime *string
		if c.AdjustmentTime != "" {
			adjTime = &c.AdjustmentTime
		}
		var inserted bool
		err := s.pool.QueryRow(ctx, upsertLeadCallSQL,
			c.CallerID, c.CallerIDE164, c.Timestamp, c.Payout, c.Category,
			c.DurationSeconds, c.AdjustmentAmount, adjTime, c.Unmatched,
		).Scan(&c.ID, &inserted)
		if err != nil {
			return res, eris.Wrapf(err, "postgres: upsert call %s %s", c.CallerIDE164, c.Timestamp)
		}
		if inserted {
			res.Inserted++
		} else {
			res.Updated++
		}
	}
	return res, nil
}

func (s *PostgresStore) UpdateCallWithAdjustment(ctx context.Context, id int64, amount decimal.Decimal, adjustmentTime string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE lead_calls
		 SET payout = payout + $1, adjustment_amount = $1, adjustment_time = $2, updated_at = now()
		 WHERE id = $3`,
		amount, adjustmentTime, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update call %d with adjustment", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("lead_call not found: %d", id)
	}
	return nil
}

func (s *PostgresStore) UpdateOriginalPayout(ctx context.Context, id int64, payout, revenue decimal.Decimal, inboundCallID string) (bool, error) {
	// The provenance guard lives in the WHERE clause so first-write-wins
	// holds even when scheduled runs race each other. Only the provenance
	// columns are written; payout keeps any adjustment merged this pass.
	tag, err := s.pool.Exec(ctx,
		`UPDATE lead_calls
		 SET original_payout = $1, original_revenue = $2, inbound_call_id = $3, updated_at = now()
		 WHERE id = $4 AND original_payout = 0 AND original_revenue = 0`,
		payout, revenue, inboundCallID, id,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: update original payout %d", id)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) InsertUnmatchedAdjustment(ctx context.Context, row model.LeadCall) error {
	var adjTime *string
	if row.AdjustmentTime != "" {
		adjTime = &row.AdjustmentTime
	}
	// DO NOTHING keeps placeholder insertion idempotent across overlapping
	// runs of the same window.
	_, err := s.pool.Exec(ctx,
		`INSERT INTO lead_calls
			(caller_id, caller_id_e164, call_time, payout, category, duration_seconds, adjustment_amount, adjustment_time, unmatched)
		 VALUES ($1, $2, $3, 0, $4, $5, $6, $7, true)
		 ON CONFLICT (caller_id_e164, call_time, category) DO NOTHING`,
		row.CallerID, row.CallerIDE164, row.Timestamp, row.Category,
		row.DurationSeconds, row.AdjustmentAmount, adjTime,
	)
	return eris.Wrapf(err, "postgres: insert unmatched adjustment %s %s", row.CallerIDE164, row.Timestamp)
}

func (s *PostgresStore) UpsertRoutedCalls(ctx context.Context, calls []model.RoutedCall) (int64, error) {
	if len(calls) == 0 {
		return 0, nil
	}
	rows := make([][]any, 0, len(calls))
	for _, c := range calls {
		rows = append(rows, []any{
			c.InboundCallID, c.CallerID, c.CallerIDE164, c.Timestamp,
			c.PayoutAmount, c.RevenueAmount, c.RoutingID, c.Category, c.DurationSeconds,
		})
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table: "routed_calls",
		Columns: []string{
			"inbound_call_id", "caller_id", "caller_id_e164", "call_time",
			"payout_amount", "revenue_amount", "routing_id", "category", "duration_seconds",
		},
		ConflictKeys: []string{"inbound_call_id"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert routed calls")
	}
	return n, nil
}

// scanLeadCall reads one lead_calls row. Shared by the single-row and
// multi-row paths.
func scanLeadCall(row pgx.Row) (*model.LeadCall, error) {
	var lc model.LeadCall
	var inboundCallID, adjustmentTime *string
	err := row.Scan(
		&lc.ID, &lc.CallerID, &lc.CallerIDE164, &lc.Timestamp, &lc.Payout, &lc.Category,
		&lc.DurationSeconds, &lc.OriginalPayout, &lc.OriginalRevenue,
		&inboundCallID, &lc.AdjustmentAmount, &adjustmentTime, &lc.Unmatched,
	)
	if err != nil {
		return nil, err
	}
	if inboundCallID != nil {
		lc.InboundCallID = *inboundCallID
	}
	if adjustmentTime != nil {
		lc.AdjustmentTime = *adjustmentTime
	}
	return &lc, nil
}

func scanLeadCalls(rows pgx.Rows, wrapMsg string) ([]model.LeadCall, error) {
	var out []model.LeadCall
	for rows.Next() {
		lc, err := scanLeadCall(rows)
		if err != nil {
			return nil, eris.Wrap(err, wrapMsg+" scan")
		}
		out = append(out, *lc)
	}
	return out, eris.Wrap(rows.Err(), wrapMsg+" iterate")
}
