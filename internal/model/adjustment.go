package model

import "github.com/shopspring/decimal"

// AdjustmentEvent is an out-of-band payout correction for a call that was
// already ingested. It carries no foreign key; the target call is identified
// by caller id plus the original call time.
type AdjustmentEvent struct {
	CallerID       string          `json:"caller_id"`
	CallerIDE164   string          `json:"caller_id_e164"`
	TimeOfCall     string          `json:"time_of_call"`    // CanonicalTimeLayout
	AdjustmentTime string          `json:"adjustment_time"` // when the correction was issued
	Amount         decimal.Decimal `json:"amount"`
	Classification string          `json:"classification"`
	DurationSec    *int            `json:"duration_seconds,omitempty"`
}
