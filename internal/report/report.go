// Package report aggregates per-record reconciliation outcomes into the
// structured summary surfaced by the CLI and the logs.
package report

// Outcome statuses. "skipped" covers idempotency skips and preserved
// provenance; neither is an error.
const (
	StatusMatched   = "matched"
	StatusUpdated   = "updated"
	StatusSkipped   = "skipped"
	StatusUnmatched = "unmatched"
	StatusFailed    = "failed"
)

// Outcome records what happened to a single record during a pass.
type Outcome struct {
	RecordRef string `json:"record_ref"` // lead row id or inbound call id
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
}

// Report is the aggregate result of one reconciliation pass.
type Report struct {
	Matched   int `json:"matched"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
	Unmatched int `json:"unmatched"`
	Failed    int `json:"failed"`

	Outcomes []Outcome `json:"outcomes,omitempty"`
}

// Add appends an outcome and bumps the matching counter.
func (r *Report) Add(ref, status, reason string) {
	switch status {
	case StatusMatched:
		r.Matched++
	case StatusUpdated:
		r.Updated++
	case StatusSkipped:
		r.Skipped++
	case StatusUnmatched:
		r.Unmatched++
	case StatusFailed:
		r.Failed++
	}
	r.Outcomes = append(r.Outcomes, Outcome{RecordRef: ref, Status: status, Reason: reason})
}

// Merge folds another report's counters and outcomes into this one.
func (r *Report) Merge(other Report) {
	r.Matched += other.Matched
	r.Updated += other.Updated
	r.Skipped += other.Skipped
	r.Unmatched += other.Unmatched
	r.Failed += other.Failed
	r.Outcomes = append(r.Outcomes, other.Outcomes...)
}
