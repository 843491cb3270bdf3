package match

import (
	"fmt"
	"strings"

	"github.com/kunalmkv/ringbav2-sub000/internal/model"
)

// Unmatched reason codes surfaced in the reconciliation report.
const (
	ReasonInvalidCategory = "invalid category"
	ReasonInvalidCallerID = "invalid caller id"
	ReasonNoCandidates    = "no candidates for category and caller"
	ReasonOutOfTolerance  = "no candidate within tolerance"
)

// Unmatched is a driving record for which no acceptable counterpart was
// found, with the disqualifying criterion for manual investigation.
type Unmatched struct {
	Lead   *model.LeadCall `json:"lead"`
	Reason string          `json:"reason"`
	Detail string          `json:"detail,omitempty"`
}

// Result is the outcome of one matching pass.
type Result struct {
	Matches   []model.MatchCandidate `json:"matches"`
	Unmatched []Unmatched            `json:"unmatched"`
}

// Run matches each driving lead-ledger call against the index, in input
// order. Each routing-ledger call is consumed by at most one match per
// pass: once a candidate wins it leaves the pool. Ties break by encounter
// order (the first candidate scanned keeps priority).
func Run(leads []*model.LeadCall, idx *Index, cfg Config) Result {
	var res Result
	consumed := make(map[string]bool)

	for _, lead := range leads {
		if lead.Category == "" {
			res.Unmatched = append(res.Unmatched, Unmatched{Lead: lead, Reason: ReasonInvalidCategory})
			continue
		}
		if lead.CallerIDE164 == "" {
			res.Unmatched = append(res.Unmatched, Unmatched{Lead: lead, Reason: ReasonInvalidCallerID})
			continue
		}

		candidates := idx.Candidates(lead.Category, lead.CallerIDE164)
		if len(candidates) == 0 {
			res.Unmatched = append(res.Unmatched, Unmatched{Lead: lead, Reason: ReasonNoCandidates})
			continue
		}

		var best *model.MatchCandidate
		var rejects []string
		available := 0
		for _, cand := range candidates {
			if consumed[cand.InboundCallID] {
				continue
			}
			available++
			mc, rej := Score(lead, cand, cfg)
			if rej != RejectNone {
				rejects = append(rejects, fmt.Sprintf("%s: %s", cand.InboundCallID, rej))
				continue
			}
			if best == nil || mc.Score < best.Score {
				best = mc
			}
		}

		if best == nil {
			reason := ReasonOutOfTolerance
			if available == 0 {
				reason = ReasonNoCandidates
			}
			res.Unmatched = append(res.Unmatched, Unmatched{
				Lead:   lead,
				Reason: reason,
				Detail: strings.Join(rejects, "; "),
			})
			continue
		}

		consumed[best.Routed.InboundCallID] = true
		res.Matches = append(res.Matches, *best)
	}

	return res
}
