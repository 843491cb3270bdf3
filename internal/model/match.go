package model

import "github.com/shopspring/decimal"

// MatchCandidate pairs a lead-ledger call with a routing-ledger call along
// with the distances that produced the score. Lower score is better.
type MatchCandidate struct {
	Lead            *LeadCall       `json:"lead"`
	Routed          *RoutedCall     `json:"routed"`
	Score           float64         `json:"score"`
	TimeDiffMinutes int             `json:"time_diff_minutes"`
	DurationDiff    int             `json:"duration_diff"`
	PayoutDiff      decimal.Decimal `json:"payout_diff"`
}
