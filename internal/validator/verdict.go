package validator

import (
	"time"

	"github.com/claimsentry/backend/internal/anomaly"
	"github.com/claimsentry/backend/internal/consensus"
	"github.com/claimsentry/backend/internal/core"
	"github.com/claimsentry/backend/internal/credibility"
)

// Request bundles one event with its validation context, as supplied by the
// ingestion layer.
type Request struct {
	Event   core.Event            `json:"event"`
	Window  core.Window           `json:"window"`
	Profile *core.IdentityProfile `json:"profile,omitempty"`
}

// Verdict aggregates all four layer outcomes for one event. OverallValid is a
// pure function of the per-layer results and the configured policy; it is
// never set independently.
type Verdict struct {
	ID      string `json:"id"`
	EventID string `json:"event_id"`
	Wallet  string `json:"wallet"`

	InputPassed bool   `json:"input_passed"`
	InputReason string `json:"input_reason,omitempty"`

	AnomalyRun    bool              `json:"anomaly_run"`
	AnomalyPassed bool              `json:"anomaly_passed"`
	Anomalies     []anomaly.Anomaly `json:"anomalies,omitempty"`

	ConsensusRun bool              `json:"consensus_run"`
	Consensus    consensus.Outcome `json:"consensus"`

	CredibilityRun  bool                `json:"credibility_run"`
	ProfileSupplied bool                `json:"profile_supplied"`
	Credibility     credibility.Score   `json:"credibility"`
	Weighted        *core.WeightedEvent `json:"weighted_event,omitempty"`

	OverallValid bool      `json:"overall_valid"`
	Policy       string    `json:"policy"`
	Timestamp    time.Time `json:"timestamp"`
}

// Summary aggregates a batch result set for reporting.
type Summary struct {
	Total            int            `json:"total"`
	OverallValid     int            `json:"overall_valid"`
	InputPassed      int            `json:"input_passed"`
	AnomalyPassed    int            `json:"anomaly_passed"`
	ConsensusReached int            `json:"consensus_reached"`
	MeanConfidence   float64        `json:"mean_confidence"`
	MeanCredibility  float64        `json:"mean_credibility"`
	TierDistribution map[string]int `json:"tier_distribution"`
}

// Summarize computes per-layer pass counts and score means across verdicts.
func Summarize(verdicts []Verdict) Summary {
	s := Summary{Total: len(verdicts), TierDistribution: make(map[string]int)}

	var confSum float64
	var confN int
	var credSum float64
	var credN int

	for _, v := range verdicts {
		if v.OverallValid {
			s.OverallValid++
		}
		if v.InputPassed {
			s.InputPassed++
		}
		if v.AnomalyRun && v.AnomalyPassed {
			s.AnomalyPassed++
		}
		if v.ConsensusRun {
			if v.Consensus.Status == consensus.StatusConsensus {
				s.ConsensusReached++
			}
			confSum += v.Consensus.Confidence
			confN++
		}
		if v.CredibilityRun {
			credSum += v.Credibility.Overall
			credN++
			s.TierDistribution[string(v.Credibility.Tier)]++
		}
	}

	if confN > 0 {
		s.MeanConfidence = confSum / float64(confN)
	}
	if credN > 0 {
		s.MeanCredibility = credSum / float64(credN)
	}
	return s
}
