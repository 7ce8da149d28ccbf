// Package credibility implements the fourth validation layer: a
// reputation-weighted trust score for an event's originating wallet.
//
// The scoring model is a pluggable strategy: orchestration depends only on
// the Scorer interface, so the fixed-weight linear model below can be swapped
// for a learned model without touching the pipeline.
package credibility

import (
	"math"

	"github.com/claimsentry/backend/internal/config"
	"github.com/claimsentry/backend/internal/core"
)

// Tier is the coarse reputation bucket derived from the continuous score.
type Tier string

const (
	TierUnreliable Tier = "UNRELIABLE"
	TierLow        Tier = "LOW"
	TierMedium     Tier = "MEDIUM"
	TierHigh       Tier = "HIGH"
)

// Score is the reputation assessment of one wallet. Overall is a fixed-weight
// combination of the component sub-scores, each clamped to [0,1] before
// combination.
type Score struct {
	Overall    float64    `json:"overall"` // [0,1]
	Tier       Tier       `json:"tier"`
	Components Components `json:"components"`
}

// Components are the named sub-scores feeding the overall score.
type Components struct {
	Age        float64 `json:"age"`
	Volume     float64 `json:"volume"`
	CrossChain float64 `json:"cross_chain"`
	Identity   float64 `json:"identity"`
	Custody    float64 `json:"custody"`
	Protocol   float64 `json:"protocol"`
}

// Scorer maps a wallet profile to a credibility score.
type Scorer interface {
	Score(profile core.IdentityProfile) Score
}

// LinearScorer is the default fixed-weight linear model. Each component is a
// monotonic, bounded function of its inputs.
type LinearScorer struct {
	cfg config.CredibilityConfig
}

func NewLinearScorer(cfg config.CredibilityConfig) *LinearScorer {
	return &LinearScorer{cfg: cfg}
}

// Score computes the weighted combination of sub-scores and assigns a tier.
func (s *LinearScorer) Score(profile core.IdentityProfile) Score {
	c := Components{
		Age:        s.ageScore(profile.AgeDays),
		Volume:     s.volumeScore(profile.LifetimeVolume),
		CrossChain: s.crossChainScore(profile.ActiveChains, profile.CrossChainVolume),
		Identity:   identityScore(profile),
		Custody:    custodyScore(profile),
		Protocol:   clamp01(profile.ProtocolScore),
	}

	w := s.cfg.Weights
	overall := clamp01(
		w.Age*c.Age +
			w.Volume*c.Volume +
			w.CrossChain*c.CrossChain +
			w.Identity*c.Identity +
			w.Custody*c.Custody +
			w.Protocol*c.Protocol)

	return Score{Overall: overall, Tier: s.TierFor(overall), Components: c}
}

// TierFor maps a continuous score onto the configured tier boundaries.
func (s *LinearScorer) TierFor(overall float64) Tier {
	switch {
	case overall >= s.cfg.TierHigh:
		return TierHigh
	case overall >= s.cfg.TierMedium:
		return TierMedium
	case overall >= s.cfg.TierLow:
		return TierLow
	default:
		return TierUnreliable
	}
}

// DefaultScore is assigned when no profile is supplied. The event is not
// failed for a missing profile; it is degraded to the configured default.
func (s *LinearScorer) DefaultScore() Score {
	overall := clamp01(s.cfg.DefaultScore)
	return Score{Overall: overall, Tier: s.TierFor(overall)}
}

// WeightEvent returns a copy of the event's numeric fields scaled by the
// credibility weight, floored so a zero score never zeroes the event. An
// event the proof layer verified is never weighted below the neutral default
// score: the verified fact outranks a thin identity history. The original
// event is not mutated.
func (s *LinearScorer) WeightEvent(ev core.Event, score Score) core.WeightedEvent {
	weight := math.Max(score.Overall, s.cfg.WeightFloor)
	if ev.ProofChecked {
		weight = math.Max(weight, clamp01(s.cfg.DefaultScore))
	}
	weighted := ev
	weighted.CredWeight = weight
	return core.WeightedEvent{
		Event:            weighted,
		WeightedValueUSD: ev.ValueUSD * weight,
	}
}

// ageScore saturates at the configured cap of days.
func (s *LinearScorer) ageScore(ageDays int) float64 {
	if s.cfg.AgeCapDays <= 0 {
		return 0
	}
	return clamp01(float64(ageDays) / float64(s.cfg.AgeCapDays))
}

// volumeScore is a log-scaled ratio capped at 1.0, so the first $10k counts
// far more than the tenth $100k.
func (s *LinearScorer) volumeScore(volumeUSD float64) float64 {
	if volumeUSD <= 0 || s.cfg.VolumeCapUSD <= 1 {
		return 0
	}
	return clamp01(math.Log10(1+volumeUSD) / math.Log10(1+s.cfg.VolumeCapUSD))
}

// crossChainScore blends the venue footprint with cross-venue volume.
func (s *LinearScorer) crossChainScore(chains int, crossVolume float64) float64 {
	footprint := clamp01(float64(chains) / 4.0)
	volume := 0.0
	if crossVolume > 0 && s.cfg.VolumeCapUSD > 1 {
		volume = clamp01(math.Log10(1+crossVolume) / math.Log10(1+s.cfg.VolumeCapUSD))
	}
	return clamp01(0.5*footprint + 0.5*volume)
}

// identityScore rewards linked identity signals.
func identityScore(p core.IdentityProfile) float64 {
	score := 0.0
	if p.HasENS {
		score += 0.5
	}
	if p.HasSocialProof {
		score += 0.5
	}
	return score
}

// custodyScore rewards custody-hygiene signals.
func custodyScore(p core.IdentityProfile) float64 {
	score := 0.0
	if p.UsesHardwareKey {
		score += 0.5
	}
	if p.UsesMultisig {
		score += 0.5
	}
	return score
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
