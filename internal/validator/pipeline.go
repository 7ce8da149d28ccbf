// Package validator orchestrates the four validation layers into one verdict
// per event.
//
// Each event moves through an explicit state machine: INPUT -> ANOMALY ->
// CONSENSUS -> CREDIBILITY -> COMBINE. INPUT and ANOMALY short-circuit on
// failure; CONSENSUS and CREDIBILITY are always recorded once reached. The
// COMBINE state derives overall validity from the configured policy and
// nothing else.
package validator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/claimsentry/backend/internal/anomaly"
	"github.com/claimsentry/backend/internal/config"
	"github.com/claimsentry/backend/internal/consensus"
	"github.com/claimsentry/backend/internal/credibility"
	"github.com/claimsentry/backend/internal/inputcheck"
	"github.com/claimsentry/backend/internal/metrics"
)

// stage names the states of the per-event machine.
type stage int

const (
	stageInput stage = iota
	stageAnomaly
	stageConsensus
	stageCredibility
	stageCombine
	stageDone
)

// VerdictSink receives every finished verdict (e.g., the event bus feeding
// the downstream incentive ledger and webhook subscribers).
type VerdictSink interface {
	Publish(v Verdict)
}

// Pipeline is the complete validator. All fields are read-only after
// construction, so independent events validate concurrently without locking.
type Pipeline struct {
	input       *inputcheck.Validator
	detector    *anomaly.Detector
	consensus   *consensus.Validator
	scorer      credibility.Scorer
	defaultCred credibility.Score
	weigher     *credibility.LinearScorer

	policy    config.PolicyConfig
	tolerance int // low/medium anomalies allowed before rejection
	workers   int

	sink    VerdictSink
	metrics *metrics.Metrics
}

// New wires the four layers into a pipeline. sink and m may be nil.
func New(
	cfg *config.Config,
	input *inputcheck.Validator,
	detector *anomaly.Detector,
	cons *consensus.Validator,
	scorer credibility.Scorer,
	weigher *credibility.LinearScorer,
	sink VerdictSink,
	m *metrics.Metrics,
) *Pipeline {
	return &Pipeline{
		input:       input,
		detector:    detector,
		consensus:   cons,
		scorer:      scorer,
		defaultCred: weigher.DefaultScore(),
		weigher:     weigher,
		policy:      cfg.Policy,
		tolerance:   cfg.Anomaly.Tolerance,
		workers:     cfg.Batch.Workers,
		sink:        sink,
		metrics:     m,
	}
}

// Validate runs one event through the state machine and returns its verdict.
func (p *Pipeline) Validate(ctx context.Context, req Request) Verdict {
	started := time.Now()
	v := Verdict{
		ID:        uuid.NewString(),
		EventID:   req.Event.ID,
		Wallet:    req.Event.Wallet,
		Policy:    p.policy.Mode,
		Timestamp: started,
	}
	window := req.Window.Snapshot()

	for st := stageInput; st != stageDone; {
		switch st {
		case stageInput:
			res := p.input.Validate(ctx, req.Event)
			v.InputPassed = res.Valid
			v.InputReason = res.Reason
			if !res.Valid {
				p.countRejection("input")
				st = stageCombine // remaining layers stay marked not-run
				continue
			}
			st = stageAnomaly

		case stageAnomaly:
			v.AnomalyRun = true
			v.Anomalies = p.detector.Detect(window)
			v.AnomalyPassed = p.anomaliesTolerable(v.Anomalies)
			p.countAnomalies(v.Anomalies)
			if !v.AnomalyPassed {
				p.countRejection("anomaly")
				st = stageCombine
				continue
			}
			st = stageConsensus

		case stageConsensus:
			v.ConsensusRun = true
			v.Consensus = p.consensus.Validate(ctx, req.Event)
			p.countConsensus(v.Consensus)
			st = stageCredibility

		case stageCredibility:
			v.CredibilityRun = true
			if req.Profile != nil {
				v.ProfileSupplied = true
				v.Credibility = p.scorer.Score(*req.Profile)
			} else {
				// A missing profile degrades to the configured default; it
				// never fails the event on its own.
				v.Credibility = p.defaultCred
			}
			weighted := p.weigher.WeightEvent(req.Event, v.Credibility)
			v.Weighted = &weighted
			if p.metrics != nil {
				p.metrics.CredibilityScore.Observe(v.Credibility.Overall)
			}
			st = stageCombine

		case stageCombine:
			v.OverallValid = p.combine(v)
			st = stageDone
		}
	}

	p.finish(&v, started)
	return v
}

// anomaliesTolerable applies the anomaly gate. A single high-severity finding
// always exceeds tolerance: a flood that trips only the volume-spike check
// must still reject. Lower-severity findings are counted against the
// configured tolerance.
func (p *Pipeline) anomaliesTolerable(found []anomaly.Anomaly) bool {
	for _, a := range found {
		if a.Severity == anomaly.SeverityHigh {
			return false
		}
	}
	return len(found) <= p.tolerance
}

// combine applies the configured policy to the per-layer results.
//
// strict: input, anomaly tolerance, CONSENSUS status, and minimum credibility
// must all hold.
//
// lenient: input must pass and consensus must be CONSENSUS with at least the
// minimum confidence; credibility binds only when a profile was supplied.
func (p *Pipeline) combine(v Verdict) bool {
	if !v.InputPassed {
		return false
	}
	switch p.policy.Mode {
	case "lenient":
		if !v.ConsensusRun || v.Consensus.Status != consensus.StatusConsensus {
			return false
		}
		if v.Consensus.Confidence < p.policy.MinConfidence {
			return false
		}
		if v.ProfileSupplied && v.Credibility.Overall < p.policy.MinCredibility {
			return false
		}
		return true
	default: // strict
		if !v.AnomalyRun || !v.AnomalyPassed {
			return false
		}
		if !v.ConsensusRun || v.Consensus.Status != consensus.StatusConsensus {
			return false
		}
		if !v.CredibilityRun || v.Credibility.Overall < p.policy.MinCredibility {
			return false
		}
		return true
	}
}

func (p *Pipeline) finish(v *Verdict, started time.Time) {
	if p.metrics != nil {
		result := "invalid"
		if v.OverallValid {
			result = "valid"
		}
		p.metrics.VerdictsTotal.WithLabelValues(result).Inc()
		p.metrics.ValidationDuration.Observe(time.Since(started).Seconds())
	}
	if p.sink != nil {
		p.sink.Publish(*v)
	}
}

func (p *Pipeline) countRejection(layer string) {
	if p.metrics != nil {
		p.metrics.LayerRejections.WithLabelValues(layer).Inc()
	}
}

func (p *Pipeline) countAnomalies(found []anomaly.Anomaly) {
	if p.metrics == nil {
		return
	}
	for _, a := range found {
		p.metrics.AnomaliesDetected.WithLabelValues(string(a.Kind), string(a.Severity)).Inc()
	}
}

func (p *Pipeline) countConsensus(o consensus.Outcome) {
	if p.metrics == nil {
		return
	}
	p.metrics.ConsensusOutcomes.WithLabelValues(string(o.Status)).Inc()
	if o.Status == consensus.StatusConsensus {
		p.metrics.ConsensusConfidence.Observe(o.Confidence)
	}
}

// canceledVerdict is returned for events never dispatched because the caller
// canceled the batch. A skipped event degrades toward "not valid".
func (p *Pipeline) canceledVerdict(req Request) Verdict {
	return Verdict{
		ID:          uuid.NewString(),
		EventID:     req.Event.ID,
		Wallet:      req.Event.Wallet,
		InputPassed: false,
		InputReason: "batch_canceled: validation not attempted",
		Policy:      p.policy.Mode,
		Timestamp:   time.Now(),
	}
}
