// Package consensus implements the third validation layer: multi-party
// agreement on an event's reported value.
//
// Party queries fan out concurrently, each bounded by a per-party timeout, so
// one slow or unresponsive party cannot stall the round. Timeouts and party
// errors are discards, not retries; an unhandled fault (panic) surfaces as an
// ERROR outcome. Given the same set of submissions the outcome is
// reproducible and independent of arrival order.
package consensus

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/claimsentry/backend/internal/circuitbreaker"
	"github.com/claimsentry/backend/internal/config"
	"github.com/claimsentry/backend/internal/core"
	"github.com/claimsentry/backend/internal/metrics"
)

// Validator runs consensus rounds against a fixed set of parties.
type Validator struct {
	parties   []Party
	breakers  []*circuitbreaker.Breaker
	quorum    int
	tolerance float64
	timeout   time.Duration
	metrics   *metrics.Metrics

	mu    sync.Mutex
	stats map[string]*PartyStats
}

// PartyStats tracks per-party health across rounds.
type PartyStats struct {
	Submissions   int `json:"submissions"`
	Discards      int `json:"discards"`
	ShortCircuits int `json:"short_circuits"`
}

// New builds a validator for the configured parties. Each party gets its own
// circuit breaker so a persistently failing endpoint is short-circuited to an
// immediate discard.
func New(cfg config.ConsensusConfig, parties []Party) *Validator {
	breakers := make([]*circuitbreaker.Breaker, len(parties))
	stats := make(map[string]*PartyStats, len(parties))
	for i, p := range parties {
		breakers[i] = circuitbreaker.New(circuitbreaker.DefaultConfig(p.Name()))
		stats[p.Name()] = &PartyStats{}
	}
	return &Validator{
		parties:   parties,
		breakers:  breakers,
		quorum:    cfg.Quorum,
		tolerance: cfg.Tolerance,
		timeout:   time.Duration(cfg.PartyTimeoutMs) * time.Millisecond,
		stats:     stats,
	}
}

// WithMetrics attaches Prometheus discard accounting. m may be nil.
func (v *Validator) WithMetrics(m *metrics.Metrics) *Validator {
	v.metrics = m
	return v
}

type partyResult struct {
	party   string
	value   float64
	err     error
	skipped bool // breaker open, no call attempted
	fatal   bool // panic inside the party call
}

// Validate gathers observations from all parties and computes the outcome.
func (v *Validator) Validate(ctx context.Context, ev core.Event) Outcome {
	results := make([]partyResult, len(v.parties))
	var wg sync.WaitGroup

	for i, p := range v.parties {
		if err := v.breakers[i].Allow(); err != nil {
			results[i] = partyResult{party: p.Name(), err: err, skipped: true}
			continue
		}

		wg.Add(1)
		go func(i int, p Party) {
			defer wg.Done()
			res := v.observe(ctx, p, ev)
			v.breakers[i].Record(res.err == nil && !res.fatal)
			results[i] = res
		}(i, p)
	}
	wg.Wait()

	submissions := make([]float64, 0, len(results))
	discarded := 0
	fatal := false
	for _, res := range results {
		v.recordStats(res)
		switch {
		case res.fatal:
			fatal = true
		case res.err != nil:
			discarded++
		default:
			submissions = append(submissions, res.value)
		}
	}

	if fatal {
		return Outcome{Status: StatusError, Confidence: 0, Submissions: len(submissions), Discarded: discarded}
	}

	outcome := Decide(submissions, v.quorum, v.tolerance)
	outcome.Discarded = discarded
	return outcome
}

// observe runs one party call under the per-party deadline, containing any
// panic from the collaborator.
func (v *Validator) observe(ctx context.Context, p Party, ev core.Event) (res partyResult) {
	res.party = p.Name()
	defer func() {
		if r := recover(); r != nil {
			res.fatal = true
		}
	}()

	pctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	res.value, res.err = p.Observe(pctx, ev)
	return res
}

// Decide computes the consensus outcome over a set of usable submissions.
// Exported separately so the decision rule can be verified independent of the
// gathering machinery; it sorts a copy, so permuting the input changes nothing.
func Decide(submissions []float64, quorum int, tolerance float64) Outcome {
	if len(submissions) < quorum {
		return Outcome{Status: StatusPending, Confidence: 0, Submissions: len(submissions)}
	}

	sorted := append([]float64(nil), submissions...)
	sort.Float64s(sorted)
	median := medianOf(sorted)

	var deviation float64
	for _, s := range sorted {
		deviation += math.Abs(s - median)
	}
	deviation /= float64(len(sorted))

	if deviation > tolerance {
		return Outcome{
			Status:      StatusDisagreement,
			Confidence:  0,
			Submissions: len(sorted),
			Deviation:   deviation,
		}
	}

	confidence := 1 - deviation/tolerance
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return Outcome{
		Status:         StatusConsensus,
		ConsensusValue: median,
		Confidence:     confidence,
		Submissions:    len(sorted),
		Deviation:      deviation,
	}
}

func medianOf(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func (v *Validator) recordStats(res partyResult) {
	v.mu.Lock()
	defer v.mu.Unlock()
	st, ok := v.stats[res.party]
	if !ok {
		st = &PartyStats{}
		v.stats[res.party] = st
	}
	switch {
	case res.skipped:
		st.ShortCircuits++
		v.countDiscard("short_circuit")
	case res.err != nil || res.fatal:
		st.Discards++
		v.countDiscard("timeout_or_error")
	default:
		st.Submissions++
	}
}

func (v *Validator) countDiscard(reason string) {
	if v.metrics != nil {
		v.metrics.PartyDiscards.WithLabelValues(reason).Inc()
	}
}

// Stats returns a copy of per-party health counters.
func (v *Validator) Stats() map[string]PartyStats {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make(map[string]PartyStats, len(v.stats))
	for name, st := range v.stats {
		out[name] = *st
	}
	return out
}
