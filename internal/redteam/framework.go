package redteam

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math/rand"
	"sort"
	"sync"

	"github.com/claimsentry/backend/internal/config"
	"github.com/claimsentry/backend/internal/metrics"
)

// Framework runs the scenario catalogue against a target pipeline and
// synthesizes an assessment report. It holds no mutable validator state and
// never adjusts the target's configuration.
type Framework struct {
	registry *Registry
	target   Target
	ceiling  float64 // tolerated per-scenario acceptance rate
	workers  int
	seed     int64
	metrics  *metrics.Metrics
}

// New builds a framework over a registry and target. m may be nil.
func New(cfg config.RedTeamConfig, registry *Registry, target Target, m *metrics.Metrics) *Framework {
	workers := cfg.Concurrency
	if workers < 1 {
		workers = 1
	}
	return &Framework{
		registry: registry,
		target:   target,
		ceiling:  cfg.AcceptableCeiling,
		workers:  workers,
		seed:     1, // fixed default for reproducible assessments
		metrics:  m,
	}
}

// WithSeed overrides the generator seed for this framework.
func (f *Framework) WithSeed(seed int64) *Framework {
	f.seed = seed
	return f
}

// Run executes every registered scenario and returns the assessment report.
// Scenarios run sequentially by default (deterministic reporting); with
// Concurrency > 1 they run in parallel and the aggregation is
// order-independent because outcomes are keyed and sorted by scenario name.
func (f *Framework) Run(ctx context.Context) Report {
	scenarios := f.registry.List()
	outcomes := make([]Outcome, len(scenarios))

	if f.workers == 1 {
		for i, s := range scenarios {
			outcomes[i] = f.runScenario(ctx, s)
		}
	} else {
		sem := make(chan struct{}, f.workers)
		var wg sync.WaitGroup
		for i, s := range scenarios {
			wg.Add(1)
			sem <- struct{}{}
			go func(i int, s Scenario) {
				defer wg.Done()
				defer func() { <-sem }()
				outcomes[i] = f.runScenario(ctx, s)
			}(i, s)
		}
		wg.Wait()
	}

	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Scenario < outcomes[j].Scenario })
	report := BuildReport(outcomes, f.ceiling)

	if f.metrics != nil {
		f.metrics.SecurityScore.Set(report.SecurityScore)
		for _, o := range outcomes {
			if o.Succeeded {
				f.metrics.AttacksSuccessful.WithLabelValues(string(o.Severity)).Inc()
			}
		}
	}
	return report
}

// runScenario generates the scenario's adversarial inputs and submits each to
// the target. The attack succeeds when the acceptance rate clears the
// tolerated ceiling.
func (f *Framework) runScenario(ctx context.Context, s Scenario) Outcome {
	// Per-scenario rng derived from the run seed and scenario name, so adding
	// a scenario never perturbs the others.
	rng := rand.New(rand.NewSource(f.seed ^ int64(hashName(s.Name))))
	reqs := s.Generate(rng)

	accepted := 0
	for _, req := range reqs {
		verdict := f.target.Validate(ctx, req)
		if verdict.OverallValid {
			accepted++
		}
	}

	rate := 0.0
	if len(reqs) > 0 {
		rate = float64(accepted) / float64(len(reqs))
	}
	succeeded := rate > f.ceiling

	slog.Info("red-team scenario finished",
		"scenario", s.Name,
		"target_layer", s.TargetLayer,
		"attempts", len(reqs),
		"accepted", accepted,
		"succeeded", succeeded)

	return Outcome{
		Scenario:    s.Name,
		TargetLayer: s.TargetLayer,
		Severity:    s.Severity,
		Succeeded:   succeeded,
		Attempts:    len(reqs),
		Accepted:    accepted,
		SuccessRate: rate,
		Evidence: fmt.Sprintf("%d of %d adversarial events accepted (%.1f%%, ceiling %.1f%%): %s",
			accepted, len(reqs), rate*100, f.ceiling*100, s.Description),
		Mitigations: s.Mitigations,
	}
}

func hashName(name string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(name))
	return h.Sum32()
}
