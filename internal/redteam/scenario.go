// Package redteam drives adversarial attack scenarios through the validation
// pipeline and scores its resilience.
//
// The framework treats the pipeline as a black box: it synthesizes hostile
// events, windows, and profiles, submits them, and records whether the
// pipeline incorrectly accepted them. It never patches validator thresholds
// itself; remediation is advisory output for a human operator.
package redteam

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/claimsentry/backend/internal/validator"
)

// Severity grades how damaging a successful attack of this kind would be.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Target is the pipeline under attack.
type Target interface {
	Validate(ctx context.Context, req validator.Request) validator.Verdict
}

// Generator synthesizes the adversarial requests for one scenario run. The
// rng is seeded by the framework so runs are reproducible.
type Generator func(rng *rand.Rand) []validator.Request

// Scenario is one named attack: a generator tagged with its intended target
// layer, nominal severity, and suggested mitigations.
type Scenario struct {
	Name        string
	TargetLayer string // input, anomaly, consensus, credibility
	Severity    Severity
	Description string
	Mitigations []string
	Generate    Generator
}

// Outcome records one scenario's result against the pipeline. The attack
// succeeds when the pipeline accepts malicious input above the tolerated
// ceiling.
type Outcome struct {
	Scenario    string   `json:"scenario"`
	TargetLayer string   `json:"target_layer"`
	Severity    Severity `json:"severity"`
	Succeeded   bool     `json:"succeeded"`
	Attempts    int      `json:"attempts"`
	Accepted    int      `json:"accepted"`
	SuccessRate float64  `json:"success_rate"`
	Evidence    string   `json:"evidence"`
	Mitigations []string `json:"mitigations"`
}

// Registry holds the scenario catalogue. New attack kinds register here
// without touching the run loop.
type Registry struct {
	mu        sync.RWMutex
	scenarios map[string]Scenario
}

func NewRegistry() *Registry {
	return &Registry{scenarios: make(map[string]Scenario)}
}

// Register adds a scenario; re-registering a name replaces it.
func (r *Registry) Register(s Scenario) error {
	if s.Name == "" || s.Generate == nil {
		return fmt.Errorf("scenario requires a name and a generator")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scenarios[s.Name] = s
	return nil
}

// List returns all scenarios sorted by name, so sequential runs are
// deterministic and concurrent runs aggregate order-independently.
func (r *Registry) List() []Scenario {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Scenario, 0, len(r.scenarios))
	for _, s := range r.scenarios {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
