package redteam

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claimsentry/backend/internal/anomaly"
	"github.com/claimsentry/backend/internal/config"
	"github.com/claimsentry/backend/internal/consensus"
	"github.com/claimsentry/backend/internal/credibility"
	"github.com/claimsentry/backend/internal/inputcheck"
	"github.com/claimsentry/backend/internal/validator"
)

// hardenedPipeline assembles a strict pipeline over empty in-memory stores:
// no wallet has multi-venue history and three honest observers corroborate
// only realistic values.
func hardenedPipeline(t *testing.T) *validator.Pipeline {
	t.Helper()
	cfg := config.Default()

	input, err := inputcheck.New(cfg.Input, inputcheck.NewMemoryBlocklist(nil), inputcheck.NewMemoryVenueOracle())
	require.NoError(t, err)

	parties := []consensus.Party{
		&consensus.StaticParty{PartyName: "observer-a", Value: 1000},
		&consensus.StaticParty{PartyName: "observer-b", Value: 1010},
		&consensus.StaticParty{PartyName: "observer-c", Value: 995},
	}
	cons := consensus.New(cfg.Consensus, parties)
	scorer := credibility.NewLinearScorer(cfg.Credibility)

	return validator.New(cfg, input, anomaly.New(cfg.Anomaly), cons, scorer, scorer, nil, nil)
}

func TestRegistry_ListIsSortedAndComplete(t *testing.T) {
	reg := NewRegistry()
	DefaultCatalog(reg)

	scenarios := reg.List()
	require.Len(t, scenarios, 8)
	for i := 1; i < len(scenarios); i++ {
		assert.Less(t, scenarios[i-1].Name, scenarios[i].Name, "List must sort by name")
	}
}

func TestRegistry_RejectsIncompleteScenario(t *testing.T) {
	reg := NewRegistry()
	assert.Error(t, reg.Register(Scenario{Name: "no-generator"}))
	assert.Error(t, reg.Register(Scenario{Generate: func(*rand.Rand) []validator.Request { return nil }}))
}

func TestRun_HardenedPipelineBlocksCatalogue(t *testing.T) {
	reg := NewRegistry()
	DefaultCatalog(reg)
	f := New(config.Default().RedTeam, reg, hardenedPipeline(t), nil)

	report := f.Run(context.Background())

	assert.Equal(t, 8, report.TotalAttacks)
	assert.Zero(t, report.SuccessfulAttacks, "a hardened pipeline must block the full catalogue")
	assert.Equal(t, 100.0, report.SecurityScore)
	assert.Empty(t, report.Recommendations)
	require.Len(t, report.Outcomes, 8)
	for _, o := range report.Outcomes {
		assert.False(t, o.Succeeded, "scenario %s cleared the ceiling: %s", o.Scenario, o.Evidence)
		assert.Greater(t, o.Attempts, 0)
	}
}

func TestRun_IsDeterministicForFixedSeed(t *testing.T) {
	target := hardenedPipeline(t)

	run := func() Report {
		reg := NewRegistry()
		DefaultCatalog(reg)
		return New(config.Default().RedTeam, reg, target, nil).WithSeed(42).Run(context.Background())
	}

	a, b := run(), run()
	require.Len(t, b.Outcomes, len(a.Outcomes))
	for i := range a.Outcomes {
		assert.Equal(t, a.Outcomes[i].Accepted, b.Outcomes[i].Accepted,
			"scenario %s must generate identical inputs for the same seed", a.Outcomes[i].Scenario)
	}
}

// alwaysAccept models a broken pipeline that validates everything.
type alwaysAccept struct{}

func (alwaysAccept) Validate(_ context.Context, req validator.Request) validator.Verdict {
	return validator.Verdict{EventID: req.Event.ID, OverallValid: true}
}

func TestRun_BrokenPipelineScoresZero(t *testing.T) {
	reg := NewRegistry()
	DefaultCatalog(reg)
	f := New(config.Default().RedTeam, reg, alwaysAccept{}, nil)

	report := f.Run(context.Background())
	assert.Equal(t, 8, report.SuccessfulAttacks)
	assert.Zero(t, report.SecurityScore)
	assert.NotEmpty(t, report.Recommendations)
	assert.NotEmpty(t, report.NextSteps)
}

func TestBuildReport_ScoreFormula(t *testing.T) {
	outcomes := []Outcome{
		{Scenario: "a", Severity: SeverityHigh, Succeeded: true, Mitigations: []string{"fix a"}},
		{Scenario: "b", Severity: SeverityLow, Succeeded: false},
		{Scenario: "c", Severity: SeverityLow, Succeeded: false},
		{Scenario: "d", Severity: SeverityCritical, Succeeded: true, Mitigations: []string{"fix d"}},
	}

	report := BuildReport(outcomes, 0.05)
	assert.Equal(t, 4, report.TotalAttacks)
	assert.Equal(t, 2, report.SuccessfulAttacks)
	assert.Equal(t, 50.0, report.SecurityScore)
	assert.Equal(t, 1, report.BySeverity[string(SeverityHigh)])
	assert.Equal(t, 1, report.BySeverity[string(SeverityCritical)])
}

func TestBuildReport_EmptyScoresPerfect(t *testing.T) {
	report := BuildReport(nil, 0.05)
	assert.Equal(t, 100.0, report.SecurityScore)
	assert.Zero(t, report.TotalAttacks)
}

func TestBuildReport_ScoreDecreasesMonotonically(t *testing.T) {
	outcomes := make([]Outcome, 10)
	prev := 101.0
	for successes := 0; successes <= 10; successes++ {
		for i := range outcomes {
			outcomes[i] = Outcome{Scenario: "s", Severity: SeverityLow, Succeeded: i < successes}
		}
		score := BuildReport(outcomes, 0.05).SecurityScore
		assert.Less(t, score, prev, "score must strictly decrease as successes grow")
		prev = score
	}
}

func TestBuildRecommendations_DedupesAndPrioritizes(t *testing.T) {
	outcomes := []Outcome{
		{Scenario: "a", Severity: SeverityHigh, Succeeded: true, Mitigations: []string{"shared fix"}},
		{Scenario: "b", Severity: SeverityHigh, Succeeded: true, Mitigations: []string{"shared fix"}},
		{Scenario: "c", Severity: SeverityLow, Succeeded: true, Mitigations: []string{"minor fix"}},
		{Scenario: "d", Severity: SeverityLow, Succeeded: false, Mitigations: []string{"never shown"}},
	}

	recs := buildRecommendations(outcomes)
	require.Len(t, recs, 2, "same severity and mitigation must merge")

	assert.Equal(t, PriorityImmediate, recs[0].Priority)
	assert.Equal(t, []string{"a", "b"}, recs[0].Scenarios)
	assert.Equal(t, PriorityScheduled, recs[1].Priority)
}
