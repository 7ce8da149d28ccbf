package redteam

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Priority buckets for remediation guidance.
const (
	PriorityImmediate = "IMMEDIATE"
	PriorityScheduled = "SCHEDULED"
)

// Recommendation is one prioritized remediation item, deduplicated across
// attacks in the same severity bucket.
type Recommendation struct {
	Priority   string   `json:"priority"`
	Severity   Severity `json:"severity"`
	Summary    string   `json:"summary"`
	Mitigation string   `json:"mitigation"`
	Scenarios  []string `json:"scenarios"`
}

// Report is the immutable aggregate of one red-team run, handed to an
// external reporting collaborator for persistence and display.
type Report struct {
	ID                string           `json:"id"`
	GeneratedAt       time.Time        `json:"generated_at"`
	SecurityScore     float64          `json:"security_score"` // 0-100
	TotalAttacks      int              `json:"total_attacks"`
	SuccessfulAttacks int              `json:"successful_attacks"`
	BySeverity        map[string]int   `json:"successful_by_severity"`
	Outcomes          []Outcome        `json:"outcomes"`
	Recommendations   []Recommendation `json:"recommendations"`
	NextSteps         []string         `json:"next_steps"`
	AcceptableCeiling float64          `json:"acceptable_ceiling"`
}

// BuildReport scores a set of scenario outcomes. The security score is
// 100 x (1 - successful/total), never negative, so it decreases
// monotonically as more scenarios succeed.
func BuildReport(outcomes []Outcome, ceiling float64) Report {
	report := Report{
		ID:                uuid.NewString(),
		GeneratedAt:       time.Now(),
		TotalAttacks:      len(outcomes),
		BySeverity:        make(map[string]int),
		Outcomes:          outcomes,
		AcceptableCeiling: ceiling,
	}

	for _, o := range outcomes {
		if o.Succeeded {
			report.SuccessfulAttacks++
			report.BySeverity[string(o.Severity)]++
		}
	}

	if report.TotalAttacks > 0 {
		score := 100 * (1 - float64(report.SuccessfulAttacks)/float64(report.TotalAttacks))
		if score < 0 {
			score = 0
		}
		report.SecurityScore = score
	} else {
		report.SecurityScore = 100
	}

	report.Recommendations = buildRecommendations(outcomes)
	report.NextSteps = buildNextSteps(report)
	return report
}

// buildRecommendations groups successful attacks by severity bucket and
// deduplicates mitigation text within each bucket.
func buildRecommendations(outcomes []Outcome) []Recommendation {
	type bucketKey struct {
		severity   Severity
		mitigation string
	}
	buckets := make(map[bucketKey][]string)

	for _, o := range outcomes {
		if !o.Succeeded {
			continue
		}
		for _, m := range o.Mitigations {
			key := bucketKey{severity: o.Severity, mitigation: m}
			buckets[key] = append(buckets[key], o.Scenario)
		}
	}

	recs := make([]Recommendation, 0, len(buckets))
	for key, scenarios := range buckets {
		sort.Strings(scenarios)
		priority := PriorityScheduled
		if key.severity == SeverityCritical || key.severity == SeverityHigh {
			priority = PriorityImmediate
		}
		recs = append(recs, Recommendation{
			Priority: priority,
			Severity: key.severity,
			Summary: fmt.Sprintf("%d %s-severity attack(s) bypassed the pipeline",
				len(scenarios), key.severity),
			Mitigation: key.mitigation,
			Scenarios:  scenarios,
		})
	}

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Priority != recs[j].Priority {
			return recs[i].Priority == PriorityImmediate
		}
		if recs[i].Severity != recs[j].Severity {
			return severityRank(recs[i].Severity) > severityRank(recs[j].Severity)
		}
		return recs[i].Mitigation < recs[j].Mitigation
	})
	return recs
}

func buildNextSteps(r Report) []string {
	if r.SuccessfulAttacks == 0 {
		return []string{
			"no attack cleared the acceptance ceiling; re-run after the next threshold change",
			"schedule the next assessment within 30 days",
		}
	}
	steps := []string{
		fmt.Sprintf("triage the %d successful attack(s) with the on-call validation owner", r.SuccessfulAttacks),
	}
	if r.BySeverity[string(SeverityCritical)] > 0 || r.BySeverity[string(SeverityHigh)] > 0 {
		steps = append(steps, "apply IMMEDIATE recommendations before the next incentive distribution")
	}
	steps = append(steps,
		"re-run the assessment after each remediation to confirm the score improves",
	)
	return steps
}

func severityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}
