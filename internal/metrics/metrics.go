// Package metrics exposes Prometheus instrumentation for the validation
// pipeline and the red-team framework.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the pipeline.
type Metrics struct {
	// Pipeline metrics
	VerdictsTotal      *prometheus.CounterVec
	LayerRejections    *prometheus.CounterVec
	ValidationDuration prometheus.Histogram
	BatchSize          prometheus.Histogram

	// Layer detail
	AnomaliesDetected   *prometheus.CounterVec
	ConsensusOutcomes   *prometheus.CounterVec
	ConsensusConfidence prometheus.Histogram
	CredibilityScore    prometheus.Histogram
	PartyDiscards       *prometheus.CounterVec

	// Red team
	SecurityScore     prometheus.Gauge
	AttacksSuccessful *prometheus.CounterVec
}

// New creates and registers all pipeline metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		VerdictsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentry_verdicts_total",
				Help: "Validation verdicts by overall result",
			},
			[]string{"result"}, // valid, invalid
		),
		LayerRejections: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentry_layer_rejections_total",
				Help: "Events rejected per validation layer",
			},
			[]string{"layer"}, // input, anomaly, consensus, credibility
		),
		ValidationDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sentry_validation_duration_seconds",
				Help:    "End-to-end duration of single-event validation",
				Buckets: prometheus.DefBuckets,
			},
		),
		BatchSize: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sentry_batch_size",
				Help:    "Number of events per batch validation call",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
			},
		),
		AnomaliesDetected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentry_anomalies_detected_total",
				Help: "Anomalies raised by kind and severity",
			},
			[]string{"kind", "severity"},
		),
		ConsensusOutcomes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentry_consensus_outcomes_total",
				Help: "Multi-party consensus outcomes by status",
			},
			[]string{"status"},
		),
		ConsensusConfidence: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sentry_consensus_confidence",
				Help:    "Confidence of CONSENSUS outcomes",
				Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
			},
		),
		CredibilityScore: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sentry_credibility_score",
				Help:    "Overall credibility score per validated event",
				Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
			},
		),
		PartyDiscards: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentry_party_discards_total",
				Help: "Party submissions discarded by reason",
			},
			[]string{"reason"}, // timeout_or_error, short_circuit
		),
		SecurityScore: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "sentry_redteam_security_score",
				Help: "Security score of the most recent red-team assessment (0-100)",
			},
		),
		AttacksSuccessful: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentry_redteam_attacks_successful_total",
				Help: "Red-team attacks the pipeline failed to reject, by severity",
			},
			[]string{"severity"},
		),
	}
}
