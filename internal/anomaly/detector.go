// Package anomaly implements the second validation layer: statistical checks
// against a window of recent events.
//
// The detector is pure and stateless per call. Five independent checks each
// produce zero or one Anomaly; their outputs are concatenated in check order
// (volume spike, pattern repetition, cross-venue decorrelation, timing
// regularity, impossible sequence). The window is never mutated.
package anomaly

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/claimsentry/backend/internal/config"
	"github.com/claimsentry/backend/internal/core"
)

// Kind identifies which check raised the anomaly.
type Kind string

const (
	KindVolumeSpike      Kind = "volume_spike"
	KindPatternRepeat    Kind = "pattern_repetition"
	KindDecorrelation    Kind = "cross_venue_decorrelation"
	KindTimingRegularity Kind = "timing_regularity"
	KindImpossibleSeq    Kind = "impossible_sequence"
)

// Severity grades how strongly an anomaly should weigh against the window.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Anomaly is a transient detection record: never persisted by this layer.
type Anomaly struct {
	Kind        Kind     `json:"kind"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Observed    float64  `json:"observed"`
	Threshold   float64  `json:"threshold"`
}

// Detector runs the five statistical checks with configured thresholds.
type Detector struct {
	cfg config.AnomalyConfig
}

func New(cfg config.AnomalyConfig) *Detector {
	return &Detector{cfg: cfg}
}

// Detect runs all checks against the window snapshot and concatenates the
// results in check order.
func (d *Detector) Detect(window core.Window) []Anomaly {
	var found []Anomaly
	if a := d.checkVolumeSpike(window); a != nil {
		found = append(found, *a)
	}
	if a := d.checkPatternRepetition(window); a != nil {
		found = append(found, *a)
	}
	if a := d.checkCrossVenueDecorrelation(window); a != nil {
		found = append(found, *a)
	}
	if a := d.checkTimingRegularity(window); a != nil {
		found = append(found, *a)
	}
	if a := d.checkImpossibleSequence(window); a != nil {
		found = append(found, *a)
	}
	return found
}

// checkVolumeSpike compares the event count in the trailing hour to the mean
// hourly rate over the trailing 24 hours, both measured from the newest event
// in the window.
func (d *Detector) checkVolumeSpike(window core.Window) *Anomaly {
	if len(window) < 2 {
		return nil
	}
	ref := window[len(window)-1].Timestamp

	lastHour := 0
	last24h := 0
	for _, ev := range window {
		age := ref.Sub(ev.Timestamp)
		if age < 0 || age > 24*time.Hour {
			continue
		}
		last24h++
		if age <= time.Hour {
			lastHour++
		}
	}
	if last24h == 0 {
		return nil
	}

	meanHourly := float64(last24h) / 24.0
	if meanHourly == 0 {
		return nil
	}
	ratio := float64(lastHour) / meanHourly
	if ratio <= d.cfg.SpikeMultiplier {
		return nil
	}
	return &Anomaly{
		Kind:     KindVolumeSpike,
		Severity: SeverityHigh,
		Description: fmt.Sprintf("%d events in the trailing hour vs %.2f/h 24h baseline (%.1fx)",
			lastHour, meanHourly, ratio),
		Observed:  ratio,
		Threshold: d.cfg.SpikeMultiplier,
	}
}

// checkPatternRepetition flags a window dominated by a single behavioral
// pattern tag. Untagged events carry no pattern signal and are not counted,
// so a mostly-untagged window cannot flag on the absence of tags.
func (d *Detector) checkPatternRepetition(window core.Window) *Anomaly {
	if len(window) < 2 {
		return nil
	}
	counts := make(map[string]int)
	for _, ev := range window {
		if ev.PatternTag == "" {
			continue
		}
		counts[ev.PatternTag]++
	}
	top := ""
	topCount := 0
	for tag, n := range counts {
		if n > topCount {
			top, topCount = tag, n
		}
	}
	fraction := float64(topCount) / float64(len(window))
	if fraction <= d.cfg.RepetitionFraction {
		return nil
	}
	return &Anomaly{
		Kind:     KindPatternRepeat,
		Severity: SeverityMedium,
		Description: fmt.Sprintf("pattern %q accounts for %.0f%% of the window (%d/%d events)",
			top, fraction*100, topCount, len(window)),
		Observed:  fraction,
		Threshold: d.cfg.RepetitionFraction,
	}
}

// checkCrossVenueDecorrelation partitions the window by venue and compares
// hourly activity profiles pairwise. Real market-wide liquidation cascades
// correlate across venues; fabricated single-operator flows do not.
func (d *Detector) checkCrossVenueDecorrelation(window core.Window) *Anomaly {
	if len(window) < 2 {
		return nil
	}
	byVenue := make(map[string]core.Window)
	for _, ev := range window {
		byVenue[ev.Chain] = append(byVenue[ev.Chain], ev)
	}
	if len(byVenue) < 2 {
		return nil
	}

	ref := window[len(window)-1].Timestamp
	venues := make([]string, 0, len(byVenue))
	for v := range byVenue {
		venues = append(venues, v)
	}
	sort.Strings(venues)

	var sum float64
	pairs := 0
	for i := 0; i < len(venues); i++ {
		for j := i + 1; j < len(venues); j++ {
			a := hourlyProfile(byVenue[venues[i]], ref)
			b := hourlyProfile(byVenue[venues[j]], ref)
			sum += pearson(a, b)
			pairs++
		}
	}
	mean := sum / float64(pairs)
	if mean >= d.cfg.CorrelationFloor {
		return nil
	}
	return &Anomaly{
		Kind:     KindDecorrelation,
		Severity: SeverityHigh,
		Description: fmt.Sprintf("mean pairwise venue correlation %.3f below floor %.3f across %d venues",
			mean, d.cfg.CorrelationFloor, len(venues)),
		Observed:  mean,
		Threshold: d.cfg.CorrelationFloor,
	}
}

// checkTimingRegularity flags suspiciously mechanical inter-event timing.
// The dispersion measure is variance over mean of the deltas; organic human
// activity is bursty, bots tick.
func (d *Detector) checkTimingRegularity(window core.Window) *Anomaly {
	if len(window) < 3 {
		return nil
	}
	deltas := make([]float64, 0, len(window)-1)
	for i := 1; i < len(window); i++ {
		deltas = append(deltas, window[i].Timestamp.Sub(window[i-1].Timestamp).Seconds())
	}

	mean := 0.0
	for _, d := range deltas {
		mean += d
	}
	mean /= float64(len(deltas))
	if mean <= 0 {
		return nil
	}

	variance := 0.0
	for _, d := range deltas {
		variance += (d - mean) * (d - mean)
	}
	variance /= float64(len(deltas))

	cv := variance / mean
	if cv >= d.cfg.RegularityCeiling {
		return nil
	}
	return &Anomaly{
		Kind:     KindTimingRegularity,
		Severity: SeverityMedium,
		Description: fmt.Sprintf("inter-event timing dispersion %.4f below ceiling %.4f over %d deltas",
			cv, d.cfg.RegularityCeiling, len(deltas)),
		Observed:  cv,
		Threshold: d.cfg.RegularityCeiling,
	}
}

// checkImpossibleSequence flags adjacent same-wallet events whose value jumps
// more than the configured multiplier within the configured interval.
func (d *Detector) checkImpossibleSequence(window core.Window) *Anomaly {
	lastByWallet := make(map[string]core.Event)
	maxInterval := time.Duration(d.cfg.SequenceIntervalMs) * time.Millisecond

	for _, ev := range window {
		prev, seen := lastByWallet[ev.Wallet]
		lastByWallet[ev.Wallet] = ev
		if !seen || prev.ValueUSD <= 0 {
			continue
		}
		gap := ev.Timestamp.Sub(prev.Timestamp)
		ratio := ev.ValueUSD / prev.ValueUSD
		if gap < maxInterval && ratio > d.cfg.SequenceMultiplier {
			return &Anomaly{
				Kind:     KindImpossibleSeq,
				Severity: SeverityHigh,
				Description: fmt.Sprintf("wallet %s jumped $%.2f -> $%.2f (%.1fx) within %s",
					ev.Wallet, prev.ValueUSD, ev.ValueUSD, ratio, gap.Round(time.Millisecond)),
				Observed:  ratio,
				Threshold: d.cfg.SequenceMultiplier,
			}
		}
	}
	return nil
}

// hourlyProfile buckets a venue's events into 24 hourly counts ending at ref.
func hourlyProfile(events core.Window, ref time.Time) []float64 {
	buckets := make([]float64, 24)
	for _, ev := range events {
		age := ref.Sub(ev.Timestamp)
		if age < 0 || age >= 24*time.Hour {
			continue
		}
		buckets[int(age.Hours())]++
	}
	return buckets
}

// pearson computes the correlation coefficient between two equal-length
// series. Flat series have no defined correlation and score 0.
func pearson(a, b []float64) float64 {
	n := float64(len(a))
	var sumA, sumB float64
	for i := range a {
		sumA += a[i]
		sumB += b[i]
	}
	meanA, meanB := sumA/n, sumB/n

	var cov, varA, varB float64
	for i := range a {
		da, db := a[i]-meanA, b[i]-meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0
	}
	return cov / math.Sqrt(varA*varB)
}
