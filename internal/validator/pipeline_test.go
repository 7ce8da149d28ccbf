package validator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claimsentry/backend/internal/anomaly"
	"github.com/claimsentry/backend/internal/config"
	"github.com/claimsentry/backend/internal/consensus"
	"github.com/claimsentry/backend/internal/core"
	"github.com/claimsentry/backend/internal/credibility"
	"github.com/claimsentry/backend/internal/inputcheck"
)

const testWallet = "0x1a2b3c4d5e6f7a8b9c0d1e2f3a4b5c6d7e8f9a0b"

// recordingSink captures published verdicts.
type recordingSink struct {
	mu       sync.Mutex
	verdicts []Verdict
}

func (s *recordingSink) Publish(v Verdict) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verdicts = append(s.verdicts, v)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.verdicts)
}

func newTestPipeline(t *testing.T, cfg *config.Config) (*Pipeline, *recordingSink) {
	t.Helper()

	blocked := inputcheck.NewMemoryBlocklist(nil)
	venues := inputcheck.NewMemoryVenueOracle()
	venues.RecordActivity(context.Background(), testWallet, "arbitrum")
	venues.RecordActivity(context.Background(), testWallet, "base")

	input, err := inputcheck.New(cfg.Input, blocked, venues)
	require.NoError(t, err)

	parties := []consensus.Party{
		&consensus.StaticParty{PartyName: "a", Value: 1000},
		&consensus.StaticParty{PartyName: "b", Value: 1010},
		&consensus.StaticParty{PartyName: "c", Value: 995},
	}
	cons := consensus.New(cfg.Consensus, parties)
	scorer := credibility.NewLinearScorer(cfg.Credibility)

	sink := &recordingSink{}
	return New(cfg, input, anomaly.New(cfg.Anomaly), cons, scorer, scorer, sink, nil), sink
}

func validRequest() Request {
	return Request{
		Event: core.Event{
			ID:         "evt-1",
			Wallet:     testWallet,
			ValueUSD:   1000,
			WalletAge:  120,
			TradeCount: 50,
			Timestamp:  time.Now(),
			Chain:      "arbitrum",
			Asset:      "ETH",
		},
		Profile: &core.IdentityProfile{
			Wallet:          testWallet,
			AgeDays:         400,
			LifetimeVolume:  250_000,
			ActiveChains:    3,
			HasENS:          true,
			HasSocialProof:  true,
			UsesHardwareKey: true,
			ProtocolScore:   0.8,
		},
	}
}

func TestValidate_GoodEventPassesStrict(t *testing.T) {
	p, sink := newTestPipeline(t, config.Default())

	v := p.Validate(context.Background(), validRequest())

	assert.True(t, v.InputPassed)
	assert.True(t, v.AnomalyRun)
	assert.True(t, v.AnomalyPassed)
	require.True(t, v.ConsensusRun)
	assert.Equal(t, consensus.StatusConsensus, v.Consensus.Status)
	require.True(t, v.CredibilityRun)
	assert.True(t, v.ProfileSupplied)
	assert.GreaterOrEqual(t, v.Credibility.Overall, 0.4)
	assert.True(t, v.OverallValid)
	assert.Equal(t, "strict", v.Policy)
	require.NotNil(t, v.Weighted)
	assert.InDelta(t, 1000*v.Credibility.Overall, v.Weighted.WeightedValueUSD, 1e-9)

	assert.Equal(t, 1, sink.count(), "every verdict is published exactly once")
}

func TestValidate_InputRejectionShortCircuits(t *testing.T) {
	p, _ := newTestPipeline(t, config.Default())

	req := validRequest()
	req.Event.WalletAge = 3

	v := p.Validate(context.Background(), req)
	assert.False(t, v.InputPassed)
	assert.True(t, strings.HasPrefix(v.InputReason, inputcheck.ReasonWalletAge))
	assert.False(t, v.AnomalyRun, "later layers never run after an input rejection")
	assert.False(t, v.ConsensusRun)
	assert.False(t, v.CredibilityRun)
	assert.False(t, v.OverallValid)
}

// coordinatedWindow trips volume spike, pattern repetition, and timing
// regularity at once: three anomalies, above the default tolerance of two.
func coordinatedWindow(ref time.Time) core.Window {
	window := make(core.Window, 0, 100)
	for i := 0; i < 100; i++ {
		window = append(window, core.Event{
			ID:         fmt.Sprintf("tick-%03d", i),
			Wallet:     fmt.Sprintf("0x%040d", i),
			ValueUSD:   900,
			Timestamp:  ref.Add(time.Duration(i-99) * 30 * time.Second),
			Chain:      "arbitrum",
			Asset:      "ETH",
			PatternTag: "long-liq-cascade",
		})
	}
	return window
}

func TestValidate_AnomalousWindowRejects(t *testing.T) {
	p, _ := newTestPipeline(t, config.Default())

	req := validRequest()
	req.Window = coordinatedWindow(req.Event.Timestamp)

	v := p.Validate(context.Background(), req)
	assert.True(t, v.InputPassed)
	assert.True(t, v.AnomalyRun)
	assert.False(t, v.AnomalyPassed)
	assert.Greater(t, len(v.Anomalies), 2)
	assert.False(t, v.ConsensusRun, "consensus is skipped after an anomaly rejection")
	assert.False(t, v.OverallValid)
}

// floodWindow models a reporting flood: an untagged ~2/hour organic baseline
// across the trailing day, then fifty events crammed into the final hour.
// Only the volume-spike check fires for it.
func floodWindow(ref time.Time) core.Window {
	var window core.Window
	n := 0
	add := func(ts time.Time) {
		window = append(window, core.Event{
			ID:        fmt.Sprintf("flood-%03d", n),
			Wallet:    fmt.Sprintf("0x%040d", n),
			ValueUSD:  1200,
			Timestamp: ts,
			Chain:     "arbitrum",
			Asset:     "ETH",
		})
		n++
	}
	for h := 24; h >= 2; h-- {
		base := ref.Add(-time.Duration(h) * time.Hour)
		add(base.Add(time.Duration(h*17%25) * time.Minute))
		add(base.Add(time.Duration(30+h*11%25) * time.Minute))
	}
	for i := 0; i < 50; i++ {
		add(ref.Add(-time.Hour + time.Duration(i)*67*time.Second + time.Duration(i*i%29)*time.Second))
	}
	return window
}

func TestValidate_VolumeFloodRejectsOnSingleHighAnomaly(t *testing.T) {
	p, _ := newTestPipeline(t, config.Default())

	req := validRequest()
	req.Window = floodWindow(req.Event.Timestamp)

	v := p.Validate(context.Background(), req)
	assert.True(t, v.InputPassed)
	assert.True(t, v.AnomalyRun)

	require.Len(t, v.Anomalies, 1, "only the spike fires for an untagged flood: %+v", v.Anomalies)
	assert.Equal(t, anomaly.KindVolumeSpike, v.Anomalies[0].Kind)
	assert.Equal(t, anomaly.SeverityHigh, v.Anomalies[0].Severity)

	assert.False(t, v.AnomalyPassed, "one high-severity anomaly exceeds any tolerance")
	assert.False(t, v.ConsensusRun)
	assert.False(t, v.OverallValid)
}

func TestValidate_MediumAnomaliesCountAgainstTolerance(t *testing.T) {
	p, _ := newTestPipeline(t, config.Default())

	// Evenly spaced same-tag events: timing regularity plus pattern
	// repetition, both medium, no spike. Two findings sit at the tolerance.
	window := make(core.Window, 0, 96)
	ref := time.Now()
	for i := 0; i < 96; i++ {
		window = append(window, core.Event{
			ID:         fmt.Sprintf("tick-%03d", i),
			Wallet:     fmt.Sprintf("0x%040d", i),
			ValueUSD:   900,
			Timestamp:  ref.Add(time.Duration(i-95) * 15 * time.Minute),
			Chain:      "arbitrum",
			Asset:      "ETH",
			PatternTag: "long-liq-cascade",
		})
	}

	req := validRequest()
	req.Window = window

	v := p.Validate(context.Background(), req)
	require.Len(t, v.Anomalies, 2, "got %+v", v.Anomalies)
	assert.True(t, v.AnomalyPassed, "two medium findings stay within the default tolerance")
	assert.True(t, v.OverallValid)
}

func TestValidate_MissingProfileDegradesNotFails(t *testing.T) {
	p, _ := newTestPipeline(t, config.Default())

	req := validRequest()
	req.Profile = nil

	v := p.Validate(context.Background(), req)
	assert.True(t, v.CredibilityRun)
	assert.False(t, v.ProfileSupplied)
	assert.Equal(t, 0.5, v.Credibility.Overall, "missing profile gets the configured default")
	assert.True(t, v.OverallValid, "default credibility clears the strict minimum")
}

func TestValidate_WeakProfileFailsStrict(t *testing.T) {
	p, _ := newTestPipeline(t, config.Default())

	req := validRequest()
	req.Profile = &core.IdentityProfile{Wallet: testWallet, AgeDays: 40}

	v := p.Validate(context.Background(), req)
	assert.True(t, v.InputPassed)
	assert.Equal(t, consensus.StatusConsensus, v.Consensus.Status)
	assert.Less(t, v.Credibility.Overall, 0.4)
	assert.False(t, v.OverallValid, "strict mode requires minimum credibility")
}

func TestValidate_LenientIgnoresMissingProfileCredibility(t *testing.T) {
	cfg := config.Default()
	cfg.Policy.Mode = "lenient"
	p, _ := newTestPipeline(t, cfg)

	req := validRequest()
	req.Profile = nil

	v := p.Validate(context.Background(), req)
	assert.True(t, v.OverallValid)
	assert.Equal(t, "lenient", v.Policy)
}

func TestValidate_LenientStillBindsSuppliedProfile(t *testing.T) {
	cfg := config.Default()
	cfg.Policy.Mode = "lenient"
	p, _ := newTestPipeline(t, cfg)

	req := validRequest()
	req.Profile = &core.IdentityProfile{Wallet: testWallet} // scores ~0

	v := p.Validate(context.Background(), req)
	assert.False(t, v.OverallValid, "a supplied weak profile binds even in lenient mode")
}

func TestValidateBatch_OneVerdictPerInputInOrder(t *testing.T) {
	p, sink := newTestPipeline(t, config.Default())

	reqs := make([]Request, 20)
	for i := range reqs {
		reqs[i] = validRequest()
		reqs[i].Event.ID = fmt.Sprintf("evt-%03d", i)
	}

	verdicts := p.ValidateBatch(context.Background(), reqs)
	require.Len(t, verdicts, len(reqs))
	for i, v := range verdicts {
		assert.Equal(t, reqs[i].Event.ID, v.EventID, "verdicts keep input order")
		assert.True(t, v.OverallValid)
	}
	assert.Equal(t, len(reqs), sink.count())
}

func TestValidateBatch_CanceledContextDegradesGracefully(t *testing.T) {
	p, _ := newTestPipeline(t, config.Default())

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // canceled before dispatch

	reqs := make([]Request, 5)
	for i := range reqs {
		reqs[i] = validRequest()
		reqs[i].Event.ID = fmt.Sprintf("evt-%03d", i)
	}

	verdicts := p.ValidateBatch(ctx, reqs)
	require.Len(t, verdicts, len(reqs), "cancellation never changes the verdict count")
	for i, v := range verdicts {
		assert.Equal(t, reqs[i].Event.ID, v.EventID)
		assert.False(t, v.OverallValid, "never-validated events degrade to not-valid")
		assert.Contains(t, v.InputReason, "batch_canceled")
	}
}

func TestSummarize(t *testing.T) {
	p, _ := newTestPipeline(t, config.Default())

	good := validRequest()
	bad := validRequest()
	bad.Event.ID = "evt-2"
	bad.Event.WalletAge = 1

	verdicts := []Verdict{
		p.Validate(context.Background(), good),
		p.Validate(context.Background(), bad),
	}

	s := Summarize(verdicts)
	assert.Equal(t, 2, s.Total)
	assert.Equal(t, 1, s.OverallValid)
	assert.Equal(t, 1, s.InputPassed)
	assert.Equal(t, 1, s.ConsensusReached)
	assert.Greater(t, s.MeanConfidence, 0.0)
	assert.Equal(t, 1, s.TierDistribution[string(verdicts[0].Credibility.Tier)])
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	assert.Zero(t, s.Total)
	assert.Zero(t, s.MeanConfidence)
}
