package redteam

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/claimsentry/backend/internal/core"
	"github.com/claimsentry/backend/internal/validator"
)

// DefaultCatalog registers the fixed attack catalogue against a registry.
func DefaultCatalog(reg *Registry) {
	for _, s := range []Scenario{
		fabricatedIdentityFarming(),
		blocklistEvasion(),
		valueBandProbing(),
		coordinatedTiming(),
		volumeFlood(),
		washTradingLoop(),
		singlePartyCollusion(),
		reputationMule(),
	} {
		// Catalogue entries are statically well-formed.
		_ = reg.Register(s)
	}
}

// fabricatedIdentityFarming floods the pipeline with freshly created wallets
// that have no history. A working input layer rejects every one on age.
func fabricatedIdentityFarming() Scenario {
	return Scenario{
		Name:        "fabricated_identity_farming",
		TargetLayer: "input",
		Severity:    SeverityHigh,
		Description: "fresh wallets with fabricated liquidations farming incentives",
		Mitigations: []string{
			"raise the minimum wallet age for incentive eligibility",
			"require multi-venue activity before counting events",
		},
		Generate: func(rng *rand.Rand) []validator.Request {
			reqs := make([]validator.Request, 0, 100)
			now := time.Now()
			for i := 0; i < 100; i++ {
				reqs = append(reqs, validator.Request{
					Event: core.Event{
						ID:         fmt.Sprintf("farm-%03d", i),
						Wallet:     randomEVMWallet(rng),
						ValueUSD:   500 + rng.Float64()*2000,
						WalletAge:  rng.Intn(5),
						TradeCount: rng.Intn(3),
						Timestamp:  now.Add(-time.Duration(rng.Intn(3600)) * time.Second),
						Chain:      "arbitrum",
						Asset:      "ETH",
					},
				})
			}
			return reqs
		},
	}
}

// blocklistEvasion resubmits known-bad wallets with case-mutated handles.
// EVM addresses are case-insensitive on chain, so a checksum-cased copy of a
// blocklisted address is the same actor.
func blocklistEvasion() Scenario {
	return Scenario{
		Name:        "blocklist_evasion",
		TargetLayer: "input",
		Severity:    SeverityHigh,
		Description: "blocklisted wallets resubmitted with mutated casing",
		Mitigations: []string{
			"normalize wallet handles to lowercase before blocklist lookups",
			"block by derived identity clusters, not raw handle strings",
		},
		Generate: func(rng *rand.Rand) []validator.Request {
			base := knownBadWallets()
			reqs := make([]validator.Request, 0, len(base)*2)
			now := time.Now()
			for i, wallet := range base {
				for _, variant := range []string{wallet, mutateCase(rng, wallet)} {
					reqs = append(reqs, validator.Request{
						Event: core.Event{
							ID:         fmt.Sprintf("evade-%02d", i),
							Wallet:     variant,
							ValueUSD:   1500,
							WalletAge:  120,
							TradeCount: 60,
							Timestamp:  now,
							Chain:      "arbitrum",
							Asset:      "ETH",
						},
					})
				}
			}
			return reqs
		},
	}
}

// valueBandProbing probes the edges of the configured value band.
func valueBandProbing() Scenario {
	return Scenario{
		Name:        "value_band_probing",
		TargetLayer: "input",
		Severity:    SeverityMedium,
		Description: "zero, negative, and absurdly large event values",
		Mitigations: []string{
			"validate the value band against venue-reported position sizes",
		},
		Generate: func(rng *rand.Rand) []validator.Request {
			values := []float64{0, -1500, 0.01, 5e8, 9e12}
			reqs := make([]validator.Request, 0, len(values))
			now := time.Now()
			for i, value := range values {
				reqs = append(reqs, validator.Request{
					Event: core.Event{
						ID:         fmt.Sprintf("probe-%02d", i),
						Wallet:     randomEVMWallet(rng),
						ValueUSD:   value,
						WalletAge:  200,
						TradeCount: 80,
						Timestamp:  now,
						Chain:      "base",
						Asset:      "BTC",
					},
				})
			}
			return reqs
		},
	}
}

// coordinatedTiming submits a window of one hundred events on a single venue
// with near-identical spacing and one shared pattern tag. Both the timing
// regularity and pattern repetition checks should trip.
func coordinatedTiming() Scenario {
	return Scenario{
		Name:        "coordinated_timing",
		TargetLayer: "anomaly",
		Severity:    SeverityHigh,
		Description: "bot-scheduled events with mechanical spacing on one venue",
		Mitigations: []string{
			"lower the timing-regularity ceiling",
			"tighten the pattern-repetition fraction",
		},
		Generate: func(rng *rand.Rand) []validator.Request {
			now := time.Now()
			window := make(core.Window, 0, 100)
			wallet := randomEVMWallet(rng)
			for i := 0; i < 100; i++ {
				// 30s apart with sub-second jitter: mechanical to the detector.
				jitter := time.Duration(rng.Intn(200)) * time.Millisecond
				window = append(window, core.Event{
					ID:         fmt.Sprintf("tick-%03d", i),
					Wallet:     wallet,
					ValueUSD:   900 + rng.Float64()*50,
					WalletAge:  90,
					TradeCount: 40,
					Timestamp:  now.Add(-100*30*time.Second + time.Duration(i)*30*time.Second + jitter),
					Chain:      "arbitrum",
					Asset:      "ETH",
					PatternTag: "long-liq-cascade",
				})
			}
			return []validator.Request{{Event: window[len(window)-1], Window: window}}
		},
	}
}

// volumeFlood builds a window whose trailing hour dwarfs the 24h baseline.
func volumeFlood() Scenario {
	return Scenario{
		Name:        "volume_flood",
		TargetLayer: "anomaly",
		Severity:    SeverityMedium,
		Description: "burst of events far above the trailing 24h hourly rate",
		Mitigations: []string{
			"alert on spike ratios well below the rejection threshold",
		},
		Generate: func(rng *rand.Rand) []validator.Request {
			now := time.Now()
			window := make(core.Window, 0, 60)
			// Sparse baseline: one event every four hours.
			for i := 0; i < 6; i++ {
				window = append(window, core.Event{
					ID:        fmt.Sprintf("base-%02d", i),
					Wallet:    randomEVMWallet(rng),
					ValueUSD:  1200,
					Timestamp: now.Add(-time.Duration(23-4*i) * time.Hour),
					Chain:     "arbitrum",
					Asset:     "ETH",
				})
			}
			// Flood: fifty events in the trailing hour.
			for i := 0; i < 50; i++ {
				window = append(window, core.Event{
					ID:        fmt.Sprintf("flood-%02d", i),
					Wallet:    randomEVMWallet(rng),
					ValueUSD:  800 + rng.Float64()*400,
					Timestamp: now.Add(-time.Duration(rng.Intn(3500)) * time.Second),
					Chain:     "arbitrum",
					Asset:     "ETH",
				})
			}
			sortWindow(window)
			ev := window[len(window)-1]
			ev.WalletAge = 120
			ev.TradeCount = 50
			return []validator.Request{{Event: ev, Window: window}}
		},
	}
}

// washTradingLoop feeds the detector a same-wallet sequence whose values jump
// an order of magnitude within seconds.
func washTradingLoop() Scenario {
	return Scenario{
		Name:        "wash_trading_loop",
		TargetLayer: "anomaly",
		Severity:    SeverityHigh,
		Description: "same wallet reporting physically impossible value jumps",
		Mitigations: []string{
			"cross-check reported values against venue order books",
		},
		Generate: func(rng *rand.Rand) []validator.Request {
			now := time.Now()
			wallet := randomEVMWallet(rng)
			value := 200.0
			window := make(core.Window, 0, 8)
			for i := 0; i < 8; i++ {
				window = append(window, core.Event{
					ID:         fmt.Sprintf("wash-%02d", i),
					Wallet:     wallet,
					ValueUSD:   value,
					WalletAge:  150,
					TradeCount: 70,
					Timestamp:  now.Add(time.Duration(i*20-160) * time.Second),
					Chain:      "optimism",
					Asset:      "ETH",
				})
				value *= 15 // well past the impossible-sequence multiplier
			}
			return []validator.Request{{Event: window[len(window)-1], Window: window}}
		},
	}
}

// singlePartyCollusion reports a liquidation value wildly above what honest
// observers will corroborate; only a colluding party would confirm it.
func singlePartyCollusion() Scenario {
	return Scenario{
		Name:        "single_party_collusion",
		TargetLayer: "consensus",
		Severity:    SeverityCritical,
		Description: "inflated value claims that only a colluding observer confirms",
		Mitigations: []string{
			"raise the consensus quorum",
			"rotate party endpoints across operators",
		},
		Generate: func(rng *rand.Rand) []validator.Request {
			now := time.Now()
			reqs := make([]validator.Request, 0, 10)
			for i := 0; i < 10; i++ {
				reqs = append(reqs, validator.Request{
					Event: core.Event{
						ID:         fmt.Sprintf("collude-%02d", i),
						Wallet:     randomEVMWallet(rng),
						ValueUSD:   2_000_000 + rng.Float64()*1_000_000,
						WalletAge:  300,
						TradeCount: 200,
						Timestamp:  now,
						Chain:      "arbitrum",
						Asset:      "ETH",
					},
				})
			}
			return reqs
		},
	}
}

// reputationMule supplies profiles that max exactly one credibility component
// and nothing else, hunting for a single-factor bypass.
func reputationMule() Scenario {
	return Scenario{
		Name:        "reputation_mule",
		TargetLayer: "credibility",
		Severity:    SeverityMedium,
		Description: "profiles maxing one credibility component to clear the bar",
		Mitigations: []string{
			"require a minimum on multiple components, not just the overall score",
		},
		Generate: func(rng *rand.Rand) []validator.Request {
			now := time.Now()
			profiles := []core.IdentityProfile{
				{ProtocolScore: 1.0},
				{AgeDays: 4000},
				{HasENS: true, HasSocialProof: true},
				{UsesHardwareKey: true, UsesMultisig: true},
			}
			reqs := make([]validator.Request, 0, len(profiles))
			for i := range profiles {
				wallet := randomEVMWallet(rng)
				profiles[i].Wallet = wallet
				reqs = append(reqs, validator.Request{
					Event: core.Event{
						ID:         fmt.Sprintf("mule-%02d", i),
						Wallet:     wallet,
						ValueUSD:   2500,
						WalletAge:  60,
						TradeCount: 30,
						Timestamp:  now,
						Chain:      "base",
						Asset:      "ETH",
					},
					Profile: &profiles[i],
				})
			}
			return reqs
		},
	}
}

// ---------------------------------------------------------------------------
// helpers

const hexDigits = "0123456789abcdef"

func randomEVMWallet(rng *rand.Rand) string {
	buf := make([]byte, 40)
	for i := range buf {
		buf[i] = hexDigits[rng.Intn(len(hexDigits))]
	}
	return "0x" + string(buf)
}

func knownBadWallets() []string {
	return []string{
		"0x9f2ce33b0e4c075dac6a99bc319d9ee1d0a51c8e",
		"0x41bd55e89acdcd47ca73ca6e897334ff4ae1e24a",
		"0x7be8076f4ea4a4ad08075c2508e481d6c946d12b",
	}
}

func mutateCase(rng *rand.Rand, wallet string) string {
	buf := []byte(wallet)
	for i := 2; i < len(buf); i++ {
		if buf[i] >= 'a' && buf[i] <= 'f' && rng.Intn(2) == 0 {
			buf[i] -= 'a' - 'A'
		}
	}
	return string(buf)
}

func sortWindow(w core.Window) {
	sort.Slice(w, func(i, j int) bool { return w[i].Timestamp.Before(w[j].Timestamp) })
}
