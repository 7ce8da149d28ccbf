package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Input       InputConfig       `yaml:"input"`
	Anomaly     AnomalyConfig     `yaml:"anomaly"`
	Consensus   ConsensusConfig   `yaml:"consensus"`
	Credibility CredibilityConfig `yaml:"credibility"`
	Policy      PolicyConfig      `yaml:"policy"`
	Batch       BatchConfig       `yaml:"batch"`
	RedTeam     RedTeamConfig     `yaml:"redteam"`
	Redis       RedisConfig       `yaml:"redis"`
	Postgres    PostgresConfig    `yaml:"postgres"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	Env  string `yaml:"env"`
}

type InputConfig struct {
	// AddressGrammars are regular expressions; a wallet handle must match at
	// least one to pass the format check.
	AddressGrammars []string `yaml:"address_grammars"`
	MinWalletAge    int      `yaml:"min_wallet_age_days"`
	MinTradeCount   int      `yaml:"min_trade_count"`
	MinValueUSD     float64  `yaml:"min_value_usd"`
	MaxValueUSD     float64  `yaml:"max_value_usd"`
	Blocklist       []string `yaml:"blocklist"`
}

type AnomalyConfig struct {
	SpikeMultiplier    float64 `yaml:"spike_multiplier"`     // trailing 1h rate vs 24h mean
	RepetitionFraction float64 `yaml:"repetition_fraction"`  // most-common pattern share
	CorrelationFloor   float64 `yaml:"correlation_floor"`    // mean pairwise cross-venue correlation
	RegularityCeiling  float64 `yaml:"regularity_ceiling"`   // coefficient of variation of deltas
	SequenceMultiplier float64 `yaml:"sequence_multiplier"`  // value jump for impossible sequence
	SequenceIntervalMs int     `yaml:"sequence_interval_ms"` // max gap for impossible sequence
	Tolerance          int     `yaml:"tolerance"`            // low/medium anomalies allowed; high always rejects
}

type ConsensusConfig struct {
	Quorum         int      `yaml:"quorum"`
	Tolerance      float64  `yaml:"tolerance"` // mean absolute deviation tolerance, USD
	PartyTimeoutMs int      `yaml:"party_timeout_ms"`
	PartyEndpoints []string `yaml:"party_endpoints"`
}

type CredibilityConfig struct {
	Weights      CredibilityWeights `yaml:"weights"`
	AgeCapDays   int                `yaml:"age_cap_days"`
	VolumeCapUSD float64            `yaml:"volume_cap_usd"`
	TierHigh     float64            `yaml:"tier_high"`
	TierMedium   float64            `yaml:"tier_medium"`
	TierLow      float64            `yaml:"tier_low"`
	WeightFloor  float64            `yaml:"weight_floor"`  // weighting never zeroes an event
	DefaultScore float64            `yaml:"default_score"` // used when no profile is supplied
}

type CredibilityWeights struct {
	Age        float64 `yaml:"age"`
	Volume     float64 `yaml:"volume"`
	CrossChain float64 `yaml:"cross_chain"`
	Identity   float64 `yaml:"identity"`
	Custody    float64 `yaml:"custody"`
	Protocol   float64 `yaml:"protocol"`
}

// Sum returns the total of all component weights.
func (w CredibilityWeights) Sum() float64 {
	return w.Age + w.Volume + w.CrossChain + w.Identity + w.Custody + w.Protocol
}

type PolicyConfig struct {
	Mode           string  `yaml:"mode"` // "strict" or "lenient"
	MinConfidence  float64 `yaml:"min_confidence"`
	MinCredibility float64 `yaml:"min_credibility"`
}

type BatchConfig struct {
	Workers int `yaml:"workers"`
}

type RedTeamConfig struct {
	Concurrency       int     `yaml:"concurrency"`
	AcceptableCeiling float64 `yaml:"acceptable_ceiling"` // max tolerated attack success rate
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// Default returns the deployment-agnostic baseline configuration. Every
// threshold here can be overridden by the YAML file or environment.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080", Env: "dev"},
		Input: InputConfig{
			AddressGrammars: []string{
				`^0x[0-9a-fA-F]{40}$`,                // EVM
				`^[1-9A-HJ-NP-Za-km-z]{32,44}$`,      // Solana base58
				`^(bc1|[13])[a-zA-HJ-NP-Z0-9]{25,}$`, // Bitcoin
			},
			MinWalletAge:  30,
			MinTradeCount: 10,
			MinValueUSD:   100,
			MaxValueUSD:   10_000_000,
		},
		Anomaly: AnomalyConfig{
			SpikeMultiplier:    10,
			RepetitionFraction: 0.8,
			CorrelationFloor:   0.3,
			RegularityCeiling:  0.1,
			SequenceMultiplier: 10,
			SequenceIntervalMs: 60_000,
			Tolerance:          2,
		},
		Consensus: ConsensusConfig{
			Quorum:         3,
			Tolerance:      50,
			PartyTimeoutMs: 2_000,
		},
		Credibility: CredibilityConfig{
			Weights: CredibilityWeights{
				Age:        0.20,
				Volume:     0.20,
				CrossChain: 0.15,
				Identity:   0.15,
				Custody:    0.15,
				Protocol:   0.15,
			},
			AgeCapDays:   365,
			VolumeCapUSD: 1_000_000,
			TierHigh:     0.7,
			TierMedium:   0.4,
			TierLow:      0.2,
			WeightFloor:  0.1,
			DefaultScore: 0.5,
		},
		Policy: PolicyConfig{
			Mode:           "strict",
			MinConfidence:  0.5,
			MinCredibility: 0.4,
		},
		Batch:   BatchConfig{Workers: 8},
		RedTeam: RedTeamConfig{Concurrency: 1, AcceptableCeiling: 0.05},
	}
}

// Load reads a YAML config file on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}

	return cfg, nil
}

// PartyTimeout returns the per-party consensus timeout as a duration.
func (c *Config) PartyTimeout() time.Duration {
	return time.Duration(c.Consensus.PartyTimeoutMs) * time.Millisecond
}

// SequenceInterval returns the impossible-sequence window as a duration.
func (c *Config) SequenceInterval() time.Duration {
	return time.Duration(c.Anomaly.SequenceIntervalMs) * time.Millisecond
}

// Validate detects policy misconfiguration at startup. A failure here must
// prevent the system from serving traffic, never silently default.
func (c *Config) Validate() error {
	if sum := c.Credibility.Weights.Sum(); math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("credibility weights must sum to 1.0, got %.6f", sum)
	}
	if c.Consensus.Quorum < 1 {
		return fmt.Errorf("consensus quorum must be >= 1, got %d", c.Consensus.Quorum)
	}
	if n := len(c.Consensus.PartyEndpoints); n > 0 && c.Consensus.Quorum > n {
		return fmt.Errorf("consensus quorum %d exceeds party count %d", c.Consensus.Quorum, n)
	}
	if c.Consensus.Tolerance <= 0 {
		return fmt.Errorf("consensus tolerance must be positive, got %.2f", c.Consensus.Tolerance)
	}
	if c.Consensus.PartyTimeoutMs <= 0 {
		return fmt.Errorf("party timeout must be positive, got %dms", c.Consensus.PartyTimeoutMs)
	}
	if c.Input.MinValueUSD >= c.Input.MaxValueUSD {
		return fmt.Errorf("input value band invalid: min %.2f >= max %.2f",
			c.Input.MinValueUSD, c.Input.MaxValueUSD)
	}
	if c.Anomaly.Tolerance < 0 {
		return fmt.Errorf("anomaly tolerance must be >= 0, got %d", c.Anomaly.Tolerance)
	}
	if c.Policy.Mode != "strict" && c.Policy.Mode != "lenient" {
		return fmt.Errorf("policy mode must be strict or lenient, got %q", c.Policy.Mode)
	}
	if !(c.Credibility.TierHigh > c.Credibility.TierMedium &&
		c.Credibility.TierMedium > c.Credibility.TierLow &&
		c.Credibility.TierLow > 0) {
		return fmt.Errorf("credibility tier boundaries must be descending and positive: high %.2f medium %.2f low %.2f",
			c.Credibility.TierHigh, c.Credibility.TierMedium, c.Credibility.TierLow)
	}
	if c.Credibility.WeightFloor <= 0 || c.Credibility.WeightFloor > 1 {
		return fmt.Errorf("weight floor must be in (0,1], got %.2f", c.Credibility.WeightFloor)
	}
	if c.Batch.Workers < 1 {
		return fmt.Errorf("batch workers must be >= 1, got %d", c.Batch.Workers)
	}
	return nil
}
