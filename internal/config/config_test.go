package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_PassesValidation(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "strict", cfg.Policy.Mode, "default policy must fail closed")
}

func TestValidate_WeightsMustSumToOne(t *testing.T) {
	cfg := Default()
	cfg.Credibility.Weights.Age = 0.5 // sum now 1.3
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weights must sum to 1.0")
}

func TestValidate_QuorumCannotExceedPartyCount(t *testing.T) {
	cfg := Default()
	cfg.Consensus.PartyEndpoints = []string{"http://a", "http://b"}
	cfg.Consensus.Quorum = 3
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds party count")
}

func TestValidate_RejectsUnknownPolicyMode(t *testing.T) {
	cfg := Default()
	cfg.Policy.Mode = "permissive"
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsInvertedValueBand(t *testing.T) {
	cfg := Default()
	cfg.Input.MinValueUSD = 1000
	cfg.Input.MaxValueUSD = 500
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsNonDescendingTiers(t *testing.T) {
	cfg := Default()
	cfg.Credibility.TierMedium = cfg.Credibility.TierHigh
	assert.Error(t, cfg.Validate())
}

func TestLoad_LayersYAMLOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: "9090"
consensus:
  quorum: 2
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 2, cfg.Consensus.Quorum)
	// Untouched sections keep their defaults.
	assert.Equal(t, 30, cfg.Input.MinWalletAge)
	assert.Equal(t, "strict", cfg.Policy.Mode)
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("CS_POLICY_MODE", "lenient")
	t.Setenv("CS_CONSENSUS_QUORUM", "5")
	t.Setenv("CS_CONSENSUS_TOLERANCE", "75.5")
	t.Setenv("CS_PARTY_ENDPOINTS", "http://a,http://b,http://c,http://d,http://e")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "lenient", cfg.Policy.Mode)
	assert.Equal(t, 5, cfg.Consensus.Quorum)
	assert.Equal(t, 75.5, cfg.Consensus.Tolerance)
	assert.Len(t, cfg.Consensus.PartyEndpoints, 5)
	require.NoError(t, cfg.Validate())
}

func TestApplyEnvOverrides_IgnoresUnparseable(t *testing.T) {
	t.Setenv("CS_CONSENSUS_QUORUM", "not-a-number")

	cfg := Default()
	cfg.ApplyEnvOverrides()
	assert.Equal(t, Default().Consensus.Quorum, cfg.Consensus.Quorum)
}
