package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claimsentry/backend/internal/config"
	"github.com/claimsentry/backend/internal/core"
	"github.com/claimsentry/backend/internal/inputcheck"
	"github.com/claimsentry/backend/internal/validator"
)

func TestBuildPipeline_EnforcesConfiguredBlocklist(t *testing.T) {
	const badWallet = "0x1a2b3c4d5e6f7a8b9c0d1e2f3a4b5c6d7e8f9a0b"

	cfg := config.Default()
	cfg.Input.Blocklist = []string{badWallet}
	require.NoError(t, cfg.Validate())

	pipeline, err := buildPipeline(cfg)
	require.NoError(t, err)

	v := pipeline.Validate(context.Background(), validator.Request{
		Event: core.Event{
			ID:         "evt-blocked",
			Wallet:     badWallet,
			ValueUSD:   1000,
			WalletAge:  120,
			TradeCount: 50,
			Timestamp:  time.Now(),
			Chain:      "arbitrum",
			Asset:      "ETH",
		},
	})

	assert.False(t, v.InputPassed)
	assert.True(t, strings.HasPrefix(v.InputReason, inputcheck.ReasonBlocklisted),
		"a wallet listed in the configuration must be rejected as blocklisted, got %q", v.InputReason)
	assert.False(t, v.OverallValid)
}
