// Command redteam runs the adversarial scenario catalogue against a locally
// assembled pipeline and prints the assessment report as JSON. It uses
// in-memory collaborators and honest static observers, so it exercises the
// validation logic itself rather than a deployment's infrastructure.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"

	"github.com/claimsentry/backend/internal/anomaly"
	"github.com/claimsentry/backend/internal/config"
	"github.com/claimsentry/backend/internal/consensus"
	"github.com/claimsentry/backend/internal/credibility"
	"github.com/claimsentry/backend/internal/inputcheck"
	"github.com/claimsentry/backend/internal/redteam"
	"github.com/claimsentry/backend/internal/validator"
)

func main() {
	var (
		configPath = flag.String("config", "", "optional YAML config path")
		seed       = flag.Int64("seed", 1, "scenario generator seed")
		pretty     = flag.Bool("pretty", true, "indent the JSON report")
		outPath    = flag.String("o", "", "write the report to a file instead of stdout")
	)
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			slog.Error("config load failed", "path", *configPath, "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	pipeline, err := buildPipeline(cfg)
	if err != nil {
		slog.Error("pipeline assembly failed", "error", err)
		os.Exit(1)
	}

	registry := redteam.NewRegistry()
	redteam.DefaultCatalog(registry)
	framework := redteam.New(cfg.RedTeam, registry, pipeline, nil).WithSeed(*seed)

	report := framework.Run(context.Background())

	out := os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			slog.Error("report file create failed", "path", *outPath, "error", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(report); err != nil {
		slog.Error("report encode failed", "error", err)
		os.Exit(1)
	}

	// Non-zero exit when any attack cleared the ceiling, for CI gates.
	if report.SuccessfulAttacks > 0 {
		os.Exit(2)
	}
}

// buildPipeline assembles the four layers over in-memory stores. The three
// static observers corroborate nothing, so only events whose reported value
// they agree with (none above the honest band) reach CONSENSUS.
func buildPipeline(cfg *config.Config) (*validator.Pipeline, error) {
	blocked := inputcheck.NewMemoryBlocklist(cfg.Input.Blocklist)
	venues := inputcheck.NewMemoryVenueOracle()

	input, err := inputcheck.New(cfg.Input, blocked, venues)
	if err != nil {
		return nil, err
	}
	detector := anomaly.New(cfg.Anomaly)

	// Honest observers reporting a realistic mid-band value.
	parties := []consensus.Party{
		&consensus.StaticParty{PartyName: "observer-a", Value: 1000},
		&consensus.StaticParty{PartyName: "observer-b", Value: 1010},
		&consensus.StaticParty{PartyName: "observer-c", Value: 995},
	}
	cons := consensus.New(cfg.Consensus, parties)

	scorer := credibility.NewLinearScorer(cfg.Credibility)
	return validator.New(cfg, input, detector, cons, scorer, scorer, nil, nil), nil
}
