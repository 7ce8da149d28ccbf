package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/claimsentry/backend/internal/anomaly"
	"github.com/claimsentry/backend/internal/api"
	"github.com/claimsentry/backend/internal/config"
	"github.com/claimsentry/backend/internal/consensus"
	"github.com/claimsentry/backend/internal/credibility"
	"github.com/claimsentry/backend/internal/events"
	"github.com/claimsentry/backend/internal/history"
	"github.com/claimsentry/backend/internal/infra"
	"github.com/claimsentry/backend/internal/inputcheck"
	"github.com/claimsentry/backend/internal/metrics"
	"github.com/claimsentry/backend/internal/redteam"
	"github.com/claimsentry/backend/internal/validator"
	"github.com/claimsentry/backend/internal/webhooks"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded .env file")
	}

	cfg := loadConfig()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	bus := events.NewBus("/claimsentry/validator")

	// Blocklist and venue store: Redis when reachable, in-memory otherwise.
	var blocked inputcheck.BlocklistStore
	var venues inputcheck.VenueOracle
	var blockAdmin api.BlocklistAdmin
	var venueRecorder api.VenueRecorder

	if rdb, err := infra.NewGoRedisAdapter(cfg.Redis); err == nil {
		defer rdb.Close()
		// A configured blocklist must be enforced, not silently ignored.
		if len(cfg.Input.Blocklist) > 0 {
			if err := rdb.Block(context.Background(), cfg.Input.Blocklist...); err != nil {
				slog.Error("seeding configured blocklist failed", "error", err)
				os.Exit(1)
			}
		}
		blocked, venues = rdb, rdb
		blockAdmin, venueRecorder = rdb, rdb
	} else {
		slog.Warn("falling back to in-memory stores", "error", err)
		memBlocked := inputcheck.NewMemoryBlocklist(cfg.Input.Blocklist)
		memVenues := inputcheck.NewMemoryVenueOracle()
		blocked, venues = memBlocked, memVenues
		blockAdmin, venueRecorder = memBlocked, memVenues
	}

	// Event history: Postgres when configured, in-memory otherwise.
	var store history.Store
	if cfg.Postgres.DSN != "" {
		pg, err := history.NewPostgresStore(cfg.Postgres.DSN)
		if err != nil {
			slog.Error("postgres connection failed", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		store = pg
	} else {
		slog.Warn("no postgres DSN configured, using in-memory event history")
		store = history.NewMemoryStore(history.DefaultSpan)
	}

	// Four validation layers.
	input, err := inputcheck.New(cfg.Input, blocked, venues)
	if err != nil {
		slog.Error("input validator init failed", "error", err)
		os.Exit(1)
	}
	detector := anomaly.New(cfg.Anomaly)

	parties := make([]consensus.Party, 0, len(cfg.Consensus.PartyEndpoints))
	for _, endpoint := range cfg.Consensus.PartyEndpoints {
		parties = append(parties, consensus.NewHTTPParty(endpoint))
	}
	if len(parties) == 0 {
		slog.Warn("no consensus parties configured, every event will stay PENDING")
	}
	cons := consensus.New(cfg.Consensus, parties).WithMetrics(m)

	scorer := credibility.NewLinearScorer(cfg.Credibility)

	sink := events.NewVerdictSink(bus)
	pipeline := validator.New(cfg, input, detector, cons, scorer, scorer, sink, m)

	// Red-team framework attacks the same pipeline the API serves.
	registry := redteam.NewRegistry()
	redteam.DefaultCatalog(registry)
	framework := redteam.New(cfg.RedTeam, registry, pipeline, m)

	// Webhook delivery, fed from the bus.
	hookRegistry := webhooks.NewRegistry()
	dispatcher := webhooks.NewDispatcher(hookRegistry, 4)
	defer dispatcher.Shutdown()
	go forwardToWebhooks(bus, dispatcher)

	server := api.NewServer(api.Deps{
		Pipeline:  pipeline,
		Consensus: cons,
		Framework: framework,
		Store:     store,
		Blocklist: blockAdmin,
		Venues:    venueRecorder,
		Registry:  hookRegistry,
		Bus:       bus,
	})

	// Graceful shutdown on SIGTERM.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("shutdown signal received, draining")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("claimsentry validator starting",
		"port", cfg.Server.Port,
		"policy", cfg.Policy.Mode,
		"parties", len(parties))
	if err := server.Start(cfg.Server.Port); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func loadConfig() *config.Config {
	path := os.Getenv("CS_CONFIG_PATH")
	if path == "" {
		return config.Default()
	}
	cfg, err := config.Load(path)
	if err != nil {
		slog.Error("config load failed", "path", path, "error", err)
		os.Exit(1)
	}
	slog.Info("configuration loaded", "path", path)
	return cfg
}

// forwardToWebhooks bridges bus events to registered webhook subscribers.
func forwardToWebhooks(bus *events.Bus, dispatcher *webhooks.Dispatcher) {
	feed := bus.Subscribe(
		events.TypeVerdictAccepted,
		events.TypeVerdictRejected,
		events.TypeAssessmentCompleted,
	)
	for ev := range feed {
		dispatcher.Emit(webhooks.EventType(ev.Type), ev.Data)
	}
}
