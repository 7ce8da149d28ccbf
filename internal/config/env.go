package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// ApplyEnvOverrides layers CS_* environment variables on top of the loaded
// config for deployment-specific tuning without editing the YAML file.
func (c *Config) ApplyEnvOverrides() {
	if port := os.Getenv("CS_SERVER_PORT"); port != "" {
		c.Server.Port = port
	}
	if addr := os.Getenv("CS_REDIS_ADDR"); addr != "" {
		c.Redis.Addr = addr
	}
	if dsn := os.Getenv("CS_POSTGRES_DSN"); dsn != "" {
		c.Postgres.DSN = dsn
	}
	if mode := os.Getenv("CS_POLICY_MODE"); mode != "" {
		c.Policy.Mode = mode
		slog.Info("policy mode overridden from env", "mode", mode)
	}
	if endpoints := os.Getenv("CS_PARTY_ENDPOINTS"); endpoints != "" {
		c.Consensus.PartyEndpoints = strings.Split(endpoints, ",")
	}
	overrideFloat("CS_CONSENSUS_TOLERANCE", &c.Consensus.Tolerance)
	overrideFloat("CS_SPIKE_MULTIPLIER", &c.Anomaly.SpikeMultiplier)
	overrideFloat("CS_MIN_CREDIBILITY", &c.Policy.MinCredibility)
	overrideInt("CS_CONSENSUS_QUORUM", &c.Consensus.Quorum)
	overrideInt("CS_ANOMALY_TOLERANCE", &c.Anomaly.Tolerance)
	overrideInt("CS_BATCH_WORKERS", &c.Batch.Workers)
}

func overrideFloat(key string, dst *float64) {
	if raw := os.Getenv(key); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
			*dst = parsed
			slog.Info("config overridden from env", "key", key, "value", parsed)
		}
	}
}

func overrideInt(key string, dst *int) {
	if raw := os.Getenv(key); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			*dst = parsed
			slog.Info("config overridden from env", "key", key, "value", parsed)
		}
	}
}
