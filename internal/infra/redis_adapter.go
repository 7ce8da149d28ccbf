// Package infra provides concrete infrastructure adapters for Redis.
//
// The adapter wraps go-redis v9 and backs the input layer's BlocklistStore
// and VenueOracle interfaces. If Redis is not reachable at startup, the app
// falls back to the in-memory stores in main.go.
package infra

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/claimsentry/backend/internal/config"
)

const (
	blocklistKey     = "sentry:blocklist"
	venueKeyPrefix   = "sentry:venues:"
	venueActivityTTL = 30 * 24 * time.Hour
)

// GoRedisAdapter wraps go-redis v9. One adapter serves both the blocklist
// and the venue-activity store.
type GoRedisAdapter struct {
	rdb *redis.Client
}

// NewGoRedisAdapter attempts to connect to Redis using the provided options.
// Returns the adapter and any connection error (caller decides whether to
// fall back to in-memory).
func NewGoRedisAdapter(cfg config.RedisConfig) (*GoRedisAdapter, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     20,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed (%s): %w", cfg.Addr, err)
	}

	slog.Info("Redis connected", "addr", cfg.Addr, "db", cfg.DB)
	return &GoRedisAdapter{rdb: rdb}, nil
}

// Close shuts down the underlying redis client.
func (a *GoRedisAdapter) Close() error {
	return a.rdb.Close()
}

// =============================================================================
// inputcheck.BlocklistStore implementation
// =============================================================================

// IsBlocked reports block-list membership. Errors surface to the caller so
// the input layer can degrade toward rejection.
func (a *GoRedisAdapter) IsBlocked(ctx context.Context, wallet string) (bool, error) {
	blocked, err := a.rdb.SIsMember(ctx, blocklistKey, wallet).Result()
	if err != nil {
		return false, fmt.Errorf("blocklist lookup for %s: %w", wallet, err)
	}
	return blocked, nil
}

// Block adds wallets to the shared block-list (operator action).
func (a *GoRedisAdapter) Block(ctx context.Context, wallets ...string) error {
	members := make([]interface{}, len(wallets))
	for i, w := range wallets {
		members[i] = w
	}
	return a.rdb.SAdd(ctx, blocklistKey, members...).Err()
}

// Unblock removes wallets from the shared block-list.
func (a *GoRedisAdapter) Unblock(ctx context.Context, wallets ...string) error {
	members := make([]interface{}, len(wallets))
	for i, w := range wallets {
		members[i] = w
	}
	return a.rdb.SRem(ctx, blocklistKey, members...).Err()
}

// =============================================================================
// inputcheck.VenueOracle implementation
// =============================================================================

// RecordActivity marks a wallet as active on a venue. The per-wallet venue
// set expires after a month of inactivity so stale wallets re-qualify
// from scratch.
func (a *GoRedisAdapter) RecordActivity(ctx context.Context, wallet, venue string) error {
	key := venueKeyPrefix + wallet
	pipe := a.rdb.TxPipeline()
	pipe.SAdd(ctx, key, venue)
	pipe.Expire(ctx, key, venueActivityTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record venue activity for %s: %w", wallet, err)
	}
	return nil
}

// HasMultiVenueActivity reports whether the wallet has been seen on more
// than one venue inside the activity window.
func (a *GoRedisAdapter) HasMultiVenueActivity(ctx context.Context, wallet string) (bool, error) {
	n, err := a.rdb.SCard(ctx, venueKeyPrefix+wallet).Result()
	if err != nil {
		return false, fmt.Errorf("venue lookup for %s: %w", wallet, err)
	}
	return n > 1, nil
}
