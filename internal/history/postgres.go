package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // Postgres driver

	"github.com/claimsentry/backend/internal/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS event_history (
    id            TEXT PRIMARY KEY,
    wallet        TEXT NOT NULL,
    value_usd     DOUBLE PRECISION NOT NULL,
    wallet_age    INTEGER NOT NULL,
    trade_count   INTEGER NOT NULL,
    ts            TIMESTAMPTZ NOT NULL,
    chain         TEXT NOT NULL,
    asset         TEXT NOT NULL,
    pattern_tag   TEXT NOT NULL DEFAULT '',
    cred_weight   DOUBLE PRECISION NOT NULL DEFAULT 0,
    proof_checked BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS event_history_ts_idx ON event_history (ts);
`

// PostgresStore keeps the event history in Postgres. The store is
// append-only; verdicts never mutate recorded events.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens the DSN and verifies connectivity. The caller
// decides whether a failure falls back to the in-memory store.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure event_history schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Append records one event. Duplicate event IDs are ignored so replayed
// submissions cannot inflate a window.
func (s *PostgresStore) Append(ctx context.Context, ev core.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO event_history
			(id, wallet, value_usd, wallet_age, trade_count, ts, chain, asset, pattern_tag, cred_weight, proof_checked)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`,
		ev.ID, ev.Wallet, ev.ValueUSD, ev.WalletAge, ev.TradeCount,
		ev.Timestamp, ev.Chain, ev.Asset, ev.PatternTag, ev.CredWeight, ev.ProofChecked)
	if err != nil {
		return fmt.Errorf("append event %s: %w", ev.ID, err)
	}
	return nil
}

// Window returns the events in (ref-span, ref], oldest first.
func (s *PostgresStore) Window(ctx context.Context, span time.Duration, ref time.Time) (core.Window, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, wallet, value_usd, wallet_age, trade_count, ts, chain, asset, pattern_tag, cred_weight, proof_checked
		FROM event_history
		WHERE ts > $1 AND ts <= $2
		ORDER BY ts ASC`,
		ref.Add(-span), ref)
	if err != nil {
		return nil, fmt.Errorf("query window: %w", err)
	}
	defer rows.Close()

	var window core.Window
	for rows.Next() {
		var ev core.Event
		if err := rows.Scan(&ev.ID, &ev.Wallet, &ev.ValueUSD, &ev.WalletAge, &ev.TradeCount,
			&ev.Timestamp, &ev.Chain, &ev.Asset, &ev.PatternTag, &ev.CredWeight, &ev.ProofChecked); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		window = append(window, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate window rows: %w", err)
	}
	return window, nil
}
