// Package history persists reported events and serves the recent-event
// windows the anomaly detector reads. Two stores: Postgres for deployments,
// in-memory for tests and single-pod runs.
package history

import (
	"context"
	"time"

	"github.com/claimsentry/backend/internal/core"
)

// DefaultSpan is how far back a behavioral window reaches when the caller
// does not supply one.
const DefaultSpan = 24 * time.Hour

// Store records validated events and answers window queries. Window returns
// events with timestamps in (ref-span, ref], oldest first.
type Store interface {
	Append(ctx context.Context, ev core.Event) error
	Window(ctx context.Context, span time.Duration, ref time.Time) (core.Window, error)
}
