// Package inputcheck implements the first validation layer: stateless
// structural and range checks on a single reported event.
//
// Checks run in a fixed order and short-circuit on the first failure. A
// failed check is a rejection, not an error: the validator is a total
// function over well-formed events and never returns a Go error for a bad
// event, only a machine-checkable reason code.
package inputcheck

import (
	"context"
	"fmt"
	"regexp"

	"github.com/claimsentry/backend/internal/config"
	"github.com/claimsentry/backend/internal/core"
)

// Reason codes emitted on rejection. Downstream consumers match on the code
// prefix, the suffix carries human-readable evidence.
const (
	ReasonWalletFormat  = "wallet_format_invalid"
	ReasonWalletAge     = "wallet_age_below_minimum"
	ReasonTradeCount    = "trade_count_below_minimum"
	ReasonValueBand     = "value_out_of_band"
	ReasonBlocklisted   = "wallet_blocklisted"
	ReasonSingleVenue   = "single_venue_activity"
	ReasonOracleOffline = "venue_oracle_unavailable"
)

// BlocklistStore answers membership queries against the configured wallet
// block-list. Implementations: in-memory (this package) and Redis-backed
// (internal/infra).
type BlocklistStore interface {
	IsBlocked(ctx context.Context, wallet string) (bool, error)
}

// VenueOracle reports whether a wallet exhibits activity on more than one
// configured venue. Treated as a trusted oracle call.
type VenueOracle interface {
	HasMultiVenueActivity(ctx context.Context, wallet string) (bool, error)
}

// Result is the outcome of input validation for one event.
type Result struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// Validator performs the layer-one checks. Stateless apart from the
// precompiled address grammars; safe for concurrent use.
type Validator struct {
	cfg      config.InputConfig
	grammars []*regexp.Regexp
	blocked  BlocklistStore
	venues   VenueOracle
}

// New compiles the configured address grammars and wires the external
// collaborators. An invalid grammar is a startup misconfiguration.
func New(cfg config.InputConfig, blocked BlocklistStore, venues VenueOracle) (*Validator, error) {
	grammars := make([]*regexp.Regexp, 0, len(cfg.AddressGrammars))
	for _, pattern := range cfg.AddressGrammars {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile address grammar %q: %w", pattern, err)
		}
		grammars = append(grammars, re)
	}
	if len(grammars) == 0 {
		return nil, fmt.Errorf("at least one address grammar is required")
	}
	return &Validator{cfg: cfg, grammars: grammars, blocked: blocked, venues: venues}, nil
}

// Validate runs the ordered checks against one event. A collaborator fault
// (blocklist store or venue oracle down) degrades toward rejection, never
// toward acceptance.
func (v *Validator) Validate(ctx context.Context, ev core.Event) Result {
	// 1. Identity-handle format.
	if !v.matchesGrammar(ev.Wallet) {
		return reject(ReasonWalletFormat, "wallet %q matches no configured address grammar", ev.Wallet)
	}

	// 2. Identity age.
	if ev.WalletAge < v.cfg.MinWalletAge {
		return reject(ReasonWalletAge, "wallet age %dd below minimum %dd", ev.WalletAge, v.cfg.MinWalletAge)
	}

	// 3. Activity count.
	if ev.TradeCount < v.cfg.MinTradeCount {
		return reject(ReasonTradeCount, "trade count %d below minimum %d", ev.TradeCount, v.cfg.MinTradeCount)
	}

	// 4. Monetary value band.
	if ev.ValueUSD < v.cfg.MinValueUSD || ev.ValueUSD > v.cfg.MaxValueUSD {
		return reject(ReasonValueBand, "value $%.2f outside [%.2f, %.2f]",
			ev.ValueUSD, v.cfg.MinValueUSD, v.cfg.MaxValueUSD)
	}

	// 5. Block-list membership.
	blocked, err := v.blocked.IsBlocked(ctx, ev.Wallet)
	if err != nil {
		return reject(ReasonOracleOffline, "blocklist lookup failed: %v", err)
	}
	if blocked {
		return reject(ReasonBlocklisted, "wallet %s is on the block-list", ev.Wallet)
	}

	// 6. Multi-venue activity.
	multi, err := v.venues.HasMultiVenueActivity(ctx, ev.Wallet)
	if err != nil {
		return reject(ReasonOracleOffline, "venue oracle lookup failed: %v", err)
	}
	if !multi {
		return reject(ReasonSingleVenue, "wallet %s is active on a single venue only", ev.Wallet)
	}

	return Result{Valid: true}
}

func (v *Validator) matchesGrammar(wallet string) bool {
	for _, re := range v.grammars {
		if re.MatchString(wallet) {
			return true
		}
	}
	return false
}

func reject(code, format string, args ...interface{}) Result {
	return Result{Valid: false, Reason: fmt.Sprintf(code+": "+format, args...)}
}
