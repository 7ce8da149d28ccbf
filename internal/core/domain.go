package core

import "time"

// Event is one reported behavioral/financial occurrence (e.g., a liquidation
// reported by an external data source) submitted for validation. Events are
// immutable once submitted: the pipeline reads and annotates, never rewrites
// source fields.
type Event struct {
	ID           string    `json:"id"`
	Wallet       string    `json:"wallet"`          // originating identity handle
	ValueUSD     float64   `json:"value_usd"`       // monetary value
	WalletAge    int       `json:"wallet_age_days"` // identity age in days
	TradeCount   int       `json:"trade_count"`     // identity activity count
	Timestamp    time.Time `json:"timestamp"`
	Chain        string    `json:"chain"` // chain/venue tag, e.g. "arbitrum"
	Asset        string    `json:"asset"`
	PatternTag   string    `json:"pattern_tag,omitempty"` // categorical behavioral pattern
	CredWeight   float64   `json:"credibility_weight,omitempty"`
	ProofChecked bool      `json:"proof_checked,omitempty"` // opaque verified/unverified fact from the proof layer
}

// Window is an ordered, read-only sequence of prior Events (insertion order =
// time order, newest last). The pipeline treats it as a snapshot for the
// duration of one validation call.
type Window []Event

// Snapshot returns a copy so a concurrently mutated host log cannot change
// the view mid-validation.
func (w Window) Snapshot() Window {
	cp := make(Window, len(w))
	copy(cp, w)
	return cp
}

// IdentityProfile is the full credibility attribute set for a wallet,
// supplied by the ingestion layer when available.
type IdentityProfile struct {
	Wallet           string  `json:"wallet"`
	AgeDays          int     `json:"age_days"`
	LifetimeVolume   float64 `json:"lifetime_volume_usd"`
	TradeCount       int     `json:"trade_count"`
	ActiveChains     int     `json:"active_chains"`
	CrossChainVolume float64 `json:"cross_chain_volume_usd"`
	HasENS           bool    `json:"has_ens"`           // identity-linkage signal
	HasSocialProof   bool    `json:"has_social_proof"`  // identity-linkage signal
	UsesHardwareKey  bool    `json:"uses_hardware_key"` // custody-hygiene signal
	UsesMultisig     bool    `json:"uses_multisig"`     // custody-hygiene signal
	ProtocolScore    float64 `json:"protocol_score"`    // externally supplied reputation, 0-1
}

// WeightedEvent is a credibility-weighted copy of an Event's numeric fields.
// The original Event is never mutated.
type WeightedEvent struct {
	Event
	WeightedValueUSD float64 `json:"weighted_value_usd"`
}
