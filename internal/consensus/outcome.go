package consensus

// Status is the terminal state of a multi-party validation round.
type Status string

const (
	// StatusPending means fewer than quorum usable submissions arrived.
	// Downstream consumers must not treat PENDING as either pass or fail.
	StatusPending Status = "PENDING"
	// StatusConsensus means the submissions agreed within tolerance.
	StatusConsensus Status = "CONSENSUS"
	// StatusDisagreement means quorum was met but the spread exceeded tolerance.
	StatusDisagreement Status = "DISAGREEMENT"
	// StatusError means a party raised an unhandled fault (not a timeout).
	StatusError Status = "ERROR"
)

// Outcome is the result of one consensus round. Ownership is transient: it is
// returned to the caller and not retained by the validator.
type Outcome struct {
	Status         Status  `json:"status"`
	ConsensusValue float64 `json:"consensus_value,omitempty"` // meaningful only when Status == CONSENSUS
	Confidence     float64 `json:"confidence"`                // [0,1]
	Submissions    int     `json:"submissions"`               // usable submissions after discards
	Discarded      int     `json:"discarded"`                 // timeouts and per-party errors
	Deviation      float64 `json:"deviation,omitempty"`       // mean absolute deviation from the median
}
