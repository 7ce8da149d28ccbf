package events

import (
	"github.com/claimsentry/backend/internal/validator"
)

// VerdictSink bridges the pipeline to the bus: every finished verdict is
// published as verdict.accepted or verdict.rejected, keyed by event ID. The
// downstream incentive-minting consumer must treat rejected verdicts as
// "do not act on this event".
type VerdictSink struct {
	bus *Bus
}

func NewVerdictSink(bus *Bus) *VerdictSink {
	return &VerdictSink{bus: bus}
}

// Publish implements validator.VerdictSink.
func (s *VerdictSink) Publish(v validator.Verdict) {
	eventType := TypeVerdictRejected
	if v.OverallValid {
		eventType = TypeVerdictAccepted
	}
	s.bus.Emit(eventType, v.EventID, v)
}
