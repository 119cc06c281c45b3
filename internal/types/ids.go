package types

import "github.com/google/uuid"

// NewProposalID generates the opaque id a FixProposal carries from
// creation until apply or discard (Safety Gate ownership).
func NewProposalID() string {
	return "proposal/" + uuid.New().String()[:8]
}

// NewScanID generates the opaque id for one Orchestrator run.
func NewScanID() string {
	return "scan/" + uuid.New().String()[:8]
}
