package editengine

import (
	"github.com/google/uuid"

	"github.com/ploke-dev/rele/internal/eventbus"
	"github.com/ploke-dev/rele/internal/store"
)

// ProposalStagedEvent fires once Stage has resolved and hashed every
// edit in a batch.
type ProposalStagedEvent struct {
	RequestID uuid.UUID
	Files     []string
	Preview   Preview
}

func (ProposalStagedEvent) EventKind() eventbus.Kind { return eventbus.KindProposalStaged }

// ProposalApprovedEvent fires when a Pending proposal is approved, before
// Apply runs.
type ProposalApprovedEvent struct {
	RequestID uuid.UUID
}

func (ProposalApprovedEvent) EventKind() eventbus.Kind { return eventbus.KindProposalApproved }

// ProposalDeniedEvent fires when a Pending proposal is denied.
type ProposalDeniedEvent struct {
	RequestID uuid.UUID
}

func (ProposalDeniedEvent) EventKind() eventbus.Kind { return eventbus.KindProposalDenied }

// ProposalAppliedEvent fires once every file in a proposal has been
// written and re-hashed.
type ProposalAppliedEvent struct {
	RequestID uuid.UUID
	Files     []string
	NewHashes map[string]store.TrackingHash
}

func (ProposalAppliedEvent) EventKind() eventbus.Kind { return eventbus.KindProposalApplied }

// ProposalFailedEvent fires when Apply aborts a proposal.
type ProposalFailedEvent struct {
	RequestID uuid.UUID
	Reason    FailureReason
	Detail    string
}

func (ProposalFailedEvent) EventKind() eventbus.Kind { return eventbus.KindProposalFailed }
