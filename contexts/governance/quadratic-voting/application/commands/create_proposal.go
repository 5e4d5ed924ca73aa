package commands

import (
	"context"
	"strings"

	"quadvote/contexts/governance/quadratic-voting/domain/entities"
	domainerrors "quadvote/contexts/governance/quadratic-voting/domain/errors"
	"quadvote/contexts/governance/quadratic-voting/domain/services"
	"quadvote/contexts/governance/quadratic-voting/ports"
)

type CreateProposalCommand struct {
	Credential string
	AdminID    string
	DAOID      string
	Metadata   string
}

// CreateProposal opens the next proposal under a DAO. The sequence index is
// the DAO's pre-increment proposal count, taken and bumped inside one
// repository transaction so concurrent creators never share an index.
func (uc LedgerUseCase) CreateProposal(ctx context.Context, cmd CreateProposalCommand) (entities.Proposal, error) {
	logger := uc.logger()
	daoID := strings.TrimSpace(cmd.DAOID)
	logger.Info("proposal create processing started",
		"event", "ledger_proposal_create_started",
		"module", "governance/quadratic-voting",
		"layer", "application",
		"dao_id", daoID,
		"admin_id", strings.TrimSpace(cmd.AdminID),
	)

	caller, err := uc.authenticate(ctx, cmd.Credential, cmd.AdminID)
	if err != nil {
		logger.Warn("proposal create authentication failed",
			"event", "ledger_proposal_create_unauthenticated",
			"module", "governance/quadratic-voting",
			"layer", "application",
			"dao_id", daoID,
		)
		return entities.Proposal{}, err
	}
	if daoID == "" {
		return entities.Proposal{}, domainerrors.ErrInvalidInput
	}
	metadata, err := services.BoundedText(cmd.Metadata, uc.maxMetadataLength())
	if err != nil {
		logger.Warn("proposal create validation failed",
			"event", "ledger_proposal_create_validation_failed",
			"module", "governance/quadratic-voting",
			"layer", "application",
			"dao_id", daoID,
			"caller_id", caller,
			"metadata_length", len(cmd.Metadata),
		)
		return entities.Proposal{}, err
	}

	policy := uc.proposalPolicy()
	proposal, err := uc.Ledger.CreateProposal(ctx, ports.NewProposal{
		DAOID:     daoID,
		Authority: caller,
		Metadata:  metadata,
		CreatedAt: uc.now(),
		Authorize: func(dao entities.DAO) error {
			return policy.AuthorizeProposal(dao, caller)
		},
	}, func(record entities.Proposal) (ports.EventEnvelope, error) {
		eventID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return ports.EventEnvelope{}, err
		}
		return newLedgerEnvelope(eventID, EventProposalCreated, record.DAOID, record.CreatedAt, map[string]any{
			"proposal_id": record.ProposalID,
			"dao_id":      record.DAOID,
			"sequence":    record.Sequence,
			"authority":   record.Authority,
			"metadata":    record.Metadata,
		})
	})
	if err != nil {
		logger.Warn("proposal create rejected",
			"event", "ledger_proposal_create_rejected",
			"module", "governance/quadratic-voting",
			"layer", "application",
			"dao_id", daoID,
			"caller_id", caller,
			"policy", string(policy),
			"error", err.Error(),
		)
		return entities.Proposal{}, err
	}

	logger.Info("proposal created",
		"event", "ledger_proposal_created",
		"module", "governance/quadratic-voting",
		"layer", "application",
		"proposal_id", proposal.ProposalID,
		"dao_id", proposal.DAOID,
		"sequence", proposal.Sequence,
		"authority", proposal.Authority,
	)
	return proposal, nil
}
