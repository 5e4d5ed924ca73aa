package commands

import (
	"context"
	"errors"
	"strings"

	"quadvote/contexts/governance/quadratic-voting/domain/entities"
	domainerrors "quadvote/contexts/governance/quadratic-voting/domain/errors"
	"quadvote/contexts/governance/quadratic-voting/domain/services"
	"quadvote/contexts/governance/quadratic-voting/ports"
)

type CastVoteCommand struct {
	Credential string
	VoterID    string
	DAOID      string
	Sequence   uint32
	VoteType   entities.VoteType
}

// CastVoteResult carries the stored vote and the proposal tallies after it
// was applied.
type CastVoteResult struct {
	Vote     entities.Vote
	Proposal entities.Proposal
}

// CastVote records one vote per (voter, proposal) weighted by
// floor(sqrt(balance)), where balance is read from the oracle at call time.
func (uc LedgerUseCase) CastVote(ctx context.Context, cmd CastVoteCommand) (CastVoteResult, error) {
	logger := uc.logger()
	daoID := strings.TrimSpace(cmd.DAOID)
	logger.Info("vote cast processing started",
		"event", "ledger_vote_cast_started",
		"module", "governance/quadratic-voting",
		"layer", "application",
		"dao_id", daoID,
		"sequence", cmd.Sequence,
		"voter_id", strings.TrimSpace(cmd.VoterID),
	)

	voterID, err := uc.authenticate(ctx, cmd.Credential, cmd.VoterID)
	if err != nil {
		logger.Warn("vote cast authentication failed",
			"event", "ledger_vote_cast_unauthenticated",
			"module", "governance/quadratic-voting",
			"layer", "application",
			"dao_id", daoID,
			"sequence", cmd.Sequence,
		)
		return CastVoteResult{}, err
	}
	if daoID == "" || !cmd.VoteType.Valid() {
		logger.Warn("vote cast validation failed",
			"event", "ledger_vote_cast_validation_failed",
			"module", "governance/quadratic-voting",
			"layer", "application",
			"dao_id", daoID,
			"sequence", cmd.Sequence,
			"voter_id", voterID,
			"vote_type", string(cmd.VoteType),
		)
		return CastVoteResult{}, domainerrors.ErrInvalidInput
	}

	balance, err := uc.resolveBalance(ctx, voterID)
	if err != nil {
		return CastVoteResult{}, err
	}
	credits := services.VoteCredits(balance)

	voteID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return CastVoteResult{}, err
	}
	vote, proposal, err := uc.Ledger.CastVote(ctx, ports.NewVote{
		VoteID:       voteID,
		VoterID:      voterID,
		DAOID:        daoID,
		Sequence:     cmd.Sequence,
		VoteType:     cmd.VoteType,
		VoteCredits:  credits,
		TokenBalance: balance,
		CreatedAt:    uc.now(),
	}, func(record entities.Vote) (ports.EventEnvelope, error) {
		eventID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return ports.EventEnvelope{}, err
		}
		return newLedgerEnvelope(eventID, EventVoteCast, record.DAOID, record.CreatedAt, map[string]any{
			"vote_id":       record.VoteID,
			"proposal_id":   record.ProposalID,
			"dao_id":        record.DAOID,
			"sequence":      record.Sequence,
			"voter_id":      record.VoterID,
			"vote_type":     string(record.VoteType),
			"vote_credits":  record.VoteCredits,
			"token_balance": record.TokenBalance,
		})
	})
	if err != nil {
		logger.Warn("vote cast rejected",
			"event", "ledger_vote_cast_rejected",
			"module", "governance/quadratic-voting",
			"layer", "application",
			"dao_id", daoID,
			"sequence", cmd.Sequence,
			"voter_id", voterID,
			"error", err.Error(),
		)
		return CastVoteResult{}, err
	}

	logger.Info("vote cast",
		"event", "ledger_vote_cast",
		"module", "governance/quadratic-voting",
		"layer", "application",
		"vote_id", vote.VoteID,
		"proposal_id", vote.ProposalID,
		"voter_id", vote.VoterID,
		"vote_type", string(vote.VoteType),
		"vote_credits", vote.VoteCredits,
		"yes_vote_count", proposal.YesVoteCount,
		"no_vote_count", proposal.NoVoteCount,
	)
	return CastVoteResult{Vote: vote, Proposal: proposal}, nil
}

func (uc LedgerUseCase) resolveBalance(ctx context.Context, voterID string) (uint64, error) {
	logger := uc.logger()
	if uc.Balances == nil {
		return 0, domainerrors.ErrBalanceUnavailable
	}
	balance, found, err := uc.Balances.BalanceOf(ctx, voterID)
	if err != nil {
		logger.Error("voter balance lookup failed",
			"event", "ledger_balance_lookup_failed",
			"module", "governance/quadratic-voting",
			"layer", "application",
			"voter_id", voterID,
			"error", err.Error(),
		)
		return 0, errors.Join(domainerrors.ErrBalanceUnavailable, err)
	}
	if !found {
		logger.Info("voter balance missing; voting with zero credits",
			"event", "ledger_balance_missing",
			"module", "governance/quadratic-voting",
			"layer", "application",
			"voter_id", voterID,
		)
		return 0, nil
	}
	return balance, nil
}
