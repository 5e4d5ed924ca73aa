package queries

import (
	"context"
	"strings"

	"quadvote/contexts/governance/quadratic-voting/domain/entities"
	domainerrors "quadvote/contexts/governance/quadratic-voting/domain/errors"
	"quadvote/contexts/governance/quadratic-voting/ports"
)

type LedgerQueries struct {
	Reader ports.LedgerReader
}

func (q LedgerQueries) GetDAO(ctx context.Context, daoID string) (entities.DAO, error) {
	daoID = strings.TrimSpace(daoID)
	if daoID == "" {
		return entities.DAO{}, domainerrors.ErrInvalidInput
	}
	return q.Reader.GetDAO(ctx, daoID)
}

func (q LedgerQueries) GetDAOByAuthority(ctx context.Context, authority string) (entities.DAO, error) {
	authority = strings.TrimSpace(authority)
	if authority == "" {
		return entities.DAO{}, domainerrors.ErrInvalidInput
	}
	return q.Reader.GetDAOByAuthority(ctx, authority)
}

func (q LedgerQueries) GetProposal(ctx context.Context, daoID string, sequence uint32) (entities.Proposal, error) {
	daoID = strings.TrimSpace(daoID)
	if daoID == "" {
		return entities.Proposal{}, domainerrors.ErrInvalidInput
	}
	return q.Reader.GetProposal(ctx, daoID, sequence)
}

// ListProposals returns a DAO's proposals ordered by sequence index.
func (q LedgerQueries) ListProposals(ctx context.Context, daoID string) ([]entities.Proposal, error) {
	dao, err := q.GetDAO(ctx, daoID)
	if err != nil {
		return nil, err
	}
	return q.Reader.ListProposals(ctx, dao.DAOID)
}

func (q LedgerQueries) GetVote(ctx context.Context, voterID string, daoID string, sequence uint32) (entities.Vote, error) {
	voterID = strings.TrimSpace(voterID)
	if voterID == "" {
		return entities.Vote{}, domainerrors.ErrInvalidInput
	}
	proposal, err := q.GetProposal(ctx, daoID, sequence)
	if err != nil {
		return entities.Vote{}, err
	}
	return q.Reader.GetVote(ctx, voterID, proposal.ProposalID)
}

// ListVotes returns a proposal's votes in creation order.
func (q LedgerQueries) ListVotes(ctx context.Context, daoID string, sequence uint32) ([]entities.Vote, error) {
	proposal, err := q.GetProposal(ctx, daoID, sequence)
	if err != nil {
		return nil, err
	}
	return q.Reader.ListVotes(ctx, proposal.ProposalID)
}

// ProposalResult reports the proposal's tallies together with per-side voter
// counts and the current outcome.
func (q LedgerQueries) ProposalResult(ctx context.Context, daoID string, sequence uint32) (entities.ProposalResult, error) {
	proposal, err := q.GetProposal(ctx, daoID, sequence)
	if err != nil {
		return entities.ProposalResult{}, err
	}
	votes, err := q.Reader.ListVotes(ctx, proposal.ProposalID)
	if err != nil {
		return entities.ProposalResult{}, err
	}
	result := entities.ProposalResult{
		Proposal:   proposal,
		VoterCount: len(votes),
		Outcome:    entities.OutcomeOf(proposal.YesVoteCount, proposal.NoVoteCount),
	}
	for _, vote := range votes {
		switch vote.VoteType {
		case entities.VoteTypeYes:
			result.YesVoters++
		case entities.VoteTypeNo:
			result.NoVoters++
		}
	}
	return result, nil
}
