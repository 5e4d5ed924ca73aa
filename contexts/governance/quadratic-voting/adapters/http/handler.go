package httpadapter

import (
	"context"
	"log/slog"

	"quadvote/contexts/governance/quadratic-voting/application/commands"
	"quadvote/contexts/governance/quadratic-voting/application/queries"
	"quadvote/contexts/governance/quadratic-voting/domain/entities"
	httptransport "quadvote/contexts/governance/quadratic-voting/transport/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "quadvote/contexts/governance/quadratic-voting"

type Handler struct {
	Ledger  commands.LedgerUseCase
	Queries queries.LedgerQueries
	Logger  *slog.Logger
}

// CreateDAOHandler godoc
// @Summary Create a DAO
// @Description Registers a DAO owned by the authenticated caller. One DAO per authority.
// @Tags quadratic-voting
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body httptransport.CreateDAORequest true "DAO payload"
// @Success 201 {object} httptransport.DAOResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Router /v1/daos [post]
func (h Handler) CreateDAOHandler(
	ctx context.Context,
	credential string,
	req httptransport.CreateDAORequest,
) (httptransport.DAOResponse, error) {
	ctx, span := startSpan(ctx, "ledger.CreateDAO")
	defer span.End()

	dao, err := h.Ledger.CreateDAO(ctx, commands.CreateDAOCommand{
		Credential: credential,
		AdminID:    req.AdminID,
		Name:       req.Name,
	})
	if err != nil {
		return httptransport.DAOResponse{}, recordError(span, err)
	}
	span.SetAttributes(attribute.String("dao.id", dao.DAOID))
	return mapDAO(dao), nil
}

// GetDAOHandler godoc
// @Summary Get a DAO
// @Tags quadratic-voting
// @Produce json
// @Param dao_id path string true "DAO id"
// @Success 200 {object} httptransport.DAOResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /v1/daos/{dao_id} [get]
func (h Handler) GetDAOHandler(ctx context.Context, daoID string) (httptransport.DAOResponse, error) {
	ctx, span := startSpan(ctx, "ledger.GetDAO", attribute.String("dao.id", daoID))
	defer span.End()

	dao, err := h.Queries.GetDAO(ctx, daoID)
	if err != nil {
		return httptransport.DAOResponse{}, recordError(span, err)
	}
	return mapDAO(dao), nil
}

// GetDAOByAuthorityHandler godoc
// @Summary Find the DAO owned by an authority
// @Tags quadratic-voting
// @Produce json
// @Param authority query string true "Authority identity"
// @Success 200 {object} httptransport.DAOResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /v1/daos [get]
func (h Handler) GetDAOByAuthorityHandler(ctx context.Context, authority string) (httptransport.DAOResponse, error) {
	ctx, span := startSpan(ctx, "ledger.GetDAOByAuthority")
	defer span.End()

	dao, err := h.Queries.GetDAOByAuthority(ctx, authority)
	if err != nil {
		return httptransport.DAOResponse{}, recordError(span, err)
	}
	return mapDAO(dao), nil
}

// CreateProposalHandler godoc
// @Summary Create a proposal
// @Description Opens the next proposal under a DAO at the DAO's current proposal count.
// @Tags quadratic-voting
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param dao_id path string true "DAO id"
// @Param request body httptransport.CreateProposalRequest true "Proposal payload"
// @Success 201 {object} httptransport.ProposalResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 422 {object} httptransport.ErrorResponse
// @Router /v1/daos/{dao_id}/proposals [post]
func (h Handler) CreateProposalHandler(
	ctx context.Context,
	credential string,
	daoID string,
	req httptransport.CreateProposalRequest,
) (httptransport.ProposalResponse, error) {
	ctx, span := startSpan(ctx, "ledger.CreateProposal", attribute.String("dao.id", daoID))
	defer span.End()

	proposal, err := h.Ledger.CreateProposal(ctx, commands.CreateProposalCommand{
		Credential: credential,
		AdminID:    req.AdminID,
		DAOID:      daoID,
		Metadata:   req.Metadata,
	})
	if err != nil {
		return httptransport.ProposalResponse{}, recordError(span, err)
	}
	span.SetAttributes(attribute.Int64("proposal.sequence", int64(proposal.Sequence)))
	return mapProposal(proposal), nil
}

// GetProposalHandler godoc
// @Summary Get a proposal
// @Tags quadratic-voting
// @Produce json
// @Param dao_id path string true "DAO id"
// @Param sequence path int true "Proposal sequence index"
// @Success 200 {object} httptransport.ProposalResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /v1/daos/{dao_id}/proposals/{sequence} [get]
func (h Handler) GetProposalHandler(ctx context.Context, daoID string, sequence uint32) (httptransport.ProposalResponse, error) {
	ctx, span := startSpan(ctx, "ledger.GetProposal",
		attribute.String("dao.id", daoID),
		attribute.Int64("proposal.sequence", int64(sequence)),
	)
	defer span.End()

	proposal, err := h.Queries.GetProposal(ctx, daoID, sequence)
	if err != nil {
		return httptransport.ProposalResponse{}, recordError(span, err)
	}
	return mapProposal(proposal), nil
}

// ListProposalsHandler godoc
// @Summary List a DAO's proposals
// @Tags quadratic-voting
// @Produce json
// @Param dao_id path string true "DAO id"
// @Success 200 {object} httptransport.ListProposalsResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /v1/daos/{dao_id}/proposals [get]
func (h Handler) ListProposalsHandler(ctx context.Context, daoID string) (httptransport.ListProposalsResponse, error) {
	ctx, span := startSpan(ctx, "ledger.ListProposals", attribute.String("dao.id", daoID))
	defer span.End()

	proposals, err := h.Queries.ListProposals(ctx, daoID)
	if err != nil {
		return httptransport.ListProposalsResponse{}, recordError(span, err)
	}
	items := make([]httptransport.ProposalResponse, 0, len(proposals))
	for _, proposal := range proposals {
		items = append(items, mapProposal(proposal))
	}
	return httptransport.ListProposalsResponse{Items: items}, nil
}

// ProposalResultHandler godoc
// @Summary Get a proposal's tally and outcome
// @Tags quadratic-voting
// @Produce json
// @Param dao_id path string true "DAO id"
// @Param sequence path int true "Proposal sequence index"
// @Success 200 {object} httptransport.ProposalResultResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /v1/daos/{dao_id}/proposals/{sequence}/result [get]
func (h Handler) ProposalResultHandler(ctx context.Context, daoID string, sequence uint32) (httptransport.ProposalResultResponse, error) {
	ctx, span := startSpan(ctx, "ledger.ProposalResult",
		attribute.String("dao.id", daoID),
		attribute.Int64("proposal.sequence", int64(sequence)),
	)
	defer span.End()

	result, err := h.Queries.ProposalResult(ctx, daoID, sequence)
	if err != nil {
		return httptransport.ProposalResultResponse{}, recordError(span, err)
	}
	return httptransport.ProposalResultResponse{
		Proposal:   mapProposal(result.Proposal),
		VoterCount: result.VoterCount,
		YesVoters:  result.YesVoters,
		NoVoters:   result.NoVoters,
		Outcome:    string(result.Outcome),
	}, nil
}

// CastVoteHandler godoc
// @Summary Cast a quadratic vote
// @Description Records one vote per voter and proposal weighted by floor(sqrt(balance)).
// @Tags quadratic-voting
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param dao_id path string true "DAO id"
// @Param sequence path int true "Proposal sequence index"
// @Param request body httptransport.CastVoteRequest true "Vote payload"
// @Success 201 {object} httptransport.CastVoteResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 422 {object} httptransport.ErrorResponse
// @Failure 424 {object} httptransport.ErrorResponse
// @Router /v1/daos/{dao_id}/proposals/{sequence}/votes [post]
func (h Handler) CastVoteHandler(
	ctx context.Context,
	credential string,
	daoID string,
	sequence uint32,
	req httptransport.CastVoteRequest,
) (httptransport.CastVoteResponse, error) {
	ctx, span := startSpan(ctx, "ledger.CastVote",
		attribute.String("dao.id", daoID),
		attribute.Int64("proposal.sequence", int64(sequence)),
	)
	defer span.End()

	// An unparsable code stays empty; CastVote rejects it after authenticating.
	voteType, _ := entities.ParseVoteType(string(req.VoteType))
	result, err := h.Ledger.CastVote(ctx, commands.CastVoteCommand{
		Credential: credential,
		VoterID:    req.VoterID,
		DAOID:      daoID,
		Sequence:   sequence,
		VoteType:   voteType,
	})
	if err != nil {
		return httptransport.CastVoteResponse{}, recordError(span, err)
	}
	span.SetAttributes(
		attribute.String("vote.type", string(result.Vote.VoteType)),
		attribute.Int64("vote.credits", int64(result.Vote.VoteCredits)),
	)
	return httptransport.CastVoteResponse{
		Vote:     mapVote(result.Vote),
		Proposal: mapProposal(result.Proposal),
	}, nil
}

// GetVoteHandler godoc
// @Summary Get a voter's vote on a proposal
// @Tags quadratic-voting
// @Produce json
// @Param dao_id path string true "DAO id"
// @Param sequence path int true "Proposal sequence index"
// @Param voter_id path string true "Voter id"
// @Success 200 {object} httptransport.VoteResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /v1/daos/{dao_id}/proposals/{sequence}/votes/{voter_id} [get]
func (h Handler) GetVoteHandler(
	ctx context.Context,
	daoID string,
	sequence uint32,
	voterID string,
) (httptransport.VoteResponse, error) {
	ctx, span := startSpan(ctx, "ledger.GetVote",
		attribute.String("dao.id", daoID),
		attribute.Int64("proposal.sequence", int64(sequence)),
	)
	defer span.End()

	vote, err := h.Queries.GetVote(ctx, voterID, daoID, sequence)
	if err != nil {
		return httptransport.VoteResponse{}, recordError(span, err)
	}
	return mapVote(vote), nil
}

// ListVotesHandler godoc
// @Summary List a proposal's votes
// @Tags quadratic-voting
// @Produce json
// @Param dao_id path string true "DAO id"
// @Param sequence path int true "Proposal sequence index"
// @Success 200 {object} httptransport.ListVotesResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /v1/daos/{dao_id}/proposals/{sequence}/votes [get]
func (h Handler) ListVotesHandler(ctx context.Context, daoID string, sequence uint32) (httptransport.ListVotesResponse, error) {
	ctx, span := startSpan(ctx, "ledger.ListVotes",
		attribute.String("dao.id", daoID),
		attribute.Int64("proposal.sequence", int64(sequence)),
	)
	defer span.End()

	votes, err := h.Queries.ListVotes(ctx, daoID, sequence)
	if err != nil {
		return httptransport.ListVotesResponse{}, recordError(span, err)
	}
	items := make([]httptransport.VoteResponse, 0, len(votes))
	for _, vote := range votes {
		items = append(items, mapVote(vote))
	}
	return httptransport.ListVotesResponse{Items: items}, nil
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

func recordError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func mapDAO(dao entities.DAO) httptransport.DAOResponse {
	return httptransport.DAOResponse{
		DAOID:         dao.DAOID,
		Name:          dao.Name,
		Authority:     dao.Authority,
		ProposalCount: dao.ProposalCount,
		CreatedAt:     dao.CreatedAt,
	}
}

func mapProposal(proposal entities.Proposal) httptransport.ProposalResponse {
	return httptransport.ProposalResponse{
		ProposalID:   proposal.ProposalID,
		DAOID:        proposal.DAOID,
		Sequence:     proposal.Sequence,
		Authority:    proposal.Authority,
		Metadata:     proposal.Metadata,
		YesVoteCount: proposal.YesVoteCount,
		NoVoteCount:  proposal.NoVoteCount,
		CreatedAt:    proposal.CreatedAt,
	}
}

func mapVote(vote entities.Vote) httptransport.VoteResponse {
	return httptransport.VoteResponse{
		VoteID:       vote.VoteID,
		VoterID:      vote.VoterID,
		ProposalID:   vote.ProposalID,
		DAOID:        vote.DAOID,
		Sequence:     vote.Sequence,
		VoteType:     string(vote.VoteType),
		VoteCredits:  vote.VoteCredits,
		TokenBalance: vote.TokenBalance,
		CreatedAt:    vote.CreatedAt,
	}
}
