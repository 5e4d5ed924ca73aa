package http

import (
	"encoding/json"
	"time"
)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreateDAORequest struct {
	AdminID string `json:"admin_id,omitempty"`
	Name    string `json:"name"`
}

type DAOResponse struct {
	DAOID         string    `json:"dao_id"`
	Name          string    `json:"name"`
	Authority     string    `json:"authority"`
	ProposalCount uint32    `json:"proposal_count"`
	CreatedAt     time.Time `json:"created_at"`
}

type CreateProposalRequest struct {
	AdminID  string `json:"admin_id,omitempty"`
	Metadata string `json:"metadata"`
}

type ProposalResponse struct {
	ProposalID   string    `json:"proposal_id"`
	DAOID        string    `json:"dao_id"`
	Sequence     uint32    `json:"sequence"`
	Authority    string    `json:"authority"`
	Metadata     string    `json:"metadata"`
	YesVoteCount uint64    `json:"yes_vote_count"`
	NoVoteCount  uint64    `json:"no_vote_count"`
	CreatedAt    time.Time `json:"created_at"`
}

type ListProposalsResponse struct {
	Items []ProposalResponse `json:"items"`
}

type CastVoteRequest struct {
	VoterID  string       `json:"voter_id,omitempty"`
	VoteType VoteTypeCode `json:"vote_type"`
}

// VoteTypeCode holds vote_type as sent on the wire: "yes"/"no", or the
// numeric codes 1/0 either bare or quoted.
type VoteTypeCode string

func (c *VoteTypeCode) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*c = VoteTypeCode(text)
		return nil
	}
	var code json.Number
	if err := json.Unmarshal(data, &code); err != nil {
		return err
	}
	*c = VoteTypeCode(code.String())
	return nil
}

type VoteResponse struct {
	VoteID       string    `json:"vote_id"`
	VoterID      string    `json:"voter_id"`
	ProposalID   string    `json:"proposal_id"`
	DAOID        string    `json:"dao_id"`
	Sequence     uint32    `json:"sequence"`
	VoteType     string    `json:"vote_type"`
	VoteCredits  uint64    `json:"vote_credits"`
	TokenBalance uint64    `json:"token_balance"`
	CreatedAt    time.Time `json:"created_at"`
}

type CastVoteResponse struct {
	Vote     VoteResponse     `json:"vote"`
	Proposal ProposalResponse `json:"proposal"`
}

type ListVotesResponse struct {
	Items []VoteResponse `json:"items"`
}

type ProposalResultResponse struct {
	Proposal   ProposalResponse `json:"proposal"`
	VoterCount int              `json:"voter_count"`
	YesVoters  int              `json:"yes_voters"`
	NoVoters   int              `json:"no_voters"`
	Outcome    string           `json:"outcome"`
}
