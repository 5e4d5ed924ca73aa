package entities

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

type VoteType string

const (
	VoteTypeYes VoteType = "yes"
	VoteTypeNo  VoteType = "no"
)

// ParseVoteType accepts the named form and the numeric codes used by the
// on-chain program (1 = yes, 0 = no).
func ParseVoteType(raw string) (VoteType, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "1":
		return VoteTypeYes, true
	case "no", "0":
		return VoteTypeNo, true
	default:
		return "", false
	}
}

func (t VoteType) Valid() bool {
	return t == VoteTypeYes || t == VoteTypeNo
}

// DAO is a named voting organization. ProposalCount only grows and doubles as
// the next proposal sequence.
type DAO struct {
	DAOID         string
	Name          string
	Authority     string
	ProposalCount uint32
	CreatedAt     time.Time
}

// DAOIDFor derives the stable DAO identifier for an authority. One authority
// owns at most one DAO.
func DAOIDFor(authority string) string {
	sum := sha256.Sum256([]byte("dao\x00" + strings.TrimSpace(authority)))
	return hex.EncodeToString(sum[:])
}

type Proposal struct {
	ProposalID   string
	DAOID        string
	Sequence     uint32
	Authority    string
	Metadata     string
	YesVoteCount uint64
	NoVoteCount  uint64
	CreatedAt    time.Time
}

// ProposalIDFor joins the owning DAO and the sequence index into the
// proposal's permanent identifier.
func ProposalIDFor(daoID string, sequence uint32) string {
	return strings.TrimSpace(daoID) + "/" + strconv.FormatUint(uint64(sequence), 10)
}

type Vote struct {
	VoteID       string
	VoterID      string
	ProposalID   string
	DAOID        string
	Sequence     uint32
	VoteType     VoteType
	VoteCredits  uint64
	TokenBalance uint64
	CreatedAt    time.Time
}

type Outcome string

const (
	OutcomePassing Outcome = "passing"
	OutcomeFailing Outcome = "failing"
	OutcomeTied    Outcome = "tied"
)

// ProposalResult is the read model for a proposal's current standing.
type ProposalResult struct {
	Proposal   Proposal
	VoterCount int
	YesVoters  int
	NoVoters   int
	Outcome    Outcome
}

func OutcomeOf(yes uint64, no uint64) Outcome {
	switch {
	case yes > no:
		return OutcomePassing
	case no > yes:
		return OutcomeFailing
	default:
		return OutcomeTied
	}
}
