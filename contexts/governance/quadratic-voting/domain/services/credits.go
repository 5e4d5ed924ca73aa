package services

import (
	"math"
	"math/bits"

	"quadvote/contexts/governance/quadratic-voting/domain/entities"
	domainerrors "quadvote/contexts/governance/quadratic-voting/domain/errors"
)

// VoteCredits returns floor(sqrt(balance)) computed on integers only, so the
// result is identical on every platform regardless of magnitude.
func VoteCredits(balance uint64) uint64 {
	return ISqrt(balance)
}

// ISqrt is the integer square root, floor(sqrt(n)), via Newton's iteration
// seeded above the root.
func ISqrt(n uint64) uint64 {
	if n < 2 {
		return n
	}
	// 2^ceil(len/2) is always >= sqrt(n), so the iteration decreases
	// monotonically until it settles on the floor.
	x := uint64(1) << ((bits.Len64(n) + 1) / 2)
	for {
		y := (x + n/x) / 2
		if y >= x {
			return x
		}
		x = y
	}
}

// NextSequence returns the sequence to assign to a new proposal and the
// post-increment proposal count.
func NextSequence(proposalCount uint32) (uint32, uint32, error) {
	if proposalCount == math.MaxUint32 {
		return 0, 0, domainerrors.ErrOverflow
	}
	return proposalCount, proposalCount + 1, nil
}

// ApplyVote adds credits to the tally selected by voteType without wrapping.
func ApplyVote(proposal entities.Proposal, voteType entities.VoteType, credits uint64) (entities.Proposal, error) {
	switch voteType {
	case entities.VoteTypeYes:
		sum, carry := bits.Add64(proposal.YesVoteCount, credits, 0)
		if carry != 0 {
			return entities.Proposal{}, domainerrors.ErrOverflow
		}
		proposal.YesVoteCount = sum
	case entities.VoteTypeNo:
		sum, carry := bits.Add64(proposal.NoVoteCount, credits, 0)
		if carry != 0 {
			return entities.Proposal{}, domainerrors.ErrOverflow
		}
		proposal.NoVoteCount = sum
	default:
		return entities.Proposal{}, domainerrors.ErrInvalidInput
	}
	return proposal, nil
}
