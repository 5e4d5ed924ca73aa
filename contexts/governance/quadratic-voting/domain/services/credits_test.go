package services

import (
	"errors"
	"math"
	"testing"

	"quadvote/contexts/governance/quadratic-voting/domain/entities"
	domainerrors "quadvote/contexts/governance/quadratic-voting/domain/errors"
)

func TestVoteCreditsKnownBalances(t *testing.T) {
	cases := map[uint64]uint64{
		0:     0,
		1:     1,
		2:     1,
		3:     1,
		4:     2,
		81:    9,
		99:    9,
		100:   10,
		10000: 100,
	}
	for balance, want := range cases {
		if got := VoteCredits(balance); got != want {
			t.Fatalf("credits(%d) = %d, want %d", balance, got, want)
		}
	}
}

func TestISqrtLargeMagnitudes(t *testing.T) {
	if got := ISqrt(math.MaxUint64); got != math.MaxUint32 {
		t.Fatalf("isqrt(max uint64) = %d, want %d", got, uint64(math.MaxUint32))
	}
	root := uint64(math.MaxUint32)
	if got := ISqrt(root * root); got != root {
		t.Fatalf("isqrt(%d^2) = %d", root, got)
	}
	if got := ISqrt(root*root - 1); got != root-1 {
		t.Fatalf("isqrt(%d^2-1) = %d, want %d", root, got, root-1)
	}
	// float64 rounds 2^53+1 and its neighbours; integer math must not.
	big := uint64(1<<53) + 1
	if got := ISqrt(big); got != 94906265 {
		t.Fatalf("isqrt(2^53+1) = %d, want 94906265", got)
	}
}

func TestISqrtIsFloorOfRoot(t *testing.T) {
	for n := uint64(0); n < 5000; n++ {
		r := ISqrt(n)
		if r*r > n || (r+1)*(r+1) <= n {
			t.Fatalf("isqrt(%d) = %d is not the floor root", n, r)
		}
	}
}

func TestNextSequenceOverflows(t *testing.T) {
	seq, next, err := NextSequence(0)
	if err != nil || seq != 0 || next != 1 {
		t.Fatalf("expected (0, 1), got (%d, %d, %v)", seq, next, err)
	}
	if _, _, err := NextSequence(math.MaxUint32); !errors.Is(err, domainerrors.ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}

func TestApplyVoteAddsCreditsToChosenTally(t *testing.T) {
	proposal := entities.Proposal{YesVoteCount: 3, NoVoteCount: 4}
	updated, err := ApplyVote(proposal, entities.VoteTypeYes, 9)
	if err != nil {
		t.Fatalf("apply yes: %v", err)
	}
	if updated.YesVoteCount != 12 || updated.NoVoteCount != 4 {
		t.Fatalf("unexpected tallies %d/%d", updated.YesVoteCount, updated.NoVoteCount)
	}
	updated, err = ApplyVote(updated, entities.VoteTypeNo, 1)
	if err != nil {
		t.Fatalf("apply no: %v", err)
	}
	if updated.NoVoteCount != 5 {
		t.Fatalf("expected no tally 5, got %d", updated.NoVoteCount)
	}
}

func TestApplyVoteRejectsOverflowAndUnknownType(t *testing.T) {
	proposal := entities.Proposal{YesVoteCount: math.MaxUint64}
	if _, err := ApplyVote(proposal, entities.VoteTypeYes, 1); !errors.Is(err, domainerrors.ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	if _, err := ApplyVote(entities.Proposal{}, entities.VoteType("abstain"), 1); !errors.Is(err, domainerrors.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestBoundedText(t *testing.T) {
	if got, err := BoundedText("  Treasury  ", 32); err != nil || got != "Treasury" {
		t.Fatalf("expected trimmed name, got %q, %v", got, err)
	}
	if _, err := BoundedText("   ", 32); !errors.Is(err, domainerrors.ErrInvalidInput) {
		t.Fatalf("expected invalid input for blank value, got %v", err)
	}
	if _, err := BoundedText("abcdef", 5); !errors.Is(err, domainerrors.ErrInvalidInput) {
		t.Fatalf("expected invalid input for oversized value, got %v", err)
	}
}

func TestProposalPolicy(t *testing.T) {
	dao := entities.DAO{Authority: "admin-1"}
	if err := ProposalPolicyOpen.AuthorizeProposal(dao, "someone-else"); err != nil {
		t.Fatalf("open policy should allow any caller, got %v", err)
	}
	if err := ProposalPolicyAuthorityOnly.AuthorizeProposal(dao, "someone-else"); !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := ProposalPolicyAuthorityOnly.AuthorizeProposal(dao, "admin-1"); err != nil {
		t.Fatalf("authority should be allowed, got %v", err)
	}
	if _, ok := ParseProposalPolicy("members"); ok {
		t.Fatalf("expected unknown policy to be rejected")
	}
}
