package memory

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"quadvote/contexts/governance/quadratic-voting/domain/entities"
	domainerrors "quadvote/contexts/governance/quadratic-voting/domain/errors"
	"quadvote/contexts/governance/quadratic-voting/ports"
)

func testEnvelope[T any](eventType string) ports.EnvelopeFunc[T] {
	return func(T) (ports.EventEnvelope, error) {
		return ports.EventEnvelope{
			EventID:    "",
			EventType:  eventType,
			OccurredAt: time.Now().UTC(),
		}, nil
	}
}

func seedDAO(t *testing.T, store *Store, authority string) entities.DAO {
	t.Helper()
	dao, err := store.CreateDAO(context.Background(), entities.DAO{
		DAOID:     entities.DAOIDFor(authority),
		Name:      "Treasury",
		Authority: authority,
	}, testEnvelope[entities.DAO]("dao.created"))
	if err != nil {
		t.Fatalf("create dao failed: %v", err)
	}
	return dao
}

func TestCreateDAORejectsSecondDAOForAuthority(t *testing.T) {
	store := NewStore()
	seedDAO(t, store, "admin-1")
	_, err := store.CreateDAO(context.Background(), entities.DAO{
		DAOID:     entities.DAOIDFor("admin-1"),
		Name:      "Other",
		Authority: "admin-1",
	}, nil)
	if !errors.Is(err, domainerrors.ErrDAOAlreadyExists) {
		t.Fatalf("expected dao already exists, got %v", err)
	}
	pending, _ := store.ListPendingOutbox(context.Background(), 10)
	if len(pending) != 1 {
		t.Fatalf("expected one outbox row, got %d", len(pending))
	}
}

func TestCreateProposalAssignsSequentialIndexes(t *testing.T) {
	store := NewStore()
	dao := seedDAO(t, store, "admin-1")
	for want := uint32(0); want < 3; want++ {
		proposal, err := store.CreateProposal(context.Background(), ports.NewProposal{
			DAOID:     dao.DAOID,
			Authority: "admin-1",
			Metadata:  "proposal",
		}, testEnvelope[entities.Proposal]("proposal.created"))
		if err != nil {
			t.Fatalf("create proposal failed: %v", err)
		}
		if proposal.Sequence != want {
			t.Fatalf("expected sequence %d, got %d", want, proposal.Sequence)
		}
	}
	reloaded, _ := store.GetDAO(context.Background(), dao.DAOID)
	if reloaded.ProposalCount != 3 {
		t.Fatalf("expected proposal count 3, got %d", reloaded.ProposalCount)
	}
	proposals, _ := store.ListProposals(context.Background(), dao.DAOID)
	if len(proposals) != 3 || proposals[2].Sequence != 2 {
		t.Fatalf("unexpected proposal listing %+v", proposals)
	}
}

func TestConcurrentCreateProposalAssignsDistinctSequences(t *testing.T) {
	store := NewStore()
	dao := seedDAO(t, store, "admin-1")

	const creators = 64
	var wg sync.WaitGroup
	sequences := make([]uint32, creators)
	errs := make([]error, creators)
	for i := 0; i < creators; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			proposal, err := store.CreateProposal(context.Background(), ports.NewProposal{
				DAOID:     dao.DAOID,
				Authority: "admin-1",
				Metadata:  "parallel",
			}, testEnvelope[entities.Proposal]("proposal.created"))
			sequences[i], errs[i] = proposal.Sequence, err
		}(i)
	}
	wg.Wait()

	seen := make(map[uint32]bool, creators)
	for i := 0; i < creators; i++ {
		if errs[i] != nil {
			t.Fatalf("create proposal %d failed: %v", i, errs[i])
		}
		if sequences[i] >= creators || seen[sequences[i]] {
			t.Fatalf("sequence %d out of range or assigned twice", sequences[i])
		}
		seen[sequences[i]] = true
	}
	reloaded, _ := store.GetDAO(context.Background(), dao.DAOID)
	if reloaded.ProposalCount != creators {
		t.Fatalf("expected proposal count %d, got %d", creators, reloaded.ProposalCount)
	}
	proposals, _ := store.ListProposals(context.Background(), dao.DAOID)
	if len(proposals) != creators {
		t.Fatalf("expected %d proposals, got %d", creators, len(proposals))
	}
}

func TestCreateProposalLeavesCountOnRejection(t *testing.T) {
	store := NewStore()
	dao := seedDAO(t, store, "admin-1")
	_, err := store.CreateProposal(context.Background(), ports.NewProposal{
		DAOID: dao.DAOID,
		Authorize: func(entities.DAO) error {
			return domainerrors.ErrForbidden
		},
	}, nil)
	if !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	store.mu.Lock()
	full := store.daos[dao.DAOID]
	full.ProposalCount = math.MaxUint32
	store.daos[dao.DAOID] = full
	store.mu.Unlock()
	if _, err := store.CreateProposal(context.Background(), ports.NewProposal{DAOID: dao.DAOID}, nil); !errors.Is(err, domainerrors.ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}

	failing := func(entities.Proposal) (ports.EventEnvelope, error) {
		return ports.EventEnvelope{}, errors.New("envelope failed")
	}
	store.mu.Lock()
	full.ProposalCount = 4
	store.daos[dao.DAOID] = full
	store.mu.Unlock()
	if _, err := store.CreateProposal(context.Background(), ports.NewProposal{DAOID: dao.DAOID}, failing); err == nil {
		t.Fatalf("expected envelope failure")
	}
	reloaded, _ := store.GetDAO(context.Background(), dao.DAOID)
	if reloaded.ProposalCount != 4 {
		t.Fatalf("expected untouched proposal count, got %d", reloaded.ProposalCount)
	}
}

func TestCastVoteAddsCreditsAndRejectsDuplicates(t *testing.T) {
	store := NewStore()
	dao := seedDAO(t, store, "admin-1")
	proposal, err := store.CreateProposal(context.Background(), ports.NewProposal{DAOID: dao.DAOID}, nil)
	if err != nil {
		t.Fatalf("create proposal failed: %v", err)
	}

	vote, updated, err := store.CastVote(context.Background(), ports.NewVote{
		VoterID:      "voter-1",
		DAOID:        dao.DAOID,
		Sequence:     proposal.Sequence,
		VoteType:     entities.VoteTypeYes,
		VoteCredits:  10,
		TokenBalance: 100,
	}, testEnvelope[entities.Vote]("vote.cast"))
	if err != nil {
		t.Fatalf("cast vote failed: %v", err)
	}
	if vote.ProposalID != proposal.ProposalID || updated.YesVoteCount != 10 {
		t.Fatalf("unexpected vote %+v / proposal %+v", vote, updated)
	}

	_, _, err = store.CastVote(context.Background(), ports.NewVote{
		VoterID:     "voter-1",
		DAOID:       dao.DAOID,
		Sequence:    proposal.Sequence,
		VoteType:    entities.VoteTypeNo,
		VoteCredits: 3,
	}, nil)
	if !errors.Is(err, domainerrors.ErrDuplicateVote) {
		t.Fatalf("expected duplicate vote, got %v", err)
	}
	reloaded, _ := store.GetProposal(context.Background(), dao.DAOID, proposal.Sequence)
	if reloaded.YesVoteCount != 10 || reloaded.NoVoteCount != 0 {
		t.Fatalf("duplicate vote changed tallies: %+v", reloaded)
	}
}

func TestCastVoteUnknownTargets(t *testing.T) {
	store := NewStore()
	dao := seedDAO(t, store, "admin-1")
	_, _, err := store.CastVote(context.Background(), ports.NewVote{
		VoterID: "voter-1", DAOID: "missing", VoteType: entities.VoteTypeYes,
	}, nil)
	if !errors.Is(err, domainerrors.ErrDAONotFound) {
		t.Fatalf("expected dao not found, got %v", err)
	}
	_, _, err = store.CastVote(context.Background(), ports.NewVote{
		VoterID: "voter-1", DAOID: dao.DAOID, Sequence: 7, VoteType: entities.VoteTypeYes,
	}, nil)
	if !errors.Is(err, domainerrors.ErrProposalNotFound) || !errors.Is(err, domainerrors.ErrNotFound) {
		t.Fatalf("expected proposal not found, got %v", err)
	}
}

func TestCastVoteOverflowLeavesNoVote(t *testing.T) {
	store := NewStore()
	dao := seedDAO(t, store, "admin-1")
	proposal, _ := store.CreateProposal(context.Background(), ports.NewProposal{DAOID: dao.DAOID}, nil)
	store.mu.Lock()
	saturated := store.proposals[proposal.ProposalID]
	saturated.NoVoteCount = math.MaxUint64
	store.proposals[proposal.ProposalID] = saturated
	store.mu.Unlock()

	_, _, err := store.CastVote(context.Background(), ports.NewVote{
		VoterID: "voter-1", DAOID: dao.DAOID, Sequence: 0, VoteType: entities.VoteTypeNo, VoteCredits: 1,
	}, nil)
	if !errors.Is(err, domainerrors.ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	if _, err := store.GetVote(context.Background(), "voter-1", proposal.ProposalID); !errors.Is(err, domainerrors.ErrVoteNotFound) {
		t.Fatalf("expected no stored vote, got %v", err)
	}
}

func TestConcurrentDuplicateVotesSucceedOnce(t *testing.T) {
	store := NewStore()
	dao := seedDAO(t, store, "admin-1")
	proposal, _ := store.CreateProposal(context.Background(), ports.NewProposal{DAOID: dao.DAOID}, nil)

	const attempts = 32
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		successes  int
		duplicates int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := store.CastVote(context.Background(), ports.NewVote{
				VoterID: "voter-1", DAOID: dao.DAOID, Sequence: proposal.Sequence,
				VoteType: entities.VoteTypeYes, VoteCredits: 2,
			}, nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domainerrors.ErrDuplicateVote):
				duplicates++
			}
		}()
	}
	wg.Wait()
	if successes != 1 || duplicates != attempts-1 {
		t.Fatalf("expected 1 success and %d duplicates, got %d/%d", attempts-1, successes, duplicates)
	}
	reloaded, _ := store.GetProposal(context.Background(), dao.DAOID, proposal.Sequence)
	if reloaded.YesVoteCount != 2 {
		t.Fatalf("expected yes tally 2, got %d", reloaded.YesVoteCount)
	}
}

func TestOutboxOrderingAndPublish(t *testing.T) {
	store := NewStore()
	dao := seedDAO(t, store, "admin-1")
	if _, err := store.CreateProposal(context.Background(), ports.NewProposal{DAOID: dao.DAOID},
		testEnvelope[entities.Proposal]("proposal.created")); err != nil {
		t.Fatalf("create proposal failed: %v", err)
	}
	pending, err := store.ListPendingOutbox(context.Background(), 10)
	if err != nil || len(pending) != 2 {
		t.Fatalf("expected 2 pending rows, got %d (%v)", len(pending), err)
	}
	if pending[0].EventType != "dao.created" || pending[1].EventType != "proposal.created" {
		t.Fatalf("unexpected outbox order %s, %s", pending[0].EventType, pending[1].EventType)
	}
	if err := store.MarkOutboxPublished(context.Background(), pending[0].OutboxID, time.Now()); err != nil {
		t.Fatalf("mark published failed: %v", err)
	}
	pending, _ = store.ListPendingOutbox(context.Background(), 10)
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending row, got %d", len(pending))
	}
	if err := store.MarkOutboxPublished(context.Background(), "missing", time.Now()); !errors.Is(err, domainerrors.ErrOutboxConflict) {
		t.Fatalf("expected outbox conflict, got %v", err)
	}
}

func TestBalancesAndCredentials(t *testing.T) {
	store := NewStore()
	store.SetBalance("voter-1", 81)
	store.SetCredential("token-1", "voter-1")

	balance, found, err := store.BalanceOf(context.Background(), "voter-1")
	if err != nil || !found || balance != 81 {
		t.Fatalf("unexpected balance %d/%v/%v", balance, found, err)
	}
	if _, found, _ := store.BalanceOf(context.Background(), "voter-2"); found {
		t.Fatalf("expected missing balance")
	}
	identity, err := store.Authenticate(context.Background(), "token-1")
	if err != nil || identity != "voter-1" {
		t.Fatalf("unexpected identity %q (%v)", identity, err)
	}
	if _, err := store.Authenticate(context.Background(), "forged"); !errors.Is(err, domainerrors.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}
