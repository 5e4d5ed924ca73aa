package sqlite

import (
	"context"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"quadvote/contexts/governance/quadratic-voting/domain/entities"
	domainerrors "quadvote/contexts/governance/quadratic-voting/domain/errors"
	"quadvote/contexts/governance/quadratic-voting/ports"

	"github.com/stretchr/testify/require"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "ledger.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func envelopeFor[T any](eventType string) ports.EnvelopeFunc[T] {
	return func(T) (ports.EventEnvelope, error) {
		return ports.EventEnvelope{EventType: eventType, OccurredAt: time.Now().UTC()}, nil
	}
}

func createDAO(t *testing.T, store *Store, authority string) entities.DAO {
	t.Helper()
	dao, err := store.CreateDAO(context.Background(), entities.DAO{
		DAOID:     entities.DAOIDFor(authority),
		Name:      "Treasury",
		Authority: authority,
		CreatedAt: time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC),
	}, envelopeFor[entities.DAO]("dao.created"))
	require.NoError(t, err)
	return dao
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(context.Background(), "", nil)
	require.Error(t, err)
}

func TestCreateDAORoundTripAndUniqueness(t *testing.T) {
	store := openTempStore(t)
	dao := createDAO(t, store, "admin-1")

	got, err := store.GetDAO(context.Background(), dao.DAOID)
	require.NoError(t, err)
	require.Equal(t, "Treasury", got.Name)
	require.Equal(t, uint32(0), got.ProposalCount)
	require.True(t, got.CreatedAt.Equal(dao.CreatedAt))

	byAuthority, err := store.GetDAOByAuthority(context.Background(), "admin-1")
	require.NoError(t, err)
	require.Equal(t, dao.DAOID, byAuthority.DAOID)

	_, err = store.CreateDAO(context.Background(), entities.DAO{
		DAOID:     entities.DAOIDFor("admin-1"),
		Name:      "Again",
		Authority: "admin-1",
	}, nil)
	require.ErrorIs(t, err, domainerrors.ErrDAOAlreadyExists)

	_, err = store.GetDAO(context.Background(), "missing")
	require.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestCreateProposalIncrementsCountAtomically(t *testing.T) {
	store := openTempStore(t)
	dao := createDAO(t, store, "admin-1")

	for i := 0; i < 3; i++ {
		proposal, err := store.CreateProposal(context.Background(), ports.NewProposal{
			DAOID:     dao.DAOID,
			Authority: "admin-1",
			Metadata:  "fund the grants round",
		}, envelopeFor[entities.Proposal]("proposal.created"))
		require.NoError(t, err)
		require.Equal(t, uint32(i), proposal.Sequence)
		require.Equal(t, entities.ProposalIDFor(dao.DAOID, uint32(i)), proposal.ProposalID)
	}

	_, err := store.CreateProposal(context.Background(), ports.NewProposal{
		DAOID: dao.DAOID,
		Authorize: func(entities.DAO) error {
			return domainerrors.ErrForbidden
		},
	}, nil)
	require.ErrorIs(t, err, domainerrors.ErrForbidden)

	reloaded, err := store.GetDAO(context.Background(), dao.DAOID)
	require.NoError(t, err)
	require.Equal(t, uint32(3), reloaded.ProposalCount)

	proposals, err := store.ListProposals(context.Background(), dao.DAOID)
	require.NoError(t, err)
	require.Len(t, proposals, 3)
	require.Equal(t, uint32(2), proposals[2].Sequence)

	_, err = store.CreateProposal(context.Background(), ports.NewProposal{DAOID: "missing"}, nil)
	require.ErrorIs(t, err, domainerrors.ErrDAONotFound)
}

func TestConcurrentCreateProposalAssignsDistinctSequences(t *testing.T) {
	store := openTempStore(t)
	dao := createDAO(t, store, "admin-1")

	const creators = 32
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
			}, envelopeFor[entities.Proposal]("proposal.created"))
			sequences[i], errs[i] = proposal.Sequence, err
		}(i)
	}
	wg.Wait()

	seen := make(map[uint32]bool, creators)
	for i := 0; i < creators; i++ {
		require.NoError(t, errs[i])
		require.Less(t, sequences[i], uint32(creators))
		require.False(t, seen[sequences[i]], "sequence %d assigned twice", sequences[i])
		seen[sequences[i]] = true
	}

	reloaded, err := store.GetDAO(context.Background(), dao.DAOID)
	require.NoError(t, err)
	require.Equal(t, uint32(creators), reloaded.ProposalCount)

	proposals, err := store.ListProposals(context.Background(), dao.DAOID)
	require.NoError(t, err)
	require.Len(t, proposals, creators)
}

func TestCreateProposalOverflowLeavesCount(t *testing.T) {
	store := openTempStore(t)
	dao := createDAO(t, store, "admin-1")
	_, err := store.sqlDB.Exec(`UPDATE daos SET proposal_count = ? WHERE dao_id = ?`, int64(math.MaxUint32), dao.DAOID)
	require.NoError(t, err)

	_, err = store.CreateProposal(context.Background(), ports.NewProposal{DAOID: dao.DAOID}, nil)
	require.ErrorIs(t, err, domainerrors.ErrOverflow)

	reloaded, err := store.GetDAO(context.Background(), dao.DAOID)
	require.NoError(t, err)
	require.Equal(t, uint32(math.MaxUint32), reloaded.ProposalCount)
}

func TestCastVoteTalliesAndRejectsDuplicates(t *testing.T) {
	store := openTempStore(t)
	dao := createDAO(t, store, "admin-1")
	proposal, err := store.CreateProposal(context.Background(), ports.NewProposal{DAOID: dao.DAOID}, nil)
	require.NoError(t, err)

	vote, updated, err := store.CastVote(context.Background(), ports.NewVote{
		VoteID:       "vote-1",
		VoterID:      "voter-1",
		DAOID:        dao.DAOID,
		Sequence:     proposal.Sequence,
		VoteType:     entities.VoteTypeYes,
		VoteCredits:  10,
		TokenBalance: 100,
	}, envelopeFor[entities.Vote]("vote.cast"))
	require.NoError(t, err)
	require.Equal(t, uint64(10), updated.YesVoteCount)
	require.Equal(t, uint64(100), vote.TokenBalance)

	_, _, err = store.CastVote(context.Background(), ports.NewVote{
		VoteID:      "vote-2",
		VoterID:     "voter-2",
		DAOID:       dao.DAOID,
		Sequence:    proposal.Sequence,
		VoteType:    entities.VoteTypeNo,
		VoteCredits: 3,
	}, nil)
	require.NoError(t, err)

	_, _, err = store.CastVote(context.Background(), ports.NewVote{
		VoteID:      "vote-3",
		VoterID:     "voter-1",
		DAOID:       dao.DAOID,
		Sequence:    proposal.Sequence,
		VoteType:    entities.VoteTypeNo,
		VoteCredits: 5,
	}, nil)
	require.ErrorIs(t, err, domainerrors.ErrDuplicateVote)

	reloaded, err := store.GetProposal(context.Background(), dao.DAOID, proposal.Sequence)
	require.NoError(t, err)
	require.Equal(t, uint64(10), reloaded.YesVoteCount)
	require.Equal(t, uint64(3), reloaded.NoVoteCount)

	votes, err := store.ListVotes(context.Background(), proposal.ProposalID)
	require.NoError(t, err)
	require.Len(t, votes, 2)
	require.Equal(t, "voter-1", votes[0].VoterID)

	stored, err := store.GetVote(context.Background(), "voter-2", proposal.ProposalID)
	require.NoError(t, err)
	require.Equal(t, entities.VoteTypeNo, stored.VoteType)

	_, err = store.GetVote(context.Background(), "voter-9", proposal.ProposalID)
	require.ErrorIs(t, err, domainerrors.ErrVoteNotFound)
}

func TestCastVoteOverflowRollsBack(t *testing.T) {
	store := openTempStore(t)
	dao := createDAO(t, store, "admin-1")
	proposal, err := store.CreateProposal(context.Background(), ports.NewProposal{DAOID: dao.DAOID}, nil)
	require.NoError(t, err)
	_, err = store.sqlDB.Exec(`UPDATE proposals SET yes_vote_count = ? WHERE proposal_id = ?`,
		int64(math.MaxInt64), proposal.ProposalID)
	require.NoError(t, err)

	_, _, err = store.CastVote(context.Background(), ports.NewVote{
		VoteID:      "vote-1",
		VoterID:     "voter-1",
		DAOID:       dao.DAOID,
		Sequence:    proposal.Sequence,
		VoteType:    entities.VoteTypeYes,
		VoteCredits: 1,
	}, envelopeFor[entities.Vote]("vote.cast"))
	require.ErrorIs(t, err, domainerrors.ErrOverflow)

	_, err = store.GetVote(context.Background(), "voter-1", proposal.ProposalID)
	require.ErrorIs(t, err, domainerrors.ErrVoteNotFound)
	pending, err := store.ListPendingOutbox(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1, "only dao.created should be pending")
}

func TestCastVoteUnknownProposal(t *testing.T) {
	store := openTempStore(t)
	dao := createDAO(t, store, "admin-1")
	_, _, err := store.CastVote(context.Background(), ports.NewVote{
		VoterID:  "voter-1",
		DAOID:    dao.DAOID,
		Sequence: 4,
		VoteType: entities.VoteTypeYes,
	}, nil)
	require.ErrorIs(t, err, domainerrors.ErrProposalNotFound)
}

func TestConcurrentVotesSerialize(t *testing.T) {
	store := openTempStore(t)
	dao := createDAO(t, store, "admin-1")
	proposal, err := store.CreateProposal(context.Background(), ports.NewProposal{DAOID: dao.DAOID}, nil)
	require.NoError(t, err)

	const voters = 8
	var wg sync.WaitGroup
	errs := make([]error, voters*2)
	for i := 0; i < voters*2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = store.CastVote(context.Background(), ports.NewVote{
				VoterID:     "voter-" + string(rune('a'+i%voters)),
				DAOID:       dao.DAOID,
				Sequence:    proposal.Sequence,
				VoteType:    entities.VoteTypeYes,
				VoteCredits: 1,
			}, nil)
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		require.ErrorIs(t, err, domainerrors.ErrDuplicateVote)
	}
	require.Equal(t, voters, successes)

	reloaded, err := store.GetProposal(context.Background(), dao.DAOID, proposal.Sequence)
	require.NoError(t, err)
	require.Equal(t, uint64(voters), reloaded.YesVoteCount)
}

func TestBalancesProjection(t *testing.T) {
	store := openTempStore(t)
	_, found, err := store.BalanceOf(context.Background(), "voter-1")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, store.SetBalance(context.Background(), "voter-1", 81, time.Time{}))
	require.NoError(t, store.SetBalance(context.Background(), "voter-1", 100, time.Time{}))
	balance, found, err := store.BalanceOf(context.Background(), "voter-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint64(100), balance)

	require.NoError(t, store.SetBalance(context.Background(), "voter-2", math.MaxUint64, time.Time{}))
	balance, found, err = store.BalanceOf(context.Background(), "voter-2")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint64(math.MaxUint64), balance)
}

func TestCastVoteKeepsFullRangeBalance(t *testing.T) {
	store := openTempStore(t)
	dao := createDAO(t, store, "admin-1")
	proposal, err := store.CreateProposal(context.Background(), ports.NewProposal{DAOID: dao.DAOID}, nil)
	require.NoError(t, err)

	vote, updated, err := store.CastVote(context.Background(), ports.NewVote{
		VoterID:      "whale",
		DAOID:        dao.DAOID,
		Sequence:     proposal.Sequence,
		VoteType:     entities.VoteTypeYes,
		VoteCredits:  math.MaxUint32,
		TokenBalance: math.MaxUint64,
	}, envelopeFor[entities.Vote]("vote.cast"))
	require.NoError(t, err)
	require.Equal(t, uint64(math.MaxUint64), vote.TokenBalance)
	require.Equal(t, uint64(math.MaxUint32), updated.YesVoteCount)

	stored, err := store.GetVote(context.Background(), "whale", proposal.ProposalID)
	require.NoError(t, err)
	require.Equal(t, uint64(math.MaxUint64), stored.TokenBalance)
}

func TestOutboxPublishLifecycle(t *testing.T) {
	store := openTempStore(t)
	createDAO(t, store, "admin-1")

	pending, err := store.ListPendingOutbox(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "dao.created", pending[0].EventType)

	require.NoError(t, store.MarkOutboxPublished(context.Background(), pending[0].OutboxID, time.Now()))
	pending, err = store.ListPendingOutbox(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, pending)

	require.ErrorIs(t, store.MarkOutboxPublished(context.Background(), "missing", time.Now()), domainerrors.ErrOutboxConflict)
}
