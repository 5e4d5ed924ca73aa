package ports

import (
	"context"
	"time"

	"quadvote/contexts/governance/quadratic-voting/domain/entities"
	contractsv1 "quadvote/contracts/gen/events/v1"
)

// EnvelopeFunc builds the outbox event for a record inside the write
// transaction, after the record's final state is known.
type EnvelopeFunc[T any] func(record T) (EventEnvelope, error)

// NewProposal is the write input for proposal creation. Sequence and tallies
// are assigned by the repository.
type NewProposal struct {
	DAOID     string
	Authority string
	Metadata  string
	CreatedAt time.Time
	// Authorize runs against the locked DAO row before a sequence is taken.
	Authorize func(dao entities.DAO) error
}

// NewVote is the write input for vote creation. Credits are already
// computed; the repository applies them to the locked proposal.
type NewVote struct {
	VoteID       string
	VoterID      string
	DAOID        string
	Sequence     uint32
	VoteType     entities.VoteType
	VoteCredits  uint64
	TokenBalance uint64
	CreatedAt    time.Time
}

// LedgerRepository owns the transactional write paths. Each method commits
// the record, its counter updates and its outbox row together or not at all.
type LedgerRepository interface {
	CreateDAO(ctx context.Context, dao entities.DAO, event EnvelopeFunc[entities.DAO]) (entities.DAO, error)
	CreateProposal(ctx context.Context, input NewProposal, event EnvelopeFunc[entities.Proposal]) (entities.Proposal, error)
	CastVote(ctx context.Context, input NewVote, event EnvelopeFunc[entities.Vote]) (entities.Vote, entities.Proposal, error)
}

// LedgerReader is the read API over persisted ledger records.
type LedgerReader interface {
	GetDAO(ctx context.Context, daoID string) (entities.DAO, error)
	GetDAOByAuthority(ctx context.Context, authority string) (entities.DAO, error)
	GetProposal(ctx context.Context, daoID string, sequence uint32) (entities.Proposal, error)
	ListProposals(ctx context.Context, daoID string) ([]entities.Proposal, error)
	GetVote(ctx context.Context, voterID string, proposalID string) (entities.Vote, error)
	ListVotes(ctx context.Context, proposalID string) ([]entities.Vote, error)
}

// BalanceOracle reports a voter's token balance at call time. found=false
// means the voter holds no tokens.
type BalanceOracle interface {
	BalanceOf(ctx context.Context, voterID string) (uint64, bool, error)
}

// IdentityVerifier resolves a caller credential to a verified identity.
type IdentityVerifier interface {
	Authenticate(ctx context.Context, credential string) (string, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// OutboxMessage is a row ready to relay from the module outbox.
type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

// OutboxRepository models worker-side outbox polling/acknowledgement.
type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

// EventEnvelope reuses the canonical cross-runtime envelope contract.
type EventEnvelope = contractsv1.Envelope

// EventPublisher publishes canonical envelopes to a topic.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}
