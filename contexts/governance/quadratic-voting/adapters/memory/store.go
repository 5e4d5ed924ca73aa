package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"quadvote/contexts/governance/quadratic-voting/domain/entities"
	domainerrors "quadvote/contexts/governance/quadratic-voting/domain/errors"
	"quadvote/contexts/governance/quadratic-voting/domain/services"
	"quadvote/contexts/governance/quadratic-voting/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	order     uint64
	published bool
}

// Store keeps the whole ledger behind one mutex. Every write validates
// against current state before touching any map, so a rejected operation
// leaves nothing behind.
type Store struct {
	mu sync.RWMutex

	daos        map[string]entities.DAO
	authorities map[string]string
	proposals   map[string]entities.Proposal
	votes       map[string]entities.Vote
	voteOrder   map[string][]string
	outbox      map[string]outboxRecord
	outboxSeq   uint64

	balances    map[string]uint64
	credentials map[string]string
}

func NewStore() *Store {
	return &Store{
		daos:        make(map[string]entities.DAO),
		authorities: make(map[string]string),
		proposals:   make(map[string]entities.Proposal),
		votes:       make(map[string]entities.Vote),
		voteOrder:   make(map[string][]string),
		outbox:      make(map[string]outboxRecord),
		balances:    make(map[string]uint64),
		credentials: make(map[string]string),
	}
}

// SetBalance records the token balance reported for a voter.
func (s *Store) SetBalance(voterID string, balance uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[strings.TrimSpace(voterID)] = balance
}

// SetCredential maps an opaque bearer credential to the identity it proves.
func (s *Store) SetCredential(credential string, identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials[strings.TrimSpace(credential)] = strings.TrimSpace(identity)
}

func (s *Store) CreateDAO(
	_ context.Context,
	dao entities.DAO,
	event ports.EnvelopeFunc[entities.DAO],
) (entities.DAO, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dao.DAOID = strings.TrimSpace(dao.DAOID)
	dao.Authority = strings.TrimSpace(dao.Authority)
	if dao.DAOID == "" || dao.Authority == "" {
		return entities.DAO{}, domainerrors.ErrInvalidInput
	}
	if _, ok := s.authorities[dao.Authority]; ok {
		return entities.DAO{}, domainerrors.ErrDAOAlreadyExists
	}
	if _, ok := s.daos[dao.DAOID]; ok {
		return entities.DAO{}, domainerrors.ErrDAOAlreadyExists
	}
	dao.CreatedAt = createdAt(dao.CreatedAt)

	row, hasEvent, err := prepareOutbox(s, dao, event)
	if err != nil {
		return entities.DAO{}, err
	}
	s.daos[dao.DAOID] = dao
	s.authorities[dao.Authority] = dao.DAOID
	s.commitOutbox(row, hasEvent)
	return dao, nil
}

func (s *Store) CreateProposal(
	_ context.Context,
	input ports.NewProposal,
	event ports.EnvelopeFunc[entities.Proposal],
) (entities.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dao, ok := s.daos[strings.TrimSpace(input.DAOID)]
	if !ok {
		return entities.Proposal{}, domainerrors.ErrDAONotFound
	}
	if input.Authorize != nil {
		if err := input.Authorize(dao); err != nil {
			return entities.Proposal{}, err
		}
	}
	sequence, next, err := services.NextSequence(dao.ProposalCount)
	if err != nil {
		return entities.Proposal{}, err
	}

	proposal := entities.Proposal{
		ProposalID: entities.ProposalIDFor(dao.DAOID, sequence),
		DAOID:      dao.DAOID,
		Sequence:   sequence,
		Authority:  strings.TrimSpace(input.Authority),
		Metadata:   input.Metadata,
		CreatedAt:  createdAt(input.CreatedAt),
	}
	row, hasEvent, err := prepareOutbox(s, proposal, event)
	if err != nil {
		return entities.Proposal{}, err
	}

	dao.ProposalCount = next
	s.daos[dao.DAOID] = dao
	s.proposals[proposal.ProposalID] = proposal
	s.commitOutbox(row, hasEvent)
	return proposal, nil
}

func (s *Store) CastVote(
	_ context.Context,
	input ports.NewVote,
	event ports.EnvelopeFunc[entities.Vote],
) (entities.Vote, entities.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	daoID := strings.TrimSpace(input.DAOID)
	if _, ok := s.daos[daoID]; !ok {
		return entities.Vote{}, entities.Proposal{}, domainerrors.ErrDAONotFound
	}
	proposal, ok := s.proposals[entities.ProposalIDFor(daoID, input.Sequence)]
	if !ok {
		return entities.Vote{}, entities.Proposal{}, domainerrors.ErrProposalNotFound
	}
	voterID := strings.TrimSpace(input.VoterID)
	key := voteKey(voterID, proposal.ProposalID)
	if _, exists := s.votes[key]; exists {
		return entities.Vote{}, entities.Proposal{}, domainerrors.ErrDuplicateVote
	}
	updated, err := services.ApplyVote(proposal, input.VoteType, input.VoteCredits)
	if err != nil {
		return entities.Vote{}, entities.Proposal{}, err
	}

	vote := entities.Vote{
		VoteID:       strings.TrimSpace(input.VoteID),
		VoterID:      voterID,
		ProposalID:   proposal.ProposalID,
		DAOID:        proposal.DAOID,
		Sequence:     proposal.Sequence,
		VoteType:     input.VoteType,
		VoteCredits:  input.VoteCredits,
		TokenBalance: input.TokenBalance,
		CreatedAt:    createdAt(input.CreatedAt),
	}
	if vote.VoteID == "" {
		vote.VoteID = uuid.NewString()
	}
	row, hasEvent, err := prepareOutbox(s, vote, event)
	if err != nil {
		return entities.Vote{}, entities.Proposal{}, err
	}

	s.votes[key] = vote
	s.voteOrder[proposal.ProposalID] = append(s.voteOrder[proposal.ProposalID], key)
	s.proposals[updated.ProposalID] = updated
	s.commitOutbox(row, hasEvent)
	return vote, updated, nil
}

func (s *Store) GetDAO(_ context.Context, daoID string) (entities.DAO, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dao, ok := s.daos[strings.TrimSpace(daoID)]
	if !ok {
		return entities.DAO{}, domainerrors.ErrDAONotFound
	}
	return dao, nil
}

func (s *Store) GetDAOByAuthority(_ context.Context, authority string) (entities.DAO, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	daoID, ok := s.authorities[strings.TrimSpace(authority)]
	if !ok {
		return entities.DAO{}, domainerrors.ErrDAONotFound
	}
	return s.daos[daoID], nil
}

func (s *Store) GetProposal(_ context.Context, daoID string, sequence uint32) (entities.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	proposal, ok := s.proposals[entities.ProposalIDFor(daoID, sequence)]
	if !ok {
		return entities.Proposal{}, domainerrors.ErrProposalNotFound
	}
	return proposal, nil
}

func (s *Store) ListProposals(_ context.Context, daoID string) ([]entities.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	daoID = strings.TrimSpace(daoID)
	items := make([]entities.Proposal, 0)
	for _, proposal := range s.proposals {
		if proposal.DAOID == daoID {
			items = append(items, proposal)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Sequence < items[j].Sequence
	})
	return items, nil
}

func (s *Store) GetVote(_ context.Context, voterID string, proposalID string) (entities.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vote, ok := s.votes[voteKey(strings.TrimSpace(voterID), strings.TrimSpace(proposalID))]
	if !ok {
		return entities.Vote{}, domainerrors.ErrVoteNotFound
	}
	return vote, nil
}

func (s *Store) ListVotes(_ context.Context, proposalID string) ([]entities.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := s.voteOrder[strings.TrimSpace(proposalID)]
	items := make([]entities.Vote, 0, len(keys))
	for _, key := range keys {
		items = append(items, s.votes[key])
	}
	return items, nil
}

func (s *Store) BalanceOf(_ context.Context, voterID string) (uint64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	balance, ok := s.balances[strings.TrimSpace(voterID)]
	return balance, ok, nil
}

func (s *Store) Authenticate(_ context.Context, credential string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	identity, ok := s.credentials[strings.TrimSpace(credential)]
	if !ok || identity == "" {
		return "", domainerrors.ErrUnauthenticated
	}
	return identity, nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	rows := make([]outboxRecord, 0, len(s.outbox))
	for _, row := range s.outbox {
		if row.published {
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].order < rows[j].order
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.message)
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrOutboxConflict
	}
	row.published = true
	s.outbox[strings.TrimSpace(outboxID)] = row
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

// prepareOutbox builds the outbox row for record without storing it. Callers
// hold the write lock.
func prepareOutbox[T any](s *Store, record T, event ports.EnvelopeFunc[T]) (outboxRecord, bool, error) {
	if event == nil {
		return outboxRecord{}, false, nil
	}
	envelope, err := event(record)
	if err != nil {
		return outboxRecord{}, false, err
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return outboxRecord{}, false, err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if _, exists := s.outbox[outboxID]; exists {
		return outboxRecord{}, false, domainerrors.ErrOutboxConflict
	}
	return outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    strings.TrimSpace(envelope.EventType),
			PartitionKey: strings.TrimSpace(envelope.PartitionKey),
			Payload:      payload,
			CreatedAt:    createdAt(envelope.OccurredAt),
		},
	}, true, nil
}

func (s *Store) commitOutbox(row outboxRecord, ok bool) {
	if !ok {
		return
	}
	s.outboxSeq++
	row.order = s.outboxSeq
	s.outbox[row.message.OutboxID] = row
}

func voteKey(voterID string, proposalID string) string {
	return voterID + "\x00" + proposalID
}

func createdAt(value time.Time) time.Time {
	if value.IsZero() {
		return time.Now().UTC()
	}
	return value.UTC()
}

var _ ports.LedgerRepository = (*Store)(nil)
var _ ports.LedgerReader = (*Store)(nil)
var _ ports.BalanceOracle = (*Store)(nil)
var _ ports.IdentityVerifier = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
