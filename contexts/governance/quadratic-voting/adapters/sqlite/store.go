// Package sqlite provides a SQLite-backed ledger store for single-node
// deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"quadvote/contexts/governance/quadratic-voting/adapters/sqlite/migrations"
	"quadvote/contexts/governance/quadratic-voting/domain/entities"
	domainerrors "quadvote/contexts/governance/quadratic-voting/domain/errors"
	"quadvote/contexts/governance/quadratic-voting/domain/services"
	"quadvote/contexts/governance/quadratic-voting/ports"
	"quadvote/internal/platform/storage/sqlitemigrate"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

// Store persists the ledger in SQLite. Write transactions take the database
// write lock up front. Counters are stored as INTEGER, so any value above
// math.MaxInt64 is rejected as ErrOverflow.
type Store struct {
	sqlDB  *sql.DB
	logger *slog.Logger
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite ledger store and applies embedded migrations.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_pragma=foreign_keys(ON)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection keeps writers strictly serialized.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.Apply(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, logger: logger}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) CreateDAO(
	ctx context.Context,
	dao entities.DAO,
	event ports.EnvelopeFunc[entities.DAO],
) (entities.DAO, error) {
	dao.DAOID = strings.TrimSpace(dao.DAOID)
	dao.Authority = strings.TrimSpace(dao.Authority)
	if dao.DAOID == "" || dao.Authority == "" {
		return entities.DAO{}, domainerrors.ErrInvalidInput
	}
	dao.CreatedAt = utcOrNow(dao.CreatedAt)

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO daos (dao_id, name, authority, proposal_count, created_at) VALUES (?, ?, ?, ?, ?)`,
			dao.DAOID, dao.Name, dao.Authority, int64(dao.ProposalCount), toMillis(dao.CreatedAt),
		); err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrDAOAlreadyExists
			}
			return err
		}
		return appendOutbox(ctx, tx, dao, event)
	})
	if err != nil {
		return entities.DAO{}, s.wrap("ledger_sqlite_create_dao_failed", err, "dao_id", dao.DAOID)
	}
	return dao, nil
}

func (s *Store) CreateProposal(
	ctx context.Context,
	input ports.NewProposal,
	event ports.EnvelopeFunc[entities.Proposal],
) (entities.Proposal, error) {
	daoID := strings.TrimSpace(input.DAOID)
	var created entities.Proposal

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		dao, err := scanDAO(tx.QueryRowContext(ctx,
			`SELECT dao_id, name, authority, proposal_count, created_at FROM daos WHERE dao_id = ?`, daoID))
		if err != nil {
			return err
		}
		if input.Authorize != nil {
			if err := input.Authorize(dao); err != nil {
				return err
			}
		}
		sequence, next, err := services.NextSequence(dao.ProposalCount)
		if err != nil {
			return err
		}
		created = entities.Proposal{
			ProposalID: entities.ProposalIDFor(dao.DAOID, sequence),
			DAOID:      dao.DAOID,
			Sequence:   sequence,
			Authority:  strings.TrimSpace(input.Authority),
			Metadata:   input.Metadata,
			CreatedAt:  utcOrNow(input.CreatedAt),
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO proposals (proposal_id, dao_id, sequence, authority, metadata, yes_vote_count, no_vote_count, created_at)
			 VALUES (?, ?, ?, ?, ?, 0, 0, ?)`,
			created.ProposalID, created.DAOID, int64(created.Sequence), created.Authority, created.Metadata,
			toMillis(created.CreatedAt),
		); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE daos SET proposal_count = ? WHERE dao_id = ?`, int64(next), dao.DAOID,
		); err != nil {
			return err
		}
		return appendOutbox(ctx, tx, created, event)
	})
	if err != nil {
		return entities.Proposal{}, s.wrap("ledger_sqlite_create_proposal_failed", err, "dao_id", daoID)
	}
	return created, nil
}

func (s *Store) CastVote(
	ctx context.Context,
	input ports.NewVote,
	event ports.EnvelopeFunc[entities.Vote],
) (entities.Vote, entities.Proposal, error) {
	daoID := strings.TrimSpace(input.DAOID)
	var (
		vote     entities.Vote
		proposal entities.Proposal
	)

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := scanDAO(tx.QueryRowContext(ctx,
			`SELECT dao_id, name, authority, proposal_count, created_at FROM daos WHERE dao_id = ?`, daoID)); err != nil {
			return err
		}
		current, err := scanProposal(tx.QueryRowContext(ctx, proposalSelect+` WHERE proposal_id = ?`,
			entities.ProposalIDFor(daoID, input.Sequence)))
		if err != nil {
			return err
		}

		vote = entities.Vote{
			VoteID:       strings.TrimSpace(input.VoteID),
			VoterID:      strings.TrimSpace(input.VoterID),
			ProposalID:   current.ProposalID,
			DAOID:        current.DAOID,
			Sequence:     current.Sequence,
			VoteType:     input.VoteType,
			VoteCredits:  input.VoteCredits,
			TokenBalance: input.TokenBalance,
			CreatedAt:    utcOrNow(input.CreatedAt),
		}
		if vote.VoteID == "" {
			vote.VoteID = uuid.NewString()
		}
		credits, err := toInt64(vote.VoteCredits)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO votes (vote_id, voter_id, proposal_id, dao_id, sequence, vote_type, vote_credits, token_balance, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			vote.VoteID, vote.VoterID, vote.ProposalID, vote.DAOID, int64(vote.Sequence), string(vote.VoteType),
			credits, formatBalance(vote.TokenBalance), toMillis(vote.CreatedAt),
		); err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrDuplicateVote
			}
			return err
		}

		proposal, err = services.ApplyVote(current, input.VoteType, input.VoteCredits)
		if err != nil {
			return err
		}
		yes, err := toInt64(proposal.YesVoteCount)
		if err != nil {
			return err
		}
		no, err := toInt64(proposal.NoVoteCount)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE proposals SET yes_vote_count = ?, no_vote_count = ? WHERE proposal_id = ?`,
			yes, no, proposal.ProposalID,
		); err != nil {
			return err
		}
		return appendOutbox(ctx, tx, vote, event)
	})
	if err != nil {
		return entities.Vote{}, entities.Proposal{}, s.wrap("ledger_sqlite_cast_vote_failed", err,
			"dao_id", daoID,
			"sequence", input.Sequence,
			"voter_id", strings.TrimSpace(input.VoterID),
		)
	}
	return vote, proposal, nil
}

func (s *Store) GetDAO(ctx context.Context, daoID string) (entities.DAO, error) {
	dao, err := scanDAO(s.sqlDB.QueryRowContext(ctx,
		`SELECT dao_id, name, authority, proposal_count, created_at FROM daos WHERE dao_id = ?`,
		strings.TrimSpace(daoID)))
	if err != nil {
		return entities.DAO{}, s.wrap("ledger_sqlite_get_dao_failed", err, "dao_id", strings.TrimSpace(daoID))
	}
	return dao, nil
}

func (s *Store) GetDAOByAuthority(ctx context.Context, authority string) (entities.DAO, error) {
	dao, err := scanDAO(s.sqlDB.QueryRowContext(ctx,
		`SELECT dao_id, name, authority, proposal_count, created_at FROM daos WHERE authority = ?`,
		strings.TrimSpace(authority)))
	if err != nil {
		return entities.DAO{}, s.wrap("ledger_sqlite_get_dao_by_authority_failed", err,
			"authority", strings.TrimSpace(authority))
	}
	return dao, nil
}

func (s *Store) GetProposal(ctx context.Context, daoID string, sequence uint32) (entities.Proposal, error) {
	proposal, err := scanProposal(s.sqlDB.QueryRowContext(ctx, proposalSelect+` WHERE proposal_id = ?`,
		entities.ProposalIDFor(daoID, sequence)))
	if err != nil {
		return entities.Proposal{}, s.wrap("ledger_sqlite_get_proposal_failed", err,
			"dao_id", strings.TrimSpace(daoID),
			"sequence", sequence,
		)
	}
	return proposal, nil
}

func (s *Store) ListProposals(ctx context.Context, daoID string) ([]entities.Proposal, error) {
	rows, err := s.sqlDB.QueryContext(ctx, proposalSelect+` WHERE dao_id = ? ORDER BY sequence ASC`,
		strings.TrimSpace(daoID))
	if err != nil {
		return nil, s.wrap("ledger_sqlite_list_proposals_failed", err, "dao_id", strings.TrimSpace(daoID))
	}
	defer rows.Close()

	items := make([]entities.Proposal, 0)
	for rows.Next() {
		proposal, err := scanProposal(rows)
		if err != nil {
			return nil, s.wrap("ledger_sqlite_list_proposals_failed", err, "dao_id", strings.TrimSpace(daoID))
		}
		items = append(items, proposal)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("ledger_sqlite_list_proposals_failed", err, "dao_id", strings.TrimSpace(daoID))
	}
	return items, nil
}

func (s *Store) GetVote(ctx context.Context, voterID string, proposalID string) (entities.Vote, error) {
	vote, err := scanVote(s.sqlDB.QueryRowContext(ctx, voteSelect+` WHERE voter_id = ? AND proposal_id = ?`,
		strings.TrimSpace(voterID), strings.TrimSpace(proposalID)))
	if err != nil {
		return entities.Vote{}, s.wrap("ledger_sqlite_get_vote_failed", err,
			"voter_id", strings.TrimSpace(voterID),
			"proposal_id", strings.TrimSpace(proposalID),
		)
	}
	return vote, nil
}

func (s *Store) ListVotes(ctx context.Context, proposalID string) ([]entities.Vote, error) {
	rows, err := s.sqlDB.QueryContext(ctx, voteSelect+` WHERE proposal_id = ? ORDER BY created_at ASC, rowid ASC`,
		strings.TrimSpace(proposalID))
	if err != nil {
		return nil, s.wrap("ledger_sqlite_list_votes_failed", err, "proposal_id", strings.TrimSpace(proposalID))
	}
	defer rows.Close()

	items := make([]entities.Vote, 0)
	for rows.Next() {
		vote, err := scanVote(rows)
		if err != nil {
			return nil, s.wrap("ledger_sqlite_list_votes_failed", err, "proposal_id", strings.TrimSpace(proposalID))
		}
		items = append(items, vote)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("ledger_sqlite_list_votes_failed", err, "proposal_id", strings.TrimSpace(proposalID))
	}
	return items, nil
}

// BalanceOf reads the token balance projection. A voter without a row holds
// no tokens.
func (s *Store) BalanceOf(ctx context.Context, voterID string) (uint64, bool, error) {
	var raw string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT balance FROM token_balances WHERE voter_id = ?`, strings.TrimSpace(voterID),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, s.wrap("ledger_sqlite_balance_of_failed", err, "voter_id", strings.TrimSpace(voterID))
	}
	balance, err := parseBalance(raw)
	if err != nil {
		return 0, false, s.wrap("ledger_sqlite_balance_of_failed", err, "voter_id", strings.TrimSpace(voterID))
	}
	return balance, true, nil
}

// SetBalance upserts a voter's balance projection.
func (s *Store) SetBalance(ctx context.Context, voterID string, balance uint64, updatedAt time.Time) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO token_balances (voter_id, balance, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (voter_id) DO UPDATE SET balance = excluded.balance, updated_at = excluded.updated_at`,
		strings.TrimSpace(voterID), formatBalance(balance), toMillis(utcOrNow(updatedAt)),
	)
	if err != nil {
		return s.wrap("ledger_sqlite_set_balance_failed", err, "voter_id", strings.TrimSpace(voterID))
	}
	return nil
}

func (s *Store) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT outbox_id, event_type, partition_key, payload, created_at
		   FROM outbox
		  WHERE status = ?
		  ORDER BY rowid ASC
		  LIMIT ?`,
		outboxStatusPending, limit,
	)
	if err != nil {
		return nil, s.wrap("ledger_sqlite_list_pending_outbox_failed", err, "limit", limit)
	}
	defer rows.Close()

	items := make([]ports.OutboxMessage, 0)
	for rows.Next() {
		var (
			item      ports.OutboxMessage
			createdAt int64
		)
		if err := rows.Scan(&item.OutboxID, &item.EventType, &item.PartitionKey, &item.Payload, &createdAt); err != nil {
			return nil, s.wrap("ledger_sqlite_list_pending_outbox_failed", err, "limit", limit)
		}
		item.CreatedAt = fromMillis(createdAt)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("ledger_sqlite_list_pending_outbox_failed", err, "limit", limit)
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE outbox SET status = ?, published_at = ? WHERE outbox_id = ?`,
		outboxStatusPublished, toMillis(publishedAt), strings.TrimSpace(outboxID),
	)
	if err != nil {
		return s.wrap("ledger_sqlite_mark_outbox_published_failed", err, "outbox_id", strings.TrimSpace(outboxID))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return s.wrap("ledger_sqlite_mark_outbox_published_failed", err, "outbox_id", strings.TrimSpace(outboxID))
	}
	if affected == 0 {
		return domainerrors.ErrOutboxConflict
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger transaction: %w", err)
	}
	return nil
}

// wrap passes domain errors through untouched and logs everything else.
func (s *Store) wrap(event string, err error, attrs ...any) error {
	for _, target := range []error{
		domainerrors.ErrInvalidInput,
		domainerrors.ErrForbidden,
		domainerrors.ErrNotFound,
		domainerrors.ErrDAOAlreadyExists,
		domainerrors.ErrDuplicateVote,
		domainerrors.ErrOverflow,
		domainerrors.ErrOutboxConflict,
	} {
		if errors.Is(err, target) {
			return err
		}
	}
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "governance/quadratic-voting",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	s.logger.Error("ledger sqlite operation failed", fields...)
	return err
}

func appendOutbox[T any](ctx context.Context, tx *sql.Tx, record T, event ports.EnvelopeFunc[T]) error {
	if event == nil {
		return nil
	}
	envelope, err := event(record)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO outbox (outbox_id, event_type, partition_key, payload, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		outboxID,
		strings.TrimSpace(envelope.EventType),
		strings.TrimSpace(envelope.PartitionKey),
		payload,
		outboxStatusPending,
		toMillis(utcOrNow(envelope.OccurredAt)),
	); err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrOutboxConflict
		}
		return err
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

const proposalSelect = `SELECT proposal_id, dao_id, sequence, authority, metadata, yes_vote_count, no_vote_count, created_at FROM proposals`

const voteSelect = `SELECT vote_id, voter_id, proposal_id, dao_id, sequence, vote_type, vote_credits, token_balance, created_at FROM votes`

func scanDAO(row rowScanner) (entities.DAO, error) {
	var (
		dao       entities.DAO
		count     int64
		createdAt int64
	)
	if err := row.Scan(&dao.DAOID, &dao.Name, &dao.Authority, &count, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entities.DAO{}, domainerrors.ErrDAONotFound
		}
		return entities.DAO{}, err
	}
	dao.ProposalCount = uint32(count)
	dao.CreatedAt = fromMillis(createdAt)
	return dao, nil
}

func scanProposal(row rowScanner) (entities.Proposal, error) {
	var (
		proposal  entities.Proposal
		sequence  int64
		yes, no   int64
		createdAt int64
	)
	if err := row.Scan(&proposal.ProposalID, &proposal.DAOID, &sequence, &proposal.Authority, &proposal.Metadata,
		&yes, &no, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entities.Proposal{}, domainerrors.ErrProposalNotFound
		}
		return entities.Proposal{}, err
	}
	proposal.Sequence = uint32(sequence)
	proposal.YesVoteCount = uint64(yes)
	proposal.NoVoteCount = uint64(no)
	proposal.CreatedAt = fromMillis(createdAt)
	return proposal, nil
}

func scanVote(row rowScanner) (entities.Vote, error) {
	var (
		vote      entities.Vote
		sequence  int64
		voteType  string
		credits   int64
		balance   string
		createdAt int64
	)
	if err := row.Scan(&vote.VoteID, &vote.VoterID, &vote.ProposalID, &vote.DAOID, &sequence, &voteType,
		&credits, &balance, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entities.Vote{}, domainerrors.ErrVoteNotFound
		}
		return entities.Vote{}, err
	}
	vote.Sequence = uint32(sequence)
	vote.VoteType = entities.VoteType(voteType)
	vote.VoteCredits = uint64(credits)
	tokenBalance, err := parseBalance(balance)
	if err != nil {
		return entities.Vote{}, err
	}
	vote.TokenBalance = tokenBalance
	vote.CreatedAt = fromMillis(createdAt)
	return vote, nil
}

// Balances span the full uint64 range, so they are kept as decimal text.
func formatBalance(value uint64) string {
	return strconv.FormatUint(value, 10)
}

func parseBalance(raw string) (uint64, error) {
	value, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse token balance %q: %w", raw, err)
	}
	return value, nil
}

func toInt64(value uint64) (int64, error) {
	if value > math.MaxInt64 {
		return 0, domainerrors.ErrOverflow
	}
	return int64(value), nil
}

func utcOrNow(value time.Time) time.Time {
	if value.IsZero() {
		return time.Now().UTC()
	}
	return value.UTC()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ ports.LedgerRepository = (*Store)(nil)
var _ ports.LedgerReader = (*Store)(nil)
var _ ports.BalanceOracle = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
