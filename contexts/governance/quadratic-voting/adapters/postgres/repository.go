package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"time"

	"quadvote/contexts/governance/quadratic-voting/adapters/postgres/migrations"
	"quadvote/contexts/governance/quadratic-voting/domain/entities"
	domainerrors "quadvote/contexts/governance/quadratic-voting/domain/errors"
	"quadvote/contexts/governance/quadratic-voting/domain/services"
	"quadvote/contexts/governance/quadratic-voting/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

const voteIdentityIndex = "qv_votes_voter_proposal_uidx"

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Migrate applies the embedded ledger schema. Statements are idempotent so
// the call is safe on every process start.
func (r *Repository) Migrate(ctx context.Context) error {
	entries, err := fs.ReadDir(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := fs.ReadFile(migrations.FS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		for _, statement := range splitStatements(upSection(string(content))) {
			if err := r.db.WithContext(ctx).Exec(statement).Error; err != nil {
				return r.logError("ledger_repo_migrate_failed", err, "migration", file)
			}
		}
	}
	return nil
}

func (r *Repository) CreateDAO(
	ctx context.Context,
	dao entities.DAO,
	event ports.EnvelopeFunc[entities.DAO],
) (entities.DAO, error) {
	row := daoModelFromEntity(dao)
	if row.DAOID == "" || row.Authority == "" {
		return entities.DAO{}, domainerrors.ErrInvalidInput
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		return appendOutbox(tx, row.toEntity(), event)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return entities.DAO{}, domainerrors.ErrDAOAlreadyExists
		}
		return entities.DAO{}, r.logError("ledger_repo_create_dao_failed", err,
			"dao_id", row.DAOID,
			"authority", row.Authority,
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) CreateProposal(
	ctx context.Context,
	input ports.NewProposal,
	event ports.EnvelopeFunc[entities.Proposal],
) (entities.Proposal, error) {
	daoID := strings.TrimSpace(input.DAOID)
	var created proposalModel

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var dao daoModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("dao_id = ?", daoID).
			First(&dao).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrDAONotFound
			}
			return err
		}
		if input.Authorize != nil {
			if err := input.Authorize(dao.toEntity()); err != nil {
				return err
			}
		}
		sequence, next, err := services.NextSequence(dao.ProposalCount)
		if err != nil {
			return err
		}

		created = proposalModel{
			ProposalID: entities.ProposalIDFor(dao.DAOID, sequence),
			DAOID:      dao.DAOID,
			Sequence:   sequence,
			Authority:  strings.TrimSpace(input.Authority),
			Metadata:   input.Metadata,
			CreatedAt:  utcOrNow(input.CreatedAt),
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}
		if err := tx.Model(&daoModel{}).
			Where("dao_id = ?", dao.DAOID).
			Update("proposal_count", next).
			Error; err != nil {
			return err
		}
		return appendOutbox(tx, created.toEntity(), event)
	})
	if err != nil {
		if isDomainError(err) {
			return entities.Proposal{}, err
		}
		return entities.Proposal{}, r.logError("ledger_repo_create_proposal_failed", err,
			"dao_id", daoID,
		)
	}
	return created.toEntity(), nil
}

func (r *Repository) CastVote(
	ctx context.Context,
	input ports.NewVote,
	event ports.EnvelopeFunc[entities.Vote],
) (entities.Vote, entities.Proposal, error) {
	daoID := strings.TrimSpace(input.DAOID)
	var (
		vote     voteModel
		proposal proposalModel
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var dao daoModel
		if err := tx.Where("dao_id = ?", daoID).First(&dao).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrDAONotFound
			}
			return err
		}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("proposal_id = ?", entities.ProposalIDFor(daoID, input.Sequence)).
			First(&proposal).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrProposalNotFound
			}
			return err
		}

		vote = voteModel{
			VoteID:       strings.TrimSpace(input.VoteID),
			VoterID:      strings.TrimSpace(input.VoterID),
			ProposalID:   proposal.ProposalID,
			DAOID:        proposal.DAOID,
			Sequence:     proposal.Sequence,
			VoteType:     string(input.VoteType),
			VoteCredits:  input.VoteCredits,
			TokenBalance: input.TokenBalance,
			CreatedAt:    utcOrNow(input.CreatedAt),
		}
		if vote.VoteID == "" {
			vote.VoteID = uuid.NewString()
		}
		if err := tx.Create(&vote).Error; err != nil {
			return err
		}

		updated, err := services.ApplyVote(proposal.toEntity(), input.VoteType, input.VoteCredits)
		if err != nil {
			return err
		}
		if err := tx.Model(&proposalModel{}).
			Where("proposal_id = ?", proposal.ProposalID).
			Updates(map[string]any{
				"yes_vote_count": updated.YesVoteCount,
				"no_vote_count":  updated.NoVoteCount,
			}).Error; err != nil {
			return err
		}
		proposal.YesVoteCount = updated.YesVoteCount
		proposal.NoVoteCount = updated.NoVoteCount
		return appendOutbox(tx, vote.toEntity(), event)
	})
	if err != nil {
		if isUniqueViolationOn(err, voteIdentityIndex) {
			return entities.Vote{}, entities.Proposal{}, domainerrors.ErrDuplicateVote
		}
		if isDomainError(err) {
			return entities.Vote{}, entities.Proposal{}, err
		}
		return entities.Vote{}, entities.Proposal{}, r.logError("ledger_repo_cast_vote_failed", err,
			"dao_id", daoID,
			"sequence", input.Sequence,
			"voter_id", strings.TrimSpace(input.VoterID),
		)
	}
	return vote.toEntity(), proposal.toEntity(), nil
}

func (r *Repository) GetDAO(ctx context.Context, daoID string) (entities.DAO, error) {
	var row daoModel
	err := r.db.WithContext(ctx).
		Where("dao_id = ?", strings.TrimSpace(daoID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.DAO{}, domainerrors.ErrDAONotFound
		}
		return entities.DAO{}, r.logError("ledger_repo_get_dao_failed", err, "dao_id", strings.TrimSpace(daoID))
	}
	return row.toEntity(), nil
}

func (r *Repository) GetDAOByAuthority(ctx context.Context, authority string) (entities.DAO, error) {
	var row daoModel
	err := r.db.WithContext(ctx).
		Where("authority = ?", strings.TrimSpace(authority)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.DAO{}, domainerrors.ErrDAONotFound
		}
		return entities.DAO{}, r.logError("ledger_repo_get_dao_by_authority_failed", err,
			"authority", strings.TrimSpace(authority),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) GetProposal(ctx context.Context, daoID string, sequence uint32) (entities.Proposal, error) {
	var row proposalModel
	err := r.db.WithContext(ctx).
		Where("proposal_id = ?", entities.ProposalIDFor(daoID, sequence)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Proposal{}, domainerrors.ErrProposalNotFound
		}
		return entities.Proposal{}, r.logError("ledger_repo_get_proposal_failed", err,
			"dao_id", strings.TrimSpace(daoID),
			"sequence", sequence,
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) ListProposals(ctx context.Context, daoID string) ([]entities.Proposal, error) {
	var rows []proposalModel
	if err := r.db.WithContext(ctx).
		Where("dao_id = ?", strings.TrimSpace(daoID)).
		Order("sequence ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("ledger_repo_list_proposals_failed", err, "dao_id", strings.TrimSpace(daoID))
	}
	items := make([]entities.Proposal, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) GetVote(ctx context.Context, voterID string, proposalID string) (entities.Vote, error) {
	var row voteModel
	err := r.db.WithContext(ctx).
		Where("voter_id = ?", strings.TrimSpace(voterID)).
		Where("proposal_id = ?", strings.TrimSpace(proposalID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Vote{}, domainerrors.ErrVoteNotFound
		}
		return entities.Vote{}, r.logError("ledger_repo_get_vote_failed", err,
			"voter_id", strings.TrimSpace(voterID),
			"proposal_id", strings.TrimSpace(proposalID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) ListVotes(ctx context.Context, proposalID string) ([]entities.Vote, error) {
	var rows []voteModel
	if err := r.db.WithContext(ctx).
		Where("proposal_id = ?", strings.TrimSpace(proposalID)).
		Order("created_at ASC").
		Order("vote_id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("ledger_repo_list_votes_failed", err, "proposal_id", strings.TrimSpace(proposalID))
	}
	items := make([]entities.Vote, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

// BalanceOf reads the token balance projection maintained by the balance
// feed. A voter without a row holds no tokens.
func (r *Repository) BalanceOf(ctx context.Context, voterID string) (uint64, bool, error) {
	var row tokenBalanceModel
	err := r.db.WithContext(ctx).
		Where("voter_id = ?", strings.TrimSpace(voterID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, r.logError("ledger_repo_balance_of_failed", err, "voter_id", strings.TrimSpace(voterID))
	}
	return row.Balance, true, nil
}

// SetBalance upserts a voter's balance projection.
func (r *Repository) SetBalance(ctx context.Context, voterID string, balance uint64, updatedAt time.Time) error {
	row := tokenBalanceModel{
		VoterID:   strings.TrimSpace(voterID),
		Balance:   balance,
		UpdatedAt: utcOrNow(updatedAt),
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "voter_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"balance":    row.Balance,
			"updated_at": row.UpdatedAt,
		}),
	}).Create(&row)
	if create.Error != nil {
		return r.logError("ledger_repo_set_balance_failed", create.Error, "voter_id", row.VoterID)
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("relay_seq ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("ledger_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("ledger_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrOutboxConflict
	}
	return nil
}

func appendOutbox[T any](tx *gorm.DB, record T, event ports.EnvelopeFunc[T]) error {
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
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    utcOrNow(envelope.OccurredAt),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	create := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return create.Error
	}
	if create.RowsAffected == 0 {
		return domainerrors.ErrOutboxConflict
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "governance/quadratic-voting",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("ledger repository operation failed", fields...)
	return err
}

type daoModel struct {
	DAOID         string    `gorm:"column:dao_id;primaryKey"`
	Name          string    `gorm:"column:name"`
	Authority     string    `gorm:"column:authority"`
	ProposalCount uint32    `gorm:"column:proposal_count"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

func (daoModel) TableName() string {
	return "qv_daos"
}

func daoModelFromEntity(item entities.DAO) daoModel {
	return daoModel{
		DAOID:         strings.TrimSpace(item.DAOID),
		Name:          item.Name,
		Authority:     strings.TrimSpace(item.Authority),
		ProposalCount: item.ProposalCount,
		CreatedAt:     utcOrNow(item.CreatedAt),
	}
}

func (m daoModel) toEntity() entities.DAO {
	return entities.DAO{
		DAOID:         m.DAOID,
		Name:          m.Name,
		Authority:     m.Authority,
		ProposalCount: m.ProposalCount,
		CreatedAt:     m.CreatedAt.UTC(),
	}
}

type proposalModel struct {
	ProposalID   string    `gorm:"column:proposal_id;primaryKey"`
	DAOID        string    `gorm:"column:dao_id"`
	Sequence     uint32    `gorm:"column:sequence"`
	Authority    string    `gorm:"column:authority"`
	Metadata     string    `gorm:"column:metadata"`
	YesVoteCount uint64    `gorm:"column:yes_vote_count"`
	NoVoteCount  uint64    `gorm:"column:no_vote_count"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (proposalModel) TableName() string {
	return "qv_proposals"
}

func (m proposalModel) toEntity() entities.Proposal {
	return entities.Proposal{
		ProposalID:   m.ProposalID,
		DAOID:        m.DAOID,
		Sequence:     m.Sequence,
		Authority:    m.Authority,
		Metadata:     m.Metadata,
		YesVoteCount: m.YesVoteCount,
		NoVoteCount:  m.NoVoteCount,
		CreatedAt:    m.CreatedAt.UTC(),
	}
}

type voteModel struct {
	VoteID       string    `gorm:"column:vote_id;primaryKey"`
	VoterID      string    `gorm:"column:voter_id"`
	ProposalID   string    `gorm:"column:proposal_id"`
	DAOID        string    `gorm:"column:dao_id"`
	Sequence     uint32    `gorm:"column:sequence"`
	VoteType     string    `gorm:"column:vote_type"`
	VoteCredits  uint64    `gorm:"column:vote_credits"`
	TokenBalance uint64    `gorm:"column:token_balance"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (voteModel) TableName() string {
	return "qv_votes"
}

func (m voteModel) toEntity() entities.Vote {
	return entities.Vote{
		VoteID:       m.VoteID,
		VoterID:      m.VoterID,
		ProposalID:   m.ProposalID,
		DAOID:        m.DAOID,
		Sequence:     m.Sequence,
		VoteType:     entities.VoteType(m.VoteType),
		VoteCredits:  m.VoteCredits,
		TokenBalance: m.TokenBalance,
		CreatedAt:    m.CreatedAt.UTC(),
	}
}

type tokenBalanceModel struct {
	VoterID   string    `gorm:"column:voter_id;primaryKey"`
	Balance   uint64    `gorm:"column:balance"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (tokenBalanceModel) TableName() string {
	return "qv_token_balances"
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	RelaySeq     int64      `gorm:"column:relay_seq;->"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "qv_outbox"
}

func utcOrNow(value time.Time) time.Time {
	if value.IsZero() {
		return time.Now().UTC()
	}
	return value.UTC()
}

func upSection(content string) string {
	upIdx := strings.Index(content, "-- +migrate Up")
	if upIdx == -1 {
		return content
	}
	content = content[upIdx+len("-- +migrate Up"):]
	if downIdx := strings.Index(content, "-- +migrate Down"); downIdx != -1 {
		content = content[:downIdx]
	}
	return content
}

func splitStatements(content string) []string {
	parts := strings.Split(content, ";")
	statements := make([]string, 0, len(parts))
	for _, part := range parts {
		if statement := strings.TrimSpace(part); statement != "" {
			statements = append(statements, statement)
		}
	}
	return statements
}

func isDomainError(err error) bool {
	for _, target := range []error{
		domainerrors.ErrInvalidInput,
		domainerrors.ErrForbidden,
		domainerrors.ErrNotFound,
		domainerrors.ErrOverflow,
		domainerrors.ErrOutboxConflict,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isUniqueViolationOn(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}

var _ ports.LedgerRepository = (*Repository)(nil)
var _ ports.LedgerReader = (*Repository)(nil)
var _ ports.BalanceOracle = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
