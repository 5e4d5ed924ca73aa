package commands

import (
	"context"
	"strings"

	"quadvote/contexts/governance/quadratic-voting/domain/entities"
	"quadvote/contexts/governance/quadratic-voting/domain/services"
	"quadvote/contexts/governance/quadratic-voting/ports"
)

// CreateDAOCommand is the write-model input for DAO creation. AdminID is
// optional; when set it must match the identity behind Credential.
type CreateDAOCommand struct {
	Credential string
	AdminID    string
	Name       string
}

// CreateDAO registers a DAO owned by the authenticated caller with a zero
// proposal count. An authority owns at most one DAO.
func (uc LedgerUseCase) CreateDAO(ctx context.Context, cmd CreateDAOCommand) (entities.DAO, error) {
	logger := uc.logger()
	logger.Info("dao create processing started",
		"event", "ledger_dao_create_started",
		"module", "governance/quadratic-voting",
		"layer", "application",
		"admin_id", strings.TrimSpace(cmd.AdminID),
	)

	authority, err := uc.authenticate(ctx, cmd.Credential, cmd.AdminID)
	if err != nil {
		logger.Warn("dao create authentication failed",
			"event", "ledger_dao_create_unauthenticated",
			"module", "governance/quadratic-voting",
			"layer", "application",
			"admin_id", strings.TrimSpace(cmd.AdminID),
		)
		return entities.DAO{}, err
	}
	name, err := services.BoundedText(cmd.Name, uc.maxDAONameLength())
	if err != nil {
		logger.Warn("dao create validation failed",
			"event", "ledger_dao_create_validation_failed",
			"module", "governance/quadratic-voting",
			"layer", "application",
			"admin_id", authority,
			"name_length", len(cmd.Name),
		)
		return entities.DAO{}, err
	}

	dao := entities.DAO{
		DAOID:         entities.DAOIDFor(authority),
		Name:          name,
		Authority:     authority,
		ProposalCount: 0,
		CreatedAt:     uc.now(),
	}
	created, err := uc.Ledger.CreateDAO(ctx, dao, func(record entities.DAO) (ports.EventEnvelope, error) {
		eventID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return ports.EventEnvelope{}, err
		}
		return newLedgerEnvelope(eventID, EventDAOCreated, record.DAOID, record.CreatedAt, map[string]any{
			"dao_id":         record.DAOID,
			"name":           record.Name,
			"authority":      record.Authority,
			"proposal_count": record.ProposalCount,
		})
	})
	if err != nil {
		logger.Warn("dao create rejected",
			"event", "ledger_dao_create_rejected",
			"module", "governance/quadratic-voting",
			"layer", "application",
			"admin_id", authority,
			"dao_id", dao.DAOID,
			"error", err.Error(),
		)
		return entities.DAO{}, err
	}

	logger.Info("dao created",
		"event", "ledger_dao_created",
		"module", "governance/quadratic-voting",
		"layer", "application",
		"dao_id", created.DAOID,
		"authority", created.Authority,
	)
	return created, nil
}
