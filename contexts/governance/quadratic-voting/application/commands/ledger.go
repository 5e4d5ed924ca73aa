package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "quadvote/contexts/governance/quadratic-voting/application"
	domainerrors "quadvote/contexts/governance/quadratic-voting/domain/errors"
	"quadvote/contexts/governance/quadratic-voting/domain/services"
	"quadvote/contexts/governance/quadratic-voting/ports"
)

// LedgerUseCase orchestrates the three ledger state transitions: DAO
// creation, proposal creation and quadratic vote casting. Persistence
// atomicity is delegated to ports.LedgerRepository.
type LedgerUseCase struct {
	Ledger            ports.LedgerRepository
	Balances          ports.BalanceOracle
	Identity          ports.IdentityVerifier
	Clock             ports.Clock
	IDGen             ports.IDGenerator
	ProposalPolicy    services.ProposalPolicy
	MaxDAONameLength  int
	MaxMetadataLength int
	Logger            *slog.Logger
}

// authenticate resolves the credential and, when the caller also claims an
// identity, requires the two to match.
func (uc LedgerUseCase) authenticate(ctx context.Context, credential string, claimed string) (string, error) {
	if uc.Identity == nil || strings.TrimSpace(credential) == "" {
		return "", domainerrors.ErrUnauthenticated
	}
	identity, err := uc.Identity.Authenticate(ctx, strings.TrimSpace(credential))
	if err != nil {
		if errors.Is(err, domainerrors.ErrUnauthenticated) {
			return "", err
		}
		return "", errors.Join(domainerrors.ErrUnauthenticated, err)
	}
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return "", domainerrors.ErrUnauthenticated
	}
	if claimed = strings.TrimSpace(claimed); claimed != "" && claimed != identity {
		return "", domainerrors.ErrUnauthenticated
	}
	return identity, nil
}

func (uc LedgerUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}

func (uc LedgerUseCase) maxDAONameLength() int {
	if uc.MaxDAONameLength <= 0 {
		return services.DefaultMaxDAONameLength
	}
	return uc.MaxDAONameLength
}

func (uc LedgerUseCase) maxMetadataLength() int {
	if uc.MaxMetadataLength <= 0 {
		return services.DefaultMaxMetadataLength
	}
	return uc.MaxMetadataLength
}

func (uc LedgerUseCase) proposalPolicy() services.ProposalPolicy {
	if uc.ProposalPolicy == "" {
		return services.ProposalPolicyOpen
	}
	return uc.ProposalPolicy
}

func (uc LedgerUseCase) logger() *slog.Logger {
	return application.ResolveLogger(uc.Logger)
}
