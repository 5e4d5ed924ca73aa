package quadraticvoting

import (
	"log/slog"

	httpadapter "quadvote/contexts/governance/quadratic-voting/adapters/http"
	"quadvote/contexts/governance/quadratic-voting/adapters/memory"
	"quadvote/contexts/governance/quadratic-voting/application/commands"
	"quadvote/contexts/governance/quadratic-voting/application/queries"
	"quadvote/contexts/governance/quadratic-voting/domain/services"
	"quadvote/contexts/governance/quadratic-voting/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Ledger            ports.LedgerRepository
	Reader            ports.LedgerReader
	Balances          ports.BalanceOracle
	Identity          ports.IdentityVerifier
	Clock             ports.Clock
	IDGen             ports.IDGenerator
	ProposalPolicy    services.ProposalPolicy
	MaxDAONameLength  int
	MaxMetadataLength int
	Logger            *slog.Logger
}

func NewModule(deps Dependencies) Module {
	ledger := commands.LedgerUseCase{
		Ledger:            deps.Ledger,
		Balances:          deps.Balances,
		Identity:          deps.Identity,
		Clock:             deps.Clock,
		IDGen:             deps.IDGen,
		ProposalPolicy:    deps.ProposalPolicy,
		MaxDAONameLength:  deps.MaxDAONameLength,
		MaxMetadataLength: deps.MaxMetadataLength,
		Logger:            deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Ledger:  ledger,
			Queries: queries.LedgerQueries{Reader: deps.Reader},
			Logger:  deps.Logger,
		},
	}
}

// NewInMemoryModule wires every port to one memory store. Credentials and
// balances are registered on module.Store.
func NewInMemoryModule(policy services.ProposalPolicy, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Ledger:         store,
		Reader:         store,
		Balances:       store,
		Identity:       store,
		Clock:          store,
		IDGen:          store,
		ProposalPolicy: policy,
		Logger:         logger,
	})
	module.Store = store
	return module
}
