package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	quadraticvoting "quadvote/contexts/governance/quadratic-voting"
	"quadvote/contexts/governance/quadratic-voting/adapters/memory"
	postgresadapter "quadvote/contexts/governance/quadratic-voting/adapters/postgres"
	sqliteadapter "quadvote/contexts/governance/quadratic-voting/adapters/sqlite"
	"quadvote/contexts/governance/quadratic-voting/application/commands"
	workerapp "quadvote/contexts/governance/quadratic-voting/application/workers"
	"quadvote/contexts/governance/quadratic-voting/domain/services"
	"quadvote/contexts/governance/quadratic-voting/ports"
	"quadvote/internal/platform/config"
	"quadvote/internal/platform/db"
	"quadvote/internal/platform/httpserver"
	"quadvote/internal/platform/identity"
	"quadvote/internal/platform/messaging"
	platformotel "quadvote/internal/platform/otel"

	"golang.org/x/sync/errgroup"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

const auditConsumerGroup = "quadvote-event-audit-log"

var ledgerTopics = []string{
	commands.EventDAOCreated,
	commands.EventProposalCreated,
	commands.EventVoteCast,
}

type APIApp struct {
	server  *httpserver.Server
	storage *storage
	events  *eventPipeline
	tracing func(context.Context) error
	logger  *slog.Logger
}

type WorkerApp struct {
	storage *storage
	events  *eventPipeline
	tracing func(context.Context) error
	logger  *slog.Logger
}

// storage bundles the ports one storage driver satisfies.
type storage struct {
	driver   string
	ledger   ports.LedgerRepository
	reader   ports.LedgerReader
	balances ports.BalanceOracle
	outbox   ports.OutboxRepository
	clock    ports.Clock
	idGen    ports.IDGenerator
	seed     func(ctx context.Context, voterID string, balance uint64) error
	close    func() error
}

// eventPipeline relays outbox rows to the bus and optionally mirrors every
// ledger event into the structured log.
type eventPipeline struct {
	relay        workerapp.OutboxRelay
	bus          *messaging.Kafka
	pollInterval time.Duration
	auditLog     bool
	logger       *slog.Logger
}

func BuildAPI(ctx context.Context) (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	tracing, err := platformotel.Setup(ctx, cfg.ServiceName, cfg.OTelEndpoint)
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		_ = tracing(ctx)
		return nil, err
	}
	verifier, err := buildIdentity(cfg)
	if err != nil {
		_ = store.close()
		_ = tracing(ctx)
		return nil, err
	}
	policy, ok := services.ParseProposalPolicy(cfg.ProposalPolicy)
	if !ok {
		_ = store.close()
		_ = tracing(ctx)
		return nil, fmt.Errorf("QV_PROPOSAL_POLICY must be open or authority_only; got %q", cfg.ProposalPolicy)
	}

	module := quadraticvoting.NewModule(quadraticvoting.Dependencies{
		Ledger:            store.ledger,
		Reader:            store.reader,
		Balances:          store.balances,
		Identity:          verifier,
		Clock:             store.clock,
		IDGen:             store.idGen,
		ProposalPolicy:    policy,
		MaxDAONameLength:  cfg.MaxDAONameLength,
		MaxMetadataLength: cfg.MaxMetadataLength,
		Logger:            logger,
	})

	app := &APIApp{
		server:  httpserver.New(module, logger, normalizeAddr(cfg.HTTPPort)),
		storage: store,
		tracing: tracing,
		logger:  logger,
	}
	// The memory outbox is only visible inside this process, so the API
	// relays it itself.
	if store.driver == config.StorageMemory && cfg.EnableOutbox {
		events, err := newEventPipeline(cfg, store, logger)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		app.events = events
	}
	return app, nil
}

func BuildWorker(ctx context.Context) (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if cfg.StorageDriver == config.StorageMemory {
		return nil, errors.New("worker requires STORAGE_DRIVER=postgres or STORAGE_DRIVER=sqlite")
	}
	if !cfg.EnableOutbox {
		return nil, errors.New("worker has nothing to run: ENABLE_OUTBOX_RELAY=false")
	}

	tracing, err := platformotel.Setup(ctx, cfg.ServiceName, cfg.OTelEndpoint)
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}
	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		_ = tracing(ctx)
		return nil, err
	}
	events, err := newEventPipeline(cfg, store, logger)
	if err != nil {
		_ = store.close()
		_ = tracing(ctx)
		return nil, err
	}
	return &WorkerApp{
		storage: store,
		events:  events,
		tracing: tracing,
		logger:  logger,
	}, nil
}

func (a *APIApp) Run(ctx context.Context) error {
	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"storage_driver", a.storage.driver,
		"outbox_relay", a.events != nil,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(a.server.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})
	if a.events != nil {
		g.Go(func() error {
			return a.events.run(gctx)
		})
	}
	return g.Wait()
}

func (a *APIApp) Close() error {
	var errs []error
	if a.storage != nil {
		errs = append(errs, a.storage.close())
	}
	if a.tracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		errs = append(errs, a.tracing(ctx))
	}
	return errors.Join(errs...)
}

func (w *WorkerApp) Run(ctx context.Context) error {
	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"storage_driver", w.storage.driver,
		"poll_interval", w.events.pollInterval.String(),
	)
	return w.events.run(ctx)
}

func (w *WorkerApp) Close() error {
	var errs []error
	if w.storage != nil {
		errs = append(errs, w.storage.close())
	}
	if w.tracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		errs = append(errs, w.tracing(ctx))
	}
	return errors.Join(errs...)
}

func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (*storage, error) {
	var store *storage
	switch cfg.StorageDriver {
	case config.StorageMemory:
		mem := memory.NewStore()
		store = &storage{
			driver:   config.StorageMemory,
			ledger:   mem,
			reader:   mem,
			balances: mem,
			outbox:   mem,
			clock:    mem,
			idGen:    mem,
			seed: func(_ context.Context, voterID string, balance uint64) error {
				mem.SetBalance(voterID, balance)
				return nil
			},
			close: func() error { return nil },
		}
	case config.StoragePostgres:
		pg, err := db.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		repo := postgresadapter.NewRepository(pg.DB, logger)
		if err := repo.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, err
		}
		store = &storage{
			driver:   config.StoragePostgres,
			ledger:   repo,
			reader:   repo,
			balances: repo,
			outbox:   repo,
			clock:    postgresadapter.SystemClock{},
			idGen:    postgresadapter.UUIDGenerator{},
			seed: func(ctx context.Context, voterID string, balance uint64) error {
				return repo.SetBalance(ctx, voterID, balance, time.Now().UTC())
			},
			close: pg.Close,
		}
	case config.StorageSQLite:
		lite, err := sqliteadapter.Open(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		store = &storage{
			driver:   config.StorageSQLite,
			ledger:   lite,
			reader:   lite,
			balances: lite,
			outbox:   lite,
			clock:    postgresadapter.SystemClock{},
			idGen:    postgresadapter.UUIDGenerator{},
			seed: func(ctx context.Context, voterID string, balance uint64) error {
				return lite.SetBalance(ctx, voterID, balance, time.Now().UTC())
			},
			close: lite.Close,
		}
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	if err := seedBalances(ctx, store, cfg.SeedBalances, logger); err != nil {
		_ = store.close()
		return nil, err
	}
	return store, nil
}

func seedBalances(ctx context.Context, store *storage, balances map[string]string, logger *slog.Logger) error {
	for voterID, raw := range balances {
		balance, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return fmt.Errorf("seed balance for %q: %w", voterID, err)
		}
		if err := store.seed(ctx, strings.TrimSpace(voterID), balance); err != nil {
			return fmt.Errorf("seed balance for %q: %w", voterID, err)
		}
	}
	if len(balances) > 0 {
		logger.Info("token balances seeded",
			"event", "bootstrap_balances_seeded",
			"module", "internal/app/bootstrap",
			"layer", "platform",
			"voters", len(balances),
		)
	}
	return nil
}

func buildIdentity(cfg config.Config) (ports.IdentityVerifier, error) {
	switch cfg.IdentityMode {
	case config.IdentityHeader:
		return identity.HeaderVerifier{}, nil
	case config.IdentityJWT:
		jwtCfg, err := identity.NewJWTConfig(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTPublicKey)
		if err != nil {
			return nil, err
		}
		return identity.NewJWTVerifier(jwtCfg), nil
	default:
		return nil, fmt.Errorf("unsupported identity mode %q", cfg.IdentityMode)
	}
}

func newEventPipeline(cfg config.Config, store *storage, logger *slog.Logger) (*eventPipeline, error) {
	bus, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		return nil, err
	}
	return &eventPipeline{
		relay: workerapp.OutboxRelay{
			Outbox:    store.outbox,
			Publisher: bus,
			Clock:     store.clock,
			BatchSize: cfg.OutboxBatchSize,
			Logger:    logger,
		},
		bus:          bus,
		pollInterval: cfg.OutboxPollInterval,
		auditLog:     cfg.EnableAuditLog,
		logger:       logger,
	}, nil
}

func (p *eventPipeline) run(ctx context.Context) error {
	if p.auditLog {
		for _, topic := range ledgerTopics {
			if err := p.bus.Subscribe(ctx, topic, auditConsumerGroup, p.audit); err != nil {
				return err
			}
		}
	}

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()
	for {
		if _, err := p.relay.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (p *eventPipeline) audit(_ context.Context, event ports.EventEnvelope) error {
	if err := event.Validate(); err != nil {
		return err
	}
	var data map[string]any
	if err := event.DecodeData(&data); err != nil {
		return err
	}
	p.logger.Info("ledger event observed",
		"event", "ledger_event_audit",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"event_id", event.EventID,
		"event_type", event.EventType,
		"partition_key", event.PartitionKey,
		"occurred_at", event.OccurredAt,
		"data", data,
	)
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
