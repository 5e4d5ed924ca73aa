package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
)

const (
	IdentityJWT    = "jwt"
	IdentityHeader = "header"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName   string   `env:"SERVICE_NAME" envDefault:"quadvote"`
	HTTPPort      string   `env:"HTTP_PORT" envDefault:"8080"`
	StorageDriver string   `env:"STORAGE_DRIVER" envDefault:"memory"`
	PostgresDSN   string   `env:"POSTGRES_DSN"`
	SQLitePath    string   `env:"SQLITE_PATH" envDefault:"quadvote.db"`
	KafkaBrokers  []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`

	ProposalPolicy    string `env:"QV_PROPOSAL_POLICY" envDefault:"open"`
	MaxDAONameLength  int    `env:"QV_MAX_DAO_NAME_LENGTH" envDefault:"32"`
	MaxMetadataLength int    `env:"QV_MAX_METADATA_LENGTH" envDefault:"256"`

	IdentityMode   string `env:"QV_IDENTITY_MODE" envDefault:"jwt"`
	JWTIssuer      string `env:"QV_JWT_ISSUER"`
	JWTAudience    string `env:"QV_JWT_AUDIENCE"`
	JWTPublicKey   string `env:"QV_JWT_PUBLIC_KEY"`
	OTelEndpoint   string `env:"OTEL_ENDPOINT"`
	EnableOutbox   bool   `env:"ENABLE_OUTBOX_RELAY" envDefault:"true"`
	EnableAuditLog bool   `env:"ENABLE_EVENT_AUDIT_LOG" envDefault:"true"`

	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"2s"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`

	// SeedBalances is written to the balance projection at startup, e.g.
	// "alice:100,bob:81".
	SeedBalances map[string]string `env:"QV_SEED_BALANCES"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	switch cfg.StorageDriver {
	case StorageMemory, StoragePostgres, StorageSQLite:
	default:
		return Config{}, fmt.Errorf("STORAGE_DRIVER must be one of memory, postgres, sqlite; got %q", cfg.StorageDriver)
	}
	if cfg.StorageDriver == StoragePostgres && strings.TrimSpace(cfg.PostgresDSN) == "" {
		return Config{}, fmt.Errorf("POSTGRES_DSN is required when STORAGE_DRIVER=postgres")
	}

	cfg.IdentityMode = strings.ToLower(strings.TrimSpace(cfg.IdentityMode))
	if cfg.IdentityMode != IdentityJWT && cfg.IdentityMode != IdentityHeader {
		return Config{}, fmt.Errorf("QV_IDENTITY_MODE must be jwt or header; got %q", cfg.IdentityMode)
	}
	if cfg.MaxDAONameLength <= 0 || cfg.MaxMetadataLength <= 0 {
		return Config{}, fmt.Errorf("QV_MAX_DAO_NAME_LENGTH and QV_MAX_METADATA_LENGTH must be positive")
	}
	if cfg.OutboxPollInterval <= 0 {
		return Config{}, fmt.Errorf("OUTBOX_POLL_INTERVAL must be positive")
	}

	for voter, raw := range cfg.SeedBalances {
		if strings.TrimSpace(voter) == "" {
			return Config{}, fmt.Errorf("QV_SEED_BALANCES contains an empty voter id")
		}
		if _, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64); err != nil {
			return Config{}, fmt.Errorf("QV_SEED_BALANCES balance for %q: %w", voter, err)
		}
	}

	brokers := cfg.KafkaBrokers[:0]
	for _, value := range cfg.KafkaBrokers {
		if value = strings.TrimSpace(value); value != "" {
			brokers = append(brokers, value)
		}
	}
	cfg.KafkaBrokers = brokers
	return cfg, nil
}
