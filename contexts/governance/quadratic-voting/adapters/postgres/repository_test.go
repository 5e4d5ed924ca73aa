package postgresadapter

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"

	"quadvote/contexts/governance/quadratic-voting/adapters/postgres/migrations"
	domainerrors "quadvote/contexts/governance/quadratic-voting/domain/errors"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMigrationStatementsCoverLedgerTables(t *testing.T) {
	content, err := fs.ReadFile(migrations.FS, "0001_ledger.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	statements := splitStatements(upSection(string(content)))
	if len(statements) == 0 {
		t.Fatalf("expected migration statements")
	}
	joined := strings.Join(statements, "\n")
	for _, table := range []string{"qv_daos", "qv_proposals", "qv_votes", "qv_token_balances", "qv_outbox"} {
		if !strings.Contains(joined, "CREATE TABLE IF NOT EXISTS "+table) {
			t.Fatalf("expected table %s in migration", table)
		}
	}
	if !strings.Contains(joined, "relay_seq BIGSERIAL") {
		t.Fatalf("expected outbox relay ordering column")
	}
	if !strings.Contains(joined, voteIdentityIndex) {
		t.Fatalf("expected vote uniqueness index %s", voteIdentityIndex)
	}
	for _, statement := range statements {
		if strings.Contains(statement, "+migrate") {
			t.Fatalf("migration marker leaked into statement %q", statement)
		}
	}
}

func TestUpSectionDropsDownMigration(t *testing.T) {
	got := upSection("-- +migrate Up\nCREATE TABLE a (id INT);\n-- +migrate Down\nDROP TABLE a;")
	if strings.Contains(got, "DROP") || !strings.Contains(got, "CREATE TABLE a") {
		t.Fatalf("unexpected up section %q", got)
	}
}

func TestUniqueViolationMapping(t *testing.T) {
	voteDup := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: voteIdentityIndex})
	if !isUniqueViolation(voteDup) || !isUniqueViolationOn(voteDup, voteIdentityIndex) {
		t.Fatalf("expected vote unique violation to be detected")
	}
	pkeyDup := &pgconn.PgError{Code: "23505", ConstraintName: "qv_votes_pkey"}
	if isUniqueViolationOn(pkeyDup, voteIdentityIndex) {
		t.Fatalf("primary key violation must not read as duplicate vote")
	}
	if isUniqueViolation(errors.New("boom")) {
		t.Fatalf("plain error is not a unique violation")
	}
}

func TestDomainErrorsPassThrough(t *testing.T) {
	if !isDomainError(domainerrors.ErrProposalNotFound) || !isDomainError(domainerrors.ErrOverflow) {
		t.Fatalf("expected domain errors to pass through")
	}
	if isDomainError(&pgconn.PgError{Code: "40001"}) {
		t.Fatalf("driver errors are not domain errors")
	}
}
