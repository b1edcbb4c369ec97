// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/docattest/internal/dbx"
	"github.com/dmitrijs2005/docattest/internal/server/migrations"
	"github.com/dmitrijs2005/docattest/internal/server/repositories/documents"
	"github.com/dmitrijs2005/docattest/internal/server/repositories/signatures"
	"github.com/dmitrijs2005/docattest/internal/server/repositories/signers"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// Documents returns a documents.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Documents(db dbx.DBTX) documents.Repository {
	return documents.NewPostgresRepository(db)
}

// Signers returns a signers.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Signers(db dbx.DBTX) signers.Repository {
	return signers.NewPostgresRepository(db)
}

// Signatures returns a signatures.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Signatures(db dbx.DBTX) signatures.Repository {
	return signatures.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{}
}
