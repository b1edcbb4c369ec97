package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/docattest/internal/dbx"
	"github.com/dmitrijs2005/docattest/internal/server/repositories/documents"
	"github.com/dmitrijs2005/docattest/internal/server/repositories/signatures"
	"github.com/dmitrijs2005/docattest/internal/server/repositories/signers"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Documents(db dbx.DBTX) documents.Repository
	Signers(db dbx.DBTX) signers.Repository
	Signatures(db dbx.DBTX) signatures.Repository
}
