package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/docattest/internal/common"
	"github.com/dmitrijs2005/docattest/internal/server/repositories/documents"
	"github.com/dmitrijs2005/docattest/internal/server/repositories/signatures"
	"github.com/dmitrijs2005/docattest/internal/server/repositories/signers"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubGoose(t *testing.T, fn func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error) {
	t.Helper()
	orig := gooseUpContext
	gooseUpContext = fn
	t.Cleanup(func() { gooseUpContext = orig })
}

func TestManager_VendsPostgresRepositories(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	m := NewPostgresRepositoryManager()

	assert.IsType(t, &documents.PostgresRepository{}, m.Documents(db))
	assert.IsType(t, &signers.PostgresRepository{}, m.Signers(db))
	assert.IsType(t, &signatures.PostgresRepository{}, m.Signatures(db))
}

func TestManager_RepositoriesUseGivenHandle(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM documents d\s+WHERE d.id = \$1`).
		WithArgs("doc-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)

	_, err = NewPostgresRepositoryManager().Documents(tx).GetByID(context.Background(), "doc-1")
	assert.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	t.Run("embedded root", func(t *testing.T) {
		var gotDB *sql.DB
		var gotDir string
		stubGoose(t, func(ctx context.Context, d *sql.DB, dir string, opts ...goose.OptionsFunc) error {
			gotDB, gotDir = d, dir
			assert.Empty(t, opts)
			return nil
		})

		require.NoError(t, NewPostgresRepositoryManager().RunMigrations(context.Background(), db))
		assert.Same(t, db, gotDB)
		assert.Equal(t, ".", gotDir)
	})

	t.Run("goose failure is returned", func(t *testing.T) {
		boom := errors.New("dirty migration 00001")
		stubGoose(t, func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error { return boom })

		err := NewPostgresRepositoryManager().RunMigrations(context.Background(), db)
		assert.ErrorIs(t, err, boom)
	})
}
