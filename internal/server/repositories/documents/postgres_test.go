package documents

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/docattest/internal/common"
	"github.com/dmitrijs2005/docattest/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock, db
}

var docCols = []string{
	"id", "content_hash", "document_ref", "sealed_ref",
	"required_signatures", "remaining_signatures", "identity_policy", "recipients",
	"creator_id", "final_attestation_id", "created_at", "finalized_at", "record_ids",
}

const (
	insertQ = `(?s)^INSERT\s+INTO\s+documents\s*\(content_hash,.*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$4,\s*\$5,\s*\$6,\s*\$7\)\s*ON\s+CONFLICT\s*\(content_hash\)\s*DO\s+NOTHING\s*RETURNING\s+id,\s*created_at\s*$`
	byHashQ = `(?s)^SELECT\s+d\.id,.*json_agg\(s\.attestation_record_id\s+ORDER\s+BY\s+s\.position\).*FROM\s+documents\s+d\s+WHERE\s+d\.content_hash\s*=\s*\$1$`
	byIDQ   = `(?s)^SELECT\s+d\.id,.*FROM\s+documents\s+d\s+WHERE\s+d\.id\s*=\s*\$1$`
)

func TestCreate_Inserted(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	now := time.Now()
	mock.ExpectQuery(insertQ).
		WithArgs("abc123", "abc123", sqlmock.AnyArg(), 2, "wallet_signature", `["0xb"]`, "creator-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("doc-1", now))

	doc := &models.Document{
		ContentHash:        "abc123",
		DocumentRef:        "abc123",
		RequiredSignatures: 2,
		IdentityPolicy:     models.PolicyWalletSignature,
		Recipients:         []string{"0xb"},
		CreatorID:          "creator-1",
	}
	got, created, err := repo.Create(context.Background(), doc)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "doc-1", got.ID)
	assert.Equal(t, 2, got.RemainingSignatures)
	assert.Empty(t, got.SignatureRecordIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_ExistingReturned(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	now := time.Now()
	mock.ExpectQuery(insertQ).
		WithArgs("abc123", "abc123", sqlmock.AnyArg(), 3, "wallet_signature", `[]`, "creator-2").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(byHashQ).
		WithArgs("abc123").
		WillReturnRows(sqlmock.NewRows(docCols).AddRow(
			"doc-1", "abc123", "abc123", nil, 2, 1, "wallet_signature", []byte(`[]`),
			"creator-1", "", now, nil, []byte(`["0xr1"]`)))

	got, created, err := repo.Create(context.Background(), &models.Document{
		ContentHash:        "abc123",
		DocumentRef:        "abc123",
		RequiredSignatures: 3,
		IdentityPolicy:     models.PolicyWalletSignature,
		CreatorID:          "creator-2",
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "doc-1", got.ID)
	assert.Equal(t, 1, got.RemainingSignatures)
	assert.Equal(t, []string{"0xr1"}, got.SignatureRecordIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(insertQ).WillReturnError(errors.New("db down"))

	_, _, err := repo.Create(context.Background(), &models.Document{ContentHash: "h", RequiredSignatures: 1})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGetByID(t *testing.T) {
	t.Run("finalized document", func(t *testing.T) {
		repo, mock, _ := newRepoWithMock(t)

		created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		finalized := created.Add(time.Hour)
		mock.ExpectQuery(byIDQ).
			WithArgs("doc-1").
			WillReturnRows(sqlmock.NewRows(docCols).AddRow(
				"doc-1", "abc123", "0xref", []byte{1, 2}, 2, 0, "proof_of_personhood", []byte(`["0xa","0xb"]`),
				"creator-1", "0xfinal", created, finalized, []byte(`["0xr1","0xr2"]`)))

		got, err := repo.GetByID(context.Background(), "doc-1")
		require.NoError(t, err)
		assert.Equal(t, models.PolicyProofOfPersonhood, got.IdentityPolicy)
		assert.Equal(t, []string{"0xa", "0xb"}, got.Recipients)
		assert.Equal(t, []string{"0xr1", "0xr2"}, got.SignatureRecordIDs)
		assert.Equal(t, []byte{1, 2}, got.SealedRef)
		assert.Equal(t, "0xfinal", got.FinalAttestationID)
		require.NotNil(t, got.FinalizedAt)
		assert.Equal(t, finalized, *got.FinalizedAt)
		assert.Equal(t, models.StateFinalized, got.State())
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock, _ := newRepoWithMock(t)

		mock.ExpectQuery(byIDQ).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

		_, err := repo.GetByID(context.Background(), "ghost")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("corrupt recipients", func(t *testing.T) {
		repo, mock, _ := newRepoWithMock(t)

		mock.ExpectQuery(byIDQ).
			WithArgs("doc-1").
			WillReturnRows(sqlmock.NewRows(docCols).AddRow(
				"doc-1", "h", "h", nil, 1, 1, "wallet_signature", []byte(`{`),
				"c", "", time.Now(), nil, []byte(`[]`)))

		_, err := repo.GetByID(context.Background(), "doc-1")
		assert.ErrorContains(t, err, "decode recipients")
	})
}

func TestDecrementRemaining(t *testing.T) {
	q := `(?s)^UPDATE\s+documents\s+SET\s+remaining_signatures\s*=\s*remaining_signatures\s*-\s*1\s+WHERE\s+id\s*=\s*\$1\s+AND\s+remaining_signatures\s*>\s*0\s+RETURNING\s+remaining_signatures,\s*required_signatures\s*$`

	t.Run("slot taken", func(t *testing.T) {
		repo, mock, _ := newRepoWithMock(t)

		mock.ExpectQuery(q).WithArgs("doc-1").
			WillReturnRows(sqlmock.NewRows([]string{"remaining_signatures", "required_signatures"}).AddRow(1, 3))

		remaining, required, err := repo.DecrementRemaining(context.Background(), "doc-1")
		require.NoError(t, err)
		assert.Equal(t, 1, remaining)
		assert.Equal(t, 3, required)
	})

	t.Run("no slot left", func(t *testing.T) {
		repo, mock, _ := newRepoWithMock(t)

		mock.ExpectQuery(q).WithArgs("doc-1").WillReturnError(sql.ErrNoRows)

		_, _, err := repo.DecrementRemaining(context.Background(), "doc-1")
		assert.ErrorIs(t, err, common.ErrThresholdAlreadyMet)
	})
}

func TestSetFinalAttestation(t *testing.T) {
	q := `(?s)^UPDATE\s+documents\s+SET\s+final_attestation_id\s*=\s*\$2,\s*finalized_at\s*=\s*now\(\)\s+WHERE\s+id\s*=\s*\$1\s+AND\s+final_attestation_id\s+IS\s+NULL\s+AND\s+remaining_signatures\s*=\s*0\s*$`

	t.Run("updated", func(t *testing.T) {
		repo, mock, _ := newRepoWithMock(t)
		mock.ExpectExec(q).WithArgs("doc-1", "0xtx").WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := repo.SetFinalAttestation(context.Background(), "doc-1", "0xtx")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("already set", func(t *testing.T) {
		repo, mock, _ := newRepoWithMock(t)
		mock.ExpectExec(q).WithArgs("doc-1", "0xtx").WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := repo.SetFinalAttestation(context.Background(), "doc-1", "0xtx")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("db error", func(t *testing.T) {
		repo, mock, _ := newRepoWithMock(t)
		mock.ExpectExec(q).WillReturnError(errors.New("boom"))

		_, err := repo.SetFinalAttestation(context.Background(), "doc-1", "0xtx")
		assert.ErrorContains(t, err, "db error: boom")
	})
}
