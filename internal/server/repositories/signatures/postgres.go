// Package signatures persists accepted signatures. The (document, signer)
// uniqueness constraint is what makes double signing impossible across
// server instances.
package signatures

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/docattest/internal/common"
	"github.com/dmitrijs2005/docattest/internal/dbx"
	"github.com/dmitrijs2005/docattest/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueViolation     = "23505"
	signerUniqueKeyName = "signatures_document_id_signer_id_key"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts sig. A second row for the same document and signer fails
// with common.ErrAlreadySigned.
func (r *PostgresRepository) Create(ctx context.Context, sig *models.Signature) (*models.Signature, error) {
	query :=
		`INSERT INTO signatures (document_id, signer_id, position, attestation_record_id, attestation_token)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, signed_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		sig.DocumentID, sig.SignerID, sig.Position, sig.AttestationRecordID, sig.AttestationToken).
		Scan(&sig.ID, &sig.SignedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == signerUniqueKeyName {
			return nil, common.ErrAlreadySigned
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return sig, nil
}

func (r *PostgresRepository) Get(ctx context.Context, documentID, signerID string) (*models.Signature, error) {
	query :=
		`SELECT id, document_id, signer_id, position, attestation_record_id, attestation_token, signed_at
		 FROM signatures
		 WHERE document_id = $1 AND signer_id = $2
		 `

	s := &models.Signature{}
	err := r.db.QueryRowContext(ctx, query, documentID, signerID).Scan(
		&s.ID, &s.DocumentID, &s.SignerID, &s.Position, &s.AttestationRecordID, &s.AttestationToken, &s.SignedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound.New("signature")
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return s, nil
}

func (r *PostgresRepository) ListByDocument(ctx context.Context, documentID string) ([]*models.Signature, error) {
	query :=
		`SELECT id, document_id, signer_id, position, attestation_record_id, attestation_token, signed_at
		 FROM signatures
		 WHERE document_id = $1
		 ORDER BY position
		 `

	rows, err := r.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Signature
	for rows.Next() {
		s := &models.Signature{}
		if err := rows.Scan(&s.ID, &s.DocumentID, &s.SignerID, &s.Position,
			&s.AttestationRecordID, &s.AttestationToken, &s.SignedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}
