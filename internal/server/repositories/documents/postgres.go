// Package documents persists published documents. The remaining signature
// counter only changes through DecrementRemaining, a single conditional update.
package documents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/docattest/internal/common"
	"github.com/dmitrijs2005/docattest/internal/dbx"
	"github.com/dmitrijs2005/docattest/internal/server/models"
)

const selectDocument = `SELECT d.id, d.content_hash, d.document_ref, d.sealed_ref,
		 d.required_signatures, d.remaining_signatures, d.identity_policy, d.recipients,
		 d.creator_id, COALESCE(d.final_attestation_id, ''), d.created_at, d.finalized_at,
		 COALESCE((SELECT json_agg(s.attestation_record_id ORDER BY s.position)
		   FROM signatures s WHERE s.document_id = d.id), '[]'::json)
		 FROM documents d
		 `

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts doc with remaining_signatures = required_signatures. When a
// document with the same content hash exists, the stored one is returned
// and created is false.
func (r *PostgresRepository) Create(ctx context.Context, doc *models.Document) (*models.Document, bool, error) {
	query :=
		`INSERT INTO documents (content_hash, document_ref, sealed_ref, required_signatures,
		   remaining_signatures, identity_policy, recipients, creator_id)
		 VALUES ($1, $2, $3, $4, $4, $5, $6, $7)
		 ON CONFLICT (content_hash) DO NOTHING
		 RETURNING id, created_at
		 `

	recipients := doc.Recipients
	if recipients == nil {
		recipients = []string{}
	}
	rj, err := json.Marshal(recipients)
	if err != nil {
		return nil, false, err
	}

	err = r.db.QueryRowContext(ctx, query,
		doc.ContentHash, doc.DocumentRef, doc.SealedRef, doc.RequiredSignatures,
		string(doc.IdentityPolicy), string(rj), doc.CreatorID).Scan(&doc.ID, &doc.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			existing, err := r.GetByContentHash(ctx, doc.ContentHash)
			if err != nil {
				return nil, false, err
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("db error: %w", err)
	}

	doc.RemainingSignatures = doc.RequiredSignatures
	doc.Recipients = recipients
	doc.SignatureRecordIDs = []string{}
	return doc, true, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	return r.getOne(ctx, selectDocument+`WHERE d.id = $1`, id)
}

func (r *PostgresRepository) GetByContentHash(ctx context.Context, contentHash string) (*models.Document, error) {
	return r.getOne(ctx, selectDocument+`WHERE d.content_hash = $1`, contentHash)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.Document, error) {
	var (
		d          models.Document
		policy     string
		recipients []byte
		recordIDs  []byte
		finalized  sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&d.ID, &d.ContentHash, &d.DocumentRef, &d.SealedRef,
		&d.RequiredSignatures, &d.RemainingSignatures, &policy, &recipients,
		&d.CreatorID, &d.FinalAttestationID, &d.CreatedAt, &finalized,
		&recordIDs,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound.New("document")
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	d.IdentityPolicy = models.IdentityPolicy(policy)
	if finalized.Valid {
		t := finalized.Time
		d.FinalizedAt = &t
	}
	if err := json.Unmarshal(recipients, &d.Recipients); err != nil {
		return nil, fmt.Errorf("decode recipients: %w", err)
	}
	if err := json.Unmarshal(recordIDs, &d.SignatureRecordIDs); err != nil {
		return nil, fmt.Errorf("decode signature record ids: %w", err)
	}

	return &d, nil
}

// DecrementRemaining takes one signature slot. It fails with
// common.ErrThresholdAlreadyMet when no slot is left.
func (r *PostgresRepository) DecrementRemaining(ctx context.Context, id string) (int, int, error) {
	query :=
		`UPDATE documents SET remaining_signatures = remaining_signatures - 1
		 WHERE id = $1 AND remaining_signatures > 0
		 RETURNING remaining_signatures, required_signatures
		 `

	var remaining, required int
	err := r.db.QueryRowContext(ctx, query, id).Scan(&remaining, &required)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, common.ErrThresholdAlreadyMet
		}
		return 0, 0, fmt.Errorf("db error: %w", err)
	}

	return remaining, required, nil
}

// SetFinalAttestation stores recordID unless a final attestation is already
// set or the threshold is not met. It reports whether the row was updated.
func (r *PostgresRepository) SetFinalAttestation(ctx context.Context, id string, recordID string) (bool, error) {
	query :=
		`UPDATE documents SET final_attestation_id = $2, finalized_at = now()
		 WHERE id = $1 AND final_attestation_id IS NULL AND remaining_signatures = 0
		 `

	res, err := r.db.ExecContext(ctx, query, id, recordID)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return n == 1, nil
}
