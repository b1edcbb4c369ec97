// Package docstore composes the per-table repositories into the document
// repository used by the services. Multi-row writes run in one transaction.
package docstore

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/docattest/internal/common"
	"github.com/dmitrijs2005/docattest/internal/dbx"
	"github.com/dmitrijs2005/docattest/internal/server/models"
	"github.com/dmitrijs2005/docattest/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// txAttempts bounds reruns of a signature transaction that hit a deadlock
// between concurrent signers.
const txAttempts = 3

type Store struct {
	db   *sql.DB
	repo repomanager.RepositoryManager
}

func New(db *sql.DB, repo repomanager.RepositoryManager) *Store {
	return &Store{db: db, repo: repo}
}

// storageErr keeps taxonomy errors and labels everything else as a storage failure.
func storageErr(err error) error {
	if err == nil || common.KindOf(err) != nil {
		return err
	}
	return common.ErrStorageFailure.Wrap(err, "")
}

// FindByID returns the document; ids that are not UUIDs cannot exist.
func (s *Store) FindByID(ctx context.Context, id string) (*models.Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrNotFound.Newf("document %q", id)
	}
	doc, err := s.repo.Documents(s.db).GetByID(ctx, id)
	return doc, storageErr(err)
}

func (s *Store) FindByContentHash(ctx context.Context, contentHash string) (*models.Document, error) {
	doc, err := s.repo.Documents(s.db).GetByContentHash(ctx, contentHash)
	return doc, storageErr(err)
}

// InsertDocument stores doc unless its content hash is already published;
// created reports which case happened.
func (s *Store) InsertDocument(ctx context.Context, doc *models.Document) (*models.Document, bool, error) {
	stored, created, err := s.repo.Documents(s.db).Create(ctx, doc)
	return stored, created, storageErr(err)
}

func (s *Store) FindOrCreateSigner(ctx context.Context, kind models.IdentityKind, value string) (*models.Signer, error) {
	signer, err := s.repo.Signers(s.db).FindOrCreate(ctx, kind, value)
	return signer, storageErr(err)
}

// FindSignature returns common.ErrNotFound when the signer has not signed.
func (s *Store) FindSignature(ctx context.Context, documentID, signerID string) (*models.Signature, error) {
	sig, err := s.repo.Signatures(s.db).Get(ctx, documentID, signerID)
	return sig, storageErr(err)
}

func (s *Store) ListSignatures(ctx context.Context, documentID string) ([]*models.Signature, error) {
	list, err := s.repo.Signatures(s.db).ListByDocument(ctx, documentID)
	return list, storageErr(err)
}

// RecordSignature takes a signature slot and inserts the signature row in
// one transaction, then returns the updated document. It fails with
// common.ErrThresholdAlreadyMet when no slot is left and with
// common.ErrAlreadySigned when the signer already holds a row; either way
// nothing is written. Deadlocked transactions are rerun.
func (s *Store) RecordSignature(ctx context.Context, sig *models.Signature) (*models.Document, error) {
	var doc *models.Document

	err := dbx.WithTxRetry(ctx, s.db, nil, txAttempts, func(ctx context.Context, tx dbx.DBTX) error {
		docs := s.repo.Documents(tx)

		remaining, required, err := docs.DecrementRemaining(ctx, sig.DocumentID)
		if err != nil {
			return err
		}

		sig.Position = required - remaining - 1
		if _, err := s.repo.Signatures(tx).Create(ctx, sig); err != nil {
			return err
		}

		doc, err = docs.GetByID(ctx, sig.DocumentID)
		return err
	})
	if err != nil {
		return nil, storageErr(err)
	}

	return doc, nil
}

// SetFinalAttestation stores the final record id once. It reports false when
// another writer got there first or the threshold is not met.
func (s *Store) SetFinalAttestation(ctx context.Context, documentID, recordID string) (bool, error) {
	ok, err := s.repo.Documents(s.db).SetFinalAttestation(ctx, documentID, recordID)
	return ok, storageErr(err)
}
