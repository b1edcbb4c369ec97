package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/docattest/internal/common"
	"github.com/dmitrijs2005/docattest/internal/logging"
	"github.com/dmitrijs2005/docattest/internal/server/ledger"
	"github.com/dmitrijs2005/docattest/internal/server/locks"
	"github.com/dmitrijs2005/docattest/internal/server/models"
)

// FinalAttestationResult is the outcome of Finalize.
type FinalAttestationResult struct {
	DocumentID         string
	FinalAttestationID string
	SignatureRecordIDs []string
	// AlreadyFinalized is true when the record existed before this call.
	AlreadyFinalized bool
}

// Finalizer commits the aggregate attestation of a completed document. It is
// idempotent: at most one final record is ever stored per document.
type Finalizer struct {
	repo   DocumentRepository
	ledger AttestationLedger
	locker locks.Locker
	opts   Options
	log    logging.Logger
}

func NewFinalizer(repo DocumentRepository, l AttestationLedger, locker locks.Locker, opts Options, log logging.Logger) *Finalizer {
	return &Finalizer{
		repo:   repo,
		ledger: l,
		locker: locker,
		opts:   opts,
		log:    log.With("module", "finalizer"),
	}
}

func (f *Finalizer) Finalize(ctx context.Context, documentID string) (*FinalAttestationResult, error) {
	doc, err := f.repo.FindByID(ctx, documentID)
	if err != nil {
		return nil, asKind(common.ErrStorageFailure, err, "find document")
	}
	if doc.FinalAttestationID != "" {
		return finalized(doc, true), nil
	}
	if !doc.IsComplete() {
		return nil, common.ErrNotReady.Newf("%d signatures remaining", doc.RemainingSignatures)
	}

	release, err := f.locker.Acquire(ctx, "finalize:"+doc.ID, f.opts.LockTTL)
	if err != nil {
		if errors.Is(err, locks.ErrNotAcquired) {
			return nil, common.ErrFinalizationBusy.New(doc.ID)
		}
		return nil, asKind(common.ErrStorageFailure, err, "acquire finalization lock")
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			f.log.Warn(ctx, "release finalization lock", "document_id", doc.ID, "error", err)
		}
	}()

	// Another instance may have finished while we waited for the lock.
	doc, err = f.repo.FindByID(ctx, documentID)
	if err != nil {
		return nil, asKind(common.ErrStorageFailure, err, "find document")
	}
	if doc.FinalAttestationID != "" {
		return finalized(doc, true), nil
	}
	if len(doc.SignatureRecordIDs) != doc.RequiredSignatures {
		return nil, common.ErrStorageFailure.Newf("document %s has %d signatures for threshold %d",
			doc.ID, len(doc.SignatureRecordIDs), doc.RequiredSignatures)
	}

	payload := ledger.DocumentFinalAttestationPayload{
		RequiredSignatures:        doc.RequiredSignatures,
		SignatureRecordIDs:        doc.SignatureRecordIDs,
		DocumentRef:               doc.DocumentRef,
		ProofOfPersonhoodRequired: doc.IdentityPolicy == models.PolicyProofOfPersonhood,
	}

	lctx, cancel := withTimeout(ctx, f.opts.LedgerTimeout)
	recordID, err := f.ledger.CommitOnchain(lctx, payload)
	cancel()
	if err != nil {
		return nil, asKind(common.ErrLedgerUnavailable, err, "commit final attestation")
	}

	stored, err := f.repo.SetFinalAttestation(ctx, doc.ID, recordID)
	if err != nil {
		f.log.Error(ctx, "final attestation committed but not stored", "document_id", doc.ID, "record_id", recordID, "error", err)
		return nil, asKind(common.ErrStorageFailure, err, "store final attestation")
	}
	if !stored {
		f.log.Warn(ctx, "final attestation lost race", "document_id", doc.ID, "orphan_record_id", recordID)
		doc, err = f.repo.FindByID(ctx, documentID)
		if err != nil {
			return nil, asKind(common.ErrStorageFailure, err, "find document")
		}
		return finalized(doc, true), nil
	}

	f.log.Info(ctx, "document finalized", "document_id", doc.ID, "record_id", recordID)
	doc.FinalAttestationID = recordID
	return finalized(doc, false), nil
}

func finalized(doc *models.Document, already bool) *FinalAttestationResult {
	return &FinalAttestationResult{
		DocumentID:         doc.ID,
		FinalAttestationID: doc.FinalAttestationID,
		SignatureRecordIDs: doc.SignatureRecordIDs,
		AlreadyFinalized:   already,
	}
}
