// Package services implements the document signature protocol: publishing
// documents, collecting identity-verified signatures and finalizing the
// aggregate attestation.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/docattest/internal/common"
	"github.com/dmitrijs2005/docattest/internal/server/ledger"
	"github.com/dmitrijs2005/docattest/internal/server/models"
)

// DocumentRepository is the persistence contract of the protocol. It must
// be backed by a strongly consistent store: RecordSignature is one atomic
// conditional write and SetFinalAttestation succeeds at most once.
type DocumentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Document, error)
	FindByContentHash(ctx context.Context, contentHash string) (*models.Document, error)
	InsertDocument(ctx context.Context, doc *models.Document) (*models.Document, bool, error)
	FindOrCreateSigner(ctx context.Context, kind models.IdentityKind, value string) (*models.Signer, error)
	FindSignature(ctx context.Context, documentID, signerID string) (*models.Signature, error)
	ListSignatures(ctx context.Context, documentID string) ([]*models.Signature, error)
	RecordSignature(ctx context.Context, sig *models.Signature) (*models.Document, error)
	SetFinalAttestation(ctx context.Context, documentID, recordID string) (bool, error)
}

// AttestationLedger mints attestation records.
type AttestationLedger interface {
	SignOffchain(ctx context.Context, p ledger.Payload) (ledger.OffchainRecord, error)
	CommitOnchain(ctx context.Context, p ledger.Payload) (string, error)
}

// Options tunes the services.
type Options struct {
	// EnforceRecipients restricts signing to the creator and the listed
	// recipients when a document has a recipient list.
	EnforceRecipients bool
	// AutoFinalize runs the finalizer right after the signature that
	// completes a document.
	AutoFinalize  bool
	VerifyTimeout time.Duration
	LedgerTimeout time.Duration
	LockTTL       time.Duration
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// asKind labels err with kind unless it already carries a taxonomy kind.
func asKind(kind *common.Error, err error, msg string) error {
	if err == nil || common.KindOf(err) != nil {
		return err
	}
	return kind.Wrap(err, msg)
}

func isNotFound(err error) bool {
	return errors.Is(err, common.ErrNotFound)
}
