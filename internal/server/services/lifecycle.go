package services

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/docattest/internal/common"
	"github.com/dmitrijs2005/docattest/internal/cryptox"
	"github.com/dmitrijs2005/docattest/internal/logging"
	"github.com/dmitrijs2005/docattest/internal/server/identity"
	"github.com/dmitrijs2005/docattest/internal/server/models"
)

const maxContentHashLen = 128

// PublishRequest describes a document to publish.
type PublishRequest struct {
	ContentHash        string
	RequiredSignatures int
	IdentityPolicy     models.IdentityPolicy
	Recipients         []string
	Creator            identity.Identity
}

// CheckResult answers whether a content hash has been published.
type CheckResult struct {
	Exists     bool
	DocumentID string
}

// DocumentLifecycle owns document creation and state queries.
type DocumentLifecycle struct {
	repo    DocumentRepository
	ref     cryptox.Referencer
	enforce bool
	log     logging.Logger
}

func NewDocumentLifecycle(repo DocumentRepository, ref cryptox.Referencer, opts Options, log logging.Logger) *DocumentLifecycle {
	return &DocumentLifecycle{
		repo:    repo,
		ref:     ref,
		enforce: opts.EnforceRecipients,
		log:     log.With("module", "lifecycle"),
	}
}

// Publish stores a document awaiting RequiredSignatures signatures, the
// creator's included. Publishing a content hash that already exists returns
// the stored document unchanged.
func (l *DocumentLifecycle) Publish(ctx context.Context, req PublishRequest) (*models.Document, error) {
	hash, recipients, err := l.validate(req)
	if err != nil {
		return nil, err
	}

	existing, err := l.repo.FindByContentHash(ctx, hash)
	if err == nil {
		l.log.Info(ctx, "document already published", "document_id", existing.ID, "content_hash", hash)
		return existing, nil
	}
	if !isNotFound(err) {
		return nil, asKind(common.ErrStorageFailure, err, "find document")
	}

	creator, err := l.repo.FindOrCreateSigner(ctx, req.Creator.Kind(), req.Creator.Value())
	if err != nil {
		return nil, asKind(common.ErrStorageFailure, err, "resolve creator")
	}

	ref, sealed, err := l.ref.Reference(hash)
	if err != nil {
		return nil, err
	}

	doc, created, err := l.repo.InsertDocument(ctx, &models.Document{
		ContentHash:        hash,
		DocumentRef:        ref,
		SealedRef:          sealed,
		RequiredSignatures: req.RequiredSignatures,
		IdentityPolicy:     req.IdentityPolicy,
		Recipients:         recipients,
		CreatorID:          creator.ID,
	})
	if err != nil {
		return nil, asKind(common.ErrStorageFailure, err, "insert document")
	}

	if created {
		l.log.Info(ctx, "document published",
			"document_id", doc.ID, "content_hash", hash,
			"required_signatures", doc.RequiredSignatures, "policy", doc.IdentityPolicy)
	} else {
		l.log.Info(ctx, "document published concurrently", "document_id", doc.ID, "content_hash", hash)
	}
	return doc, nil
}

func (l *DocumentLifecycle) validate(req PublishRequest) (string, []string, error) {
	hash := strings.TrimSpace(req.ContentHash)
	if hash == "" {
		return "", nil, common.ErrInvalidInput.New("content hash is empty")
	}
	if len(hash) > maxContentHashLen || strings.ContainsAny(hash, " \t\r\n") {
		return "", nil, common.ErrInvalidInput.New("content hash is malformed")
	}
	if req.RequiredSignatures < 1 {
		return "", nil, common.ErrInvalidInput.Newf("required signatures must be at least 1, got %d", req.RequiredSignatures)
	}
	if !req.IdentityPolicy.Valid() {
		return "", nil, common.ErrInvalidInput.Newf("unknown identity policy %q", req.IdentityPolicy)
	}
	if req.Creator == nil {
		return "", nil, common.ErrInvalidInput.New("creator identity is missing")
	}
	if !policyAccepts(req.IdentityPolicy, req.Creator) {
		return "", nil, common.ErrPolicyMismatch.Newf("%s identity under %s policy", req.Creator.Kind(), req.IdentityPolicy)
	}

	seen := map[string]struct{}{req.Creator.Value(): {}}
	recipients := make([]string, 0, len(req.Recipients))
	for _, r := range req.Recipients {
		n, err := identity.NormalizeRecipient(r)
		if err != nil {
			return "", nil, err
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		recipients = append(recipients, n)
	}

	if len(recipients) > 0 {
		minimum := len(recipients) + 1
		if req.RequiredSignatures < minimum {
			return "", nil, common.ErrInvalidInput.Newf("%d recipients need at least %d signatures", len(recipients), minimum)
		}
		if l.enforce && req.RequiredSignatures > minimum {
			return "", nil, common.ErrInvalidInput.Newf("only %d parties may sign, threshold %d is unreachable", minimum, req.RequiredSignatures)
		}
	}

	return hash, recipients, nil
}

func policyAccepts(p models.IdentityPolicy, id identity.Identity) bool {
	switch p {
	case models.PolicyProofOfPersonhood:
		return id.Kind() == models.IdentityPersonhood
	case models.PolicyWalletSignature:
		return id.Kind() == models.IdentityWallet
	default:
		return false
	}
}

// Get returns the document with the given id.
func (l *DocumentLifecycle) Get(ctx context.Context, id string) (*models.Document, error) {
	doc, err := l.repo.FindByID(ctx, id)
	return doc, asKind(common.ErrStorageFailure, err, "")
}

// GetByContentHash returns the document published for contentHash.
func (l *DocumentLifecycle) GetByContentHash(ctx context.Context, contentHash string) (*models.Document, error) {
	doc, err := l.repo.FindByContentHash(ctx, strings.TrimSpace(contentHash))
	return doc, asKind(common.ErrStorageFailure, err, "")
}

// Check reports whether contentHash has been published.
func (l *DocumentLifecycle) Check(ctx context.Context, contentHash string) (CheckResult, error) {
	doc, err := l.GetByContentHash(ctx, contentHash)
	if err != nil {
		if isNotFound(err) {
			return CheckResult{}, nil
		}
		return CheckResult{}, err
	}
	return CheckResult{Exists: true, DocumentID: doc.ID}, nil
}

// Signatures lists the accepted signatures of a document in order.
func (l *DocumentLifecycle) Signatures(ctx context.Context, documentID string) ([]*models.Signature, error) {
	list, err := l.repo.ListSignatures(ctx, documentID)
	return list, asKind(common.ErrStorageFailure, err, "")
}

// ContentHashOf returns the content hash behind the document's ledger
// reference, recovering it from the sealed form when needed.
func (l *DocumentLifecycle) ContentHashOf(doc *models.Document) (string, error) {
	return l.ref.Recover(doc.DocumentRef, doc.SealedRef)
}
