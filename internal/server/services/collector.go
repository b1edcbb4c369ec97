package services

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"

	"github.com/dmitrijs2005/docattest/internal/common"
	"github.com/dmitrijs2005/docattest/internal/logging"
	"github.com/dmitrijs2005/docattest/internal/server/identity"
	"github.com/dmitrijs2005/docattest/internal/server/ledger"
	"github.com/dmitrijs2005/docattest/internal/server/models"
)

// Outcome classifies a handled submission.
type Outcome string

const (
	OutcomeAccepted      Outcome = "accepted"
	OutcomeAlreadySigned Outcome = "already_signed"
	OutcomeThresholdMet  Outcome = "threshold_met"
)

// SubmitRequest carries one signer's approval. DocumentID takes precedence
// over ContentHash when both are set.
type SubmitRequest struct {
	DocumentID  string
	ContentHash string
	Identity    identity.Identity
	Proof       identity.Proof
}

// SignatureResult describes what happened to a submission.
//
// For OutcomeAlreadySigned AttestationRecordID is the record of the earlier
// signature. OrphanRecordID is set when an attestation record was minted but
// lost the race for a slot.
type SignatureResult struct {
	Outcome             Outcome
	DocumentID          string
	AttestationRecordID string
	AttestationToken    string
	OrphanRecordID      string
	Position            int
	RemainingSignatures int
	IsComplete          bool
	FinalAttestationID  string
}

// Err maps terminal outcomes to their taxonomy error.
func (r *SignatureResult) Err() error {
	switch r.Outcome {
	case OutcomeAlreadySigned:
		return common.ErrAlreadySigned.New(r.DocumentID)
	case OutcomeThresholdMet:
		return common.ErrThresholdAlreadyMet.New(r.DocumentID)
	}
	return nil
}

type finalizer interface {
	Finalize(ctx context.Context, documentID string) (*FinalAttestationResult, error)
}

// SignatureCollector accepts signatures until a document's threshold is met.
type SignatureCollector struct {
	repo      DocumentRepository
	verifier  identity.Verifier
	ledger    AttestationLedger
	finalizer finalizer
	opts      Options
	log       logging.Logger
}

// NewSignatureCollector builds a collector. fin may be nil when
// opts.AutoFinalize is off.
func NewSignatureCollector(repo DocumentRepository, verifier identity.Verifier, l AttestationLedger, fin finalizer, opts Options, log logging.Logger) *SignatureCollector {
	return &SignatureCollector{
		repo:      repo,
		verifier:  verifier,
		ledger:    l,
		finalizer: fin,
		opts:      opts,
		log:       log.With("module", "collector"),
	}
}

// Submit verifies the proof and records the signature. AlreadySigned and
// ThresholdMet are returned as outcomes with a nil error; a failed proof,
// an unknown document and a foreign signer are errors and mutate nothing.
func (c *SignatureCollector) Submit(ctx context.Context, req SubmitRequest) (*SignatureResult, error) {
	if req.Identity == nil || req.Proof == nil {
		return nil, common.ErrInvalidInput.New("identity and proof are required")
	}

	doc, err := c.lookup(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := c.verify(ctx, doc, req); err != nil {
		c.log.Warn(ctx, "signature rejected", "document_id", doc.ID, "signer", req.Identity.Value(), "error", err)
		return nil, err
	}

	signer, err := c.repo.FindOrCreateSigner(ctx, req.Identity.Kind(), req.Identity.Value())
	if err != nil {
		return nil, asKind(common.ErrStorageFailure, err, "resolve signer")
	}

	if c.opts.EnforceRecipients && len(doc.Recipients) > 0 &&
		signer.ID != doc.CreatorID && !slices.Contains(doc.Recipients, req.Identity.Value()) {
		return nil, common.ErrNotRecipient.New(req.Identity.Value())
	}

	prior, err := c.repo.FindSignature(ctx, doc.ID, signer.ID)
	switch {
	case err == nil:
		return c.alreadySigned(doc, prior), nil
	case !isNotFound(err):
		return nil, asKind(common.ErrStorageFailure, err, "find signature")
	}

	if doc.RemainingSignatures == 0 {
		return thresholdMet(doc, ""), nil
	}

	payload, err := signaturePayload(doc, req)
	if err != nil {
		return nil, err
	}
	lctx, cancel := withTimeout(ctx, c.opts.LedgerTimeout)
	record, err := c.ledger.SignOffchain(lctx, payload)
	cancel()
	if err != nil {
		return nil, asKind(common.ErrLedgerUnavailable, err, "sign attestation")
	}

	updated, err := c.repo.RecordSignature(ctx, &models.Signature{
		DocumentID:          doc.ID,
		SignerID:            signer.ID,
		AttestationRecordID: record.RecordID,
		AttestationToken:    record.Token,
	})
	if err != nil {
		return c.lostRace(ctx, doc, signer, record, err)
	}

	res := &SignatureResult{
		Outcome:             OutcomeAccepted,
		DocumentID:          updated.ID,
		AttestationRecordID: record.RecordID,
		AttestationToken:    record.Token,
		Position:            len(updated.SignatureRecordIDs) - 1,
		RemainingSignatures: updated.RemainingSignatures,
		IsComplete:          updated.IsComplete(),
	}
	if i := slices.Index(updated.SignatureRecordIDs, record.RecordID); i >= 0 {
		res.Position = i
	}

	c.log.Info(ctx, "signature accepted",
		"document_id", doc.ID, "signer_id", signer.ID, "record_id", record.RecordID,
		"remaining", updated.RemainingSignatures)

	if res.IsComplete && c.opts.AutoFinalize && c.finalizer != nil {
		fin, err := c.finalizer.Finalize(ctx, doc.ID)
		if err != nil {
			c.log.Warn(ctx, "auto finalize failed", "document_id", doc.ID, "error", err)
		} else {
			res.FinalAttestationID = fin.FinalAttestationID
		}
	}

	return res, nil
}

func (c *SignatureCollector) lookup(ctx context.Context, req SubmitRequest) (*models.Document, error) {
	var (
		doc *models.Document
		err error
	)
	switch {
	case req.DocumentID != "":
		doc, err = c.repo.FindByID(ctx, req.DocumentID)
	case strings.TrimSpace(req.ContentHash) != "":
		doc, err = c.repo.FindByContentHash(ctx, strings.TrimSpace(req.ContentHash))
	default:
		return nil, common.ErrInvalidInput.New("document id or content hash is required")
	}
	return doc, asKind(common.ErrStorageFailure, err, "find document")
}

func (c *SignatureCollector) verify(ctx context.Context, doc *models.Document, req SubmitRequest) error {
	vctx, cancel := withTimeout(ctx, c.opts.VerifyTimeout)
	defer cancel()

	verdict, err := c.verifier.Verify(vctx, identity.Claim{
		Identity:    req.Identity,
		Proof:       req.Proof,
		Policy:      doc.IdentityPolicy,
		ContentHash: doc.ContentHash,
	})
	if err != nil {
		return asKind(common.ErrVerifierUnavailable, err, "verify proof")
	}
	if !verdict.Valid {
		return common.ErrProofInvalid.New(verdict.Reason)
	}
	return nil
}

func (c *SignatureCollector) alreadySigned(doc *models.Document, prior *models.Signature) *SignatureResult {
	return &SignatureResult{
		Outcome:             OutcomeAlreadySigned,
		DocumentID:          doc.ID,
		AttestationRecordID: prior.AttestationRecordID,
		AttestationToken:    prior.AttestationToken,
		Position:            prior.Position,
		RemainingSignatures: doc.RemainingSignatures,
		IsComplete:          doc.IsComplete(),
		FinalAttestationID:  doc.FinalAttestationID,
	}
}

func thresholdMet(doc *models.Document, orphan string) *SignatureResult {
	return &SignatureResult{
		Outcome:            OutcomeThresholdMet,
		DocumentID:         doc.ID,
		OrphanRecordID:     orphan,
		IsComplete:         true,
		FinalAttestationID: doc.FinalAttestationID,
	}
}

// lostRace handles a RecordSignature rejection after the record was minted.
// A signer whose concurrent submit already took a slot gets AlreadySigned
// even when that submit also took the last slot.
func (c *SignatureCollector) lostRace(ctx context.Context, doc *models.Document, signer *models.Signer, record ledger.OffchainRecord, cause error) (*SignatureResult, error) {
	if !errors.Is(cause, common.ErrThresholdAlreadyMet) && !errors.Is(cause, common.ErrAlreadySigned) {
		return nil, asKind(common.ErrStorageFailure, cause, "record signature")
	}

	prior, err := c.repo.FindSignature(ctx, doc.ID, signer.ID)
	switch {
	case err == nil:
		fresh, err := c.repo.FindByID(ctx, doc.ID)
		if err != nil {
			return nil, asKind(common.ErrStorageFailure, err, "find document")
		}
		res := c.alreadySigned(fresh, prior)
		if prior.AttestationRecordID != record.RecordID {
			res.OrphanRecordID = record.RecordID
		}
		return res, nil
	case !isNotFound(err):
		return nil, asKind(common.ErrStorageFailure, err, "find signature")
	case errors.Is(cause, common.ErrAlreadySigned):
		return nil, common.ErrStorageFailure.New("signature rejected as duplicate but not found")
	}

	c.log.Info(ctx, "threshold met concurrently", "document_id", doc.ID, "orphan_record_id", record.RecordID)
	return thresholdMet(doc, record.RecordID), nil
}

func signaturePayload(doc *models.Document, req SubmitRequest) (ledger.Payload, error) {
	p := ledger.SignatureAttestationPayload{
		DocumentRef: doc.DocumentRef,
		SignerKind:  string(req.Identity.Kind()),
		Signer:      req.Identity.Value(),
	}
	switch proof := req.Proof.(type) {
	case identity.WalletSignature:
		p.Signature = proof.Signature
	case identity.PersonhoodProof:
		b, err := json.Marshal(proof)
		if err != nil {
			return nil, common.ErrInvalidInput.Wrap(err, "encode personhood proof")
		}
		p.PersonhoodProof = string(b)
	}
	return p, nil
}
