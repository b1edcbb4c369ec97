// Package models defines server-side data models persisted in the database.
package models

import "time"

// IdentityPolicy names the proof kind every signer of a document must present.
type IdentityPolicy string

const (
	PolicyProofOfPersonhood IdentityPolicy = "proof_of_personhood"
	PolicyWalletSignature   IdentityPolicy = "wallet_signature"
)

// Valid reports whether p is one of the known policies.
func (p IdentityPolicy) Valid() bool {
	return p == PolicyProofOfPersonhood || p == PolicyWalletSignature
}

// DocumentState is the lifecycle label derived from a document's counters.
type DocumentState string

const (
	StateDraft            DocumentState = "draft"
	StatePublished        DocumentState = "published"
	StateCollecting       DocumentState = "collecting"
	StateThresholdReached DocumentState = "threshold_reached"
	StateFinalized        DocumentState = "finalized"
)

// Document is a published, content-addressed document collecting signatures.
type Document struct {
	ID          string
	ContentHash string
	// DocumentRef is the reference written into attestation payloads. It is
	// either the content hash or a sealed digest of it, fixed at publish time.
	DocumentRef string
	// SealedRef holds the nonce-prefixed ciphertext of the content hash when
	// DocumentRef is sealed; nil otherwise.
	SealedRef           []byte
	RequiredSignatures  int
	RemainingSignatures int
	IdentityPolicy      IdentityPolicy
	Recipients          []string
	CreatorID           string
	// SignatureRecordIDs lists the attestation record ids of accepted
	// signatures in acceptance order.
	SignatureRecordIDs []string
	FinalAttestationID string
	CreatedAt          time.Time
	FinalizedAt        *time.Time
}

// State derives the lifecycle state. A document that has not been stored yet
// (no id) is a draft.
func (d *Document) State() DocumentState {
	switch {
	case d.ID == "":
		return StateDraft
	case d.FinalAttestationID != "":
		return StateFinalized
	case d.RemainingSignatures == 0:
		return StateThresholdReached
	case d.RemainingSignatures == d.RequiredSignatures:
		return StatePublished
	default:
		return StateCollecting
	}
}

// IsComplete reports whether the signature threshold has been reached.
func (d *Document) IsComplete() bool {
	return d.RemainingSignatures == 0
}
