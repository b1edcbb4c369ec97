// Package api holds the JSON wire types shared by the gRPC and HTTP
// transports and by the signer CLI.
package api

import (
	"time"

	"github.com/dmitrijs2005/docattest/internal/common"
	"github.com/dmitrijs2005/docattest/internal/server/identity"
	"github.com/dmitrijs2005/docattest/internal/server/models"
)

type Identity struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// Proof carries either a wallet signature or a World ID proof.
type Proof struct {
	Signature         string `json:"signature,omitempty"`
	MerkleRoot        string `json:"merkleRoot,omitempty"`
	NullifierHash     string `json:"nullifierHash,omitempty"`
	Proof             string `json:"proof,omitempty"`
	VerificationLevel string `json:"verificationLevel,omitempty"`
}

type PublishRequest struct {
	ContentHash        string   `json:"contentHash"`
	RequiredSignatures int      `json:"requiredSignatures"`
	IdentityPolicy     string   `json:"identityPolicy"`
	Recipients         []string `json:"recipients,omitempty"`
	Creator            Identity `json:"creator"`
}

type SubmitRequest struct {
	DocumentID  string   `json:"documentId,omitempty"`
	ContentHash string   `json:"contentHash,omitempty"`
	Identity    Identity `json:"identity"`
	Proof       Proof    `json:"proof"`
}

type DocumentIDRequest struct {
	DocumentID string `json:"documentId"`
}

type CheckRequest struct {
	ContentHash string `json:"contentHash"`
}

type VerifyRequest struct {
	ContentHash    string   `json:"contentHash"`
	IdentityPolicy string   `json:"identityPolicy"`
	Identity       Identity `json:"identity"`
	Proof          Proof    `json:"proof"`
}

type Document struct {
	ID                  string     `json:"id"`
	ContentHash         string     `json:"contentHash"`
	DocumentRef         string     `json:"documentRef"`
	RequiredSignatures  int        `json:"requiredSignatures"`
	RemainingSignatures int        `json:"remainingSignatures"`
	IdentityPolicy      string     `json:"identityPolicy"`
	Recipients          []string   `json:"recipients"`
	SignatureRecordIDs  []string   `json:"signatureRecordIds"`
	FinalAttestationID  string     `json:"finalAttestationId,omitempty"`
	State               string     `json:"state"`
	IsComplete          bool       `json:"isComplete"`
	CreatedAt           time.Time  `json:"createdAt"`
	FinalizedAt         *time.Time `json:"finalizedAt,omitempty"`
}

type SignatureResult struct {
	Outcome             string `json:"outcome"`
	DocumentID          string `json:"documentId"`
	AttestationRecordID string `json:"attestationRecordId,omitempty"`
	AttestationToken    string `json:"attestationToken,omitempty"`
	OrphanRecordID      string `json:"orphanRecordId,omitempty"`
	Position            int    `json:"position"`
	RemainingSignatures int    `json:"remainingSignatures"`
	IsComplete          bool   `json:"isComplete"`
	FinalAttestationID  string `json:"finalAttestationId,omitempty"`
}

type FinalAttestation struct {
	DocumentID         string   `json:"documentId"`
	FinalAttestationID string   `json:"finalAttestationId"`
	SignatureRecordIDs []string `json:"signatureRecordIds"`
	AlreadyFinalized   bool     `json:"alreadyFinalized"`
}

type CheckResult struct {
	Exists     bool   `json:"exists"`
	DocumentID string `json:"documentId,omitempty"`
}

type Verdict struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

type Upload struct {
	ContentHash string `json:"contentHash"`
	Filename    string `json:"filename"`
}

type Error struct {
	Code      uint32 `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func NewError(err error) Error {
	return Error{Code: common.CodeOf(err), Message: err.Error(), Retryable: common.IsRetryable(err)}
}

// ToIdentity parses the wire identity into its typed variant.
func (i Identity) ToIdentity() (identity.Identity, error) {
	return identity.ParseIdentity(models.IdentityKind(i.Kind), i.Value)
}

// ToProof picks the proof variant matching kind.
func (p Proof) ToProof(kind models.IdentityKind) (identity.Proof, error) {
	switch kind {
	case models.IdentityWallet:
		if p.Signature == "" {
			return nil, common.ErrInvalidInput.New("wallet signature is empty")
		}
		return identity.WalletSignature{Signature: p.Signature}, nil
	case models.IdentityPersonhood:
		if p.Proof == "" || p.MerkleRoot == "" || p.NullifierHash == "" {
			return nil, common.ErrInvalidInput.New("personhood proof is incomplete")
		}
		return identity.PersonhoodProof{
			MerkleRoot:        p.MerkleRoot,
			NullifierHash:     p.NullifierHash,
			Proof:             p.Proof,
			VerificationLevel: p.VerificationLevel,
		}, nil
	}
	return nil, common.ErrInvalidInput.Newf("unknown identity kind %q", kind)
}

// Claim resolves identity and proof together.
func Claim(i Identity, p Proof) (identity.Identity, identity.Proof, error) {
	id, err := i.ToIdentity()
	if err != nil {
		return nil, nil, err
	}
	proof, err := p.ToProof(id.Kind())
	if err != nil {
		return nil, nil, err
	}
	return id, proof, nil
}

func NewDocument(d *models.Document) Document {
	out := Document{
		ID:                  d.ID,
		ContentHash:         d.ContentHash,
		DocumentRef:         d.DocumentRef,
		RequiredSignatures:  d.RequiredSignatures,
		RemainingSignatures: d.RemainingSignatures,
		IdentityPolicy:      string(d.IdentityPolicy),
		Recipients:          d.Recipients,
		SignatureRecordIDs:  d.SignatureRecordIDs,
		FinalAttestationID:  d.FinalAttestationID,
		State:               string(d.State()),
		IsComplete:          d.IsComplete(),
		CreatedAt:           d.CreatedAt,
		FinalizedAt:         d.FinalizedAt,
	}
	if out.Recipients == nil {
		out.Recipients = []string{}
	}
	if out.SignatureRecordIDs == nil {
		out.SignatureRecordIDs = []string{}
	}
	return out
}
