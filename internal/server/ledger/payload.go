// Package ledger produces attestation records: signed off-chain tokens for
// individual signatures and on-chain transactions for final document
// attestations.
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

const (
	SignatureSchema = "docattest.signature.v1"
	FinalSchema     = "docattest.document-final.v1"
)

// Payload is one of SignatureAttestationPayload or DocumentFinalAttestationPayload.
type Payload interface {
	Schema() string
	isPayload()
}

// SignatureAttestationPayload binds one signer's proof to a document reference.
type SignatureAttestationPayload struct {
	DocumentRef     string `json:"documentRef"`
	SignerKind      string `json:"signerKind"`
	Signer          string `json:"signer"`
	Signature       string `json:"signature"`
	PersonhoodProof string `json:"personhoodProof"`
}

func (SignatureAttestationPayload) Schema() string { return SignatureSchema }
func (SignatureAttestationPayload) isPayload()     {}

// DocumentFinalAttestationPayload rolls the accepted signatures of a
// document into one record.
type DocumentFinalAttestationPayload struct {
	RequiredSignatures        int      `json:"requiredSignatures"`
	SignatureRecordIDs        []string `json:"signatureRecordIds"`
	DocumentRef               string   `json:"documentRef"`
	ProofOfPersonhoodRequired bool     `json:"proofOfPersonhoodRequired"`
}

func (DocumentFinalAttestationPayload) Schema() string { return FinalSchema }
func (DocumentFinalAttestationPayload) isPayload()     {}

type envelope struct {
	Schema  string  `json:"schema"`
	Payload Payload `json:"payload"`
}

// Encode returns the canonical bytes of p. Field order is fixed by the
// struct definitions, so independent verifiers can rebuild the same bytes.
func Encode(p Payload) ([]byte, error) {
	if fp, ok := p.(DocumentFinalAttestationPayload); ok && fp.SignatureRecordIDs == nil {
		fp.SignatureRecordIDs = []string{}
		p = fp
	}
	return json.Marshal(envelope{Schema: p.Schema(), Payload: p})
}

// Digest is the 0x-prefixed SHA-256 of the canonical encoding.
func Digest(p Payload) (string, error) {
	b, err := Encode(p)
	if err != nil {
		return "", err
	}
	return digestBytes(b), nil
}

func digestBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return "0x" + hex.EncodeToString(sum[:])
}
