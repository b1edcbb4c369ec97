// Package identity verifies that a signer controls the identity they claim,
// either through a World ID proof of personhood or a wallet signature over
// the document approval message.
package identity

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/docattest/internal/common"
	"github.com/dmitrijs2005/docattest/internal/server/models"
)

// Identity is the signer identity: PersonhoodID or WalletAddress.
type Identity interface {
	Kind() models.IdentityKind
	Value() string
	isIdentity()
}

// PersonhoodID is a World ID nullifier hash scoped to this application.
type PersonhoodID string

func (PersonhoodID) Kind() models.IdentityKind { return models.IdentityPersonhood }
func (p PersonhoodID) Value() string           { return string(p) }
func (PersonhoodID) isIdentity()               {}

// Chain tells which signature scheme a wallet address uses.
type Chain int

const (
	ChainEVM Chain = iota + 1
	ChainSubstrate
)

// WalletAddress is a normalized account identifier: "0x" + 40 lowercase hex
// for EVM accounts, "0x" + 64 lowercase hex public key for Substrate accounts.
type WalletAddress string

func (WalletAddress) Kind() models.IdentityKind { return models.IdentityWallet }
func (w WalletAddress) Value() string           { return string(w) }
func (WalletAddress) isIdentity()               {}

// Chain derives the scheme from the normalized form.
func (w WalletAddress) Chain() Chain {
	if len(w) == 42 {
		return ChainEVM
	}
	return ChainSubstrate
}

// NewPersonhoodID normalizes a nullifier hash.
func NewPersonhoodID(nullifier string) (PersonhoodID, error) {
	n := strings.ToLower(strings.TrimSpace(nullifier))
	if !isHex(strings.TrimPrefix(n, "0x")) {
		return "", common.ErrInvalidInput.Newf("malformed nullifier hash %q", nullifier)
	}
	if !strings.HasPrefix(n, "0x") {
		n = "0x" + n
	}
	return PersonhoodID(n), nil
}

// NewWalletAddress accepts an EVM address, a hex Substrate public key or an
// SS58 address and returns its normalized form.
func NewWalletAddress(addr string) (WalletAddress, error) {
	a := strings.TrimSpace(addr)
	lower := strings.ToLower(a)

	switch {
	case strings.HasPrefix(lower, "0x") && len(lower) == 42 && isHex(lower[2:]):
		return WalletAddress(lower), nil
	case strings.HasPrefix(lower, "0x") && len(lower) == 66 && isHex(lower[2:]):
		return WalletAddress(lower), nil
	}

	pub, err := decodeSS58(a)
	if err != nil {
		return "", common.ErrInvalidInput.Newf("unrecognized wallet address %q", addr)
	}
	return WalletAddress("0x" + hex.EncodeToString(pub)), nil
}

// ParseIdentity builds an Identity from its transport form.
func ParseIdentity(kind models.IdentityKind, value string) (Identity, error) {
	switch kind {
	case models.IdentityPersonhood:
		return NewPersonhoodID(value)
	case models.IdentityWallet:
		return NewWalletAddress(value)
	default:
		return nil, common.ErrInvalidInput.Newf("unknown identity kind %q", kind)
	}
}

// NormalizeRecipient brings a recipient entry to the form signer identities
// are stored in, so allow-list checks compare like with like.
func NormalizeRecipient(r string) (string, error) {
	if w, err := NewWalletAddress(r); err == nil {
		return w.Value(), nil
	}
	if p, err := NewPersonhoodID(r); err == nil {
		return p.Value(), nil
	}
	return "", common.ErrInvalidInput.Newf("unrecognized recipient %q", r)
}

// Proof is the material presented with a signature: PersonhoodProof or WalletSignature.
type Proof interface {
	isProof()
}

// PersonhoodProof is a World ID zero-knowledge proof.
type PersonhoodProof struct {
	MerkleRoot        string `json:"merkle_root"`
	NullifierHash     string `json:"nullifier_hash"`
	Proof             string `json:"proof"`
	VerificationLevel string `json:"verification_level"`
}

func (PersonhoodProof) isProof() {}

// WalletSignature is a hex signature over ApprovalMessage.
type WalletSignature struct {
	Signature string `json:"signature"`
}

func (WalletSignature) isProof() {}

// ApprovalMessage is what a wallet signs to approve a document.
func ApprovalMessage(contentHash string) string {
	return fmt.Sprintf("docattest: I approve document %s", contentHash)
}

// Claim is a verification request.
type Claim struct {
	Identity    Identity
	Proof       Proof
	Policy      models.IdentityPolicy
	ContentHash string
}

// Verdict is the outcome of a verification that reached a conclusion.
type Verdict struct {
	Valid  bool
	Reason string
}

func invalid(format string, args ...any) Verdict {
	return Verdict{Valid: false, Reason: fmt.Sprintf(format, args...)}
}

// Verifier checks claims. It returns an error only when the decision could
// not be made, e.g. the external verifier is unreachable; a bad proof is a
// Verdict with Valid false.
type Verifier interface {
	Verify(ctx context.Context, c Claim) (Verdict, error)
}

// PersonhoodChecker verifies World ID proofs bound to signal.
type PersonhoodChecker interface {
	CheckPersonhood(ctx context.Context, p PersonhoodProof, signal string) (Verdict, error)
}

// PolicyVerifier dispatches a claim to the check its policy requires.
type PolicyVerifier struct {
	personhood PersonhoodChecker
}

func NewPolicyVerifier(personhood PersonhoodChecker) *PolicyVerifier {
	return &PolicyVerifier{personhood: personhood}
}

func (v *PolicyVerifier) Verify(ctx context.Context, c Claim) (Verdict, error) {
	switch c.Policy {
	case models.PolicyProofOfPersonhood:
		id, ok := c.Identity.(PersonhoodID)
		if !ok {
			return invalid("policy %s needs a personhood identity", c.Policy), nil
		}
		p, ok := c.Proof.(PersonhoodProof)
		if !ok {
			return invalid("policy %s needs a personhood proof", c.Policy), nil
		}
		nullifier, err := NewPersonhoodID(p.NullifierHash)
		if err != nil || nullifier != id {
			return invalid("proof nullifier does not match identity"), nil
		}
		return v.personhood.CheckPersonhood(ctx, p, c.ContentHash)

	case models.PolicyWalletSignature:
		addr, ok := c.Identity.(WalletAddress)
		if !ok {
			return invalid("policy %s needs a wallet identity", c.Policy), nil
		}
		sig, ok := c.Proof.(WalletSignature)
		if !ok {
			return invalid("policy %s needs a wallet signature", c.Policy), nil
		}
		msg := []byte(ApprovalMessage(c.ContentHash))
		if addr.Chain() == ChainEVM {
			return VerifyEVMSignature(addr, sig.Signature, msg), nil
		}
		return VerifySubstrateSignature(addr, sig.Signature, msg), nil

	default:
		return Verdict{}, common.ErrInvalidInput.Newf("unknown identity policy %q", c.Policy)
	}
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil && len(s)%2 == 0
}
