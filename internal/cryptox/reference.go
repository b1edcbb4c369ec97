package cryptox

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// Reference modes. A deployment uses exactly one.
const (
	ModePlain  = "plain"
	ModeSealed = "sealed"
)

var referenceSalt = []byte("docattest-reference")

// Referencer turns a content hash into the document reference written to
// the attestation ledger.
type Referencer interface {
	// Reference returns the ledger reference and, for sealed modes, the
	// material needed to recover the content hash later.
	Reference(contentHash string) (ref string, sealed []byte, err error)
	// Recover returns the content hash behind ref.
	Recover(ref string, sealed []byte) (string, error)
	Mode() string
}

// NewReferencer builds the Referencer for mode.
func NewReferencer(mode string, secret string) (Referencer, error) {
	switch mode {
	case "", ModePlain:
		return PlainReferencer{}, nil
	case ModeSealed:
		if secret == "" {
			return nil, errors.New("sealed reference mode needs a secret")
		}
		return NewSealedReferencer([]byte(secret)), nil
	default:
		return nil, fmt.Errorf("unknown reference mode %q", mode)
	}
}

// PlainReferencer writes the content hash itself.
type PlainReferencer struct{}

func (PlainReferencer) Reference(contentHash string) (string, []byte, error) {
	return contentHash, nil, nil
}

func (PlainReferencer) Recover(ref string, _ []byte) (string, error) {
	return ref, nil
}

func (PlainReferencer) Mode() string { return ModePlain }

// SealedReferencer writes "0x" + hex(SHA-256(ciphertext)) where the
// ciphertext is the deterministically sealed content hash. Ledger readers
// learn nothing about the content address; the server recovers it from the
// sealed value stored with the document.
type SealedReferencer struct {
	key []byte
}

func NewSealedReferencer(secret []byte) *SealedReferencer {
	return &SealedReferencer{key: DeriveKey(secret, referenceSalt)}
}

func (s *SealedReferencer) Reference(contentHash string) (string, []byte, error) {
	sealed, err := SealDeterministic(s.key, []byte(contentHash))
	if err != nil {
		return "", nil, err
	}
	return digestRef(sealed), sealed, nil
}

func (s *SealedReferencer) Recover(ref string, sealed []byte) (string, error) {
	if digestRef(sealed) != ref {
		return "", errors.New("sealed value does not match reference")
	}
	plain, err := Open(s.key, sealed)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func (s *SealedReferencer) Mode() string { return ModeSealed }

func digestRef(sealed []byte) string {
	const nonceSize = 12
	if len(sealed) < nonceSize {
		return ""
	}
	sum := sha256.Sum256(sealed[nonceSize:])
	return "0x" + hex.EncodeToString(sum[:])
}
