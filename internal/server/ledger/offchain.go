package ledger

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/docattest/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// OffchainRecord is a portable attestation: RecordID is the payload digest
// and Token an EdDSA-signed JWT carrying the payload.
type OffchainRecord struct {
	RecordID string
	Token    string
}

// OffchainClaims is the token body. Payload keeps the exact canonical bytes
// so the digest can be recomputed from the token alone.
type OffchainClaims struct {
	UID     string          `json:"uid"`
	Schema  string          `json:"schema"`
	Payload json.RawMessage `json:"payload"`
	jwt.RegisteredClaims
}

// OffchainSigner signs attestation tokens with the attestor's ed25519 key.
type OffchainSigner struct {
	key    ed25519.PrivateKey
	issuer string
	now    func() time.Time
}

// NewOffchainSigner takes the key as a hex-encoded 32-byte seed.
func NewOffchainSigner(seedHex string, issuer string) (*OffchainSigner, error) {
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, fmt.Errorf("attestor key: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("attestor key must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return &OffchainSigner{key: ed25519.NewKeyFromSeed(seed), issuer: issuer, now: time.Now}, nil
}

// PublicKey is what verifiers need to check tokens.
func (s *OffchainSigner) PublicKey() ed25519.PublicKey {
	return s.key.Public().(ed25519.PublicKey)
}

// SignOffchain signs p. Signing the same payload again yields the same RecordID.
func (s *OffchainSigner) SignOffchain(ctx context.Context, p Payload) (OffchainRecord, error) {
	if err := ctx.Err(); err != nil {
		return OffchainRecord{}, common.ErrLedgerUnavailable.Wrap(err, "sign offchain")
	}

	encoded, err := Encode(p)
	if err != nil {
		return OffchainRecord{}, err
	}
	uid := digestBytes(encoded)

	claims := OffchainClaims{
		UID:     uid,
		Schema:  p.Schema(),
		Payload: encoded,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   s.issuer,
			IssuedAt: jwt.NewNumericDate(s.now()),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(s.key)
	if err != nil {
		return OffchainRecord{}, common.ErrLedgerUnavailable.Wrap(err, "sign offchain")
	}

	return OffchainRecord{RecordID: uid, Token: token}, nil
}

// VerifyOffchain checks the token signature against pub and that its uid
// is the digest of the carried payload.
func VerifyOffchain(token string, pub ed25519.PublicKey) (*OffchainClaims, error) {
	claims := &OffchainClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return pub, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}))
	if err != nil {
		return nil, err
	}

	if digestBytes(claims.Payload) != claims.UID {
		return nil, errors.New("uid does not match payload")
	}
	return claims, nil
}
