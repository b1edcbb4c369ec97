// Package wallet signs document approvals with an EVM private key.
package wallet

import (
	"crypto/ecdsa"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/dmitrijs2005/docattest/internal/server/identity"
)

var ErrBadKey = errors.New("private key must be 32 bytes of hex")

type Wallet struct {
	key *ecdsa.PrivateKey
}

// FromHex loads a secp256k1 key. A 0x prefix and surrounding space are allowed.
func FromHex(s string) (*Wallet, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	key, err := crypto.HexToECDSA(s)
	if err != nil {
		return nil, ErrBadKey
	}
	return &Wallet{key: key}, nil
}

// Address is the lower-case hex address of the key.
func (w *Wallet) Address() string {
	return strings.ToLower(crypto.PubkeyToAddress(w.key.PublicKey).Hex())
}

// SignApproval returns a personal_sign signature over the approval message
// for contentHash, with the recovery byte in 27/28 form.
func (w *Wallet) SignApproval(contentHash string) (string, error) {
	msg := []byte(identity.ApprovalMessage(contentHash))
	sig, err := crypto.Sign(accounts.TextHash(msg), w.key)
	if err != nil {
		return "", err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}
