package identity

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strings"

	schnorrkel "github.com/ChainSafe/go-schnorrkel"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

var ss58Prefix = []byte("SS58PRE")

// decodeSS58 converts an SS58 address to the raw 32-byte public key and
// checks its checksum. Both one- and two-byte network prefixes are accepted.
func decodeSS58(addr string) ([]byte, error) {
	raw, err := base58.Decode(addr)
	if err != nil {
		return nil, err
	}

	var prefixLen int
	switch len(raw) {
	case 35:
		prefixLen = 1
	case 36:
		prefixLen = 2
	default:
		return nil, errors.New("invalid ss58 address length")
	}

	body := raw[:prefixLen+32]
	sum := blake2b.Sum512(append(append([]byte{}, ss58Prefix...), body...))
	if !bytes.Equal(sum[:2], raw[prefixLen+32:]) {
		return nil, errors.New("invalid ss58 checksum")
	}
	return raw[prefixLen : prefixLen+32], nil
}

// VerifySubstrateSignature checks an sr25519 signature of msg by the public
// key in addr. Wallet extensions sign raw payloads wrapped in <Bytes> tags,
// so both forms are accepted.
func VerifySubstrateSignature(addr WalletAddress, sigHex string, msg []byte) Verdict {
	pubBytes, err := hex.DecodeString(strings.TrimPrefix(addr.Value(), "0x"))
	if err != nil || len(pubBytes) != 32 {
		return invalid("invalid public key")
	}
	sigBytes, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil {
		return invalid("signature is not hex")
	}
	if len(sigBytes) != 64 {
		return invalid("signature must be 64 bytes, got %d", len(sigBytes))
	}

	var pkRaw [32]byte
	copy(pkRaw[:], pubBytes)
	var sigRaw [64]byte
	copy(sigRaw[:], sigBytes)

	var pk schnorrkel.PublicKey
	if err := pk.Decode(pkRaw); err != nil {
		return invalid("invalid public key: %v", err)
	}
	var sig schnorrkel.Signature
	if err := sig.Decode(sigRaw); err != nil {
		return invalid("invalid signature: %v", err)
	}

	wrapped := append(append([]byte("<Bytes>"), msg...), []byte("</Bytes>")...)
	for _, m := range [][]byte{msg, wrapped} {
		ok, err := pk.Verify(&sig, schnorrkel.NewSigningContext([]byte("substrate"), m))
		if err == nil && ok {
			return Verdict{Valid: true}
		}
	}
	return invalid("signature verification failed")
}
