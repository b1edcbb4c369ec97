package identity

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// VerifyEVMSignature checks an EIP-191 personal_sign signature of msg by
// addr. The recovery byte may be 0/1 or 27/28.
func VerifyEVMSignature(addr WalletAddress, sigHex string, msg []byte) Verdict {
	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		return invalid("signature is not 0x-prefixed hex")
	}
	if len(sig) != crypto.SignatureLength {
		return invalid("signature must be %d bytes, got %d", crypto.SignatureLength, len(sig))
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash(msg), sig)
	if err != nil {
		return invalid("cannot recover signer: %v", err)
	}

	recovered := crypto.PubkeyToAddress(*pub).Hex()
	if !strings.EqualFold(recovered, addr.Value()) {
		return invalid("signature was made by %s", recovered)
	}
	return Verdict{Valid: true}
}
