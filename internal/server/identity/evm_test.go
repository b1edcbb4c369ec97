package identity

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/docattest/internal/server/models"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signEVM(t *testing.T, contentHash string) (WalletAddress, []byte) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	sig, err := crypto.Sign(accounts.TextHash([]byte(ApprovalMessage(contentHash))), key)
	require.NoError(t, err)

	addr, err := NewWalletAddress(crypto.PubkeyToAddress(key.PublicKey).Hex())
	require.NoError(t, err)
	return addr, sig
}

func TestVerifyEVMSignature(t *testing.T) {
	addr, sig := signEVM(t, "abc123")
	msg := []byte(ApprovalMessage("abc123"))

	got := VerifyEVMSignature(addr, hexutil.Encode(sig), msg)
	assert.True(t, got.Valid, got.Reason)

	t.Run("legacy v value", func(t *testing.T) {
		legacy := append([]byte{}, sig...)
		legacy[64] += 27
		got := VerifyEVMSignature(addr, hexutil.Encode(legacy), msg)
		assert.True(t, got.Valid, got.Reason)
	})

	t.Run("other document", func(t *testing.T) {
		got := VerifyEVMSignature(addr, hexutil.Encode(sig), []byte(ApprovalMessage("abc124")))
		assert.False(t, got.Valid)
	})

	t.Run("other signer", func(t *testing.T) {
		other, _ := signEVM(t, "abc123")
		got := VerifyEVMSignature(other, hexutil.Encode(sig), msg)
		assert.False(t, got.Valid)
		assert.Contains(t, got.Reason, "signature was made by")
	})

	t.Run("malformed", func(t *testing.T) {
		assert.False(t, VerifyEVMSignature(addr, "nothex", msg).Valid)
		assert.False(t, VerifyEVMSignature(addr, "0x1234", msg).Valid)
	})
}

func TestPolicyVerifier_EVMWallet(t *testing.T) {
	addr, sig := signEVM(t, "abc123")
	v := NewPolicyVerifier(&fakePersonhood{})

	got, err := v.Verify(context.Background(), Claim{
		Identity:    addr,
		Proof:       WalletSignature{Signature: hexutil.Encode(sig)},
		Policy:      models.PolicyWalletSignature,
		ContentHash: "abc123",
	})
	require.NoError(t, err)
	assert.True(t, got.Valid, got.Reason)
}
