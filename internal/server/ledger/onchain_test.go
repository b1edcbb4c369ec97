package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/docattest/internal/common"
	"github.com/dmitrijs2005/docattest/internal/logging"
	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const anvilKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type fakeEth struct {
	mu           sync.Mutex
	sent         []*types.Transaction
	nonce        uint64
	pendingPolls int
	status       uint64
	sendErr      error
}

func (f *fakeEth) ChainID(ctx context.Context) (*big.Int, error) { return big.NewInt(31337), nil }

func (f *fakeEth) PendingNonceAt(ctx context.Context, a ethcommon.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonce, nil
}

func (f *fakeEth) SuggestGasPrice(ctx context.Context) (*big.Int, error) { return big.NewInt(1e9), nil }

func (f *fakeEth) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return 21000 + uint64(len(msg.Data))*16, nil
}

func (f *fakeEth) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	f.nonce++
	return nil
}

func (f *fakeEth) TransactionReceipt(ctx context.Context, h ethcommon.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pendingPolls > 0 {
		f.pendingPolls--
		return nil, ethereum.NotFound
	}
	return &types.Receipt{Status: f.status, TxHash: h}, nil
}

func newAnchor(t *testing.T, f *fakeEth) *EVMAnchor {
	t.Helper()
	a, err := NewEVMAnchor(f, anvilKey, 0, testLogger())
	require.NoError(t, err)
	a.pollInterval = time.Millisecond
	return a
}

func TestCommitOnchain(t *testing.T) {
	f := &fakeEth{status: types.ReceiptStatusSuccessful, pendingPolls: 2}
	a := newAnchor(t, f)
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", a.Address().Hex())

	p := DocumentFinalAttestationPayload{RequiredSignatures: 2, SignatureRecordIDs: []string{"0xa", "0xb"}, DocumentRef: "abc123"}
	id, err := a.CommitOnchain(context.Background(), p)
	require.NoError(t, err)

	require.Len(t, f.sent, 1)
	tx := f.sent[0]
	assert.Equal(t, tx.Hash().Hex(), id)
	assert.Equal(t, a.Address(), *tx.To())
	assert.Zero(t, tx.Value().Sign())

	want, err := Encode(p)
	require.NoError(t, err)
	assert.Equal(t, want, tx.Data())

	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(31337)), tx)
	require.NoError(t, err)
	assert.Equal(t, a.Address(), sender)
}

func TestCommitOnchain_Nonces(t *testing.T) {
	f := &fakeEth{status: types.ReceiptStatusSuccessful}
	a := newAnchor(t, f)

	for i := 0; i < 3; i++ {
		_, err := a.CommitOnchain(context.Background(), SignatureAttestationPayload{Signer: "x"})
		require.NoError(t, err)
	}
	require.Len(t, f.sent, 3)
	for i, tx := range f.sent {
		assert.Equal(t, uint64(i), tx.Nonce())
	}
}

func TestCommitOnchain_Failures(t *testing.T) {
	p := DocumentFinalAttestationPayload{RequiredSignatures: 1}

	t.Run("reverted", func(t *testing.T) {
		a := newAnchor(t, &fakeEth{status: types.ReceiptStatusFailed})
		_, err := a.CommitOnchain(context.Background(), p)
		assert.ErrorIs(t, err, common.ErrLedgerUnavailable)
	})

	t.Run("send error", func(t *testing.T) {
		a := newAnchor(t, &fakeEth{sendErr: errors.New("nonce too low")})
		_, err := a.CommitOnchain(context.Background(), p)
		assert.ErrorIs(t, err, common.ErrLedgerUnavailable)
		assert.True(t, common.IsRetryable(err))
	})

	t.Run("never mined", func(t *testing.T) {
		a := newAnchor(t, &fakeEth{pendingPolls: 1 << 30})
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := a.CommitOnchain(ctx, p)
		assert.ErrorIs(t, err, common.ErrLedgerUnavailable)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestNewEVMAnchor_BadKey(t *testing.T) {
	_, err := NewEVMAnchor(&fakeEth{}, "nothex", 1, testLogger())
	assert.Error(t, err)
}

func TestLedger_Composes(t *testing.T) {
	f := &fakeEth{status: types.ReceiptStatusSuccessful}
	l := New(newSigner(t), newAnchor(t, f))

	rec, err := l.SignOffchain(context.Background(), SignatureAttestationPayload{Signer: "x"})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.Token)

	id, err := l.CommitOnchain(context.Background(), DocumentFinalAttestationPayload{RequiredSignatures: 1})
	require.NoError(t, err)
	assert.Equal(t, f.sent[0].Hash().Hex(), id)
}
