package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/docattest/internal/common"
	"github.com/dmitrijs2005/docattest/internal/logging"
	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// EthClient is the subset of *ethclient.Client the anchor needs.
type EthClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account ethcommon.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash ethcommon.Hash) (*types.Receipt, error)
}

// EVMAnchor commits payloads to an EVM chain as calldata of a zero-value
// transaction from the attestor account to itself. The transaction hash is
// the record id.
type EVMAnchor struct {
	client       EthClient
	key          *ecdsa.PrivateKey
	from         ethcommon.Address
	chainID      *big.Int
	pollInterval time.Duration
	log          logging.Logger

	// one sender account; nonces are assigned in order
	mu sync.Mutex
}

// NewEVMAnchor takes the hex secp256k1 key of the attestor account. A zero
// chainID is asked from the node on first use.
func NewEVMAnchor(client EthClient, keyHex string, chainID int64, log logging.Logger) (*EVMAnchor, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
	if err != nil {
		return nil, err
	}
	a := &EVMAnchor{
		client:       client,
		key:          key,
		from:         crypto.PubkeyToAddress(key.PublicKey),
		pollInterval: time.Second,
		log:          log.With("module", "ledger"),
	}
	if chainID != 0 {
		a.chainID = big.NewInt(chainID)
	}
	return a, nil
}

// Address is the attestor account.
func (a *EVMAnchor) Address() ethcommon.Address {
	return a.from
}

// CommitOnchain sends p and waits for a successful receipt. Any failure,
// including ctx expiry while waiting, is common.ErrLedgerUnavailable; a
// retry sends a new transaction.
func (a *EVMAnchor) CommitOnchain(ctx context.Context, p Payload) (string, error) {
	data, err := Encode(p)
	if err != nil {
		return "", err
	}

	signed, err := a.send(ctx, data)
	if err != nil {
		return "", common.ErrLedgerUnavailable.Wrap(err, "send transaction")
	}

	hash := signed.Hash()
	a.log.Info(ctx, "attestation transaction sent", "tx", hash.Hex(), "schema", p.Schema())

	if err := a.waitMined(ctx, hash); err != nil {
		return "", common.ErrLedgerUnavailable.Wrap(err, "wait receipt")
	}
	return hash.Hex(), nil
}

func (a *EVMAnchor) send(ctx context.Context, data []byte) (*types.Transaction, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.chainID == nil {
		id, err := a.client.ChainID(ctx)
		if err != nil {
			return nil, err
		}
		a.chainID = id
	}

	nonce, err := a.client.PendingNonceAt(ctx, a.from)
	if err != nil {
		return nil, err
	}
	gasPrice, err := a.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}
	to := a.from
	gas, err := a.client.EstimateGas(ctx, ethereum.CallMsg{From: a.from, To: &to, Data: data})
	if err != nil {
		return nil, err
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(a.chainID), a.key)
	if err != nil {
		return nil, err
	}
	if err := a.client.SendTransaction(ctx, signed); err != nil {
		return nil, err
	}
	return signed, nil
}

func (a *EVMAnchor) waitMined(ctx context.Context, hash ethcommon.Hash) error {
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := a.client.TransactionReceipt(ctx, hash)
		if err == nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return errors.New("transaction reverted")
			}
			return nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
