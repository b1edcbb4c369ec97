package ledger

import "context"

// Committer writes a payload to durable, ledger-committed storage.
type Committer interface {
	CommitOnchain(ctx context.Context, p Payload) (string, error)
}

// Ledger pairs cheap off-chain records with durable on-chain commits.
type Ledger struct {
	*OffchainSigner
	onchain Committer
}

func New(offchain *OffchainSigner, onchain Committer) *Ledger {
	return &Ledger{OffchainSigner: offchain, onchain: onchain}
}

func (l *Ledger) CommitOnchain(ctx context.Context, p Payload) (string, error) {
	return l.onchain.CommitOnchain(ctx, p)
}
