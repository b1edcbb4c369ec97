package client

import (
	"context"

	"github.com/dmitrijs2005/docattest/internal/api"
)

// Client is the signer's view of the attestation service.
type Client interface {
	Close() error
	Ping(ctx context.Context) error
	Publish(ctx context.Context, req api.PublishRequest) (api.Document, error)
	Submit(ctx context.Context, req api.SubmitRequest) (api.SignatureResult, error)
	Finalize(ctx context.Context, documentID string) (api.FinalAttestation, error)
	GetDocument(ctx context.Context, documentID string) (api.Document, error)
	Check(ctx context.Context, contentHash string) (api.CheckResult, error)
}
