package signatures

import (
	"context"

	"github.com/dmitrijs2005/docattest/internal/server/models"
)

// Repository stores signer/document join rows.
type Repository interface {
	Create(ctx context.Context, sig *models.Signature) (*models.Signature, error)
	Get(ctx context.Context, documentID, signerID string) (*models.Signature, error)
	ListByDocument(ctx context.Context, documentID string) ([]*models.Signature, error)
}
