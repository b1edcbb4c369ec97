package signers

import (
	"context"

	"github.com/dmitrijs2005/docattest/internal/server/models"
)

// Repository stores signer identity records.
type Repository interface {
	FindOrCreate(ctx context.Context, kind models.IdentityKind, value string) (*models.Signer, error)
	GetByID(ctx context.Context, id string) (*models.Signer, error)
}
