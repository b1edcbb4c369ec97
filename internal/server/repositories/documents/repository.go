package documents

import (
	"context"

	"github.com/dmitrijs2005/docattest/internal/server/models"
)

// Repository stores documents and their signature counters.
type Repository interface {
	Create(ctx context.Context, doc *models.Document) (*models.Document, bool, error)
	GetByID(ctx context.Context, id string) (*models.Document, error)
	GetByContentHash(ctx context.Context, contentHash string) (*models.Document, error)
	DecrementRemaining(ctx context.Context, id string) (remaining int, required int, err error)
	SetFinalAttestation(ctx context.Context, id string, recordID string) (bool, error)
}
