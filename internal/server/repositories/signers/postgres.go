// Package signers persists signer identities keyed by personhood id or
// wallet address.
package signers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/docattest/internal/common"
	"github.com/dmitrijs2005/docattest/internal/dbx"
	"github.com/dmitrijs2005/docattest/internal/server/models"
)

// The no-op DO UPDATE makes RETURNING yield the existing row on conflict.
var upsertQueries = map[models.IdentityKind]string{
	models.IdentityPersonhood: `INSERT INTO signers (personhood_id)
		 VALUES ($1)
		 ON CONFLICT (personhood_id) DO UPDATE SET personhood_id = EXCLUDED.personhood_id
		 RETURNING id, COALESCE(personhood_id, ''), COALESCE(wallet_address, ''), created_at
		 `,
	models.IdentityWallet: `INSERT INTO signers (wallet_address)
		 VALUES ($1)
		 ON CONFLICT (wallet_address) DO UPDATE SET wallet_address = EXCLUDED.wallet_address
		 RETURNING id, COALESCE(personhood_id, ''), COALESCE(wallet_address, ''), created_at
		 `,
}

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindOrCreate returns the signer keyed by value in the column selected by
// kind, inserting it first if needed. Concurrent callers get the same row.
func (r *PostgresRepository) FindOrCreate(ctx context.Context, kind models.IdentityKind, value string) (*models.Signer, error) {
	query, ok := upsertQueries[kind]
	if !ok {
		return nil, common.ErrInvalidInput.Newf("unknown identity kind %q", kind)
	}

	s := &models.Signer{}
	err := r.db.QueryRowContext(ctx, query, value).
		Scan(&s.ID, &s.PersonhoodID, &s.WalletAddress, &s.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return s, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Signer, error) {
	query :=
		`SELECT id, COALESCE(personhood_id, ''), COALESCE(wallet_address, ''), created_at
		 FROM signers
		 WHERE id = $1
		 `

	s := &models.Signer{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&s.ID, &s.PersonhoodID, &s.WalletAddress, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound.New("signer")
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return s, nil
}
