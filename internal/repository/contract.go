package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/craftbooks/portal-server/internal/database"
	"github.com/craftbooks/portal-server/internal/model"
)

// ContractRepository exposes the narrow slice of contract state the portal
// core is allowed to touch.
type ContractRepository interface {
	FindByID(ctx context.Context, id string) (*model.Contract, error)
	FindByDocumentID(ctx context.Context, documentID string) ([]model.Contract, error)
	// MarkSigned transitions sent to signed. Returns false if the contract
	// was no longer in sent state, so a racing second signer loses cleanly.
	MarkSigned(ctx context.Context, id string, signedByName string, at time.Time) (bool, error)
	WithTx(tx *sqlx.Tx) ContractRepository
}

type contractRepo struct {
	db database.DBTX
}

func NewContractRepository(db *sqlx.DB) ContractRepository {
	return &contractRepo{db: db}
}

func (r *contractRepo) WithTx(tx *sqlx.Tx) ContractRepository {
	return &contractRepo{db: tx}
}

func (r *contractRepo) FindByID(ctx context.Context, id string) (*model.Contract, error) {
	var contract model.Contract
	err := r.db.GetContext(ctx, &contract, `
		SELECT * FROM contracts WHERE id = $1
	`, id)
	return HandleNotFound(&contract, err)
}

func (r *contractRepo) FindByDocumentID(ctx context.Context, documentID string) ([]model.Contract, error) {
	var contracts []model.Contract
	err := r.db.SelectContext(ctx, &contracts, `
		SELECT * FROM contracts
		WHERE document_id = $1
		ORDER BY created_at DESC
	`, documentID)
	if err != nil {
		return nil, err
	}
	return contracts, nil
}

func (r *contractRepo) MarkSigned(ctx context.Context, id string, signedByName string, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE contracts SET
			status = 'signed',
			signed_at = $3,
			signed_by_name = $2,
			updated_at = $3
		WHERE id = $1 AND status = 'sent'
	`, id, signedByName, at)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
