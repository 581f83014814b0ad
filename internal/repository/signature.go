package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/craftbooks/portal-server/internal/database"
	"github.com/craftbooks/portal-server/internal/model"
)

// SignatureRepository is append-only: signatures are created once and never
// edited or removed.
type SignatureRepository interface {
	Create(ctx context.Context, params model.CreateContractSignatureParams) (*model.ContractSignature, error)
	FindByContractAndRole(ctx context.Context, contractID string, role model.SignerRole) (*model.ContractSignature, error)
	ListByContractID(ctx context.Context, contractID string) ([]model.ContractSignature, error)
	WithTx(tx *sqlx.Tx) SignatureRepository
}

type signatureRepo struct {
	db database.DBTX
}

func NewSignatureRepository(db *sqlx.DB) SignatureRepository {
	return &signatureRepo{db: db}
}

func (r *signatureRepo) WithTx(tx *sqlx.Tx) SignatureRepository {
	return &signatureRepo{db: tx}
}

func (r *signatureRepo) Create(ctx context.Context, params model.CreateContractSignatureParams) (*model.ContractSignature, error) {
	var sig model.ContractSignature
	err := r.db.GetContext(ctx, &sig, `
		INSERT INTO contract_signatures (
			id, business_id, client_id, contract_id, session_id, signer_role,
			signer_name, signature_type, image_data, typed_text, content_digest,
			consent_version, device_label, signed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING *
	`, params.ID, params.BusinessID, params.ClientID, params.ContractID,
		params.SessionID, params.SignerRole, params.SignerName, params.SignatureType,
		params.ImageData, params.TypedText, params.ContentDigest,
		params.ConsentVersion, params.DeviceLabel, params.SignedAt)
	if err != nil {
		return nil, err
	}
	return &sig, nil
}

func (r *signatureRepo) FindByContractAndRole(ctx context.Context, contractID string, role model.SignerRole) (*model.ContractSignature, error) {
	var sig model.ContractSignature
	err := r.db.GetContext(ctx, &sig, `
		SELECT * FROM contract_signatures
		WHERE contract_id = $1 AND signer_role = $2
		ORDER BY signed_at ASC
		LIMIT 1
	`, contractID, role)
	return HandleNotFound(&sig, err)
}

func (r *signatureRepo) ListByContractID(ctx context.Context, contractID string) ([]model.ContractSignature, error) {
	var sigs []model.ContractSignature
	err := r.db.SelectContext(ctx, &sigs, `
		SELECT * FROM contract_signatures
		WHERE contract_id = $1
		ORDER BY signed_at ASC
	`, contractID)
	if err != nil {
		return nil, err
	}
	return sigs, nil
}
