package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/craftbooks/portal-server/internal/database"
	"github.com/craftbooks/portal-server/internal/model"
)

type IdentityRepository interface {
	FindByID(ctx context.Context, id string) (*model.PortalIdentity, error)
	// FindByClientID returns all identity records for a client, newest first.
	// More than one row is a legacy condition the service layer resolves.
	FindByClientID(ctx context.Context, clientID string) ([]model.PortalIdentity, error)
	Create(ctx context.Context, params model.CreatePortalIdentityParams) (*model.PortalIdentity, error)
	SetEnabled(ctx context.Context, id string, enabled bool, businessID string) error
	// DisableAllForClient disables every identity row for the client,
	// duplicates included.
	DisableAllForClient(ctx context.Context, clientID string) (int64, error)
	TouchLastInviteSent(ctx context.Context, id string, at time.Time) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	WithTx(tx *sqlx.Tx) IdentityRepository
}

type identityRepo struct {
	db database.DBTX
}

func NewIdentityRepository(db *sqlx.DB) IdentityRepository {
	return &identityRepo{db: db}
}

func (r *identityRepo) WithTx(tx *sqlx.Tx) IdentityRepository {
	return &identityRepo{db: tx}
}

func (r *identityRepo) FindByID(ctx context.Context, id string) (*model.PortalIdentity, error) {
	var identity model.PortalIdentity
	err := r.db.GetContext(ctx, &identity, `
		SELECT * FROM portal_identities WHERE id = $1
	`, id)
	return HandleNotFound(&identity, err)
}

func (r *identityRepo) FindByClientID(ctx context.Context, clientID string) ([]model.PortalIdentity, error) {
	var identities []model.PortalIdentity
	err := r.db.SelectContext(ctx, &identities, `
		SELECT * FROM portal_identities
		WHERE client_id = $1
		ORDER BY created_at DESC
	`, clientID)
	if err != nil {
		return nil, err
	}
	return identities, nil
}

func (r *identityRepo) Create(ctx context.Context, params model.CreatePortalIdentityParams) (*model.PortalIdentity, error) {
	var identity model.PortalIdentity
	err := r.db.GetContext(ctx, &identity, `
		INSERT INTO portal_identities (id, business_id, client_id, is_enabled, public_handle)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, params.ID, params.BusinessID, params.ClientID, params.IsEnabled, params.PublicHandle)
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

func (r *identityRepo) SetEnabled(ctx context.Context, id string, enabled bool, businessID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE portal_identities SET
			is_enabled = $2,
			business_id = $3,
			updated_at = $4
		WHERE id = $1
	`, id, enabled, businessID, time.Now())
	return err
}

func (r *identityRepo) DisableAllForClient(ctx context.Context, clientID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE portal_identities SET
			is_enabled = FALSE,
			updated_at = $2
		WHERE client_id = $1 AND is_enabled = TRUE
	`, clientID, time.Now())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *identityRepo) TouchLastInviteSent(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE portal_identities SET
			last_invite_sent_at = $2,
			updated_at = $2
		WHERE id = $1
	`, id, at)
	return err
}

func (r *identityRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE portal_identities SET
			last_login_at = $2,
			updated_at = $2
		WHERE id = $1
	`, id, at)
	return err
}
