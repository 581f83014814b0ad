package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/craftbooks/portal-server/internal/database"
	"github.com/craftbooks/portal-server/internal/model"
)

type InviteRepository interface {
	FindByID(ctx context.Context, id string) (*model.PortalInvite, error)
	FindByCodeHash(ctx context.Context, codeHash string) (*model.PortalInvite, error)
	FindActiveByClientID(ctx context.Context, clientID string) ([]model.PortalInvite, error)
	Create(ctx context.Context, params model.CreatePortalInviteParams) (*model.PortalInvite, error)
	MarkSent(ctx context.Context, id string, at time.Time) (*model.PortalInvite, error)
	// MarkAccepted transitions draft|sent to accepted, recording the session
	// the code was exchanged for. Returns false if the invite was no longer
	// active, which makes the exchange single-use under concurrency.
	MarkAccepted(ctx context.Context, id string, sessionID string, at time.Time) (bool, error)
	MarkRevoked(ctx context.Context, id string, at time.Time) error
	MarkExpired(ctx context.Context, id string) error
	// RevokeActiveByClientID terminates every draft or sent invite for the
	// client. Used to keep at most one invite concurrently active.
	RevokeActiveByClientID(ctx context.Context, clientID string, at time.Time) (int64, error)
	WithTx(tx *sqlx.Tx) InviteRepository
}

type inviteRepo struct {
	db database.DBTX
}

func NewInviteRepository(db *sqlx.DB) InviteRepository {
	return &inviteRepo{db: db}
}

func (r *inviteRepo) WithTx(tx *sqlx.Tx) InviteRepository {
	return &inviteRepo{db: tx}
}

func (r *inviteRepo) FindByID(ctx context.Context, id string) (*model.PortalInvite, error) {
	var invite model.PortalInvite
	err := r.db.GetContext(ctx, &invite, `
		SELECT * FROM portal_invites WHERE id = $1
	`, id)
	return HandleNotFound(&invite, err)
}

func (r *inviteRepo) FindByCodeHash(ctx context.Context, codeHash string) (*model.PortalInvite, error) {
	var invite model.PortalInvite
	err := r.db.GetContext(ctx, &invite, `
		SELECT * FROM portal_invites WHERE code_hash = $1
	`, codeHash)
	return HandleNotFound(&invite, err)
}

func (r *inviteRepo) FindActiveByClientID(ctx context.Context, clientID string) ([]model.PortalInvite, error) {
	var invites []model.PortalInvite
	err := r.db.SelectContext(ctx, &invites, `
		SELECT * FROM portal_invites
		WHERE client_id = $1 AND state IN ('draft', 'sent')
		ORDER BY created_at DESC
	`, clientID)
	if err != nil {
		return nil, err
	}
	return invites, nil
}

func (r *inviteRepo) Create(ctx context.Context, params model.CreatePortalInviteParams) (*model.PortalInvite, error) {
	var invite model.PortalInvite
	err := r.db.GetContext(ctx, &invite, `
		INSERT INTO portal_invites (id, business_id, client_id, identity_id, code_hash, state, delivery, note, expires_at)
		VALUES ($1, $2, $3, $4, $5, 'draft', $6, $7, $8)
		RETURNING *
	`, params.ID, params.BusinessID, params.ClientID, params.IdentityID,
		params.CodeHash, params.Delivery, params.Note, params.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &invite, nil
}

func (r *inviteRepo) MarkSent(ctx context.Context, id string, at time.Time) (*model.PortalInvite, error) {
	var invite model.PortalInvite
	err := r.db.GetContext(ctx, &invite, `
		UPDATE portal_invites SET
			state = 'sent',
			send_count = send_count + 1,
			last_sent_at = $2,
			updated_at = $2
		WHERE id = $1 AND state IN ('draft', 'sent')
		RETURNING *
	`, id, at)
	return HandleNotFound(&invite, err)
}

func (r *inviteRepo) MarkAccepted(ctx context.Context, id string, sessionID string, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE portal_invites SET
			state = 'accepted',
			accepted_at = $3,
			session_id = $2,
			updated_at = $3
		WHERE id = $1 AND state IN ('draft', 'sent')
	`, id, sessionID, at)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *inviteRepo) MarkRevoked(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE portal_invites SET
			state = 'revoked',
			revoked_at = $2,
			updated_at = $2
		WHERE id = $1 AND state IN ('draft', 'sent')
	`, id, at)
	return err
}

func (r *inviteRepo) MarkExpired(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE portal_invites SET
			state = 'expired',
			updated_at = $2
		WHERE id = $1 AND state IN ('draft', 'sent')
	`, id, time.Now())
	return err
}

func (r *inviteRepo) RevokeActiveByClientID(ctx context.Context, clientID string, at time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE portal_invites SET
			state = 'revoked',
			revoked_at = $2,
			updated_at = $2
		WHERE client_id = $1 AND state IN ('draft', 'sent')
	`, clientID, at)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
