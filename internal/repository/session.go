package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/craftbooks/portal-server/internal/database"
	"github.com/craftbooks/portal-server/internal/model"
)

type SessionRepository interface {
	FindByID(ctx context.Context, id string) (*model.PortalSession, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.PortalSession, error)
	FindActiveByClientID(ctx context.Context, clientID string) ([]model.PortalSession, error)
	Create(ctx context.Context, params model.CreatePortalSessionParams) (*model.PortalSession, error)
	MarkRevoked(ctx context.Context, id string, at time.Time) error
	MarkExpired(ctx context.Context, id string) error
	// RevokeAllByClientID revokes every session for the client that is not
	// already terminal. Used for forced lockout on disable.
	RevokeAllByClientID(ctx context.Context, clientID string, at time.Time) (int64, error)
	WithTx(tx *sqlx.Tx) SessionRepository
}

type sessionRepo struct {
	db database.DBTX
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) WithTx(tx *sqlx.Tx) SessionRepository {
	return &sessionRepo{db: tx}
}

func (r *sessionRepo) FindByID(ctx context.Context, id string) (*model.PortalSession, error) {
	var session model.PortalSession
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM portal_sessions WHERE id = $1
	`, id)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.PortalSession, error) {
	var session model.PortalSession
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM portal_sessions WHERE token_hash = $1
	`, tokenHash)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) FindActiveByClientID(ctx context.Context, clientID string) ([]model.PortalSession, error) {
	var sessions []model.PortalSession
	err := r.db.SelectContext(ctx, &sessions, `
		SELECT * FROM portal_sessions
		WHERE client_id = $1 AND state = 'active'
		ORDER BY created_at DESC
	`, clientID)
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepo) Create(ctx context.Context, params model.CreatePortalSessionParams) (*model.PortalSession, error) {
	var session model.PortalSession
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO portal_sessions (id, business_id, client_id, identity_id, token_hash, state, device_label, expires_at)
		VALUES ($1, $2, $3, $4, $5, 'active', $6, $7)
		RETURNING *
	`, params.ID, params.BusinessID, params.ClientID, params.IdentityID,
		params.TokenHash, params.DeviceLabel, params.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) MarkRevoked(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE portal_sessions SET
			state = 'revoked',
			revoked_at = $2,
			updated_at = $2
		WHERE id = $1 AND state = 'active'
	`, id, at)
	return err
}

func (r *sessionRepo) MarkExpired(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE portal_sessions SET
			state = 'expired',
			updated_at = $2
		WHERE id = $1 AND state = 'active'
	`, id, time.Now())
	return err
}

func (r *sessionRepo) RevokeAllByClientID(ctx context.Context, clientID string, at time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE portal_sessions SET
			state = 'revoked',
			revoked_at = $2,
			updated_at = $2
		WHERE client_id = $1 AND state = 'active'
	`, clientID, at)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
