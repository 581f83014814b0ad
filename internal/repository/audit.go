package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/craftbooks/portal-server/internal/database"
	"github.com/craftbooks/portal-server/internal/model"
)

// AuditEventRepository is append-only. There are deliberately no update or
// delete methods.
type AuditEventRepository interface {
	Create(ctx context.Context, params model.CreateAuditEventParams) (*model.PortalAuditEvent, error)
	ListByClientID(ctx context.Context, clientID string, limit int) ([]model.PortalAuditEvent, error)
	ListByEntity(ctx context.Context, entityType, entityID string) ([]model.PortalAuditEvent, error)
	WithTx(tx *sqlx.Tx) AuditEventRepository
}

type auditEventRepo struct {
	db database.DBTX
}

func NewAuditEventRepository(db *sqlx.DB) AuditEventRepository {
	return &auditEventRepo{db: db}
}

func (r *auditEventRepo) WithTx(tx *sqlx.Tx) AuditEventRepository {
	return &auditEventRepo{db: tx}
}

func (r *auditEventRepo) Create(ctx context.Context, params model.CreateAuditEventParams) (*model.PortalAuditEvent, error) {
	var event model.PortalAuditEvent
	err := r.db.GetContext(ctx, &event, `
		INSERT INTO portal_audit_events (id, business_id, client_id, session_id, origin, event_type, entity_type, entity_id, summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING *
	`, params.ID, params.BusinessID, params.ClientID, params.SessionID,
		params.Origin, params.EventType, params.EntityType, params.EntityID, params.Summary)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *auditEventRepo) ListByClientID(ctx context.Context, clientID string, limit int) ([]model.PortalAuditEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var events []model.PortalAuditEvent
	err := r.db.SelectContext(ctx, &events, `
		SELECT * FROM portal_audit_events
		WHERE client_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, clientID, limit)
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *auditEventRepo) ListByEntity(ctx context.Context, entityType, entityID string) ([]model.PortalAuditEvent, error) {
	var events []model.PortalAuditEvent
	err := r.db.SelectContext(ctx, &events, `
		SELECT * FROM portal_audit_events
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at ASC
	`, entityType, entityID)
	if err != nil {
		return nil, err
	}
	return events, nil
}
