package model

import (
	"time"
)

// PortalAuditEvent is an immutable fact about a security-relevant transition.
// Events are only ever appended; there are no update or delete paths.
type PortalAuditEvent struct {
	ID         string      `db:"id" json:"id"`
	BusinessID string      `db:"business_id" json:"businessId"`
	ClientID   string      `db:"client_id" json:"clientId"`
	SessionID  *string     `db:"session_id" json:"sessionId,omitempty"`
	Origin     AuditOrigin `db:"origin" json:"origin"`
	EventType  string      `db:"event_type" json:"eventType"`
	EntityType *string     `db:"entity_type" json:"entityType,omitempty"`
	EntityID   *string     `db:"entity_id" json:"entityId,omitempty"`
	Summary    *string     `db:"summary" json:"summary,omitempty"`
	CreatedAt  time.Time   `db:"created_at" json:"createdAt"`
}

type CreateAuditEventParams struct {
	ID         string
	BusinessID string
	ClientID   string
	SessionID  *string
	Origin     AuditOrigin
	EventType  string
	EntityType *string
	EntityID   *string
	Summary    *string
}
