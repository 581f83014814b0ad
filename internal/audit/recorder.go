package audit

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/craftbooks/portal-server/internal/model"
	"github.com/craftbooks/portal-server/internal/repository"
)

// Event types recorded by the portal core. Every state transition produces
// exactly one of these.
const (
	EventPortalEnabled  = "portal.enabled"
	EventPortalDisabled = "portal.disabled"

	EventInviteCreated  = "portal.invite.created"
	EventInviteSent     = "portal.invite.sent"
	EventInviteRevoked  = "portal.invite.revoked"
	EventInviteAccepted = "portal.invite.accepted"

	EventSessionCreated     = "portal.session.created"
	EventSessionRevoked     = "portal.session.revoked"
	EventSessionsRevokedAll = "portal.session.revoked_all"
	EventSessionMismatch    = "portal.session.business_mismatch"
	EventSessionBlocked     = "portal.session.blocked_disabled_identity"

	EventEstimateAccepted = "estimate.accepted.portal"
	EventEstimateBlocked  = "estimate.accept.blocked"

	EventContractSignSubmitted = "contract.signature.submitted"
	EventContractSigned        = "contract.signed"
	EventContractSignBlocked   = "contract.sign.blocked"
)

// Entity types referenced by events.
const (
	EntityIdentity = "portal_identity"
	EntityInvite   = "portal_invite"
	EntitySession  = "portal_session"
	EntityEstimate = "estimate"
	EntityContract = "contract"
)

// Entry describes one security-relevant occurrence.
type Entry struct {
	ClientID   string
	SessionID  *string
	Origin     model.AuditOrigin
	EventType  string
	EntityType string
	EntityID   string
	Summary    string
}

// Recorder appends portal audit events. The trail is the system of record
// for dispute resolution, so recording degrades rather than fails: a broken
// business lookup or a failed insert is logged and swallowed, never allowed
// to block the operation that produced the event.
type Recorder struct {
	events  repository.AuditEventRepository
	clients repository.ClientRepository
}

func NewRecorder(events repository.AuditEventRepository, clients repository.ClientRepository) *Recorder {
	return &Recorder{events: events, clients: clients}
}

// Record appends one event, resolving the business id from the client at
// call time. If resolution fails the event is still written with an empty
// business id.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	businessID, err := r.clients.CurrentBusinessID(ctx, entry.ClientID)
	if err != nil {
		log.Warn().Err(err).
			Str("clientId", entry.ClientID).
			Str("eventType", entry.EventType).
			Msg("audit: business lookup failed, recording without business id")
		businessID = ""
	}

	params := model.CreateAuditEventParams{
		ID:         uuid.NewString(),
		BusinessID: businessID,
		ClientID:   entry.ClientID,
		SessionID:  entry.SessionID,
		Origin:     entry.Origin,
		EventType:  entry.EventType,
	}
	if entry.EntityType != "" {
		params.EntityType = &entry.EntityType
	}
	if entry.EntityID != "" {
		params.EntityID = &entry.EntityID
	}
	if entry.Summary != "" {
		params.Summary = &entry.Summary
	}

	if _, err := r.events.Create(ctx, params); err != nil {
		log.Error().Err(err).
			Str("clientId", entry.ClientID).
			Str("eventType", entry.EventType).
			Msg("audit: failed to persist event")
	}

	logEvent := log.Info().
		Str("audit", "security").
		Str("event_type", entry.EventType).
		Str("client_id", entry.ClientID).
		Str("origin", string(entry.Origin))
	if businessID != "" {
		logEvent = logEvent.Str("business_id", businessID)
	}
	if entry.SessionID != nil {
		logEvent = logEvent.Str("session_id", *entry.SessionID)
	}
	if entry.EntityType != "" {
		logEvent = logEvent.Str("entity_type", entry.EntityType).Str("entity_id", entry.EntityID)
	}
	logEvent.Msg("security audit event")
}

// ListByClient returns recent events for a client, newest first.
func (r *Recorder) ListByClient(ctx context.Context, clientID string, limit int) ([]model.PortalAuditEvent, error) {
	return r.events.ListByClientID(ctx, clientID, limit)
}

// ListByEntity returns the full trail for one record, oldest first.
func (r *Recorder) ListByEntity(ctx context.Context, entityType, entityID string) ([]model.PortalAuditEvent, error) {
	return r.events.ListByEntity(ctx, entityType, entityID)
}
