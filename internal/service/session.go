package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/craftbooks/portal-server/internal/audit"
	"github.com/craftbooks/portal-server/internal/database"
	apperrors "github.com/craftbooks/portal-server/internal/errors"
	"github.com/craftbooks/portal-server/internal/model"
	"github.com/craftbooks/portal-server/internal/repository"
	"github.com/craftbooks/portal-server/internal/util"
)

// SessionGrant carries a freshly created session together with its raw
// bearer token. The token exists only here; storage holds its digest.
type SessionGrant struct {
	Session *model.PortalSession `json:"session"`
	Token   string               `json:"token"`
}

type SessionService struct {
	db         database.TxRunner
	sessions   repository.SessionRepository
	identities repository.IdentityRepository
	clients    repository.ClientRepository
	recorder   *audit.Recorder
	sessionTTL time.Duration
}

func NewSessionService(
	db database.TxRunner,
	sessions repository.SessionRepository,
	identities repository.IdentityRepository,
	clients repository.ClientRepository,
	recorder *audit.Recorder,
	sessionTTL time.Duration,
) *SessionService {
	return &SessionService{
		db:         db,
		sessions:   sessions,
		identities: identities,
		clients:    clients,
		recorder:   recorder,
		sessionTTL: sessionTTL,
	}
}

// Create issues a bearer session for a client whose portal is enabled.
// A disabled identity is a hard failure: issuing a session never silently
// enables portal access.
func (s *SessionService) Create(ctx context.Context, clientID string, deviceLabel *string) (*SessionGrant, error) {
	client, err := s.clients.FindByID(ctx, clientID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if client == nil {
		return nil, apperrors.NotFound("Client")
	}

	identities, err := s.identities.FindByClientID(ctx, clientID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	identity := resolveCanonical(identities)
	if identity == nil || !identity.IsEnabled {
		return nil, apperrors.PortalDisabled()
	}

	var grant *SessionGrant
	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		grant, err = s.createTx(ctx, tx, client, identity, deviceLabel)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Entry{
		ClientID:   clientID,
		SessionID:  &grant.Session.ID,
		Origin:     model.OriginPortal,
		EventType:  audit.EventSessionCreated,
		EntityType: audit.EntitySession,
		EntityID:   grant.Session.ID,
	})

	return grant, nil
}

// createTx issues a session inside an existing transaction. The business id
// is taken from the current client record, never from caller-supplied scope.
// Shared with the invite exchange so both paths mint sessions identically.
func (s *SessionService) createTx(ctx context.Context, tx *sqlx.Tx, client *model.Client, identity *model.PortalIdentity, deviceLabel *string) (*SessionGrant, error) {
	token, err := util.NewSessionToken()
	if err != nil {
		return nil, apperrors.Internal("failed to generate session token").WithCause(err)
	}

	now := time.Now()
	sessions := s.sessions.WithTx(tx)
	session, err := sessions.Create(ctx, model.CreatePortalSessionParams{
		ID:          uuid.NewString(),
		BusinessID:  client.BusinessID,
		ClientID:    client.ID,
		IdentityID:  identity.ID,
		TokenHash:   util.HashSecret(token),
		DeviceLabel: deviceLabel,
		ExpiresAt:   now.Add(s.sessionTTL),
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}

	if err := s.identities.WithTx(tx).TouchLastLogin(ctx, identity.ID, now); err != nil {
		return nil, apperrors.Database(err)
	}

	return &SessionGrant{Session: session, Token: token}, nil
}

// Revoke terminates a single session.
func (s *SessionService) Revoke(ctx context.Context, sessionID string) error {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return apperrors.Database(err)
	}
	if session == nil {
		return apperrors.NotFound("Session")
	}
	if session.State != model.SessionStateActive {
		return apperrors.AlreadyFinal("session is already terminated")
	}

	if err := s.sessions.MarkRevoked(ctx, sessionID, time.Now()); err != nil {
		return apperrors.Database(err)
	}

	s.recorder.Record(ctx, audit.Entry{
		ClientID:   session.ClientID,
		SessionID:  &session.ID,
		Origin:     model.OriginPortal,
		EventType:  audit.EventSessionRevoked,
		EntityType: audit.EntitySession,
		EntityID:   session.ID,
	})
	return nil
}

// RevokeAll revokes every non-terminal session for a client and records a
// single summarized audit event rather than one per session.
func (s *SessionService) RevokeAll(ctx context.Context, clientID string) (int64, error) {
	revoked, err := s.sessions.RevokeAllByClientID(ctx, clientID, time.Now())
	if err != nil {
		return 0, apperrors.Database(err)
	}

	s.recorder.Record(ctx, audit.Entry{
		ClientID:  clientID,
		Origin:    model.OriginInternal,
		EventType: audit.EventSessionsRevokedAll,
		Summary:   fmt.Sprintf("%d active sessions revoked", revoked),
	})
	return revoked, nil
}

// Validate runs on every portal request and is fail-closed: any ambiguity
// about the session's scope invalidates it. An invalid token yields
// (nil, nil) so callers learn nothing about why it failed.
func (s *SessionService) Validate(ctx context.Context, rawToken string) (*model.PortalSession, error) {
	if rawToken == "" {
		return nil, nil
	}

	session, err := s.sessions.FindByTokenHash(ctx, util.HashSecret(rawToken))
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil {
		return nil, nil
	}

	if session.State != model.SessionStateActive {
		return nil, nil
	}

	now := time.Now()
	if session.IsExpired(now) {
		// Lazy expiry: advance the stored state as a side effect
		if err := s.sessions.MarkExpired(ctx, session.ID); err != nil {
			log.Error().Err(err).Str("sessionId", session.ID).Msg("mark session expired")
		}
		return nil, nil
	}

	// Tenant reassignment after issuance must not grant cross-tenant access
	currentBusinessID, err := s.clients.CurrentBusinessID(ctx, session.ClientID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if currentBusinessID == "" || currentBusinessID != session.BusinessID {
		s.revokeMismatch(ctx, session, fmt.Sprintf(
			"session business %s does not match client business %s",
			session.BusinessID, currentBusinessID))
		return nil, nil
	}

	identity, err := s.identities.FindByID(ctx, session.IdentityID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if identity == nil || !identity.IsEnabled {
		if err := s.sessions.MarkRevoked(ctx, session.ID, now); err != nil {
			log.Error().Err(err).Str("sessionId", session.ID).Msg("revoke session for disabled identity")
		}
		s.recorder.Record(ctx, audit.Entry{
			ClientID:   session.ClientID,
			SessionID:  &session.ID,
			Origin:     model.OriginPortal,
			EventType:  audit.EventSessionBlocked,
			EntityType: audit.EntitySession,
			EntityID:   session.ID,
			Summary:    "blocked_disabled_identity",
		})
		return nil, nil
	}

	if identity.BusinessID != session.BusinessID {
		s.revokeMismatch(ctx, session, fmt.Sprintf(
			"session business %s does not match identity business %s",
			session.BusinessID, identity.BusinessID))
		return nil, nil
	}

	return session, nil
}

func (s *SessionService) revokeMismatch(ctx context.Context, session *model.PortalSession, summary string) {
	if err := s.sessions.MarkRevoked(ctx, session.ID, time.Now()); err != nil {
		log.Error().Err(err).Str("sessionId", session.ID).Msg("revoke mismatched session")
	}
	s.recorder.Record(ctx, audit.Entry{
		ClientID:   session.ClientID,
		SessionID:  &session.ID,
		Origin:     model.OriginPortal,
		EventType:  audit.EventSessionMismatch,
		EntityType: audit.EntitySession,
		EntityID:   session.ID,
		Summary:    summary,
	})
}
