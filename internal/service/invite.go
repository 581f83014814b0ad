package service

import (
	"context"
	"fmt"
	"strings"
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

// InviteGrant carries a freshly created invite together with its raw code.
// The code exists only here; storage holds its digest.
type InviteGrant struct {
	Invite *model.PortalInvite `json:"invite"`
	Code   string              `json:"code"`
}

type CreateInviteParams struct {
	ClientID string
	Delivery model.DeliveryMethod
	Note     *string
	// TTL overrides the configured default when positive.
	TTL time.Duration
}

type InviteService struct {
	db        database.TxRunner
	invites   repository.InviteRepository
	clients   repository.ClientRepository
	identity  *IdentityService
	sessions  *SessionService
	recorder  *audit.Recorder
	inviteTTL time.Duration
}

func NewInviteService(
	db database.TxRunner,
	invites repository.InviteRepository,
	clients repository.ClientRepository,
	identity *IdentityService,
	sessions *SessionService,
	recorder *audit.Recorder,
	inviteTTL time.Duration,
) *InviteService {
	return &InviteService{
		db:        db,
		invites:   invites,
		clients:   clients,
		identity:  identity,
		sessions:  sessions,
		recorder:  recorder,
		inviteTTL: inviteTTL,
	}
}

// Create issues a new one-time invite code. Issuing an invite is an explicit
// operator grant, so the identity is force-enabled, and any other active
// invite for the client is revoked: at most one invite is exchangeable at a
// time.
func (s *InviteService) Create(ctx context.Context, params CreateInviteParams) (*InviteGrant, error) {
	client, err := s.clients.FindByID(ctx, params.ClientID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if client == nil {
		return nil, apperrors.NotFound("Client")
	}

	code, err := util.NewInviteCode()
	if err != nil {
		return nil, apperrors.Internal("failed to generate invite code").WithCause(err)
	}

	ttl := s.inviteTTL
	if params.TTL > 0 {
		ttl = params.TTL
	}

	var invite *model.PortalInvite
	var identityEnabledNow bool
	var supersededCount int64

	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		identity, enabledNow, err := s.identity.ensureEnabledTx(ctx, tx, client)
		if err != nil {
			return err
		}
		identityEnabledNow = enabledNow

		invites := s.invites.WithTx(tx)
		supersededCount, err = invites.RevokeActiveByClientID(ctx, client.ID, time.Now())
		if err != nil {
			return apperrors.Database(err)
		}

		invite, err = invites.Create(ctx, model.CreatePortalInviteParams{
			ID:         uuid.NewString(),
			BusinessID: client.BusinessID,
			ClientID:   client.ID,
			IdentityID: identity.ID,
			CodeHash:   util.HashSecret(code),
			Delivery:   params.Delivery,
			Note:       params.Note,
			ExpiresAt:  time.Now().Add(ttl),
		})
		if err != nil {
			return apperrors.Database(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if identityEnabledNow {
		s.recorder.Record(ctx, audit.Entry{
			ClientID:   client.ID,
			Origin:     model.OriginInternal,
			EventType:  audit.EventPortalEnabled,
			EntityType: audit.EntityIdentity,
			EntityID:   invite.IdentityID,
			Summary:    "enabled while issuing invite",
		})
	}
	if supersededCount > 0 {
		s.recorder.Record(ctx, audit.Entry{
			ClientID:   client.ID,
			Origin:     model.OriginInternal,
			EventType:  audit.EventInviteRevoked,
			EntityType: audit.EntityInvite,
			EntityID:   invite.ID,
			Summary:    fmt.Sprintf("%d prior invites superseded", supersededCount),
		})
	}
	s.recorder.Record(ctx, audit.Entry{
		ClientID:   client.ID,
		Origin:     model.OriginInternal,
		EventType:  audit.EventInviteCreated,
		EntityType: audit.EntityInvite,
		EntityID:   invite.ID,
		Summary:    fmt.Sprintf("code %s via %s", util.MaskCode(code), params.Delivery),
	})

	return &InviteGrant{Invite: invite, Code: code}, nil
}

// MarkSent records a delivery of the invite code to the client.
func (s *InviteService) MarkSent(ctx context.Context, inviteID string) (*model.PortalInvite, error) {
	now := time.Now()
	invite, err := s.invites.MarkSent(ctx, inviteID, now)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if invite == nil {
		return nil, apperrors.StateConflict("invite is no longer active")
	}

	if err := s.identity.identities.TouchLastInviteSent(ctx, invite.IdentityID, now); err != nil {
		log.Error().Err(err).Str("inviteId", inviteID).Msg("touch last invite sent")
	}

	s.recorder.Record(ctx, audit.Entry{
		ClientID:   invite.ClientID,
		Origin:     model.OriginInternal,
		EventType:  audit.EventInviteSent,
		EntityType: audit.EntityInvite,
		EntityID:   invite.ID,
		Summary:    fmt.Sprintf("send %d via %s", invite.SendCount, invite.Delivery),
	})
	return invite, nil
}

// Revoke terminates an invite that has not been exchanged yet.
func (s *InviteService) Revoke(ctx context.Context, inviteID string) error {
	invite, err := s.invites.FindByID(ctx, inviteID)
	if err != nil {
		return apperrors.Database(err)
	}
	if invite == nil {
		return apperrors.NotFound("Invite")
	}
	if !invite.State.IsActive() {
		return apperrors.AlreadyFinal("invite is already terminated")
	}

	if err := s.invites.MarkRevoked(ctx, inviteID, time.Now()); err != nil {
		return apperrors.Database(err)
	}

	s.recorder.Record(ctx, audit.Entry{
		ClientID:   invite.ClientID,
		Origin:     model.OriginInternal,
		EventType:  audit.EventInviteRevoked,
		EntityType: audit.EntityInvite,
		EntityID:   invite.ID,
	})
	return nil
}

// Validate resolves a raw code to its invite if, and only if, the invite is
// still exchangeable and its identity enabled. Every invalid case yields
// (nil, nil); the caller learns nothing about why.
func (s *InviteService) Validate(ctx context.Context, rawCode string) (*model.PortalInvite, error) {
	return s.validate(ctx, s.invites, s.identity.identities, rawCode)
}

func (s *InviteService) validate(
	ctx context.Context,
	invites repository.InviteRepository,
	identities repository.IdentityRepository,
	rawCode string,
) (*model.PortalInvite, error) {
	normalized := strings.ToUpper(strings.TrimSpace(rawCode))
	if normalized == "" {
		return nil, nil
	}

	invite, err := invites.FindByCodeHash(ctx, util.HashSecret(normalized))
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if invite == nil {
		return nil, nil
	}

	if !invite.State.IsActive() {
		return nil, nil
	}

	if invite.IsExpired(time.Now()) {
		// Lazy expiry: advance the stored state as a side effect
		if err := invites.MarkExpired(ctx, invite.ID); err != nil {
			log.Error().Err(err).Str("inviteId", invite.ID).Msg("mark invite expired")
		}
		return nil, nil
	}

	identity, err := identities.FindByID(ctx, invite.IdentityID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if identity == nil || !identity.IsEnabled {
		return nil, nil
	}

	return invite, nil
}

// Accept is the single exchange point from a copy-pasted code to an
// authenticated bearer session. The invite transition is guarded so a code
// can never be exchanged twice, and the whole exchange fails closed if the
// invite's stored business no longer matches the client's current one.
func (s *InviteService) Accept(ctx context.Context, rawCode string, deviceLabel *string) (*SessionGrant, error) {
	var grant *SessionGrant
	var invite *model.PortalInvite

	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		invites := s.invites.WithTx(tx)
		identities := s.identity.identities.WithTx(tx)
		clients := s.clients.WithTx(tx)

		var err error
		invite, err = s.validate(ctx, invites, identities, rawCode)
		if err != nil {
			return err
		}
		if invite == nil {
			return apperrors.InvalidCode()
		}

		client, err := clients.FindByID(ctx, invite.ClientID)
		if err != nil {
			return apperrors.Database(err)
		}
		if client == nil {
			return apperrors.InvalidCode()
		}
		if client.BusinessID != invite.BusinessID {
			s.recorder.Record(ctx, audit.Entry{
				ClientID:   invite.ClientID,
				Origin:     model.OriginPortal,
				EventType:  audit.EventSessionMismatch,
				EntityType: audit.EntityInvite,
				EntityID:   invite.ID,
				Summary: fmt.Sprintf("invite business %s does not match client business %s",
					invite.BusinessID, client.BusinessID),
			})
			return apperrors.ScopeViolation("invite no longer matches the client's business")
		}

		identity, err := identities.FindByID(ctx, invite.IdentityID)
		if err != nil {
			return apperrors.Database(err)
		}
		if identity == nil {
			return apperrors.InvalidCode()
		}

		grant, err = s.sessions.createTx(ctx, tx, client, identity, deviceLabel)
		if err != nil {
			return err
		}

		ok, err := invites.MarkAccepted(ctx, invite.ID, grant.Session.ID, time.Now())
		if err != nil {
			return apperrors.Database(err)
		}
		if !ok {
			return apperrors.Conflict("invite was exchanged concurrently")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Entry{
		ClientID:   invite.ClientID,
		SessionID:  &grant.Session.ID,
		Origin:     model.OriginPortal,
		EventType:  audit.EventInviteAccepted,
		EntityType: audit.EntityInvite,
		EntityID:   invite.ID,
	})
	s.recorder.Record(ctx, audit.Entry{
		ClientID:   invite.ClientID,
		SessionID:  &grant.Session.ID,
		Origin:     model.OriginPortal,
		EventType:  audit.EventSessionCreated,
		EntityType: audit.EntitySession,
		EntityID:   grant.Session.ID,
	})

	return grant, nil
}
