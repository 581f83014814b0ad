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

// IdentityService owns the portal enablement record per client. It is the
// gate for whether a portal exists for that client at all.
type IdentityService struct {
	db         database.TxRunner
	identities repository.IdentityRepository
	clients    repository.ClientRepository
	sessions   repository.SessionRepository
	recorder   *audit.Recorder
}

func NewIdentityService(
	db database.TxRunner,
	identities repository.IdentityRepository,
	clients repository.ClientRepository,
	sessions repository.SessionRepository,
	recorder *audit.Recorder,
) *IdentityService {
	return &IdentityService{
		db:         db,
		identities: identities,
		clients:    clients,
		sessions:   sessions,
		recorder:   recorder,
	}
}

// Ensure returns the canonical identity for a client, creating a disabled
// one if none exists.
func (s *IdentityService) Ensure(ctx context.Context, clientID string) (*model.PortalIdentity, error) {
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
	if canonical := resolveCanonical(identities); canonical != nil {
		return canonical, nil
	}

	return s.createDisabled(ctx, s.identities, client)
}

// SetEnabled flips portal access for a client. Enabling canonicalizes one
// identity and re-stamps its business id from the current client record.
// Disabling disables every identity row for the client and synchronously
// revokes all of its active sessions, so a live token cannot outlast the
// operator's decision.
func (s *IdentityService) SetEnabled(ctx context.Context, clientID string, enabled bool) (*model.PortalIdentity, error) {
	client, err := s.clients.FindByID(ctx, clientID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if client == nil {
		return nil, apperrors.NotFound("Client")
	}

	if enabled {
		return s.enable(ctx, client)
	}
	return s.disable(ctx, client)
}

func (s *IdentityService) enable(ctx context.Context, client *model.Client) (*model.PortalIdentity, error) {
	var canonical *model.PortalIdentity

	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		canonical, _, err = s.ensureEnabledTx(ctx, tx, client)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Entry{
		ClientID:   client.ID,
		Origin:     model.OriginInternal,
		EventType:  audit.EventPortalEnabled,
		EntityType: audit.EntityIdentity,
		EntityID:   canonical.ID,
	})

	return canonical, nil
}

func (s *IdentityService) disable(ctx context.Context, client *model.Client) (*model.PortalIdentity, error) {
	var canonical *model.PortalIdentity
	var revoked int64

	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		identities := s.identities.WithTx(tx)
		sessions := s.sessions.WithTx(tx)

		all, err := identities.FindByClientID(ctx, client.ID)
		if err != nil {
			return apperrors.Database(err)
		}
		canonical = resolveCanonical(all)

		// Disable every row, duplicates included
		if _, err := identities.DisableAllForClient(ctx, client.ID); err != nil {
			return apperrors.Database(err)
		}

		// Hard lockout: disabling must not leave a live session valid
		// until its natural expiry
		revoked, err = sessions.RevokeAllByClientID(ctx, client.ID, time.Now())
		if err != nil {
			return apperrors.Database(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	entry := audit.Entry{
		ClientID:  client.ID,
		Origin:    model.OriginInternal,
		EventType: audit.EventPortalDisabled,
		Summary:   fmt.Sprintf("portal disabled, %d active sessions revoked", revoked),
	}
	if canonical != nil {
		entry.EntityType = audit.EntityIdentity
		entry.EntityID = canonical.ID
	}
	s.recorder.Record(ctx, entry)

	if canonical != nil {
		canonical.IsEnabled = false
	}
	return canonical, nil
}

// ensureEnabledTx forces the canonical identity into the enabled state inside
// an existing transaction, creating it first if absent. The business id is
// re-stamped from the current client record, which repairs any tenant drift
// accumulated since the identity was created. The second return value
// reports whether enablement actually changed state.
func (s *IdentityService) ensureEnabledTx(ctx context.Context, tx *sqlx.Tx, client *model.Client) (*model.PortalIdentity, bool, error) {
	identities := s.identities.WithTx(tx)

	all, err := identities.FindByClientID(ctx, client.ID)
	if err != nil {
		return nil, false, apperrors.Database(err)
	}

	canonical := resolveCanonical(all)
	if canonical == nil {
		created, err := s.createDisabled(ctx, identities, client)
		if err != nil {
			return nil, false, err
		}
		all = []model.PortalIdentity{*created}
		canonical = &all[0]
	}

	changed := !canonical.IsEnabled || canonical.BusinessID != client.BusinessID

	// Force every row for the client into the same enabled/business state,
	// so a stale duplicate can never be resolved as the disabled one
	for i := range all {
		if err := identities.SetEnabled(ctx, all[i].ID, true, client.BusinessID); err != nil {
			return nil, false, apperrors.Database(err)
		}
	}
	if len(all) > 1 {
		log.Warn().
			Str("clientId", client.ID).
			Int("count", len(all)).
			Msg("multiple portal identities for client, forcing consistent state")
	}

	canonical.IsEnabled = true
	canonical.BusinessID = client.BusinessID
	return canonical, changed, nil
}

func (s *IdentityService) createDisabled(ctx context.Context, identities repository.IdentityRepository, client *model.Client) (*model.PortalIdentity, error) {
	handle, err := util.NewPublicHandle()
	if err != nil {
		return nil, apperrors.Internal("failed to generate public handle").WithCause(err)
	}

	identity, err := identities.Create(ctx, model.CreatePortalIdentityParams{
		ID:           uuid.NewString(),
		BusinessID:   client.BusinessID,
		ClientID:     client.ID,
		IsEnabled:    false,
		PublicHandle: handle,
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return identity, nil
}

// resolveCanonical picks the identity to treat as authoritative when more
// than one exists: an enabled one wins, otherwise the newest. The input is
// ordered newest first by the repository.
func resolveCanonical(identities []model.PortalIdentity) *model.PortalIdentity {
	if len(identities) == 0 {
		return nil
	}
	for i := range identities {
		if identities[i].IsEnabled {
			return &identities[i]
		}
	}
	return &identities[0]
}
