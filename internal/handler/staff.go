package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/craftbooks/portal-server/internal/audit"
	apperrors "github.com/craftbooks/portal-server/internal/errors"
	"github.com/craftbooks/portal-server/internal/model"
	"github.com/craftbooks/portal-server/internal/service"
)

// StaffHandler serves the internal operator API: portal enablement, invite
// lifecycle, session lockout and audit review. Everything here sits behind
// the staff key middleware.
type StaffHandler struct {
	identities *service.IdentityService
	invites    *service.InviteService
	sessions   *service.SessionService
	recorder   *audit.Recorder
	limiter    *service.RateLimiter
	preview    *service.PreviewSeeder
}

func NewStaffHandler(
	identities *service.IdentityService,
	invites *service.InviteService,
	sessions *service.SessionService,
	recorder *audit.Recorder,
	limiter *service.RateLimiter,
	preview *service.PreviewSeeder,
) *StaffHandler {
	return &StaffHandler{
		identities: identities,
		invites:    invites,
		sessions:   sessions,
		recorder:   recorder,
		limiter:    limiter,
		preview:    preview,
	}
}

func (h *StaffHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/clients/{clientID}/portal", h.GetIdentity)
	r.Put("/clients/{clientID}/portal", h.SetEnabled)
	r.Post("/clients/{clientID}/invites", h.CreateInvite)
	r.Post("/invites/{inviteID}/sent", h.MarkInviteSent)
	r.Delete("/invites/{inviteID}", h.RevokeInvite)
	r.Delete("/clients/{clientID}/sessions", h.RevokeSessions)
	r.Get("/clients/{clientID}/audit", h.ListAuditEvents)
	r.Get("/audit/{entityType}/{entityID}", h.ListEntityAudit)

	return r
}

func (h *StaffHandler) GetIdentity(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")

	identity, err := h.identities.Ensure(r.Context(), clientID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

type setEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *StaffHandler) SetEnabled(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")

	var req setEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}

	identity, err := h.identities.SetEnabled(r.Context(), clientID, req.Enabled)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

type createInviteRequest struct {
	Delivery string  `json:"delivery"`
	Note     *string `json:"note,omitempty"`
	TTLDays  int     `json:"ttlDays,omitempty"`
	// Preview seeds the resulting session to the preview environment when
	// the operator wants to see the portal as the client would.
	Preview     bool    `json:"preview,omitempty"`
	DeviceLabel *string `json:"deviceLabel,omitempty"`
}

func (h *StaffHandler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")

	var req createInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}

	delivery := model.DeliveryMethod(req.Delivery)
	switch delivery {
	case model.DeliveryEmail, model.DeliverySMS, model.DeliveryManual:
	case "":
		delivery = model.DeliveryManual
	default:
		writeError(w, apperrors.InvalidInput("delivery", "must be email, sms or manual"))
		return
	}

	if allowed, _ := h.limiter.CheckIssueLimit(r.Context(), clientID); !allowed {
		writeError(w, apperrors.RateLimitExceeded())
		return
	}

	grant, err := h.invites.Create(r.Context(), service.CreateInviteParams{
		ClientID: clientID,
		Delivery: delivery,
		Note:     req.Note,
		TTL:      time.Duration(req.TTLDays) * 24 * time.Hour,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	resp := map[string]any{
		"invite": grant.Invite,
		"code":   grant.Code,
	}

	if req.Preview {
		// The invite creation above enabled the identity, so a direct
		// session is issued without consuming the client's code
		sessionGrant, err := h.sessions.Create(r.Context(), clientID, req.DeviceLabel)
		if err != nil {
			writeError(w, err)
			return
		}
		resp["session"] = map[string]any{
			"sessionId": sessionGrant.Session.ID,
			"expiresAt": sessionGrant.Session.ExpiresAt.Format(time.RFC3339),
		}
		// Best-effort: the invite and session are already committed, a
		// preview failure must not unwind them
		if err := h.preview.Seed(r.Context(), sessionGrant.Session, sessionGrant.Token); err != nil {
			log.Warn().Err(err).Str("sessionId", sessionGrant.Session.ID).Msg("preview seeding failed")
			resp["previewError"] = "preview environment unavailable"
		}
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (h *StaffHandler) MarkInviteSent(w http.ResponseWriter, r *http.Request) {
	inviteID := chi.URLParam(r, "inviteID")

	invite, err := h.invites.MarkSent(r.Context(), inviteID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invite)
}

func (h *StaffHandler) RevokeInvite(w http.ResponseWriter, r *http.Request) {
	inviteID := chi.URLParam(r, "inviteID")

	if err := h.invites.Revoke(r.Context(), inviteID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

func (h *StaffHandler) RevokeSessions(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")

	revoked, err := h.sessions.RevokeAll(r.Context(), clientID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"revoked": revoked})
}

func (h *StaffHandler) ListAuditEvents(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	events, err := h.recorder.ListByClient(r.Context(), clientID, limit)
	if err != nil {
		writeError(w, apperrors.Database(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *StaffHandler) ListEntityAudit(w http.ResponseWriter, r *http.Request) {
	entityType := chi.URLParam(r, "entityType")
	entityID := chi.URLParam(r, "entityID")

	events, err := h.recorder.ListByEntity(r.Context(), entityType, entityID)
	if err != nil {
		writeError(w, apperrors.Database(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
