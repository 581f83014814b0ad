package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/craftbooks/portal-server/internal/errors"
	"github.com/craftbooks/portal-server/internal/middleware"
	"github.com/craftbooks/portal-server/internal/model"
	"github.com/craftbooks/portal-server/internal/service"
)

// PortalHandler serves the client-facing portal API: exchanging an invite
// code for a session, and the two record-altering actions a session allows.
type PortalHandler struct {
	invites     *service.InviteService
	sessions    *service.SessionService
	actions     *service.PortalActionService
	sessionAuth *middleware.SessionMiddleware
	rateLimit   *middleware.ExchangeRateLimitMiddleware
}

func NewPortalHandler(
	invites *service.InviteService,
	sessions *service.SessionService,
	actions *service.PortalActionService,
	sessionAuth *middleware.SessionMiddleware,
	rateLimit *middleware.ExchangeRateLimitMiddleware,
) *PortalHandler {
	return &PortalHandler{
		invites:     invites,
		sessions:    sessions,
		actions:     actions,
		sessionAuth: sessionAuth,
		rateLimit:   rateLimit,
	}
}

func (h *PortalHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(h.rateLimit.Handler)
		r.Post("/exchange", h.ExchangeCode)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.sessionAuth.Handler)
		r.Get("/session", h.SessionInfo)
		r.Post("/logout", h.Logout)
		r.Post("/estimates/{estimateID}/accept", h.AcceptEstimate)
		r.Post("/contracts/{contractID}/sign", h.SignContract)
	})

	return r
}

type exchangeCodeRequest struct {
	Code        string  `json:"code"`
	DeviceLabel *string `json:"deviceLabel,omitempty"`
}

// ExchangeCode turns a one-time invite code into a bearer session. The
// token in the response is the only time the raw token ever leaves the
// system.
func (h *PortalHandler) ExchangeCode(w http.ResponseWriter, r *http.Request) {
	var req exchangeCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}
	if req.Code == "" {
		writeError(w, apperrors.MissingRequired("code"))
		return
	}

	grant, err := h.invites.Accept(r.Context(), req.Code, req.DeviceLabel)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":     grant.Token,
		"sessionId": grant.Session.ID,
		"expiresAt": grant.Session.ExpiresAt.Format(time.RFC3339),
	})
}

func (h *PortalHandler) SessionInfo(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"sessionId":   session.ID,
		"clientId":    session.ClientID,
		"businessId":  session.BusinessID,
		"deviceLabel": session.DeviceLabel,
		"expiresAt":   session.ExpiresAt.Format(time.RFC3339),
		"createdAt":   session.CreatedAt.Format(time.RFC3339),
	})
}

// Logout revokes the presented session.
func (h *PortalHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())
	if err := h.sessions.Revoke(r.Context(), session.ID); err != nil {
		// Already-terminal just means a racing logout; treat as done
		if code := apperrors.GetCode(err); code != apperrors.ErrCodeAlreadyFinal {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (h *PortalHandler) AcceptEstimate(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())
	estimateID := chi.URLParam(r, "estimateID")

	doc, err := h.actions.AcceptEstimate(r.Context(), estimateID, session)
	if err != nil {
		writeError(w, err)
		return
	}

	log.Info().
		Str("estimateId", doc.ID).
		Str("clientId", session.ClientID).
		Msg("estimate accepted via portal")

	writeJSON(w, http.StatusOK, map[string]any{
		"estimateId": doc.ID,
		"status":     doc.EstimateStatus,
		"acceptedAt": formatTime(doc.EstimateAcceptedAt),
	})
}

type signContractRequest struct {
	SignerName    string  `json:"signerName"`
	SignatureType string  `json:"signatureType"`
	ImageData     []byte  `json:"imageData,omitempty"`
	TypedText     string  `json:"typedText,omitempty"`
	DeviceLabel   *string `json:"deviceLabel,omitempty"`
}

func (h *PortalHandler) SignContract(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())
	contractID := chi.URLParam(r, "contractID")

	var req signContractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}

	signature, err := h.actions.SignContract(r.Context(), service.SignContractParams{
		ContractID:    contractID,
		Session:       session,
		SignerName:    req.SignerName,
		SignatureType: model.SignatureType(req.SignatureType),
		ImageData:     req.ImageData,
		TypedText:     req.TypedText,
		DeviceLabel:   req.DeviceLabel,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	log.Info().
		Str("contractId", contractID).
		Str("signatureId", signature.ID).
		Str("clientId", session.ClientID).
		Msg("contract signed via portal")

	writeJSON(w, http.StatusCreated, map[string]any{
		"signatureId":    signature.ID,
		"contractId":     signature.ContractID,
		"signedAt":       signature.SignedAt.Format(time.RFC3339),
		"contentDigest":  signature.ContentDigest,
		"consentVersion": signature.ConsentVersion,
	})
}
