package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftbooks/portal-server/internal/audit"
	"github.com/craftbooks/portal-server/internal/database"
	"github.com/craftbooks/portal-server/internal/middleware"
	"github.com/craftbooks/portal-server/internal/model"
	"github.com/craftbooks/portal-server/internal/repository"
	"github.com/craftbooks/portal-server/internal/service"
)

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn database.TxFunc) error {
	return fn(nil)
}

type stubSessionRepo struct {
	findByIDFunc func(ctx context.Context, id string) (*model.PortalSession, error)
	markRevoked  func(ctx context.Context, id string, at time.Time) error
}

func (s *stubSessionRepo) FindByID(ctx context.Context, id string) (*model.PortalSession, error) {
	if s.findByIDFunc != nil {
		return s.findByIDFunc(ctx, id)
	}
	return nil, nil
}

func (s *stubSessionRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.PortalSession, error) {
	return nil, nil
}

func (s *stubSessionRepo) FindActiveByClientID(ctx context.Context, clientID string) ([]model.PortalSession, error) {
	return nil, nil
}

func (s *stubSessionRepo) Create(ctx context.Context, params model.CreatePortalSessionParams) (*model.PortalSession, error) {
	return nil, nil
}

func (s *stubSessionRepo) MarkRevoked(ctx context.Context, id string, at time.Time) error {
	if s.markRevoked != nil {
		return s.markRevoked(ctx, id, at)
	}
	return nil
}

func (s *stubSessionRepo) MarkExpired(ctx context.Context, id string) error {
	return nil
}

func (s *stubSessionRepo) RevokeAllByClientID(ctx context.Context, clientID string, at time.Time) (int64, error) {
	return 0, nil
}

func (s *stubSessionRepo) WithTx(tx *sqlx.Tx) repository.SessionRepository {
	return s
}

type stubClientRepo struct{}

func (s *stubClientRepo) FindByID(ctx context.Context, id string) (*model.Client, error) {
	return nil, nil
}

func (s *stubClientRepo) CurrentBusinessID(ctx context.Context, clientID string) (string, error) {
	return "", nil
}

func (s *stubClientRepo) WithTx(tx *sqlx.Tx) repository.ClientRepository {
	return s
}

type stubAuditRepo struct{}

func (s *stubAuditRepo) Create(ctx context.Context, params model.CreateAuditEventParams) (*model.PortalAuditEvent, error) {
	return nil, nil
}

func (s *stubAuditRepo) ListByClientID(ctx context.Context, clientID string, limit int) ([]model.PortalAuditEvent, error) {
	return nil, nil
}

func (s *stubAuditRepo) ListByEntity(ctx context.Context, entityType, entityID string) ([]model.PortalAuditEvent, error) {
	return nil, nil
}

func (s *stubAuditRepo) WithTx(tx *sqlx.Tx) repository.AuditEventRepository {
	return s
}

func newTestRecorder() *audit.Recorder {
	return audit.NewRecorder(&stubAuditRepo{}, &stubClientRepo{})
}

func withSession(r *http.Request, session *model.PortalSession) *http.Request {
	ctx := context.WithValue(r.Context(), middleware.SessionContextKey, session)
	return r.WithContext(ctx)
}

func testPortalSession() *model.PortalSession {
	return &model.PortalSession{
		ID:         "session-1",
		BusinessID: "biz-1",
		ClientID:   "client-1",
		IdentityID: "identity-1",
		State:      model.SessionStateActive,
		ExpiresAt:  time.Now().Add(time.Hour),
	}
}

func TestPortalHandler_ExchangeCode_MalformedJSON(t *testing.T) {
	h := &PortalHandler{}

	req := httptest.NewRequest(http.MethodPost, "/exchange", bytes.NewBufferString("{nope"))
	rec := httptest.NewRecorder()
	h.ExchangeCode(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPortalHandler_ExchangeCode_MissingCode(t *testing.T) {
	h := &PortalHandler{}

	req := httptest.NewRequest(http.MethodPost, "/exchange", bytes.NewBufferString(`{"deviceLabel":"phone"}`))
	rec := httptest.NewRecorder()
	h.ExchangeCode(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "MISSING_REQUIRED", body["code"])
}

func TestPortalHandler_SessionInfo(t *testing.T) {
	h := &PortalHandler{}

	req := withSession(httptest.NewRequest(http.MethodGet, "/session", nil), testPortalSession())
	rec := httptest.NewRecorder()
	h.SessionInfo(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "session-1", body["sessionId"])
	assert.Equal(t, "client-1", body["clientId"])
	assert.Equal(t, "biz-1", body["businessId"])
	// The token digest never appears in the session view
	assert.NotContains(t, body, "token")
	assert.NotContains(t, body, "tokenHash")
}

func TestPortalHandler_Logout_ToleratesRacingLogout(t *testing.T) {
	revoked := testPortalSession()
	revoked.State = model.SessionStateRevoked
	sessions := &stubSessionRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.PortalSession, error) {
			return revoked, nil
		},
	}
	svc := service.NewSessionService(stubTxRunner{}, sessions, nil, &stubClientRepo{}, newTestRecorder(), time.Hour)
	h := &PortalHandler{sessions: svc}

	req := withSession(httptest.NewRequest(http.MethodPost, "/logout", nil), testPortalSession())
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "logged_out")
}

func TestPortalHandler_Logout_RevokesActiveSession(t *testing.T) {
	var revokedID string
	sessions := &stubSessionRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.PortalSession, error) {
			return testPortalSession(), nil
		},
		markRevoked: func(ctx context.Context, id string, at time.Time) error {
			revokedID = id
			return nil
		},
	}
	svc := service.NewSessionService(stubTxRunner{}, sessions, nil, &stubClientRepo{}, newTestRecorder(), time.Hour)
	h := &PortalHandler{sessions: svc}

	req := withSession(httptest.NewRequest(http.MethodPost, "/logout", nil), testPortalSession())
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "session-1", revokedID)
}

func TestPortalHandler_SignContract_MalformedJSON(t *testing.T) {
	h := &PortalHandler{}

	req := withSession(httptest.NewRequest(http.MethodPost, "/contracts/c1/sign", bytes.NewBufferString("{")), testPortalSession())
	rec := httptest.NewRecorder()
	h.SignContract(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
