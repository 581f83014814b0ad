package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"

	"github.com/craftbooks/portal-server/internal/audit"
	"github.com/craftbooks/portal-server/internal/database"
	"github.com/craftbooks/portal-server/internal/model"
	"github.com/craftbooks/portal-server/internal/repository"
)

// stubTxRunner runs the transactional closure directly. The mock
// repositories return themselves from WithTx, so a nil *sqlx.Tx is fine.
type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn database.TxFunc) error {
	return fn(nil)
}

// Mock repositories

type mockClientRepo struct {
	mock.Mock
}

func (m *mockClientRepo) FindByID(ctx context.Context, id string) (*model.Client, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Client), args.Error(1)
}

func (m *mockClientRepo) CurrentBusinessID(ctx context.Context, clientID string) (string, error) {
	args := m.Called(ctx, clientID)
	return args.String(0), args.Error(1)
}

func (m *mockClientRepo) WithTx(tx *sqlx.Tx) repository.ClientRepository {
	return m
}

type mockIdentityRepo struct {
	mock.Mock
}

func (m *mockIdentityRepo) FindByID(ctx context.Context, id string) (*model.PortalIdentity, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PortalIdentity), args.Error(1)
}

func (m *mockIdentityRepo) FindByClientID(ctx context.Context, clientID string) ([]model.PortalIdentity, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PortalIdentity), args.Error(1)
}

func (m *mockIdentityRepo) Create(ctx context.Context, params model.CreatePortalIdentityParams) (*model.PortalIdentity, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PortalIdentity), args.Error(1)
}

func (m *mockIdentityRepo) SetEnabled(ctx context.Context, id string, enabled bool, businessID string) error {
	args := m.Called(ctx, id, enabled, businessID)
	return args.Error(0)
}

func (m *mockIdentityRepo) DisableAllForClient(ctx context.Context, clientID string) (int64, error) {
	args := m.Called(ctx, clientID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockIdentityRepo) TouchLastInviteSent(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *mockIdentityRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *mockIdentityRepo) WithTx(tx *sqlx.Tx) repository.IdentityRepository {
	return m
}

type mockInviteRepo struct {
	mock.Mock
}

func (m *mockInviteRepo) FindByID(ctx context.Context, id string) (*model.PortalInvite, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PortalInvite), args.Error(1)
}

func (m *mockInviteRepo) FindByCodeHash(ctx context.Context, codeHash string) (*model.PortalInvite, error) {
	args := m.Called(ctx, codeHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PortalInvite), args.Error(1)
}

func (m *mockInviteRepo) FindActiveByClientID(ctx context.Context, clientID string) ([]model.PortalInvite, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PortalInvite), args.Error(1)
}

func (m *mockInviteRepo) Create(ctx context.Context, params model.CreatePortalInviteParams) (*model.PortalInvite, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PortalInvite), args.Error(1)
}

func (m *mockInviteRepo) MarkSent(ctx context.Context, id string, at time.Time) (*model.PortalInvite, error) {
	args := m.Called(ctx, id, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PortalInvite), args.Error(1)
}

func (m *mockInviteRepo) MarkAccepted(ctx context.Context, id string, sessionID string, at time.Time) (bool, error) {
	args := m.Called(ctx, id, sessionID, at)
	return args.Bool(0), args.Error(1)
}

func (m *mockInviteRepo) MarkRevoked(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *mockInviteRepo) MarkExpired(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockInviteRepo) RevokeActiveByClientID(ctx context.Context, clientID string, at time.Time) (int64, error) {
	args := m.Called(ctx, clientID, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockInviteRepo) WithTx(tx *sqlx.Tx) repository.InviteRepository {
	return m
}

type mockSessionRepo struct {
	mock.Mock
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.PortalSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PortalSession), args.Error(1)
}

func (m *mockSessionRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.PortalSession, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PortalSession), args.Error(1)
}

func (m *mockSessionRepo) FindActiveByClientID(ctx context.Context, clientID string) ([]model.PortalSession, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PortalSession), args.Error(1)
}

func (m *mockSessionRepo) Create(ctx context.Context, params model.CreatePortalSessionParams) (*model.PortalSession, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PortalSession), args.Error(1)
}

func (m *mockSessionRepo) MarkRevoked(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *mockSessionRepo) MarkExpired(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockSessionRepo) RevokeAllByClientID(ctx context.Context, clientID string, at time.Time) (int64, error) {
	args := m.Called(ctx, clientID, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockSessionRepo) WithTx(tx *sqlx.Tx) repository.SessionRepository {
	return m
}

type mockAuditEventRepo struct {
	mock.Mock
}

func (m *mockAuditEventRepo) Create(ctx context.Context, params model.CreateAuditEventParams) (*model.PortalAuditEvent, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PortalAuditEvent), args.Error(1)
}

func (m *mockAuditEventRepo) ListByClientID(ctx context.Context, clientID string, limit int) ([]model.PortalAuditEvent, error) {
	args := m.Called(ctx, clientID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PortalAuditEvent), args.Error(1)
}

func (m *mockAuditEventRepo) ListByEntity(ctx context.Context, entityType, entityID string) ([]model.PortalAuditEvent, error) {
	args := m.Called(ctx, entityType, entityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PortalAuditEvent), args.Error(1)
}

func (m *mockAuditEventRepo) WithTx(tx *sqlx.Tx) repository.AuditEventRepository {
	return m
}

type mockDocumentRepo struct {
	mock.Mock
}

func (m *mockDocumentRepo) FindByID(ctx context.Context, id string) (*model.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *mockDocumentRepo) MarkEstimateAccepted(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *mockDocumentRepo) WithTx(tx *sqlx.Tx) repository.DocumentRepository {
	return m
}

type mockContractRepo struct {
	mock.Mock
}

func (m *mockContractRepo) FindByID(ctx context.Context, id string) (*model.Contract, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contract), args.Error(1)
}

func (m *mockContractRepo) FindByDocumentID(ctx context.Context, documentID string) ([]model.Contract, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Contract), args.Error(1)
}

func (m *mockContractRepo) MarkSigned(ctx context.Context, id string, signedByName string, at time.Time) (bool, error) {
	args := m.Called(ctx, id, signedByName, at)
	return args.Bool(0), args.Error(1)
}

func (m *mockContractRepo) WithTx(tx *sqlx.Tx) repository.ContractRepository {
	return m
}

type mockSignatureRepo struct {
	mock.Mock
}

func (m *mockSignatureRepo) Create(ctx context.Context, params model.CreateContractSignatureParams) (*model.ContractSignature, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ContractSignature), args.Error(1)
}

func (m *mockSignatureRepo) FindByContractAndRole(ctx context.Context, contractID string, role model.SignerRole) (*model.ContractSignature, error) {
	args := m.Called(ctx, contractID, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ContractSignature), args.Error(1)
}

func (m *mockSignatureRepo) ListByContractID(ctx context.Context, contractID string) ([]model.ContractSignature, error) {
	args := m.Called(ctx, contractID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ContractSignature), args.Error(1)
}

func (m *mockSignatureRepo) WithTx(tx *sqlx.Tx) repository.SignatureRepository {
	return m
}

// newQuietRecorder builds a recorder whose writes are accepted and ignored.
// Tests that assert on the trail build their own recorder around a mock
// events repo instead.
func newQuietRecorder() *audit.Recorder {
	events := new(mockAuditEventRepo)
	events.On("Create", mock.Anything, mock.Anything).Return(nil, nil).Maybe()
	clients := new(mockClientRepo)
	clients.On("CurrentBusinessID", mock.Anything, mock.Anything).Return("", nil).Maybe()
	return audit.NewRecorder(events, clients)
}

// newRecorderWith wires a recorder around the given events repo so a test
// can assert which events were appended.
func newRecorderWith(events *mockAuditEventRepo) *audit.Recorder {
	clients := new(mockClientRepo)
	clients.On("CurrentBusinessID", mock.Anything, mock.Anything).Return("", nil).Maybe()
	return audit.NewRecorder(events, clients)
}
