package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/craftbooks/portal-server/internal/audit"
	"github.com/craftbooks/portal-server/internal/config"
	"github.com/craftbooks/portal-server/internal/database"
	apperrors "github.com/craftbooks/portal-server/internal/errors"
	"github.com/craftbooks/portal-server/internal/model"
	"github.com/craftbooks/portal-server/internal/repository"
	"github.com/craftbooks/portal-server/internal/util"
)

// PortalActionService holds the two state-changing operations a client
// session may perform. Authorization is re-derived from the validated
// session on every call; caller-supplied scope is never trusted.
type PortalActionService struct {
	db         database.TxRunner
	documents  repository.DocumentRepository
	contracts  repository.ContractRepository
	signatures repository.SignatureRepository
	clients    repository.ClientRepository
	recorder   *audit.Recorder
	consent    string
}

func NewPortalActionService(
	db database.TxRunner,
	documents repository.DocumentRepository,
	contracts repository.ContractRepository,
	signatures repository.SignatureRepository,
	clients repository.ClientRepository,
	recorder *audit.Recorder,
	consentVersion string,
) *PortalActionService {
	return &PortalActionService{
		db:         db,
		documents:  documents,
		contracts:  contracts,
		signatures: signatures,
		clients:    clients,
		recorder:   recorder,
		consent:    consentVersion,
	}
}

// AcceptEstimate marks an estimate accepted on behalf of the portal client.
func (s *PortalActionService) AcceptEstimate(ctx context.Context, estimateID string, session *model.PortalSession) (*model.Document, error) {
	if session == nil || !session.IsLive(time.Now()) {
		return nil, apperrors.InvalidToken("session is not active")
	}

	var doc *model.Document
	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		documents := s.documents.WithTx(tx)
		contracts := s.contracts.WithTx(tx)

		var err error
		doc, err = documents.FindByID(ctx, estimateID)
		if err != nil {
			return apperrors.Database(err)
		}
		if doc == nil || doc.DocType != model.DocTypeEstimate {
			return apperrors.NotFound("Estimate")
		}

		if doc.ClientID != session.ClientID {
			s.recordBlocked(ctx, session, audit.EventEstimateBlocked, audit.EntityEstimate, doc.ID,
				"estimate belongs to a different client")
			return apperrors.ScopeViolation("estimate does not belong to this client")
		}

		// An accepted estimate cannot be re-opened once its contract is
		// executed
		linked, err := contracts.FindByDocumentID(ctx, doc.ID)
		if err != nil {
			return apperrors.Database(err)
		}
		for i := range linked {
			if linked[i].Status == model.ContractStatusSigned {
				s.recordBlocked(ctx, session, audit.EventEstimateBlocked, audit.EntityEstimate, doc.ID,
					fmt.Sprintf("locked by signed contract %s", linked[i].ID))
				return apperrors.Locked("estimate is locked by a signed contract")
			}
		}

		switch doc.EstimateStatus {
		case model.EstimateStatusAccepted, model.EstimateStatusDeclined:
			return apperrors.AlreadyFinal(fmt.Sprintf("estimate is already %s", doc.EstimateStatus))
		}

		now := time.Now()
		if err := documents.MarkEstimateAccepted(ctx, doc.ID, now); err != nil {
			return apperrors.Database(err)
		}
		doc.EstimateStatus = model.EstimateStatusAccepted
		doc.EstimateAcceptedAt = &now
		doc.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Entry{
		ClientID:   session.ClientID,
		SessionID:  &session.ID,
		Origin:     model.OriginPortal,
		EventType:  audit.EventEstimateAccepted,
		EntityType: audit.EntityEstimate,
		EntityID:   doc.ID,
	})
	return doc, nil
}

type SignContractParams struct {
	ContractID     string
	Session        *model.PortalSession
	SignerName     string
	SignatureType  model.SignatureType
	ImageData      []byte
	TypedText      string
	DeviceLabel    *string
	ConsentVersion string
}

// SignContract captures a client e-signature and executes the contract.
// Two audit events bracket the mutation: a crash between signature creation
// and the status transition is visible in the trail as submitted-but-not-
// signed.
func (s *PortalActionService) SignContract(ctx context.Context, params SignContractParams) (*model.ContractSignature, error) {
	session := params.Session
	if session == nil || !session.IsLive(time.Now()) {
		return nil, apperrors.InvalidToken("session is not active")
	}

	var signature *model.ContractSignature
	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		contracts := s.contracts.WithTx(tx)
		signatures := s.signatures.WithTx(tx)
		clients := s.clients.WithTx(tx)

		contract, err := contracts.FindByID(ctx, params.ContractID)
		if err != nil {
			return apperrors.Database(err)
		}
		if contract == nil {
			return apperrors.NotFound("Contract")
		}

		// Reconcile the contract's stored business id against its client
		// relation before the scope checks; drift is a data-quality issue,
		// not a license to skip the checks
		expectedBusinessID := contract.BusinessID
		if current, err := clients.CurrentBusinessID(ctx, contract.ClientID); err != nil {
			return apperrors.Database(err)
		} else if current != "" && current != contract.BusinessID {
			log.Warn().
				Str("contractId", contract.ID).
				Str("storedBusinessId", contract.BusinessID).
				Str("currentBusinessId", current).
				Msg("contract business id drifted from client relation")
			expectedBusinessID = current
		}

		if contract.ClientID != session.ClientID || expectedBusinessID != session.BusinessID {
			// Distinct from a plain not-found so the trail shows the attempt
			s.recordBlocked(ctx, session, audit.EventContractSignBlocked, audit.EntityContract, contract.ID,
				"contract is outside the session's scope")
			return apperrors.ScopeViolation("contract does not belong to this client")
		}

		if contract.Status != model.ContractStatusSent {
			s.recordBlocked(ctx, session, audit.EventContractSignBlocked, audit.EntityContract, contract.ID,
				fmt.Sprintf("contract status is %s, not sent", contract.Status))
			return apperrors.StateConflict(fmt.Sprintf("contract is %s, only sent contracts can be signed", contract.Status))
		}

		prior, err := signatures.FindByContractAndRole(ctx, contract.ID, model.SignerRoleClient)
		if err != nil {
			return apperrors.Database(err)
		}
		if prior != nil {
			s.recordBlocked(ctx, session, audit.EventContractSignBlocked, audit.EntityContract, contract.ID,
				"a client signature already exists")
			return apperrors.Conflict("contract already carries a client signature")
		}

		if err := validateSignaturePayload(params); err != nil {
			return err
		}

		s.recorder.Record(ctx, audit.Entry{
			ClientID:   session.ClientID,
			SessionID:  &session.ID,
			Origin:     model.OriginPortal,
			EventType:  audit.EventContractSignSubmitted,
			EntityType: audit.EntityContract,
			EntityID:   contract.ID,
		})

		now := time.Now()
		consent := params.ConsentVersion
		if consent == "" {
			consent = s.consent
		}
		var typedText *string
		if params.SignatureType == model.SignatureTypeTyped {
			typedText = &params.TypedText
		}

		signature, err = signatures.Create(ctx, model.CreateContractSignatureParams{
			ID:             uuid.NewString(),
			BusinessID:     session.BusinessID,
			ClientID:       session.ClientID,
			ContractID:     contract.ID,
			SessionID:      &session.ID,
			SignerRole:     model.SignerRoleClient,
			SignerName:     params.SignerName,
			SignatureType:  params.SignatureType,
			ImageData:      params.ImageData,
			TypedText:      typedText,
			ContentDigest:  util.ContentDigest(contract.Title, contract.Body),
			ConsentVersion: consent,
			DeviceLabel:    params.DeviceLabel,
			SignedAt:       now,
		})
		if err != nil {
			return apperrors.Database(err)
		}

		ok, err := contracts.MarkSigned(ctx, contract.ID, params.SignerName, now)
		if err != nil {
			return apperrors.Database(err)
		}
		if !ok {
			return apperrors.Conflict("contract was signed concurrently")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Entry{
		ClientID:   session.ClientID,
		SessionID:  &session.ID,
		Origin:     model.OriginPortal,
		EventType:  audit.EventContractSigned,
		EntityType: audit.EntityContract,
		EntityID:   params.ContractID,
		Summary:    fmt.Sprintf("signed by %s (%s)", params.SignerName, params.SignatureType),
	})
	return signature, nil
}

// validateSignaturePayload enforces exactly the payload appropriate to the
// chosen type: image bytes for drawn, text for typed, never both, never
// neither.
func validateSignaturePayload(params SignContractParams) error {
	if params.SignerName == "" {
		return apperrors.PayloadInvalid("signer name is required")
	}

	switch params.SignatureType {
	case model.SignatureTypeDrawn:
		if len(params.ImageData) == 0 {
			return apperrors.PayloadInvalid("drawn signature requires image data")
		}
		if params.TypedText != "" {
			return apperrors.PayloadInvalid("drawn signature cannot carry typed text")
		}
		if len(params.ImageData) > config.MaxSignatureImageBytes {
			return apperrors.PayloadInvalid("signature image exceeds size limit")
		}
	case model.SignatureTypeTyped:
		if params.TypedText == "" {
			return apperrors.PayloadInvalid("typed signature requires text")
		}
		if len(params.ImageData) > 0 {
			return apperrors.PayloadInvalid("typed signature cannot carry image data")
		}
	default:
		return apperrors.PayloadInvalid(fmt.Sprintf("unknown signature type %q", params.SignatureType))
	}
	return nil
}

func (s *PortalActionService) recordBlocked(ctx context.Context, session *model.PortalSession, eventType, entityType, entityID, summary string) {
	s.recorder.Record(ctx, audit.Entry{
		ClientID:   session.ClientID,
		SessionID:  &session.ID,
		Origin:     model.OriginPortal,
		EventType:  eventType,
		EntityType: entityType,
		EntityID:   entityID,
		Summary:    summary,
	})
}
