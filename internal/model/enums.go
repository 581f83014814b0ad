package model

type InviteState string

const (
	InviteStateDraft    InviteState = "draft"
	InviteStateSent     InviteState = "sent"
	InviteStateAccepted InviteState = "accepted"
	InviteStateRevoked  InviteState = "revoked"
	InviteStateExpired  InviteState = "expired"
)

// IsActive reports whether the invite can still be exchanged for a session.
// Accepted, revoked and expired are terminal.
func (s InviteState) IsActive() bool {
	return s == InviteStateDraft || s == InviteStateSent
}

type SessionState string

const (
	SessionStateActive  SessionState = "active"
	SessionStateRevoked SessionState = "revoked"
	SessionStateExpired SessionState = "expired"
)

type DeliveryMethod string

const (
	DeliveryEmail  DeliveryMethod = "email"
	DeliverySMS    DeliveryMethod = "sms"
	DeliveryManual DeliveryMethod = "manual"
)

type AuditOrigin string

const (
	OriginInternal AuditOrigin = "internal"
	OriginPortal   AuditOrigin = "portal"
)

type SignerRole string

const (
	SignerRoleClient   SignerRole = "client"
	SignerRoleInternal SignerRole = "internal"
)

type SignatureType string

const (
	SignatureTypeDrawn SignatureType = "drawn"
	SignatureTypeTyped SignatureType = "typed"
)

type ContractStatus string

const (
	ContractStatusDraft  ContractStatus = "draft"
	ContractStatusSent   ContractStatus = "sent"
	ContractStatusSigned ContractStatus = "signed"
)

type DocType string

const (
	DocTypeEstimate DocType = "estimate"
	DocTypeInvoice  DocType = "invoice"
)

type EstimateStatus string

const (
	EstimateStatusPending  EstimateStatus = "pending"
	EstimateStatusAccepted EstimateStatus = "accepted"
	EstimateStatusDeclined EstimateStatus = "declined"
)
