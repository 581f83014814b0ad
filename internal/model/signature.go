package model

import (
	"time"
)

// ContractSignature is the artifact produced by a successful sign operation.
// It is never edited after creation. ImageData and TypedText are mutually
// exclusive: drawn signatures carry image bytes, typed ones carry text.
// ContentDigest anchors the contract title+body as they were at signing time,
// so later edits to the contract text are detectable.
type ContractSignature struct {
	ID             string        `db:"id" json:"id"`
	BusinessID     string        `db:"business_id" json:"businessId"`
	ClientID       string        `db:"client_id" json:"clientId"`
	ContractID     string        `db:"contract_id" json:"contractId"`
	SessionID      *string       `db:"session_id" json:"sessionId,omitempty"`
	SignerRole     SignerRole    `db:"signer_role" json:"signerRole"`
	SignerName     string        `db:"signer_name" json:"signerName"`
	SignatureType  SignatureType `db:"signature_type" json:"signatureType"`
	ImageData      []byte        `db:"image_data" json:"-"`
	TypedText      *string       `db:"typed_text" json:"typedText,omitempty"`
	ContentDigest  string        `db:"content_digest" json:"contentDigest"`
	ConsentVersion string        `db:"consent_version" json:"consentVersion"`
	DeviceLabel    *string       `db:"device_label" json:"deviceLabel,omitempty"`
	SignedAt       time.Time     `db:"signed_at" json:"signedAt"`
}

type CreateContractSignatureParams struct {
	ID             string
	BusinessID     string
	ClientID       string
	ContractID     string
	SessionID      *string
	SignerRole     SignerRole
	SignerName     string
	SignatureType  SignatureType
	ImageData      []byte
	TypedText      *string
	ContentDigest  string
	ConsentVersion string
	DeviceLabel    *string
	SignedAt       time.Time
}
