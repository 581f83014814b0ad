package model

import (
	"time"
)

// PortalInvite is a single-use credential exchange. Only the SHA-256 digest
// of the code is stored; the raw code is returned to the caller exactly once
// at creation.
type PortalInvite struct {
	ID           string         `db:"id" json:"id"`
	BusinessID   string         `db:"business_id" json:"businessId"`
	ClientID     string         `db:"client_id" json:"clientId"`
	IdentityID   string         `db:"identity_id" json:"identityId"`
	CodeHash     string         `db:"code_hash" json:"-"`
	State        InviteState    `db:"state" json:"state"`
	Delivery     DeliveryMethod `db:"delivery" json:"delivery"`
	SendCount    int            `db:"send_count" json:"sendCount"`
	Note         *string        `db:"note" json:"note,omitempty"`
	ExpiresAt    time.Time      `db:"expires_at" json:"expiresAt"`
	LastSentAt   *time.Time     `db:"last_sent_at" json:"lastSentAt,omitempty"`
	AcceptedAt   *time.Time     `db:"accepted_at" json:"acceptedAt,omitempty"`
	RevokedAt    *time.Time     `db:"revoked_at" json:"revokedAt,omitempty"`
	SessionID    *string        `db:"session_id" json:"sessionId,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updatedAt"`
}

type CreatePortalInviteParams struct {
	ID         string
	BusinessID string
	ClientID   string
	IdentityID string
	CodeHash   string
	Delivery   DeliveryMethod
	Note       *string
	ExpiresAt  time.Time
}

// IsExpired checks the invite against its expiry time.
func (i *PortalInvite) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}
