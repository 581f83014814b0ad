package model

import (
	"time"
)

// PortalIdentity records that a client has (or can have) portal access.
// One record per client is the intended shape; duplicates that slipped in
// before the uniqueness constraint existed are handled defensively by the
// identity service, never trusted individually.
type PortalIdentity struct {
	ID               string     `db:"id" json:"id"`
	BusinessID       string     `db:"business_id" json:"businessId"`
	ClientID         string     `db:"client_id" json:"clientId"`
	IsEnabled        bool       `db:"is_enabled" json:"isEnabled"`
	PublicHandle     string     `db:"public_handle" json:"publicHandle"`
	ExternalSubject  *string    `db:"external_subject" json:"externalSubject,omitempty"`
	LastInviteSentAt *time.Time `db:"last_invite_sent_at" json:"lastInviteSentAt,omitempty"`
	LastLoginAt      *time.Time `db:"last_login_at" json:"lastLoginAt,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updatedAt"`
}

type CreatePortalIdentityParams struct {
	ID           string
	BusinessID   string
	ClientID     string
	IsEnabled    bool
	PublicHandle string
}
