package model

import (
	"time"
)

// PortalSession is a bearer credential scoping a client to one business for
// a bounded time. The session's business id must always equal both its
// identity's business id and the client's current business id; anything else
// is treated as a security event.
type PortalSession struct {
	ID          string       `db:"id" json:"id"`
	BusinessID  string       `db:"business_id" json:"businessId"`
	ClientID    string       `db:"client_id" json:"clientId"`
	IdentityID  string       `db:"identity_id" json:"identityId"`
	TokenHash   string       `db:"token_hash" json:"-"`
	State       SessionState `db:"state" json:"state"`
	DeviceLabel *string      `db:"device_label" json:"deviceLabel,omitempty"`
	ExpiresAt   time.Time    `db:"expires_at" json:"expiresAt"`
	RevokedAt   *time.Time   `db:"revoked_at" json:"revokedAt,omitempty"`
	CreatedAt   time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updatedAt"`
}

type CreatePortalSessionParams struct {
	ID          string
	BusinessID  string
	ClientID    string
	IdentityID  string
	TokenHash   string
	DeviceLabel *string
	ExpiresAt   time.Time
}

// IsExpired checks the session against its expiry time.
func (s *PortalSession) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// IsLive reports whether the session is usable for portal actions.
func (s *PortalSession) IsLive(now time.Time) bool {
	return s.State == SessionStateActive && !s.IsExpired(now)
}
