package model

import "time"

// RevocationReason records why a refresh token left the active set.
type RevocationReason string

const (
	ReasonRotated   RevocationReason = "rotated"
	ReasonLogout    RevocationReason = "logout"
	ReasonLogoutAll RevocationReason = "logout_all"
)

// IssuedToken models an entry in the `outstanding_token` table: one row per
// refresh token handed out.  Only the jti is stored, never the token.
type IssuedToken struct {
	JTI       string    // outstanding_token.jti
	UserID    uint64    // outstanding_token.user_id
	ExpiresAt time.Time // outstanding_token.expires_at
	CreatedAt time.Time // outstanding_token.created_at
}

// Revocation models an entry in the `blacklisted_token` table.  Once a jti
// is present it can never authenticate again, even before ExpiresAt.
// ExpiresAt is kept so expired rows can be flushed.
type Revocation struct {
	JTI       string           // blacklisted_token.jti
	UserID    uint64           // blacklisted_token.user_id
	Reason    RevocationReason // blacklisted_token.reason
	RevokedAt time.Time        // blacklisted_token.revoked_at
	ExpiresAt time.Time        // blacklisted_token.expires_at
}
