package model

import (
	"strings"
	"time"
)

// SchemaVersion identifies the shape of the core_user table.  Version 2 is
// expected to add MosqueID (*uint64, the owning organization) and Role
// (string); both are intentionally absent until the Mosque model exists.
const SchemaVersion = 1

// User represents an identity record as stored in the `core_user` table.
// Each field corresponds to a column.  Users are never hard-deleted;
// deactivation (IsActive=false) keeps audit history intact.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Username     – unique login handle.
//	Email        – unique contact address, stored lower-cased.
//	PasswordHash – bcrypt hashed password.
//	IsActive     – whether the account may authenticate.
//	IsStaff      – whether the account may use administrative routes.
//	LastLogin    – last successful credential login (nullable).
//	LastSeenAt   – last authenticated request (nullable).
//	CreatedAt    – timestamp of creation.
//	UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64     // core_user.id
	Username     string     // core_user.username
	Email        string     // core_user.email
	PasswordHash string     // core_user.password_hash
	IsActive     bool       // core_user.is_active
	IsStaff      bool       // core_user.is_staff
	LastLogin    *time.Time // core_user.last_login (nullable)
	LastSeenAt   *time.Time // core_user.last_seen_at (nullable)
	CreatedAt    time.Time  // core_user.created_at
	UpdatedAt    time.Time  // core_user.updated_at
}

// DisplayName prefers the e-mail address and falls back to the username.
func (u User) DisplayName() string {
	if u.Email != "" {
		return u.Email
	}
	return u.Username
}

// NormalizeEmail lower-cases and trims an e-mail address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
